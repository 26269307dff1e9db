// Package ipc implements the event stream wire format: each event envelope
// is a msgpack payload behind a 4-byte big-endian length prefix.
package ipc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/verdict/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorEncode indicates a msgpack encoding or write error.
	FrameErrorEncode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	case FrameErrorEncode:
		return "encode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FrameError represents a framing error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot be read past this error.
// Partial and oversized frames are fatal; a frame that fails to decode
// can be skipped.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader *bufio.Reader
}

// NewFrameDecoder creates a new frame decoder. Reads are buffered.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: bufio.NewReader(r)}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// ReadEnvelope reads and decodes the next envelope. It returns io.EOF at a
// clean end of stream.
func (d *FrameDecoder) ReadEnvelope() (*types.Envelope, error) {
	payload, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope(payload)
}

// DecodeEnvelope decodes a payload as an Envelope. The payload of the
// returned envelope is a generic map.
func DecodeEnvelope(payload []byte) (*types.Envelope, error) {
	var envelope types.Envelope
	if err := msgpack.Unmarshal(payload, &envelope); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode event envelope",
			Err:  err,
		}
	}
	return &envelope, nil
}

// ReadAll decodes every envelope in r, calling fn for each. Frames that fail
// to decode are passed to onSkip, when set, and otherwise end the read.
func ReadAll(r io.Reader, fn func(*types.Envelope) error, onSkip func(error)) error {
	decoder := NewFrameDecoder(r)
	for {
		env, err := decoder.ReadEnvelope()
		switch {
		case err == io.EOF:
			return nil
		case err != nil && !IsFatalFrameError(err) && onSkip != nil:
			onSkip(err)
			continue
		case err != nil:
			return err
		}
		if err := fn(env); err != nil {
			return err
		}
	}
}

