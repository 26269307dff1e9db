package ipc

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/verdict/types"
)

// FrameEncoder writes envelopes as length-prefixed msgpack frames.
//
// It is also an event bus handler: subscribed with SubscribeAll it streams
// every event of a run. Handle cannot return an error, so the first write
// error is kept, later envelopes are dropped, and Err reports it.
type FrameEncoder struct {
	mu     sync.Mutex
	writer io.Writer
	frames int64
	err    error
}

// NewFrameEncoder creates an encoder writing to w.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// EncodeFrame encodes env as a single frame, length prefix included.
func EncodeFrame(env *types.Envelope) ([]byte, error) {
	payload, err := msgpack.Marshal(env)
	if err != nil {
		return nil, &FrameError{Kind: FrameErrorEncode, Msg: "failed to encode event envelope", Err: err}
	}
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(payload)))
	copy(frame[LengthPrefixSize:], payload)
	return frame, nil
}

// WriteEnvelope writes env as one frame.
func (e *FrameEncoder) WriteEnvelope(env *types.Envelope) error {
	frame, err := EncodeFrame(env)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.writer.Write(frame); err != nil {
		return &FrameError{Kind: FrameErrorEncode, Msg: "failed to write frame", Err: err}
	}
	e.frames++
	return nil
}

// Handle implements the event bus handler contract.
func (e *FrameEncoder) Handle(env types.Envelope) {
	if e.Err() != nil {
		return
	}
	if err := e.WriteEnvelope(&env); err != nil {
		e.mu.Lock()
		if e.err == nil {
			e.err = err
		}
		e.mu.Unlock()
	}
}

// Err returns the first error Handle ran into.
func (e *FrameEncoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Frames returns the number of frames written.
func (e *FrameEncoder) Frames() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}
