package ipc

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/pithecene-io/verdict/types"
)

func buildEventStream(b *testing.B, n int) []byte {
	b.Helper()
	var buf bytes.Buffer
	for i := range n {
		frame, err := EncodeFrame(testEnvelope(int64(i+1), types.EventTypeTestCaseFinished, map[string]any{
			"uri":    "features/cart.feature",
			"name":   "scenario",
			"result": map[string]any{"status": "PASSED", "duration_ns": int64(1500000)},
		}))
		if err != nil {
			b.Fatal(err)
		}
		buf.Write(frame)
	}
	return buf.Bytes()
}

func BenchmarkEncodeFrame(b *testing.B) {
	env := testEnvelope(1, types.EventTypeTestCaseFinished, map[string]any{"name": "scenario"})

	b.ReportAllocs()
	for range b.N {
		if _, err := EncodeFrame(env); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkReadEnvelope_OneByteReader reads through iotest.OneByteReader,
// the worst case for an unbuffered pipe.
func BenchmarkReadEnvelope_OneByteReader(b *testing.B) {
	data := buildEventStream(b, 20)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		decoder := NewFrameDecoder(iotest.OneByteReader(bytes.NewReader(data)))
		for {
			_, err := decoder.ReadEnvelope()
			if err == io.EOF {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}
