package codec

import (
	"bytes"
	"testing"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{
		[]byte(`{"_id":"a","name":"alice"}`),
		[]byte(`{"_id":"b","name":"bob"}`),
		[]byte(`{}`),
	}

	for _, p := range payloads {
		if err := WriteFrame(&buf, p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	frames, err := ReadFrames(&buf)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(frames) != len(payloads) {
		t.Fatalf("got %d frames, want %d", len(frames), len(payloads))
	}
	for i, f := range frames {
		if !bytes.Equal(f, payloads[i]) {
			t.Errorf("frame %d = %s, want %s", i, f, payloads[i])
		}
	}
}

func TestReadFrames_EmptyInput(t *testing.T) {
	frames, err := ReadFrames(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
}

func TestReadFrames_TruncatedLengthHeader(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, []byte(`{"_id":"a"}`))
	full := buf.Bytes()

	// Keep only the first two bytes so the frame's length header itself is
	// incomplete; it must be silently dropped, not an error.
	truncated := full[:2]

	frames, err := ReadFrames(bytes.NewReader(truncated))
	if err != nil {
		t.Fatalf("unexpected error on truncated tail: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames, want 0 for a truncated single frame", len(frames))
	}
}

func TestReadFrames_TruncatedPayloadAfterValidFrame(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, []byte(`{"_id":"a"}`))
	WriteFrame(&buf, []byte(`{"_id":"b","extra":"data"}`))
	full := buf.Bytes()

	truncated := full[:len(full)-5]

	frames, err := ReadFrames(bytes.NewReader(truncated))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 (first frame intact, second truncated)", len(frames))
	}
	if !bytes.Equal(frames[0], []byte(`{"_id":"a"}`)) {
		t.Errorf("frame 0 = %s, want first payload", frames[0])
	}
}
