// Package codec implements the on-disk log frame format: a 4-byte
// little-endian length prefix followed by exactly that many bytes of
// UTF-8 JSON payload. There are no checksums, no LSNs, no transaction
// IDs — integrity rests on OS buffering and application-level JSON
// validation after the fact.
package codec

import (
	"encoding/binary"
	"io"
)

const LengthPrefixSize = 4

// WriteFrame writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// ReadFrames reads frames from r until EOF, a truncated header, or a
// truncated payload. Both truncation cases stop the read silently rather
// than returning an error — a crash mid-append leaves at most one
// incomplete trailing frame, and the reader is expected to discard it.
func ReadFrames(r io.Reader) ([][]byte, error) {
	var frames [][]byte

	lenBuf := make([]byte, LengthPrefixSize)
	for {
		n, err := io.ReadFull(r, lenBuf)
		if n < LengthPrefixSize {
			// EOF or a truncated header: stop, not an error.
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return frames, nil
			}
			if err != nil {
				return frames, err
			}
			return frames, nil
		}

		length := binary.LittleEndian.Uint32(lenBuf)
		payload := make([]byte, length)

		n, err = io.ReadFull(r, payload)
		if uint32(n) < length {
			// Truncated payload: stop, not an error.
			return frames, nil
		}
		if err != nil {
			return frames, err
		}

		frames = append(frames, payload)
	}
}
