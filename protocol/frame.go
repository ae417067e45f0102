package protocol

import (
	"encoding/hex"
)

// Frame is one complete, self-delimited protocol message extracted
// from a raw byte stream. Frames handed out by a buffer are copies
// and are never modified afterwards.
type Frame []byte

// String returns the frame as a hex string, useful for logging.
func (f Frame) String() string {
	return hex.EncodeToString(f)
}

// Clone returns a copy of the frame.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	c := make(Frame, len(f))
	copy(c, f)
	return c
}
