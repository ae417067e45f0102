package protocol

import (
	"bytes"
)

// Command is an outbound instruction for a device. Serialize must be
// deterministic and return the exact wire bytes, including any header,
// length, checksum and terminator the vendor protocol requires.
type Command interface {
	Serialize() ([]byte, error)
}

// Toggle is implemented by commands whose effect depends on the
// current device state, like a mute toggle. Sending one twice undoes
// it, so a toggle whose acknowledgement was lost must not be resent.
type Toggle interface {
	Command
	Toggles() bool
}

// IsToggle reports whether cmd is a Toggle that toggles.
func IsToggle(cmd Command) bool {
	t, ok := cmd.(Toggle)
	return ok && t.Toggles()
}

// Response is data received from a device, either in reply to a
// Command or unsolicited.
type Response interface {
	Frame() Frame
}

// ParseFunc turns a frame into a vendor Response. A non nil error
// means the frame is invalid (bad checksum, too short...) and must
// not be used to update any state.
type ParseFunc func(f Frame) (Response, error)

// Comparer reports whether an incoming command is the same logical
// operation as an already queued one, in which case the queued
// command is replaced instead of sending both.
type Comparer func(queued, incoming Command) bool

// RawResponse is a Response that carries only the frame.
type RawResponse struct {
	frame Frame
}

// Frame implements Response.
func (r *RawResponse) Frame() Frame { return r.frame }

// ParseRaw is a ParseFunc accepting every frame as-is.
func ParseRaw(f Frame) (Response, error) {
	return &RawResponse{frame: f}, nil
}

// SameBytes is a Comparer that collapses commands serializing to the
// same wire bytes, i.e. exact duplicates.
func SameBytes(queued, incoming Command) bool {
	a, err := queued.Serialize()
	if err != nil {
		return false
	}
	b, err := incoming.Serialize()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// StringCommand is a Command for line based ASCII protocols. The
// Terminator is appended when serializing.
type StringCommand struct {
	Data       string
	Terminator string
}

// Serialize implements Command.
func (c StringCommand) Serialize() ([]byte, error) {
	if c.Data == "" {
		return nil, ErrIncompleteCommand
	}
	return []byte(c.Data + c.Terminator), nil
}

func (c StringCommand) String() string {
	return c.Data
}
