package samsungpro

import (
	"fmt"

	"displayctl/protocol"
	"displayctl/serialbuffer"
)

const (
	responseMarker = 0xff
	ack            = 'A'
	nak            = 'N'

	vendor = "samsung"

	// AA FF, ID, length
	headerSize = 4
	// header, ack, command and checksum
	minFrameSize = headerSize + 3
)

// Split extracts the AA FF framed responses, checking their checksum
// so that a stray AA FF doesn't swallow the replies after it.
var Split = serialbuffer.Resync(matchResponse)

func matchResponse(data []byte) int {
	if data[0] != header {
		return serialbuffer.NoMatch
	}
	if len(data) < 2 {
		return serialbuffer.NeedMore
	}
	if data[1] != responseMarker {
		return serialbuffer.NoMatch
	}
	if len(data) < headerSize {
		return serialbuffer.NeedMore
	}
	total := headerSize + int(data[3]) + 1
	if len(data) < total {
		return serialbuffer.NeedMore
	}
	if verifyChecksum(data[:total]) != nil {
		return serialbuffer.NoMatch
	}
	return total
}

// Response is an MDC acknowledgement: AA FF ID length A|N command
// values checksum.
type Response struct {
	frame protocol.Frame
}

// Parse validates the length and checksum of a frame.
func Parse(f protocol.Frame) (protocol.Response, error) {
	if len(f) < minFrameSize {
		return nil, protocol.ErrShortFrame
	}
	if f[0] != header || f[1] != responseMarker || (f[4] != ack && f[4] != nak) {
		return nil, protocol.ErrUnknownFrame
	}
	if len(f) != headerSize+int(f[3])+1 {
		return nil, fmt.Errorf("length %d doesn't match %d: %w", len(f), f[3], protocol.ErrShortFrame)
	}
	if err := verifyChecksum(f); err != nil {
		return nil, err
	}
	return &Response{frame: f}, nil
}

// verifyChecksum checks the trailing sum of a command or response,
// which excludes the AA header.
func verifyChecksum(f []byte) error {
	if len(f) < 2 {
		return protocol.ErrShortFrame
	}
	last := len(f) - 1
	return protocol.VerifySum8(protocol.NewSumChecksum(), f[1:last], f[last])
}

func (r *Response) Frame() protocol.Frame {
	return r.frame
}

func (r *Response) ID() byte {
	return r.frame[2]
}

// Ack reports whether the display executed the command.
func (r *Response) Ack() bool {
	return r.frame[4] == ack
}

// Command returns the command this response answers.
func (r *Response) Command() byte {
	return r.frame[5]
}

// Values returns the data following the command byte.
func (r *Response) Values() []byte {
	return r.frame[6 : len(r.frame)-1]
}

// Value returns the n-th value and whether it's present.
func (r *Response) Value(n int) (byte, bool) {
	if v := r.Values(); n < len(v) {
		return v[n], true
	}
	return 0, false
}

// Err returns a *protocol.DeviceError for negative acknowledgements.
func (r *Response) Err() error {
	if r.Ack() {
		return nil
	}
	code, _ := r.Value(0)
	return &protocol.DeviceError{Vendor: vendor, Code: fmt.Sprintf("%02X/%02X", r.Command(), code)}
}
