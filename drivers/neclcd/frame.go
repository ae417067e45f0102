package neclcd

import (
	"fmt"
	"strconv"

	"displayctl/protocol"
	"displayctl/serialbuffer"
)

const (
	soh = 0x01
	stx = 0x02
	etx = 0x03
	cr  = 0x0d

	reserved   = '0'
	controller = '0'

	vendor = "nec-lcd"

	// SOH, reserved, destination, source, type and two length digits
	headerSize = 7
	// BCC and CR
	trailerSize = 2

	resultOK          = "00"
	resultUnsupported = "01"
)

// Split extracts messages by their length field. The BCC may be any
// byte, CR included, so the frames can't be split on CR.
var Split = serialbuffer.Resync(matchFrame)

func matchFrame(data []byte) int {
	if data[0] != soh {
		return serialbuffer.NoMatch
	}
	if len(data) < 2 {
		return serialbuffer.NeedMore
	}
	if data[1] != reserved {
		return serialbuffer.NoMatch
	}
	if len(data) < headerSize {
		return serialbuffer.NeedMore
	}
	size, err := messageSize(data)
	if err != nil {
		return serialbuffer.NoMatch
	}
	total := headerSize + size + trailerSize
	if len(data) < total {
		return serialbuffer.NeedMore
	}
	if checkFrame(data[:total]) != nil {
		return serialbuffer.NoMatch
	}
	return total
}

// messageSize returns the size of STX..ETX declared in the header.
func messageSize(header []byte) (int, error) {
	n, err := strconv.ParseUint(string(header[5:7]), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q: %w", header[5:7], protocol.ErrUnknownFrame)
	}
	if n < 2 {
		return 0, fmt.Errorf("length %d: %w", n, protocol.ErrShortFrame)
	}
	return int(n), nil
}

// checkFrame verifies the delimiters and the BCC of a whole frame.
func checkFrame(f []byte) error {
	bcc := len(f) - trailerSize
	if f[headerSize] != stx || f[bcc-1] != etx || f[len(f)-1] != cr {
		return protocol.ErrUnknownFrame
	}
	return protocol.VerifySum8(protocol.NewXorChecksum(), f[1:bcc], f[bcc])
}

// Response is a reply from a monitor. Parse has decoded the message
// into Result, Op, Max and Value.
type Response struct {
	frame protocol.Frame

	Monitor byte
	Type    byte
	// Result is "00" on success
	Result string
	Op     uint16
	Max    int
	Value  int
}

// Parse validates a frame and decodes its reply message.
func Parse(f protocol.Frame) (protocol.Response, error) {
	if len(f) < headerSize+2+trailerSize {
		return nil, protocol.ErrShortFrame
	}
	if f[0] != soh || f[1] != reserved {
		return nil, protocol.ErrUnknownFrame
	}
	size, err := messageSize(f)
	if err != nil {
		return nil, err
	}
	if len(f) != headerSize+size+trailerSize {
		return nil, fmt.Errorf("length %d doesn't match %d: %w", len(f), size, protocol.ErrShortFrame)
	}
	if err := checkFrame(f); err != nil {
		return nil, err
	}
	r := &Response{
		frame:   f,
		Monitor: f[3],
		Type:    f[4],
	}
	msg := string(f[headerSize+1 : len(f)-trailerSize-1])
	if err := r.decode(msg); err != nil {
		return nil, fmt.Errorf("reply %q: %w", msg, err)
	}
	return r, nil
}

func hexField(s string) (int, error) {
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, protocol.ErrUnknownFrame
	}
	return int(n), nil
}

func (r *Response) decode(msg string) error {
	var op, limit, value string
	switch {
	case (r.Type == typeGetReply || r.Type == typeSetReply) && len(msg) == 16:
		// result, op page and code, type, max, current
		r.Result, op, limit, value = msg[0:2], msg[2:6], msg[8:12], msg[12:16]
	case r.Type == typeCommandReply && len(msg) == 16 && msg[:2] == "02" && msg[4:6] == "D6":
		// power status: 02, result, D6, type, max, mode
		r.Result, op, limit, value = msg[2:4], "00D6", msg[8:12], msg[12:16]
	case r.Type == typeCommandReply && len(msg) == 12 && msg[2:8] == "C203D6":
		// power control: result, C203D6, mode
		r.Result, op, limit, value = msg[0:2], "00D6", "0004", msg[8:12]
	default:
		return protocol.ErrUnknownFrame
	}
	n, err := hexField(op)
	if err != nil {
		return err
	}
	r.Op = uint16(n)
	if r.Max, err = hexField(limit); err != nil {
		return err
	}
	r.Value, err = hexField(value)
	return err
}

// Frame implements protocol.Response.
func (r *Response) Frame() protocol.Frame {
	return r.frame
}

// Err returns a *protocol.DeviceError when the monitor rejected the
// request.
func (r *Response) Err() error {
	if r.Result == resultOK {
		return nil
	}
	return &protocol.DeviceError{
		Vendor: vendor,
		Code:   fmt.Sprintf("%s/%04X", r.Result, r.Op),
	}
}
