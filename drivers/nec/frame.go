package nec

import (
	"fmt"

	"displayctl/protocol"
	"displayctl/serialbuffer"
)

const (
	// ID1 ID2, projector ID, model code and data length
	headerSize    = 5
	frameOverhead = headerSize + 1

	vendor = "nec"
)

// Known response headers, success and error variants. Bytes not
// starting one of these are discarded.
var responseHeaders = map[[2]byte]bool{
	{0x20, 0xbf}: true, {0xa0, 0xbf}: true,
	{0x20, 0x85}: true, {0xa0, 0x85}: true,
	{0x20, 0x88}: true, {0xa0, 0x88}: true,
	{0x22, 0x00}: true, {0xa2, 0x00}: true,
	{0x22, 0x01}: true, {0xa2, 0x01}: true,
	{0x22, 0x03}: true, {0xa2, 0x03}: true,
	{0x22, 0x12}: true, {0xa2, 0x12}: true,
	{0x22, 0x13}: true, {0xa2, 0x13}: true,
	{0x23, 0x10}: true, {0xa3, 0x10}: true,
}

// Split extracts responses using the header table, the length byte
// and the checksum, resynchronizing one byte at a time.
var Split = serialbuffer.Resync(matchResponse)

func matchResponse(data []byte) int {
	if len(data) < 2 {
		return serialbuffer.NeedMore
	}
	if !responseHeaders[[2]byte{data[0], data[1]}] {
		return serialbuffer.NoMatch
	}
	if len(data) < headerSize {
		return serialbuffer.NeedMore
	}
	total := frameOverhead + int(data[4])
	if len(data) < total {
		return serialbuffer.NeedMore
	}
	if verifyChecksum(data[:total]) != nil {
		return serialbuffer.NoMatch
	}
	return total
}

// Response is a projector response. Accessors never panic, Parse has
// validated the frame.
type Response struct {
	frame protocol.Frame
}

// Parse validates the length and checksum of a frame.
func Parse(f protocol.Frame) (protocol.Response, error) {
	if len(f) < frameOverhead {
		return nil, protocol.ErrShortFrame
	}
	if !responseHeaders[[2]byte{f[0], f[1]}] {
		return nil, protocol.ErrUnknownFrame
	}
	if len(f) != frameOverhead+int(f[4]) {
		return nil, fmt.Errorf("length %d doesn't match data length %d: %w", len(f), f[4], protocol.ErrShortFrame)
	}
	if err := verifyChecksum(f); err != nil {
		return nil, err
	}
	return &Response{frame: f}, nil
}

// verifyChecksum checks the trailing sum of a command or response.
func verifyChecksum(f []byte) error {
	if len(f) == 0 {
		return protocol.ErrShortFrame
	}
	last := len(f) - 1
	return protocol.VerifySum8(protocol.NewSumChecksum(), f[:last], f[last])
}

// Frame implements protocol.Response.
func (r *Response) Frame() protocol.Frame {
	return r.frame
}

// Failed reports whether the projector answered with an error.
func (r *Response) Failed() bool {
	return r.frame[0]&0xf0 == 0xa0
}

// Data returns the response data, without header and checksum.
func (r *Response) Data() []byte {
	return r.frame[headerSize : len(r.frame)-1]
}

// DataByte returns the n-th data byte, or 0 when the response is
// shorter.
func (r *Response) DataByte(n int) byte {
	if d := r.Data(); n < len(d) {
		return d[n]
	}
	return 0
}

// Err returns a *protocol.DeviceError for error responses.
func (r *Response) Err() error {
	if !r.Failed() {
		return nil
	}
	return &protocol.DeviceError{
		Vendor: vendor,
		Code:   fmt.Sprintf("%02X%02X", r.DataByte(0), r.DataByte(1)),
	}
}
