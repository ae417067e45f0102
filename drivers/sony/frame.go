package sony

import (
	"bytes"
	"fmt"

	"displayctl/protocol"
)

const (
	vendor = "sony"

	responseHeader = 0x70
	ackSize        = 3

	answerCompleted = 0x00
)

func sum8(data []byte) byte {
	return protocol.Sum8(protocol.NewSumChecksum(), data)
}

// Split extracts the responses. Short acknowledgements are 70 answer
// checksum, query answers 70 answer length data checksum. The third
// byte is tried as a checksum before being used as a length.
func Split(data []byte) (int, []byte, error) {
	start := bytes.IndexByte(data, responseHeader)
	switch {
	case start < 0:
		return len(data), nil, nil
	case start > 0:
		return start, nil, nil
	}
	if len(data) < ackSize {
		return 0, nil, nil
	}
	if data[2] == sum8(data[:2]) {
		return ackSize, data[:ackSize], nil
	}
	total := ackSize + int(data[2])
	if len(data) < total {
		return 0, nil, nil
	}
	return total, data[:total], nil
}

// Response is an acknowledgement or a query answer.
type Response struct {
	frame protocol.Frame
}

func Parse(f protocol.Frame) (protocol.Response, error) {
	if len(f) < ackSize {
		return nil, protocol.ErrShortFrame
	}
	if f[0] != responseHeader {
		return nil, protocol.ErrUnknownFrame
	}
	if len(f) > ackSize && len(f) != ackSize+int(f[2]) {
		return nil, fmt.Errorf("length %d doesn't match %d: %w", len(f), f[2], protocol.ErrShortFrame)
	}
	if err := verifyChecksum(f); err != nil {
		return nil, err
	}
	return &Response{frame: f}, nil
}

func verifyChecksum(f []byte) error {
	if len(f) < 2 {
		return protocol.ErrShortFrame
	}
	last := len(f) - 1
	return protocol.VerifySum8(protocol.NewSumChecksum(), f[:last], f[last])
}

func (r *Response) Frame() protocol.Frame {
	return r.frame
}

func (r *Response) Answer() byte {
	return r.frame[1]
}

// Data returns the answer to a query, empty for acknowledgements.
func (r *Response) Data() []byte {
	if len(r.frame) <= ackSize {
		return nil
	}
	return r.frame[ackSize : len(r.frame)-1]
}

func (r *Response) Err() error {
	if r.Answer() == answerCompleted {
		return nil
	}
	return &protocol.DeviceError{Vendor: vendor, Code: fmt.Sprintf("%02X", r.Answer())}
}
