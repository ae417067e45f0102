package samsungconsumer

import (
	"bytes"
	"time"

	"displayctl/display"
	"displayctl/protocol"
	"displayctl/serialbuffer"
)

var _ display.Protocol = Protocol{}
var _ display.JunkHandler = Protocol{}

const (
	vendor = "samsung-consumer"

	ackSize  = 3
	ackStart = 0x03
	ackMid   = 0x0c
	ackOK    = 0xf1
	ackError = 0xff

	commandDelay = 100 * time.Millisecond
)

// Split extracts the 3 byte acknowledgements. Anything else is junk.
func Split(data []byte) (int, []byte, error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	if data[0] != ackStart || (len(data) > 1 && data[1] != ackMid) ||
		(len(data) > 2 && data[2] != ackOK && data[2] != ackError) {
		next := bytes.IndexByte(data[1:], ackStart)
		if next < 0 {
			return len(data), nil, serialbuffer.ErrJunk
		}
		return next + 1, nil, serialbuffer.ErrJunk
	}
	if len(data) < ackSize {
		return 0, nil, nil
	}
	return ackSize, data[:ackSize], nil
}

// Response is an acknowledgement.
type Response struct {
	frame protocol.Frame
}

func Parse(f protocol.Frame) (protocol.Response, error) {
	if len(f) != ackSize {
		return nil, protocol.ErrShortFrame
	}
	if f[0] != ackStart || f[1] != ackMid || (f[2] != ackOK && f[2] != ackError) {
		return nil, protocol.ErrUnknownFrame
	}
	return &Response{frame: f}, nil
}

func (r *Response) Frame() protocol.Frame {
	return r.frame
}

// OK reports whether the TV accepted the command.
func (r *Response) OK() bool {
	return r.frame[2] == ackOK
}

// Protocol is the Ex-Link protocol.
type Protocol struct{}

func (Protocol) Name() string {
	return vendor
}

func (Protocol) Split() serialbuffer.SplitFunc {
	return Split
}

func (Protocol) Parse(f protocol.Frame) (protocol.Response, error) {
	return Parse(f)
}

// Poll returns nothing, the TV can't be queried.
func (Protocol) Poll(display.State) []display.Request {
	return nil
}

// Handle applies the value of an acknowledged command.
func (Protocol) Handle(st display.State, c protocol.Command, r protocol.Response) display.Transition {
	resp, ok1 := r.(*Response)
	cmd, ok2 := c.(*Command)
	if !ok1 || !ok2 {
		return display.Stay(st)
	}
	if !resp.OK() {
		if cmd.kind == kindMute {
			// Not toggled, undo the optimistic update
			st.Mute = display.MuteStateOf(!cmd.on)
			return display.Stay(st)
		}
		return display.Transition{State: st, Retry: true}
	}
	switch cmd.kind {
	case kindPower:
		if cmd.on {
			st.Power = display.PowerOn
		} else {
			st.Power = display.PowerOff
		}
	case kindVolume:
		st.Volume = cmd.level
	case kindMute:
		st.Mute = display.MuteStateOf(cmd.on)
	case kindInput:
		st.Input = cmd.input
	}
	return display.Stay(st)
}

// Junk handles the garbage these TVs send while booting, or when
// they're already on: either way the TV is powered.
func (Protocol) Junk(st display.State, _ []byte) display.Transition {
	if st.Power != display.PowerOn {
		st.Power = display.PowerOn
	}
	return display.Stay(st)
}
