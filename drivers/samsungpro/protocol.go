package samsungpro

import (
	"time"

	log "github.com/sirupsen/logrus"

	"displayctl/display"
	"displayctl/protocol"
	"displayctl/serialbuffer"
)

var _ display.Protocol = Protocol{}

// Samsung recommends leaving some time between commands
const commandDelay = 50 * time.Millisecond

// Status query values
const (
	statusPower = iota
	statusVolume
	statusMute
	statusInput
	statusScaling
)

// Protocol is the MDC protocol for the display with the given ID.
type Protocol struct {
	ID byte
}

func (Protocol) Name() string {
	return vendor
}

func (Protocol) Split() serialbuffer.SplitFunc {
	return Split
}

func (Protocol) Parse(f protocol.Frame) (protocol.Response, error) {
	return Parse(f)
}

func (p Protocol) Poll(display.State) []display.Request {
	return []display.Request{
		{Command: StatusCommand(p.ID), Priority: display.PriorityPoll, Comparer: protocol.SameBytes},
	}
}

// Handle relies on the command echoed in the acknowledgement, so it
// works for unsolicited acknowledgements too.
func (p Protocol) Handle(st display.State, cmd protocol.Command, r protocol.Response) display.Transition {
	resp, ok := r.(*Response)
	if !ok {
		return display.Stay(st)
	}
	if err := resp.Err(); err != nil {
		log.Debugf("%v answered %v", cmd, err)
		return display.Transition{State: st, Retry: cmd != nil}
	}
	next := st
	switch resp.Command() {
	case cmdStatus:
		next = applyStatus(st, resp)
	case cmdPower:
		if v, ok := resp.Value(0); ok {
			next.Power = powerState(v)
		}
	case cmdVolume:
		if v, ok := resp.Value(0); ok {
			next.Volume = int(v)
		}
	case cmdMute:
		if v, ok := resp.Value(0); ok {
			next.Mute = display.MuteStateOf(v == 0x01)
		}
	case cmdInput:
		if v, ok := resp.Value(0); ok {
			if in, ok := inputs.Key(v); ok {
				next.Input = in
			}
		}
	case cmdScaling:
		if v, ok := resp.Value(0); ok {
			if mode, ok := scalingModes.Key(v); ok {
				next.Scaling = mode
			}
		}
	}
	tr := display.Transition{State: next}
	if display.PoweredOn(st, next) && resp.Command() != cmdStatus {
		tr.FollowUps = append(tr.FollowUps, display.Request{
			Command:  StatusCommand(p.ID),
			Priority: display.PriorityQuery,
			Comparer: protocol.SameBytes,
		})
	}
	return tr
}

func powerState(v byte) display.PowerState {
	if v == 0x01 {
		return display.PowerOn
	}
	return display.PowerOff
}

func applyStatus(st display.State, resp *Response) display.State {
	if v, ok := resp.Value(statusPower); ok {
		st.Power = powerState(v)
	}
	if v, ok := resp.Value(statusVolume); ok {
		st.Volume = int(v)
	}
	if v, ok := resp.Value(statusMute); ok {
		st.Mute = display.MuteStateOf(v == 0x01)
	}
	if v, ok := resp.Value(statusInput); ok {
		if in, ok := inputs.Key(v); ok {
			st.Input = in
		}
	}
	if v, ok := resp.Value(statusScaling); ok {
		if mode, ok := scalingModes.Key(v); ok {
			st.Scaling = mode
		}
	}
	return st
}
