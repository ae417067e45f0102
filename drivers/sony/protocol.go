package sony

import (
	"displayctl/display"
	"displayctl/protocol"
	"displayctl/serialbuffer"
)

var _ display.Protocol = Protocol{}

// Protocol is the Bravia serial protocol.
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

func query(function byte, priority int) display.Request {
	return display.Request{Command: QueryCommand(function), Priority: priority, Comparer: sameFunction}
}

func statusQueries(priority int) []display.Request {
	return []display.Request{
		query(funcInput, priority),
		query(funcVolume, priority),
		query(funcMute, priority),
	}
}

func (Protocol) Poll(st display.State) []display.Request {
	reqs := []display.Request{query(funcPower, display.PriorityPoll)}
	if st.Power == display.PowerOn {
		reqs = append(reqs, statusQueries(display.PriorityPoll)...)
	}
	return reqs
}

// Handle decodes query answers and acknowledged control commands the
// same way, they carry the same data.
func (Protocol) Handle(st display.State, c protocol.Command, r protocol.Response) display.Transition {
	resp, ok1 := r.(*Response)
	cmd, ok2 := c.(*Command)
	if !ok1 || !ok2 {
		return display.Stay(st)
	}
	if resp.Err() != nil {
		return display.Transition{State: st, Retry: true}
	}
	data := cmd.Data
	if cmd.Query {
		data = resp.Data()
	}
	next := applyValue(st, cmd.Function, data)
	tr := display.Transition{State: next}
	if display.PoweredOn(st, next) {
		tr.FollowUps = statusQueries(display.PriorityQuery)
	}
	return tr
}

func applyValue(st display.State, function byte, data []byte) display.State {
	switch function {
	case funcPower:
		if len(data) >= 1 {
			if data[0] == 0x01 {
				st.Power = display.PowerOn
			} else {
				st.Power = display.PowerOff
			}
		}
	case funcInput:
		if len(data) >= 2 {
			if in, ok := inputs.Key([2]byte{data[0], data[1]}); ok {
				st.Input = in
			}
		}
	case funcVolume:
		if len(data) >= 2 {
			st.Volume = int(data[1])
		}
	case funcMute:
		if len(data) >= 2 {
			st.Mute = display.MuteStateOf(data[1] == 0x01)
		}
	}
	return st
}
