package neclcd

import (
	"time"

	log "github.com/sirupsen/logrus"

	"displayctl/display"
	"displayctl/protocol"
	"displayctl/serialbuffer"
)

var _ display.Protocol = Protocol{}

// The monitors drop messages arriving sooner than this after a reply.
const commandDelay = 600 * time.Millisecond

// Protocol is the control protocol of the monitor at Monitor, as
// returned by Address.
type Protocol struct {
	Monitor byte
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

func query(cmd *Command, priority int) display.Request {
	return display.Request{Command: cmd, Priority: priority, Comparer: protocol.SameBytes}
}

func (p Protocol) statusQueries(priority int) []display.Request {
	return []display.Request{
		query(GetCommand(p.Monitor, opInput), priority),
		query(GetCommand(p.Monitor, opVolume), priority),
		query(GetCommand(p.Monitor, opMute), priority),
		query(GetCommand(p.Monitor, opAspect), priority),
	}
}

func (p Protocol) Poll(st display.State) []display.Request {
	reqs := []display.Request{query(PowerStatusCommand(p.Monitor), display.PriorityPoll)}
	if st.Power == display.PowerOn {
		reqs = append(reqs, p.statusQueries(display.PriorityPoll)...)
	}
	return reqs
}

// Handle reads the operation from the reply, which carries the
// resulting value for reads and writes alike.
func (p Protocol) Handle(st display.State, c protocol.Command, r protocol.Response) display.Transition {
	resp, ok := r.(*Response)
	if !ok {
		return display.Stay(st)
	}
	if err := resp.Err(); err != nil {
		cmd, _ := c.(*Command)
		log.Debugf("%v answered %v", c, err)
		// Unsupported operations fail again
		retry := cmd != nil && cmd.sets() && resp.Result != resultUnsupported
		return display.Transition{State: st, Retry: retry}
	}
	next := st
	switch resp.Op {
	case opPower:
		next.Power = powerState(resp.Value)
	case opInput:
		if in, ok := inputs.Key(resp.Value); ok {
			next.Input = in
		}
	case opVolume:
		next.Volume = resp.Value
	case opMute:
		next.Mute = display.MuteStateOf(resp.Value == muteOn)
	case opAspect:
		if mode, ok := scalingModes.Key(resp.Value); ok {
			next.Scaling = mode
		}
	}
	tr := display.Transition{State: next}
	if display.PoweredOn(st, next) {
		tr.FollowUps = p.statusQueries(display.PriorityQuery)
	}
	return tr
}

func powerState(mode int) display.PowerState {
	switch mode {
	case powerOn:
		return display.PowerOn
	case powerStandby, powerSuspend, powerOff:
		return display.PowerOff
	}
	return display.PowerUnknown
}
