package nec

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"displayctl/display"
	"displayctl/protocol"
	"displayctl/serialbuffer"
)

var _ display.Protocol = Protocol{}

// Running status values
const (
	statusStandby = 0x00
	statusOn      = 0x01

	runningPower   = 3
	runningCooling = 4
	runningProcess = 5

	inputStatusTerminal = 2
	muteStatusSound     = 1
)

// Protocol is the NEC projector control protocol.
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

func query(cmd *Command, priority int) display.Request {
	return display.Request{Command: cmd, Priority: priority, Comparer: protocol.SameBytes}
}

func statusQueries(priority int) []display.Request {
	return []display.Request{
		query(InputStatusCommand(), priority),
		query(MuteStatusCommand(), priority),
	}
}

func (Protocol) Poll(st display.State) []display.Request {
	reqs := []display.Request{
		query(RunningStatusCommand(), display.PriorityPoll),
		query(ErrorStatusCommand(), display.PriorityPoll),
	}
	if st.Power == display.PowerOn {
		reqs = append(reqs, statusQueries(display.PriorityPoll)...)
	}
	return reqs
}

func (Protocol) Handle(st display.State, c protocol.Command, r protocol.Response) display.Transition {
	resp, ok1 := r.(*Response)
	cmd, ok2 := c.(*Command)
	if !ok1 || !ok2 {
		// The projector only talks when asked
		return display.Stay(st)
	}
	if err := resp.Err(); err != nil {
		log.Debugf("%v answered %v", cmd, err)
		return display.Transition{State: st, Retry: true}
	}
	next := st
	switch cmd.kind {
	case kindPowerOn:
		next = display.Warming(st)
	case kindPowerOff:
		next = display.Cooling(st)
	case kindInput:
		next.Input = cmd.input
	case kindVolume:
		next.Volume = cmd.level
	case kindMuteOn:
		next.Mute = display.Muted
	case kindMuteOff:
		next.Mute = display.Unmuted
	case kindRunningStatus:
		next.Power = runningPowerState(resp)
	case kindInputStatus:
		if in, ok := inputs.Key(resp.DataByte(inputStatusTerminal)); ok {
			next.Input = in
		}
	case kindMuteStatus:
		next.Mute = display.MuteStateOf(resp.DataByte(muteStatusSound) == 0x01)
	case kindErrorStatus:
		faults, err := decodeFaults(resp.Data())
		if err != nil {
			log.Warnf("invalid error status %v: %v", resp.Frame(), err)
			break
		}
		next.Fault = strings.Join(faults, ",")
	}
	tr := display.Transition{State: next}
	if display.PoweredOn(st, next) {
		tr.FollowUps = statusQueries(display.PriorityQuery)
	}
	return tr
}

func runningPowerState(resp *Response) display.PowerState {
	switch {
	case resp.DataByte(runningCooling) == 0x01:
		return display.PowerCooling
	case resp.DataByte(runningProcess) == 0x01:
		return display.PowerWarming
	case resp.DataByte(runningPower) == statusOn:
		return display.PowerOn
	case resp.DataByte(runningPower) == statusStandby:
		return display.PowerOff
	}
	return display.PowerUnknown
}
