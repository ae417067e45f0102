// Package panasonic implements the serial protocol of the Panasonic
// projectors: ASCII commands between STX and ETX.
package panasonic

import (
	"fmt"
	"strconv"
	"strings"

	"displayctl/display"
	"displayctl/protocol"
	"displayctl/serialbuffer"
)

var _ display.Protocol = Protocol{}

const (
	vendor = "panasonic"

	stx = 0x02
	etx = 0x03

	// Addresses every projector on the line
	broadcast = "ADZZ;"

	cmdPowerOn  = "PON"
	cmdPowerOff = "POF"
	cmdInput    = "IIS"
	cmdVolume   = "AVL"
	cmdMute     = "OAM"

	queryPower  = "QPW"
	queryInput  = "QIN"
	queryVolume = "QAV"
	queryMute   = "QAM"

	errorPrefix = "ER"
)

var inputs = protocol.NewBimap(map[display.Input]string{
	display.InputVGA:     "RG1",
	display.InputVideo:   "VID",
	display.InputDVI:     "DVI",
	display.InputHDMI1:   "HD1",
	display.InputHDMI2:   "HD2",
	display.InputNetwork: "DL1",
})

// Command is a Panasonic command, with an optional parameter after a
// colon.
type Command struct {
	Code  string
	Param string
}

func (c *Command) Serialize() ([]byte, error) {
	if c.Code == "" {
		return nil, protocol.ErrIncompleteCommand
	}
	buf := []byte{stx}
	buf = append(buf, broadcast...)
	buf = append(buf, c.text()...)
	return append(buf, etx), nil
}

func (c *Command) text() string {
	if c.Param == "" {
		return c.Code
	}
	return c.Code + ":" + c.Param
}

func (c *Command) String() string {
	return c.text()
}

func (c *Command) IsQuery() bool {
	return strings.HasPrefix(c.Code, "Q")
}

// group is the value a command sets or reads
func (c *Command) group() string {
	switch c.Code {
	case cmdPowerOn, cmdPowerOff, queryPower:
		return "power"
	case cmdInput, queryInput:
		return "input"
	case cmdVolume, queryVolume:
		return "volume"
	case cmdMute, queryMute:
		return "mute"
	}
	return c.Code
}

func sameGroup(queued, incoming protocol.Command) bool {
	a, ok1 := queued.(*Command)
	b, ok2 := incoming.(*Command)
	return ok1 && ok2 && a.group() == b.group() && a.IsQuery() == b.IsQuery()
}

func PowerCommand(on bool) *Command {
	if on {
		return &Command{Code: cmdPowerOn}
	}
	return &Command{Code: cmdPowerOff}
}

func InputCommand(in display.Input) (*Command, error) {
	code, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return &Command{Code: cmdInput, Param: code}, nil
}

func VolumeCommand(level int) (*Command, error) {
	if level < 0 || level > 63 {
		return nil, fmt.Errorf("volume %d out of range: %w", level, display.ErrUnsupported)
	}
	return &Command{Code: cmdVolume, Param: fmt.Sprintf("%03d", level)}, nil
}

func MuteCommand(muted bool) *Command {
	if muted {
		return &Command{Code: cmdMute, Param: "1"}
	}
	return &Command{Code: cmdMute, Param: "0"}
}

func QueryCommand(code string) *Command {
	return &Command{Code: code}
}

// Response is the text between STX and ETX.
type Response struct {
	frame protocol.Frame
	Text  string
}

func Parse(f protocol.Frame) (protocol.Response, error) {
	if len(f) < 3 {
		return nil, protocol.ErrShortFrame
	}
	if f[0] != stx || f[len(f)-1] != etx {
		return nil, protocol.ErrUnknownFrame
	}
	return &Response{frame: f, Text: string(f[1 : len(f)-1])}, nil
}

func (r *Response) Frame() protocol.Frame {
	return r.frame
}

func (r *Response) Err() error {
	if !strings.HasPrefix(r.Text, errorPrefix) {
		return nil
	}
	return &protocol.DeviceError{Vendor: vendor, Code: r.Text[len(errorPrefix):]}
}

// Protocol is the Panasonic projector protocol.
type Protocol struct{}

func (Protocol) Name() string {
	return vendor
}

func (Protocol) Split() serialbuffer.SplitFunc {
	return serialbuffer.Bounded(stx, etx)
}

func (Protocol) Parse(f protocol.Frame) (protocol.Response, error) {
	return Parse(f)
}

func queryRequest(code string, priority int) display.Request {
	return display.Request{Command: QueryCommand(code), Priority: priority, Comparer: sameGroup}
}

func statusQueries(priority int) []display.Request {
	return []display.Request{
		queryRequest(queryInput, priority),
		queryRequest(queryVolume, priority),
		queryRequest(queryMute, priority),
	}
}

func (Protocol) Poll(st display.State) []display.Request {
	reqs := []display.Request{queryRequest(queryPower, display.PriorityPoll)}
	if st.Power == display.PowerOn {
		reqs = append(reqs, statusQueries(display.PriorityPoll)...)
	}
	return reqs
}

// Handle applies query answers, and the parameter of the commands the
// projector echoed back.
func (Protocol) Handle(st display.State, c protocol.Command, r protocol.Response) display.Transition {
	resp, ok1 := r.(*Response)
	cmd, ok2 := c.(*Command)
	if !ok1 || !ok2 {
		return display.Stay(st)
	}
	if resp.Err() != nil {
		return display.Transition{State: st, Retry: !cmd.IsQuery()}
	}
	next := st
	switch cmd.Code {
	case cmdPowerOn:
		next = display.Warming(st)
	case cmdPowerOff:
		next = display.Cooling(st)
	case cmdInput, queryInput:
		if in, ok := inputs.Key(valueOf(cmd, resp)); ok {
			next.Input = in
		}
	case cmdVolume, queryVolume:
		if n, err := strconv.Atoi(valueOf(cmd, resp)); err == nil {
			next.Volume = n
		}
	case cmdMute, queryMute:
		next.Mute = display.MuteStateOf(valueOf(cmd, resp) == "1")
	case queryPower:
		switch resp.Text {
		case "000":
			next.Power = display.PowerOff
		case "001":
			next.Power = display.PowerOn
		}
	}
	tr := display.Transition{State: next}
	if display.PoweredOn(st, next) {
		tr.FollowUps = statusQueries(display.PriorityQuery)
	}
	return tr
}

func valueOf(cmd *Command, resp *Response) string {
	if cmd.IsQuery() {
		return resp.Text
	}
	return cmd.Param
}
