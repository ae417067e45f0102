// Package sharp implements the ASCII protocol of the Sharp displays:
// a 4 letter command followed by a 4 character parameter and CR.
package sharp

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
	vendor = "sharp"

	query = "????"

	codePower  = "POWR"
	codeInput  = "INPS"
	codeVolume = "VOLM"
	codeMute   = "MUTE"

	answerOK    = "OK"
	answerError = "ERR"
)

var inputs = protocol.NewBimap(map[display.Input]string{
	display.InputDVI:         "1",
	display.InputVGA:         "2",
	display.InputComponent:   "3",
	display.InputVideo:       "4",
	display.InputHDMI1:       "10",
	display.InputHDMI2:       "13",
	display.InputDisplayPort: "14",
})

// Command is a Sharp command. Param is left aligned and padded with
// spaces.
type Command struct {
	Code  string
	Param string
}

func (c *Command) Serialize() ([]byte, error) {
	if len(c.Code) != 4 || c.Param == "" {
		return nil, protocol.ErrIncompleteCommand
	}
	if len(c.Param) > 4 {
		return nil, fmt.Errorf("parameter %q longer than 4 characters", c.Param)
	}
	return []byte(fmt.Sprintf("%s%-4s\r", c.Code, c.Param)), nil
}

func (c *Command) String() string {
	return c.Code + c.Param
}

func (c *Command) IsQuery() bool {
	return c.Param == query
}

func sameCode(queued, incoming protocol.Command) bool {
	a, ok1 := queued.(*Command)
	b, ok2 := incoming.(*Command)
	return ok1 && ok2 && a.Code == b.Code && a.IsQuery() == b.IsQuery()
}

func QueryCommand(code string) *Command {
	return &Command{Code: code, Param: query}
}

func PowerCommand(on bool) *Command {
	if on {
		return &Command{Code: codePower, Param: "1"}
	}
	return &Command{Code: codePower, Param: "0"}
}

func InputCommand(in display.Input) (*Command, error) {
	code, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return &Command{Code: codeInput, Param: code}, nil
}

func VolumeCommand(level int) (*Command, error) {
	if level < 0 || level > 100 {
		return nil, fmt.Errorf("volume %d out of range: %w", level, display.ErrUnsupported)
	}
	return &Command{Code: codeVolume, Param: strconv.Itoa(level)}, nil
}

func MuteCommand(muted bool) *Command {
	if muted {
		return &Command{Code: codeMute, Param: "1"}
	}
	return &Command{Code: codeMute, Param: "0"}
}

// Response is a line sent by the display: OK, ERR or a value.
type Response struct {
	frame protocol.Frame
	Text  string
}

func Parse(f protocol.Frame) (protocol.Response, error) {
	text := strings.TrimSpace(string(f))
	if text == "" {
		return nil, protocol.ErrShortFrame
	}
	return &Response{frame: f, Text: text}, nil
}

func (r *Response) Frame() protocol.Frame {
	return r.frame
}

// Protocol is the Sharp protocol.
type Protocol struct{}

func (Protocol) Name() string {
	return vendor
}

func (Protocol) Split() serialbuffer.SplitFunc {
	return serialbuffer.Delimiter('\r', '\n')
}

func (Protocol) Parse(f protocol.Frame) (protocol.Response, error) {
	return Parse(f)
}

func queryRequest(code string, priority int) display.Request {
	return display.Request{Command: QueryCommand(code), Priority: priority, Comparer: sameCode}
}

func statusQueries(priority int) []display.Request {
	return []display.Request{
		queryRequest(codeInput, priority),
		queryRequest(codeVolume, priority),
		queryRequest(codeMute, priority),
	}
}

func (Protocol) Poll(st display.State) []display.Request {
	reqs := []display.Request{queryRequest(codePower, display.PriorityPoll)}
	if st.Power == display.PowerOn {
		reqs = append(reqs, statusQueries(display.PriorityPoll)...)
	}
	return reqs
}

// Handle applies the parameter of an acknowledged command or the
// value answered to a query. Queries answered with ERR, which is what
// a display in standby does, are not retried.
func (Protocol) Handle(st display.State, c protocol.Command, r protocol.Response) display.Transition {
	resp, ok1 := r.(*Response)
	cmd, ok2 := c.(*Command)
	if !ok1 || !ok2 {
		return display.Stay(st)
	}
	var value string
	switch {
	case resp.Text == answerError:
		return display.Transition{State: st, Retry: !cmd.IsQuery()}
	case resp.Text == answerOK && !cmd.IsQuery():
		value = cmd.Param
	case cmd.IsQuery():
		value = resp.Text
	default:
		return display.Stay(st)
	}
	next := applyValue(st, cmd.Code, value)
	tr := display.Transition{State: next}
	if display.PoweredOn(st, next) {
		tr.FollowUps = statusQueries(display.PriorityQuery)
	}
	return tr
}

func applyValue(st display.State, code, value string) display.State {
	switch code {
	case codePower:
		switch value {
		case "0":
			st.Power = display.PowerOff
		case "1":
			st.Power = display.PowerOn
		}
	case codeInput:
		if in, ok := inputs.Key(value); ok {
			st.Input = in
		}
	case codeVolume:
		if n, err := strconv.Atoi(value); err == nil {
			st.Volume = n
		}
	case codeMute:
		st.Mute = display.MuteStateOf(value == "1")
	}
	return st
}
