// Package christie implements the ASCII protocol of the Christie
// projectors. Commands and answers are enclosed in parentheses, text
// in answers escapes parentheses with a backslash.
package christie

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
	vendor = "christie"

	openMark  = '('
	closeMark = ')'
	escape    = '\\'

	codePower   = "PWR"
	codeInput   = "SIN"
	codeShutter = "SHU"

	query      = "?"
	statusMark = '!'
	errorMark  = "ERR"
)

var inputs = protocol.NewBimap(map[display.Input]int{
	display.InputVGA:         1,
	display.InputDVI:         2,
	display.InputHDMI1:       3,
	display.InputHDMI2:       4,
	display.InputDisplayPort: 5,
	display.InputNetwork:     9,
})

// Power status values
const (
	powerOff     = 0
	powerOn      = 1
	powerCooling = 10
	powerWarming = 11
)

type Command struct {
	Code  string
	Param string
}

func (c *Command) Serialize() ([]byte, error) {
	if c.Code == "" || c.Param == "" {
		return nil, protocol.ErrIncompleteCommand
	}
	return []byte(string(openMark) + c.Code + c.Param + string(closeMark)), nil
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
	n, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return &Command{Code: codeInput, Param: strconv.Itoa(n)}, nil
}

// ShutterCommand closes or opens the shutter, which mutes the picture.
func ShutterCommand(closed bool) *Command {
	if closed {
		return &Command{Code: codeShutter, Param: "1"}
	}
	return &Command{Code: codeShutter, Param: "0"}
}

// Response is either a status, like (PWR!001 "Power On"), or an error,
// like (65535 00000 ERR00008 "Invalid parameter").
type Response struct {
	frame protocol.Frame

	Code        string
	Value       int
	Description string
	Error       string
}

func Parse(f protocol.Frame) (protocol.Response, error) {
	if len(f) < 2 || f[0] != openMark || f[len(f)-1] != closeMark {
		return nil, protocol.ErrUnknownFrame
	}
	text := string(f[1 : len(f)-1])
	head, desc, _ := strings.Cut(text, " ")
	if len(head) > 4 && head[3] == statusMark {
		value, err := strconv.Atoi(head[4:])
		if err != nil {
			return nil, fmt.Errorf("status %q: %w", head, protocol.ErrUnknownFrame)
		}
		return &Response{
			frame:       f,
			Code:        head[:3],
			Value:       value,
			Description: unquote(desc),
		}, nil
	}
	for _, field := range strings.Fields(text) {
		if strings.HasPrefix(field, errorMark) {
			_, desc, _ := strings.Cut(text, "\"")
			return &Response{
				frame:       f,
				Error:       field[len(errorMark):],
				Description: unquote("\"" + desc),
			}, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", text, protocol.ErrUnknownFrame)
}

// unquote removes the quotes around s and its escapes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\"")
	s = strings.TrimSuffix(s, "\"")
	var b strings.Builder
	for ii := 0; ii < len(s); ii++ {
		if s[ii] == escape && ii+1 < len(s) {
			ii++
		}
		b.WriteByte(s[ii])
	}
	return b.String()
}

func (r *Response) Frame() protocol.Frame {
	return r.frame
}

func (r *Response) Err() error {
	if r.Error == "" {
		return nil
	}
	return &protocol.DeviceError{Vendor: vendor, Code: r.Error}
}

// Protocol is the Christie serial protocol.
type Protocol struct{}

func (Protocol) Name() string {
	return vendor
}

func (Protocol) Split() serialbuffer.SplitFunc {
	return serialbuffer.BoundedNested(openMark, closeMark, escape)
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
		queryRequest(codeShutter, priority),
	}
}

func (Protocol) Poll(st display.State) []display.Request {
	reqs := []display.Request{queryRequest(codePower, display.PriorityPoll)}
	if st.Power == display.PowerOn {
		reqs = append(reqs, statusQueries(display.PriorityPoll)...)
	}
	return reqs
}

// Handle applies status answers, which the projector sends for queries
// and after executing a command.
func (Protocol) Handle(st display.State, c protocol.Command, r protocol.Response) display.Transition {
	resp, ok := r.(*Response)
	if !ok {
		return display.Stay(st)
	}
	if resp.Err() != nil {
		cmd, _ := c.(*Command)
		return display.Transition{State: st, Retry: cmd != nil && !cmd.IsQuery()}
	}
	next := st
	switch resp.Code {
	case codePower:
		switch resp.Value {
		case powerOff:
			next.Power = display.PowerOff
		case powerOn:
			next.Power = display.PowerOn
		case powerCooling:
			next.Power = display.PowerCooling
		case powerWarming:
			next.Power = display.PowerWarming
		}
	case codeInput:
		if in, ok := inputs.Key(resp.Value); ok {
			next.Input = in
		}
	case codeShutter:
		next.Mute = display.MuteStateOf(resp.Value == 1)
	}
	tr := display.Transition{State: next}
	if display.PoweredOn(st, next) {
		tr.FollowUps = statusQueries(display.PriorityQuery)
	}
	return tr
}
