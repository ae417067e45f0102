// Package planar implements the ASCII protocol of the Planar
// displays: KEY=VALUE to set, KEY? to query, answered with KEY:VALUE.
// The display also reports changes made with its remote.
package planar

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
	vendor = "planar"

	keyPower   = "DISPLAY.POWER"
	keyInput   = "SOURCE.SELECT"
	keyVolume  = "AUDIO.VOLUME"
	keyMute    = "AUDIO.MUTE"
	keyScaling = "ASPECT"

	on  = "ON"
	off = "OFF"

	errorPrefix = "ERR"
)

var inputs = protocol.NewBimap(map[display.Input]string{
	display.InputHDMI1:       "HDMI.1",
	display.InputHDMI2:       "HDMI.2",
	display.InputDisplayPort: "DP.1",
	display.InputDVI:         "DVI.1",
	display.InputVGA:         "VGA.1",
})

var scalingModes = protocol.NewBimap(map[display.ScalingMode]string{
	display.ScalingWide:   "FILL",
	display.ScalingNormal: "NORMAL",
	display.ScalingZoom:   "ZOOM",
	display.ScalingNative: "NATIVE",
})

// Command sets Key to Value, or queries Key when Value is empty.
type Command struct {
	Key   string
	Value string
}

func (c *Command) Serialize() ([]byte, error) {
	if c.Key == "" {
		return nil, protocol.ErrIncompleteCommand
	}
	if c.Value == "" {
		return []byte(c.Key + "?\r"), nil
	}
	return []byte(c.Key + "=" + c.Value + "\r"), nil
}

func (c *Command) String() string {
	if c.Value == "" {
		return c.Key + "?"
	}
	return c.Key + "=" + c.Value
}

func sameKey(queued, incoming protocol.Command) bool {
	a, ok1 := queued.(*Command)
	b, ok2 := incoming.(*Command)
	return ok1 && ok2 && a.Key == b.Key && (a.Value == "") == (b.Value == "")
}

func onOff(v bool) string {
	if v {
		return on
	}
	return off
}

func QueryCommand(key string) *Command {
	return &Command{Key: key}
}

func PowerCommand(powered bool) *Command {
	return &Command{Key: keyPower, Value: onOff(powered)}
}

func InputCommand(in display.Input) (*Command, error) {
	v, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return &Command{Key: keyInput, Value: v}, nil
}

func VolumeCommand(level int) (*Command, error) {
	if level < 0 || level > 100 {
		return nil, fmt.Errorf("volume %d out of range: %w", level, display.ErrUnsupported)
	}
	return &Command{Key: keyVolume, Value: strconv.Itoa(level)}, nil
}

func MuteCommand(muted bool) *Command {
	return &Command{Key: keyMute, Value: onOff(muted)}
}

func ScalingCommand(mode display.ScalingMode) (*Command, error) {
	v, ok := scalingModes.Value(mode)
	if !ok {
		return nil, fmt.Errorf("scaling mode %q: %w", mode, display.ErrUnsupported)
	}
	return &Command{Key: keyScaling, Value: v}, nil
}

// Response is a KEY:VALUE line, or an error.
type Response struct {
	frame protocol.Frame
	Key   string
	Value string
	Error string
}

func Parse(f protocol.Frame) (protocol.Response, error) {
	line := strings.TrimSpace(string(f))
	if strings.HasPrefix(line, errorPrefix) {
		return &Response{frame: f, Error: strings.TrimSpace(strings.TrimLeft(line[len(errorPrefix):], ": "))}, nil
	}
	key, value, ok := strings.Cut(line, ":")
	if !ok || key == "" {
		return nil, fmt.Errorf("%q: %w", line, protocol.ErrUnknownFrame)
	}
	return &Response{frame: f, Key: key, Value: value}, nil
}

func (r *Response) Frame() protocol.Frame {
	return r.frame
}

func (r *Response) Err() error {
	if r.Key != "" {
		return nil
	}
	return &protocol.DeviceError{Vendor: vendor, Code: r.Error}
}

// Protocol is the Planar protocol.
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

func queryRequest(key string, priority int) display.Request {
	return display.Request{Command: QueryCommand(key), Priority: priority, Comparer: sameKey}
}

func statusQueries(priority int) []display.Request {
	return []display.Request{
		queryRequest(keyInput, priority),
		queryRequest(keyVolume, priority),
		queryRequest(keyMute, priority),
		queryRequest(keyScaling, priority),
	}
}

func (Protocol) Poll(st display.State) []display.Request {
	reqs := []display.Request{queryRequest(keyPower, display.PriorityPoll)}
	if st.Power == display.PowerOn {
		reqs = append(reqs, statusQueries(display.PriorityPoll)...)
	}
	return reqs
}

// Handle only looks at the response, every answer names its key.
func (Protocol) Handle(st display.State, c protocol.Command, r protocol.Response) display.Transition {
	resp, ok := r.(*Response)
	if !ok {
		return display.Stay(st)
	}
	if resp.Err() != nil {
		cmd, _ := c.(*Command)
		return display.Transition{State: st, Retry: cmd != nil && cmd.Value != ""}
	}
	next := st
	switch resp.Key {
	case keyPower:
		switch resp.Value {
		case on:
			next.Power = display.PowerOn
		case off, "STANDBY":
			next.Power = display.PowerOff
		}
	case keyInput:
		if in, ok := inputs.Key(resp.Value); ok {
			next.Input = in
		}
	case keyVolume:
		if n, err := strconv.Atoi(resp.Value); err == nil {
			next.Volume = n
		}
	case keyMute:
		next.Mute = display.MuteStateOf(resp.Value == on)
	case keyScaling:
		if mode, ok := scalingModes.Key(resp.Value); ok {
			next.Scaling = mode
		}
	}
	tr := display.Transition{State: next}
	if display.PoweredOn(st, next) {
		tr.FollowUps = statusQueries(display.PriorityQuery)
	}
	return tr
}
