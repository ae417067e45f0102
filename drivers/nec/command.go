package nec

import (
	"fmt"

	"displayctl/display"
	"displayctl/protocol"
)

type kind int

const (
	kindRaw kind = iota
	kindPowerOn
	kindPowerOff
	kindInput
	kindVolume
	kindMuteOn
	kindMuteOff
	kindRunningStatus
	kindInputStatus
	kindMuteStatus
	kindErrorStatus
)

// Command is a projector command: ID1 ID2, projector ID, model code,
// data length, data and a sum checksum of everything before it.
type Command struct {
	// Header is ID1 ID2
	Header []byte
	Data   []byte

	kind  kind
	input display.Input
	level int
}

var inputs = protocol.NewBimap(map[display.Input]byte{
	display.InputVGA:         0x01,
	display.InputVideo:       0x06,
	display.InputHDMI1:       0x1a,
	display.InputHDMI2:       0x1b,
	display.InputNetwork:     0x20,
	display.InputDisplayPort: 0xa6,
})

// Serialize implements protocol.Command.
func (c *Command) Serialize() ([]byte, error) {
	if len(c.Header) != 2 {
		return nil, protocol.ErrIncompleteCommand
	}
	if len(c.Data) > 0xff {
		return nil, fmt.Errorf("data too long (%d bytes)", len(c.Data))
	}
	buf := make([]byte, 0, frameOverhead+len(c.Data))
	buf = append(buf, c.Header...)
	buf = append(buf, 0x00, 0x00, byte(len(c.Data)))
	buf = append(buf, c.Data...)
	return append(buf, protocol.Sum8(protocol.NewSumChecksum(), buf)), nil
}

func (c *Command) String() string {
	switch c.kind {
	case kindPowerOn:
		return "power on"
	case kindPowerOff:
		return "power off"
	case kindInput:
		return fmt.Sprintf("input %s", c.input)
	case kindVolume:
		return fmt.Sprintf("volume %d", c.level)
	case kindMuteOn:
		return "mute on"
	case kindMuteOff:
		return "mute off"
	case kindRunningStatus:
		return "running status?"
	case kindInputStatus:
		return "input status?"
	case kindMuteStatus:
		return "mute status?"
	case kindErrorStatus:
		return "error status?"
	}
	return fmt.Sprintf("% x % x", c.Header, c.Data)
}

// group returns the commands that replace each other when queued.
func (c *Command) group() kind {
	switch c.kind {
	case kindPowerOff:
		return kindPowerOn
	case kindMuteOff:
		return kindMuteOn
	}
	return c.kind
}

// sameGroup collapses commands of the same group, like volume steps.
func sameGroup(queued, incoming protocol.Command) bool {
	a, ok1 := queued.(*Command)
	b, ok2 := incoming.(*Command)
	return ok1 && ok2 && a.kind != kindRaw && a.group() == b.group()
}

func PowerOnCommand() *Command {
	return &Command{Header: []byte{0x02, 0x00}, kind: kindPowerOn}
}

func PowerOffCommand() *Command {
	return &Command{Header: []byte{0x02, 0x01}, kind: kindPowerOff}
}

// InputCommand returns the command selecting in, or
// display.ErrUnsupported.
func InputCommand(in display.Input) (*Command, error) {
	code, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return &Command{
		Header: []byte{0x02, 0x03},
		Data:   []byte{0x01, code},
		kind:   kindInput,
		input:  in,
	}, nil
}

// VolumeCommand returns the command setting the volume, level must be
// in [0, 100].
func VolumeCommand(level int) (*Command, error) {
	if level < 0 || level > 100 {
		return nil, fmt.Errorf("volume %d out of range: %w", level, display.ErrUnsupported)
	}
	return &Command{
		Header: []byte{0x03, 0x10},
		Data:   []byte{0x05, 0x00, 0x00, byte(level), 0x00},
		kind:   kindVolume,
		level:  level,
	}, nil
}

func MuteCommand(muted bool) *Command {
	if muted {
		return &Command{Header: []byte{0x02, 0x12}, kind: kindMuteOn}
	}
	return &Command{Header: []byte{0x02, 0x13}, kind: kindMuteOff}
}

func RunningStatusCommand() *Command {
	return &Command{Header: []byte{0x00, 0xbf}, Data: []byte{0x02}, kind: kindRunningStatus}
}

func InputStatusCommand() *Command {
	return &Command{Header: []byte{0x00, 0xbf}, Data: []byte{0x03}, kind: kindInputStatus}
}

func MuteStatusCommand() *Command {
	return &Command{Header: []byte{0x00, 0x85}, Data: []byte{0x03}, kind: kindMuteStatus}
}

func ErrorStatusCommand() *Command {
	return &Command{Header: []byte{0x00, 0x88}, kind: kindErrorStatus}
}
