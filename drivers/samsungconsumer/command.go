// Package samsungconsumer implements the Ex-Link protocol of the
// Samsung consumer TVs. The TV only acknowledges commands, nothing
// can be queried.
package samsungconsumer

import (
	"fmt"

	"displayctl/display"
	"displayctl/protocol"
)

var _ protocol.Toggle = (*Command)(nil)

type kind int

const (
	kindRaw kind = iota
	kindPower
	kindVolume
	kindMute
	kindInput
)

var inputs = protocol.NewBimap(map[display.Input][2]byte{
	display.InputVideo:     {0x01, 0x00},
	display.InputComponent: {0x03, 0x00},
	display.InputVGA:       {0x04, 0x00},
	display.InputHDMI1:     {0x05, 0x00},
	display.InputHDMI2:     {0x05, 0x01},
	display.InputHDMI3:     {0x05, 0x02},
	display.InputHDMI4:     {0x05, 0x03},
})

// Command is an Ex-Link command: 08 22, four code bytes and the two's
// complement of the sum of the previous bytes.
type Command struct {
	Code [4]byte

	kind  kind
	on    bool
	level int
	input display.Input
}

// Serialize implements protocol.Command.
func (c *Command) Serialize() ([]byte, error) {
	if c.Code == [4]byte{} {
		return nil, protocol.ErrIncompleteCommand
	}
	buf := []byte{0x08, 0x22, c.Code[0], c.Code[1], c.Code[2], c.Code[3]}
	return append(buf, protocol.Sum8(protocol.NewTwosComplementChecksum(), buf)), nil
}

func (c *Command) String() string {
	switch c.kind {
	case kindPower:
		if c.on {
			return "power on"
		}
		return "power off"
	case kindVolume:
		return fmt.Sprintf("volume %d", c.level)
	case kindMute:
		return "mute toggle"
	case kindInput:
		return fmt.Sprintf("input %s", c.input)
	}
	return fmt.Sprintf("exlink % x", c.Code)
}

// Toggles implements protocol.Toggle, the mute command is a toggle.
func (c *Command) Toggles() bool {
	return c.kind == kindMute
}

// sameKind collapses queued commands of the same kind, except the
// mute toggles since two of them cancel each other.
func sameKind(queued, incoming protocol.Command) bool {
	a, ok1 := queued.(*Command)
	b, ok2 := incoming.(*Command)
	return ok1 && ok2 && a.kind != kindRaw && a.kind != kindMute && a.kind == b.kind
}

func PowerCommand(on bool) *Command {
	code := byte(0x01)
	if on {
		code = 0x02
	}
	return &Command{Code: [4]byte{0x00, 0x00, 0x00, code}, kind: kindPower, on: on}
}

func VolumeCommand(level int) (*Command, error) {
	if level < 0 || level > 100 {
		return nil, fmt.Errorf("volume %d out of range: %w", level, display.ErrUnsupported)
	}
	return &Command{Code: [4]byte{0x01, 0x00, 0x00, byte(level)}, kind: kindVolume, level: level}, nil
}

// MuteToggleCommand toggles the mute, muted is the expected result.
func MuteToggleCommand(muted bool) *Command {
	return &Command{Code: [4]byte{0x02, 0x00, 0x00, 0x00}, kind: kindMute, on: muted}
}

func InputCommand(in display.Input) (*Command, error) {
	code, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return &Command{Code: [4]byte{0x0a, 0x00, code[0], code[1]}, kind: kindInput, input: in}, nil
}
