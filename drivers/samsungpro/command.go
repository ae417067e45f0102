// Package samsungpro implements the Samsung MDC protocol used by the
// professional displays.
package samsungpro

import (
	"fmt"

	"displayctl/display"
	"displayctl/protocol"
)

const (
	header = 0xaa

	cmdStatus  = 0x00
	cmdPower   = 0x11
	cmdVolume  = 0x12
	cmdMute    = 0x13
	cmdInput   = 0x14
	cmdScaling = 0x15

	// DefaultID addresses every display on the bus
	DefaultID = 0xfe
)

var inputs = protocol.NewBimap(map[display.Input]byte{
	display.InputComponent:   0x08,
	display.InputVideo:       0x0c,
	display.InputVGA:         0x14,
	display.InputDVI:         0x18,
	display.InputHDMI1:       0x21,
	display.InputHDMI2:       0x23,
	display.InputDisplayPort: 0x25,
	display.InputHDMI3:       0x31,
	display.InputHDMI4:       0x33,
})

var scalingModes = protocol.NewBimap(map[display.ScalingMode]byte{
	display.ScalingWide:   0x10,
	display.ScalingNormal: 0x18,
	display.ScalingNative: 0x20,
	display.ScalingZoom:   0x31,
})

// Command is an MDC command: AA, command, ID, data length, data and
// the sum of every byte after the header.
type Command struct {
	Code byte
	ID   byte
	Data []byte
}

// Serialize implements protocol.Command. A zero Code is the status
// query, so every Command can be serialized.
func (c *Command) Serialize() ([]byte, error) {
	if len(c.Data) > 0xff {
		return nil, fmt.Errorf("data too long (%d bytes)", len(c.Data))
	}
	buf := make([]byte, 0, 5+len(c.Data))
	buf = append(buf, header, c.Code, c.ID, byte(len(c.Data)))
	buf = append(buf, c.Data...)
	return append(buf, protocol.Sum8(protocol.NewSumChecksum(), buf[1:])), nil
}

func (c *Command) String() string {
	if len(c.Data) == 0 {
		return fmt.Sprintf("mdc %02x?", c.Code)
	}
	return fmt.Sprintf("mdc %02x % x", c.Code, c.Data)
}

// IsQuery reports whether the command only reads a value.
func (c *Command) IsQuery() bool {
	return len(c.Data) == 0
}

// sameCode collapses set commands of the same function.
func sameCode(queued, incoming protocol.Command) bool {
	a, ok1 := queued.(*Command)
	b, ok2 := incoming.(*Command)
	return ok1 && ok2 && a.Code == b.Code && a.IsQuery() == b.IsQuery()
}

func boolByte(v bool) byte {
	if v {
		return 0x01
	}
	return 0x00
}

func StatusCommand(id byte) *Command {
	return &Command{Code: cmdStatus, ID: id}
}

func PowerCommand(id byte, on bool) *Command {
	return &Command{Code: cmdPower, ID: id, Data: []byte{boolByte(on)}}
}

func VolumeCommand(id byte, level int) (*Command, error) {
	if level < 0 || level > 100 {
		return nil, fmt.Errorf("volume %d out of range: %w", level, display.ErrUnsupported)
	}
	return &Command{Code: cmdVolume, ID: id, Data: []byte{byte(level)}}, nil
}

func MuteCommand(id byte, muted bool) *Command {
	return &Command{Code: cmdMute, ID: id, Data: []byte{boolByte(muted)}}
}

func InputCommand(id byte, in display.Input) (*Command, error) {
	code, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return &Command{Code: cmdInput, ID: id, Data: []byte{code}}, nil
}

func ScalingCommand(id byte, mode display.ScalingMode) (*Command, error) {
	code, ok := scalingModes.Value(mode)
	if !ok {
		return nil, fmt.Errorf("scaling mode %q: %w", mode, display.ErrUnsupported)
	}
	return &Command{Code: cmdScaling, ID: id, Data: []byte{code}}, nil
}
