// Package neclcd implements the external control protocol of the NEC
// large format LCD monitors (MultiSync P, V and E series), over RS-232
// or the LAN port.
//
// Every message is framed as
//
//	SOH '0' destination source type length STX message ETX BCC CR
//
// where length is the hex encoded size of STX..ETX and BCC is the XOR
// of everything between SOH and BCC. Monitors are addressed 'A' for ID
// 1 up to ID 100.
package neclcd

import (
	"fmt"

	"displayctl/display"
	"displayctl/protocol"
)

// Message types
const (
	typeCommand      = 'A'
	typeCommandReply = 'B'
	typeGet          = 'C'
	typeGetReply     = 'D'
	typeSet          = 'E'
	typeSetReply     = 'F'
)

// Operation codes, page in the high byte. opPower isn't a parameter,
// it identifies the power command replies.
const (
	opInput  uint16 = 0x0060
	opVolume uint16 = 0x0062
	opMute   uint16 = 0x008d
	opAspect uint16 = 0x0270
	opPower  uint16 = 0x00d6
)

// Power modes
const (
	powerOn      = 1
	powerStandby = 2
	powerSuspend = 3
	powerOff     = 4
)

const (
	muteOff = 0
	muteOn  = 1

	maxVolume = 100
	// MaxID is the highest monitor ID.
	MaxID = 100
	// DefaultID is the factory monitor ID.
	DefaultID = 1
)

type kind int

const (
	kindRaw kind = iota
	kindPower
	kindPowerStatus
	kindGet
	kindSet
)

var inputs = protocol.NewBimap(map[display.Input]int{
	display.InputVGA:         0x01,
	display.InputDVI:         0x03,
	display.InputVideo:       0x05,
	display.InputComponent:   0x0c,
	display.InputDisplayPort: 0x0f,
	display.InputHDMI1:       0x11,
	display.InputHDMI2:       0x12,
})

var scalingModes = protocol.NewBimap(map[display.ScalingMode]int{
	display.ScalingNormal: 0x01,
	display.ScalingWide:   0x03,
	display.ScalingZoom:   0x04,
	display.ScalingNative: 0x07,
})

// Address returns the destination byte of the monitor with the given
// ID, between 1 and 100.
func Address(id int) (byte, error) {
	if id < 1 || id > MaxID {
		return 0, fmt.Errorf("monitor ID %d out of range: %w", id, display.ErrUnsupported)
	}
	return byte('A' + id - 1), nil
}

// Command is a message to a monitor.
type Command struct {
	Monitor byte
	Type    byte
	// Message goes between STX and ETX
	Message string

	kind  kind
	op    uint16
	value int
}

// Serialize implements protocol.Command.
func (c *Command) Serialize() ([]byte, error) {
	if c.Monitor == 0 || c.Type == 0 || c.Message == "" {
		return nil, protocol.ErrIncompleteCommand
	}
	size := len(c.Message) + 2
	if size > 0xff {
		return nil, fmt.Errorf("message too long (%d bytes)", size)
	}
	buf := make([]byte, 0, headerSize+size+trailerSize)
	buf = append(buf, soh, reserved, c.Monitor, controller, c.Type)
	buf = append(buf, fmt.Sprintf("%02X", size)...)
	buf = append(buf, stx)
	buf = append(buf, c.Message...)
	buf = append(buf, etx)
	return append(buf, protocol.Sum8(protocol.NewXorChecksum(), buf[1:]), cr), nil
}

func (c *Command) String() string {
	switch c.kind {
	case kindPower:
		if c.value == powerOn {
			return "power on"
		}
		return "power off"
	case kindPowerStatus:
		return "power?"
	case kindGet:
		return fmt.Sprintf("get %04X", c.op)
	case kindSet:
		return fmt.Sprintf("set %04X=%d", c.op, c.value)
	}
	return fmt.Sprintf("%c %q", c.Type, c.Message)
}

// sets reports whether c changes the monitor.
func (c *Command) sets() bool {
	return c.kind == kindPower || c.kind == kindSet
}

// sameOperation collapses queued commands changing the same thing.
func sameOperation(queued, incoming protocol.Command) bool {
	a, ok1 := queued.(*Command)
	b, ok2 := incoming.(*Command)
	return ok1 && ok2 && a.kind != kindRaw && a.kind == b.kind && a.op == b.op && a.Monitor == b.Monitor
}

func PowerCommand(monitor byte, on bool) *Command {
	mode := powerOff
	if on {
		mode = powerOn
	}
	return &Command{
		Monitor: monitor,
		Type:    typeCommand,
		Message: fmt.Sprintf("C203D6%04X", mode),
		kind:    kindPower,
		op:      opPower,
		value:   mode,
	}
}

func PowerStatusCommand(monitor byte) *Command {
	return &Command{Monitor: monitor, Type: typeCommand, Message: "01D6", kind: kindPowerStatus, op: opPower}
}

// GetCommand reads the parameter op.
func GetCommand(monitor byte, op uint16) *Command {
	return &Command{Monitor: monitor, Type: typeGet, Message: fmt.Sprintf("%04X", op), kind: kindGet, op: op}
}

// SetCommand sets the parameter op to value.
func SetCommand(monitor byte, op uint16, value int) *Command {
	return &Command{
		Monitor: monitor,
		Type:    typeSet,
		Message: fmt.Sprintf("%04X%04X", op, value),
		kind:    kindSet,
		op:      op,
		value:   value,
	}
}

func InputCommand(monitor byte, in display.Input) (*Command, error) {
	code, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return SetCommand(monitor, opInput, code), nil
}

func VolumeCommand(monitor byte, level int) (*Command, error) {
	if level < 0 || level > maxVolume {
		return nil, fmt.Errorf("volume %d out of range: %w", level, display.ErrUnsupported)
	}
	return SetCommand(monitor, opVolume, level), nil
}

func MuteCommand(monitor byte, muted bool) *Command {
	if muted {
		return SetCommand(monitor, opMute, muteOn)
	}
	return SetCommand(monitor, opMute, muteOff)
}

func ScalingCommand(monitor byte, mode display.ScalingMode) (*Command, error) {
	code, ok := scalingModes.Value(mode)
	if !ok {
		return nil, fmt.Errorf("scaling %q: %w", mode, display.ErrUnsupported)
	}
	return SetCommand(monitor, opAspect, code), nil
}
