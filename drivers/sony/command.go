// Package sony implements the serial protocol of the Sony Bravia
// professional displays.
package sony

import (
	"fmt"

	"displayctl/display"
	"displayctl/protocol"
)

const (
	controlHeader = 0x8c
	queryHeader   = 0x83
	category      = 0x00

	funcPower  = 0x00
	funcInput  = 0x02
	funcVolume = 0x05
	funcMute   = 0x06
)

var inputs = protocol.NewBimap(map[display.Input][2]byte{
	display.InputVideo:     {0x02, 0x01},
	display.InputComponent: {0x03, 0x01},
	display.InputHDMI1:     {0x04, 0x01},
	display.InputHDMI2:     {0x04, 0x02},
	display.InputHDMI3:     {0x04, 0x03},
	display.InputHDMI4:     {0x04, 0x04},
	display.InputVGA:       {0x05, 0x01},
})

// Command is either a control command (8C 00 function length data
// checksum) or a query (83 00 function FF FF checksum). The checksum
// is the sum of the previous bytes.
type Command struct {
	Query    bool
	Function byte
	Data     []byte
}

func (c *Command) Serialize() ([]byte, error) {
	var buf []byte
	if c.Query {
		buf = []byte{queryHeader, category, c.Function, 0xff, 0xff}
	} else {
		if len(c.Data) == 0 {
			return nil, protocol.ErrIncompleteCommand
		}
		if len(c.Data) > 0xfe {
			return nil, fmt.Errorf("data too long (%d bytes)", len(c.Data))
		}
		buf = []byte{controlHeader, category, c.Function, byte(len(c.Data) + 1)}
		buf = append(buf, c.Data...)
	}
	return append(buf, protocol.Sum8(protocol.NewSumChecksum(), buf)), nil
}

func (c *Command) String() string {
	if c.Query {
		return fmt.Sprintf("bravia %02x?", c.Function)
	}
	return fmt.Sprintf("bravia %02x % x", c.Function, c.Data)
}

func sameFunction(queued, incoming protocol.Command) bool {
	a, ok1 := queued.(*Command)
	b, ok2 := incoming.(*Command)
	return ok1 && ok2 && a.Function == b.Function && a.Query == b.Query
}

func QueryCommand(function byte) *Command {
	return &Command{Query: true, Function: function}
}

func PowerCommand(on bool) *Command {
	v := byte(0x00)
	if on {
		v = 0x01
	}
	return &Command{Function: funcPower, Data: []byte{v}}
}

func InputCommand(in display.Input) (*Command, error) {
	code, ok := inputs.Value(in)
	if !ok {
		return nil, fmt.Errorf("input %q: %w", in, display.ErrUnsupported)
	}
	return &Command{Function: funcInput, Data: code[:]}, nil
}

func VolumeCommand(level int) (*Command, error) {
	if level < 0 || level > 100 {
		return nil, fmt.Errorf("volume %d out of range: %w", level, display.ErrUnsupported)
	}
	return &Command{Function: funcVolume, Data: []byte{0x01, byte(level)}}, nil
}

func MuteCommand(muted bool) *Command {
	v := byte(0x00)
	if muted {
		v = 0x01
	}
	return &Command{Function: funcMute, Data: []byte{0x01, v}}
}
