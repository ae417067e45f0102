package panasonic

import (
	"displayctl/display"
	"displayctl/port"
)

var (
	_ display.PowerCapable    = (*Driver)(nil)
	_ display.InputSelectable = (*Driver)(nil)
	_ display.VolumeCapable   = (*Driver)(nil)
	_ display.MuteCapable     = (*Driver)(nil)
)

// Driver controls a Panasonic projector.
type Driver struct {
	*display.Controller
}

func New(p port.Port, opts ...display.Option) *Driver {
	return &Driver{
		Controller: display.NewController(p, Protocol{}, opts...),
	}
}

func command(cmd *Command) display.Request {
	return display.Request{Command: cmd, Priority: display.PriorityCommand, Comparer: sameGroup}
}

func (d *Driver) PowerOn() {
	d.Issue(command(PowerCommand(true)), display.Warming)
}

func (d *Driver) PowerOff() {
	d.Issue(command(PowerCommand(false)), display.Cooling)
}

func (d *Driver) Inputs() []display.Input {
	return inputs.Keys()
}

func (d *Driver) SetInput(in display.Input) error {
	cmd, err := InputCommand(in)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}

// SetVolume accepts levels from 0 to 63, the range of the projector.
func (d *Driver) SetVolume(level int) error {
	cmd, err := VolumeCommand(level)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}

func (d *Driver) SetMute(muted bool) {
	d.Issue(command(MuteCommand(muted)), nil)
}
