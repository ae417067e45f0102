package samsungpro

import (
	"displayctl/display"
	"displayctl/port"
)

var (
	_ display.PowerCapable    = (*Driver)(nil)
	_ display.InputSelectable = (*Driver)(nil)
	_ display.VolumeCapable   = (*Driver)(nil)
	_ display.MuteCapable     = (*Driver)(nil)
	_ display.ScalingCapable  = (*Driver)(nil)
)

// Driver controls a Samsung professional display.
type Driver struct {
	*display.Controller
	id byte
}

// New returns a Driver for the display with the given ID on p.
func New(p port.Port, id byte, opts ...display.Option) *Driver {
	opts = append([]display.Option{display.WithCommandDelay(commandDelay)}, opts...)
	return &Driver{
		Controller: display.NewController(p, Protocol{ID: id}, opts...),
		id:         id,
	}
}

func command(cmd *Command) display.Request {
	return display.Request{Command: cmd, Priority: display.PriorityCommand, Comparer: sameCode}
}

func (d *Driver) PowerOn() {
	d.Issue(command(PowerCommand(d.id, true)), display.Warming)
}

func (d *Driver) PowerOff() {
	d.Issue(command(PowerCommand(d.id, false)), display.Cooling)
}

func (d *Driver) Inputs() []display.Input {
	return inputs.Keys()
}

func (d *Driver) SetInput(in display.Input) error {
	cmd, err := InputCommand(d.id, in)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}

func (d *Driver) SetVolume(level int) error {
	cmd, err := VolumeCommand(d.id, level)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}

func (d *Driver) SetMute(muted bool) {
	d.Issue(command(MuteCommand(d.id, muted)), nil)
}

func (d *Driver) ScalingModes() []display.ScalingMode {
	return scalingModes.Keys()
}

func (d *Driver) SetScaling(mode display.ScalingMode) error {
	cmd, err := ScalingCommand(d.id, mode)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}
