package neclcd

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

// Driver controls an NEC large format monitor.
type Driver struct {
	*display.Controller
	monitor byte
}

// New returns a Driver for the monitor at the address monitor on p,
// see Address.
func New(p port.Port, monitor byte, opts ...display.Option) *Driver {
	opts = append([]display.Option{display.WithCommandDelay(commandDelay)}, opts...)
	return &Driver{
		Controller: display.NewController(p, Protocol{Monitor: monitor}, opts...),
		monitor:    monitor,
	}
}

func command(cmd *Command) display.Request {
	return display.Request{Command: cmd, Priority: display.PriorityCommand, Comparer: sameOperation}
}

func (d *Driver) PowerOn() {
	d.Issue(command(PowerCommand(d.monitor, true)), display.Warming)
}

func (d *Driver) PowerOff() {
	d.Issue(command(PowerCommand(d.monitor, false)), display.Cooling)
}

func (d *Driver) Inputs() []display.Input {
	return inputs.Keys()
}

func (d *Driver) SetInput(in display.Input) error {
	cmd, err := InputCommand(d.monitor, in)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}

func (d *Driver) SetVolume(level int) error {
	cmd, err := VolumeCommand(d.monitor, level)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}

func (d *Driver) SetMute(muted bool) {
	d.Issue(command(MuteCommand(d.monitor, muted)), nil)
}

func (d *Driver) ScalingModes() []display.ScalingMode {
	return scalingModes.Keys()
}

func (d *Driver) SetScaling(mode display.ScalingMode) error {
	cmd, err := ScalingCommand(d.monitor, mode)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}
