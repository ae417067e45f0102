package samsungconsumer

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

// Driver controls a Samsung consumer TV. Its state only reflects the
// commands the TV acknowledged.
type Driver struct {
	*display.Controller
}

func New(p port.Port, opts ...display.Option) *Driver {
	opts = append([]display.Option{display.WithCommandDelay(commandDelay)}, opts...)
	return &Driver{
		Controller: display.NewController(p, Protocol{}, opts...),
	}
}

func command(cmd *Command) display.Request {
	return display.Request{Command: cmd, Priority: display.PriorityCommand, Comparer: sameKind}
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

func (d *Driver) SetVolume(level int) error {
	cmd, err := VolumeCommand(level)
	if err != nil {
		return err
	}
	d.Issue(command(cmd), nil)
	return nil
}

// SetMute toggles the mute when the expected state differs. The state
// is updated right away so a second call toggles it back.
//
// The TV can't be asked whether it's muted. Until a toggle has been
// acknowledged the mute is unknown; the TVs start unmuted, so
// unmuting then just records Unmuted instead of sending a blind
// toggle.
func (d *Driver) SetMute(muted bool) {
	want := display.MuteStateOf(muted)
	current := d.State().Mute
	if current == want {
		return
	}
	if current == display.MuteUnknown {
		d.Logger().Warnf("mute state unknown, assuming the TV is unmuted")
		if !muted {
			d.Update(func(st display.State) display.State {
				st.Mute = display.Unmuted
				return st
			})
			return
		}
	}
	d.Issue(command(MuteToggleCommand(muted)), func(st display.State) display.State {
		st.Mute = want
		return st
	})
}
