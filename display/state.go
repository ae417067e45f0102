package display

import (
	"fmt"
)

// PowerState is the power status of a display.
type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerOff
	PowerWarming
	PowerOn
	PowerCooling
)

func (p PowerState) String() string {
	switch p {
	case PowerUnknown:
		return "unknown"
	case PowerOff:
		return "off"
	case PowerWarming:
		return "warming"
	case PowerOn:
		return "on"
	case PowerCooling:
		return "cooling"
	}
	return fmt.Sprintf("unknown PowerState %d", int(p))
}

// MuteState is the audio mute status of a display.
type MuteState int

const (
	MuteUnknown MuteState = iota
	Unmuted
	Muted
)

func (m MuteState) String() string {
	switch m {
	case MuteUnknown:
		return "unknown"
	case Unmuted:
		return "unmuted"
	case Muted:
		return "muted"
	}
	return fmt.Sprintf("unknown MuteState %d", int(m))
}

// MuteStateOf returns Muted or Unmuted.
func MuteStateOf(muted bool) MuteState {
	if muted {
		return Muted
	}
	return Unmuted
}

// Input is a video source. Vendor drivers map them to their own codes
// and accept only the ones their hardware has.
type Input string

const (
	InputHDMI1       Input = "hdmi1"
	InputHDMI2       Input = "hdmi2"
	InputHDMI3       Input = "hdmi3"
	InputHDMI4       Input = "hdmi4"
	InputDisplayPort Input = "displayport"
	InputDVI         Input = "dvi"
	InputVGA         Input = "vga"
	InputComponent   Input = "component"
	InputVideo       Input = "video"
	InputNetwork     Input = "network"
)

// ScalingMode is the aspect ratio handling of a display.
type ScalingMode string

const (
	ScalingWide   ScalingMode = "wide"
	ScalingNormal ScalingMode = "normal"
	ScalingZoom   ScalingMode = "zoom"
	ScalingNative ScalingMode = "native"
)

// VolumeUnknown is the Volume of a State when the level hasn't been
// read yet.
const VolumeUnknown = -1

// State is the last known state of a display. It's a plain value,
// States can be compared with ==.
type State struct {
	Online  bool
	Power   PowerState
	Input   Input
	Volume  int
	Mute    MuteState
	Scaling ScalingMode
	// Fault is the last fault reported by the display, if any
	Fault string
}

// UnknownState returns a State where nothing is known yet.
func UnknownState() State {
	return State{Volume: VolumeUnknown}
}

func (s State) String() string {
	vol := "?"
	if s.Volume != VolumeUnknown {
		vol = fmt.Sprintf("%d", s.Volume)
	}
	input := s.Input
	if input == "" {
		input = "?"
	}
	str := fmt.Sprintf("online=%v power=%v input=%s volume=%s mute=%v scaling=%s",
		s.Online, s.Power, input, vol, s.Mute, s.Scaling)
	if s.Fault != "" {
		str += " fault=" + s.Fault
	}
	return str
}

// PoweredOn reports whether going from prev to next turned the
// display on.
func PoweredOn(prev, next State) bool {
	return prev.Power != PowerOn && next.Power == PowerOn
}

// Warming is the optimistic transition for a power on command.
func Warming(st State) State {
	if st.Power != PowerOn {
		st.Power = PowerWarming
	}
	return st
}

// Cooling is the optimistic transition for a power off command.
func Cooling(st State) State {
	if st.Power != PowerOff {
		st.Power = PowerCooling
	}
	return st
}
