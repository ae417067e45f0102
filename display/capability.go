package display

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by a driver for values its hardware
// doesn't have, like an input it can't select.
var ErrUnsupported = errors.New("unsupported by this display")

// Display is implemented by every driver. The capabilities below are
// implemented only by the drivers whose hardware has them, use a type
// assertion to find out.
type Display interface {
	Name() string
	Driver() string
	State() State
	// Poll queries the display state now instead of waiting for
	// the next poll.
	Poll()
	Run(ctx context.Context) error
}

type PowerCapable interface {
	PowerOn()
	PowerOff()
}

type InputSelectable interface {
	Inputs() []Input
	SetInput(input Input) error
}

// VolumeCapable displays accept levels from 0 to 100, unless the
// driver documents a smaller range.
type VolumeCapable interface {
	SetVolume(level int) error
}

type MuteCapable interface {
	SetMute(muted bool)
}

type ScalingCapable interface {
	ScalingModes() []ScalingMode
	SetScaling(mode ScalingMode) error
}
