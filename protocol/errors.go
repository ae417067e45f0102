package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteCommand is returned by Serialize when a required
	// field, like the command code, is missing.
	ErrIncompleteCommand = errors.New("incomplete command")
	// ErrShortFrame is returned when a frame is too short to be valid.
	ErrShortFrame = errors.New("frame too short")
	// ErrChecksum is matched by every ChecksumError.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrUnknownFrame is returned for frames with an unknown header.
	ErrUnknownFrame = errors.New("unknown frame")
)

// ChecksumError is returned when the checksum carried by a frame
// doesn't match the computed one.
type ChecksumError struct {
	Got      byte
	Expected byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("invalid checksum 0x%02x vs expected 0x%02x", e.Got, e.Expected)
}

// Is allows errors.Is(err, ErrChecksum).
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksum
}

// DeviceError is a well formed answer from the device reporting that
// it could not execute a command.
type DeviceError struct {
	Vendor string
	Code   string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s device error %s", e.Vendor, e.Code)
}
