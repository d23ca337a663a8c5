package audio

import "fmt"

// DeviceError reports a capture or playback device fault, including denied or
// missing microphone access. Device faults are terminal for the current
// operation and require a new user action.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func NewDeviceError(op string, err error) *DeviceError {
	return &DeviceError{Op: op, Err: err}
}
