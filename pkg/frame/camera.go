package frame

import (
	"errors"
	"image"
)

// Facing selects the preferred camera when a device has several.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

var (
	// ErrPermissionDenied is returned when the user or the platform refuses
	// access to the camera.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrDeviceUnavailable is returned when no suitable camera exists or the
	// device fails while in use.
	ErrDeviceUnavailable = errors.New("no camera device available")
)

// Camera grants exclusive access to a live video stream.
type Camera interface {
	// Open requests access to the camera facing the given direction.
	Open(facing Facing) (Stream, error)
}

// Stream is a live camera stream owned by a single scan session.
type Stream interface {
	// Frame returns the latest video frame. ok is false when no frame is
	// ready yet; that is not an error.
	Frame() (img image.Image, ok bool, err error)
	// Close releases the device.
	Close() error
}
