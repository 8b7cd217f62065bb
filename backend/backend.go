package backend

import (
	"errors"
	"image"

	"github.com/gogpu/postfx"
)

// Backend names.
const (
	Native   = "native"
	Software = "software"
	Ebiten   = "ebiten"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or cannot open a device.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrForeignResource is returned when a texture or surface created by
	// another backend is passed in.
	ErrForeignResource = errors.New("backend: resource belongs to another backend")
)

// Backend is a postfx Device together with the plumbing a host needs to
// move images in and out of it.
//
// Every backend stores premultiplied alpha, the image.RGBA convention.
// Effects un-premultiply each sample, work on straight color and premultiply
// the result, so fully opaque images pass through unchanged.
//
// Backends are registered with Register and selected with Get or Default.
type Backend interface {
	postfx.Device

	// Name returns the backend identifier ("software", "native").
	Name() string

	// NewContext returns a context that executes commands on this device.
	NewContext() postfx.Context

	// UploadImage creates a surface holding img.
	UploadImage(img image.Image) (postfx.Surface, error)

	// ReadImage copies a texture created by this backend back to memory.
	ReadImage(t postfx.Texture) (*image.RGBA, error)

	// Close releases the device. The backend must not be used afterwards.
	Close()
}
