package postfx

import (
	"fmt"
	"log/slog"
)

// SurfacePair holds the two intermediate surfaces the chain ping-pongs
// between. Both surfaces always have the same size and format; they are
// created and released together.
type SurfacePair struct {
	surfaces      [2]Surface
	width, height int
	format        Format
}

// Create allocates both surfaces. If either allocation fails, both are
// released and the pair is left empty.
func (sp *SurfacePair) Create(dev Device, width, height int) error {
	if dev == nil {
		return ErrNilDevice
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	sp.Release()

	for i := range sp.surfaces {
		s, err := dev.CreateSurface(width, height, sp.format)
		if err != nil {
			sp.Release()
			return fmt.Errorf("%w: intermediate surface %d: %w", ErrResourceCreate, i, err)
		}
		sp.surfaces[i] = s
	}
	sp.width, sp.height = width, height
	return nil
}

// Resize destroys and recreates both surfaces at the new size. Surfaces
// obtained from Surface before the call are invalid afterwards.
func (sp *SurfacePair) Resize(dev Device, width, height int) error {
	if err := sp.Create(dev, width, height); err != nil {
		return err
	}
	Logger().Debug("postfx: intermediate surfaces resized",
		slog.Int("width", width), slog.Int("height", height))
	return nil
}

// Release releases both surfaces and leaves the pair empty.
func (sp *SurfacePair) Release() {
	for i, s := range sp.surfaces {
		if s != nil {
			s.Release()
			sp.surfaces[i] = nil
		}
	}
	sp.width, sp.height = 0, 0
}

// Valid reports whether both surfaces exist.
func (sp *SurfacePair) Valid() bool {
	return sp.surfaces[0] != nil && sp.surfaces[1] != nil
}

// Surface returns surface i (0 or 1), or nil if the pair is empty.
func (sp *SurfacePair) Surface(i int) Surface {
	return sp.surfaces[i&1]
}

// Size returns the dimensions shared by both surfaces.
func (sp *SurfacePair) Size() (width, height int) {
	return sp.width, sp.height
}
