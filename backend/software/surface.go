package software

import (
	"image"
	"image/color"
	"sync/atomic"

	"golang.org/x/image/draw"
)

// Surface is an RGBA8 image in memory. It is both a texture and a render
// target.
type Surface struct {
	dev      *Device
	w, h     int
	pix      []uint8
	released atomic.Bool
}

// NewSurface returns a cleared surface that is not owned by any device.
// Use it for pipeline inputs and outputs the host manages itself.
func NewSurface(width, height int) *Surface {
	width, height = max(width, 0), max(height, 0)
	return &Surface{w: width, h: height, pix: make([]uint8, width*height*4)}
}

// NewSurfaceFromImage returns an unowned surface holding a copy of img.
func NewSurfaceFromImage(img image.Image) *Surface {
	b := img.Bounds()
	s := NewSurface(b.Dx(), b.Dy())
	dst := &image.RGBA{Pix: s.pix, Stride: s.w * 4, Rect: image.Rect(0, 0, s.w, s.h)}
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return s
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.w }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.h }

// Release frees the surface. Surfaces created by a Device are removed from
// its live count once.
func (s *Surface) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	if s.dev != nil {
		s.dev.untrack(kindSurface)
	}
	s.pix = nil
}

// Pix returns the pixel buffer, 4 bytes per pixel, rows packed.
func (s *Surface) Pix() []uint8 { return s.pix }

// Image returns a copy of the surface as an *image.RGBA.
func (s *Surface) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	copy(img.Pix, s.pix)
	return img
}

// RGBAAt returns the pixel at (x, y). Out-of-range coordinates return
// transparent black.
func (s *Surface) RGBAAt(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= s.w || y >= s.h {
		return color.RGBA{}
	}
	i := (y*s.w + x) * 4
	return color.RGBA{R: s.pix[i], G: s.pix[i+1], B: s.pix[i+2], A: s.pix[i+3]}
}

// SetRGBA sets the pixel at (x, y). Out-of-range coordinates are ignored.
func (s *Surface) SetRGBA(x, y int, c color.RGBA) {
	if x < 0 || y < 0 || x >= s.w || y >= s.h {
		return
	}
	i := (y*s.w + x) * 4
	s.pix[i], s.pix[i+1], s.pix[i+2], s.pix[i+3] = c.R, c.G, c.B, c.A
}

// Fill sets every pixel to c.
func (s *Surface) Fill(c color.Color) {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	for i := 0; i < len(s.pix); i += 4 {
		s.pix[i], s.pix[i+1], s.pix[i+2], s.pix[i+3] = rgba.R, rgba.G, rgba.B, rgba.A
	}
}

// texel returns the normalized color at integer coordinates, which the
// caller has already clamped or wrapped.
func (s *Surface) texel(x, y int) rgba {
	i := (y*s.w + x) * 4
	p := s.pix[i : i+4 : i+4]
	return rgba{
		float32(p[0]) / 255,
		float32(p[1]) / 255,
		float32(p[2]) / 255,
		float32(p[3]) / 255,
	}
}
