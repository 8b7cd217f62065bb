package native

import (
	"fmt"
	"image"
	"log/slog"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/draw"

	"github.com/gogpu/postfx"
)

// copyRowAlignment is the bytes-per-row alignment for buffer/texture copies.
const copyRowAlignment = 256

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	return rgba
}

func (d *Device) upload(img image.Image) (*Surface, error) {
	rgba := toRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", postfx.ErrInvalidSize, w, h)
	}
	s, err := d.createSurface(w, h)
	if err != nil {
		return nil, err
	}
	size := s.extent()
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: s.tex, Aspect: gputypes.TextureAspectAll},
		rgba.Pix,
		&hal.ImageDataLayout{BytesPerRow: uint32(rgba.Stride), RowsPerImage: uint32(h)},
		&size,
	)
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("native: upload %dx%d: %w", w, h, err)
	}
	s.usage = gputypes.TextureUsageCopyDst
	return s, nil
}

func (d *Device) readback(s *Surface) (*image.RGBA, error) {
	if s.released {
		return nil, fmt.Errorf("native: read of released surface")
	}
	rowBytes := 4 * s.w
	stride := postfx.AlignedSize(rowBytes, copyRowAlignment)
	size := uint64(stride * s.h)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: d.label("postfx_readback"),
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: readback buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: d.label("postfx_readback")})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	defer enc.Destroy()
	if err := enc.BeginEncoding(d.label("postfx_readback")); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	if s.usage != gputypes.TextureUsageCopySrc {
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: s.tex,
			Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
			Usage:   hal.TextureUsageTransition{OldUsage: s.usage, NewUsage: gputypes.TextureUsageCopySrc},
		}})
		s.usage = gputypes.TextureUsageCopySrc
	}
	enc.CopyTextureToBuffer(s.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: uint32(stride), RowsPerImage: uint32(s.h)},
		TextureBase:  hal.ImageCopyTexture{Texture: s.tex, Aspect: gputypes.TextureAspectAll},
		Size:         s.extent(),
	}})
	cmd, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return nil, fmt.Errorf("native: submit readback: %w", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return nil, fmt.Errorf("native: wait idle: %w", err)
	}

	m, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("native: map readback buffer: %w", err)
	}
	defer unmapReadback(d.device, staging)
	data := unsafe.Slice((*byte)(m.Ptr), size)

	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	for y := range s.h {
		copy(img.Pix[y*img.Stride:y*img.Stride+rowBytes], data[y*stride:])
	}
	return img, nil
}

// unmapReadback unmaps buf. The pixels are already copied out, so a failure
// is logged rather than returned.
func unmapReadback(dev hal.Device, buf hal.Buffer) {
	if err := dev.UnmapBuffer(buf); err != nil {
		postfx.Logger().Warn("native: unmap readback buffer", slog.Any("error", err))
	}
}
