package software

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/postfx"
)

const maxSlots = 4

// Context executes pipeline commands immediately on the CPU.
type Context struct {
	dev *Device

	target   *Surface
	viewport image.Rectangle
	vs, ps   *Shader
	textures [maxSlots]*Surface
	samplers [maxSlots]*Sampler
	uniforms [maxSlots]*Buffer
	geometry *Geometry

	draws int
}

func newContext(d *Device) *Context {
	return &Context{dev: d}
}

// Draws returns the number of draws executed.
func (c *Context) Draws() int { return c.draws }

// UpdateBuffer copies data into b.
func (c *Context) UpdateBuffer(b postfx.Buffer, data []byte) error {
	buf, ok := b.(*Buffer)
	if !ok || buf.released {
		return fmt.Errorf("software: update of invalid buffer %T", b)
	}
	if len(data) > len(buf.data) {
		return fmt.Errorf("software: %d bytes do not fit a %d byte buffer", len(data), len(buf.data))
	}
	copy(buf.data, data)
	return nil
}

// SetRenderTarget binds the output surface.
func (c *Context) SetRenderTarget(t postfx.RenderTarget) {
	c.target, _ = t.(*Surface)
}

// SetViewport sets the output rectangle.
func (c *Context) SetViewport(x, y, width, height int) {
	c.viewport = image.Rect(x, y, x+width, y+height)
}

// SetShaders binds the program pair.
func (c *Context) SetShaders(vs, ps postfx.Shader) {
	c.vs, _ = vs.(*Shader)
	c.ps, _ = ps.(*Shader)
}

// SetTexture binds t to slot; nil unbinds.
func (c *Context) SetTexture(slot int, t postfx.Texture) {
	if slot < 0 || slot >= maxSlots {
		return
	}
	c.textures[slot], _ = t.(*Surface)
}

// SetSampler binds s to slot.
func (c *Context) SetSampler(slot int, s postfx.Sampler) {
	if slot < 0 || slot >= maxSlots {
		return
	}
	c.samplers[slot], _ = s.(*Sampler)
}

// SetUniformBuffer binds b to slot.
func (c *Context) SetUniformBuffer(slot int, b postfx.Buffer) {
	if slot < 0 || slot >= maxSlots {
		return
	}
	c.uniforms[slot], _ = b.(*Buffer)
}

// SetGeometry binds the vertex buffer.
func (c *Context) SetGeometry(g postfx.Geometry) {
	c.geometry, _ = g.(*Geometry)
}

// Draw runs the bound pixel kernel over every pixel of the viewport,
// clipped to the target. Incomplete state drops the draw with a warning.
func (c *Context) Draw(vertexCount int) {
	if err := c.validate(vertexCount); err != nil {
		postfx.Logger().Warn("software: draw dropped", slog.Any("error", err))
		return
	}

	params, res, err := postfx.DecodeBlock(c.uniforms[0].data)
	if err != nil {
		postfx.Logger().Warn("software: draw dropped", slog.Any("error", err))
		return
	}
	desc := postfx.SamplerDesc{}
	if s := c.samplers[0]; s != nil {
		desc = s.desc
	}
	in := &kernelInput{
		tex: sampler2D{src: c.textures[0], desc: desc},
		p:   params,
		res: res,
	}

	dst := c.target
	vp := c.viewport
	area := vp.Intersect(image.Rect(0, 0, dst.w, dst.h))
	vw, vh := float32(vp.Dx()), float32(vp.Dy())
	k := c.ps.kernel

	c.dev.pool.Rows(area.Dy(), c.dev.minBand, func(y0, y1 int) {
		for y := area.Min.Y + y0; y < area.Min.Y+y1; y++ {
			v := (float32(y-vp.Min.Y) + 0.5) / vh
			row := dst.pix[y*dst.w*4:]
			for x := area.Min.X; x < area.Max.X; x++ {
				u := (float32(x-vp.Min.X) + 0.5) / vw
				out := premultiply(k(in, u, v))
				i := x * 4
				row[i] = quantize(out[0])
				row[i+1] = quantize(out[1])
				row[i+2] = quantize(out[2])
				row[i+3] = quantize(out[3])
			}
		}
	})
	c.draws++
}

func (c *Context) validate(vertexCount int) error {
	switch {
	case c.target == nil || c.target.released.Load():
		return fmt.Errorf("no render target")
	case c.vs == nil || c.ps == nil || c.ps.kernel == nil:
		return fmt.Errorf("no shader program")
	case c.textures[0] == nil || c.textures[0].released.Load():
		return fmt.Errorf("no input texture")
	case c.textures[0] == c.target:
		return postfx.ErrSameResource
	case c.uniforms[0] == nil:
		return fmt.Errorf("no parameter buffer")
	case c.geometry == nil || vertexCount > len(c.geometry.vertices):
		return fmt.Errorf("draw of %d vertices without matching geometry", vertexCount)
	case c.viewport.Empty():
		return fmt.Errorf("empty viewport")
	}
	return nil
}

// CopyTexture copies src into dst. Both must be software surfaces of the
// same size.
func (c *Context) CopyTexture(dst postfx.RenderTarget, src postfx.Texture) error {
	d, ok1 := dst.(*Surface)
	s, ok2 := src.(*Surface)
	if !ok1 || !ok2 {
		return fmt.Errorf("software: copy between foreign resources %T and %T", dst, src)
	}
	if d.w != s.w || d.h != s.h {
		return fmt.Errorf("software: copy size mismatch %dx%d to %dx%d", s.w, s.h, d.w, d.h)
	}
	copy(d.pix, s.pix)
	return nil
}

// Flush does nothing: CPU draws complete before Draw returns.
func (c *Context) Flush() error { return nil }
