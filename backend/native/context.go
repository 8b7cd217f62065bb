package native

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx"
)

// Context records draws and copies into a command encoder. Nothing
// reaches the GPU until Flush.
type Context struct {
	dev *Device

	encoder    hal.CommandEncoder
	recording  bool
	bindGroups []hal.BindGroup

	target   *Surface
	viewport [4]int
	vs, ps   *Shader
	texture  *Surface
	sampler  *Sampler
	uniform  *Buffer
	geometry *Geometry

	draws  int
	copies int
}

func newContext(d *Device) *Context {
	return &Context{dev: d}
}

// Draws returns the number of draws recorded.
func (c *Context) Draws() int { return c.draws }

// Copies returns the number of texture copies recorded.
func (c *Context) Copies() int { return c.copies }

func (c *Context) begin() error {
	if c.recording {
		return nil
	}
	if c.dev.isClosed() {
		return ErrClosed
	}
	if c.encoder == nil {
		enc, err := c.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
			Label: c.dev.label("postfx_encoder"),
		})
		if err != nil {
			return fmt.Errorf("native: create command encoder: %w", err)
		}
		c.encoder = enc
	}
	if err := c.encoder.BeginEncoding(c.dev.label("postfx_frame")); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	c.recording = true
	return nil
}

// use records a usage transition for s when its usage changes.
func (c *Context) use(s *Surface, usage gputypes.TextureUsage) {
	if s.usage == usage {
		return
	}
	c.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: s.tex,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
		Usage:   hal.TextureUsageTransition{OldUsage: s.usage, NewUsage: usage},
	}})
	s.usage = usage
}

// UpdateBuffer writes data to the start of b through the queue.
func (c *Context) UpdateBuffer(b postfx.Buffer, data []byte) error {
	buf, ok := b.(*Buffer)
	if !ok || buf.dev != c.dev || buf.released {
		return fmt.Errorf("native: update of invalid buffer %T", b)
	}
	if len(data) > buf.size {
		return fmt.Errorf("native: %d bytes do not fit a %d byte buffer", len(data), buf.size)
	}
	if err := c.dev.queue.WriteBuffer(buf.buf, 0, data); err != nil {
		return fmt.Errorf("native: write buffer: %w", err)
	}
	return nil
}

// SetRenderTarget binds the output surface.
func (c *Context) SetRenderTarget(t postfx.RenderTarget) {
	c.target, _ = t.(*Surface)
}

// SetViewport sets the output rectangle in pixels.
func (c *Context) SetViewport(x, y, width, height int) {
	c.viewport = [4]int{x, y, width, height}
}

// SetShaders binds the program pair.
func (c *Context) SetShaders(vs, ps postfx.Shader) {
	c.vs, _ = vs.(*Shader)
	c.ps, _ = ps.(*Shader)
}

// SetTexture binds t to slot 0; other slots are not used by any pass.
func (c *Context) SetTexture(slot int, t postfx.Texture) {
	if slot == 0 {
		c.texture, _ = t.(*Surface)
	}
}

// SetSampler binds s to slot 0.
func (c *Context) SetSampler(slot int, s postfx.Sampler) {
	if slot == 0 {
		c.sampler, _ = s.(*Sampler)
	}
}

// SetUniformBuffer binds b to slot 0.
func (c *Context) SetUniformBuffer(slot int, b postfx.Buffer) {
	if slot == 0 {
		c.uniform, _ = b.(*Buffer)
	}
}

// SetGeometry binds the vertex buffer.
func (c *Context) SetGeometry(g postfx.Geometry) {
	c.geometry, _ = g.(*Geometry)
}

func (c *Context) validate(vertexCount int) error {
	switch {
	case c.target == nil || c.target.released:
		return errors.New("no render target")
	case c.vs == nil || c.ps == nil || c.vs.released || c.ps.released:
		return errors.New("no shader program")
	case c.texture == nil || c.texture.released:
		return errors.New("no input texture")
	case c.texture == c.target:
		return postfx.ErrSameResource
	case c.sampler == nil:
		return errors.New("no sampler")
	case c.uniform == nil || c.uniform.size < postfx.ParamsBlockSize:
		return errors.New("no parameter buffer")
	case c.geometry == nil || vertexCount <= 0 || vertexCount > c.geometry.count:
		return fmt.Errorf("draw of %d vertices without matching geometry", vertexCount)
	case c.viewport[2] <= 0 || c.viewport[3] <= 0:
		return errors.New("empty viewport")
	}
	return nil
}

// Draw records one render pass that runs the bound program over the
// viewport. Incomplete state drops the draw with a warning.
func (c *Context) Draw(vertexCount int) {
	if err := c.draw(vertexCount); err != nil {
		postfx.Logger().Warn("native: draw dropped", slog.Any("error", err))
	}
}

func (c *Context) draw(vertexCount int) error {
	if err := c.validate(vertexCount); err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	d := c.dev
	pipeline, err := d.pipelines.GetOrCreate(d, c.vs, c.ps)
	if err != nil {
		return err
	}
	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  d.label(c.ps.name + "_bind_group"),
		Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: c.uniform.buf.NativeHandle(),
				Size:   postfx.ParamsBlockSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: c.texture.view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: c.sampler.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	c.bindGroups = append(c.bindGroups, group)

	c.use(c.texture, gputypes.TextureUsageTextureBinding)
	c.use(c.target, gputypes.TextureUsageRenderAttachment)

	vp := c.viewport
	load := gputypes.LoadOpLoad
	if vp[0] <= 0 && vp[1] <= 0 && vp[0]+vp[2] >= c.target.w && vp[1]+vp[3] >= c.target.h {
		load = gputypes.LoadOpClear
	}
	rp := c.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: d.label(c.ps.name + "_pass"),
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    c.target.view,
			LoadOp:  load,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, group, nil)
	rp.SetVertexBuffer(0, c.geometry.buf, 0)
	rp.SetViewport(float32(vp[0]), float32(vp[1]), float32(vp[2]), float32(vp[3]), 0, 1)
	rp.Draw(uint32(vertexCount), 1, 0, 0)
	rp.End()
	c.draws++
	return nil
}

// CopyTexture records a texture-to-texture copy. Both surfaces must
// belong to this device and have the same size.
func (c *Context) CopyTexture(dst postfx.RenderTarget, src postfx.Texture) error {
	d, ok1 := dst.(*Surface)
	s, ok2 := src.(*Surface)
	if !ok1 || !ok2 || d.dev != c.dev || s.dev != c.dev {
		return fmt.Errorf("native: copy between foreign resources %T and %T", dst, src)
	}
	if d == s {
		return postfx.ErrSameResource
	}
	if d.w != s.w || d.h != s.h {
		return fmt.Errorf("native: copy size mismatch %dx%d to %dx%d", s.w, s.h, d.w, d.h)
	}
	if err := c.begin(); err != nil {
		return err
	}
	c.use(s, gputypes.TextureUsageCopySrc)
	c.use(d, gputypes.TextureUsageCopyDst)
	c.encoder.CopyTextureToTexture(s.tex, d.tex, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: s.tex, Aspect: gputypes.TextureAspectAll},
		DstBase: hal.ImageCopyTexture{Texture: d.tex, Aspect: gputypes.TextureAspectAll},
		Size:    s.extent(),
	}})
	c.copies++
	return nil
}

// Flush submits the recorded frame and waits for it to complete.
func (c *Context) Flush() error {
	if !c.recording {
		return nil
	}
	c.recording = false
	defer c.releaseBindGroups()

	d := c.dev
	cmd, err := c.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("native: wait idle: %w", err)
	}
	return nil
}

func (c *Context) releaseBindGroups() {
	for _, g := range c.bindGroups {
		c.dev.device.DestroyBindGroup(g)
	}
	c.bindGroups = c.bindGroups[:0]
}

// Release discards any unsubmitted commands and destroys the encoder.
func (c *Context) Release() {
	if c.recording {
		c.encoder.DiscardEncoding()
		c.recording = false
	}
	c.releaseBindGroups()
	if c.encoder != nil {
		c.encoder.Destroy()
		c.encoder = nil
	}
}
