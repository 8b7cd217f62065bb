package kage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/postfx"
)

// Context issues Ebitengine draw calls.
type Context struct {
	dev *Device

	target   *Surface
	viewport [4]int
	ps       *Shader
	texture  *Surface
	uniform  *Buffer
	geometry *Geometry

	vertices []ebiten.Vertex
	indices  []uint16
	draws    int
}

// Draws returns the number of draws issued.
func (c *Context) Draws() int { return c.draws }

// UpdateBuffer copies data into b.
func (c *Context) UpdateBuffer(b postfx.Buffer, data []byte) error {
	buf, ok := b.(*Buffer)
	if !ok || buf.released {
		return fmt.Errorf("kage: update of invalid buffer %T", b)
	}
	if len(data) > len(buf.data) {
		return fmt.Errorf("kage: %d bytes do not fit a %d byte buffer", len(data), len(buf.data))
	}
	copy(buf.data, data)
	return nil
}

// SetRenderTarget binds the output surface.
func (c *Context) SetRenderTarget(t postfx.RenderTarget) { c.target, _ = t.(*Surface) }

// SetViewport sets the output rectangle.
func (c *Context) SetViewport(x, y, width, height int) {
	c.viewport = [4]int{x, y, width, height}
}

// SetShaders binds the pixel program; the vertex stage is implicit.
func (c *Context) SetShaders(_, ps postfx.Shader) { c.ps, _ = ps.(*Shader) }

// SetTexture binds t as source image 0.
func (c *Context) SetTexture(slot int, t postfx.Texture) {
	if slot == 0 {
		c.texture, _ = t.(*Surface)
	}
}

// SetSampler is accepted for interface compatibility.
func (c *Context) SetSampler(int, postfx.Sampler) {}

// SetUniformBuffer binds b as the Params uniform.
func (c *Context) SetUniformBuffer(slot int, b postfx.Buffer) {
	if slot == 0 {
		c.uniform, _ = b.(*Buffer)
	}
}

// SetGeometry binds the quad.
func (c *Context) SetGeometry(g postfx.Geometry) { c.geometry, _ = g.(*Geometry) }

func (c *Context) validate(vertexCount int) error {
	switch {
	case c.target == nil || c.target.released:
		return errors.New("no render target")
	case c.ps == nil || c.ps.shader == nil || c.ps.released:
		return errors.New("no pixel program")
	case c.texture == nil || c.texture.released:
		return errors.New("no input texture")
	case c.texture == c.target || c.texture.img == c.target.img:
		return postfx.ErrSameResource
	case c.uniform == nil || len(c.uniform.data) < postfx.ParamsBlockSize:
		return errors.New("no parameter buffer")
	case c.geometry == nil || vertexCount < 3 || vertexCount > len(c.geometry.vertices):
		return fmt.Errorf("draw of %d vertices without matching geometry", vertexCount)
	case c.viewport[2] <= 0 || c.viewport[3] <= 0:
		return errors.New("empty viewport")
	}
	return nil
}

// Draw maps the strip into the viewport and runs the Kage program over it.
func (c *Context) Draw(vertexCount int) {
	if err := c.validate(vertexCount); err != nil {
		postfx.Logger().Warn("kage: draw dropped", slog.Any("error", err))
		return
	}

	dst := c.target.img.Bounds()
	src := c.texture.img.Bounds()
	vx := float32(dst.Min.X + c.viewport[0])
	vy := float32(dst.Min.Y + c.viewport[1])
	vw, vh := float32(c.viewport[2]), float32(c.viewport[3])

	c.vertices = c.vertices[:0]
	for _, v := range c.geometry.vertices[:vertexCount] {
		c.vertices = append(c.vertices, ebiten.Vertex{
			DstX:   vx + (v.X+1)*0.5*vw,
			DstY:   vy + (1-v.Y)*0.5*vh,
			SrcX:   float32(src.Min.X) + v.U*float32(src.Dx()),
			SrcY:   float32(src.Min.Y) + v.V*float32(src.Dy()),
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		})
	}
	c.indices = stripIndices(c.indices[:0], vertexCount)

	c.target.img.DrawTrianglesShader(c.vertices, c.indices, c.ps.shader, &ebiten.DrawTrianglesShaderOptions{
		Uniforms: map[string]any{uniformName: blockLanes(c.uniform.data)},
		Images:   [4]*ebiten.Image{c.texture.img},
		Blend:    ebiten.BlendCopy,
	})
	c.draws++
}

// stripIndices expands a triangle strip into a triangle list with
// consistent winding.
func stripIndices(dst []uint16, n int) []uint16 {
	for i := 0; i+2 < n; i++ {
		a, b := uint16(i), uint16(i+1)
		if i%2 == 1 {
			a, b = b, a
		}
		dst = append(dst, a, b, uint16(i+2))
	}
	return dst
}

// blockLanes reinterprets the encoded block as the float array Kage
// expects for a [7]vec4 uniform.
func blockLanes(b []byte) []float32 {
	lanes := make([]float32, postfx.ParamsBlockSize/4)
	for i := range lanes {
		lanes[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return lanes
}

// CopyTexture copies src into dst with copy blending. The sizes must match.
func (c *Context) CopyTexture(dst postfx.RenderTarget, src postfx.Texture) error {
	d, ok1 := dst.(*Surface)
	s, ok2 := src.(*Surface)
	if !ok1 || !ok2 {
		return fmt.Errorf("kage: copy between foreign resources %T and %T", dst, src)
	}
	if d.img == s.img {
		return postfx.ErrSameResource
	}
	if d.Width() != s.Width() || d.Height() != s.Height() {
		return fmt.Errorf("kage: copy size mismatch %dx%d to %dx%d", s.Width(), s.Height(), d.Width(), d.Height())
	}
	op := &ebiten.DrawImageOptions{Blend: ebiten.BlendCopy}
	op.GeoM.Translate(float64(d.img.Bounds().Min.X), float64(d.img.Bounds().Min.Y))
	d.img.DrawImage(s.img, op)
	return nil
}

// Flush does nothing; Ebitengine submits at the end of the frame.
func (c *Context) Flush() error { return nil }
