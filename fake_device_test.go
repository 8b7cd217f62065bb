package postfx

import (
	"errors"
	"fmt"
)

var errInjected = errors.New("injected failure")

// fakeDevice is a recording Device. Every image carries a content string;
// a draw rewrites the target's content as "shader(input)" so tests can
// check what flowed where without real pixels.
type fakeDevice struct {
	failShader   map[string]bool
	failBuffer   bool
	failSampler  bool
	failGeometry bool
	// failSurfaceAt fails the n-th surface creation (1-based); 0 disables.
	failSurfaceAt int
	alignment     int

	surfacesCreated int
	geometries      int
	live            map[string]int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		failShader: make(map[string]bool),
		live:       make(map[string]int),
	}
}

type fakeRes struct {
	dev      *fakeDevice
	kind     string
	name     string
	w, h     int
	size     int
	content  string
	released bool
}

func (r *fakeRes) Release() {
	if r.released {
		return
	}
	r.released = true
	if r.dev != nil {
		r.dev.live[r.kind]--
	}
}

func (r *fakeRes) Width() int  { return r.w }
func (r *fakeRes) Height() int { return r.h }
func (r *fakeRes) Size() int   { return r.size }

func (d *fakeDevice) track(r *fakeRes) *fakeRes {
	r.dev = d
	d.live[r.kind]++
	return r
}

func (d *fakeDevice) CompileShader(stage ShaderStage, name string) (Shader, error) {
	if d.failShader[name] {
		return nil, fmt.Errorf("%s %s: %w", stage, name, errInjected)
	}
	return d.track(&fakeRes{kind: "shader", name: name}), nil
}

func (d *fakeDevice) CreateBuffer(size int) (Buffer, error) {
	if d.failBuffer {
		return nil, errInjected
	}
	return d.track(&fakeRes{kind: "buffer", size: size}), nil
}

func (d *fakeDevice) CreateSurface(width, height int, _ Format) (Surface, error) {
	d.surfacesCreated++
	if d.failSurfaceAt != 0 && d.surfacesCreated == d.failSurfaceAt {
		return nil, errInjected
	}
	name := fmt.Sprintf("surface%d", d.surfacesCreated)
	return d.track(&fakeRes{kind: "surface", name: name, w: width, h: height}), nil
}

func (d *fakeDevice) CreateSampler(SamplerDesc) (Sampler, error) {
	if d.failSampler {
		return nil, errInjected
	}
	return d.track(&fakeRes{kind: "sampler"}), nil
}

func (d *fakeDevice) CreateGeometry(vertices []Vertex) (Geometry, error) {
	if d.failGeometry {
		return nil, errInjected
	}
	d.geometries++
	return d.track(&fakeRes{kind: "geometry", size: len(vertices)}), nil
}

func (d *fakeDevice) BufferAlignment() int { return d.alignment }

// liveTotal returns the number of unreleased resources of every kind.
func (d *fakeDevice) liveTotal() int {
	n := 0
	for _, c := range d.live {
		n += c
	}
	return n
}

type drawCall struct {
	shader   string
	in, out  string
	vertices int
	viewport [4]int
	block    []byte
}

type fakeContext struct {
	target   RenderTarget
	viewport [4]int
	ps       Shader
	textures map[int]Texture
	uniforms map[int]Buffer
	geometry Geometry
	buffers  map[Buffer][]byte

	failUpdate bool
	failCopy   bool

	draws   []drawCall
	copies  int
	flushes int
	// unbound counts SetTexture(slot, nil) calls.
	unbound int
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		textures: make(map[int]Texture),
		uniforms: make(map[int]Buffer),
		buffers:  make(map[Buffer][]byte),
	}
}

func (c *fakeContext) UpdateBuffer(b Buffer, data []byte) error {
	if c.failUpdate {
		return errInjected
	}
	c.buffers[b] = append([]byte(nil), data...)
	return nil
}

func (c *fakeContext) SetRenderTarget(t RenderTarget)      { c.target = t }
func (c *fakeContext) SetViewport(x, y, w, h int)          { c.viewport = [4]int{x, y, w, h} }
func (c *fakeContext) SetShaders(_, ps Shader)             { c.ps = ps }
func (c *fakeContext) SetSampler(int, Sampler)             {}
func (c *fakeContext) SetUniformBuffer(slot int, b Buffer) { c.uniforms[slot] = b }
func (c *fakeContext) SetGeometry(g Geometry)              { c.geometry = g }

func (c *fakeContext) SetTexture(slot int, t Texture) {
	if t == nil {
		delete(c.textures, slot)
		c.unbound++
		return
	}
	c.textures[slot] = t
}

func (c *fakeContext) Draw(vertexCount int) {
	ps := c.ps.(*fakeRes)
	in, ok1 := c.textures[0].(*fakeRes)
	out, ok2 := c.target.(*fakeRes)
	if !ok1 || !ok2 {
		// Host-provided image of another type.
		c.draws = append(c.draws, drawCall{shader: ps.name, vertices: vertexCount, viewport: c.viewport})
		return
	}
	c.draws = append(c.draws, drawCall{
		shader:   ps.name,
		in:       in.name,
		out:      out.name,
		vertices: vertexCount,
		viewport: c.viewport,
		block:    c.buffers[c.uniforms[0]],
	})
	out.content = ps.name + "(" + in.content + ")"
}

func (c *fakeContext) CopyTexture(dst RenderTarget, src Texture) error {
	if c.failCopy {
		return errInjected
	}
	c.copies++
	d, ok1 := dst.(*fakeRes)
	s, ok2 := src.(*fakeRes)
	if ok1 && ok2 {
		d.content = s.content
	}
	return nil
}

func (c *fakeContext) Flush() error {
	c.flushes++
	return nil
}

// newImage returns an untracked image owned by the test.
func newImage(name string, w, h int) *fakeRes {
	return &fakeRes{kind: "image", name: name, w: w, h: h, content: name}
}
