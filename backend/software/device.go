// Package software implements the postfx device interfaces on the CPU.
//
// It is the reference backend: every pixel shader has a float32 kernel
// here, surfaces are RGBA8 slices, and the device counts live resources so
// tests can check for leaks. Draws run over row bands in parallel.
package software

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend"
	"github.com/gogpu/postfx/internal/parallel"
)

func init() {
	backend.Register(backend.Software, func() (backend.Backend, error) {
		return NewDevice(), nil
	})
}

// Resources counts live device resources by kind.
type Resources struct {
	Surfaces   int
	Buffers    int
	Shaders    int
	Samplers   int
	Geometries int
}

// Total returns the number of live resources of every kind.
func (r Resources) Total() int {
	return r.Surfaces + r.Buffers + r.Shaders + r.Samplers + r.Geometries
}

type resourceKind uint8

const (
	kindSurface resourceKind = iota
	kindBuffer
	kindShader
	kindSampler
	kindGeometry
)

// Option configures a Device.
type Option func(*options)

type options struct {
	workers int
	minBand int
}

// WithWorkers sets the number of draw workers. Zero or less uses
// GOMAXPROCS; one runs every draw on the calling goroutine.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// Device is a CPU postfx device.
type Device struct {
	mu   sync.Mutex
	live Resources

	pool    *parallel.Pool
	minBand int
}

// NewDevice creates a software device.
func NewDevice(opts ...Option) *Device {
	o := options{minBand: 16}
	for _, opt := range opts {
		opt(&o)
	}
	return &Device{
		pool:    parallel.NewPool(o.workers),
		minBand: o.minBand,
	}
}

// Name returns "software".
func (d *Device) Name() string { return backend.Software }

// Close stops the draw workers. Draws issued afterwards run inline.
func (d *Device) Close() {
	d.pool.Close()
}

// Live returns the live resource counts.
func (d *Device) Live() Resources {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *Device) track(k resourceKind, delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch k {
	case kindSurface:
		d.live.Surfaces += delta
	case kindBuffer:
		d.live.Buffers += delta
	case kindShader:
		d.live.Shaders += delta
	case kindSampler:
		d.live.Samplers += delta
	case kindGeometry:
		d.live.Geometries += delta
	}
}

func (d *Device) untrack(k resourceKind) { d.track(k, -1) }

// Shader is a compiled program: for the pixel stage, a CPU kernel.
type Shader struct {
	dev      *Device
	stage    postfx.ShaderStage
	name     string
	kernel   kernel
	released bool
}

// Name returns the shader name.
func (s *Shader) Name() string { return s.name }

// Release frees the shader.
func (s *Shader) Release() {
	if s.released {
		return
	}
	s.released = true
	s.dev.untrack(kindShader)
}

// CompileShader looks up the named program. The vertex stage only knows
// the shared full-screen program.
func (d *Device) CompileShader(stage postfx.ShaderStage, name string) (postfx.Shader, error) {
	s := &Shader{dev: d, stage: stage, name: name}
	switch stage {
	case postfx.StageVertex:
		if name != postfx.VertexShaderName {
			return nil, fmt.Errorf("software: unknown vertex shader %q", name)
		}
	case postfx.StagePixel:
		k, ok := kernels[name]
		if !ok {
			return nil, fmt.Errorf("software: unknown pixel shader %q", name)
		}
		s.kernel = k
	default:
		return nil, fmt.Errorf("software: unsupported stage %v", stage)
	}
	d.track(kindShader, 1)
	return s, nil
}

// Buffer is a uniform buffer in memory.
type Buffer struct {
	dev      *Device
	data     []byte
	released bool
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return len(b.data) }

// Release frees the buffer.
func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.data = nil
	b.dev.untrack(kindBuffer)
}

// CreateBuffer creates a uniform buffer of size bytes.
func (d *Device) CreateBuffer(size int) (postfx.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("software: invalid buffer size %d", size)
	}
	d.track(kindBuffer, 1)
	return &Buffer{dev: d, data: make([]byte, size)}, nil
}

// CreateSurface creates an RGBA8 surface owned by d.
func (d *Device) CreateSurface(width, height int, format postfx.Format) (postfx.Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("software: %w: %dx%d", postfx.ErrInvalidSize, width, height)
	}
	if format != postfx.FormatRGBA8 {
		return nil, fmt.Errorf("software: unsupported format %d", format)
	}
	s := NewSurface(width, height)
	s.dev = d
	d.track(kindSurface, 1)
	return s, nil
}

// CreateSampler creates sampling state.
func (d *Device) CreateSampler(desc postfx.SamplerDesc) (postfx.Sampler, error) {
	d.track(kindSampler, 1)
	return &Sampler{dev: d, desc: desc}, nil
}

// Geometry holds quad vertices. The CPU rasterizer covers the viewport
// directly, so the vertices are kept only for validation.
type Geometry struct {
	dev      *Device
	vertices []postfx.Vertex
	released bool
}

// Release frees the geometry.
func (g *Geometry) Release() {
	if g.released {
		return
	}
	g.released = true
	g.dev.untrack(kindGeometry)
}

// CreateGeometry creates an immutable vertex buffer.
func (d *Device) CreateGeometry(vertices []postfx.Vertex) (postfx.Geometry, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("software: geometry needs at least 3 vertices, got %d", len(vertices))
	}
	d.track(kindGeometry, 1)
	return &Geometry{dev: d, vertices: append([]postfx.Vertex(nil), vertices...)}, nil
}

// BufferAlignment returns 16.
func (d *Device) BufferAlignment() int { return 16 }

// NewContext returns a context that draws with d's workers.
func (d *Device) NewContext() postfx.Context {
	return newContext(d)
}

// UploadImage returns an unowned surface holding a copy of img.
func (d *Device) UploadImage(img image.Image) (postfx.Surface, error) {
	return NewSurfaceFromImage(img), nil
}

// ReadImage returns a copy of a software surface.
func (d *Device) ReadImage(t postfx.Texture) (*image.RGBA, error) {
	s, ok := t.(*Surface)
	if !ok {
		return nil, fmt.Errorf("software: %w: %T", backend.ErrForeignResource, t)
	}
	return s.Image(), nil
}
