// Package kage runs postfx passes inside an Ebitengine game through Kage
// shaders.
//
// Surfaces are *ebiten.Image values. The screen image handed to Draw can
// be adopted with Wrap and used as the final render target:
//
//	func (g *Game) Draw(screen *ebiten.Image) {
//	    g.fx.Process(g.dev.NewContext(), g.frame, kage.Wrap(screen))
//	}
//
// Ebitengine schedules the actual GPU work, so Flush does nothing. Kage
// samples the nearest texel and clamps at the edges whatever the sampler
// says. Pixels can only be read back while the game loop runs.
package kage

import (
	"fmt"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend"
	"github.com/gogpu/postfx/shaders"
)

func init() {
	backend.Register(backend.Ebiten, func() (backend.Backend, error) {
		return NewDevice(), nil
	})
}

// uniformName is the Kage uniform holding the parameter block.
const uniformName = "Params"

// Device creates Ebitengine resources for postfx.
type Device struct {
	mu   sync.Mutex
	live int
}

// NewDevice returns an Ebitengine device.
func NewDevice() *Device {
	return &Device{}
}

// Name returns "ebiten".
func (d *Device) Name() string { return backend.Ebiten }

// Live returns the number of live resources created by the device.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

func (d *Device) track(delta int) {
	d.mu.Lock()
	d.live += delta
	d.mu.Unlock()
}

// Close does nothing; Ebitengine owns the graphics device.
func (d *Device) Close() {}

// BufferAlignment returns 16.
func (d *Device) BufferAlignment() int { return 16 }

// Shader is a compiled Kage program. The vertex stage has no program: the
// quad geometry is mapped to the viewport on the CPU.
type Shader struct {
	dev      *Device
	stage    postfx.ShaderStage
	name     string
	shader   *ebiten.Shader
	released bool
}

// Release deallocates the program.
func (s *Shader) Release() {
	if s.released {
		return
	}
	s.released = true
	if s.shader != nil {
		s.shader.Deallocate()
	}
	s.dev.track(-1)
}

// CompileShader compiles the named Kage program.
func (d *Device) CompileShader(stage postfx.ShaderStage, name string) (postfx.Shader, error) {
	s := &Shader{dev: d, stage: stage, name: name}
	switch stage {
	case postfx.StageVertex:
		if name != shaders.Fullscreen {
			return nil, fmt.Errorf("%w: vertex shader %q", postfx.ErrShaderCompile, name)
		}
	case postfx.StagePixel:
		src, err := shaders.Kage(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", postfx.ErrShaderCompile, err)
		}
		s.shader, err = ebiten.NewShader(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", postfx.ErrShaderCompile, name, err)
		}
	default:
		return nil, fmt.Errorf("%w: stage %v", postfx.ErrShaderCompile, stage)
	}
	d.track(1)
	return s, nil
}

// Buffer holds a parameter block on the CPU; it is passed to Kage as a
// uniform at draw time.
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
	b.dev.track(-1)
}

// CreateBuffer allocates a parameter buffer.
func (d *Device) CreateBuffer(size int) (postfx.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", postfx.ErrResourceCreate, size)
	}
	d.track(1)
	return &Buffer{dev: d, data: make([]byte, size)}, nil
}

// Surface wraps an *ebiten.Image.
type Surface struct {
	dev      *Device
	img      *ebiten.Image
	owned    bool
	released bool
}

// Wrap adopts img, typically the screen, as a postfx surface. Release on
// a wrapped surface does not deallocate img.
func Wrap(img *ebiten.Image) *Surface {
	return &Surface{img: img}
}

// Image returns the underlying image.
func (s *Surface) Image() *ebiten.Image { return s.img }

// Width returns the image width.
func (s *Surface) Width() int { return s.img.Bounds().Dx() }

// Height returns the image height.
func (s *Surface) Height() int { return s.img.Bounds().Dy() }

// Release deallocates images the device created.
func (s *Surface) Release() {
	if s.released || !s.owned {
		return
	}
	s.released = true
	s.img.Deallocate()
	s.dev.track(-1)
}

// CreateSurface allocates an offscreen image.
func (d *Device) CreateSurface(width, height int, format postfx.Format) (postfx.Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", postfx.ErrInvalidSize, width, height)
	}
	if format != postfx.FormatRGBA8 {
		return nil, fmt.Errorf("%w: unsupported format %d", postfx.ErrResourceCreate, format)
	}
	return d.adopt(ebiten.NewImage(width, height)), nil
}

func (d *Device) adopt(img *ebiten.Image) *Surface {
	d.track(1)
	return &Surface{dev: d, img: img, owned: true}
}

// Sampler records the requested state; see the package doc for how Kage
// samples.
type Sampler struct {
	dev      *Device
	desc     postfx.SamplerDesc
	released bool
}

// Release frees the sampler.
func (s *Sampler) Release() {
	if s.released {
		return
	}
	s.released = true
	s.dev.track(-1)
}

// CreateSampler returns a sampler.
func (d *Device) CreateSampler(desc postfx.SamplerDesc) (postfx.Sampler, error) {
	d.track(1)
	return &Sampler{dev: d, desc: desc}, nil
}

// Geometry keeps the quad vertices on the CPU.
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
	g.dev.track(-1)
}

// CreateGeometry stores a triangle strip.
func (d *Device) CreateGeometry(vertices []postfx.Vertex) (postfx.Geometry, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", postfx.ErrResourceCreate, len(vertices))
	}
	d.track(1)
	return &Geometry{dev: d, vertices: append([]postfx.Vertex(nil), vertices...)}, nil
}

// NewContext returns a draw context.
func (d *Device) NewContext() postfx.Context {
	return &Context{dev: d}
}

// UploadImage creates a surface holding img.
func (d *Device) UploadImage(img image.Image) (postfx.Surface, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", postfx.ErrInvalidSize, b.Dx(), b.Dy())
	}
	return d.adopt(ebiten.NewImageFromImage(img)), nil
}

// ReadImage reads t back to memory. It must be called from within the
// game loop.
func (d *Device) ReadImage(t postfx.Texture) (*image.RGBA, error) {
	s, ok := t.(*Surface)
	if !ok {
		return nil, fmt.Errorf("%w: %T", backend.ErrForeignResource, t)
	}
	b := s.img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	s.img.ReadPixels(out.Pix)
	return out, nil
}
