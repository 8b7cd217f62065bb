package postfx

import "reflect"

// ShaderStage is the pipeline stage a shader program runs in.
type ShaderStage uint8

// Shader stages.
const (
	StageVertex ShaderStage = iota
	StagePixel
)

// String returns the stage name.
func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StagePixel:
		return "pixel"
	default:
		return unknownStr
	}
}

// Format is the pixel format of a surface.
type Format uint8

// Surface formats.
const (
	// FormatRGBA8 is 8 bits per channel, unsigned normalized, RGBA order.
	FormatRGBA8 Format = iota
)

// FilterMode selects texel filtering for a sampler.
type FilterMode uint8

// Filter modes.
const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// AddressMode selects how out-of-range coordinates are resolved.
type AddressMode uint8

// Address modes.
const (
	AddressClamp AddressMode = iota
	AddressRepeat
)

// SamplerDesc describes a texture sampler.
// The zero value is linear filtering with edge-clamped addressing.
type SamplerDesc struct {
	Filter  FilterMode
	Address AddressMode
}

// Vertex is one full-screen quad vertex: clip-space position and texture
// coordinate with (0,0) at the top-left of the image.
type Vertex struct {
	X, Y float32
	U, V float32
}

// Releaser is implemented by every device resource.
// Release must be safe to call more than once.
type Releaser interface {
	Release()
}

// Shader is a compiled shader program for one stage.
type Shader interface {
	Releaser
}

// Buffer is a dynamically writable uniform buffer.
type Buffer interface {
	Releaser
	Size() int
}

// Sampler is texture sampling state.
type Sampler interface {
	Releaser
}

// Geometry is an immutable vertex buffer.
type Geometry interface {
	Releaser
}

// Texture is an image a shader can read. Its texels hold premultiplied alpha.
type Texture interface {
	Width() int
	Height() int
}

// RenderTarget is an image a pass can write.
type RenderTarget interface {
	Width() int
	Height() int
}

// Surface is an offscreen image that is both a Texture and a RenderTarget.
type Surface interface {
	Texture
	RenderTarget
	Releaser
}

// Device creates pipeline resources. Implementations live in the backend
// packages.
type Device interface {
	// CompileShader compiles the named program for stage.
	CompileShader(stage ShaderStage, name string) (Shader, error)

	// CreateBuffer creates a dynamically writable uniform buffer.
	CreateBuffer(size int) (Buffer, error)

	// CreateSurface creates an offscreen surface.
	CreateSurface(width, height int, format Format) (Surface, error)

	// CreateSampler creates sampling state.
	CreateSampler(desc SamplerDesc) (Sampler, error)

	// CreateGeometry creates an immutable vertex buffer.
	CreateGeometry(vertices []Vertex) (Geometry, error)

	// BufferAlignment is the required uniform buffer size alignment in
	// bytes. Zero means 16.
	BufferAlignment() int
}

// Context records and executes pipeline commands for one frame.
//
// State set on a Context persists until changed, the way a fixed-function
// device context behaves: each pass sets everything it needs.
type Context interface {
	UpdateBuffer(b Buffer, data []byte) error
	SetRenderTarget(t RenderTarget)
	SetViewport(x, y, width, height int)
	SetShaders(vs, ps Shader)

	// SetTexture binds t to slot. A nil t unbinds the slot.
	SetTexture(slot int, t Texture)
	SetSampler(slot int, s Sampler)
	SetUniformBuffer(slot int, b Buffer)
	SetGeometry(g Geometry)

	// Draw issues a draw of vertexCount vertices from the bound geometry.
	Draw(vertexCount int)

	// CopyTexture copies src to dst. Sizes and formats must match.
	CopyTexture(dst RenderTarget, src Texture) error

	// Flush submits recorded work and waits for it to complete.
	Flush() error
}

// sameResource reports whether in and out refer to the same image.
// Values of an incomparable type are never reported as the same, since
// comparing them would panic.
func sameResource(in Texture, out RenderTarget) bool {
	a, b := any(in), any(out)
	ta := reflect.TypeOf(a)
	if ta == nil || ta != reflect.TypeOf(b) || !ta.Comparable() {
		return a == nil && b == nil
	}
	return a == b
}
