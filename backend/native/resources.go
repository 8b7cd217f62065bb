package native

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx"
)

// Shader is a compiled shader module and its entry point.
type Shader struct {
	dev      *Device
	module   hal.ShaderModule
	stage    postfx.ShaderStage
	name     string
	entry    string
	released bool
}

// Name returns the program name.
func (s *Shader) Name() string { return s.name }

// Release destroys the module. Pipelines built from it stay cached until
// the device closes.
func (s *Shader) Release() {
	if s.released {
		return
	}
	s.released = true
	s.dev.pipelines.Evict(s.dev.device, s)
	s.dev.device.DestroyShaderModule(s.module)
	s.dev.track(&s.dev.live.Shaders, -1)
}

// Buffer is a uniform buffer.
type Buffer struct {
	dev      *Device
	buf      hal.Buffer
	size     int
	released bool
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return b.size }

// Release destroys the buffer.
func (b *Buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.dev.device.DestroyBuffer(b.buf)
	b.dev.track(&b.dev.live.Buffers, -1)
}

// Surface is an RGBA8 texture with a default view.
type Surface struct {
	dev  *Device
	tex  hal.Texture
	view hal.TextureView
	w, h int

	// usage is the last usage the texture was transitioned to.
	usage    gputypes.TextureUsage
	released bool
}

// Width returns the surface width.
func (s *Surface) Width() int { return s.w }

// Height returns the surface height.
func (s *Surface) Height() int { return s.h }

// Release destroys the view and texture.
func (s *Surface) Release() {
	if s.released {
		return
	}
	s.released = true
	s.dev.device.DestroyTextureView(s.view)
	s.dev.device.DestroyTexture(s.tex)
	s.dev.track(&s.dev.live.Textures, -1)
}

func (s *Surface) extent() hal.Extent3D {
	return hal.Extent3D{Width: uint32(s.w), Height: uint32(s.h), DepthOrArrayLayers: 1}
}

// Sampler is a texture sampler.
type Sampler struct {
	dev      *Device
	sampler  hal.Sampler
	released bool
}

// Release destroys the sampler.
func (s *Sampler) Release() {
	if s.released {
		return
	}
	s.released = true
	s.dev.device.DestroySampler(s.sampler)
	s.dev.track(&s.dev.live.Samplers, -1)
}

// Geometry is a vertex buffer of position/uv pairs.
type Geometry struct {
	dev      *Device
	buf      hal.Buffer
	count    int
	released bool
}

// Release destroys the vertex buffer.
func (g *Geometry) Release() {
	if g.released {
		return
	}
	g.released = true
	g.dev.device.DestroyBuffer(g.buf)
	g.dev.track(&g.dev.live.Geometries, -1)
}

// vertexLayout matches VertexInput in the fullscreen shader.
var vertexLayout = gputypes.VertexBufferLayout{
	ArrayStride: vertexStride,
	StepMode:    gputypes.VertexStepModeVertex,
	Attributes: []gputypes.VertexAttribute{
		{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
		{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
	},
}

func encodeVertices(vertices []postfx.Vertex) []byte {
	data := make([]byte, 0, len(vertices)*vertexStride)
	for _, v := range vertices {
		for _, f := range [4]float32{v.X, v.Y, v.U, v.V} {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
		}
	}
	return data
}

// compileSPIRV translates WGSL to SPIR-V words.
func compileSPIRV(src string) ([]uint32, error) {
	b, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("naga returned %d bytes, not whole words", len(b))
	}
	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return code, nil
}
