package native

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend"
	"github.com/gogpu/postfx/shaders"
)

// Errors returned by the native backend.
var (
	// ErrNoAdapter is returned by Open when no registered hal backend
	// exposes an adapter.
	ErrNoAdapter = errors.New("native: no GPU adapter available")

	// ErrClosed is returned when a closed device is used.
	ErrClosed = errors.New("native: device closed")
)

const (
	uniformAlignment = 256
	textureFormat    = gputypes.TextureFormatRGBA8Unorm
	vertexStride     = 16
)

// Option configures a Device.
type Option func(*options)

type options struct {
	spirv bool
	label string
}

// WithSPIRV makes CompileShader translate WGSL to SPIR-V with naga before
// handing it to the hal backend. Use it with backends that only accept
// SPIR-V.
func WithSPIRV() Option {
	return func(o *options) {
		o.spirv = true
	}
}

// WithLabel prefixes every GPU object label.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// Device is a postfx device backed by a hal.Device.
type Device struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	opts   options

	// release runs on Close for devices the package opened itself.
	release func()

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  *pipelineCache

	live   Resources
	closed bool
}

// Resources counts live GPU objects created through the device.
type Resources struct {
	Textures   int
	Buffers    int
	Shaders    int
	Samplers   int
	Geometries int
}

// Total returns the number of live objects of every kind.
func (r Resources) Total() int {
	return r.Textures + r.Buffers + r.Shaders + r.Samplers + r.Geometries
}

// New wraps an open hal device and queue. The caller keeps ownership of
// both; Close releases only what the postfx device created.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	return newDevice(device, queue, nil, opts)
}

func newDevice(device hal.Device, queue hal.Queue, release func(), opts []Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, postfx.ErrNilDevice
	}
	d := &Device{
		device:    device,
		queue:     queue,
		release:   release,
		pipelines: newPipelineCache(),
	}
	for _, opt := range opts {
		opt(&d.opts)
	}
	if err := d.createLayouts(); err != nil {
		d.destroyLayouts()
		return nil, err
	}
	postfx.Logger().Debug("native: device ready", slog.Bool("spirv", d.opts.spirv))
	return d, nil
}

func (d *Device) label(s string) string {
	if d.opts.label == "" {
		return s
	}
	return d.opts.label + "_" + s
}

func (d *Device) createLayouts() error {
	var err error
	d.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: d.label("postfx_bind_layout"),
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer: &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: postfx.ParamsBlockSize,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: bind group layout: %w", postfx.ErrResourceCreate, err)
	}
	d.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            d.label("postfx_pipeline_layout"),
		BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("%w: pipeline layout: %w", postfx.ErrResourceCreate, err)
	}
	return nil
}

func (d *Device) destroyLayouts() {
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.device.DestroyBindGroupLayout(d.bindLayout)
		d.bindLayout = nil
	}
}

// Name returns "native".
func (d *Device) Name() string { return backend.Native }

// HAL returns the wrapped device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) {
	return d.device, d.queue
}

// Live returns the live object counts.
func (d *Device) Live() Resources {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// PipelineStats returns pipeline cache hits and misses.
func (d *Device) PipelineStats() (hits, misses uint64) {
	return d.pipelines.Stats()
}

func (d *Device) track(counter *int, delta int) {
	d.mu.Lock()
	*counter += delta
	d.mu.Unlock()
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close waits for the GPU, destroys cached pipelines and layouts, and
// releases the device if Open created it. Resources still held by callers
// must be released first.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	if err := d.device.WaitIdle(); err != nil {
		postfx.Logger().Warn("native: wait idle on close", slog.Any("error", err))
	}
	d.pipelines.Destroy(d.device)
	d.destroyLayouts()
	if live := d.Live(); live.Total() != 0 {
		postfx.Logger().Warn("native: closing with live resources",
			slog.Int("textures", live.Textures),
			slog.Int("buffers", live.Buffers),
			slog.Int("shaders", live.Shaders))
	}
	if d.release != nil {
		d.release()
	}
}

// BufferAlignment returns the uniform buffer offset alignment wgpu
// guarantees on every adapter.
func (d *Device) BufferAlignment() int { return uniformAlignment }

// CompileShader creates a shader module for the named program.
func (d *Device) CompileShader(stage postfx.ShaderStage, name string) (postfx.Shader, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	switch stage {
	case postfx.StageVertex:
		if name != shaders.Fullscreen {
			return nil, fmt.Errorf("%w: vertex shader %q", postfx.ErrShaderCompile, name)
		}
	case postfx.StagePixel:
		if name == shaders.Fullscreen {
			return nil, fmt.Errorf("%w: %q is a vertex shader", postfx.ErrShaderCompile, name)
		}
	default:
		return nil, fmt.Errorf("%w: stage %v", postfx.ErrShaderCompile, stage)
	}

	src, err := shaders.WGSL(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", postfx.ErrShaderCompile, err)
	}
	source := hal.ShaderSource{WGSL: src}
	if d.opts.spirv {
		code, err := compileSPIRV(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", postfx.ErrShaderCompile, name, err)
		}
		source = hal.ShaderSource{SPIRV: code}
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  d.label(name + "_shader"),
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", postfx.ErrShaderCompile, name, err)
	}
	d.track(&d.live.Shaders, 1)

	entry := shaders.FragmentEntry
	if stage == postfx.StageVertex {
		entry = shaders.VertexEntry
	}
	return &Shader{dev: d, module: module, stage: stage, name: name, entry: entry}, nil
}

// CreateBuffer creates a uniform buffer of at least size bytes.
func (d *Device) CreateBuffer(size int) (postfx.Buffer, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", postfx.ErrResourceCreate, size)
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: d.label("postfx_params"),
		Size:  uint64(size),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: uniform buffer: %w", postfx.ErrResourceCreate, err)
	}
	d.track(&d.live.Buffers, 1)
	return &Buffer{dev: d, buf: buf, size: size}, nil
}

// CreateSurface creates a texture usable as a pass input, render target
// and copy endpoint.
func (d *Device) CreateSurface(width, height int, format postfx.Format) (postfx.Surface, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", postfx.ErrInvalidSize, width, height)
	}
	if format != postfx.FormatRGBA8 {
		return nil, fmt.Errorf("%w: unsupported format %d", postfx.ErrResourceCreate, format)
	}
	return d.createSurface(width, height)
}

func (d *Device) createSurface(width, height int) (*Surface, error) {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         d.label("postfx_surface"),
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat,
		Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: texture %dx%d: %w", postfx.ErrResourceCreate, width, height, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         d.label("postfx_surface_view"),
		Format:        textureFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("%w: texture view: %w", postfx.ErrResourceCreate, err)
	}
	d.track(&d.live.Textures, 1)
	return &Surface{dev: d, tex: tex, view: view, w: width, h: height}, nil
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc postfx.SamplerDesc) (postfx.Sampler, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	filter := gputypes.FilterModeLinear
	if desc.Filter == postfx.FilterNearest {
		filter = gputypes.FilterModeNearest
	}
	address := gputypes.AddressModeClampToEdge
	if desc.Address == postfx.AddressRepeat {
		address = gputypes.AddressModeRepeat
	}
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        d.label("postfx_sampler"),
		AddressModeU: address,
		AddressModeV: address,
		AddressModeW: address,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
		Anisotropy:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sampler: %w", postfx.ErrResourceCreate, err)
	}
	d.track(&d.live.Samplers, 1)
	return &Sampler{dev: d, sampler: s}, nil
}

// CreateGeometry uploads vertices into a vertex buffer.
func (d *Device) CreateGeometry(vertices []postfx.Vertex) (postfx.Geometry, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", postfx.ErrResourceCreate, len(vertices))
	}
	data := encodeVertices(vertices)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: d.label("postfx_quad"),
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: vertex buffer: %w", postfx.ErrResourceCreate, err)
	}
	if err := d.queue.WriteBuffer(buf, 0, data); err != nil {
		d.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("%w: vertex upload: %w", postfx.ErrResourceCreate, err)
	}
	d.track(&d.live.Geometries, 1)
	return &Geometry{dev: d, buf: buf, count: len(vertices)}, nil
}

// NewContext returns a command recorder for this device.
func (d *Device) NewContext() postfx.Context {
	return newContext(d)
}

// UploadImage creates a surface holding img.
func (d *Device) UploadImage(img image.Image) (postfx.Surface, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	return d.upload(img)
}

// ReadImage copies t back to memory.
func (d *Device) ReadImage(t postfx.Texture) (*image.RGBA, error) {
	s, ok := t.(*Surface)
	if !ok || s.dev != d {
		return nil, fmt.Errorf("%w: %T", backend.ErrForeignResource, t)
	}
	if d.isClosed() {
		return nil, ErrClosed
	}
	return d.readback(s)
}
