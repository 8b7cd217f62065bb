package postfx

import (
	"fmt"
	"log/slog"
)

// Binding slots shared by every pixel shader.
const (
	slotInput    = 0
	slotSampler  = 0
	slotUniforms = 0
)

// pass is one effect instance: the shader pair for an Effect, its
// parameter buffer and its enabled flag.
//
// A pass is either fully initialized or holds no resources at all.
type pass struct {
	effect  Effect
	enabled bool

	vs, ps Shader
	buffer Buffer
	block  []byte

	quad    *fullscreenQuad
	sampler Sampler
}

func newPass(e Effect, quad *fullscreenQuad, sampler Sampler) *pass {
	return &pass{
		effect:  e,
		enabled: true,
		quad:    quad,
		sampler: sampler,
	}
}

// initialize compiles the shader pair and creates the parameter buffer.
// On failure everything created so far is released and the pass stays
// unusable.
func (p *pass) initialize(dev Device, width, height int) (err error) {
	if dev == nil {
		return ErrNilDevice
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if !p.effect.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownEffect, uint8(p.effect))
	}
	if p.initialized() {
		return nil
	}

	defer func() {
		if err != nil {
			p.shutdown()
		}
	}()

	p.vs, err = dev.CompileShader(StageVertex, VertexShaderName)
	if err != nil {
		p.vs = nil
		return fmt.Errorf("%w: %s vertex stage: %w", ErrShaderCompile, p.effect, err)
	}
	p.ps, err = dev.CompileShader(StagePixel, p.effect.ShaderName())
	if err != nil {
		p.ps = nil
		return fmt.Errorf("%w: %s pixel stage: %w", ErrShaderCompile, p.effect, err)
	}
	size := AlignedSize(ParamsBlockSize, dev.BufferAlignment())
	p.buffer, err = dev.CreateBuffer(size)
	if err != nil {
		p.buffer = nil
		return fmt.Errorf("%w: %s parameter buffer: %w", ErrResourceCreate, p.effect, err)
	}
	p.block = make([]byte, 0, size)

	Logger().Debug("postfx: pass initialized",
		slog.String("effect", p.effect.String()),
		slog.Int("buffer", size),
		slog.Int("width", width),
		slog.Int("height", height))
	return nil
}

func (p *pass) initialized() bool {
	return p.vs != nil && p.ps != nil && p.buffer != nil
}

// apply renders in through the effect into out. It does nothing when the
// pass is disabled or uninitialized, when either image is missing, or when
// in and out are the same resource.
func (p *pass) apply(ctx Context, in Texture, out RenderTarget, params *Params) error {
	if !p.enabled || !p.initialized() {
		return nil
	}
	if ctx == nil || in == nil || out == nil {
		return fmt.Errorf("postfx: %s: nil context or image", p.effect)
	}
	if sameResource(in, out) {
		return fmt.Errorf("postfx: %s: %w", p.effect, ErrSameResource)
	}

	w, h := out.Width(), out.Height()
	p.block = params.AppendBlock(p.block[:0], w, h)
	p.block = p.block[:cap(p.block)]
	if err := ctx.UpdateBuffer(p.buffer, p.block); err != nil {
		return fmt.Errorf("postfx: %s: update parameters: %w", p.effect, err)
	}

	ctx.SetRenderTarget(out)
	ctx.SetViewport(0, 0, w, h)
	ctx.SetShaders(p.vs, p.ps)
	ctx.SetTexture(slotInput, in)
	ctx.SetSampler(slotSampler, p.sampler)
	ctx.SetUniformBuffer(slotUniforms, p.buffer)
	p.quad.draw(ctx)
	ctx.SetTexture(slotInput, nil)
	return nil
}

// shutdown releases the shaders and buffer. Safe to call repeatedly.
func (p *pass) shutdown() {
	if p.buffer != nil {
		p.buffer.Release()
		p.buffer = nil
	}
	if p.ps != nil {
		p.ps.Release()
		p.ps = nil
	}
	if p.vs != nil {
		p.vs.Release()
		p.vs = nil
	}
	p.block = nil
}
