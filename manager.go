package postfx

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Stats counts work done by a Manager since it was initialized.
type Stats struct {
	// Frames is the number of Process calls that reached the device.
	Frames uint64
	// Applied is the number of passes drawn.
	Applied uint64
	// Skipped is the number of chain entries skipped because their pass
	// was missing or failed.
	Skipped uint64
	// Copies is the number of direct input-to-output copies.
	Copies uint64
}

// Manager owns an ordered chain of effects, the parameter block and the
// intermediate surface pair, and runs the chain once per Process call.
//
// Process is meant to be called from one render goroutine. The other
// methods may be called from any goroutine; they are serialized with
// Process.
type Manager struct {
	mu sync.Mutex

	dev           Device
	width, height int

	quad     *fullscreenQuad
	sampler  Sampler
	surfaces SurfacePair
	copyPass *pass

	order  []Effect
	passes map[Effect]*pass

	params      Params
	debug       bool
	samplerDesc SamplerDesc
	initial     []Effect

	stats Stats
}

// NewManager creates a Manager. Call Initialize before use.
func NewManager(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		passes:      make(map[Effect]*pass),
		params:      o.params,
		debug:       o.debug,
		samplerDesc: o.sampler,
		initial:     o.effects,
	}
}

// Initialize attaches dev and creates the shared quad, the sampler, the
// intermediate surface pair and the copy pass. On failure nothing is
// retained. Effects given with WithEffects are added afterwards; their
// failures are logged and do not fail Initialize.
func (m *Manager) Initialize(dev Device, width, height int) error {
	if dev == nil {
		return ErrNilDevice
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev != nil {
		m.shutdownLocked()
	}
	if err := m.createShared(dev, width, height); err != nil {
		m.releaseShared()
		return err
	}
	m.dev = dev
	m.width, m.height = width, height
	m.stats = Stats{}

	Logger().Info("postfx: manager initialized",
		slog.Int("width", width), slog.Int("height", height))

	for _, e := range m.initial {
		_ = m.addLocked(e)
	}
	return nil
}

func (m *Manager) createShared(dev Device, width, height int) error {
	quad, err := newFullscreenQuad(dev)
	if err != nil {
		return err
	}
	m.quad = quad

	m.sampler, err = dev.CreateSampler(m.samplerDesc)
	if err != nil {
		m.sampler = nil
		return fmt.Errorf("%w: sampler: %w", ErrResourceCreate, err)
	}
	if err := m.surfaces.Create(dev, width, height); err != nil {
		return err
	}
	cp := newPass(EffectNone, m.quad, m.sampler)
	if err := cp.initialize(dev, width, height); err != nil {
		return err
	}
	m.copyPass = cp
	return nil
}

func (m *Manager) releaseShared() {
	if m.copyPass != nil {
		m.copyPass.shutdown()
		m.copyPass = nil
	}
	m.surfaces.Release()
	if m.sampler != nil {
		m.sampler.Release()
		m.sampler = nil
	}
	m.quad.release()
	m.quad = nil
}

// Initialized reports whether Initialize has succeeded and Shutdown has
// not been called since.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev != nil
}

// AddEffect appends e to the chain. Adding an effect that is already in
// the chain does nothing. If the effect cannot be initialized it is not
// added, a warning is logged and the error returned; the chain is
// unchanged.
func (m *Manager) AddEffect(e Effect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(e)
}

func (m *Manager) addLocked(e Effect) error {
	if !e.Valid() || e == EffectNone {
		err := fmt.Errorf("%w: %d", ErrUnknownEffect, uint8(e))
		Logger().Warn("postfx: effect not added", slog.Any("error", err))
		return err
	}
	if _, ok := m.passes[e]; ok {
		return nil
	}
	if m.dev == nil {
		return ErrNotInitialized
	}

	p := newPass(e, m.quad, m.sampler)
	if err := p.initialize(m.dev, m.width, m.height); err != nil {
		Logger().Warn("postfx: effect not added",
			slog.String("effect", e.String()), slog.Any("error", err))
		return err
	}
	m.passes[e] = p
	m.order = append(m.order, e)
	return nil
}

// RemoveEffect shuts down and removes e. Removing an absent effect does
// nothing.
func (m *Manager) RemoveEffect(e Effect) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.passes[e]
	if !ok {
		return
	}
	p.shutdown()
	delete(m.passes, e)
	if i := slices.Index(m.order, e); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}

// ClearEffects removes every effect from the chain.
func (m *Manager) ClearEffects() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

func (m *Manager) clearLocked() {
	for _, e := range m.order {
		if p := m.passes[e]; p != nil {
			p.shutdown()
		}
	}
	clear(m.passes)
	m.order = m.order[:0]
}

// SetEffectEnabled turns e on or off without changing its chain position.
// It does nothing if e is not in the chain.
func (m *Manager) SetEffectEnabled(e Effect, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.passes[e]; ok {
		p.enabled = enabled
	}
}

// IsEffectEnabled reports whether e is in the chain and enabled.
func (m *Manager) IsEffectEnabled(e Effect) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.passes[e]
	return ok && p.enabled
}

// HasEffect reports whether e is in the chain, enabled or not.
func (m *Manager) HasEffect(e Effect) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.passes[e]
	return ok
}

// Chain returns the chain order, disabled entries included.
func (m *Manager) Chain() []Effect {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order)
}

// ActiveEffectCount returns the number of enabled effects in the chain.
func (m *Manager) ActiveEffectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.order {
		if p := m.passes[e]; p != nil && p.enabled {
			n++
		}
	}
	return n
}

// Params returns a copy of the current parameter block.
func (m *Manager) Params() Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params
}

// SetParams replaces the parameter block. Invalid parameters are rejected
// and the current block kept.
func (m *Manager) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.params = p
	m.mu.Unlock()
	return nil
}

// UpdateParams applies fn to a copy of the parameter block and stores the
// result if it validates.
func (m *Manager) UpdateParams(fn func(*Params)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.params
	fn(&p)
	if err := p.Validate(); err != nil {
		return err
	}
	m.params = p
	return nil
}

// SetDebug turns per-step chain logging on or off.
func (m *Manager) SetDebug(on bool) {
	m.mu.Lock()
	m.debug = on
	m.mu.Unlock()
}

// Debug reports whether per-step chain logging is on.
func (m *Manager) Debug() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debug
}

// Size returns the resolution of the intermediate surfaces.
func (m *Manager) Size() (width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width, m.height
}

// Stats returns the work counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Resize recreates the intermediate surface pair at the new size.
// Effects keep their state. If recreation fails the Manager has no
// intermediate surfaces until a later Resize succeeds; chains of one
// enabled effect and direct copies still work.
func (m *Manager) Resize(width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return ErrNotInitialized
	}
	if err := m.surfaces.Resize(m.dev, width, height); err != nil {
		Logger().Warn("postfx: resize failed",
			slog.Int("width", width), slog.Int("height", height), slog.Any("error", err))
		return err
	}
	m.width, m.height = width, height
	Logger().Info("postfx: manager resized",
		slog.Int("width", width), slog.Int("height", height))
	return nil
}

// Shutdown releases every resource and detaches the device. It is safe to
// call more than once. The chain order is discarded.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownLocked()
}

func (m *Manager) shutdownLocked() {
	if m.dev == nil {
		return
	}
	m.clearLocked()
	m.releaseShared()
	m.dev = nil
	Logger().Info("postfx: manager shut down")
}

// Process runs the chain over in and writes the result to out.
//
// Enabled effects run in chain order. The first reads in, the last writes
// out, and the ones between write to the intermediate surfaces in turn.
// Disabled effects are skipped without consuming a surface. With no
// enabled effects, in is copied to out.
//
// Process never fails: a pass that cannot run is skipped with a warning
// and the chain continues from the last good image.
func (m *Manager) Process(ctx Context, in Texture, out RenderTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := Logger()
	switch {
	case m.dev == nil:
		log.Warn("postfx: process skipped", slog.Any("error", ErrNotInitialized))
		return
	case ctx == nil || in == nil || out == nil:
		log.Warn("postfx: process skipped: nil context or image")
		return
	case sameResource(in, out):
		log.Warn("postfx: process skipped", slog.Any("error", ErrSameResource))
		return
	}

	params := m.params
	m.stats.Frames++

	chain := m.enabledPasses()
	if len(chain) == 0 {
		m.copy(ctx, in, out, &params)
		m.flush(ctx)
		return
	}

	var src Texture = in
	for i, p := range chain {
		last := i == len(chain)-1

		var dst RenderTarget = out
		var next Texture
		if !last {
			s := m.scratchFor(src)
			if s == nil {
				log.Warn("postfx: no intermediate surface, skipping",
					slog.String("effect", p.effect.String()))
				m.stats.Skipped++
				continue
			}
			dst, next = s, s
		}

		if m.debug {
			log.Debug("postfx: apply",
				slog.Int("step", i),
				slog.String("effect", p.effect.String()),
				slog.Bool("final", last))
		}
		if err := p.apply(ctx, src, dst, &params); err != nil {
			log.Warn("postfx: pass skipped",
				slog.String("effect", p.effect.String()), slog.Any("error", err))
			m.stats.Skipped++
			if last {
				m.copy(ctx, src, out, &params)
			}
			continue
		}
		m.stats.Applied++
		if !last {
			src = next
		}
	}
	m.flush(ctx)
}

// enabledPasses returns the passes that will run this frame, in order.
func (m *Manager) enabledPasses() []*pass {
	chain := make([]*pass, 0, len(m.order))
	for _, e := range m.order {
		p := m.passes[e]
		if p == nil || !p.initialized() {
			Logger().Warn("postfx: effect in chain has no usable pass",
				slog.String("effect", e.String()))
			m.stats.Skipped++
			continue
		}
		if p.enabled {
			chain = append(chain, p)
		}
	}
	return chain
}

// scratchFor returns the intermediate surface that is not src.
func (m *Manager) scratchFor(src Texture) Surface {
	if !m.surfaces.Valid() {
		return nil
	}
	a := m.surfaces.Surface(0)
	if sameResource(src, a) {
		return m.surfaces.Surface(1)
	}
	return a
}

// copy writes src to dst directly when the sizes match and through the
// copy pass otherwise.
func (m *Manager) copy(ctx Context, src Texture, dst RenderTarget, params *Params) {
	if sameResource(src, dst) {
		return
	}
	m.stats.Copies++
	if src.Width() == dst.Width() && src.Height() == dst.Height() {
		err := ctx.CopyTexture(dst, src)
		if err == nil {
			return
		}
		Logger().Debug("postfx: direct copy failed, drawing instead", slog.Any("error", err))
	}
	if err := m.copyPass.apply(ctx, src, dst, params); err != nil {
		Logger().Warn("postfx: copy failed", slog.Any("error", err))
	}
}

func (m *Manager) flush(ctx Context) {
	if err := ctx.Flush(); err != nil {
		Logger().Warn("postfx: flush failed", slog.Any("error", err))
	}
}
