package postfx

import (
	"errors"
	"slices"
	"testing"
)

func newTestManager(t *testing.T, effects ...Effect) (*Manager, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice()
	m := NewManager()
	if err := m.Initialize(dev, 64, 32); err != nil {
		t.Fatalf("Initialize() = %v", err)
	}
	for _, e := range effects {
		if err := m.AddEffect(e); err != nil {
			t.Fatalf("AddEffect(%v) = %v", e, err)
		}
	}
	t.Cleanup(m.Shutdown)
	return m, dev
}

func process(m *Manager) (*fakeContext, *fakeRes) {
	ctx := newFakeContext()
	out := newImage("out", 64, 32)
	m.Process(ctx, newImage("scene", 64, 32), out)
	return ctx, out
}

func TestManagerInitializeErrors(t *testing.T) {
	tests := []struct {
		name  string
		dev   func() *fakeDevice
		w, h  int
		want  error
		noDev bool
	}{
		{"nil device", nil, 8, 8, ErrNilDevice, true},
		{"zero width", newFakeDevice, 0, 8, ErrInvalidSize, false},
		{"negative height", newFakeDevice, 8, -1, ErrInvalidSize, false},
		{"geometry failure", func() *fakeDevice {
			d := newFakeDevice()
			d.failGeometry = true
			return d
		}, 8, 8, ErrResourceCreate, false},
		{"sampler failure", func() *fakeDevice {
			d := newFakeDevice()
			d.failSampler = true
			return d
		}, 8, 8, ErrResourceCreate, false},
		{"second surface failure", func() *fakeDevice {
			d := newFakeDevice()
			d.failSurfaceAt = 2
			return d
		}, 8, 8, ErrResourceCreate, false},
		{"copy shader failure", func() *fakeDevice {
			d := newFakeDevice()
			d.failShader["copy"] = true
			return d
		}, 8, 8, ErrShaderCompile, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			var err error
			var dev *fakeDevice
			if tt.noDev {
				err = m.Initialize(nil, tt.w, tt.h)
			} else {
				dev = tt.dev()
				err = m.Initialize(dev, tt.w, tt.h)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Initialize() = %v, want %v", err, tt.want)
			}
			if m.Initialized() {
				t.Error("Initialized() = true after failure")
			}
			if dev != nil && dev.liveTotal() != 0 {
				t.Errorf("live resources after failed Initialize = %v, want none", dev.live)
			}
		})
	}
}

func TestManagerInitializeCreatesQuadOnce(t *testing.T) {
	m, dev := newTestManager(t, EffectGrayscale, EffectVignette)
	for range 3 {
		process(m)
	}
	if dev.geometries != 1 {
		t.Errorf("geometry created %d times, want 1", dev.geometries)
	}
	ctx, _ := process(m)
	for _, d := range ctx.draws {
		if d.vertices != quadVertexCount {
			t.Errorf("draw of %d vertices, want %d", d.vertices, quadVertexCount)
		}
	}
}

func TestAddEffectIdempotent(t *testing.T) {
	m, dev := newTestManager(t)
	if err := m.AddEffect(EffectBloom); err != nil {
		t.Fatal(err)
	}
	shaders := dev.live["shader"]
	if err := m.AddEffect(EffectBloom); err != nil {
		t.Fatal(err)
	}
	if got := m.Chain(); !slices.Equal(got, []Effect{EffectBloom}) {
		t.Errorf("Chain() = %v, want [bloom]", got)
	}
	if dev.live["shader"] != shaders {
		t.Errorf("second AddEffect created shaders: %d -> %d", shaders, dev.live["shader"])
	}
}

func TestAddEffectRejectsNoneAndUnknown(t *testing.T) {
	m, _ := newTestManager(t)
	for _, e := range []Effect{EffectNone, effectCount, 200} {
		if err := m.AddEffect(e); !errors.Is(err, ErrUnknownEffect) {
			t.Errorf("AddEffect(%d) = %v, want ErrUnknownEffect", e, err)
		}
	}
	if len(m.Chain()) != 0 {
		t.Errorf("Chain() = %v, want empty", m.Chain())
	}
}

func TestAddEffectBeforeInitialize(t *testing.T) {
	m := NewManager()
	if err := m.AddEffect(EffectBloom); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("AddEffect() = %v, want ErrNotInitialized", err)
	}
}

func TestAddEffectFailureLeavesChainUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeDevice)
		want  error
	}{
		{"pixel shader", func(d *fakeDevice) { d.failShader["bloom"] = true }, ErrShaderCompile},
		{"vertex shader", func(d *fakeDevice) { d.failShader[VertexShaderName] = true }, ErrShaderCompile},
		{"buffer", func(d *fakeDevice) { d.failBuffer = true }, ErrResourceCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, dev := newTestManager(t, EffectGrayscale)
			before := dev.liveTotal()
			tt.setup(dev)

			err := m.AddEffect(EffectBloom)
			if !errors.Is(err, tt.want) {
				t.Fatalf("AddEffect() = %v, want %v", err, tt.want)
			}
			if m.HasEffect(EffectBloom) {
				t.Error("failed effect is in the chain")
			}
			if got := m.Chain(); !slices.Equal(got, []Effect{EffectGrayscale}) {
				t.Errorf("Chain() = %v, want [grayscale]", got)
			}
			if dev.liveTotal() != before {
				t.Errorf("live resources %d -> %d, partial pass leaked", before, dev.liveTotal())
			}

			_, out := process(m)
			if out.content != "grayscale(scene)" {
				t.Errorf("output = %q, want grayscale(scene)", out.content)
			}
		})
	}
}

func TestRemoveEffect(t *testing.T) {
	m, dev := newTestManager(t, EffectGrayscale, EffectBloom, EffectVignette)

	before := m.Chain()
	m.RemoveEffect(EffectFXAA)
	if got := m.Chain(); !slices.Equal(got, before) {
		t.Errorf("removing an absent effect changed the chain: %v -> %v", before, got)
	}

	shaders := dev.live["shader"]
	m.RemoveEffect(EffectBloom)
	if got := m.Chain(); !slices.Equal(got, []Effect{EffectGrayscale, EffectVignette}) {
		t.Errorf("Chain() = %v, want [grayscale vignette]", got)
	}
	if dev.live["shader"] != shaders-2 || dev.live["buffer"] != 3 {
		t.Errorf("removed pass not released: %v", dev.live)
	}

	m.RemoveEffect(EffectBloom)
	if len(m.Chain()) != 2 {
		t.Errorf("second RemoveEffect changed the chain: %v", m.Chain())
	}
}

func TestClearEffects(t *testing.T) {
	m, dev := newTestManager(t, EffectGrayscale, EffectBloom)
	m.ClearEffects()
	if len(m.Chain()) != 0 || m.ActiveEffectCount() != 0 {
		t.Errorf("chain not empty after ClearEffects: %v", m.Chain())
	}
	// Only the copy pass keeps a buffer.
	if dev.live["buffer"] != 1 {
		t.Errorf("live buffers = %d, want 1", dev.live["buffer"])
	}
	if err := m.AddEffect(EffectBloom); err != nil {
		t.Fatalf("AddEffect after ClearEffects = %v", err)
	}
}

func TestSetEffectEnabled(t *testing.T) {
	m, _ := newTestManager(t, EffectGrayscale, EffectBloom)

	m.SetEffectEnabled(EffectBloom, false)
	if m.IsEffectEnabled(EffectBloom) {
		t.Error("IsEffectEnabled(bloom) = true after disabling")
	}
	if !m.HasEffect(EffectBloom) {
		t.Error("disabled effect left the chain")
	}
	if m.ActiveEffectCount() != 1 {
		t.Errorf("ActiveEffectCount() = %d, want 1", m.ActiveEffectCount())
	}

	m.SetEffectEnabled(EffectVignette, true)
	if m.HasEffect(EffectVignette) || m.IsEffectEnabled(EffectVignette) {
		t.Error("SetEffectEnabled added an absent effect")
	}
}

func TestProcessEmptyChainCopies(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, out := process(m)
	if out.content != "scene" {
		t.Errorf("output = %q, want scene", out.content)
	}
	if ctx.copies != 1 || len(ctx.draws) != 0 {
		t.Errorf("copies = %d draws = %d, want one copy and no draws", ctx.copies, len(ctx.draws))
	}
	if ctx.flushes != 1 {
		t.Errorf("flushes = %d, want 1", ctx.flushes)
	}
}

func TestProcessAllDisabledCopies(t *testing.T) {
	m, _ := newTestManager(t, EffectGrayscale, EffectBloom)
	m.SetEffectEnabled(EffectGrayscale, false)
	m.SetEffectEnabled(EffectBloom, false)
	_, out := process(m)
	if out.content != "scene" {
		t.Errorf("output = %q, want scene", out.content)
	}
}

func TestProcessCopyFallsBackToCopyPass(t *testing.T) {
	m, _ := newTestManager(t)

	ctx := newFakeContext()
	out := newImage("out", 32, 16)
	m.Process(ctx, newImage("scene", 64, 32), out)
	if out.content != "copy(scene)" {
		t.Errorf("scaled copy output = %q, want copy(scene)", out.content)
	}

	ctx = newFakeContext()
	ctx.failCopy = true
	out = newImage("out", 64, 32)
	m.Process(ctx, newImage("scene", 64, 32), out)
	if out.content != "copy(scene)" {
		t.Errorf("failed direct copy output = %q, want copy(scene)", out.content)
	}
}

func TestProcessChainOrder(t *testing.T) {
	m, _ := newTestManager(t, EffectBloom, EffectToneMapping, EffectVignette)
	ctx, out := process(m)

	if want := "vignette(tone_mapping(bloom(scene)))"; out.content != want {
		t.Errorf("output = %q, want %q", out.content, want)
	}
	if len(ctx.draws) != 3 {
		t.Fatalf("draws = %d, want 3", len(ctx.draws))
	}
	if ctx.draws[0].in != "scene" {
		t.Errorf("first pass read %q, want scene", ctx.draws[0].in)
	}
	if ctx.draws[2].out != "out" {
		t.Errorf("last pass wrote %q, want out", ctx.draws[2].out)
	}
	for i := 1; i < len(ctx.draws); i++ {
		if ctx.draws[i].in != ctx.draws[i-1].out {
			t.Errorf("pass %d read %q, previous wrote %q", i, ctx.draws[i].in, ctx.draws[i-1].out)
		}
		if ctx.draws[i].in == ctx.draws[i].out {
			t.Errorf("pass %d reads and writes %q", i, ctx.draws[i].in)
		}
	}
}

func TestProcessDisabledEffectIsTransparent(t *testing.T) {
	m, _ := newTestManager(t, EffectGrayscale, EffectBloom, EffectVignette)
	m.SetEffectEnabled(EffectBloom, false)
	_, withDisabled := process(m)

	ref, _ := newTestManager(t, EffectGrayscale, EffectVignette)
	_, reference := process(ref)

	if withDisabled.content != reference.content {
		t.Errorf("[A, B(off), C] = %q, [A, C] = %q", withDisabled.content, reference.content)
	}
	if withDisabled.content != "vignette(grayscale(scene))" {
		t.Errorf("output = %q", withDisabled.content)
	}
}

func TestProcessToggleKeepsPosition(t *testing.T) {
	m, _ := newTestManager(t, EffectGrayscale, EffectBloom, EffectVignette)
	_, before := process(m)

	m.SetEffectEnabled(EffectBloom, false)
	m.SetEffectEnabled(EffectBloom, true)
	_, after := process(m)

	if before.content != after.content {
		t.Errorf("after toggle = %q, before = %q", after.content, before.content)
	}
	if got := m.Chain(); !slices.Equal(got, []Effect{EffectGrayscale, EffectBloom, EffectVignette}) {
		t.Errorf("Chain() = %v", got)
	}
}

func TestProcessUsesTwoIntermediates(t *testing.T) {
	m, dev := newTestManager(t, Effects()...)
	ctx, _ := process(m)

	if len(ctx.draws) != len(Effects()) {
		t.Fatalf("draws = %d, want %d", len(ctx.draws), len(Effects()))
	}
	targets := make(map[string]bool)
	for _, d := range ctx.draws[:len(ctx.draws)-1] {
		targets[d.out] = true
	}
	if len(targets) != 2 {
		t.Errorf("intermediate targets = %v, want exactly 2", targets)
	}
	if dev.live["surface"] != 2 || dev.surfacesCreated != 2 {
		t.Errorf("surfaces live = %d created = %d, want 2 and 2", dev.live["surface"], dev.surfacesCreated)
	}
}

func TestProcessPassState(t *testing.T) {
	m, _ := newTestManager(t, EffectVignette)
	ctx := newFakeContext()
	out := newImage("out", 40, 20)
	m.Process(ctx, newImage("scene", 64, 32), out)

	if len(ctx.draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(ctx.draws))
	}
	d := ctx.draws[0]
	if d.viewport != [4]int{0, 0, 40, 20} {
		t.Errorf("viewport = %v, want output size", d.viewport)
	}
	if len(d.block) != ParamsBlockSize {
		t.Fatalf("parameter block = %d bytes, want %d", len(d.block), ParamsBlockSize)
	}
	_, res, err := DecodeBlock(d.block)
	if err != nil {
		t.Fatal(err)
	}
	if res.Width != 40 || res.Height != 20 {
		t.Errorf("block resolution = %vx%v, want 40x20", res.Width, res.Height)
	}
	if len(ctx.textures) != 0 || ctx.unbound != 1 {
		t.Errorf("input texture left bound: %v", ctx.textures)
	}
}

func TestProcessParamsSnapshot(t *testing.T) {
	m, _ := newTestManager(t, EffectGrayscale)
	if err := m.UpdateParams(func(p *Params) { p.Intensity = 0.25 }); err != nil {
		t.Fatal(err)
	}
	ctx, _ := process(m)
	p, _, err := DecodeBlock(ctx.draws[0].block)
	if err != nil {
		t.Fatal(err)
	}
	if p.Intensity != 0.25 {
		t.Errorf("intensity in block = %v, want 0.25", p.Intensity)
	}
}

func TestProcessFailedPassIsSkipped(t *testing.T) {
	m, _ := newTestManager(t, EffectGrayscale, EffectVignette)
	ctx := newFakeContext()
	ctx.failUpdate = true
	out := newImage("out", 64, 32)
	m.Process(ctx, newImage("scene", 64, 32), out)

	if out.content != "scene" {
		t.Errorf("output = %q, want the input copied through", out.content)
	}
	if s := m.Stats(); s.Skipped != 2 || s.Applied != 0 {
		t.Errorf("Stats() = %+v, want 2 skipped", s)
	}
}

func TestProcessRejectsMisuse(t *testing.T) {
	m, _ := newTestManager(t, EffectGrayscale)

	ctx := newFakeContext()
	img := newImage("scene", 64, 32)
	m.Process(ctx, img, img)
	m.Process(ctx, nil, img)
	m.Process(nil, img, newImage("out", 64, 32))
	if len(ctx.draws) != 0 || ctx.copies != 0 || ctx.flushes != 0 {
		t.Errorf("misuse reached the context: %+v", ctx)
	}
	if img.content != "scene" {
		t.Errorf("input modified: %q", img.content)
	}

	uninit := NewManager()
	out := newImage("out", 64, 32)
	uninit.Process(ctx, img, out)
	if out.content != "out" {
		t.Errorf("uninitialized manager wrote output: %q", out.content)
	}
}

func TestResize(t *testing.T) {
	m, dev := newTestManager(t, EffectGrayscale, EffectVignette)
	for _, size := range [][2]int{{128, 96}, {16, 8}, {640, 360}} {
		if err := m.Resize(size[0], size[1]); err != nil {
			t.Fatalf("Resize(%v) = %v", size, err)
		}
		w, h := m.surfaces.Size()
		if w != size[0] || h != size[1] {
			t.Errorf("surface pair = %dx%d, want %v", w, h, size)
		}
		for i := range 2 {
			s := m.surfaces.Surface(i)
			if s.Width() != size[0] || s.Height() != size[1] {
				t.Errorf("surface %d = %dx%d, want %v", i, s.Width(), s.Height(), size)
			}
		}
		if dev.live["surface"] != 2 {
			t.Errorf("live surfaces = %d, want 2", dev.live["surface"])
		}
	}
	if got := m.Chain(); len(got) != 2 {
		t.Errorf("Resize changed the chain: %v", got)
	}
	if err := m.Resize(0, 10); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("Resize(0, 10) = %v, want ErrInvalidSize", err)
	}
}

func TestResizeBeforeInitialize(t *testing.T) {
	if err := NewManager().Resize(10, 10); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Resize() = %v, want ErrNotInitialized", err)
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	dev := newFakeDevice()
	m := NewManager(WithEffects(EffectBloom, EffectFXAA))
	if err := m.Initialize(dev, 32, 32); err != nil {
		t.Fatal(err)
	}
	if len(m.Chain()) != 2 {
		t.Fatalf("WithEffects chain = %v", m.Chain())
	}
	m.Shutdown()
	m.Shutdown()
	if dev.liveTotal() != 0 {
		t.Errorf("live resources after Shutdown = %v", dev.live)
	}
	if m.Initialized() || len(m.Chain()) != 0 {
		t.Error("manager still initialized after Shutdown")
	}
}

func TestSetParamsValidates(t *testing.T) {
	m := NewManager()
	bad := DefaultParams()
	bad.Radius = -1
	if err := m.SetParams(bad); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("SetParams() = %v, want ErrInvalidParams", err)
	}
	if m.Params() != DefaultParams() {
		t.Error("rejected params were stored")
	}
	if err := m.UpdateParams(func(p *Params) { p.Sigma = -2 }); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("UpdateParams() = %v, want ErrInvalidParams", err)
	}
}

func TestDebugAndStats(t *testing.T) {
	m, _ := newTestManager(t, EffectGrayscale)
	m.SetDebug(true)
	if !m.Debug() {
		t.Error("Debug() = false after SetDebug(true)")
	}
	process(m)
	m.ClearEffects()
	process(m)
	s := m.Stats()
	if s.Frames != 2 || s.Applied != 1 || s.Copies != 1 {
		t.Errorf("Stats() = %+v, want 2 frames, 1 applied, 1 copy", s)
	}
}

// valueImage is a host image passed by value. The slice field makes the
// type incomparable.
type valueImage struct {
	pix  []byte
	w, h int
}

func (v valueImage) Width() int  { return v.w }
func (v valueImage) Height() int { return v.h }

func newValueImage(w, h int) valueImage {
	return valueImage{pix: make([]byte, w*h*4), w: w, h: h}
}

func TestSameResource(t *testing.T) {
	a := newImage("a", 4, 4)
	v := newValueImage(4, 4)
	tests := []struct {
		name string
		in   Texture
		out  RenderTarget
		want bool
	}{
		{"same pointer", a, a, true},
		{"different pointers", a, newImage("b", 4, 4), false},
		{"different types", a, v, false},
		{"incomparable values", v, v, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sameResource(tt.in, tt.out); got != tt.want {
				t.Errorf("sameResource() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessIncomparableImages(t *testing.T) {
	m, _ := newTestManager(t, EffectInvert, EffectVignette)
	ctx := newFakeContext()
	m.Process(ctx, newValueImage(64, 32), newValueImage(64, 32))
	if len(ctx.draws) != 2 {
		t.Errorf("draws = %d, want 2", len(ctx.draws))
	}
	if got := m.Stats().Applied; got != 2 {
		t.Errorf("Applied = %d, want 2", got)
	}

	m.ClearEffects()
	ctx = newFakeContext()
	m.Process(ctx, newValueImage(64, 32), newValueImage(64, 32))
	if ctx.copies != 1 {
		t.Errorf("empty chain copies = %d, want 1", ctx.copies)
	}
}
