package postfx

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.Intensity != 1 || p.Gamma != 2.2 || p.BloomBlurPasses != 3 {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.VignetteRadius != 0.8 || p.VignetteSoftness != 0.2 {
		t.Errorf("vignette defaults = %v, %v", p.VignetteRadius, p.VignetteSoftness)
	}
	if p.FXAAReduceMin != 1.0/128.0 || p.FXAAReduceMul != 1.0/8.0 {
		t.Errorf("fxaa defaults = %v, %v", p.FXAAReduceMin, p.FXAAReduceMul)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestParamsBlockLayout(t *testing.T) {
	if ParamsBlockSize%16 != 0 {
		t.Fatalf("ParamsBlockSize = %d, not a multiple of 16", ParamsBlockSize)
	}
	p := DefaultParams()
	p.Exposure = 3.5
	p.VignetteSoftness = 0.125
	b := p.AppendBlock(nil, 200, 100)
	if len(b) != ParamsBlockSize {
		t.Fatalf("len(block) = %d, want %d", len(b), ParamsBlockSize)
	}

	lane := func(row, col int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b[(row*4+col)*4:]))
	}
	tests := []struct {
		name     string
		row, col int
		want     float32
	}{
		{"width", 0, 0, 200},
		{"texel height", 0, 3, 0.01},
		{"intensity", 1, 0, 1},
		{"gamma", 3, 2, 2.2},
		{"blur passes", 4, 1, 3},
		{"exposure", 4, 2, 3.5},
		{"vignette radius", 5, 3, 0.8},
		{"vignette softness", 6, 3, 0.125},
	}
	for _, tt := range tests {
		if got := lane(tt.row, tt.col); got != tt.want {
			t.Errorf("%s at row %d lane %d = %v, want %v", tt.name, tt.row, tt.col, got, tt.want)
		}
	}
}

func TestDecodeBlock(t *testing.T) {
	p := DefaultParams()
	p.ColorTint = [3]float32{0.5, 0.25, 1}
	p.BloomBlurPasses = 5
	block := p.AppendBlock(nil, 64, 32)
	block = append(block, make([]byte, 16)...)

	got, res, err := DecodeBlock(block)
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Errorf("DecodeBlock() = %+v, want %+v", got, p)
	}
	if res.Width != 64 || res.Height != 32 || res.TexelWidth != 1.0/64 {
		t.Errorf("resolution = %+v", res)
	}

	if _, _, err := DecodeBlock(block[:ParamsBlockSize-1]); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("short block error = %v, want ErrInvalidParams", err)
	}
}

func TestParamsValidate(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"nan intensity", func(p *Params) { p.Intensity = nan }},
		{"inf exposure", func(p *Params) { p.Exposure = inf }},
		{"nan tint", func(p *Params) { p.ColorTint[1] = nan }},
		{"negative radius", func(p *Params) { p.Radius = -0.5 }},
		{"negative sigma", func(p *Params) { p.Sigma = -1 }},
		{"negative softness", func(p *Params) { p.VignetteSoftness = -0.1 }},
		{"negative passes", func(p *Params) { p.BloomBlurPasses = -1 }},
	}
	for _, tt := range tests {
		p := DefaultParams()
		tt.mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidParams", tt.name, err)
		}
	}
}

func TestAlignedSize(t *testing.T) {
	tests := []struct{ size, align, want int }{
		{112, 16, 112},
		{100, 16, 112},
		{112, 0, 112},
		{112, 256, 256},
		{1, -4, 16},
	}
	for _, tt := range tests {
		if got := AlignedSize(tt.size, tt.align); got != tt.want {
			t.Errorf("AlignedSize(%d, %d) = %d, want %d", tt.size, tt.align, got, tt.want)
		}
	}
}

func TestPassBufferUsesDeviceAlignment(t *testing.T) {
	dev := newFakeDevice()
	dev.alignment = 256
	m := NewManager(WithEffects(EffectGrayscale))
	if err := m.Initialize(dev, 8, 8); err != nil {
		t.Fatal(err)
	}
	defer m.Shutdown()
	p := m.passes[EffectGrayscale]
	if p.buffer.Size() != 256 {
		t.Errorf("buffer size = %d, want 256", p.buffer.Size())
	}
}
