package postfx

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ParamsLayoutVersion identifies the byte layout produced by AppendBlock.
// Every shader reads the block by row and lane, so any change to field
// order or count must bump this together with all shader sources.
const ParamsLayoutVersion = 1

// ParamsBlockSize is the encoded size of the parameter block in bytes:
// seven vec4<f32> rows.
const ParamsBlockSize = paramsRows * 16

const paramsRows = 7

// DisplayGamma is the default Params.Gamma. Color correction treats it as
// neutral and adjusts by DisplayGamma/Gamma.
const DisplayGamma = 2.2

// Params is the aggregate of every tunable value any effect reads.
// Each effect's shader reads only its own subset.
type Params struct {
	// General.
	Intensity float32
	Threshold float32
	Radius    float32
	Sigma     float32

	// Color.
	ColorTint  [3]float32
	Contrast   float32
	Brightness float32
	Saturation float32
	Gamma      float32

	// Bloom.
	BloomThreshold  float32
	BloomIntensity  float32
	BloomBlurPasses int

	// Tone mapping.
	Exposure   float32
	WhitePoint float32

	// FXAA.
	FXAASpanMax   float32
	FXAAReduceMin float32
	FXAAReduceMul float32

	// Vignette.
	VignetteRadius   float32
	VignetteSoftness float32
	VignetteColor    [3]float32
}

// DefaultParams returns the parameter defaults.
func DefaultParams() Params {
	return Params{
		Intensity:        1,
		Threshold:        0.5,
		Radius:           1,
		Sigma:            1,
		ColorTint:        [3]float32{1, 1, 1},
		Contrast:         1,
		Brightness:       0,
		Saturation:       1,
		Gamma:            DisplayGamma,
		BloomThreshold:   1,
		BloomIntensity:   1,
		BloomBlurPasses:  3,
		Exposure:         1,
		WhitePoint:       1,
		FXAASpanMax:      8,
		FXAAReduceMin:    1.0 / 128.0,
		FXAAReduceMul:    1.0 / 8.0,
		VignetteRadius:   0.8,
		VignetteSoftness: 0.2,
		VignetteColor:    [3]float32{0, 0, 0},
	}
}

// Validate reports whether p can be encoded and sampled safely.
// NaN and infinite values are rejected, as are negative radius, sigma,
// vignette softness and blur pass counts.
func (p *Params) Validate() error {
	for i, v := range p.lanes(1, 1) {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite value at lane %d", ErrInvalidParams, i)
		}
	}
	switch {
	case p.Radius < 0:
		return fmt.Errorf("%w: radius %v < 0", ErrInvalidParams, p.Radius)
	case p.Sigma < 0:
		return fmt.Errorf("%w: sigma %v < 0", ErrInvalidParams, p.Sigma)
	case p.VignetteSoftness < 0:
		return fmt.Errorf("%w: vignette softness %v < 0", ErrInvalidParams, p.VignetteSoftness)
	case p.BloomBlurPasses < 0:
		return fmt.Errorf("%w: bloom blur passes %d < 0", ErrInvalidParams, p.BloomBlurPasses)
	}
	return nil
}

// Resolution is row 0 of the encoded block: the size of the pass output.
type Resolution struct {
	Width, Height           float32
	TexelWidth, TexelHeight float32
}

func resolutionOf(width, height int) Resolution {
	r := Resolution{Width: float32(width), Height: float32(height)}
	if width > 0 {
		r.TexelWidth = 1 / r.Width
	}
	if height > 0 {
		r.TexelHeight = 1 / r.Height
	}
	return r
}

// lanes flattens p into the block's 28 float lanes.
func (p *Params) lanes(width, height int) [paramsRows * 4]float32 {
	r := resolutionOf(width, height)
	return [paramsRows * 4]float32{
		r.Width, r.Height, r.TexelWidth, r.TexelHeight,
		p.Intensity, p.Threshold, p.Radius, p.Sigma,
		p.ColorTint[0], p.ColorTint[1], p.ColorTint[2], p.Contrast,
		p.Brightness, p.Saturation, p.Gamma, p.BloomThreshold,
		p.BloomIntensity, float32(p.BloomBlurPasses), p.Exposure, p.WhitePoint,
		p.FXAASpanMax, p.FXAAReduceMin, p.FXAAReduceMul, p.VignetteRadius,
		p.VignetteColor[0], p.VignetteColor[1], p.VignetteColor[2], p.VignetteSoftness,
	}
}

// AppendBlock appends the encoded parameter block for an output of the
// given size to dst and returns the extended slice.
func (p *Params) AppendBlock(dst []byte, width, height int) []byte {
	for _, v := range p.lanes(width, height) {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// Vec4s returns the block as seven vec4 rows, the shape shader uniform
// arrays take on backends that set uniforms by value.
func (p *Params) Vec4s(width, height int) []float32 {
	l := p.lanes(width, height)
	return l[:]
}

// DecodeBlock parses an encoded block. Trailing alignment padding is
// ignored.
func DecodeBlock(b []byte) (Params, Resolution, error) {
	if len(b) < ParamsBlockSize {
		return Params{}, Resolution{}, fmt.Errorf("%w: block is %d bytes, want at least %d",
			ErrInvalidParams, len(b), ParamsBlockSize)
	}
	var l [paramsRows * 4]float32
	for i := range l {
		l[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	r := Resolution{Width: l[0], Height: l[1], TexelWidth: l[2], TexelHeight: l[3]}
	p := Params{
		Intensity: l[4], Threshold: l[5], Radius: l[6], Sigma: l[7],
		ColorTint:        [3]float32{l[8], l[9], l[10]},
		Contrast:         l[11],
		Brightness:       l[12],
		Saturation:       l[13],
		Gamma:            l[14],
		BloomThreshold:   l[15],
		BloomIntensity:   l[16],
		BloomBlurPasses:  int(l[17]),
		Exposure:         l[18],
		WhitePoint:       l[19],
		FXAASpanMax:      l[20],
		FXAAReduceMin:    l[21],
		FXAAReduceMul:    l[22],
		VignetteRadius:   l[23],
		VignetteColor:    [3]float32{l[24], l[25], l[26]},
		VignetteSoftness: l[27],
	}
	return p, r, nil
}

// AlignedSize rounds size up to a multiple of alignment. An alignment of
// zero or less means 16, the uniform buffer alignment every supported
// device accepts.
func AlignedSize(size, alignment int) int {
	if alignment <= 0 {
		alignment = 16
	}
	return (size + alignment - 1) / alignment * alignment
}
