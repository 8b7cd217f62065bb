package postfx

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Effect identifies a kind of full-screen transformation.
//
// The set is closed: adding a kind means adding the constant here and its
// row in effectTable. Manager logic does not change.
type Effect uint8

// Effect constants, in declaration order.
const (
	// EffectNone is the identity pass. The Manager uses it to copy the
	// input to the output when nothing else runs.
	EffectNone Effect = iota

	// EffectGrayscale blends toward Rec. 601 luma by Params.Intensity.
	EffectGrayscale

	// EffectSepia blends toward a sepia tone by Params.Intensity.
	EffectSepia

	// EffectInvert blends toward the inverted color by Params.Intensity.
	EffectInvert

	// EffectBlur is a box blur scaled by Params.Radius.
	EffectBlur

	// EffectGaussianBlur is a 9x9 Gaussian blur using Params.Radius and
	// Params.Sigma.
	EffectGaussianBlur

	// EffectBloom adds blurred highlights above Params.BloomThreshold.
	EffectBloom

	// EffectToneMapping applies exposure, Reinhard mapping and gamma.
	EffectToneMapping

	// EffectFXAA is luma-based fast approximate anti-aliasing.
	EffectFXAA

	// EffectVignette darkens toward the image corners.
	EffectVignette

	// EffectColorCorrection applies contrast, brightness, saturation,
	// tint and a gamma adjustment of DisplayGamma/Params.Gamma.
	EffectColorCorrection

	effectCount
)

const unknownStr = "unknown"

// VertexShaderName is the vertex stage shared by every effect.
const VertexShaderName = "fullscreen"

type effectInfo struct {
	name   string
	shader string
}

var effectTable = [effectCount]effectInfo{
	EffectNone:            {name: "none", shader: "copy"},
	EffectGrayscale:       {name: "grayscale", shader: "grayscale"},
	EffectSepia:           {name: "sepia", shader: "sepia"},
	EffectInvert:          {name: "invert", shader: "invert"},
	EffectBlur:            {name: "blur", shader: "box_blur"},
	EffectGaussianBlur:    {name: "gaussian_blur", shader: "gaussian_blur"},
	EffectBloom:           {name: "bloom", shader: "bloom"},
	EffectToneMapping:     {name: "tone_mapping", shader: "tone_mapping"},
	EffectFXAA:            {name: "fxaa", shader: "fxaa"},
	EffectVignette:        {name: "vignette", shader: "vignette"},
	EffectColorCorrection: {name: "color_correction", shader: "color_correction"},
}

// effectByName is built once from effectTable.
var effectByName = func() map[string]Effect {
	m := make(map[string]Effect, effectCount)
	for e := range effectCount {
		m[effectTable[e].name] = e
	}
	return m
}()

// Valid reports whether e is a member of the enumeration.
func (e Effect) Valid() bool {
	return e < effectCount
}

// String returns the canonical snake_case name of the effect.
func (e Effect) String() string {
	if !e.Valid() {
		return unknownStr
	}
	return effectTable[e].name
}

// ShaderName returns the pixel-stage shader identifier for e, or the empty
// string for values outside the enumeration.
func (e Effect) ShaderName() string {
	if !e.Valid() {
		return ""
	}
	return effectTable[e].shader
}

// Effects returns every chainable effect in declaration order.
// EffectNone is not included.
func Effects() []Effect {
	out := make([]Effect, 0, effectCount-1)
	for e := EffectNone + 1; e < effectCount; e++ {
		out = append(out, e)
	}
	return out
}

// ParseEffect returns the effect named by s. Matching is case-insensitive
// and treats '-', ' ' and '_' alike, so "Tone Mapping", "tone-mapping" and
// "TONE_MAPPING" all name EffectToneMapping.
func ParseEffect(s string) (Effect, error) {
	key := normalizeName(s)
	if e, ok := effectByName[key]; ok {
		return e, nil
	}
	return EffectNone, fmt.Errorf("%w: %q", ErrUnknownEffect, s)
}

var nameReplacer = strings.NewReplacer("-", "_", " ", "_")

func normalizeName(s string) string {
	return nameReplacer.Replace(cases.Fold().String(strings.TrimSpace(s)))
}

// MarshalText implements encoding.TextMarshaler.
func (e Effect) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEffect, uint8(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Effect) UnmarshalText(text []byte) error {
	v, err := ParseEffect(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
