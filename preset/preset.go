// Package preset loads effect chains and parameters from TOML or YAML
// files and applies them to a postfx.Manager.
//
// A preset lists effects in chain order and overrides any subset of the
// parameter block:
//
//	name = "cinematic"
//
//	[[effects]]
//	name = "bloom"
//
//	[[effects]]
//	name = "tone_mapping"
//
//	[[effects]]
//	name = "vignette"
//	enabled = false
//
//	[params]
//	bloom_threshold = 0.8
//	exposure = 1.2
//
// Parameters that are not mentioned keep their value from the base block
// (postfx.DefaultParams for Apply).
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/postfx"
)

// Format is a preset file encoding.
type Format string

// Supported formats.
const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// ErrUnknownFormat is returned for file extensions other than .toml,
// .yaml and .yml.
var ErrUnknownFormat = errors.New("preset: unknown format")

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Entry is one effect of the chain.
type Entry struct {
	Name string `toml:"name" yaml:"name"`
	// Enabled defaults to true.
	Enabled *bool `toml:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the entry is enabled.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Overrides holds the parameters a preset sets. Nil fields are left
// unchanged.
type Overrides struct {
	Intensity *float32 `toml:"intensity,omitempty" yaml:"intensity,omitempty"`
	Threshold *float32 `toml:"threshold,omitempty" yaml:"threshold,omitempty"`
	Radius    *float32 `toml:"radius,omitempty" yaml:"radius,omitempty"`
	Sigma     *float32 `toml:"sigma,omitempty" yaml:"sigma,omitempty"`

	ColorTint  *[3]float32 `toml:"color_tint,omitempty" yaml:"color_tint,omitempty"`
	Contrast   *float32    `toml:"contrast,omitempty" yaml:"contrast,omitempty"`
	Brightness *float32    `toml:"brightness,omitempty" yaml:"brightness,omitempty"`
	Saturation *float32    `toml:"saturation,omitempty" yaml:"saturation,omitempty"`
	Gamma      *float32    `toml:"gamma,omitempty" yaml:"gamma,omitempty"`

	BloomThreshold  *float32 `toml:"bloom_threshold,omitempty" yaml:"bloom_threshold,omitempty"`
	BloomIntensity  *float32 `toml:"bloom_intensity,omitempty" yaml:"bloom_intensity,omitempty"`
	BloomBlurPasses *int     `toml:"bloom_blur_passes,omitempty" yaml:"bloom_blur_passes,omitempty"`

	Exposure   *float32 `toml:"exposure,omitempty" yaml:"exposure,omitempty"`
	WhitePoint *float32 `toml:"white_point,omitempty" yaml:"white_point,omitempty"`

	FXAASpanMax   *float32 `toml:"fxaa_span_max,omitempty" yaml:"fxaa_span_max,omitempty"`
	FXAAReduceMin *float32 `toml:"fxaa_reduce_min,omitempty" yaml:"fxaa_reduce_min,omitempty"`
	FXAAReduceMul *float32 `toml:"fxaa_reduce_mul,omitempty" yaml:"fxaa_reduce_mul,omitempty"`

	VignetteRadius   *float32    `toml:"vignette_radius,omitempty" yaml:"vignette_radius,omitempty"`
	VignetteSoftness *float32    `toml:"vignette_softness,omitempty" yaml:"vignette_softness,omitempty"`
	VignetteColor    *[3]float32 `toml:"vignette_color,omitempty" yaml:"vignette_color,omitempty"`
}

// Preset is a named effect chain with parameter overrides.
type Preset struct {
	Name      string    `toml:"name,omitempty" yaml:"name,omitempty"`
	Effects   []Entry   `toml:"effects" yaml:"effects"`
	Overrides Overrides `toml:"params,omitempty" yaml:"params,omitempty"`
}

// Parse decodes a preset. Unknown keys are errors so that typos do not
// silently fall back to defaults.
func Parse(data []byte, format Format) (*Preset, error) {
	var p Preset
	switch format {
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("preset: toml: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("preset: yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads and parses the preset file at path.
func Load(path string) (*Preset, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preset: %w", err)
	}
	p, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Encode serializes p.
func Encode(p *Preset, format Format) ([]byte, error) {
	switch format {
	case TOML:
		return toml.Marshal(p)
	case YAML:
		return yaml.Marshal(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Save writes p to path in the format its extension names.
func Save(p *Preset, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(p, format)
	if err != nil {
		return fmt.Errorf("preset: encode: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks effect names, duplicates and the parameters the
// overrides produce on top of the defaults.
func (p *Preset) Validate() error {
	if _, err := p.Chain(); err != nil {
		return err
	}
	params := p.Params(postfx.DefaultParams())
	if err := params.Validate(); err != nil {
		return fmt.Errorf("preset: %w", err)
	}
	return nil
}

// Chain resolves the effect names in order.
func (p *Preset) Chain() ([]postfx.Effect, error) {
	out := make([]postfx.Effect, 0, len(p.Effects))
	seen := make(map[postfx.Effect]bool, len(p.Effects))
	for i, e := range p.Effects {
		eff, err := postfx.ParseEffect(e.Name)
		if err != nil {
			return nil, fmt.Errorf("preset: effect %d: %w", i, err)
		}
		if eff == postfx.EffectNone {
			return nil, fmt.Errorf("preset: effect %d: %w: %q cannot be chained", i, postfx.ErrUnknownEffect, e.Name)
		}
		if seen[eff] {
			return nil, fmt.Errorf("preset: effect %q listed twice", eff)
		}
		seen[eff] = true
		out = append(out, eff)
	}
	return out, nil
}

// Params returns base with the overrides applied.
func (p *Preset) Params(base postfx.Params) postfx.Params {
	o := &p.Overrides
	set(&base.Intensity, o.Intensity)
	set(&base.Threshold, o.Threshold)
	set(&base.Radius, o.Radius)
	set(&base.Sigma, o.Sigma)
	set(&base.ColorTint, o.ColorTint)
	set(&base.Contrast, o.Contrast)
	set(&base.Brightness, o.Brightness)
	set(&base.Saturation, o.Saturation)
	set(&base.Gamma, o.Gamma)
	set(&base.BloomThreshold, o.BloomThreshold)
	set(&base.BloomIntensity, o.BloomIntensity)
	set(&base.BloomBlurPasses, o.BloomBlurPasses)
	set(&base.Exposure, o.Exposure)
	set(&base.WhitePoint, o.WhitePoint)
	set(&base.FXAASpanMax, o.FXAASpanMax)
	set(&base.FXAAReduceMin, o.FXAAReduceMin)
	set(&base.FXAAReduceMul, o.FXAAReduceMul)
	set(&base.VignetteRadius, o.VignetteRadius)
	set(&base.VignetteSoftness, o.VignetteSoftness)
	set(&base.VignetteColor, o.VignetteColor)
	return base
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Apply replaces m's chain and parameters with the preset's. The
// manager must be initialized. Parameters are set first, so a chain
// that fails part-way still runs with the preset's parameters.
func (p *Preset) Apply(m *postfx.Manager) error {
	if !m.Initialized() {
		return postfx.ErrNotInitialized
	}
	chain, err := p.Chain()
	if err != nil {
		return err
	}
	if err := m.SetParams(p.Params(postfx.DefaultParams())); err != nil {
		return fmt.Errorf("preset: %w", err)
	}
	m.ClearEffects()
	var errs []error
	for i, e := range chain {
		if err := m.AddEffect(e); err != nil {
			errs = append(errs, fmt.Errorf("preset: add %s: %w", e, err))
			continue
		}
		m.SetEffectEnabled(e, p.Effects[i].IsEnabled())
	}
	return errors.Join(errs...)
}

// FromManager captures m's chain, enabled flags and parameters. Every
// parameter is written, not only those that differ from the defaults.
func FromManager(name string, m *postfx.Manager) *Preset {
	p := &Preset{Name: name}
	for _, e := range m.Chain() {
		enabled := m.IsEffectEnabled(e)
		entry := Entry{Name: e.String()}
		if !enabled {
			entry.Enabled = &enabled
		}
		p.Effects = append(p.Effects, entry)
	}
	v := m.Params()
	p.Overrides = Overrides{
		Intensity:        &v.Intensity,
		Threshold:        &v.Threshold,
		Radius:           &v.Radius,
		Sigma:            &v.Sigma,
		ColorTint:        &v.ColorTint,
		Contrast:         &v.Contrast,
		Brightness:       &v.Brightness,
		Saturation:       &v.Saturation,
		Gamma:            &v.Gamma,
		BloomThreshold:   &v.BloomThreshold,
		BloomIntensity:   &v.BloomIntensity,
		BloomBlurPasses:  &v.BloomBlurPasses,
		Exposure:         &v.Exposure,
		WhitePoint:       &v.WhitePoint,
		FXAASpanMax:      &v.FXAASpanMax,
		FXAAReduceMin:    &v.FXAAReduceMin,
		FXAAReduceMul:    &v.FXAAReduceMul,
		VignetteRadius:   &v.VignetteRadius,
		VignetteSoftness: &v.VignetteSoftness,
		VignetteColor:    &v.VignetteColor,
	}
	return p
}
