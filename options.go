package postfx

// Option configures a Manager during creation.
//
// Example:
//
//	m := postfx.NewManager(
//	    postfx.WithEffects(postfx.EffectBloom, postfx.EffectToneMapping),
//	    postfx.WithDebug(true),
//	)
type Option func(*managerOptions)

// managerOptions holds optional configuration for Manager creation.
type managerOptions struct {
	params  Params
	debug   bool
	sampler SamplerDesc
	effects []Effect
}

func defaultOptions() managerOptions {
	return managerOptions{
		params:  DefaultParams(),
		sampler: SamplerDesc{Filter: FilterLinear, Address: AddressClamp},
	}
}

// WithParams sets the initial parameter block.
// Invalid parameters are ignored and the defaults kept.
func WithParams(p Params) Option {
	return func(o *managerOptions) {
		if p.Validate() == nil {
			o.params = p
		}
	}
}

// WithDebug enables per-step chain logging at debug level.
func WithDebug(on bool) Option {
	return func(o *managerOptions) {
		o.debug = on
	}
}

// WithSampler replaces the shared sampler description. The default is
// linear filtering with edge-clamped addressing.
func WithSampler(desc SamplerDesc) Option {
	return func(o *managerOptions) {
		o.sampler = desc
	}
}

// WithEffects adds effects, in order, when the Manager is initialized.
//
// Example:
//
//	m := postfx.NewManager(postfx.WithEffects(postfx.EffectVignette))
//	if err := m.Initialize(dev, 1280, 720); err != nil {
//	    return err
//	}
func WithEffects(effects ...Effect) Option {
	return func(o *managerOptions) {
		o.effects = append(o.effects, effects...)
	}
}
