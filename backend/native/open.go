package native

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx"
	"github.com/gogpu/postfx/backend"
)

func init() {
	backend.Register(backend.Native, func() (backend.Backend, error) {
		d, err := Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", backend.ErrBackendNotAvailable, err)
		}
		return d, nil
	})
}

// backendPreference orders hal backends for Open.
var backendPreference = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
	gputypes.BackendBrowserWebGPU,
}

// Open opens the first registered hardware hal backend that exposes an
// adapter. The placeholder backends registered as gputypes.BackendEmpty
// are never chosen; use OpenBackend for those.
func Open(opts ...Option) (*Device, error) {
	available := hal.AvailableBackends()
	for _, variant := range backendPreference {
		if !slices.Contains(available, variant) {
			continue
		}
		d, err := OpenBackend(variant, opts...)
		if err == nil {
			return d, nil
		}
		postfx.Logger().Debug("native: backend unavailable",
			slog.String("backend", variant.String()), slog.Any("error", err))
	}
	return nil, ErrNoAdapter
}

// OpenBackend creates an instance of the registered hal backend variant
// and opens its first adapter. Close releases the device and instance.
func OpenBackend(variant gputypes.Backend, opts ...Option) (*Device, error) {
	api, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("native: %w: %v", hal.ErrBackendNotFound, variant)
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("native: create %v instance: %w", variant, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	exposed := adapters[0]
	open, err := exposed.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open %s: %w", exposed.Info.Name, err)
	}
	release := func() {
		open.Device.Destroy()
		exposed.Adapter.Destroy()
		instance.Destroy()
	}
	d, err := newDevice(open.Device, open.Queue, release, opts)
	if err != nil {
		release()
		return nil, err
	}
	postfx.Logger().Info("native: opened adapter",
		slog.String("backend", variant.String()),
		slog.String("adapter", exposed.Info.Name))
	return d, nil
}

// NewFromProvider wraps the hal device and queue of a host application.
// The provider must expose them through HalDevice() and HalQueue()
// methods, as the gogpu windowing package does.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	if provider == nil {
		return nil, postfx.ErrNilDevice
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("native: provider %T does not expose hal objects", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}
	return New(device, queue, opts...)
}
