package wgpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/framepump"
	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/allbackends"
	"github.com/gogpu/wgpu/hal/noop"
)

func init() {
	driver.Register(driver.BackendWGPU, func() driver.Backend {
		return &Backend{name: driver.BackendWGPU, candidates: registeredBackends}
	})
	driver.Register(driver.BackendNoop, func() driver.Backend {
		return &Backend{name: driver.BackendNoop, candidates: func() []hal.Backend {
			return []hal.Backend{noop.API{}}
		}}
	})
}

// backendPriority is the order in which HAL backends are tried.
var backendPriority = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
	gputypes.BackendEmpty,
}

func registeredBackends() []hal.Backend {
	var out []hal.Backend
	for _, v := range backendPriority {
		if b, ok := hal.GetBackend(v); ok {
			out = append(out, b)
		}
	}
	return out
}

// GPUInfo describes the adapter a context was opened on.
type GPUInfo struct {
	Name       string
	Vendor     string
	DeviceType gputypes.DeviceType
	Backend    gputypes.Backend
	Driver     string
}

func (g GPUInfo) String() string {
	return fmt.Sprintf("%s (%s, %s)", g.Name, g.DeviceType, g.Backend)
}

// Backend opens HAL devices for windows.
type Backend struct {
	name       string
	candidates func() []hal.Backend

	info GPUInfo
}

// Name returns the registry name.
func (b *Backend) Name() string { return b.name }

// Info returns the adapter of the last successful Open.
func (b *Backend) Info() GPUInfo { return b.info }

// Open tries each HAL backend in priority order and returns a context for
// the first that yields an adapter able to present to the window.
func (b *Backend) Open(ctx context.Context, window gpucontext.WindowProvider, handles driver.NativeHandles) (*driver.Context, error) {
	hal.SetLogger(framepump.Logger())

	candidates := b.candidates()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s: no HAL backend registered", driver.ErrBackendNotAvailable, b.name)
	}
	var errs []error
	for _, hb := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := b.open(hb, window, handles)
		if err == nil {
			return c, nil
		}
		framepump.Logger().Warn("wgpu: backend unavailable", "backend", hb.Variant().String(), "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", hb.Variant(), err))
	}
	return nil, fmt.Errorf("%w: %s: %w", driver.ErrBackendNotAvailable, b.name, errors.Join(errs...))
}

func (b *Backend) open(hb hal.Backend, window gpucontext.WindowProvider, handles driver.NativeHandles) (*driver.Context, error) {
	inst, err := hb.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	surf, err := inst.CreateSurface(handles.Display, handles.Window)
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("create surface: %w", err)
	}
	adapter, ok := takeAdapter(inst.EnumerateAdapters(surf))
	if !ok {
		surf.Destroy()
		inst.Destroy()
		return nil, errors.New("no adapter")
	}
	od, err := adapter.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		adapter.Adapter.Destroy()
		surf.Destroy()
		inst.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	b.info = GPUInfo{
		Name:       adapter.Info.Name,
		Vendor:     adapter.Info.Vendor,
		DeviceType: adapter.Info.DeviceType,
		Backend:    adapter.Info.Backend,
		Driver:     adapter.Info.Driver,
	}
	framepump.Logger().Info("wgpu: device opened",
		"gpu", b.info.Name, "vendor", b.info.Vendor, "type", b.info.DeviceType.String(),
		"backend", b.info.Backend.String(), "driver", b.info.Driver)

	dev := NewDevice(od.Device, od.Queue)
	surface := NewSurface(surf, adapter.Adapter, window, adapter.Capabilities.Limits)
	release := func() error {
		err := dev.WaitIdle()
		if surface.configured {
			surf.Unconfigure(od.Device)
		}
		surf.Destroy()
		od.Device.Destroy()
		adapter.Adapter.Destroy()
		inst.Destroy()
		return err
	}
	return driver.NewContext(dev, dev.Queue(), surface, release), nil
}

// takeAdapter selects an adapter and destroys the others.
func takeAdapter(adapters []hal.ExposedAdapter) (hal.ExposedAdapter, bool) {
	i := selectAdapter(adapters)
	for j, a := range adapters {
		if j != i && a.Adapter != nil {
			a.Adapter.Destroy()
		}
	}
	if i < 0 {
		return hal.ExposedAdapter{}, false
	}
	return adapters[i], true
}

// selectAdapter returns the index of a discrete GPU, then an integrated
// one, then the first adapter reported. It returns -1 for none.
func selectAdapter(adapters []hal.ExposedAdapter) int {
	if len(adapters) == 0 {
		return -1
	}
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i, a := range adapters {
			if a.Info.DeviceType == want {
				return i
			}
		}
	}
	return 0
}
