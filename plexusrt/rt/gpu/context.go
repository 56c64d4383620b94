package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Context holds the wgpu objects a GpuPipeline runs on.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	ownsInstance bool
}

// NewContext requests a high performance adapter. surface may be nil for headless runs.
// A nil instance is created here and released with the context; a caller's instance
// stays with the caller.
func NewContext(instance *wgpu.Instance, surface *wgpu.Surface) (*Context, error) {
	owns := instance == nil
	if owns {
		instance = wgpu.CreateInstance(nil)
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		if owns {
			instance.Release()
		}
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		if owns {
			instance.Release()
		}
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	return &Context{
		Instance:     instance,
		Adapter:      adapter,
		Device:       device,
		Queue:        device.GetQueue(),
		ownsInstance: owns,
	}, nil
}

func (c *Context) Release() {
	if c == nil {
		return
	}
	if c.Device != nil {
		c.Device.Release()
		c.Device = nil
	}
	if c.Adapter != nil {
		c.Adapter.Release()
		c.Adapter = nil
	}
	c.Queue = nil
	if c.Instance != nil && c.ownsInstance {
		c.Instance.Release()
	}
	c.Instance = nil
}

// OwnsInstance reports whether Release also releases the instance.
func (c *Context) OwnsInstance() bool { return c != nil && c.ownsInstance }
