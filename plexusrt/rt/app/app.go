package app

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/plexus/plexusrt/rt/core"
	"github.com/gekko3d/plexus/plexusrt/rt/gpu"
)

// App is the windowed WebGPU viewer: it owns the surface, the GPU pipeline and the two
// render passes that draw its output.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration
	Ctx      *gpu.Context

	Pipeline     *gpu.GpuPipeline
	Uniforms     *gpu.RenderUniforms
	LinePass     *gpu.LineRenderPass
	ParticlePass *gpu.ParticleRenderPass

	Camera   *core.OrbitCamera
	Profiler *Profiler
	Log      core.Logger

	LineColor     [4]float32
	ParticleColor [4]float32
	ParticleSize  float32
	ShowParticles bool

	dragging     bool
	lastX, lastY float64
}

func NewApp(window *glfw.Window, log core.Logger) *App {
	if log == nil {
		log = core.NopLogger()
	}
	return &App{
		Window:        window,
		Camera:        core.NewOrbitCamera(),
		Profiler:      NewProfiler(),
		Log:           log,
		LineColor:     [4]float32{1, 1, 1, 1},
		ParticleColor: [4]float32{1, 1, 1, 1},
		ParticleSize:  0.05,
		ShowParticles: true,
	}
}

func (a *App) Init(opts gpu.Options) error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	// the app keeps the instance; the context borrows it
	ctx, err := gpu.NewContext(a.Instance, a.Surface)
	if err != nil {
		return err
	}
	a.Ctx = ctx

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(ctx.Adapter)
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(ctx.Adapter, ctx.Device, a.Config)
	a.Camera.Aspect = aspect(width, height)

	if opts.Logger == nil {
		opts.Logger = a.Log
	}
	a.Pipeline, err = gpu.NewGpuPipeline(ctx.Device, opts)
	if err != nil {
		return err
	}

	if a.Uniforms, err = gpu.NewRenderUniforms(ctx.Device); err != nil {
		return err
	}
	if a.LinePass, err = gpu.NewLineRenderPass(ctx.Device, a.Config.Format); err != nil {
		return err
	}
	if a.ParticlePass, err = gpu.NewParticleRenderPass(ctx.Device, a.Config.Format); err != nil {
		return err
	}
	if a.Pipeline.LineBuf != nil {
		if err := a.LinePass.Bind(a.Uniforms, a.Pipeline.LineBuf); err != nil {
			return err
		}
	}
	if err := a.ParticlePass.Bind(a.Uniforms, a.Pipeline.ParticleBuf, a.Pipeline.ParticleCount); err != nil {
		return err
	}

	a.installCallbacks()
	return nil
}

func aspect(width, height int) float32 {
	if height <= 0 {
		return 1
	}
	return float32(width) / float32(height)
}

func (a *App) installCallbacks() {
	a.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		a.Resize(width, height)
	})
	a.Window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		a.dragging = action == glfw.Press
		a.lastX, a.lastY = w.GetCursorPos()
	})
	a.Window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		if !a.dragging {
			return
		}
		a.Camera.Orbit(float32(x-a.lastX)*0.005, float32(y-a.lastY)*0.005)
		a.lastX, a.lastY = x, y
	})
	a.Window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		a.Camera.Zoom(1 - float32(yoff)*0.1)
	})
}

func (a *App) Resize(width, height int) {
	if width <= 0 || height <= 0 || a.Config == nil {
		return
	}
	a.Config.Width = uint32(width)
	a.Config.Height = uint32(height)
	a.Surface.Configure(a.Ctx.Adapter, a.Ctx.Device, a.Config)
	a.Camera.Aspect = aspect(width, height)
}

// Render draws the lines through the indirect args, then the particles on top.
func (a *App) Render() error {
	defer a.Profiler.Scope("render")()

	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("get current texture: %w", err)
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create view: %w", err)
	}
	defer view.Release()

	params := a.Camera.RenderParams()
	params.LineColor = a.LineColor
	params.ParticleColor = a.ParticleColor
	params.ParticleSize = a.ParticleSize
	a.Uniforms.Update(a.Ctx.Queue, params)

	encoder, err := a.Ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})
	a.LinePass.Draw(rPass, a.Pipeline.RenderArgs())
	if a.ShowParticles {
		a.ParticlePass.Draw(rPass)
	}
	if err := rPass.End(); err != nil {
		return fmt.Errorf("render pass end: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	a.Ctx.Queue.Submit(cmd)
	a.Surface.Present()
	return nil
}

// Release tears down in reverse creation order. Safe to call twice.
func (a *App) Release() {
	if a.ParticlePass != nil {
		a.ParticlePass.Release()
		a.ParticlePass = nil
	}
	if a.LinePass != nil {
		a.LinePass.Release()
		a.LinePass = nil
	}
	if a.Uniforms != nil {
		a.Uniforms.Release()
		a.Uniforms = nil
	}
	if a.Pipeline != nil {
		a.Pipeline.Release()
		a.Pipeline = nil
	}
	if a.Surface != nil {
		a.Surface.Release()
		a.Surface = nil
	}
	a.Ctx.Release()
	a.Ctx = nil
	if a.Instance != nil {
		a.Instance.Release()
		a.Instance = nil
	}
}
