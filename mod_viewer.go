package plexus

import (
	"errors"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"

	rtapp "github.com/gekko3d/plexus/plexusrt/rt/app"
	"github.com/gekko3d/plexus/plexusrt/rt/gpu"
)

// Viewer owns the window and the WebGPU renderer. Its pipeline is created lazily by
// PipelineFactory so PlexusModule drives the same GPU buffers the viewer draws.
type Viewer struct {
	Width  int
	Height int
	Title  string

	Window *glfw.Window
	App    *rtapp.App
}

func NewViewer(width, height int, title string) *Viewer {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	if title == "" {
		title = "plexus"
	}
	return &Viewer{Width: width, Height: height, Title: title}
}

// PipelineFactory opens the window on first use. Call from the main thread.
func (v *Viewer) PipelineFactory(cfg Config, log Logger) (Pipeline, error) {
	if v.App != nil {
		return nil, errors.New("viewer: pipeline already created")
	}
	opts, err := cfg.PipelineOptions(log)
	if err != nil {
		return nil, err
	}
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(v.Width, v.Height, v.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	v.Window = win

	v.App = rtapp.NewApp(win, log)
	v.App.ParticleSize = cfg.ParticleSize
	if err := v.App.Init(gpu.OptionsFrom(opts)); err != nil {
		v.close()
		return nil, err
	}
	return &viewerPipeline{GpuPipeline: v.App.Pipeline, viewer: v}, nil
}

func (v *Viewer) close() {
	if v.App != nil {
		v.App.Release()
		v.App = nil
	}
	if v.Window != nil {
		v.Window.Destroy()
		v.Window = nil
		glfw.Terminate()
	}
}

type viewerPipeline struct {
	*gpu.GpuPipeline
	viewer *Viewer
}

func (p *viewerPipeline) Release() {
	p.GpuPipeline.Release()
	p.viewer.close()
}

// ViewerModule presents every tick in Render and stops the app when the window closes.
type ViewerModule struct {
	Viewer *Viewer
}

func (mod ViewerModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(mod.Viewer)
	cmd.UseSystem(System(viewerEventsSystem).InStage(PreUpdate).InState(OnExecute(StateRunning)))
	cmd.UseSystem(System(viewerRenderSystem).InStage(Render).InState(OnExecute(StateRunning)))
}

func viewerEventsSystem(cmd *Commands, v *Viewer) {
	if v.Window == nil {
		return
	}
	glfw.PollEvents()
	if v.Window.ShouldClose() {
		cmd.ChangeState(StateStopped)
	}
}

func viewerRenderSystem(cmd *Commands, v *Viewer, state *PlexusState) {
	if v.App == nil || v.App.Pipeline == nil {
		return
	}
	cfg := state.Config()
	v.App.LineColor = cfg.LineColor
	v.App.ParticleColor = cfg.ParticleColor
	v.App.ParticleSize = cfg.ParticleSize
	if err := v.App.Render(); err != nil {
		cmd.Logger().Warnf("render: %v", err)
	}
}
