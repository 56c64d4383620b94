package plexus

import (
	"fmt"

	"github.com/gekko3d/plexus/plexusrt/rt/compute"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
	"github.com/gekko3d/plexus/plexusrt/rt/gpu"
	"github.com/gekko3d/plexus/plexusrt/rt/pipeline"
)

// Pipeline is the per-tick surface PlexusModule drives. Both backends implement it.
type Pipeline interface {
	Simulate(params core.SimParams) error
	Extract() error
	GenerateLines(params core.LineParams) error
	PrepareDrawArgs() error
	ReadBackCount() (uint32, error)
	ReadBackStats() (pipeline.ReadbackStats, error)
	Faults() []error
	Release()
}

// PipelineFactory builds the pipeline from the start-up fields of a config.
type PipelineFactory func(cfg Config, log Logger) (Pipeline, error)

// ComputePipeline owns its software device and closes it on release.
type ComputePipeline struct {
	*pipeline.Pipeline
	device *compute.Device
}

func (p *ComputePipeline) Release() {
	p.Pipeline.Release()
	p.device.Close()
}

// WebGPUPipeline owns a headless wgpu context.
type WebGPUPipeline struct {
	*gpu.GpuPipeline
	ctx *gpu.Context
}

func (p *WebGPUPipeline) Release() {
	p.GpuPipeline.Release()
	p.ctx.Release()
}

// NewPipeline picks the backend named by cfg.Backend. There is no fallback between
// backends: a webgpu run without an adapter fails.
func NewPipeline(cfg Config, log Logger) (Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.PipelineOptions(log)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendWebGPU:
		ctx, err := gpu.NewContext(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("webgpu backend: %w", err)
		}
		gp, err := gpu.NewGpuPipeline(ctx.Device, gpu.OptionsFrom(opts))
		if err != nil {
			ctx.Release()
			return nil, err
		}
		return &WebGPUPipeline{GpuPipeline: gp, ctx: ctx}, nil
	default:
		limits := compute.DefaultLimits()
		limits.Workers = cfg.Workers
		device := compute.NewDevice("plexus", limits)
		p, err := pipeline.New(device, opts)
		if err != nil {
			device.Close()
			return nil, err
		}
		return &ComputePipeline{Pipeline: p, device: device}, nil
	}
}
