package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
	"github.com/gekko3d/plexus/plexusrt/rt/shaders"
)

// RenderUniforms is the shared camera/color block of both render passes.
type RenderUniforms struct {
	Buffer *wgpu.Buffer
	Device *wgpu.Device
}

func NewRenderUniforms(device *wgpu.Device) (*RenderUniforms, error) {
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "RenderUniforms",
		Size:  core.RenderUniformsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render uniforms buffer: %w", err)
	}
	return &RenderUniforms{Buffer: buf, Device: device}, nil
}

func (u *RenderUniforms) Update(queue *wgpu.Queue, params core.RenderParams) {
	queue.WriteBuffer(u.Buffer, 0, params.Marshal())
}

func (u *RenderUniforms) Release() {
	releaseBuffer(&u.Buffer)
}

func alphaBlend() *wgpu.BlendState {
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
	}
}

func createRenderPipeline(device *wgpu.Device, label, code string, format wgpu.TextureFormat, topology wgpu.PrimitiveTopology) (*wgpu.RenderPipeline, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s shader module: %w", label, err)
	}
	defer module.Release()

	pl, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: label + "Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
				Blend:     alphaBlend(),
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s pipeline: %w", label, err)
	}
	return pl, nil
}

// LineRenderPass draws the line buffer as an instanced line list driven by the
// pipeline's render args, so the host never learns the line count.
type LineRenderPass struct {
	Pipeline  *wgpu.RenderPipeline
	BindGroup *wgpu.BindGroup
	Device    *wgpu.Device
}

func NewLineRenderPass(device *wgpu.Device, format wgpu.TextureFormat) (*LineRenderPass, error) {
	pl, err := createRenderPipeline(device, "LinesRender", shaders.LinesRenderWGSL, format, wgpu.PrimitiveTopologyLineList)
	if err != nil {
		return nil, err
	}
	return &LineRenderPass{Pipeline: pl, Device: device}, nil
}

// Bind rebuilds the bind group; call again when the line buffer changes.
func (p *LineRenderPass) Bind(uniforms *RenderUniforms, lines *wgpu.Buffer) error {
	releaseBindGroup(&p.BindGroup)
	bg, err := p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "LinesRenderBG",
		Layout: p.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniforms.Buffer, Size: core.RenderUniformsSize},
			{Binding: 1, Buffer: lines, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create lines render bind group: %w", err)
	}
	p.BindGroup = bg
	return nil
}

func (p *LineRenderPass) Draw(pass *wgpu.RenderPassEncoder, args *wgpu.Buffer) {
	if p.BindGroup == nil || args == nil {
		return
	}
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.BindGroup, nil)
	pass.DrawIndirect(args, 0)
}

func (p *LineRenderPass) Release() {
	releaseBindGroup(&p.BindGroup)
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}

// ParticleRenderPass draws every particle as a camera-facing quad.
type ParticleRenderPass struct {
	Pipeline  *wgpu.RenderPipeline
	BindGroup *wgpu.BindGroup
	Count     uint32
	Device    *wgpu.Device
}

func NewParticleRenderPass(device *wgpu.Device, format wgpu.TextureFormat) (*ParticleRenderPass, error) {
	pl, err := createRenderPipeline(device, "ParticlesRender", shaders.ParticlesRenderWGSL, format, wgpu.PrimitiveTopologyTriangleList)
	if err != nil {
		return nil, err
	}
	return &ParticleRenderPass{Pipeline: pl, Device: device}, nil
}

func (p *ParticleRenderPass) Bind(uniforms *RenderUniforms, particles *wgpu.Buffer, count uint32) error {
	releaseBindGroup(&p.BindGroup)
	p.Count = 0
	if particles == nil || count == 0 {
		return nil
	}
	bg, err := p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ParticlesRenderBG",
		Layout: p.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniforms.Buffer, Size: core.RenderUniformsSize},
			{Binding: 1, Buffer: particles, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create particles render bind group: %w", err)
	}
	p.BindGroup = bg
	p.Count = count
	return nil
}

func (p *ParticleRenderPass) Draw(pass *wgpu.RenderPassEncoder) {
	if p.BindGroup == nil {
		return
	}
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.BindGroup, nil)
	pass.Draw(6, p.Count, 0, 0)
}

func (p *ParticleRenderPass) Release() {
	releaseBindGroup(&p.BindGroup)
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}
