package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
	"github.com/gekko3d/plexus/plexusrt/rt/pipeline"
	"github.com/gekko3d/plexus/plexusrt/rt/shaders"
)

// Readback layout: draw args (16 bytes) followed by the two line counters (8 bytes).
const (
	readbackArgsOffset    = 0
	readbackCounterOffset = core.IndirectArgsSize
	readbackSize          = core.IndirectArgsSize + core.LineCounterSize
)

type Options struct {
	ParticleCount int
	SphereRadius  float32
	Velocity      float32
	MaxLines      int
	MaxAttempts   uint32

	Source              pipeline.VertexSource
	ExternalVertices    *wgpu.Buffer // borrowed, VertexStride records
	ExternalVertexCount int
	RandomRadius        float32

	Seed   int64
	Logger core.Logger
}

// OptionsFrom converts the software pipeline options; an external vertex buffer must be
// supplied separately since it lives on a different device.
func OptionsFrom(o pipeline.Options) Options {
	return Options{
		ParticleCount: o.ParticleCount,
		SphereRadius:  o.SphereRadius,
		Velocity:      o.Velocity,
		MaxLines:      o.MaxLines,
		MaxAttempts:   o.MaxAttempts,
		Source:        o.Source,
		RandomRadius:  o.RandomRadius,
		Seed:          o.Seed,
		Logger:        o.Logger,
	}
}

// GpuPipeline runs the particle, vertex and line kernels on a wgpu device and keeps the
// line draw arguments device resident.
type GpuPipeline struct {
	Device *wgpu.Device
	log    core.Logger

	ParticleCount uint32
	VertexCount   uint32
	MaxLines      uint32
	MaxAttempts   uint32

	SimParamsBuf  *wgpu.Buffer
	LineParamsBuf *wgpu.Buffer
	ParticleBuf   *wgpu.Buffer
	VertexBuf     *wgpu.Buffer
	LineBuf       *wgpu.Buffer
	CounterBuf    *wgpu.Buffer
	ArgsBuf       *wgpu.Buffer // {lineCount,1,0,0}
	RenderArgsBuf *wgpu.Buffer // {2,lineCount,0,0} for the instanced line-list draw
	ReadbackBuf   *wgpu.Buffer
	ownsVertices  bool

	ParticlePipeline   *wgpu.ComputePipeline
	CopyVertexPipeline *wgpu.ComputePipeline
	LinesPipeline      *wgpu.ComputePipeline
	ExpandArgsPipeline *wgpu.ComputePipeline

	ParticleBindGroup   *wgpu.BindGroup
	CopyVertexBindGroup *wgpu.BindGroup
	LinesBindGroup      *wgpu.BindGroup
	ExpandArgsBindGroup *wgpu.BindGroup

	simEnabled     bool
	extractEnabled bool
	linesEnabled   bool
	drawEnabled    bool

	faults   []error
	released bool
}

// NewGpuPipeline mirrors pipeline.New: invalid options fail, resource failures disable
// the affected stages and are reported by Faults.
func NewGpuPipeline(device *wgpu.Device, opts Options) (*GpuPipeline, error) {
	if device == nil {
		return nil, errors.New("gpu pipeline: nil device")
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger()
	}
	if opts.MaxLines <= 0 {
		return nil, fmt.Errorf("gpu pipeline: invalid line capacity %d", opts.MaxLines)
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = core.MaxLineCounterNum
	}
	switch opts.Source {
	case pipeline.SourceParticles, pipeline.SourceRandom:
		if opts.ParticleCount <= 0 {
			return nil, fmt.Errorf("gpu pipeline: invalid particle count %d", opts.ParticleCount)
		}
	case pipeline.SourceExternal:
		if opts.ExternalVertices == nil || opts.ExternalVertexCount <= 0 {
			return nil, errors.New("gpu pipeline: external vertex source without a buffer")
		}
	default:
		return nil, fmt.Errorf("gpu pipeline: unknown vertex source %v", opts.Source)
	}

	g := &GpuPipeline{
		Device:      device,
		log:         opts.Logger,
		MaxLines:    uint32(opts.MaxLines),
		MaxAttempts: opts.MaxAttempts,
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	g.linesEnabled = !g.fault(g.initLines())
	switch opts.Source {
	case pipeline.SourceParticles:
		g.simEnabled = !g.fault(g.initParticles(opts, rng))
		if g.simEnabled {
			g.extractEnabled = !g.fault(g.initExtraction())
		}
	case pipeline.SourceRandom:
		g.fault(g.initRandomVertices(opts, rng))
	case pipeline.SourceExternal:
		g.VertexBuf = opts.ExternalVertices
		g.VertexCount = uint32(opts.ExternalVertexCount)
	}
	if g.linesEnabled && g.VertexBuf != nil {
		g.linesEnabled = !g.fault(g.createLinesBindGroup())
	}
	if g.linesEnabled {
		g.drawEnabled = !g.fault(g.initDrawArgs())
	}

	g.log.Infof("gpu pipeline ready: source=%v particles=%d lines=%d faults=%d",
		opts.Source, g.ParticleCount, g.MaxLines, len(g.faults))
	return g, nil
}

func (g *GpuPipeline) fault(err error) bool {
	if err == nil {
		return false
	}
	g.log.Errorf("gpu pipeline: %v", err)
	g.faults = append(g.faults, err)
	return true
}

func (g *GpuPipeline) Faults() []error { return g.faults }

func (g *GpuPipeline) createBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := g.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  alignSize(size),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer: %w", label, err)
	}
	return buf, nil
}

func (g *GpuPipeline) createComputePipeline(label, code string) (*wgpu.ComputePipeline, error) {
	module, err := g.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s shader module: %w", label, err)
	}
	defer module.Release()

	pl, err := g.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label + "Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s pipeline: %w", label, err)
	}
	return pl, nil
}

func (g *GpuPipeline) createBindGroup(label string, pl *wgpu.ComputePipeline, buffers ...*wgpu.Buffer) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, buf := range buffers {
		entries[i] = wgpu.BindGroupEntry{Binding: uint32(i), Buffer: buf, Size: wgpu.WholeSize}
	}
	bg, err := g.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  pl.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s bind group: %w", label, err)
	}
	return bg, nil
}

func (g *GpuPipeline) initParticles(opts Options, rng *rand.Rand) error {
	var err error
	count := opts.ParticleCount
	if g.ParticleBuf, err = g.createBuffer(pipeline.ParticleBufferLabel, uint64(count)*core.ParticleStride,
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	if g.SimParamsBuf, err = g.createBuffer("SimParams", core.SimParamsSize,
		wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	if g.ParticlePipeline, err = g.createComputePipeline("ParticleUpdate", shaders.ParticleUpdateWGSL); err != nil {
		return err
	}
	if g.ParticleBindGroup, err = g.createBindGroup("ParticleUpdateBG", g.ParticlePipeline, g.SimParamsBuf, g.ParticleBuf); err != nil {
		return err
	}

	host := make([]core.ParticleRecord, count)
	for i := range host {
		host[i] = core.ParticleRecord{
			Velocity: core.Direction(rng.Float32(), rng.Float32()).Mul(opts.Velocity),
			Position: core.InsideSphere(opts.SphereRadius, rng.Float32(), rng.Float32(), rng.Float32()),
		}
	}
	g.Device.GetQueue().WriteBuffer(g.ParticleBuf, 0, recordBytes(host))
	g.ParticleCount = uint32(count)
	return nil
}

func (g *GpuPipeline) initExtraction() error {
	var err error
	if g.VertexBuf, err = g.createBuffer(pipeline.VertexBufferLabel, uint64(g.ParticleCount)*core.VertexStride,
		wgpu.BufferUsageStorage|wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	g.ownsVertices = true
	g.VertexCount = g.ParticleCount
	if g.CopyVertexPipeline, err = g.createComputePipeline("CopyVertex", shaders.CopyVertexWGSL); err != nil {
		return err
	}
	g.CopyVertexBindGroup, err = g.createBindGroup("CopyVertexBG", g.CopyVertexPipeline, g.ParticleBuf, g.VertexBuf)
	return err
}

func (g *GpuPipeline) initRandomVertices(opts Options, rng *rand.Rand) error {
	var err error
	count := opts.ParticleCount
	if g.VertexBuf, err = g.createBuffer(pipeline.SeededVertexBufferLabel, uint64(count)*core.VertexStride,
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	g.ownsVertices = true
	host := make([]core.VertexRecord, count)
	for i := range host {
		host[i].Position = core.InsideSphere(opts.RandomRadius, rng.Float32(), rng.Float32(), rng.Float32())
	}
	g.Device.GetQueue().WriteBuffer(g.VertexBuf, 0, recordBytes(host))
	g.VertexCount = uint32(count)
	return nil
}

func (g *GpuPipeline) initLines() error {
	var err error
	if g.LineBuf, err = g.createBuffer(pipeline.LineBufferLabel, uint64(g.MaxLines)*core.LineStride,
		wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if g.CounterBuf, err = g.createBuffer("LineCounter", core.LineCounterSize,
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	if g.LineParamsBuf, err = g.createBuffer("LineParams", core.LineParamsSize,
		wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	g.LinesPipeline, err = g.createComputePipeline("LinesByDistance", shaders.LinesByDistanceWGSL)
	return err
}

func (g *GpuPipeline) createLinesBindGroup() error {
	var err error
	g.LinesBindGroup, err = g.createBindGroup("LinesByDistanceBG", g.LinesPipeline,
		g.LineParamsBuf, g.VertexBuf, g.LineBuf, g.CounterBuf)
	return err
}

func (g *GpuPipeline) initDrawArgs() error {
	var err error
	if g.ArgsBuf, err = g.createBuffer(pipeline.DrawArgsBufferLabel, core.IndirectArgsSize,
		wgpu.BufferUsageStorage|wgpu.BufferUsageIndirect|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	if g.RenderArgsBuf, err = g.createBuffer("DrawLinesRenderArgs", core.IndirectArgsSize,
		wgpu.BufferUsageStorage|wgpu.BufferUsageIndirect); err != nil {
		return err
	}
	if g.ReadbackBuf, err = g.createBuffer("DrawArgsReadback", readbackSize,
		wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	if g.ExpandArgsPipeline, err = g.createComputePipeline("ExpandLineArgs", shaders.ExpandLineArgsWGSL); err != nil {
		return err
	}
	g.ExpandArgsBindGroup, err = g.createBindGroup("ExpandLineArgsBG", g.ExpandArgsPipeline, g.ArgsBuf, g.RenderArgsBuf)
	return err
}

// dispatch records one compute pass into its own command buffer and submits it.
func (g *GpuPipeline) dispatch(label string, pl *wgpu.ComputePipeline, bg *wgpu.BindGroup, groups uint32) error {
	encoder, err := g.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	g.recordPass(encoder, pl, bg, groups)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	g.Device.GetQueue().Submit(cmd)
	return nil
}

func (g *GpuPipeline) recordPass(encoder *wgpu.CommandEncoder, pl *wgpu.ComputePipeline, bg *wgpu.BindGroup, groups uint32) {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pl)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(groups, 1, 1)
	pass.End()
}

func (g *GpuPipeline) Simulate(p core.SimParams) error {
	if g.released || !g.simEnabled {
		return nil
	}
	g.Device.GetQueue().WriteBuffer(g.SimParamsBuf, 0, p.Marshal(g.ParticleCount))
	return g.dispatch("particle update", g.ParticlePipeline, g.ParticleBindGroup, core.Workgroups(g.ParticleCount))
}

func (g *GpuPipeline) Extract() error {
	if g.released || !g.extractEnabled {
		return nil
	}
	return g.dispatch("copy vertex", g.CopyVertexPipeline, g.CopyVertexBindGroup, core.Workgroups(g.VertexCount))
}

// GenerateLines resets both counters with a queue write ahead of the dispatch.
func (g *GpuPipeline) GenerateLines(p core.LineParams) error {
	if g.released || !g.linesEnabled || g.LinesBindGroup == nil {
		return nil
	}
	queue := g.Device.GetQueue()
	queue.WriteBuffer(g.CounterBuf, 0, make([]byte, core.LineCounterSize))
	queue.WriteBuffer(g.LineParamsBuf, 0, p.Marshal(g.VertexCount, g.MaxLines, g.MaxAttempts))
	return g.dispatch("lines by distance", g.LinesPipeline, g.LinesBindGroup, core.Workgroups(g.VertexCount))
}

// PrepareDrawArgs writes the {0,1,0,0} template, copies the emitted count into slot 0
// and expands it into the instanced render args, all on the queue.
func (g *GpuPipeline) PrepareDrawArgs() error {
	if g.released || !g.drawEnabled {
		return nil
	}
	g.Device.GetQueue().WriteBuffer(g.ArgsBuf, 0, core.DrawArgsTemplate.Marshal())

	encoder, err := g.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("prepare draw args: %w", err)
	}
	encoder.CopyBufferToBuffer(g.CounterBuf, 0, g.ArgsBuf, 0, 4)
	g.recordPass(encoder, g.ExpandArgsPipeline, g.ExpandArgsBindGroup, 1)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("prepare draw args: %w", err)
	}
	g.Device.GetQueue().Submit(cmd)
	return nil
}

func (g *GpuPipeline) Tick(sim core.SimParams, lines core.LineParams) error {
	if err := g.Simulate(sim); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	if err := g.Extract(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := g.GenerateLines(lines); err != nil {
		return fmt.Errorf("generate lines: %w", err)
	}
	if err := g.PrepareDrawArgs(); err != nil {
		return fmt.Errorf("prepare draw args: %w", err)
	}
	return nil
}

// readback copies the args and counters into the map-read buffer and blocks until mapped.
func (g *GpuPipeline) readback() (core.IndirectArgs, uint32, uint32, error) {
	encoder, err := g.Device.CreateCommandEncoder(nil)
	if err != nil {
		return core.IndirectArgs{}, 0, 0, fmt.Errorf("readback: %w", err)
	}
	encoder.CopyBufferToBuffer(g.ArgsBuf, 0, g.ReadbackBuf, readbackArgsOffset, core.IndirectArgsSize)
	encoder.CopyBufferToBuffer(g.CounterBuf, 0, g.ReadbackBuf, readbackCounterOffset, core.LineCounterSize)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return core.IndirectArgs{}, 0, 0, fmt.Errorf("readback: %w", err)
	}
	g.Device.GetQueue().Submit(cmd)

	var status wgpu.BufferMapAsyncStatus
	mapped := false
	g.ReadbackBuf.MapAsync(wgpu.MapModeRead, 0, readbackSize, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		mapped = true
	})
	g.Device.Poll(true, nil)
	if !mapped || status != wgpu.BufferMapAsyncStatusSuccess {
		return core.IndirectArgs{}, 0, 0, fmt.Errorf("readback: map failed with status %v", status)
	}
	data := append([]byte(nil), g.ReadbackBuf.GetMappedRange(0, readbackSize)...)
	g.ReadbackBuf.Unmap()
	return parseReadback(data)
}

func parseReadback(data []byte) (core.IndirectArgs, uint32, uint32, error) {
	if len(data) < readbackSize {
		return core.IndirectArgs{}, 0, 0, fmt.Errorf("readback: need %d bytes, got %d", readbackSize, len(data))
	}
	args, err := core.UnmarshalIndirectArgs(data[readbackArgsOffset:])
	if err != nil {
		return core.IndirectArgs{}, 0, 0, err
	}
	emitted := binary.LittleEndian.Uint32(data[readbackCounterOffset:])
	attempts := binary.LittleEndian.Uint32(data[readbackCounterOffset+4:])
	return args, emitted, attempts, nil
}

// ReadBackCount stalls until the queue is idle. Diagnostic only.
func (g *GpuPipeline) ReadBackCount() (uint32, error) {
	if g.released || !g.drawEnabled {
		return 0, nil
	}
	args, _, _, err := g.readback()
	return args.PrimitiveCount, err
}

func (g *GpuPipeline) ReadBackStats() (pipeline.ReadbackStats, error) {
	if g.released || !g.drawEnabled {
		return pipeline.ReadbackStats{}, nil
	}
	_, emitted, attempts, err := g.readback()
	if err != nil {
		return pipeline.ReadbackStats{}, err
	}
	stats := pipeline.ReadbackStats{Emitted: emitted, Attempts: attempts}
	if attempts > emitted {
		stats.Dropped = attempts - emitted
	}
	return stats, nil
}

// RenderArgs is the indirect buffer for LineRenderPass.
func (g *GpuPipeline) RenderArgs() *wgpu.Buffer { return g.RenderArgsBuf }

// Release waits for the queue to drain, then frees every owned resource. Safe to call twice.
func (g *GpuPipeline) Release() {
	if g.released {
		return
	}
	g.released = true
	g.Device.Poll(true, nil)

	releaseBindGroup(&g.ExpandArgsBindGroup)
	releaseBindGroup(&g.LinesBindGroup)
	releaseBindGroup(&g.CopyVertexBindGroup)
	releaseBindGroup(&g.ParticleBindGroup)

	releasePipeline(&g.ExpandArgsPipeline)
	releasePipeline(&g.LinesPipeline)
	releasePipeline(&g.CopyVertexPipeline)
	releasePipeline(&g.ParticlePipeline)

	releaseBuffer(&g.ReadbackBuf)
	releaseBuffer(&g.RenderArgsBuf)
	releaseBuffer(&g.ArgsBuf)
	releaseBuffer(&g.CounterBuf)
	releaseBuffer(&g.LineBuf)
	releaseBuffer(&g.LineParamsBuf)
	if g.ownsVertices {
		releaseBuffer(&g.VertexBuf)
	}
	g.VertexBuf = nil
	releaseBuffer(&g.ParticleBuf)
	releaseBuffer(&g.SimParamsBuf)

	g.simEnabled, g.extractEnabled, g.linesEnabled, g.drawEnabled = false, false, false, false
	g.log.Debugf("gpu pipeline released")
}

func releaseBuffer(buf **wgpu.Buffer) {
	if *buf != nil {
		(*buf).Release()
		*buf = nil
	}
}

func releaseBindGroup(bg **wgpu.BindGroup) {
	if *bg != nil {
		(*bg).Release()
		*bg = nil
	}
}

func releasePipeline(pl **wgpu.ComputePipeline) {
	if *pl != nil {
		(*pl).Release()
		*pl = nil
	}
}

// alignSize rounds up to the 4 byte copy alignment.
func alignSize(size uint64) uint64 {
	return (size + 3) &^ 3
}

func recordBytes[T any](records []T) []byte {
	if len(records) == 0 {
		return nil
	}
	size := len(records) * int(unsafe.Sizeof(records[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&records[0])), size)
}
