package pipeline

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/gekko3d/plexus/plexusrt/rt/compute"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
)

// VertexSource selects where the topology stage reads its vertices from.
type VertexSource int

const (
	// SourceParticles extracts vertices from the simulated particles.
	SourceParticles VertexSource = iota
	// SourceRandom seeds a static random vertex cloud inside the topology stage.
	SourceRandom
	// SourceExternal reads a vertex buffer supplied by another producer.
	SourceExternal
)

func (s VertexSource) String() string {
	switch s {
	case SourceParticles:
		return "particles"
	case SourceRandom:
		return "random"
	case SourceExternal:
		return "external"
	}
	return fmt.Sprintf("VertexSource(%d)", int(s))
}

type Options struct {
	ParticleCount int
	SphereRadius  float32
	Velocity      float32
	MaxLines      int
	MaxAttempts   uint32

	Source           VertexSource
	ExternalVertices *compute.Buffer[core.VertexRecord]
	RandomRadius     float32 // SourceRandom only

	Seed   int64
	Logger core.Logger
}

func DefaultOptions() Options {
	return Options{
		ParticleCount: core.NumParticles,
		SphereRadius:  5,
		Velocity:      0.1,
		MaxLines:      core.MaxLineNum,
		MaxAttempts:   core.MaxLineCounterNum,
		Source:        SourceParticles,
		RandomRadius:  2,
	}
}

// RenderInputs are the read-only handles a render stage consumes.
type RenderInputs struct {
	Particles     *compute.Buffer[core.ParticleRecord]
	Lines         *compute.AppendBuffer[core.LineRecord]
	Args          *compute.Buffer[uint32]
	ParticleCount uint32
}

// ReadbackStats is the diagnostic view of one tick's topology output.
type ReadbackStats struct {
	Emitted  uint32
	Attempts uint32
	Dropped  uint32
}

// Pipeline runs simulate -> extract -> generate -> prepare args on one device stream.
type Pipeline struct {
	device *compute.Device
	log    core.Logger
	opts   Options

	Particles  *ParticleSimulationStage
	Extraction *VertexExtractionStage
	Lines      *LineTopologyStage
	Draw       *IndirectDrawCoordinator

	faults   []error
	released bool
}

// New builds every stage for opts. Invalid options fail; allocation failures only
// disable the affected stages and are reported by Faults.
func New(device *compute.Device, opts Options) (*Pipeline, error) {
	if device == nil {
		return nil, errors.New("pipeline: nil device")
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger()
	}
	if opts.MaxLines <= 0 {
		return nil, fmt.Errorf("pipeline: invalid line capacity %d", opts.MaxLines)
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = core.MaxLineCounterNum
	}
	switch opts.Source {
	case SourceParticles, SourceRandom:
		if opts.ParticleCount <= 0 {
			return nil, fmt.Errorf("pipeline: invalid particle count %d", opts.ParticleCount)
		}
	case SourceExternal:
		if opts.ExternalVertices == nil {
			return nil, errors.New("pipeline: external vertex source without a buffer")
		}
	default:
		return nil, fmt.Errorf("pipeline: unknown vertex source %v", opts.Source)
	}

	p := &Pipeline{device: device, log: opts.Logger, opts: opts}
	rng := rand.New(rand.NewSource(opts.Seed))

	var err error
	p.Lines, err = NewLineTopologyStage(device, p.log, opts.MaxLines, opts.MaxAttempts)
	p.fault(err)

	switch opts.Source {
	case SourceParticles:
		p.Particles = NewParticleSimulationStage(device, p.log)
		if p.fault(p.Particles.Initialize(opts.ParticleCount, opts.SphereRadius, opts.Velocity, rng)) {
			break
		}
		p.Extraction, err = NewVertexExtractionStage(device, p.log, p.Particles.Particles())
		if !p.fault(err) {
			p.Lines.SetVertexBuffer(p.Extraction.Vertices())
		}
	case SourceRandom:
		p.fault(p.Lines.InitVertexBuffer(opts.ParticleCount, opts.RandomRadius, rng))
	case SourceExternal:
		p.Lines.SetVertexBuffer(opts.ExternalVertices)
	}

	p.Draw, err = NewIndirectDrawCoordinator(device, p.log, p.Lines.Lines())
	p.fault(err)

	p.log.Infof("pipeline ready: source=%v particles=%d lines=%d faults=%d",
		opts.Source, opts.ParticleCount, p.Lines.Capacity(), len(p.faults))
	return p, nil
}

func (p *Pipeline) fault(err error) bool {
	if err == nil {
		return false
	}
	p.faults = append(p.faults, err)
	return true
}

// Faults lists the allocation failures that disabled stages.
func (p *Pipeline) Faults() []error { return p.faults }

func (p *Pipeline) Device() *compute.Device { return p.device }

func (p *Pipeline) Simulate(params core.SimParams) error {
	if p.released || p.Particles == nil {
		return nil
	}
	return p.Particles.Tick(params)
}

func (p *Pipeline) Extract() error {
	if p.released || p.Extraction == nil {
		return nil
	}
	return p.Extraction.Extract()
}

func (p *Pipeline) GenerateLines(params core.LineParams) error {
	if p.released {
		return nil
	}
	return p.Lines.GenerateLines(params)
}

func (p *Pipeline) PrepareDrawArgs() error {
	if p.released {
		return nil
	}
	return p.Draw.PrepareDrawArgs()
}

// Tick submits one full pass without waiting for it.
func (p *Pipeline) Tick(sim core.SimParams, lines core.LineParams) error {
	if err := p.Simulate(sim); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	if err := p.Extract(); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if err := p.GenerateLines(lines); err != nil {
		return fmt.Errorf("generate lines: %w", err)
	}
	if err := p.PrepareDrawArgs(); err != nil {
		return fmt.Errorf("prepare draw args: %w", err)
	}
	return nil
}

// ReadBackCount is the optional diagnostic readback of the draw primitive count.
func (p *Pipeline) ReadBackCount() (uint32, error) {
	if p.released {
		return 0, nil
	}
	return p.Draw.ReadBackCount()
}

func (p *Pipeline) ReadBackStats() (ReadbackStats, error) {
	if p.released {
		return ReadbackStats{}, nil
	}
	emitted, attempts, err := p.Lines.Counts()
	if err != nil {
		return ReadbackStats{}, err
	}
	stats := ReadbackStats{Emitted: emitted, Attempts: attempts}
	if attempts > emitted {
		stats.Dropped = attempts - emitted
	}
	return stats, nil
}

func (p *Pipeline) RenderInputs() RenderInputs {
	in := RenderInputs{
		Lines: p.Lines.Lines(),
		Args:  p.Draw.Args(),
	}
	if p.Particles != nil {
		in.Particles = p.Particles.Particles()
		in.ParticleCount = p.Particles.Count()
	}
	return in
}

// Release waits for submitted work to finish, then frees every owned buffer.
// Safe to call more than once; the external vertex buffer is left to its owner.
func (p *Pipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	if err := p.device.Wait(); err != nil && !errors.Is(err, compute.ErrDeviceLost) {
		p.log.Warnf("pipeline release: %v", err)
	}
	p.Draw.Release()
	p.Lines.Release()
	if p.Extraction != nil {
		p.Extraction.Release()
	}
	if p.Particles != nil {
		p.Particles.Release()
	}
	p.log.Debugf("pipeline released")
}
