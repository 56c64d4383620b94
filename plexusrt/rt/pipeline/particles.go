package pipeline

import (
	"fmt"
	"math/rand"

	"github.com/gekko3d/plexus/plexusrt/rt/compute"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
)

const ParticleBufferLabel = "ParticleBuffer"

// ParticleSimulationStage owns the particle buffer and is its only writer.
type ParticleSimulationStage struct {
	device    *compute.Device
	log       core.Logger
	particles *compute.Buffer[core.ParticleRecord]
	count     uint32
	enabled   bool
}

func NewParticleSimulationStage(device *compute.Device, log core.Logger) *ParticleSimulationStage {
	if log == nil {
		log = core.NopLogger()
	}
	return &ParticleSimulationStage{device: device, log: log}
}

// Initialize fills count particles uniformly inside a sphere with random directions
// scaled by velocityScale. On allocation failure the stage disables itself.
func (s *ParticleSimulationStage) Initialize(count int, sphereRadius, velocityScale float32, rng *rand.Rand) error {
	s.Release()

	buf, err := compute.NewBuffer[core.ParticleRecord](s.device, ParticleBufferLabel, count)
	if err != nil {
		s.log.Errorf("particle simulation disabled: %v", err)
		return fmt.Errorf("initialize particles: %w", err)
	}

	host := make([]core.ParticleRecord, count)
	for i := range host {
		host[i] = core.ParticleRecord{
			Velocity: core.Direction(rng.Float32(), rng.Float32()).Mul(velocityScale),
			Position: core.InsideSphere(sphereRadius, rng.Float32(), rng.Float32(), rng.Float32()),
		}
	}
	if err := compute.WriteBuffer(s.device, buf, 0, host); err != nil {
		buf.Release()
		s.log.Errorf("particle simulation disabled: %v", err)
		return fmt.Errorf("upload particles: %w", err)
	}

	s.particles = buf
	s.count = uint32(count)
	s.enabled = true
	s.log.Debugf("particle buffer %s: %d particles", buf.ID(), count)
	return nil
}

// Tick advances every particle by one step on the device stream.
func (s *ParticleSimulationStage) Tick(p core.SimParams) error {
	if !s.enabled {
		return nil
	}
	data := s.particles.View()
	return s.device.Dispatch("particle update", core.Workgroups(s.count), core.NumThreads, s.count, func(id uint32) {
		simulateParticle(&data[id], id, p)
	})
}

func simulateParticle(pt *core.ParticleRecord, index uint32, p core.SimParams) {
	// throttle scales both motion and aging, so 0 freezes the simulation
	step := p.Dt * p.Throttle
	pt.Age += step
	pt.Position = pt.Position.Add(pt.Velocity.Mul(step))

	life := core.Lifespan(index, p.Elapsed, p.LifeMin, p.LifeMax)
	if pt.Age < life {
		return
	}

	rng := core.NewRng(index, p.Elapsed, core.StreamRespawn)
	dir := core.Direction(rng.Float32(), rng.Float32())
	radius := core.SurfaceLayerRadius(p.Radius, p.SurfaceLayers, rng.Float32())
	pt.Age = 0
	pt.Position = dir.Mul(radius)
	pt.Velocity = core.Direction(rng.Float32(), rng.Float32()).Mul(p.Velocity)
}

// Particles hands the buffer to readers (extraction, render). Callers must not write to it.
func (s *ParticleSimulationStage) Particles() *compute.Buffer[core.ParticleRecord] {
	return s.particles
}

func (s *ParticleSimulationStage) Count() uint32 { return s.count }
func (s *ParticleSimulationStage) Enabled() bool { return s.enabled }

func (s *ParticleSimulationStage) Release() {
	compute.Free(&s.particles)
	s.count = 0
	s.enabled = false
}
