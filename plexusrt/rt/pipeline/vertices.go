package pipeline

import (
	"fmt"

	"github.com/gekko3d/plexus/plexusrt/rt/compute"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
)

const VertexBufferLabel = "VertexBuffer"

// VertexExtractionStage projects particles into the position-only layout the
// topology stage reads.
type VertexExtractionStage struct {
	device    *compute.Device
	log       core.Logger
	particles *compute.Buffer[core.ParticleRecord] // borrowed
	vertices  *compute.Buffer[core.VertexRecord]
	enabled   bool
}

func NewVertexExtractionStage(device *compute.Device, log core.Logger, particles *compute.Buffer[core.ParticleRecord]) (*VertexExtractionStage, error) {
	if log == nil {
		log = core.NopLogger()
	}
	s := &VertexExtractionStage{device: device, log: log, particles: particles}
	if particles.Released() {
		log.Errorf("vertex extraction disabled: no particle buffer")
		return s, fmt.Errorf("vertex extraction: particle buffer unavailable")
	}

	buf, err := compute.NewBuffer[core.VertexRecord](device, VertexBufferLabel, particles.Len())
	if err != nil {
		log.Errorf("vertex extraction disabled: %v", err)
		return s, fmt.Errorf("vertex extraction: %w", err)
	}
	s.vertices = buf
	s.enabled = true
	return s, nil
}

func (s *VertexExtractionStage) Extract() error {
	if !s.enabled {
		return nil
	}
	src := s.particles.View()
	dst := s.vertices.View()
	n := uint32(len(dst))
	return s.device.Dispatch("copy vertex", core.Workgroups(n), core.NumThreads, n, func(id uint32) {
		dst[id].Position = src[id].Position
	})
}

func (s *VertexExtractionStage) Vertices() *compute.Buffer[core.VertexRecord] { return s.vertices }
func (s *VertexExtractionStage) Enabled() bool                               { return s.enabled }

// Release frees the vertex buffer only; the particle buffer belongs to the simulation stage.
func (s *VertexExtractionStage) Release() {
	compute.Free(&s.vertices)
	s.particles = nil
	s.enabled = false
}
