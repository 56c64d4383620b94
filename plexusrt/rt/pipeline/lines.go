package pipeline

import (
	"fmt"
	"math/rand"

	"github.com/gekko3d/plexus/plexusrt/rt/compute"
	"github.com/gekko3d/plexus/plexusrt/rt/core"
)

const (
	LineBufferLabel         = "LineDataBuffer"
	SeededVertexBufferLabel = "LineVertexBuffer"
)

// LineTopologyStage joins every vertex pair whose distance lies in [MinDist, MaxDist]
// and appends the segments into a bounded line buffer.
type LineTopologyStage struct {
	device *compute.Device
	log    core.Logger

	vertices     *compute.Buffer[core.VertexRecord]
	ownsVertices bool

	lines    *compute.AppendBuffer[core.LineRecord]
	attempts *compute.Counter
	enabled  bool
}

// NewLineTopologyStage allocates a line buffer of maxLines records. attempts caps the
// diagnostic count of qualifying pairs.
func NewLineTopologyStage(device *compute.Device, log core.Logger, maxLines int, maxAttempts uint32) (*LineTopologyStage, error) {
	if log == nil {
		log = core.NopLogger()
	}
	s := &LineTopologyStage{device: device, log: log, attempts: compute.NewCounter(maxAttempts)}
	lines, err := compute.NewAppendBuffer[core.LineRecord](device, LineBufferLabel, maxLines)
	if err != nil {
		log.Errorf("line topology disabled: %v", err)
		return s, fmt.Errorf("line topology: %w", err)
	}
	s.lines = lines
	s.enabled = true
	return s, nil
}

// SetVertexBuffer borrows a vertex buffer produced elsewhere. The stage only reads it
// and never releases it.
func (s *LineTopologyStage) SetVertexBuffer(buf *compute.Buffer[core.VertexRecord]) {
	if s.ownsVertices {
		compute.Free(&s.vertices)
		s.ownsVertices = false
	}
	s.vertices = buf
}

// InitVertexBuffer seeds an owned buffer of count random points inside a sphere, for
// running the stage without a particle source.
func (s *LineTopologyStage) InitVertexBuffer(count int, radius float32, rng *rand.Rand) error {
	buf, err := compute.NewBuffer[core.VertexRecord](s.device, SeededVertexBufferLabel, count)
	if err != nil {
		s.log.Errorf("line topology vertex buffer: %v", err)
		return fmt.Errorf("init vertex buffer: %w", err)
	}
	host := make([]core.VertexRecord, count)
	for i := range host {
		host[i].Position = core.InsideSphere(radius, rng.Float32(), rng.Float32(), rng.Float32())
	}
	if err := compute.WriteBuffer(s.device, buf, 0, host); err != nil {
		buf.Release()
		return fmt.Errorf("upload vertex buffer: %w", err)
	}
	s.SetVertexBuffer(nil)
	s.vertices = buf
	s.ownsVertices = true
	return nil
}

// GenerateLines resets both counters and rebuilds the line set from the current vertices.
func (s *LineTopologyStage) GenerateLines(p core.LineParams) error {
	if !s.enabled || s.vertices.Released() {
		return nil
	}

	if err := s.lines.SetCounterValue(s.device, 0); err != nil {
		return err
	}
	attempts := s.attempts
	if err := s.device.Submit("set counter attempts", func() { attempts.Store(0) }); err != nil {
		return err
	}

	verts := s.vertices.View()
	emit := s.lines.Appender()
	n := uint32(len(verts))
	return s.device.Dispatch("lines by distance", core.Workgroups(n), core.NumThreads, n, func(i uint32) {
		p0 := verts[i].Position
		for j := i + 1; j < n; j++ {
			p1 := verts[j].Position
			d := p0.Sub(p1).Len()
			if !core.InBand(d, p.MinDist, p.MaxDist) {
				continue
			}
			if _, ok := attempts.Increment(); !ok {
				return
			}
			alpha := core.LineAlpha(d, p.MinDist, p.MaxDist)
			emit(core.LineRecord{Position0: p0, Alpha0: alpha, Position1: p1, Alpha1: alpha})
		}
	})
}

// Lines hands the line buffer to the draw coordinator and render stage.
func (s *LineTopologyStage) Lines() *compute.AppendBuffer[core.LineRecord] { return s.lines }

func (s *LineTopologyStage) Vertices() *compute.Buffer[core.VertexRecord] { return s.vertices }

func (s *LineTopologyStage) Capacity() int {
	if s.lines == nil {
		return 0
	}
	return s.lines.Len()
}

// Counts fences the stream and returns the emitted and qualifying pair counts.
// Diagnostic only.
func (s *LineTopologyStage) Counts() (emitted, attempts uint32, err error) {
	if !s.enabled {
		return 0, 0, nil
	}
	if err := s.device.Wait(); err != nil {
		return 0, 0, err
	}
	return s.lines.Counter().Load(), s.attempts.Load(), nil
}

func (s *LineTopologyStage) Enabled() bool { return s.enabled }

func (s *LineTopologyStage) Release() {
	compute.FreeAppend(&s.lines)
	if s.ownsVertices {
		compute.Free(&s.vertices)
		s.ownsVertices = false
	}
	s.vertices = nil
	s.enabled = false
}
