package core

import (
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	NumParticles      = 16384
	MaxVertexNum      = 16384
	MaxLineNum        = 524288
	MaxLineCounterNum = 2097152 // diagnostic cap on qualifying pairs
	NumThreads        = 256     // invocations per workgroup

	LifeEpsilon = 0.0001
)

// Byte strides of the records as laid out in the storage buffers.
const (
	ParticleStride     = 32
	VertexStride       = 12
	LineStride         = 32
	IndirectArgsSize   = 16
	LineCounterSize    = 8 // emitted u32 + attempts u32
	SimParamsSize      = 48
	LineParamsSize     = 32
	RenderUniformsSize = 176
)

// ParticleRecord matches WGSL layout in particle_update.wgsl
// struct Particle { velocity: array<f32,3>, position: array<f32,3>, age: f32, pad0: f32 }
type ParticleRecord struct {
	Velocity mgl32.Vec3
	Position mgl32.Vec3
	Age      float32
	Pad0     float32
}

// VertexRecord is the position-only view of a particle consumed by the topology kernel.
type VertexRecord struct {
	Position mgl32.Vec3
}

// LineRecord matches WGSL layout in lines_by_distance.wgsl
// struct Line { position0: array<f32,3>, alpha0: f32, position1: array<f32,3>, alpha1: f32 }
type LineRecord struct {
	Position0 mgl32.Vec3
	Alpha0    float32
	Position1 mgl32.Vec3
	Alpha1    float32
}

// IndirectArgs is the four-word argument block read by an indirect draw.
type IndirectArgs struct {
	PrimitiveCount uint32
	InstanceCount  uint32
	StartOffset    uint32
	StartInstance  uint32
}

// DrawArgsTemplate is written before the emitted count is copied into slot 0.
var DrawArgsTemplate = IndirectArgs{PrimitiveCount: 0, InstanceCount: 1, StartOffset: 0, StartInstance: 0}

func (a IndirectArgs) Words() [4]uint32 {
	return [4]uint32{a.PrimitiveCount, a.InstanceCount, a.StartOffset, a.StartInstance}
}

func IndirectArgsFromWords(w [4]uint32) IndirectArgs {
	return IndirectArgs{PrimitiveCount: w[0], InstanceCount: w[1], StartOffset: w[2], StartInstance: w[3]}
}

func (a IndirectArgs) Marshal() []byte {
	buf := make([]byte, IndirectArgsSize)
	for i, w := range a.Words() {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func UnmarshalIndirectArgs(data []byte) (IndirectArgs, error) {
	if len(data) < IndirectArgsSize {
		return IndirectArgs{}, fmt.Errorf("indirect args: need %d bytes, got %d", IndirectArgsSize, len(data))
	}
	var w [4]uint32
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return IndirectArgsFromWords(w), nil
}
