package core

import (
	"encoding/binary"
	"math"
)

// SimParams are the per-tick inputs of the particle kernel.
type SimParams struct {
	Dt            float32
	Elapsed       float32
	LifeMin       float32
	LifeMax       float32
	Velocity      float32
	Radius        float32
	SurfaceLayers uint32
	Throttle      float32
}

// InvLife returns the clamped reciprocal lifespans driving the lifespan interpolation.
func (p SimParams) InvLife() (float32, float32) {
	return 1 / ClampLife(p.LifeMin), 1 / ClampLife(p.LifeMax)
}

// Marshal packs the uniform block of particle_update.wgsl for count particles.
//
//	struct SimParams {
//	  inv_life_min, inv_life_max, velocity, radius: f32,   -- 0..16
//	  surface_layers: u32, delta_time, timer, throttle: f32 -- 16..32
//	  particle_count: u32, pad x3                           -- 32..48
//	}
func (p SimParams) Marshal(count uint32) []byte {
	buf := make([]byte, SimParamsSize)
	invMin, invMax := p.InvLife()
	layers := p.SurfaceLayers
	if layers == 0 {
		layers = 1
	}
	putF32(buf, 0, invMin)
	putF32(buf, 4, invMax)
	putF32(buf, 8, p.Velocity)
	putF32(buf, 12, p.Radius)
	binary.LittleEndian.PutUint32(buf[16:], layers)
	putF32(buf, 20, p.Dt)
	putF32(buf, 24, p.Elapsed)
	putF32(buf, 28, p.Throttle)
	binary.LittleEndian.PutUint32(buf[32:], count)
	return buf
}

// LineParams are the per-tick inputs of the topology kernel.
type LineParams struct {
	MinDist float32
	MaxDist float32
}

// Marshal packs the uniform block of lines_by_distance.wgsl.
//
//	struct LineParams {
//	  min_dist, max_dist: f32, vertex_num, max_line_num: u32, -- 0..16
//	  max_counter_num: u32, pad x3                          -- 16..32
//	}
func (p LineParams) Marshal(vertexCount, maxLines, maxAttempts uint32) []byte {
	buf := make([]byte, LineParamsSize)
	putF32(buf, 0, p.MinDist)
	putF32(buf, 4, p.MaxDist)
	binary.LittleEndian.PutUint32(buf[8:], vertexCount)
	binary.LittleEndian.PutUint32(buf[12:], maxLines)
	binary.LittleEndian.PutUint32(buf[16:], maxAttempts)
	return buf
}

func putF32(buf []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
}

// Workgroups returns the number of NumThreads-sized groups covering n units.
func Workgroups(n uint32) uint32 {
	return (n + NumThreads - 1) / NumThreads
}
