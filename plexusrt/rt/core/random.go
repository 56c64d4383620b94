package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Random streams keep the draws of one unit of work independent from each other.
const (
	StreamLife uint32 = iota + 1
	StreamRespawn
)

// Hash is the PCG output permutation, mirrored by pcg_hash in the WGSL kernels.
func Hash(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// Rng is a hash-chained generator seeded per unit of work.
type Rng struct {
	state uint32
}

func NewRng(index uint32, time float32, stream uint32) Rng {
	return Rng{state: Hash(index ^ Hash(math.Float32bits(time)^Hash(stream)))}
}

func (r *Rng) Uint32() uint32 {
	r.state = Hash(r.state)
	return r.state
}

// Float32 returns a value in [0,1).
func (r *Rng) Float32() float32 {
	return float32(r.Uint32()>>8) / 16777216.0
}

func Lerp(a, b, t float32) float32 { return a + (b-a)*t }

// Direction maps two uniform samples to a uniform point on the unit sphere.
func Direction(u, v float32) mgl32.Vec3 {
	z := 1 - 2*u
	r := float32(math.Sqrt(math.Max(0, float64(1-z*z))))
	phi := 2 * math.Pi * float64(v)
	return mgl32.Vec3{r * float32(math.Cos(phi)), r * float32(math.Sin(phi)), z}
}

// InsideSphere maps three uniform samples to a uniform point inside a sphere.
func InsideSphere(radius, u, v, w float32) mgl32.Vec3 {
	return Direction(u, v).Mul(radius * float32(math.Cbrt(float64(w))))
}

// SurfaceLayerRadius picks one of layerCount concentric radii radius*k/layerCount, k in 1..layerCount.
func SurfaceLayerRadius(radius float32, layerCount uint32, u float32) float32 {
	if layerCount == 0 {
		layerCount = 1
	}
	layer := uint32(u * float32(layerCount))
	if layer >= layerCount {
		layer = layerCount - 1
	}
	return radius * float32(layer+1) / float32(layerCount)
}

// ClampLife keeps a lifespan bound usable as a divisor.
func ClampLife(life float32) float32 {
	if life < LifeEpsilon || math.IsNaN(float64(life)) {
		return LifeEpsilon
	}
	return life
}

// Lifespan interpolates reciprocal lifespans, so the result stays within [lifeMin, lifeMax].
func Lifespan(index uint32, elapsed, lifeMin, lifeMax float32) float32 {
	invMin := 1 / ClampLife(lifeMin)
	invMax := 1 / ClampLife(lifeMax)
	rng := NewRng(index, elapsed, StreamLife)
	return 1 / Lerp(invMin, invMax, rng.Float32())
}
