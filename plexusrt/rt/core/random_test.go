package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Deterministic(t *testing.T) {
	assert.Equal(t, Hash(42), Hash(42))
	assert.NotEqual(t, Hash(42), Hash(43))
}

func TestRng_FloatRange(t *testing.T) {
	rng := NewRng(7, 1.5, StreamRespawn)
	for i := 0; i < 10000; i++ {
		v := rng.Float32()
		require.GreaterOrEqual(t, v, float32(0))
		require.Less(t, v, float32(1))
	}
}

func TestRng_StreamsDiffer(t *testing.T) {
	a := NewRng(3, 0.25, StreamLife)
	b := NewRng(3, 0.25, StreamRespawn)
	assert.NotEqual(t, a.Uint32(), b.Uint32())
}

func TestDirection_UnitLength(t *testing.T) {
	rng := NewRng(1, 0, 0)
	for i := 0; i < 1000; i++ {
		d := Direction(rng.Float32(), rng.Float32())
		assert.InDelta(t, 1.0, d.Len(), 1e-4)
	}
}

func TestInsideSphere_Bounded(t *testing.T) {
	rng := NewRng(2, 0, 0)
	for i := 0; i < 1000; i++ {
		p := InsideSphere(5, rng.Float32(), rng.Float32(), rng.Float32())
		assert.LessOrEqual(t, p.Len(), float32(5.0001))
	}
}

func TestSurfaceLayerRadius(t *testing.T) {
	tests := []struct {
		name   string
		layers uint32
		u      float32
		want   float32
	}{
		{name: "single layer", layers: 1, u: 0.3, want: 5},
		{name: "first of ten", layers: 10, u: 0.0, want: 0.5},
		{name: "last of ten", layers: 10, u: 0.999, want: 5},
		{name: "zero layers treated as one", layers: 0, u: 0.5, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SurfaceLayerRadius(5, tt.layers, tt.u), 1e-5)
		})
	}
}

func TestLifespan_Bounded(t *testing.T) {
	for i := uint32(0); i < 2000; i++ {
		life := Lifespan(i, float32(i)*0.01, 1, 2)
		require.GreaterOrEqual(t, life, float32(1)-1e-5)
		require.LessOrEqual(t, life, float32(2)+1e-5)
	}
}

func TestLifespan_ZeroBoundsAreClamped(t *testing.T) {
	life := Lifespan(9, 3, 0, 0)
	assert.False(t, math.IsInf(float64(life), 0))
	assert.False(t, math.IsNaN(float64(life)))
	assert.InDelta(t, LifeEpsilon, life, 1e-7)
}

func TestLifespan_SwappedBounds(t *testing.T) {
	for i := uint32(0); i < 500; i++ {
		life := Lifespan(i, 0.5, 3, 1)
		require.GreaterOrEqual(t, life, float32(1)-1e-5)
		require.LessOrEqual(t, life, float32(3)+1e-5)
	}
}
