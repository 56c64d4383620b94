package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestOrbitCamera_InvView(t *testing.T) {
	cam := NewOrbitCamera()
	cam.Yaw = 0.7
	cam.Pitch = 0.3

	rp := cam.RenderParams()
	id := rp.InvView.Mul4(cam.View())
	ident := mgl32.Ident4()
	for i := range ident {
		assert.InDelta(t, ident[i], id[i], 1e-4, "element %d", i)
	}

	// camera position is the translation of the inverse view
	eye := cam.Eye()
	assert.InDelta(t, eye.X(), rp.InvView.At(0, 3), 1e-4)
	assert.InDelta(t, eye.Y(), rp.InvView.At(1, 3), 1e-4)
	assert.InDelta(t, eye.Z(), rp.InvView.At(2, 3), 1e-4)
}

func TestRenderParams_MarshalSize(t *testing.T) {
	rp := RenderParams{ParticleSize: 0.025}
	assert.Len(t, rp.Marshal(), RenderUniformsSize)
}

func TestOrbitCamera_OrbitClampsPitch(t *testing.T) {
	c := NewOrbitCamera()
	c.Orbit(0.5, 10)
	assert.InDelta(t, 0.5, c.Yaw, 1e-6)
	assert.InDelta(t, maxPitch, c.Pitch, 1e-6)
	c.Orbit(0, -20)
	assert.InDelta(t, -maxPitch, c.Pitch, 1e-6)
}

func TestOrbitCamera_Zoom(t *testing.T) {
	c := NewOrbitCamera()
	c.Zoom(0.5)
	assert.InDelta(t, 7, c.Distance, 1e-5)
	c.Zoom(-1)
	assert.InDelta(t, 7, c.Distance, 1e-5)
	c.Zoom(1000)
	assert.InDelta(t, c.Far/2, c.Distance, 1e-5)
}
