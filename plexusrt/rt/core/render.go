package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// RenderParams are the per-frame shading inputs handed to the render stages.
type RenderParams struct {
	ViewProj      mgl32.Mat4
	InvView       mgl32.Mat4 // billboarding
	LineColor     [4]float32
	ParticleColor [4]float32
	ParticleSize  float32
}

// Marshal packs the shared render uniform block.
//
//	struct RenderUniforms {
//	  view_proj: mat4x4<f32>;      -- 0
//	  inv_view: mat4x4<f32>;       -- 64
//	  line_color: vec4<f32>;       -- 128
//	  particle_color: vec4<f32>;   -- 144
//	  particle_size: f32; pad x3   -- 160
//	} -> 176 bytes
func (r RenderParams) Marshal() []byte {
	buf := make([]byte, RenderUniformsSize)
	for i, v := range r.ViewProj {
		putF32(buf, i*4, v)
	}
	for i, v := range r.InvView {
		putF32(buf, 64+i*4, v)
	}
	for i, v := range r.LineColor {
		putF32(buf, 128+i*4, v)
	}
	for i, v := range r.ParticleColor {
		putF32(buf, 144+i*4, v)
	}
	putF32(buf, 160, r.ParticleSize)
	return buf
}

// OrbitCamera circles the origin, looking at the particle sphere.
type OrbitCamera struct {
	Distance float32
	Yaw      float32 // radians
	Pitch    float32 // radians
	Fov      float32 // degrees
	Aspect   float32
	Near     float32
	Far      float32
}

func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance: 14,
		Fov:      60,
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      200,
	}
}

func (c *OrbitCamera) Eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	return mgl32.Vec3{
		c.Distance * cp * float32(math.Sin(float64(c.Yaw))),
		c.Distance * float32(math.Sin(float64(c.Pitch))),
		c.Distance * cp * float32(math.Cos(float64(c.Yaw))),
	}
}

func (c *OrbitCamera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
}

func (c *OrbitCamera) Proj() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Fov), c.Aspect, c.Near, c.Far)
}

// RenderParams fills the camera-derived matrices; colors and size are left to the caller.
func (c *OrbitCamera) RenderParams() RenderParams {
	view := c.View()
	return RenderParams{
		ViewProj: c.Proj().Mul4(view),
		InvView:  view.Inv(),
	}
}

const maxPitch = 1.5

// Orbit rotates the camera by yaw/pitch deltas in radians, keeping it off the poles.
func (c *OrbitCamera) Orbit(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.Pitch = mgl32.Clamp(c.Pitch+dPitch, -maxPitch, maxPitch)
}

// Zoom scales the orbit distance, bounded by the clip planes.
func (c *OrbitCamera) Zoom(factor float32) {
	if factor <= 0 {
		return
	}
	c.Distance = mgl32.Clamp(c.Distance*factor, c.Near*2, c.Far/2)
}
