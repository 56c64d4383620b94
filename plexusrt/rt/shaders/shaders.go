package shaders

import (
	_ "embed"
)

//go:embed particle_update.wgsl
var ParticleUpdateWGSL string

//go:embed copy_vertex.wgsl
var CopyVertexWGSL string

//go:embed lines_by_distance.wgsl
var LinesByDistanceWGSL string

//go:embed expand_line_args.wgsl
var ExpandLineArgsWGSL string

//go:embed lines_render.wgsl
var LinesRenderWGSL string

//go:embed particles_render.wgsl
var ParticlesRenderWGSL string
