package shaders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShadersEmbedded(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		entries []string
	}{
		{name: "particle update", source: ParticleUpdateWGSL, entries: []string{"fn main"}},
		{name: "copy vertex", source: CopyVertexWGSL, entries: []string{"fn main"}},
		{name: "lines by distance", source: LinesByDistanceWGSL, entries: []string{"fn main", "atomicCompareExchangeWeak"}},
		{name: "expand line args", source: ExpandLineArgsWGSL, entries: []string{"fn main"}},
		{name: "lines render", source: LinesRenderWGSL, entries: []string{"fn vs_main", "fn fs_main"}},
		{name: "particles render", source: ParticlesRenderWGSL, entries: []string{"fn vs_main", "fn fs_main"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, strings.TrimSpace(tt.source))
			for _, entry := range tt.entries {
				assert.Contains(t, tt.source, entry)
			}
		})
	}
}

func TestComputeKernelsUseSharedWorkgroupSize(t *testing.T) {
	for _, src := range []string{ParticleUpdateWGSL, CopyVertexWGSL, LinesByDistanceWGSL} {
		assert.Contains(t, src, "@workgroup_size(256)")
	}
}
