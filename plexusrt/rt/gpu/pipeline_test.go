package gpu

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/plexus/plexusrt/rt/core"
	"github.com/gekko3d/plexus/plexusrt/rt/pipeline"
)

func TestParseReadback(t *testing.T) {
	data := make([]byte, readbackSize)
	copy(data, core.IndirectArgs{PrimitiveCount: 99, InstanceCount: 1}.Marshal())
	binary.LittleEndian.PutUint32(data[readbackCounterOffset:], 99)
	binary.LittleEndian.PutUint32(data[readbackCounterOffset+4:], 120)

	args, emitted, attempts, err := parseReadback(data)
	require.NoError(t, err)
	assert.Equal(t, core.IndirectArgs{PrimitiveCount: 99, InstanceCount: 1}, args)
	assert.Equal(t, uint32(99), emitted)
	assert.Equal(t, uint32(120), attempts)

	_, _, _, err = parseReadback(data[:readbackSize-1])
	assert.Error(t, err)
}

func TestAlignSize(t *testing.T) {
	tests := []struct {
		name     string
		size     uint64
		expected uint64
	}{
		{name: "aligned", size: 16, expected: 16},
		{name: "vertex records", size: 3 * core.VertexStride, expected: 36},
		{name: "odd", size: 13, expected: 16},
		{name: "zero", size: 0, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, alignSize(tt.size))
		})
	}
}

func TestRecordBytes(t *testing.T) {
	lines := make([]core.LineRecord, 3)
	lines[1].Alpha0 = 1
	raw := recordBytes(lines)
	require.Len(t, raw, 3*core.LineStride)
	assert.Equal(t, uint32(0x3f800000), binary.LittleEndian.Uint32(raw[core.LineStride+12:]))

	assert.Nil(t, recordBytes([]core.VertexRecord(nil)))
}

func TestNewGpuPipeline_RejectsInvalidOptions(t *testing.T) {
	_, err := NewGpuPipeline(nil, Options{MaxLines: 1, ParticleCount: 1})
	assert.Error(t, err)
}

func TestOptionsFrom(t *testing.T) {
	src := pipeline.DefaultOptions()
	src.Seed = 9
	opts := OptionsFrom(src)
	assert.Equal(t, src.ParticleCount, opts.ParticleCount)
	assert.Equal(t, src.MaxLines, opts.MaxLines)
	assert.Equal(t, src.Source, opts.Source)
	assert.Equal(t, int64(9), opts.Seed)
	assert.Nil(t, opts.ExternalVertices)
}
