package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestContextRelease(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
	}{
		{name: "nil context", ctx: nil},
		{name: "empty context", ctx: &Context{}},
		// a borrowed instance must be left to its owner; releasing this zero value would crash
		{name: "borrowed instance", ctx: &Context{Instance: &wgpu.Instance{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				tt.ctx.Release()
				tt.ctx.Release()
			})
			assert.False(t, tt.ctx.OwnsInstance())
			if tt.ctx != nil {
				assert.Nil(t, tt.ctx.Instance)
			}
		})
	}
}
