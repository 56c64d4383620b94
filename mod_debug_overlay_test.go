package plexus

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
)

func TestLineCountText(t *testing.T) {
	assert.Equal(t, "CurrentLineNum : 99", LineCountText(99))
	assert.Equal(t, "CurrentLineNum : 0", LineCountText(0))
}

func TestRenderText(t *testing.T) {
	img := RenderText(basicfont.Face7x13, color.White, "CurrentLineNum : 99")

	bounds := img.Bounds()
	assert.Equal(t, 7*len("CurrentLineNum : 99")+4, bounds.Dx())
	assert.Equal(t, 13+4, bounds.Dy())

	lit := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.RGBAAt(x, y).A > 0 {
				lit++
			}
		}
	}
	assert.Positive(t, lit)
	assert.Zero(t, img.RGBAAt(0, 0).A)
}

func TestDebugOverlayModule(t *testing.T) {
	fake := &fakePipeline{count: 42}
	cfg := DefaultConfig()
	cfg.DebugText = true
	app := buildPlexusApp(
		PlexusModule{Config: cfg, NewPipeline: fakeFactory(fake), MaxTicks: 1},
		DebugOverlayModule{},
	)

	app.Run()

	overlay := Resource[DebugOverlay](app)
	require.NotNil(t, overlay)
	assert.Equal(t, "CurrentLineNum : 42", overlay.Text)
	require.NotNil(t, overlay.Image)

	first := overlay.Image
	overlay.SetText("CurrentLineNum : 42")
	assert.Same(t, first, overlay.Image)
}

func TestDebugOverlay_NoReadbackNoText(t *testing.T) {
	fake := &fakePipeline{count: 42}
	app := buildPlexusApp(
		PlexusModule{Config: DefaultConfig(), NewPipeline: fakeFactory(fake), MaxTicks: 1},
		DebugOverlayModule{},
	)

	app.Run()

	overlay := Resource[DebugOverlay](app)
	assert.Empty(t, overlay.Text)
	assert.Nil(t, overlay.Image)
}
