package plexus

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DebugOverlay is the rasterized line counter, redrawn only when the text changes.
type DebugOverlay struct {
	Text  string
	Image *image.RGBA
	face  font.Face
	fg    color.Color
}

// DebugOverlayModule draws "CurrentLineNum : N" from the last readback. Install it after
// PlexusModule so it sees the readback of the same tick.
type DebugOverlayModule struct {
	Face font.Face // nil = basicfont.Face7x13
}

func (mod DebugOverlayModule) Install(app *App, cmd *Commands) {
	face := mod.Face
	if face == nil {
		face = basicfont.Face7x13
	}
	cmd.AddResources(&DebugOverlay{face: face, fg: color.White})
	cmd.UseSystem(System(debugOverlaySystem).InStage(PostRender).InState(OnExecute(StateRunning)))
}

func debugOverlaySystem(overlay *DebugOverlay, state *PlexusState) {
	if !state.HasReadback {
		return
	}
	overlay.SetText(LineCountText(state.LastCount))
}

func LineCountText(count uint32) string {
	return fmt.Sprintf("CurrentLineNum : %d", count)
}

func (o *DebugOverlay) SetText(text string) {
	if text == o.Text && o.Image != nil {
		return
	}
	o.Text = text
	o.Image = RenderText(o.face, o.fg, text)
}

// RenderText draws text on a transparent image sized to fit it with a 2px margin.
func RenderText(face font.Face, fg color.Color, text string) *image.RGBA {
	const margin = 2
	metrics := face.Metrics()
	width := font.MeasureString(face, text).Ceil() + 2*margin
	height := metrics.Height.Ceil() + 2*margin

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(margin), Y: fixed.I(margin) + metrics.Ascent},
	}
	d.DrawString(text)
	return img
}
