package render

import (
	"image/color"
	"math"

	"github.com/fonline/droidbridge/pkg/input"
	"github.com/fonline/droidbridge/pkg/surface"
)

// CrosshairArm is the length of each crosshair arm in pixels, not counting
// the center pixel. The crosshair spans 2*CrosshairArm+1 pixels each way.
const CrosshairArm = 20

// PatternColor returns the test-pattern color of pixel (px, py) for the
// given frame index, touch count and rounded touch coordinate sum.
func PatternColor(frame int, touches int32, sum, px, py int) color.RGBA {
	return color.RGBA{
		R: uint8(2*frame + px),
		G: uint8(40*int(touches) + py),
		B: uint8(sum),
		A: 0xFF,
	}
}

// CoordinateSum is round(x+y), the blue component of the pattern.
func CoordinateSum(x, y float32) int {
	return int(math.Round(float64(x) + float64(y)))
}

// DrawPattern fills every pixel of buf with the test pattern.
func DrawPattern(buf *surface.Buffer, frame int, in input.Sample) {
	baseR := 2 * frame
	baseG := 40 * int(in.Touches)
	b := uint8(CoordinateSum(in.X, in.Y))

	for y := 0; y < buf.Height; y++ {
		row := buf.Pix[y*buf.Stride : y*buf.Stride+4*buf.Width]
		g := uint8(baseG + y)
		for x := 0; x < buf.Width; x++ {
			p := row[4*x : 4*x+4 : 4*x+4]
			p[0] = uint8(baseR + x)
			p[1] = g
			p[2] = b
			p[3] = 0xFF
		}
	}
}

// DrawCrosshair draws a white "+" centered on (cx, cy). Pixels outside the
// buffer are skipped, so centers off the buffer still draw any arm that
// crosses it.
func DrawCrosshair(buf *surface.Buffer, cx, cy int) {
	for d := -CrosshairArm; d <= CrosshairArm; d++ {
		if buf.In(cx+d, cy) {
			buf.Set(cx+d, cy, 0xFF, 0xFF, 0xFF, 0xFF)
		}
		if buf.In(cx, cy+d) {
			buf.Set(cx, cy+d, 0xFF, 0xFF, 0xFF, 0xFF)
		}
	}
}

// DrawFrame draws the full frame: pattern plus crosshair at the last touch.
func DrawFrame(buf *surface.Buffer, frame int, in input.Sample) {
	DrawPattern(buf, frame, in)
	DrawCrosshair(buf, int(in.X), int(in.Y))
}
