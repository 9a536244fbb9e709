package gibs

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func gradient(w, h int, lo, hi uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		v := lo + uint8(int(hi-lo)*x/(w-1))
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestEnhance_StretchesLowContrastImage(t *testing.T) {
	src := gradient(100, 4, 100, 140)

	out := Enhance(src)

	assert.Equal(t, src.Bounds(), out.Bounds())
	left := out.RGBAAt(0, 0)
	right := out.RGBAAt(99, 0)
	assert.Equal(t, uint8(0), left.R, "darkest values map to black")
	assert.Equal(t, uint8(255), right.R, "brightest values map to white")
	assert.Equal(t, uint8(255), right.A)
}

func TestEnhance_IsMonotonic(t *testing.T) {
	out := Enhance(gradient(256, 2, 0, 255))

	prev := uint8(0)
	for x := 0; x < 256; x++ {
		v := out.RGBAAt(x, 0).R
		assert.GreaterOrEqual(t, v, prev, "column %d", x)
		prev = v
	}
}

func TestEnhance_RebasesBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 20, 30))
	out := Enhance(src)
	assert.Equal(t, image.Rect(0, 0, 10, 20), out.Bounds())
}

func TestEnhanceLUT_EmptyHistogramIsIdentity(t *testing.T) {
	lut := enhanceLUT([256]int{})
	for v := 0; v < 256; v++ {
		assert.Equal(t, uint8(v), lut[v])
	}
}
