package video

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestCrossfade_FrameCounts(t *testing.T) {
	keys := []Frame{
		{Image: solid(4, 4, 0), Date: day(1)},
		{Image: solid(4, 4, 100), Date: day(2)},
		{Image: solid(4, 4, 200), Date: day(3)},
	}

	assert.Equal(t, 3+2*15, NewCrossfade(keys, 15).Len())
	assert.Equal(t, 3, NewCrossfade(keys, 0).Len())
	assert.Equal(t, 3, NewCrossfade(keys, -2).Len())
	assert.Equal(t, 1, NewCrossfade(keys[:1], 15).Len())
	assert.Equal(t, 0, NewCrossfade(nil, 15).Len())
}

func TestCrossfade_Blends(t *testing.T) {
	keys := []Frame{
		{Image: solid(2, 2, 0), Date: day(1)},
		{Image: solid(2, 2, 200), Date: day(2)},
	}

	seq := NewCrossfade(keys, 3)
	require.Equal(t, 5, seq.Len())

	want := []uint8{0, 50, 100, 150, 200}
	for i := range want {
		rgba := seq.Frame(i).Image.(*image.RGBA)
		assert.Equal(t, want[i], rgba.RGBAAt(1, 1).R, "frame %d", i)
	}

	assert.Equal(t, day(1), seq.Frame(0).Date)
	assert.Equal(t, day(1), seq.Frame(3).Date, "in-between frames keep the earlier date")
	assert.Equal(t, day(2), seq.Frame(4).Date)
}

func TestCrossfade_KeyFramesAreShared(t *testing.T) {
	first := solid(4, 4, 30)
	seq := NewCrossfade([]Frame{{Image: first}, {Image: solid(4, 4, 60)}}, 2)

	assert.Same(t, first, seq.Frame(0).Image, "key frames are not copied")
	assert.NotSame(t, seq.Frame(1).Image, seq.Frame(1).Image, "in-between frames are built on demand")
}

func TestCrossfade_ScalesMismatchedFrames(t *testing.T) {
	keys := []Frame{
		{Image: solid(8, 4, 10)},
		{Image: solid(16, 8, 10)},
	}

	seq := NewCrossfade(keys, 1)
	for i := 0; i < seq.Len(); i++ {
		assert.Equal(t, image.Rect(0, 0, 8, 4), seq.Frame(i).Image.Bounds())
	}
}

func TestBlend_Endpoints(t *testing.T) {
	a, b := solid(1, 1, 20), solid(1, 1, 220)

	assert.Equal(t, uint8(20), Blend(a, b, 0).Pix[0])
	assert.Equal(t, uint8(220), Blend(a, b, 1).Pix[0])
	assert.Equal(t, uint8(255), Blend(a, b, 0.5).Pix[3], "alpha stays opaque")
}
