package video

import (
	"image"
	"time"

	"golang.org/x/image/draw"
)

// Sequence yields frames by index. Exporters pull one frame at a time, so
// a sequence only has to keep what it needs to build the next frame.
type Sequence interface {
	Len() int
	Frame(i int) Frame
}

// Frames is a Sequence over frames already in memory
type Frames []Frame

func (f Frames) Len() int          { return len(f) }
func (f Frames) Frame(i int) Frame { return f[i] }

// Crossfade holds only the key frames and blends in-between frames when they
// are requested. After every key frame but the last come `between` frames,
// frame j of a gap blended with alpha = j/(between+1) and carrying the date
// of the key frame it leaves. All frames share the size of the first key.
type Crossfade struct {
	keys    []*image.RGBA
	dates   []time.Time
	between int
}

// NewCrossfade converts the key frames once and returns the lazy sequence
func NewCrossfade(keys []Frame, between int) *Crossfade {
	if between < 0 {
		between = 0
	}
	c := &Crossfade{between: between}
	if len(keys) == 0 {
		return c
	}

	bounds := image.Rect(0, 0, keys[0].Image.Bounds().Dx(), keys[0].Image.Bounds().Dy())
	c.keys = make([]*image.RGBA, len(keys))
	c.dates = make([]time.Time, len(keys))
	for i, k := range keys {
		c.keys[i] = toRGBA(k.Image, bounds)
		c.dates[i] = k.Date
	}
	return c
}

// Len is len(keys) + (len(keys)-1)*between
func (c *Crossfade) Len() int {
	if len(c.keys) == 0 {
		return 0
	}
	return len(c.keys) + (len(c.keys)-1)*c.between
}

// Frame returns frame i; in-between frames are freshly allocated
func (c *Crossfade) Frame(i int) Frame {
	step := c.between + 1
	k, j := i/step, i%step
	if j == 0 {
		return Frame{Image: c.keys[k], Date: c.dates[k]}
	}
	alpha := float64(j) / float64(step)
	return Frame{Image: Blend(c.keys[k], c.keys[k+1], alpha), Date: c.dates[k]}
}

// Blend returns (1-alpha)*a + alpha*b. Both images must have the same bounds.
func Blend(a, b *image.RGBA, alpha float64) *image.RGBA {
	out := image.NewRGBA(a.Bounds())
	wb := uint32(alpha*256 + 0.5)
	wa := 256 - wb
	for i := range out.Pix {
		out.Pix[i] = uint8((uint32(a.Pix[i])*wa + uint32(b.Pix[i])*wb + 128) >> 8)
	}
	return out
}

// toRGBA converts src to an RGBA image with the given zero-origin bounds,
// scaling when the sizes differ
func toRGBA(src image.Image, bounds image.Rectangle) *image.RGBA {
	if img, ok := src.(*image.RGBA); ok && img.Bounds() == bounds {
		return img
	}

	dst := image.NewRGBA(bounds)
	sb := src.Bounds()
	if sb.Dx() == bounds.Dx() && sb.Dy() == bounds.Dy() {
		draw.Draw(dst, bounds, src, sb.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, bounds, src, sb, draw.Src, nil)
	}
	return dst
}
