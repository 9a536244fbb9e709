package gibs

import (
	"image"
	"image/color"
	"image/draw"
)

const (
	lowPercentile  = 0.02
	highPercentile = 0.98
)

// Enhance improves clarity of a satellite frame: histogram equalization over
// all color channels followed by a 2-98 percentile contrast stretch. Both
// steps are monotonic, so they collapse into a single lookup table.
func Enhance(src image.Image) *image.RGBA {
	img := toRGBA(src)
	lut := enhanceLUT(histogram(img))

	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = lut[img.Pix[i]]
		img.Pix[i+1] = lut[img.Pix[i+1]]
		img.Pix[i+2] = lut[img.Pix[i+2]]
	}
	return img
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func histogram(img *image.RGBA) [256]int {
	var hist [256]int
	for i := 0; i < len(img.Pix); i += 4 {
		hist[img.Pix[i]]++
		hist[img.Pix[i+1]]++
		hist[img.Pix[i+2]]++
	}
	return hist
}

// enhanceLUT maps a channel value to its equalized, stretched value
func enhanceLUT(hist [256]int) [256]uint8 {
	var lut [256]uint8

	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		for v := range lut {
			lut[v] = uint8(v)
		}
		return lut
	}

	// Equalization: normalized cumulative distribution
	var eq [256]float64
	cum := 0
	for v, n := range hist {
		cum += n
		eq[v] = float64(cum) / float64(total)
	}

	// Percentiles of the equalized values
	lo, hi := eq[0], eq[255]
	cum = 0
	loSet := false
	for v, n := range hist {
		if n == 0 {
			continue
		}
		cum += n
		frac := float64(cum) / float64(total)
		if !loSet && frac >= lowPercentile {
			lo = eq[v]
			loSet = true
		}
		if frac >= highPercentile {
			hi = eq[v]
			break
		}
	}

	for v := range lut {
		x := eq[v]
		if hi > lo {
			x = (x - lo) / (hi - lo)
		}
		lut[v] = uint8(clamp01(x)*255 + 0.5)
	}
	return lut
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
