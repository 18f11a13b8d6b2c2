package mockup

import (
	"image"
	"math"

	"tti-balder/internal/design"
)

const (
	featherRatio = 0.18
	innerRadius  = 0.30
	outerRadius  = 0.50
)

// maskFunc returns the alpha multiplier for the normalised position (u, v)
// in [0, 1] of the overlay.
type maskFunc func(u, v float64) float64

func maskFor(b design.BlendStyle) maskFunc {
	switch b {
	case design.BlendFade:
		return func(u, v float64) float64 {
			return edgeRamp(u) * edgeRamp(v)
		}
	case design.BlendGradient:
		return func(u, v float64) float64 {
			return 1 - v
		}
	case design.BlendCircle:
		return func(u, v float64) float64 {
			return radialRamp(math.Hypot(u-0.5, v-0.5))
		}
	case design.BlendSquare:
		return func(u, v float64) float64 {
			return radialRamp(math.Max(math.Abs(u-0.5), math.Abs(v-0.5)))
		}
	default:
		return nil
	}
}

func edgeRamp(t float64) float64 {
	d := math.Min(t, 1-t)
	if d >= featherRatio {
		return 1
	}
	return smoothstep(d / featherRatio)
}

func radialRamp(dist float64) float64 {
	if dist <= innerRadius {
		return 1
	}
	if dist >= outerRadius {
		return 0
	}
	return smoothstep(1 - (dist-innerRadius)/(outerRadius-innerRadius))
}

func smoothstep(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	return t * t * (3 - 2*t)
}

// applyMask multiplies the alpha channel of img in place.
func applyMask(img *image.NRGBA, b design.BlendStyle) {
	mask := maskFor(b)
	if mask == nil {
		return
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return
	}

	for y := 0; y < h; y++ {
		v := (float64(y) + 0.5) / float64(h)
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			u := (float64(x) + 0.5) / float64(w)
			a := float64(row[x*4+3]) * mask(u, v)
			row[x*4+3] = uint8(math.Round(a))
		}
	}
}
