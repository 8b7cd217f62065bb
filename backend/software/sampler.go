package software

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/postfx"
)

// rgba is a normalized color. Surfaces store premultiplied alpha; kernels
// see straight alpha, converted by sample and converted back when a draw
// writes its output.
type rgba [4]float32

func (c rgba) add(d rgba) rgba {
	return rgba{c[0] + d[0], c[1] + d[1], c[2] + d[2], c[3] + d[3]}
}

func (c rgba) scale(k float32) rgba {
	return rgba{c[0] * k, c[1] * k, c[2] * k, c[3] * k}
}

// mix returns a*(1-t) + b*t per channel. At t == 0 and t == 1 the result
// is exactly a or b.
func mix(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

func mixRGBA(a, b rgba, t float32) rgba {
	return rgba{mix(a[0], b[0], t), mix(a[1], b[1], t), mix(a[2], b[2], t), mix(a[3], b[3], t)}
}

func unpremultiply(c rgba) rgba {
	if c[3] <= 0 {
		return rgba{}
	}
	return rgba{c[0] / c[3], c[1] / c[3], c[2] / c[3], c[3]}
}

// premultiply clamps c and scales its color by alpha.
func premultiply(c rgba) rgba {
	a := clamp01(c[3])
	return rgba{clamp01(c[0]) * a, clamp01(c[1]) * a, clamp01(c[2]) * a, a}
}

func clamp01(x float32) float32 {
	switch {
	case x != x: // NaN
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// quantize converts a normalized channel to 8 bits, rounding to nearest.
func quantize(x float32) uint8 {
	return uint8(clamp01(x)*255 + 0.5)
}

func smoothstep(e0, e1, x float32) float32 {
	if e1 <= e0 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := clamp01((x - e0) / (e1 - e0))
	return t * t * (3 - 2*t)
}

// Sampler is sampling state for a bound texture.
type Sampler struct {
	dev      *Device
	desc     postfx.SamplerDesc
	released bool
}

// Release frees the sampler.
func (s *Sampler) Release() {
	if s.released {
		return
	}
	s.released = true
	s.dev.untrack(kindSampler)
}

// sampler2D reads a surface with the filtering and addressing of a
// Sampler, using normalized coordinates with texel centers at (i+0.5)/n.
type sampler2D struct {
	src  *Surface
	desc postfx.SamplerDesc
}

func (t sampler2D) index(i, n int) int {
	if t.desc.Address == postfx.AddressRepeat {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	return min(max(i, 0), n-1)
}

// sample returns the filtered color at (u, v) with straight alpha.
// Premultiplied texels are filtered first, then divided by alpha.
func (t sampler2D) sample(u, v float32) rgba {
	return unpremultiply(t.filter(u, v))
}

func (t sampler2D) filter(u, v float32) rgba {
	w, h := t.src.w, t.src.h
	if w == 0 || h == 0 {
		return rgba{}
	}
	x := u*float32(w) - 0.5
	y := v*float32(h) - 0.5

	if t.desc.Filter == postfx.FilterNearest {
		ix := t.index(int(math32.Floor(x+0.5)), w)
		iy := t.index(int(math32.Floor(y+0.5)), h)
		return t.src.texel(ix, iy)
	}

	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	ix0, iy0 := int(x0), int(y0)
	ix1, iy1 := t.index(ix0+1, w), t.index(iy0+1, h)
	ix0, iy0 = t.index(ix0, w), t.index(iy0, h)

	top := mixRGBA(t.src.texel(ix0, iy0), t.src.texel(ix1, iy0), fx)
	bottom := mixRGBA(t.src.texel(ix0, iy1), t.src.texel(ix1, iy1), fx)
	return mixRGBA(top, bottom, fy)
}
