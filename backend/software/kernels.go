package software

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/postfx"
)

// Luma weights.
var (
	rec601 = [3]float32{0.299, 0.587, 0.114}
	rec709 = [3]float32{0.2126, 0.7152, 0.0722}
)

func dot3(c rgba, w [3]float32) float32 {
	return c[0]*w[0] + c[1]*w[1] + c[2]*w[2]
}

// kernelInput is what a pixel kernel sees: the bound input texture, the
// decoded parameter block and the output resolution.
type kernelInput struct {
	tex sampler2D
	p   postfx.Params
	res postfx.Resolution
}

// kernel computes one output pixel at texture coordinate (u, v).
type kernel func(in *kernelInput, u, v float32) rgba

// kernels maps pixel shader names to their CPU implementations.
var kernels = map[string]kernel{
	"copy":             copyKernel,
	"grayscale":        grayscaleKernel,
	"sepia":            sepiaKernel,
	"invert":           invertKernel,
	"box_blur":         boxBlurKernel,
	"gaussian_blur":    gaussianBlurKernel,
	"bloom":            bloomKernel,
	"tone_mapping":     toneMappingKernel,
	"fxaa":             fxaaKernel,
	"vignette":         vignetteKernel,
	"color_correction": colorCorrectionKernel,
}

func copyKernel(in *kernelInput, u, v float32) rgba {
	return in.tex.sample(u, v)
}

func grayscaleKernel(in *kernelInput, u, v float32) rgba {
	c := in.tex.sample(u, v)
	g := dot3(c, rec601)
	t := in.p.Intensity
	return rgba{mix(c[0], g, t), mix(c[1], g, t), mix(c[2], g, t), c[3]}
}

func sepiaKernel(in *kernelInput, u, v float32) rgba {
	c := in.tex.sample(u, v)
	s := rgba{
		dot3(c, [3]float32{0.393, 0.769, 0.189}),
		dot3(c, [3]float32{0.349, 0.686, 0.168}),
		dot3(c, [3]float32{0.272, 0.534, 0.131}),
	}
	t := in.p.Intensity
	return rgba{mix(c[0], s[0], t), mix(c[1], s[1], t), mix(c[2], s[2], t), c[3]}
}

func invertKernel(in *kernelInput, u, v float32) rgba {
	c := in.tex.sample(u, v)
	t := in.p.Intensity
	return rgba{mix(c[0], 1-c[0], t), mix(c[1], 1-c[1], t), mix(c[2], 1-c[2], t), c[3]}
}

func boxBlurKernel(in *kernelInput, u, v float32) rgba {
	du := in.res.TexelWidth * in.p.Radius
	dv := in.res.TexelHeight * in.p.Radius
	var sum rgba
	for j := -2; j <= 2; j++ {
		for i := -2; i <= 2; i++ {
			sum = sum.add(in.tex.sample(u+float32(i)*du, v+float32(j)*dv))
		}
	}
	return sum.scale(1.0 / 25.0)
}

// gaussianWeight is the 9x9 tap weight for offset (i, j). The effective
// standard deviation is twice Params.Sigma in taps, so the default sigma
// of 1 gives the classic exp(-(i²+j²)/8) kernel.
func gaussianWeight(i, j int, sigma float32) float32 {
	s := 2 * sigma
	return math32.Exp(-float32(i*i+j*j) / (2 * s * s))
}

// gaussian9 blurs f over a 9x9 neighborhood with tap spacing (du, dv).
func gaussian9(u, v, du, dv, sigma float32, f func(u, v float32) rgba) rgba {
	var sum rgba
	var total float32
	for j := -4; j <= 4; j++ {
		for i := -4; i <= 4; i++ {
			w := gaussianWeight(i, j, sigma)
			sum = sum.add(f(u+float32(i)*du, v+float32(j)*dv).scale(w))
			total += w
		}
	}
	return sum.scale(1 / total)
}

func gaussianBlurKernel(in *kernelInput, u, v float32) rgba {
	if in.p.Sigma <= 0 || in.p.Radius <= 0 {
		return in.tex.sample(u, v)
	}
	du := in.res.TexelWidth * in.p.Radius
	dv := in.res.TexelHeight * in.p.Radius
	return gaussian9(u, v, du, dv, in.p.Sigma, in.tex.sample)
}

// brightPass keeps colors whose Rec. 709 luminance exceeds the bloom
// threshold, scaled by the bloom intensity.
func brightPass(c rgba, p *postfx.Params) rgba {
	if dot3(c, rec709) > p.BloomThreshold {
		return rgba{c[0] * p.BloomIntensity, c[1] * p.BloomIntensity, c[2] * p.BloomIntensity, 0}
	}
	return rgba{}
}

// bloomKernel adds the blurred bright pass to the input. Each extra blur
// pass widens the spread by sqrt(passes), the width n successive Gaussian
// passes would reach.
func bloomKernel(in *kernelInput, u, v float32) rgba {
	c := in.tex.sample(u, v)
	sigma := in.p.Sigma
	if sigma <= 0 {
		sigma = 1
	}
	spread := in.p.Radius * math32.Sqrt(float32(max(in.p.BloomBlurPasses, 1)))
	du := in.res.TexelWidth * spread
	dv := in.res.TexelHeight * spread
	glow := gaussian9(u, v, du, dv, sigma, func(u, v float32) rgba {
		return brightPass(in.tex.sample(u, v), &in.p)
	})
	return rgba{c[0] + glow[0], c[1] + glow[1], c[2] + glow[2], c[3]}
}

// toneMappingKernel applies exposure, Reinhard mapping against the white
// point, then gamma encoding.
func toneMappingKernel(in *kernelInput, u, v float32) rgba {
	c := in.tex.sample(u, v)
	white := math32.Max(in.p.WhitePoint, 1e-6)
	invGamma := float32(1)
	if in.p.Gamma > 0 {
		invGamma = 1 / in.p.Gamma
	}
	out := c
	for i := range 3 {
		x := math32.Max(c[i]*in.p.Exposure, 0)
		x /= x + white
		out[i] = math32.Pow(x, invGamma)
	}
	return out
}

func fxaaKernel(in *kernelInput, u, v float32) rgba {
	tw, th := in.res.TexelWidth, in.res.TexelHeight
	p := &in.p

	nw := in.tex.sample(u-tw, v-th)
	ne := in.tex.sample(u+tw, v-th)
	sw := in.tex.sample(u-tw, v+th)
	se := in.tex.sample(u+tw, v+th)
	m := in.tex.sample(u, v)

	lNW, lNE, lSW, lSE, lM := dot3(nw, rec601), dot3(ne, rec601), dot3(sw, rec601), dot3(se, rec601), dot3(m, rec601)
	lMin := min(lM, lNW, lNE, lSW, lSE)
	lMax := max(lM, lNW, lNE, lSW, lSE)

	dirX := -((lNW + lNE) - (lSW + lSE))
	dirY := (lNW + lSW) - (lNE + lSE)
	reduce := math32.Max((lNW+lNE+lSW+lSE)*0.25*p.FXAAReduceMul, p.FXAAReduceMin)
	rcpMin := 1 / (math32.Min(math32.Abs(dirX), math32.Abs(dirY)) + reduce)
	span := p.FXAASpanMax
	dirX = min(max(dirX*rcpMin, -span), span) * tw
	dirY = min(max(dirY*rcpMin, -span), span) * th

	a := in.tex.sample(u+dirX*(1.0/3.0-0.5), v+dirY*(1.0/3.0-0.5)).
		add(in.tex.sample(u+dirX*(2.0/3.0-0.5), v+dirY*(2.0/3.0-0.5))).
		scale(0.5)
	b := a.scale(0.5).add(
		in.tex.sample(u-dirX*0.5, v-dirY*0.5).
			add(in.tex.sample(u+dirX*0.5, v+dirY*0.5)).
			scale(0.25))

	out := b
	if lB := dot3(b, rec601); lB < lMin || lB > lMax {
		out = a
	}
	out[3] = m[3]
	return out
}

func vignetteKernel(in *kernelInput, u, v float32) rgba {
	c := in.tex.sample(u, v)
	du, dv := u-0.5, v-0.5
	d := math32.Sqrt(du*du + dv*dv)
	r, s := in.p.VignetteRadius, in.p.VignetteSoftness
	f := 1 - smoothstep(r, r+s, d)
	vc := in.p.VignetteColor
	return rgba{mix(vc[0], c[0], f), mix(vc[1], c[1], f), mix(vc[2], c[2], f), c[3]}
}

// colorCorrectionKernel applies tint, contrast around mid-gray,
// brightness offset, saturation and gamma, in that order. Gamma is
// relative to DisplayGamma, so the default leaves colors unchanged.
func colorCorrectionKernel(in *kernelInput, u, v float32) rgba {
	c := in.tex.sample(u, v)
	p := &in.p
	for i := range 3 {
		x := c[i] * p.ColorTint[i]
		c[i] = (x-0.5)*p.Contrast + 0.5 + p.Brightness
	}
	g := dot3(c, rec601)
	for i := range 3 {
		c[i] = mix(g, c[i], p.Saturation)
	}
	k := float32(1)
	if p.Gamma > 0 {
		k = postfx.DisplayGamma / p.Gamma
	}
	for i := range 3 {
		c[i] = math32.Pow(max(c[i], 0), k)
	}
	return c
}
