package software

import (
	"image/color"
	"testing"

	"github.com/gogpu/postfx"
)

// runKernel draws the named pixel shader over src into a new surface of
// the same size and returns it.
func runKernel(t *testing.T, name string, src *Surface, p postfx.Params) *Surface {
	t.Helper()
	d := NewDevice(WithWorkers(1))
	t.Cleanup(d.Close)

	vs, err := d.CompileShader(postfx.StageVertex, postfx.VertexShaderName)
	if err != nil {
		t.Fatal(err)
	}
	ps, err := d.CompileShader(postfx.StagePixel, name)
	if err != nil {
		t.Fatal(err)
	}
	buf, _ := d.CreateBuffer(postfx.ParamsBlockSize)
	geo, _ := d.CreateGeometry(postfx.QuadVertices())
	smp, _ := d.CreateSampler(postfx.SamplerDesc{})
	dst := NewSurface(src.Width(), src.Height())

	ctx := d.NewContext()
	if err := ctx.UpdateBuffer(buf, p.AppendBlock(nil, dst.Width(), dst.Height())); err != nil {
		t.Fatal(err)
	}
	ctx.SetRenderTarget(dst)
	ctx.SetViewport(0, 0, dst.Width(), dst.Height())
	ctx.SetShaders(vs, ps)
	ctx.SetTexture(0, src)
	ctx.SetSampler(0, smp)
	ctx.SetUniformBuffer(0, buf)
	ctx.SetGeometry(geo)
	ctx.Draw(4)
	if n := ctx.(*Context).Draws(); n != 1 {
		t.Fatalf("draws = %d, want 1", n)
	}
	return dst
}

func solid(w, h int, c color.RGBA) *Surface {
	s := NewSurface(w, h)
	s.Fill(c)
	return s
}

func near(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	return d >= -tol && d <= tol
}

func TestInvertKernel(t *testing.T) {
	// Premultiplied (0.1, 0.5, 0.9) at alpha 200 inverts to (0.9, 0.5, 0.1).
	out := runKernel(t, "invert", solid(4, 4, color.RGBA{R: 20, G: 100, B: 180, A: 200}), postfx.DefaultParams())
	if got := out.RGBAAt(2, 2); got != (color.RGBA{R: 180, G: 100, B: 20, A: 200}) {
		t.Errorf("invert = %v", got)
	}
}

func TestSepiaKernel(t *testing.T) {
	out := runKernel(t, "sepia", solid(4, 4, color.RGBA{R: 100, G: 100, B: 100, A: 255}), postfx.DefaultParams())
	got := out.RGBAAt(1, 1)
	if !(got.R > got.G && got.G > got.B) {
		t.Errorf("sepia of gray = %v, want R > G > B", got)
	}
}

func TestUniformImageSurvivesBlurs(t *testing.T) {
	c := color.RGBA{R: 80, G: 160, B: 40, A: 255}
	p := postfx.DefaultParams()
	p.Radius = 2
	for _, name := range []string{"copy", "box_blur", "gaussian_blur", "fxaa", "color_correction"} {
		out := runKernel(t, name, solid(16, 12, c), p)
		for _, pt := range [][2]int{{0, 0}, {8, 6}, {15, 11}} {
			got := out.RGBAAt(pt[0], pt[1])
			if !near(got.R, c.R, 1) || !near(got.G, c.G, 1) || !near(got.B, c.B, 1) || got.A != c.A {
				t.Errorf("%s at %v = %v, want about %v", name, pt, got, c)
			}
		}
	}
}

func TestGaussianBlurSpreadsLight(t *testing.T) {
	src := solid(9, 9, color.RGBA{A: 255})
	src.SetRGBA(4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	out := runKernel(t, "gaussian_blur", src, postfx.DefaultParams())
	center, side := out.RGBAAt(4, 4), out.RGBAAt(5, 4)
	if center.R >= 255 || side.R == 0 || side.R >= center.R {
		t.Errorf("center = %v side = %v, want light spread outward", center, side)
	}
}

func TestToneMappingKernel(t *testing.T) {
	out := runKernel(t, "tone_mapping", solid(2, 2, color.RGBA{R: 255, G: 0, B: 128, A: 255}), postfx.DefaultParams())
	got := out.RGBAAt(0, 0)
	// 1/(1+1) = 0.5, then 0.5^(1/2.2) = 0.7297.
	if !near(got.R, 186, 1) {
		t.Errorf("tone mapped red = %d, want about 186", got.R)
	}
	if got.G != 0 {
		t.Errorf("tone mapped black channel = %d, want 0", got.G)
	}
}

func TestBloomKernelAddsGlow(t *testing.T) {
	src := solid(16, 16, color.RGBA{A: 255})
	src.SetRGBA(8, 8, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	p := postfx.DefaultParams()
	p.BloomThreshold = 0.5
	p.BloomIntensity = 4
	p.BloomBlurPasses = 1
	out := runKernel(t, "bloom", src, p)

	if got := out.RGBAAt(9, 8); got.R == 0 {
		t.Errorf("neighbor of highlight = %v, want glow", got)
	}
	if got := out.RGBAAt(0, 0); got.R != 0 {
		t.Errorf("far corner = %v, want black", got)
	}
}

func TestBloomKernelBelowThreshold(t *testing.T) {
	c := color.RGBA{R: 100, G: 100, B: 100, A: 255}
	out := runKernel(t, "bloom", solid(8, 8, c), postfx.DefaultParams())
	if got := out.RGBAAt(4, 4); got != c {
		t.Errorf("bloom below threshold = %v, want %v", got, c)
	}
}

func TestColorCorrectionKernel(t *testing.T) {
	p := postfx.DefaultParams()
	p.Saturation = 0
	out := runKernel(t, "color_correction", solid(2, 2, color.RGBA{R: 200, G: 50, B: 10, A: 255}), p)
	got := out.RGBAAt(0, 0)
	if got.R != got.G || got.G != got.B {
		t.Errorf("zero saturation = %v, want gray", got)
	}

	p = postfx.DefaultParams()
	p.Brightness = 0.2
	out = runKernel(t, "color_correction", solid(2, 2, color.RGBA{R: 100, G: 100, B: 100, A: 255}), p)
	if got := out.RGBAAt(0, 0); !near(got.R, 151, 1) {
		t.Errorf("brightness +0.2 = %v, want about 151", got)
	}
}

func TestColorCorrectionGamma(t *testing.T) {
	src := solid(2, 2, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	tests := []struct {
		gamma float32
		want  uint8
	}{
		{postfx.DisplayGamma, 100},
		{0, 100},
		// 0.392^2 = 0.154
		{postfx.DisplayGamma / 2, 39},
		// 0.392^0.5 = 0.626
		{postfx.DisplayGamma * 2, 160},
	}
	for _, tt := range tests {
		p := postfx.DefaultParams()
		p.Gamma = tt.gamma
		got := runKernel(t, "color_correction", src, p).RGBAAt(0, 0)
		if !near(got.R, tt.want, 1) || got.R != got.G || got.A != 255 {
			t.Errorf("gamma %v: got %v, want gray %d", tt.gamma, got, tt.want)
		}
	}
}

func TestFXAASmoothsEdge(t *testing.T) {
	src := solid(8, 8, color.RGBA{A: 255})
	for y := range 8 {
		for x := range 8 {
			if x > y {
				src.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	out := runKernel(t, "fxaa", src, postfx.DefaultParams())
	softened := false
	for y := range 8 {
		for x := range 8 {
			if r := out.RGBAAt(x, y).R; r != 0 && r != 255 {
				softened = true
			}
		}
	}
	if !softened {
		t.Error("fxaa left a hard diagonal edge untouched")
	}
}

func TestDrawDropsIncompleteState(t *testing.T) {
	d := NewDevice()
	defer d.Close()
	ctx := d.NewContext().(*Context)
	ctx.Draw(4)
	if ctx.Draws() != 0 {
		t.Error("draw with no state executed")
	}
}

func TestTranslucentPixels(t *testing.T) {
	src := NewSurface(3, 1)
	src.SetRGBA(0, 0, color.RGBA{R: 100, G: 40, B: 0, A: 128})
	src.SetRGBA(1, 0, color.RGBA{R: 10, G: 20, B: 30, A: 30})
	src.SetRGBA(2, 0, color.RGBA{})

	out := runKernel(t, "copy", src, postfx.DefaultParams())
	for x := range 3 {
		if got, want := out.RGBAAt(x, 0), src.RGBAAt(x, 0); got != want {
			t.Errorf("copy at %d = %v, want %v", x, got, want)
		}
	}

	out = runKernel(t, "grayscale", src, postfx.DefaultParams())
	for x := range 3 {
		got, in := out.RGBAAt(x, 0), src.RGBAAt(x, 0)
		if got.A != in.A {
			t.Errorf("grayscale alpha at %d = %d, want %d", x, got.A, in.A)
		}
		if got.R > got.A || got.G > got.A || got.B > got.A {
			t.Errorf("grayscale at %d = %v, color exceeds alpha", x, got)
		}
		if got.R != got.G || got.G != got.B {
			t.Errorf("grayscale at %d = %v, want equal channels", x, got)
		}
	}
	if got := out.RGBAAt(2, 0); got != (color.RGBA{}) {
		t.Errorf("transparent pixel = %v, want zero", got)
	}
	// Straight (0.78, 0.31, 0) has luma 0.416, premultiplied by 128/255.
	if got := out.RGBAAt(0, 0); !near(got.R, 53, 1) {
		t.Errorf("grayscale red = %d, want about 53", got.R)
	}
}

func TestDrawDropsReleasedSurfaces(t *testing.T) {
	for _, tc := range []struct {
		name    string
		release func(src, dst *Surface)
		want    int
	}{
		{"live", func(*Surface, *Surface) {}, 1},
		{"released target", func(_, dst *Surface) { dst.Release() }, 0},
		{"released texture", func(src, _ *Surface) { src.Release() }, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDevice(WithWorkers(1))
			defer d.Close()
			vs, _ := d.CompileShader(postfx.StageVertex, postfx.VertexShaderName)
			ps, _ := d.CompileShader(postfx.StagePixel, "copy")
			buf, _ := d.CreateBuffer(postfx.ParamsBlockSize)
			geo, _ := d.CreateGeometry(postfx.QuadVertices())
			smp, _ := d.CreateSampler(postfx.SamplerDesc{})
			src, dst := solid(2, 2, color.RGBA{R: 9, A: 255}), NewSurface(2, 2)

			ctx := d.NewContext().(*Context)
			params := postfx.DefaultParams()
			if err := ctx.UpdateBuffer(buf, params.AppendBlock(nil, 2, 2)); err != nil {
				t.Fatal(err)
			}
			ctx.SetRenderTarget(dst)
			ctx.SetViewport(0, 0, 2, 2)
			ctx.SetShaders(vs, ps)
			ctx.SetTexture(0, src)
			ctx.SetSampler(0, smp)
			ctx.SetUniformBuffer(0, buf)
			ctx.SetGeometry(geo)
			tc.release(src, dst)
			ctx.Draw(4)
			if got := ctx.Draws(); got != tc.want {
				t.Errorf("draws = %d, want %d", got, tc.want)
			}
		})
	}
}
