// Package scene renders small 3D test scenes in software with fauxgl.
// They stand in for a host renderer as input to the effect chain: "shapes"
// has lit geometry and an over-bright light source for bloom and tone
// mapping, "edges" has hard aliased silhouettes for FXAA.
package scene

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"

	"github.com/fogleman/fauxgl"
	"golang.org/x/image/draw"
)

// ErrUnknownScene is returned for names not listed by Names.
var ErrUnknownScene = errors.New("scene: unknown scene")

const (
	fovy = 40.0
	near = 0.1
	far  = 50.0
)

var (
	eye    = fauxgl.V(4, -6, 3)
	center = fauxgl.V(0, 0, 0.5)
	up     = fauxgl.V(0, 0, 1)
	light  = fauxgl.V(-0.6, -0.4, 1).Normalize()
)

type object struct {
	mesh  *fauxgl.Mesh
	color fauxgl.Color
	// Unlit objects ignore the light and draw their color flat.
	unlit bool
}

type builder func() (background fauxgl.Color, objects []object)

var scenes = map[string]builder{
	"shapes": shapes,
	"edges":  edges,
}

// Names returns the available scenes, sorted.
func Names() []string {
	names := make([]string, 0, len(scenes))
	for name := range scenes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Renderer draws one scene repeatedly at a fixed size. It is not safe for
// concurrent use.
type Renderer struct {
	name       string
	ctx        *fauxgl.Context
	background fauxgl.Color
	objects    []object
	out        *image.RGBA
}

// NewRenderer prepares the named scene for width x height frames.
func NewRenderer(name string, width, height int) (*Renderer, error) {
	build, ok := scenes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("scene: invalid size %dx%d", width, height)
	}
	bg, objects := build()
	return &Renderer{
		name:       name,
		ctx:        fauxgl.NewContext(width, height),
		background: bg,
		objects:    objects,
		out:        image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// Name returns the scene name.
func (r *Renderer) Name() string { return r.name }

// Frame renders the scene with the camera orbited by angle radians around
// the vertical axis. The returned image is reused by the next call.
func (r *Renderer) Frame(angle float64) *image.RGBA {
	r.ctx.ClearColorBufferWith(r.background)
	r.ctx.ClearDepthBuffer()

	aspect := float64(r.ctx.Width) / float64(r.ctx.Height)
	cam := fauxgl.Rotate(up, angle).MulPosition(eye)
	matrix := fauxgl.LookAt(cam, center, up).Perspective(fovy, aspect, near, far)

	for _, o := range r.objects {
		if o.unlit {
			r.ctx.Shader = fauxgl.NewSolidColorShader(matrix, o.color)
		} else {
			s := fauxgl.NewPhongShader(matrix, light, cam)
			s.ObjectColor = o.color
			r.ctx.Shader = s
		}
		r.ctx.DrawMesh(o.mesh)
	}

	draw.Copy(r.out, image.Point{}, r.ctx.Image(), r.ctx.Image().Bounds(), draw.Src, nil)
	return r.out
}

// Render draws one frame of the named scene from the default camera.
func Render(name string, width, height int) (*image.RGBA, error) {
	r, err := NewRenderer(name, width, height)
	if err != nil {
		return nil, err
	}
	return r.Frame(0), nil
}

func place(m *fauxgl.Mesh, scale, at fauxgl.Vector) *fauxgl.Mesh {
	m.Transform(fauxgl.Scale(scale).Translate(at))
	return m
}

// box returns an axis-aligned box with the given half extents.
func box(half, at fauxgl.Vector) *fauxgl.Mesh {
	return fauxgl.NewCubeForBox(fauxgl.Box{Min: at.Sub(half), Max: at.Add(half)})
}

func shapes() (fauxgl.Color, []object) {
	ground := box(fauxgl.V(8, 8, 0.05), fauxgl.V(0, 0, -0.05))
	cube := box(fauxgl.V(0.6, 0.6, 0.6), fauxgl.V(0, 0, 0))
	cube.Transform(fauxgl.Rotate(up, math.Pi/6).Translate(fauxgl.V(-1, 0.6, 0.6)))
	sphere := place(fauxgl.NewSphere(3), fauxgl.V(0.7, 0.7, 0.7), fauxgl.V(1, -0.2, 0.7))
	lamp := place(fauxgl.NewSphere(2), fauxgl.V(0.25, 0.25, 0.25), fauxgl.V(0.2, 1.6, 1.8))

	return fauxgl.HexColor("#10131c"), []object{
		{mesh: ground, color: fauxgl.HexColor("#4a4f5c")},
		{mesh: cube, color: fauxgl.HexColor("#c8462d")},
		{mesh: sphere, color: fauxgl.HexColor("#2d6fc8")},
		{mesh: lamp, color: fauxgl.White, unlit: true},
	}
}

func edges() (fauxgl.Color, []object) {
	var objects []object
	for i := range 5 {
		c := box(fauxgl.V(0.35, 0.35, 0.35), fauxgl.V(0, 0, 0))
		c.Transform(fauxgl.Rotate(up, float64(i)*math.Pi/9).Translate(fauxgl.V(float64(i-2)*0.9, 0, 0.5)))
		objects = append(objects, object{mesh: c, color: fauxgl.White, unlit: true})
	}
	return fauxgl.Black, objects
}
