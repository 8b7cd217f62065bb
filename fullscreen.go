package postfx

import "fmt"

// quadVertexCount is the vertex count of the triangle-strip quad.
const quadVertexCount = 4

// quadVertices covers clip space [-1,1]² as a triangle strip.
// Texture v grows downward so uv (0,0) is the top-left texel.
var quadVertices = [quadVertexCount]Vertex{
	{X: -1, Y: 1, U: 0, V: 0},
	{X: 1, Y: 1, U: 1, V: 0},
	{X: -1, Y: -1, U: 0, V: 1},
	{X: 1, Y: -1, U: 1, V: 1},
}

// QuadVertices returns a copy of the full-screen quad. Backends that draw
// without a vertex buffer can use it to check their own geometry.
func QuadVertices() []Vertex {
	v := quadVertices
	return v[:]
}

// fullscreenQuad owns the immutable quad geometry. It is created once per
// Manager and shared by every pass.
type fullscreenQuad struct {
	geometry Geometry
}

func newFullscreenQuad(dev Device) (*fullscreenQuad, error) {
	g, err := dev.CreateGeometry(QuadVertices())
	if err != nil {
		return nil, fmt.Errorf("%w: fullscreen quad: %w", ErrResourceCreate, err)
	}
	return &fullscreenQuad{geometry: g}, nil
}

// draw binds the quad and issues the draw call.
func (q *fullscreenQuad) draw(ctx Context) {
	ctx.SetGeometry(q.geometry)
	ctx.Draw(quadVertexCount)
}

func (q *fullscreenQuad) release() {
	if q == nil || q.geometry == nil {
		return
	}
	q.geometry.Release()
	q.geometry = nil
}
