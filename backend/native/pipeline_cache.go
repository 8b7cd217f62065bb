package native

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/postfx"
)

type pipelineKey struct {
	vs, ps *Shader
}

// pipelineCache holds one render pipeline per shader pair.
//
// Lookups take the read lock; creation double-checks under the write lock
// so concurrent contexts never build the same pipeline twice.
type pipelineCache struct {
	mu        sync.RWMutex
	pipelines map[pipelineKey]hal.RenderPipeline

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newPipelineCache() *pipelineCache {
	return &pipelineCache{pipelines: make(map[pipelineKey]hal.RenderPipeline)}
}

// GetOrCreate returns the pipeline for vs and ps, building it on first use.
func (c *pipelineCache) GetOrCreate(d *Device, vs, ps *Shader) (hal.RenderPipeline, error) {
	key := pipelineKey{vs: vs, ps: ps}

	c.mu.RLock()
	if p, ok := c.pipelines[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok {
		c.hits.Add(1)
		return p, nil
	}

	p, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  d.label(ps.name + "_pipeline"),
		Layout: d.pipeLayout,
		Vertex: hal.VertexState{
			Module:     vs.module,
			EntryPoint: vs.entry,
			Buffers:    []gputypes.VertexBufferLayout{vertexLayout},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleStrip,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     ps.module,
			EntryPoint: ps.entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    textureFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pipeline %s: %w", postfx.ErrShaderCompile, ps.name, err)
	}
	c.pipelines[key] = p
	c.misses.Add(1)
	return p, nil
}

// Evict destroys every pipeline built from s.
func (c *pipelineCache) Evict(device hal.Device, s *Shader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.pipelines {
		if k.vs == s || k.ps == s {
			device.DestroyRenderPipeline(p)
			delete(c.pipelines, k)
		}
	}
}

// Len returns the number of cached pipelines.
func (c *pipelineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// Stats returns cache hits and misses.
func (c *pipelineCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Destroy releases every cached pipeline.
func (c *pipelineCache) Destroy(device hal.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.pipelines {
		device.DestroyRenderPipeline(p)
		delete(c.pipelines, k)
	}
}
