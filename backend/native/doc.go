// Package native runs postfx passes on the GPU through the gogpu/wgpu
// hardware abstraction layer.
//
// Every pass is one render pipeline built from the shared fullscreen
// vertex shader and the effect's WGSL fragment shader (see package
// shaders). Pipelines share a single bind group layout:
//
//	@group(0) @binding(0) var<uniform> params: Params;
//	@group(0) @binding(1) var src_texture: texture_2d<f32>;
//	@group(0) @binding(2) var src_sampler: sampler;
//
// A Context records the frame into one command encoder. Flush submits it
// and waits for the queue to drain, so surfaces are safe to reuse as soon
// as Manager.Process returns.
//
// # Device Sources
//
// A Device can wrap an existing hal device and queue (New), take them from
// a host application through gpucontext.DeviceProvider (NewFromProvider),
// or open the first registered hal backend that exposes an adapter (Open).
// The package registers itself as backend.Native using Open; import a hal
// backend package (for example github.com/gogpu/wgpu/hal/vulkan) to make a
// real adapter available.
package native
