// Package postfx runs an ordered chain of full-screen image effects over
// a rendered frame.
//
// # Overview
//
// A Manager owns a chain of effects (bloom, tone mapping, vignette,
// grayscale, blur, color correction and others), one shared parameter
// block, and two intermediate surfaces. Process walks the chain once per
// frame: the first enabled effect reads the input image, each following
// effect reads its predecessor's output, and the last enabled effect writes
// the final target. Intermediate results ping-pong between the two
// surfaces, so memory does not grow with chain length.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/postfx"
//	    "github.com/gogpu/postfx/backend/software"
//	)
//
//	dev := software.NewDevice()
//	m := postfx.NewManager(postfx.WithEffects(
//	    postfx.EffectBloom, postfx.EffectToneMapping, postfx.EffectVignette))
//	if err := m.Initialize(dev, 1280, 720); err != nil {
//	    return err
//	}
//	defer m.Shutdown()
//
//	frame := software.NewSurfaceFromImage(img)
//	target := software.NewSurface(1280, 720)
//	m.Process(dev.NewContext(), frame, target)
//
// # Backends
//
// The Device and Context interfaces abstract the graphics API:
//   - backend/software: CPU reference implementation
//   - backend/native: gogpu/wgpu HAL with WGSL shaders
//   - backend/ebiten: Ebitengine with Kage shaders
//
// # Parameter Block
//
// Params is encoded into a fixed 112-byte block of seven vec4<f32> rows
// (see ParamsLayoutVersion). Every shader reads the same block.
//
// # Failure Model
//
// Construction (Initialize, AddEffect, Resize) returns errors. Frame
// execution does not: a pass that cannot run is skipped and logged, so a
// broken effect never blanks the frame.
package postfx

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)
