package postfx

import "errors"

// Sentinel errors returned by pipeline construction. Frame execution
// (Manager.Process) never returns errors; it logs and degrades instead.
var (
	// ErrNotInitialized is returned when an operation requires a device
	// that has not been attached with Initialize.
	ErrNotInitialized = errors.New("postfx: not initialized")

	// ErrNilDevice is returned when Initialize receives a nil device.
	ErrNilDevice = errors.New("postfx: nil device")

	// ErrInvalidSize is returned for zero or negative dimensions.
	ErrInvalidSize = errors.New("postfx: invalid size")

	// ErrUnknownEffect is returned for descriptors outside the enumeration
	// and for names that do not match any effect.
	ErrUnknownEffect = errors.New("postfx: unknown effect")

	// ErrShaderCompile wraps a device shader compilation failure.
	ErrShaderCompile = errors.New("postfx: shader compile failed")

	// ErrResourceCreate wraps a device buffer, surface, sampler or
	// geometry creation failure.
	ErrResourceCreate = errors.New("postfx: resource creation failed")

	// ErrInvalidParams is returned by Params.Validate and DecodeBlock.
	ErrInvalidParams = errors.New("postfx: invalid parameters")

	// ErrSameResource is reported when a pass would read and write the
	// same surface.
	ErrSameResource = errors.New("postfx: input and output are the same resource")
)
