// Package shaders embeds the GPU programs behind each postfx effect.
//
// Every pixel shader exists twice: as WGSL for the native wgpu backend
// and as Kage for the Ebitengine backend. Both read the same seven-row
// parameter block postfx.Params encodes, so one Params value drives
// every backend identically.
package shaders

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

//go:embed wgsl/*.wgsl
var wgslFS embed.FS

//go:embed kage/*.kage
var kageFS embed.FS

// Entry points of the WGSL modules.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// Fullscreen is the name of the shared vertex shader.
const Fullscreen = "fullscreen"

const prelude = "common"

// ErrUnknownShader is returned for a name with no embedded source.
var ErrUnknownShader = errors.New("shaders: unknown shader")

// WGSL returns the complete WGSL module for name. Pixel shaders are
// prefixed with the shared parameter and binding declarations; the
// fullscreen vertex shader stands alone.
func WGSL(name string) (string, error) {
	body, err := read(wgslFS, "wgsl", name, ".wgsl")
	if err != nil {
		return "", err
	}
	if name == Fullscreen {
		return body, nil
	}
	common, err := read(wgslFS, "wgsl", prelude, ".wgsl")
	if err != nil {
		return "", err
	}
	return common + "\n" + body, nil
}

// Kage returns the complete Kage program for the pixel shader name.
func Kage(name string) ([]byte, error) {
	if name == Fullscreen {
		return nil, fmt.Errorf("%w: %q has no Kage form", ErrUnknownShader, name)
	}
	body, err := read(kageFS, "kage", name, ".kage")
	if err != nil {
		return nil, err
	}
	common, err := read(kageFS, "kage", prelude, ".kage")
	if err != nil {
		return nil, err
	}
	return []byte(common + "\n" + body), nil
}

// Names lists the pixel shaders with a WGSL source, sorted.
func Names() []string {
	entries, _ := wgslFS.ReadDir("wgsl")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := strings.TrimSuffix(e.Name(), ".wgsl")
		if n == prelude || n == Fullscreen {
			continue
		}
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func read(fs embed.FS, dir, name, ext string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/.") {
		return "", fmt.Errorf("%w: %q", ErrUnknownShader, name)
	}
	b, err := fs.ReadFile(path.Join(dir, name+ext))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownShader, name)
	}
	return string(b), nil
}
