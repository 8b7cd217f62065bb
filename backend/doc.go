// Package backend selects a postfx device implementation by name.
//
// # Backend Registration
//
// Backend packages register themselves from init functions. Import the
// ones you want linked in:
//
//	import (
//	    _ "github.com/gogpu/postfx/backend/native"
//	    _ "github.com/gogpu/postfx/backend/software"
//	)
//
// # Backend Selection
//
// Use Default to open the best available backend (native GPU first,
// software fallback), or Get to request one by name:
//
//	b, err := backend.Get(backend.Software)
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	src, err := b.UploadImage(img)
//	...
//	m.Process(b.NewContext(), src, dst)
//	out, err := b.ReadImage(dst)
package backend
