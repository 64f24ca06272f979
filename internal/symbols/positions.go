package symbols

import (
	"go/token"

	"github.com/abramin/sharelens/internal/fileid"
	"github.com/abramin/sharelens/internal/image"
)

// PositionProvider answers from the declaration positions the compiler
// recorded in export data. It needs no store of its own and is the usual
// last resort.
type PositionProvider struct {
	reg *fileid.Registry
}

// NewPositionProvider returns a provider interning file names in reg.
func NewPositionProvider(reg *fileid.Registry) *PositionProvider {
	return &PositionProvider{reg: reg}
}

// LocateMember returns the file of a property's field and the files of its
// accessors, or the files of a method or constructor.
func (p *PositionProvider) LocateMember(e *image.Entity) fileid.Set {
	var positions []token.Pos
	if e.Field != nil {
		positions = append(positions, e.Field.Pos())
	}
	for _, fn := range e.Funcs {
		positions = append(positions, fn.Pos())
	}
	return p.files(e.Fset(), positions)
}

// LocateTypeFiles returns the file of the type declaration together with the
// files of every method declared on it.
func (p *PositionProvider) LocateTypeFiles(e *image.Entity) fileid.Set {
	positions := []token.Pos{e.Type.Pos()}
	for _, m := range e.DeclaredMethods() {
		positions = append(positions, m.Pos())
	}
	return p.files(e.Fset(), positions)
}

func (p *PositionProvider) files(fset *token.FileSet, positions []token.Pos) fileid.Set {
	paths := make([]string, 0, len(positions))
	for _, pos := range positions {
		if !pos.IsValid() {
			continue
		}
		if name := fset.PositionFor(pos, false).Filename; name != "" {
			paths = append(paths, name)
		}
	}
	return internPaths(p.reg, paths)
}

// Close is a no-op.
func (p *PositionProvider) Close() error { return nil }
