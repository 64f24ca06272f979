// Package symbols locates the source files of compiled declarations.
//
// A Provider answers from one kind of symbol store: DWARF in a linked
// executable, the positions recorded in compiler export data, or a manifest
// file. The Locator asks its providers in order and memoizes the first
// non-empty answer per declaration.
package symbols

import (
	"io"

	"github.com/abramin/sharelens/internal/fileid"
	"github.com/abramin/sharelens/internal/image"
)

// Provider reports the source files recorded for an entity. Providers never
// fail a query: a missing store or an unrecorded declaration yields an empty
// set.
type Provider interface {
	// LocateMember returns the files of a property, method or constructor.
	LocateMember(e *image.Entity) fileid.Set
	// LocateTypeFiles returns every file contributing a declaration to a type.
	LocateTypeFiles(e *image.Entity) fileid.Set
	io.Closer
}

// Provider names accepted in configuration.
const (
	NameManifest  = "manifest"
	NameDWARF     = "dwarf"
	NamePositions = "positions"
)

// DefaultOrder is the order providers are consulted in when configuration
// does not say otherwise.
var DefaultOrder = []string{NameManifest, NameDWARF, NamePositions}

// internPaths interns every path, skipping the ones the registry rejects.
func internPaths(reg *fileid.Registry, paths []string) fileid.Set {
	ids := make([]fileid.ID, 0, len(paths))
	for _, p := range paths {
		if id, err := reg.Intern(p); err == nil {
			ids = append(ids, id)
		}
	}
	return fileid.NewSet(ids...)
}
