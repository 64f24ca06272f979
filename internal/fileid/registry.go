// Package fileid interns source file paths into small integer identifiers.
//
// Two paths that differ only in letter case, separator style, redundant
// elements or trailing separators receive the same ID. IDs are assigned in
// observation order starting at 1 and are never reassigned while the
// Registry lives. A Registry is not safe for concurrent use; each generation
// pass owns its own.
package fileid

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ID identifies an interned file path.
type ID uint32

// Invalid is never assigned to a path.
const Invalid ID = 0

// ErrInvalidPath is returned when an empty or blank path is interned.
var ErrInvalidPath = errors.New("invalid path")

// Registry maps normalized paths to IDs and back.
type Registry struct {
	byKey map[string]ID
	paths []string // paths[id-1] is the first spelling seen for id
	fold  cases.Caser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string]ID),
		fold:  cases.Fold(),
	}
}

// Intern returns the ID for p, assigning a new one on first observation.
func (r *Registry) Intern(p string) (ID, error) {
	if strings.TrimSpace(p) == "" {
		return Invalid, fmt.Errorf("interning %q: %w", p, ErrInvalidPath)
	}
	key := normalize(r.fold, p)
	if id, ok := r.byKey[key]; ok {
		return id, nil
	}
	r.paths = append(r.paths, p)
	id := ID(len(r.paths))
	r.byKey[key] = id
	return id, nil
}

// Lookup returns the ID for p without interning it.
func (r *Registry) Lookup(p string) (ID, bool) {
	if strings.TrimSpace(p) == "" {
		return Invalid, false
	}
	id, ok := r.byKey[normalize(r.fold, p)]
	return id, ok
}

// Resolve returns the first spelling interned for id.
func (r *Registry) Resolve(id ID) (string, bool) {
	if id == Invalid || int(id) > len(r.paths) {
		return "", false
	}
	return r.paths[id-1], true
}

// Len returns the number of distinct files interned.
func (r *Registry) Len() int {
	return len(r.paths)
}

// Normalize returns the comparison key for a path: forward slashes, cleaned
// elements, no trailing separator, NFC composed and case folded.
func Normalize(p string) string {
	return normalize(cases.Fold(), p)
}

// Casers carry state, so every registry folds with its own.
func normalize(fold cases.Caser, p string) string {
	s := strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	s = path.Clean(s)
	return fold.String(norm.NFC.String(s))
}
