// Package sharedset holds the files a generation pass links textually into
// the client side. A declaration from one of these files is compiled into
// both images without the client referencing the server.
package sharedset

import (
	"fmt"

	"github.com/abramin/sharelens/internal/fileid"
)

// Set is the immutable shared source file set of one pass.
type Set struct {
	ids fileid.Set
}

// New interns every path in reg and returns the resulting set. Blank paths
// are rejected.
func New(reg *fileid.Registry, paths []string) (*Set, error) {
	ids := make([]fileid.ID, 0, len(paths))
	for _, p := range paths {
		id, err := reg.Intern(p)
		if err != nil {
			return nil, fmt.Errorf("shared file: %w", err)
		}
		ids = append(ids, id)
	}
	return &Set{ids: fileid.NewSet(ids...)}, nil
}

// IsShared reports whether id is a shared file.
func (s *Set) IsShared(id fileid.ID) bool { return s.ids.Contains(id) }

// Intersects reports whether any file of files is shared.
func (s *Set) Intersects(files fileid.Set) bool {
	small, large := files, s.ids
	if small.Len() > large.Len() {
		small, large = large, small
	}
	for _, id := range small.IDs() {
		if large.Contains(id) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct shared files.
func (s *Set) Len() int { return s.ids.Len() }

// IDs returns the shared file IDs in ascending order.
func (s *Set) IDs() []fileid.ID { return s.ids.IDs() }
