package fileid

import "slices"

// Set is an immutable set of file IDs. The zero value is the empty set.
type Set struct {
	ids []ID // sorted, unique
}

// NewSet builds a set from ids, dropping duplicates and Invalid.
func NewSet(ids ...ID) Set {
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id != Invalid {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return Set{ids: slices.Compact(out)}
}

// Len returns the number of IDs in the set.
func (s Set) Len() int { return len(s.ids) }

// Empty reports whether the set has no IDs.
func (s Set) Empty() bool { return len(s.ids) == 0 }

// Contains reports whether id is in the set.
func (s Set) Contains(id ID) bool {
	_, ok := slices.BinarySearch(s.ids, id)
	return ok
}

// IDs returns a copy of the IDs in ascending order.
func (s Set) IDs() []ID {
	return slices.Clone(s.ids)
}

// Union returns a set holding the IDs of both sets.
func (s Set) Union(other Set) Set {
	if other.Empty() {
		return s
	}
	if s.Empty() {
		return other
	}
	merged := make([]ID, 0, len(s.ids)+len(other.ids))
	merged = append(merged, s.ids...)
	merged = append(merged, other.ids...)
	return NewSet(merged...)
}

// Paths resolves every ID through r, skipping unknown IDs.
func (s Set) Paths(r *Registry) []string {
	out := make([]string, 0, len(s.ids))
	for _, id := range s.ids {
		if p, ok := r.Resolve(id); ok {
			out = append(out, p)
		}
	}
	return out
}
