package symbols

import (
	"errors"

	"github.com/abramin/sharelens/internal/fileid"
	"github.com/abramin/sharelens/internal/image"
	"github.com/abramin/sharelens/internal/memberkey"
)

// Locator maps entities to the source files their declarations came from.
// Answers are memoized per key for the Locator's lifetime. A Locator is not
// safe for concurrent use.
type Locator struct {
	providers []Provider
	members   map[memberkey.Key]fileid.Set
	types     map[memberkey.Key]fileid.Set
	closed    bool
}

// NewLocator returns a Locator consulting providers in order.
func NewLocator(providers ...Provider) *Locator {
	return &Locator{
		providers: providers,
		members:   make(map[memberkey.Key]fileid.Set),
		types:     make(map[memberkey.Key]fileid.Set),
	}
}

// FilesForMember returns the files of a property, method or constructor.
func (l *Locator) FilesForMember(e *image.Entity) fileid.Set {
	return l.locate(l.members, e.Key, func(p Provider) fileid.Set { return p.LocateMember(e) })
}

// FilesForType returns every file contributing a declaration to a type.
// For a type declared across several files this is the union of them.
func (l *Locator) FilesForType(e *image.Entity) fileid.Set {
	return l.locate(l.types, e.Key.TypeKey(), func(p Provider) fileid.Set { return p.LocateTypeFiles(e) })
}

// locate returns the first non-empty provider answer. Empty answers are
// memoized as well.
func (l *Locator) locate(cache map[memberkey.Key]fileid.Set, k memberkey.Key, ask func(Provider) fileid.Set) fileid.Set {
	if l.closed {
		return fileid.Set{}
	}
	if s, ok := cache[k]; ok {
		return s
	}
	var s fileid.Set
	for _, p := range l.providers {
		if s = ask(p); !s.Empty() {
			break
		}
	}
	cache[k] = s
	return s
}

// Close closes every provider once and reports their joined errors.
func (l *Locator) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	l.members = nil
	l.types = nil

	var errs []error
	for _, p := range l.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
