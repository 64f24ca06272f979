// Package share classifies server entities as not shared, shared by source
// or shared by reference.
//
// A Service correlates two independently loaded images. An entity that
// resolves in the client image is shared by reference. Otherwise, if any
// source file recorded for its declaration is in the shared file set, it is
// shared by source. Everything else is not shared. Members are classified
// independently of their declaring type.
package share

import (
	"errors"
	"fmt"

	"github.com/abramin/sharelens/internal/fileid"
	"github.com/abramin/sharelens/internal/image"
	"github.com/abramin/sharelens/internal/memberkey"
	"github.com/abramin/sharelens/internal/sharedset"
	"github.com/abramin/sharelens/internal/symbols"
	"go.uber.org/zap"
)

// Service answers classification queries for one generation pass. It owns
// both universes and the locator and is not safe for concurrent use.
type Service struct {
	reg     *fileid.Registry
	server  *image.Universe
	client  *image.Universe
	locator *symbols.Locator
	shared  *sharedset.Set
	log     *zap.Logger

	cache  map[memberkey.Key]Kind
	closed bool
}

// New assembles a Service from parts. The Service takes ownership of the
// universes and the locator. reg must be the registry the shared set and the
// locator's providers intern into.
func New(reg *fileid.Registry, server, client *image.Universe, loc *symbols.Locator, shared *sharedset.Set, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		reg:     reg,
		server:  server,
		client:  client,
		locator: loc,
		shared:  shared,
		log:     log,
		cache:   make(map[memberkey.Key]Kind),
	}
}

// ClassifyType classifies a type by its package-qualified name.
func (s *Service) ClassifyType(qualifiedName string) (Kind, error) {
	return s.Classify(memberkey.Type(qualifiedName))
}

// ClassifyProperty classifies a property of a type.
func (s *Service) ClassifyProperty(qualifiedTypeName, propertyName string) (Kind, error) {
	return s.Classify(memberkey.Property(qualifiedTypeName, propertyName))
}

// ClassifyMethod classifies a method. Parameter types must match exactly
// and in order.
func (s *Service) ClassifyMethod(qualifiedTypeName, methodName string, params []string) (Kind, error) {
	return s.Classify(memberkey.Method(qualifiedTypeName, methodName, params))
}

// ClassifyConstructor classifies the constructor of a type taking params.
func (s *Service) ClassifyConstructor(qualifiedTypeName string, params []string) (Kind, error) {
	return s.Classify(memberkey.Constructor(qualifiedTypeName, params))
}

// Classify returns the kind of the entity named by k. Keys that do not
// resolve in the server image yield a *KeyError and are not cached.
func (s *Service) Classify(k memberkey.Key) (Kind, error) {
	if s.closed {
		return NotShared, ErrClosed
	}
	if kind, ok := s.cache[k]; ok {
		return kind, nil
	}
	if err := k.Validate(); err != nil {
		return NotShared, &KeyError{Key: k, Err: err}
	}
	e, err := s.server.Resolve(k)
	if err != nil {
		return NotShared, &KeyError{Key: k, Err: err}
	}

	kind := s.classify(e)
	s.cache[k] = kind
	s.log.Debug("classified", zap.Stringer("key", k), zap.Stringer("kind", kind))
	return kind, nil
}

func (s *Service) classify(e *image.Entity) Kind {
	if _, err := s.client.Resolve(e.Key); err == nil {
		return SharedByReference
	} else if !errors.Is(err, image.ErrNotFound) {
		s.log.Warn("client lookup failed", zap.Stringer("key", e.Key), zap.Error(err))
	}
	if s.shared.Intersects(s.files(e)) {
		return SharedBySource
	}
	return NotShared
}

func (s *Service) files(e *image.Entity) fileid.Set {
	if e.Key.Kind() == memberkey.KindType {
		return s.locator.FilesForType(e)
	}
	return s.locator.FilesForMember(e)
}

// Files returns the source files recorded for the entity named by k, in the
// spelling first seen.
func (s *Service) Files(k memberkey.Key) ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}
	e, err := s.server.Resolve(k)
	if err != nil {
		return nil, &KeyError{Key: k, Err: err}
	}
	return s.files(e).Paths(s.reg), nil
}

// Entities lists every exported server entity in enumeration order.
func (s *Service) Entities() []memberkey.Key {
	if s.closed {
		return nil
	}
	return s.server.Entities()
}

// Server returns the server universe.
func (s *Service) Server() *image.Universe { return s.server }

// Client returns the client universe.
func (s *Service) Client() *image.Universe { return s.client }

// SharedFiles returns the number of distinct shared files.
func (s *Service) SharedFiles() int { return s.shared.Len() }

// Close releases the universes and the symbol providers. It is safe to call
// more than once.
func (s *Service) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache = nil

	var errs []error
	if err := s.locator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing symbol providers: %w", err))
	}
	if err := s.server.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing server image: %w", err))
	}
	if err := s.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing client image: %w", err))
	}
	return errors.Join(errs...)
}
