package share

import (
	"errors"
	"fmt"

	"github.com/abramin/sharelens/internal/memberkey"
)

var (
	// ErrInvalidKey is matched by every *KeyError.
	ErrInvalidKey = errors.New("invalid key")
	// ErrConfiguration is matched by every *ConfigError.
	ErrConfiguration = errors.New("configuration error")
	// ErrClosed is returned by a Service after Close.
	ErrClosed = errors.New("service closed")
)

// KeyError reports a key that does not resolve in the server image.
type KeyError struct {
	Key memberkey.Key
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("invalid key %s: %v", e.Key, e.Err)
}

func (e *KeyError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidKey) hold.
func (e *KeyError) Is(target error) bool { return target == ErrInvalidKey }

// ConfigError reports a missing or unreadable image or store. It is fatal
// for the pass.
type ConfigError struct {
	Image string // "server", "client", or empty when not image specific
	Path  string
	Err   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Image != "" && e.Path != "":
		return fmt.Sprintf("configuration error: %s image at %s: %v", e.Image, e.Path, e.Err)
	case e.Image != "":
		return fmt.Sprintf("configuration error: %s image: %v", e.Image, e.Err)
	case e.Path != "":
		return fmt.Sprintf("configuration error: %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConfiguration) hold.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
