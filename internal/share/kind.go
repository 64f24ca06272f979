package share

import "fmt"

// Kind is the sharing classification of a server entity.
type Kind int

const (
	// NotShared entities must be generated on the client side.
	NotShared Kind = iota
	// SharedBySource entities are compiled into the client from a shared
	// source file.
	SharedBySource
	// SharedByReference entities are reachable from the client image.
	SharedByReference
)

var kindNames = [...]string{
	NotShared:         "not_shared",
	SharedBySource:    "shared_by_source",
	SharedByReference: "shared_by_reference",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Shared reports whether the entity needs no generated counterpart.
func (k Kind) Shared() bool { return k == SharedBySource || k == SharedByReference }

// ParseKind reads the text form produced by String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return NotShared, fmt.Errorf("unknown share kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid share kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
