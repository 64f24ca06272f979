// Package memberkey defines location-independent identities for Go
// declarations so the same type or member can be correlated across two
// separately loaded program images.
//
// A key names a type by its package-qualified name, e.g.
// "example.com/api/model.Widget". Member keys add the member name and, for
// methods and constructors, the ordered parameter type names as rendered by
// types.TypeString with full package qualification. Comparison is exact.
package memberkey

import (
	"fmt"
	"strings"
)

// Kind is the kind of declaration a key names.
type Kind uint8

const (
	KindType Kind = iota + 1
	KindProperty
	KindMethod
	KindConstructor
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindProperty:
		return "property"
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	default:
		return "unknown"
	}
}

// prefix returns the tag used in the canonical text form.
func (k Kind) prefix() string {
	switch k {
	case KindType:
		return "T:"
	case KindProperty:
		return "P:"
	case KindMethod:
		return "M:"
	case KindConstructor:
		return "C:"
	default:
		return "?:"
	}
}

// paramSep joins parameter names inside a Key. Go type strings never
// contain it, so joined lists compare equal only when every element does.
const paramSep = "\x1f"

// Key identifies a type, property, method or constructor. Keys are
// comparable and may be used as map keys.
type Key struct {
	kind   Kind
	typ    string
	member string
	params string
}

// Type returns the key of a named type.
func Type(qualified string) Key {
	return Key{kind: KindType, typ: qualified}
}

// Property returns the key of a property declared on typ.
func Property(typ, name string) Key {
	return Key{kind: KindProperty, typ: typ, member: name}
}

// Method returns the key of a method declared on typ.
func Method(typ, name string, params []string) Key {
	return Key{kind: KindMethod, typ: typ, member: name, params: joinParams(params)}
}

// Constructor returns the key of a constructor of typ.
func Constructor(typ string, params []string) Key {
	return Key{kind: KindConstructor, typ: typ, params: joinParams(params)}
}

func joinParams(params []string) string {
	return strings.Join(params, paramSep)
}

// Kind returns the declaration kind.
func (k Key) Kind() Kind { return k.kind }

// TypeName returns the qualified name of the type the key belongs to.
func (k Key) TypeName() string { return k.typ }

// Member returns the property or method name; empty for types and
// constructors.
func (k Key) Member() string { return k.member }

// Params returns a copy of the parameter type names.
func (k Key) Params() []string {
	if k.params == "" {
		return nil
	}
	return strings.Split(k.params, paramSep)
}

// TypeKey returns the key of the declaring type.
func (k Key) TypeKey() Key { return Type(k.typ) }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k == Key{} }

// String renders the canonical text form understood by Parse.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.kind.prefix())
	b.WriteString(k.typ)
	switch k.kind {
	case KindProperty:
		b.WriteByte('.')
		b.WriteString(k.member)
	case KindMethod:
		b.WriteByte('.')
		b.WriteString(k.member)
		writeParams(&b, k.Params())
	case KindConstructor:
		writeParams(&b, k.Params())
	}
	return b.String()
}

func writeParams(b *strings.Builder, params []string) {
	b.WriteByte('(')
	b.WriteString(strings.Join(params, ", "))
	b.WriteByte(')')
}

// Validate checks that the key names a well-formed declaration.
func (k Key) Validate() error {
	if _, _, ok := SplitQualified(k.typ); !ok {
		return fmt.Errorf("%s key: %q is not a package-qualified type name", k.kind, k.typ)
	}
	switch k.kind {
	case KindType, KindConstructor:
		return nil
	case KindProperty, KindMethod:
		if k.member == "" || strings.ContainsAny(k.member, ".()") {
			return fmt.Errorf("%s key: invalid member name %q", k.kind, k.member)
		}
		return nil
	default:
		return fmt.Errorf("invalid key kind %d", k.kind)
	}
}

// SplitQualified splits "example.com/pkg.Name" into its package path and
// type name. The last element of a package path may itself contain dots
// (gopkg.in/yaml.v3), so the split happens at the final dot.
func SplitQualified(qualified string) (pkgPath, name string, ok bool) {
	dot := strings.LastIndexByte(qualified, '.')
	if dot <= 0 || dot == len(qualified)-1 {
		return "", "", false
	}
	if slash := strings.LastIndexByte(qualified, '/'); slash > dot {
		return "", "", false
	}
	return qualified[:dot], qualified[dot+1:], true
}

// Qualify joins a package path and a type name.
func Qualify(pkgPath, name string) string {
	return pkgPath + "." + name
}
