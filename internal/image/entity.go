package image

import (
	"fmt"
	"go/token"
	"go/types"
	"strings"

	"github.com/abramin/sharelens/internal/memberkey"
)

// Entity is a declaration resolved in one universe.
type Entity struct {
	Key   memberkey.Key
	Type  *types.TypeName // declaring type, or the type itself
	Field *types.Var      // struct field backing a property
	Funcs []*types.Func   // method, property accessors or constructors

	universe *Universe
}

// Fset returns the file set the entity's positions belong to.
func (e *Entity) Fset() *token.FileSet { return e.universe.fset }

// Universe returns the universe the entity was resolved in.
func (e *Entity) Universe() *Universe { return e.universe }

// DeclaredMethods returns the methods declared directly on the entity's type.
func (e *Entity) DeclaredMethods() []*types.Func {
	return declaredMethods(e.Type)
}

// Resolve finds the declaration named by k. It returns an error wrapping
// ErrNotFound when the type or member does not exist, or when no method or
// constructor has exactly the requested parameter types.
func (u *Universe) Resolve(k memberkey.Key) (*Entity, error) {
	tn, err := u.lookupType(k.TypeName())
	if err != nil {
		return nil, err
	}
	e := &Entity{Key: k, Type: tn, universe: u}

	switch k.Kind() {
	case memberkey.KindType:
		return e, nil

	case memberkey.KindProperty:
		e.Field = structField(tn, k.Member())
		getter, setter := accessors(tn, k.Member())
		if e.Field == nil && getter == nil {
			return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
		}
		for _, fn := range []*types.Func{getter, setter} {
			if fn != nil {
				e.Funcs = append(e.Funcs, fn)
			}
		}
		return e, nil

	case memberkey.KindMethod:
		want := k.Params()
		for _, m := range methodSet(tn) {
			if m.Name() == k.Member() && paramsMatch(m.Type().(*types.Signature), want) {
				e.Funcs = []*types.Func{m}
				return e, nil
			}
		}
		return nil, fmt.Errorf("%s: %w", k, ErrNotFound)

	case memberkey.KindConstructor:
		want := k.Params()
		for _, fn := range constructors(tn) {
			if paramsMatch(fn.Type().(*types.Signature), want) {
				e.Funcs = append(e.Funcs, fn)
			}
		}
		if len(e.Funcs) == 0 {
			return nil, fmt.Errorf("%s: %w", k, ErrNotFound)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%s: unsupported key kind: %w", k, ErrNotFound)
	}
}

// QualifiedName returns the package-qualified name of a type.
func QualifiedName(tn *types.TypeName) string {
	if tn.Pkg() == nil {
		return tn.Name()
	}
	return memberkey.Qualify(tn.Pkg().Path(), tn.Name())
}

// TypeName renders a type the way member keys spell parameter types: fully
// package qualified.
func TypeName(t types.Type) string {
	return types.TypeString(t, nil)
}

// ParamTypes returns the parameter type names of sig, spelling a variadic
// final parameter as "...T".
func ParamTypes(sig *types.Signature) []string {
	params := sig.Params()
	out := make([]string, params.Len())
	for i := 0; i < params.Len(); i++ {
		t := params.At(i).Type()
		if sig.Variadic() && i == params.Len()-1 {
			if s, ok := t.(*types.Slice); ok {
				out[i] = "..." + TypeName(s.Elem())
				continue
			}
		}
		out[i] = TypeName(t)
	}
	return out
}

// paramsMatch compares parameter types positionally and exactly.
func paramsMatch(sig *types.Signature, want []string) bool {
	got := ParamTypes(sig)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// target returns the named type a type name denotes, looking through aliases.
func target(tn *types.TypeName) *types.Named {
	named, _ := types.Unalias(tn.Type()).(*types.Named)
	return named
}

// methodSet returns the methods callable by name on the type: declared
// methods for defined types, the full method set for interfaces.
func methodSet(tn *types.TypeName) []*types.Func {
	named := target(tn)
	if named == nil {
		return nil
	}
	if iface, ok := named.Underlying().(*types.Interface); ok {
		out := make([]*types.Func, 0, iface.NumMethods())
		for i := 0; i < iface.NumMethods(); i++ {
			out = append(out, iface.Method(i))
		}
		return out
	}
	out := make([]*types.Func, 0, named.NumMethods())
	for i := 0; i < named.NumMethods(); i++ {
		out = append(out, named.Method(i))
	}
	return out
}

// declaredMethods returns the methods whose declarations belong to tn.
// Aliases declare none.
func declaredMethods(tn *types.TypeName) []*types.Func {
	if tn.IsAlias() {
		return nil
	}
	named := target(tn)
	if named == nil {
		return nil
	}
	if iface, ok := named.Underlying().(*types.Interface); ok {
		out := make([]*types.Func, 0, iface.NumExplicitMethods())
		for i := 0; i < iface.NumExplicitMethods(); i++ {
			out = append(out, iface.ExplicitMethod(i))
		}
		return out
	}
	return methodSet(tn)
}

func structField(tn *types.TypeName, name string) *types.Var {
	st, ok := types.Unalias(tn.Type()).Underlying().(*types.Struct)
	if !ok {
		return nil
	}
	for i := 0; i < st.NumFields(); i++ {
		if f := st.Field(i); f.Name() == name {
			return f
		}
	}
	return nil
}

// accessors finds the getter X() T and setter SetX(T) of property X.
func accessors(tn *types.TypeName, name string) (getter, setter *types.Func) {
	for _, m := range methodSet(tn) {
		sig := m.Type().(*types.Signature)
		switch m.Name() {
		case name:
			if isGetter(sig) {
				getter = m
			}
		case "Set" + name:
			if isSetter(sig) {
				setter = m
			}
		}
	}
	return getter, setter
}

var errorType = types.Universe.Lookup("error").Type()

// isGetter reports whether sig reads like an accessor: no parameters and a
// single result. Methods returning only an error, such as Close or Err,
// are operations rather than reads and stay methods.
func isGetter(sig *types.Signature) bool {
	if sig.Params().Len() != 0 || sig.Results().Len() != 1 {
		return false
	}
	return !types.Identical(sig.Results().At(0).Type(), errorType)
}

func isSetter(sig *types.Signature) bool {
	return sig.Params().Len() == 1 && sig.Results().Len() == 0
}

// constructors returns the package-level functions named New or New<Type>...
// whose first result is the type or a pointer to it, in name order.
func constructors(tn *types.TypeName) []*types.Func {
	named := target(tn)
	if named == nil || tn.Pkg() == nil {
		return nil
	}
	want := named.Origin().Obj()
	scope := tn.Pkg().Scope()

	var out []*types.Func
	for _, name := range scope.Names() {
		if name != "New" && !strings.HasPrefix(name, "New"+tn.Name()) {
			continue
		}
		fn, ok := scope.Lookup(name).(*types.Func)
		if !ok {
			continue
		}
		sig := fn.Type().(*types.Signature)
		if sig.Results().Len() == 0 || !constructs(sig.Results().At(0).Type(), want) {
			continue
		}
		out = append(out, fn)
	}
	return out
}

func constructs(t types.Type, want *types.TypeName) bool {
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	named, ok := t.(*types.Named)
	return ok && named.Origin().Obj() == want
}
