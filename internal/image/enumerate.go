package image

import (
	"go/types"
	"sort"

	"github.com/abramin/sharelens/internal/memberkey"
	"go.uber.org/zap"
)

// Entities lists the exported declarations of the root packages a mirror
// generator would visit: each exported defined type followed by its
// properties, its remaining methods and its constructors. Packages under
// excluded directories and types declared in excluded files are skipped.
func (u *Universe) Entities() []memberkey.Key {
	if u.closed {
		return nil
	}
	var keys []memberkey.Key
	for _, pkg := range u.roots {
		if u.excludedPackage(pkg) {
			u.log.Debug("package excluded", zap.String("package", pkg.PkgPath))
			continue
		}
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			tn, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || !tn.Exported() || tn.IsAlias() {
				continue
			}
			if u.excludedFile(u.fileOf(tn.Pos())) {
				continue
			}
			keys = append(keys, typeEntities(tn)...)
		}
	}
	return keys
}

func typeEntities(tn *types.TypeName) []memberkey.Key {
	q := QualifiedName(tn)
	keys := []memberkey.Key{memberkey.Type(q)}

	props, accessorNames := properties(tn)
	for _, p := range props {
		keys = append(keys, memberkey.Property(q, p))
	}

	methods := methodSet(tn)
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name() < methods[j].Name() })
	for _, m := range methods {
		if !m.Exported() || accessorNames[m.Name()] {
			continue
		}
		keys = append(keys, memberkey.Method(q, m.Name(), ParamTypes(m.Type().(*types.Signature))))
	}

	seen := make(map[memberkey.Key]bool)
	for _, fn := range constructors(tn) {
		k := memberkey.Constructor(q, ParamTypes(fn.Type().(*types.Signature)))
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// properties returns the sorted exported property names of tn and the names
// of the methods acting as their accessors.
func properties(tn *types.TypeName) ([]string, map[string]bool) {
	names := make(map[string]bool)
	if st, ok := types.Unalias(tn.Type()).Underlying().(*types.Struct); ok {
		for i := 0; i < st.NumFields(); i++ {
			if f := st.Field(i); f.Exported() {
				names[f.Name()] = true
			}
		}
	}
	for _, m := range methodSet(tn) {
		if m.Exported() && isGetter(m.Type().(*types.Signature)) {
			names[m.Name()] = true
		}
	}

	accessorNames := make(map[string]bool)
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
		getter, setter := accessors(tn, name)
		if getter != nil {
			accessorNames[getter.Name()] = true
		}
		if setter != nil {
			accessorNames[setter.Name()] = true
		}
	}
	sort.Strings(out)
	return out, accessorNames
}
