package symbols

import (
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"errors"
	"fmt"
	"go/types"
	"os"
	"path/filepath"
	"strings"

	"github.com/abramin/sharelens/internal/fileid"
	"github.com/abramin/sharelens/internal/image"
	"go.uber.org/zap"
)

// ErrNoDWARF is returned when neither the executable nor the symbol path
// carries debug information.
var ErrNoDWARF = errors.New("no DWARF data")

// DWARFProvider answers from the DWARF debug information of a linked
// executable. The executable is read on first use; when it was stripped,
// split debug files are searched for on the symbol path.
type DWARFProvider struct {
	reg        *fileid.Registry
	binary     string
	searchPath []string
	log        *zap.Logger

	loaded bool
	index  *dwarfIndex
}

// NewDWARFProvider returns a provider for binary. An empty binary yields a
// provider that never locates anything.
func NewDWARFProvider(reg *fileid.Registry, binary string, searchPath []string, log *zap.Logger) *DWARFProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &DWARFProvider{
		reg:        reg,
		binary:     binary,
		searchPath: searchPath,
		log:        log.With(zap.String("provider", NameDWARF)),
	}
}

// LocateMember returns the files of the functions behind a member. Struct
// fields have no DWARF location, so a field-only property yields nothing.
func (p *DWARFProvider) LocateMember(e *image.Entity) fileid.Set {
	idx := p.load()
	if idx == nil {
		return fileid.Set{}
	}
	var paths []string
	for _, fn := range e.Funcs {
		paths = append(paths, idx.funcs[funcSymbol(fn)]...)
	}
	if len(paths) == 0 {
		p.log.Debug("member not in debug info", zap.Stringer("key", e.Key))
	}
	return internPaths(p.reg, paths)
}

// LocateTypeFiles returns the union of the files of the type's methods
// and the file declaring the type. DWARF carries no location for a type
// declaration, so it is taken from the image; a type with no methods in
// the debug information yields an empty set.
func (p *DWARFProvider) LocateTypeFiles(e *image.Entity) fileid.Set {
	idx := p.load()
	if idx == nil {
		return fileid.Set{}
	}
	paths := idx.types[typeSymbol(e.Type)]
	if len(paths) == 0 {
		p.log.Debug("type not in debug info", zap.Stringer("key", e.Key))
		return fileid.Set{}
	}
	if decl := e.Fset().PositionFor(e.Type.Pos(), false).Filename; decl != "" {
		paths = append(paths[:len(paths):len(paths)], decl)
	}
	return internPaths(p.reg, paths)
}

// Close drops the index.
func (p *DWARFProvider) Close() error {
	p.index = nil
	p.loaded = true
	return nil
}

// load reads the debug information once. Failures are logged once and
// leave the provider empty.
func (p *DWARFProvider) load() *dwarfIndex {
	if p.loaded {
		return p.index
	}
	p.loaded = true
	if p.binary == "" {
		return nil
	}

	data, source, err := findDWARF(p.binary, p.searchPath)
	if err != nil {
		p.log.Warn("debug symbols unavailable", zap.String("binary", p.binary), zap.Error(err))
		return nil
	}
	idx, err := buildIndex(data)
	if err != nil {
		p.log.Warn("reading debug symbols", zap.String("file", source), zap.Error(err))
		return nil
	}
	p.log.Debug("debug symbols loaded",
		zap.String("file", source),
		zap.Int("functions", len(idx.funcs)),
		zap.Int("types", len(idx.types)))
	p.index = idx
	return idx
}

// findDWARF reads the DWARF data of binary, falling back to split debug
// files named after it in the binary's directory and on searchPath.
func findDWARF(binary string, searchPath []string) (*dwarf.Data, string, error) {
	if _, err := os.Stat(binary); err != nil {
		return nil, "", err
	}
	data, err := readDWARF(binary)
	if err == nil {
		return data, binary, nil
	}

	base := filepath.Base(binary)
	dirs := append([]string{filepath.Dir(binary)}, searchPath...)
	for _, dir := range dirs {
		for _, candidate := range []string{
			filepath.Join(dir, base+".debug"),
			filepath.Join(dir, base+".dSYM", "Contents", "Resources", "DWARF", base),
		} {
			if _, statErr := os.Stat(candidate); statErr != nil {
				continue
			}
			if data, derr := readDWARF(candidate); derr == nil {
				return data, candidate, nil
			}
		}
	}
	return nil, "", fmt.Errorf("%s: %w", binary, err)
}

// readDWARF opens an ELF, Mach-O or PE file and loads its DWARF sections.
func readDWARF(path string) (*dwarf.Data, error) {
	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		return dwarfOrErr(f.DWARF())
	}
	if f, err := macho.Open(path); err == nil {
		defer f.Close()
		return dwarfOrErr(f.DWARF())
	}
	if f, err := pe.Open(path); err == nil {
		defer f.Close()
		return dwarfOrErr(f.DWARF())
	}
	return nil, fmt.Errorf("%s: not an ELF, Mach-O or PE file", path)
}

func dwarfOrErr(d *dwarf.Data, err error) (*dwarf.Data, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDWARF, err)
	}
	return d, nil
}

// dwarfIndex maps linker symbol names to source files.
type dwarfIndex struct {
	funcs map[string][]string // "pkg.Func", "pkg.Type.Method"
	types map[string][]string // "pkg.Type": files of its methods
}

func (idx *dwarfIndex) add(name, file string) {
	sym, ok := splitFuncSym(name)
	if !ok || file == "" {
		return
	}
	key := sym.pkg + "." + sym.name
	if sym.recv != "" {
		typ := sym.pkg + "." + sym.recv
		key = typ + "." + sym.name
		idx.types[typ] = appendUnique(idx.types[typ], file)
	}
	idx.funcs[key] = appendUnique(idx.funcs[key], file)
}

func appendUnique(files []string, file string) []string {
	for _, f := range files {
		if f == file {
			return files
		}
	}
	return append(files, file)
}

// buildIndex walks every compile unit and records the source file of each
// subprogram, from DW_AT_decl_file when present and from the line table at
// the subprogram's entry otherwise.
func buildIndex(d *dwarf.Data) (*dwarfIndex, error) {
	idx := &dwarfIndex{
		funcs: make(map[string][]string),
		types: make(map[string][]string),
	}
	origins := make(map[dwarf.Offset]string)
	originName := func(off dwarf.Offset) string {
		if name, ok := origins[off]; ok {
			return name
		}
		r := d.Reader()
		r.Seek(off)
		var name string
		if e, err := r.Next(); err == nil && e != nil {
			name, _ = e.Val(dwarf.AttrName).(string)
		}
		origins[off] = name
		return name
	}

	var (
		lines *dwarf.LineReader
		files []*dwarf.LineFile
	)
	r := d.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("reading DWARF entries: %w", err)
		}
		if e == nil {
			break
		}

		switch e.Tag {
		case dwarf.TagCompileUnit:
			lines, files = nil, nil
			if lr, err := d.LineReader(e); err == nil && lr != nil {
				lines, files = lr, lr.Files()
			}
			continue
		case dwarf.TagSubprogram:
			name, _ := e.Val(dwarf.AttrName).(string)
			if name == "" {
				if off, ok := e.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset); ok {
					name = originName(off)
				}
			}
			idx.add(name, subprogramFile(e, files, lines))
		}
		if e.Children {
			r.SkipChildren()
		}
	}
	return idx, nil
}

func subprogramFile(e *dwarf.Entry, files []*dwarf.LineFile, lines *dwarf.LineReader) string {
	if i, ok := e.Val(dwarf.AttrDeclFile).(int64); ok && i >= 0 && int(i) < len(files) && files[i] != nil {
		return files[i].Name
	}
	lowpc, ok := e.Val(dwarf.AttrLowpc).(uint64)
	if !ok || lines == nil {
		return ""
	}
	var entry dwarf.LineEntry
	if err := lines.SeekPC(lowpc, &entry); err != nil || entry.File == nil {
		return ""
	}
	return entry.File.Name
}

// funcSym is a linker symbol name split into its parts.
type funcSym struct {
	pkg  string
	recv string // receiver type without pointer or type arguments
	name string
}

// splitFuncSym splits linker names such as
//
//	example.com/api/model.NewWidget
//	example.com/api/model.(*Widget).Rename
//	example.com/api/model.Widget.Describe
//	example.com/list.(*List[...]).Push
//
// It rejects closures, go/defer wrappers, method values and package
// initialisers, which never correspond to a declared member.
func splitFuncSym(name string) (funcSym, bool) {
	if name == "" || strings.HasSuffix(name, "-fm") {
		return funcSym{}, false
	}
	head := name
	if i := strings.IndexByte(head, '['); i >= 0 {
		head = head[:i]
	}
	slash := strings.LastIndexByte(head, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return funcSym{}, false
	}
	dot += slash + 1
	pkg := strings.ReplaceAll(name[:dot], "%2e", ".")
	rest := name[dot+1:]

	var sym funcSym
	sym.pkg = pkg
	if strings.HasPrefix(rest, "(") {
		end := closingParen(rest)
		if end < 0 || end+1 >= len(rest) || rest[end+1] != '.' {
			return funcSym{}, false
		}
		sym.recv = stripTypeArgs(strings.TrimPrefix(rest[1:end], "*"))
		rest = rest[end+2:]
		if strings.Contains(rest, ".") {
			return funcSym{}, false
		}
		sym.name = rest
	} else {
		parts := strings.Split(stripTypeArgs(rest), ".")
		switch len(parts) {
		case 1:
			sym.name = parts[0]
		case 2:
			sym.recv, sym.name = parts[0], parts[1]
		default:
			return funcSym{}, false
		}
		// Type arguments may sit on the receiver: "Pair[...].Swap".
		if len(parts) == 1 && strings.Contains(rest, "].") {
			recv, method, _ := strings.Cut(rest, "].")
			sym.recv, sym.name = stripTypeArgs(recv), method
		}
	}

	if sym.name == "" || strings.Contains(sym.name, ".") ||
		isGenerated(sym.name) || isGenerated(sym.recv) {
		return funcSym{}, false
	}
	if (sym.recv == "" && sym.name == "init") || sym.recv == "init" {
		return funcSym{}, false
	}
	return sym, true
}

// closingParen returns the index of the parenthesis closing s[0].
func closingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripTypeArgs(s string) string {
	if i := strings.IndexByte(s, '['); i >= 0 {
		return s[:i]
	}
	return s
}

// isGenerated reports whether a name segment is a compiler-generated
// function: funcN closures, gowrapN and deferwrapN wrappers, or an empty
// segment such as the one in "glob..func1".
func isGenerated(seg string) bool {
	for _, prefix := range []string{"func", "gowrap", "deferwrap"} {
		if rest, ok := strings.CutPrefix(seg, prefix); ok && rest != "" && isDigits(rest) {
			return true
		}
	}
	return seg == "glob"
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// symbolPackage returns the package prefix the linker uses for pkg.
func symbolPackage(pkg *types.Package) string {
	if pkg.Name() == "main" {
		return "main"
	}
	return pkg.Path()
}

func typeSymbol(tn *types.TypeName) string {
	if tn.Pkg() == nil {
		return tn.Name()
	}
	return symbolPackage(tn.Pkg()) + "." + tn.Name()
}

// funcSymbol returns the linker name of a declared function or method with
// type arguments and receiver pointers removed.
func funcSymbol(fn *types.Func) string {
	if fn.Pkg() == nil {
		return fn.Name()
	}
	prefix := symbolPackage(fn.Pkg())
	sig, _ := fn.Type().(*types.Signature)
	if sig == nil || sig.Recv() == nil {
		return prefix + "." + fn.Name()
	}
	recv := types.Unalias(sig.Recv().Type())
	if ptr, ok := recv.(*types.Pointer); ok {
		recv = types.Unalias(ptr.Elem())
	}
	named, ok := recv.(*types.Named)
	if !ok || types.IsInterface(named) {
		// Interface methods have no code.
		return ""
	}
	return prefix + "." + named.Obj().Name() + "." + fn.Name()
}
