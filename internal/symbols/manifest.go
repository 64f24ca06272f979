package symbols

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abramin/sharelens/internal/fileid"
	"github.com/abramin/sharelens/internal/image"
	"github.com/abramin/sharelens/internal/memberkey"
	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk form read by ManifestProvider: canonical key
// strings mapped to the files declaring them. Relative file names are taken
// relative to the manifest's directory.
//
//	files:
//	  "T:example.com/api/model.Widget": [model/widget.go, model/widget_ops.go]
//	  "M:example.com/api/model.Widget.Rename(string)": [model/widget_ops.go]
type Manifest struct {
	Files map[string][]string `yaml:"files"`
}

// ManifestProvider answers from a manifest written by a build step that
// knows where declarations come from, e.g. a generator of generated code.
type ManifestProvider struct {
	reg     *fileid.Registry
	members map[memberkey.Key][]string
	types   map[string][]string // member files grouped by type
}

// LoadManifest reads a manifest file. Malformed yaml or keys are errors.
func LoadManifest(reg *fileid.Registry, path string) (*ManifestProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return NewManifestProvider(reg, filepath.Dir(path), m)
}

// NewManifestProvider builds a provider from an in-memory manifest.
func NewManifestProvider(reg *fileid.Registry, baseDir string, m Manifest) (*ManifestProvider, error) {
	p := &ManifestProvider{
		reg:     reg,
		members: make(map[memberkey.Key][]string, len(m.Files)),
		types:   make(map[string][]string),
	}
	for text, files := range m.Files {
		k, err := memberkey.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("manifest key %q: %w", text, err)
		}
		abs := make([]string, 0, len(files))
		for _, f := range files {
			if !filepath.IsAbs(f) && baseDir != "" {
				f = filepath.Join(baseDir, f)
			}
			abs = append(abs, f)
		}
		p.members[k] = append(p.members[k], abs...)
		p.types[k.TypeName()] = append(p.types[k.TypeName()], abs...)
	}
	return p, nil
}

// LocateMember returns the files listed for the entity's key.
func (p *ManifestProvider) LocateMember(e *image.Entity) fileid.Set {
	return internPaths(p.reg, p.members[e.Key])
}

// LocateTypeFiles returns the files listed for the type itself, or else the
// files listed for any of its members.
func (p *ManifestProvider) LocateTypeFiles(e *image.Entity) fileid.Set {
	if files, ok := p.members[e.Key.TypeKey()]; ok {
		return internPaths(p.reg, files)
	}
	return internPaths(p.reg, p.types[e.Key.TypeName()])
}

// Close is a no-op.
func (p *ManifestProvider) Close() error { return nil }
