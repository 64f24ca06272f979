package sharedset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// Expand resolves patterns against baseDir. Plain paths are kept even when
// the file does not exist yet; patterns containing glob metacharacters are
// expanded with doublestar and must match at least one file.
func Expand(baseDir string, patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !filepath.IsAbs(pattern) && baseDir != "" {
			pattern = filepath.Join(baseDir, pattern)
		}
		if !strings.ContainsAny(pattern, "*?[{") {
			add(filepath.Clean(pattern))
			continue
		}
		matches, err := doublestar.Glob(filepath.ToSlash(pattern))
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("expanding %q: no files match", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				continue
			}
			add(filepath.Clean(m))
		}
	}
	return out, nil
}

// DiscoverLinks walks dirs for symlinked .go files. Each link is returned
// together with the file it points to, so declarations compiled from either
// spelling are recognised as shared. Hidden directories and directories
// named in skipDirs are not entered. Links that do not resolve and
// directories that cannot be walked are skipped; the links found elsewhere
// are returned along with the joined errors.
func DiscoverLinks(dirs []string, skipDirs ...string) ([]string, error) {
	var (
		out  []string
		errs []error
	)
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != dir && (strings.HasPrefix(name, ".") || slices.Contains(skipDirs, name)) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink == 0 || !strings.HasSuffix(path, ".go") {
				return nil
			}
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("resolving link %s: %w", path, err))
				return nil
			}
			out = append(out, path, target)
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("discovering links in %s: %w", dir, err))
		}
	}
	return out, errors.Join(errs...)
}
