// Package extract finds translation keys referenced in application source
// and template files.
//
// A Scanner walks its registered paths, looks for calls to translation
// helpers (trans, __, @lang, $t, ...) whose first argument is a string
// literal, and splits what it finds into two sets:
//
//   - grouped keys of the form [namespace::]group.key
//   - flat literals (default strings passed to __ and friends)
//
// Go files are parsed with go/parser; everything else is matched textually.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// skipDirs contains directory names to skip during source file scanning.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".idea":        true,
	".vscode":      true,
	"storage":      true,
	"dist":         true,
	"build":        true,
}

// SkipDir reports whether a directory with this name is never scanned.
func SkipDir(name string) bool {
	return skipDirs[name]
}

// groupKeyPattern matches [namespace::]group.key with no whitespace.
var groupKeyPattern = regexp.MustCompile(`^(?:[/A-Za-z0-9_-]+::)?[A-Za-z0-9_-]+(?:\.[^\s.][^\s]*)+$`)

// Options configures a Scanner.
type Options struct {
	// Functions are the call names to look for (e.g. "trans", "Lang::get", "__").
	Functions []string
	// FlatFunctions are the subset whose non-grouped literals count as flat keys.
	FlatFunctions []string
	// Extensions limits scanning to these file extensions (with leading dot).
	Extensions []string
	// ExcludedPaths are directories skipped even when inside a scanned path.
	ExcludedPaths []string
}

// Result holds the outcome of a scan.
type Result struct {
	// Grouped are dotted keys, optionally namespace-qualified.
	Grouped []string
	// Flat are literal default strings.
	Flat []string
	// Files is the number of files inspected.
	Files int
	// Skipped lists files that could not be read or parsed, as "path: reason".
	Skipped []string
}

// Scanner extracts translation keys from a set of paths.
type Scanner struct {
	opts  Options
	paths []string
	funcs map[string]bool
	flat  map[string]bool
	call  *regexp.Regexp
}

// NewScanner returns a Scanner for the given options.
func NewScanner(opts Options) *Scanner {
	s := &Scanner{
		opts:  opts,
		funcs: make(map[string]bool, len(opts.Functions)),
		flat:  make(map[string]bool, len(opts.FlatFunctions)),
	}
	for _, f := range opts.Functions {
		s.funcs[f] = true
	}
	for _, f := range opts.FlatFunctions {
		s.flat[f] = true
	}
	s.call = callPattern(opts.Functions)
	return s
}

// AddPath registers a directory (or single file) to scan.
func (s *Scanner) AddPath(path string) {
	s.paths = append(s.paths, path)
}

// Paths returns the registered paths.
func (s *Scanner) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Scan walks all registered paths and returns the keys found.
func (s *Scanner) Scan() (Result, error) {
	files, err := FindSources(s.paths, s.opts.Extensions, s.opts.ExcludedPaths)
	if err != nil {
		return Result{}, err
	}

	c := newCollector(s.flat)
	var skipped []string
	for _, path := range files {
		var ferr error
		if filepath.Ext(path) == ".go" {
			ferr = s.scanGoFile(path, c)
		} else {
			ferr = s.scanTextFile(path, c)
		}
		if ferr != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", path, ferr))
		}
	}

	res := c.result()
	res.Files = len(files)
	res.Skipped = skipped
	return res, nil
}

// FindSources recursively finds files with one of exts under dirs.
// Common non-source directories and anything under excluded are skipped.
// An empty exts list accepts every file.
func FindSources(dirs, exts, excluded []string) ([]string, error) {
	extSet := make(map[string]bool, len(exts))
	for _, e := range exts {
		extSet[strings.ToLower(e)] = true
	}

	excludedAbs := make([]string, 0, len(excluded))
	for _, e := range excluded {
		if abs, err := filepath.Abs(e); err == nil {
			excludedAbs = append(excludedAbs, abs)
		}
	}

	var files []string
	seen := make(map[string]bool)

	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if isExcluded(path, excludedAbs) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.IsDir() {
				if path != dir && skipDirs[info.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if len(extSet) > 0 && !extSet[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func isExcluded(path string, excludedAbs []string) bool {
	if len(excludedAbs) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, e := range excludedAbs {
		if abs == e || strings.HasPrefix(abs, e+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// IsGroupKey reports whether s has the [namespace::]group.key shape.
func IsGroupKey(s string) bool {
	return groupKeyPattern.MatchString(s)
}

// collector deduplicates keys across files.
type collector struct {
	flatFuncs map[string]bool
	grouped   map[string]bool
	flat      map[string]bool
}

func newCollector(flatFuncs map[string]bool) *collector {
	return &collector{
		flatFuncs: flatFuncs,
		grouped:   make(map[string]bool),
		flat:      make(map[string]bool),
	}
}

// add classifies a literal found as the first argument of fn.
func (c *collector) add(fn, literal string) {
	if strings.TrimSpace(literal) == "" {
		return
	}
	if IsGroupKey(literal) {
		c.grouped[literal] = true
		return
	}
	if !c.flatFuncs[fn] {
		return
	}
	// Namespaced keys that failed the group shape are malformed, not defaults.
	if strings.Contains(literal, "::") && strings.Contains(literal, ".") {
		return
	}
	c.flat[literal] = true
}

func (c *collector) result() Result {
	return Result{
		Grouped: sortedKeys(c.grouped),
		Flat:    sortedKeys(c.flat),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
