package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minios-linux/langsync/storage"
)

type exportFile struct {
	namespace, locale, group string
}

func (f exportFile) path(dir string) string {
	if f.group == storage.Wildcard {
		return filepath.Join(dir, f.locale+".json")
	}
	base := dir
	if f.namespace != storage.Wildcard {
		base = filepath.Join(dir, "vendor", f.namespace)
	}
	return filepath.Join(base, f.locale, filepath.FromSlash(f.group)+".json")
}

// setNested stores value under a dotted key. When a segment already holds
// a string the remaining key is stored literally at that level.
func setNested(tree map[string]any, key, value string) {
	segs := strings.Split(key, ".")
	cur := tree
	for i, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg]
		if !ok {
			m := make(map[string]any)
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			cur[strings.Join(segs[i:], ".")] = value
			return
		}
		cur = m
	}
	last := segs[len(segs)-1]
	if _, isMap := cur[last].(map[string]any); isMap {
		return
	}
	cur[last] = value
}

// buildExport groups non-empty record texts into translation file trees.
// Flat files map keys to strings; group files are nested.
func buildExport(records []*storage.Record, locales []string) map[exportFile]map[string]any {
	files := make(map[exportFile]map[string]any)
	for _, r := range records {
		for _, loc := range locales {
			text := r.Text[loc]
			if text == "" {
				continue
			}
			f := exportFile{namespace: r.Namespace, locale: loc, group: r.Group}
			if f.group == storage.Wildcard {
				f.namespace = storage.Wildcard
			}
			tree := files[f]
			if tree == nil {
				tree = make(map[string]any)
				files[f] = tree
			}
			if f.group == storage.Wildcard {
				tree[r.Key] = text
			} else {
				setNested(tree, r.Key, text)
			}
		}
	}
	return files
}

// exportRecords writes the trees from buildExport under dir and returns
// the written paths in sorted order.
func exportRecords(records []*storage.Record, locales []string, dir string) ([]string, error) {
	files := buildExport(records, locales)
	paths := make([]string, 0, len(files))
	for f, tree := range files {
		p := f.path(dir)
		if err := writeJSON(p, tree); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
