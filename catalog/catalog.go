// Package catalog reads an application's translation files and answers
// "what is the text for this key in this locale" the way the host framework
// would at runtime.
//
// Supported layout under the catalog root (typically lang/):
//
//	{locale}.json                              flat keys
//	{locale}.po, {locale}/LC_MESSAGES/*.po     flat keys (gettext)
//	{locale}/{group}.json|yaml|yml             grouped keys, nested maps
//	vendor/{namespace}/{locale}/{group}.ext    namespaced groups
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Kind classifies a lookup result.
type Kind int

const (
	// Missing means no translation exists for the key.
	Missing Kind = iota
	// String is a plain translated line.
	String
	// Array is a nested group or list (e.g. pluralisation sets).
	Array
)

// Value is the result of a Lookup.
type Value struct {
	Kind Kind
	Text string
}

type groupRef struct {
	namespace string
	locale    string
	group     string
}

// Catalog holds every translation file found under a root directory.
type Catalog struct {
	root   string
	flat   map[string]map[string]string
	po     map[string]map[string]string
	groups map[groupRef]map[string]any
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		flat:   make(map[string]map[string]string),
		po:     make(map[string]map[string]string),
		groups: make(map[groupRef]map[string]any),
	}
}

// Load reads all translation files below root. A missing root yields an
// empty catalog.
func Load(root string) (*Catalog, error) {
	c := New()
	c.root = root

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(root, name)

		switch {
		case entry.IsDir() && name == "vendor":
			if err := c.loadVendor(path); err != nil {
				return nil, err
			}
		case entry.IsDir():
			if err := c.loadLocaleDir("*", name, path); err != nil {
				return nil, err
			}
		case strings.HasSuffix(name, ".json"):
			if err := c.loadFlatJSON(strings.TrimSuffix(name, ".json"), path); err != nil {
				return nil, err
			}
		case strings.HasSuffix(name, ".po"):
			if err := c.loadPO(strings.TrimSuffix(name, ".po"), path); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

// Root returns the directory the catalog was loaded from.
func (c *Catalog) Root() string {
	return c.root
}

func (c *Catalog) loadVendor(dir string) error {
	namespaces, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, ns := range namespaces {
		if !ns.IsDir() {
			continue
		}
		nsDir := filepath.Join(dir, ns.Name())
		locales, err := os.ReadDir(nsDir)
		if err != nil {
			return fmt.Errorf("reading %s: %w", nsDir, err)
		}
		for _, loc := range locales {
			if loc.IsDir() {
				if err := c.loadLocaleDir(ns.Name(), loc.Name(), filepath.Join(nsDir, loc.Name())); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// loadLocaleDir reads group files for one locale. Sub-directories become
// slash-separated group names; LC_MESSAGES holds gettext catalogs.
func (c *Catalog) loadLocaleDir(namespace, locale, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if strings.HasPrefix(rel, "LC_MESSAGES/") {
			if namespace == "*" && strings.HasSuffix(rel, ".po") {
				return c.loadPO(locale, path)
			}
			return nil
		}

		ext := filepath.Ext(rel)
		switch ext {
		case ".json", ".yaml", ".yml":
		default:
			return nil
		}
		tree, err := decodeTree(path, ext)
		if err != nil {
			return err
		}
		c.SetGroup(namespace, locale, strings.TrimSuffix(rel, ext), tree)
		return nil
	})
}

func decodeTree(path, ext string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	tree := make(map[string]any)
	if ext == ".json" {
		err = json.Unmarshal(data, &tree)
	} else {
		err = yaml.Unmarshal(data, &tree)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return tree, nil
}

func (c *Catalog) loadFlatJSON(locale, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			c.SetFlat(locale, k, s)
		}
	}
	return nil
}

func (c *Catalog) loadPO(locale, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	po := gotext.NewPo()
	po.Parse(data)
	if c.po[locale] == nil {
		c.po[locale] = make(map[string]string)
	}
	// Only entries with a msgstr count; untranslated ids stay missing.
	for id, tr := range po.GetDomain().GetTranslations() {
		if id != "" && tr.IsTranslated() {
			c.po[locale][id] = tr.Get()
		}
	}
	return nil
}

// SetFlat stores a flat translation line.
func (c *Catalog) SetFlat(locale, key, text string) {
	if c.flat[locale] == nil {
		c.flat[locale] = make(map[string]string)
	}
	c.flat[locale][key] = text
}

// SetGroup stores the decoded contents of a group file.
func (c *Catalog) SetGroup(namespace, locale, group string, tree map[string]any) {
	c.groups[groupRef{namespace: namespace, locale: locale, group: group}] = tree
}

// Lookup returns the translation for (namespace, group, key) in locale.
// Flat keys use group "*".
func (c *Catalog) Lookup(locale, namespace, group, key string) Value {
	if group == "*" {
		return c.lookupFlat(locale, key)
	}
	tree, ok := c.groups[groupRef{namespace: namespace, locale: locale, group: group}]
	if !ok {
		return Value{}
	}
	if v, ok := tree[key]; ok {
		return valueOf(v)
	}
	var cur any = tree
	for _, seg := range strings.Split(key, ".") {
		m, ok := asMap(cur)
		if !ok {
			return Value{}
		}
		if cur, ok = m[seg]; !ok {
			return Value{}
		}
	}
	return valueOf(cur)
}

func (c *Catalog) lookupFlat(locale, key string) Value {
	if s, ok := c.flat[locale][key]; ok {
		return Value{Kind: String, Text: s}
	}
	if s, ok := c.po[locale][key]; ok {
		return Value{Kind: String, Text: s}
	}
	return Value{}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func valueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case string:
		return Value{Kind: String, Text: t}
	case map[string]any, map[any]any, []any:
		return Value{Kind: Array}
	default:
		return Value{Kind: String, Text: fmt.Sprint(t)}
	}
}

// Fallback renders a key as display text when no translation exists:
// dots and underscores become spaces and every word is title-cased.
func Fallback(key string) string {
	s := strings.NewReplacer(".", " ", "_", " ").Replace(key)
	// A Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.Und).String(s)
}

// Resolve returns the display text for a key in locale: the translation
// when it is a string, Fallback(key) when missing, and "" for arrays.
func (c *Catalog) Resolve(locale, namespace, group, key string) string {
	v := c.Lookup(locale, namespace, group, key)
	switch v.Kind {
	case String:
		return v.Text
	case Array:
		return ""
	default:
		return Fallback(key)
	}
}
