package translate

import (
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/minios-linux/langsync/langmeta"
)

// ResolveTargets returns the locales to translate into: every configured
// locale except source when all is set, otherwise just target.
func ResolveTargets(locales []string, source, target string, all bool) []string {
	if !all {
		if target == "" {
			return nil
		}
		return []string{target}
	}
	out := make([]string, 0, len(locales))
	for _, l := range locales {
		if l != source {
			out = append(out, l)
		}
	}
	return out
}

func localeField(locale, what string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Description: fmt.Sprintf("%s in %s (%s)", what, langmeta.Resolve(locale).Name, locale),
	}
}

// BuildRecordSchema describes the answer for n records: an object keyed by
// record index, each holding one string per target locale.
func BuildRecordSchema(n int, targets []string) *jsonschema.Schema {
	root := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, n),
	}
	for i := 0; i < n; i++ {
		idx := strconv.Itoa(i)
		rec := &jsonschema.Schema{
			Type:        "object",
			Description: "Translations of record " + idx,
			Properties:  make(map[string]*jsonschema.Schema, len(targets)),
			Required:    append([]string(nil), targets...),
		}
		for _, t := range targets {
			rec.Properties[t] = localeField(t, "Translation of record "+idx)
		}
		root.Properties[idx] = rec
		root.Required = append(root.Required, idx)
	}
	return root
}

// BuildAttributeSchema describes the answer for a single item: an object
// keyed by target locale, each holding one string per attribute.
func BuildAttributeSchema(targets, attrs []string) *jsonschema.Schema {
	root := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(targets)),
		Required:   append([]string(nil), targets...),
	}
	for _, t := range targets {
		loc := &jsonschema.Schema{
			Type:       "object",
			Properties: make(map[string]*jsonschema.Schema, len(attrs)),
			Required:   append([]string(nil), attrs...),
		}
		for _, a := range attrs {
			loc.Properties[a] = localeField(t, "Translated "+a)
		}
		root.Properties[t] = loc
	}
	return root
}
