// Package langmeta provides English display names and flag regions for
// locale codes. It fills in labels and flags missing from the configured
// locale list and names target languages in translation prompts.
package langmeta

import "strings"

// Meta describes language display metadata.
type Meta struct {
	// Name is the English language name.
	Name string
	// Region is the ISO 3166 alpha-2 region used for the flag.
	Region string
}

// Flag returns the emoji flag for the language's region.
func (m Meta) Flag() string {
	return FlagEmoji(m.Region)
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"ar":    {Name: "Arabic", Region: "sa"},
	"ar-EG": {Name: "Arabic (Egypt)", Region: "eg"},
	"bg":    {Name: "Bulgarian", Region: "bg"},
	"bn":    {Name: "Bengali", Region: "bd"},
	"ca":    {Name: "Catalan", Region: "es"},
	"cs":    {Name: "Czech", Region: "cz"},
	"da":    {Name: "Danish", Region: "dk"},
	"de":    {Name: "German", Region: "de"},
	"el":    {Name: "Greek", Region: "gr"},
	"en":    {Name: "English", Region: "us"},
	"en-GB": {Name: "English (UK)", Region: "gb"},
	"es":    {Name: "Spanish", Region: "es"},
	"es-MX": {Name: "Spanish (Mexico)", Region: "mx"},
	"fa":    {Name: "Persian", Region: "ir"},
	"fi":    {Name: "Finnish", Region: "fi"},
	"fr":    {Name: "French", Region: "fr"},
	"fr-CA": {Name: "French (Canada)", Region: "ca"},
	"he":    {Name: "Hebrew", Region: "il"},
	"hi":    {Name: "Hindi", Region: "in"},
	"hu":    {Name: "Hungarian", Region: "hu"},
	"id":    {Name: "Indonesian", Region: "id"},
	"it":    {Name: "Italian", Region: "it"},
	"ja":    {Name: "Japanese", Region: "jp"},
	"ko":    {Name: "Korean", Region: "kr"},
	"ms":    {Name: "Malay", Region: "my"},
	"my":    {Name: "Burmese", Region: "mm"},
	"nl":    {Name: "Dutch", Region: "nl"},
	"nb":    {Name: "Norwegian Bokmål", Region: "no"},
	"pl":    {Name: "Polish", Region: "pl"},
	"pt":    {Name: "Portuguese", Region: "pt"},
	"pt-BR": {Name: "Portuguese (Brazil)", Region: "br"},
	"ro":    {Name: "Romanian", Region: "ro"},
	"ru":    {Name: "Russian", Region: "ru"},
	"sk":    {Name: "Slovak", Region: "sk"},
	"sr":    {Name: "Serbian", Region: "rs"},
	"sv":    {Name: "Swedish", Region: "se"},
	"sw":    {Name: "Swahili", Region: "tz"},
	"th":    {Name: "Thai", Region: "th"},
	"tr":    {Name: "Turkish", Region: "tr"},
	"uk":    {Name: "Ukrainian", Region: "ua"},
	"ur":    {Name: "Urdu", Region: "pk"},
	"vi":    {Name: "Vietnamese", Region: "vn"},
	"zh":    {Name: "Chinese", Region: "cn"},
	"zh-CN": {Name: "Chinese (Simplified)", Region: "cn"},
	"zh-TW": {Name: "Chinese (Traditional)", Region: "tw"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort metadata for a locale code, accepting
// variants like pt_BR and pt-br and falling back to the base language.
// Unknown codes resolve to their own code with no region.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if base, region, ok := strings.Cut(normalized, "-"); ok {
		if m, ok := Registry[base]; ok {
			if len(region) == 2 {
				m.Region = strings.ToLower(region)
			}
			return m
		}
	}
	return Meta{Name: lang}
}

// FlagEmoji converts a two-letter region code into its regional-indicator
// emoji pair. Anything else yields "".
func FlagEmoji(region string) string {
	if len(region) != 2 {
		return ""
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(region) {
		if r < 'A' || r > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (r - 'A'))
	}
	return b.String()
}

// Label returns label when non-empty, otherwise the registry name for code.
func Label(code, label string) string {
	if strings.TrimSpace(label) != "" {
		return label
	}
	return Resolve(code).Name
}
