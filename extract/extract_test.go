package extract

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func defaultOptions() Options {
	return Options{
		Functions: []string{
			"trans", "trans_choice", "Lang::get", "Lang::choice",
			"@lang", "@choice", "__", "$t", "T", "i18n.T",
		},
		FlatFunctions: []string{"__", "@lang", "$t", "T"},
		Extensions:    []string{".php", ".js", ".vue", ".go"},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestIsGroupKey(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{in: "messages.welcome", want: true},
		{in: "pkg::auth.failed", want: true},
		{in: "validation.custom.email.required", want: true},
		{in: "Hello World", want: false},
		{in: "Done.", want: false},
		{in: "Welcome back. Again", want: false},
		{in: "pkg::auth", want: false},
		{in: "", want: false},
	}

	for _, tc := range cases {
		if got := IsGroupKey(tc.in); got != tc.want {
			t.Fatalf("IsGroupKey(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestScanScenario(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "resources/views/home.blade.php", `
<h1>{{ __('messages.welcome') }}</h1>
<p>{{ trans('pkg::auth.failed', ['user' => $name]) }}</p>
<span>{{ __("Hello World") }}</span>
`)

	s := NewScanner(defaultOptions())
	s.AddPath(dir)
	res, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if want := []string{"messages.welcome", "pkg::auth.failed"}; !reflect.DeepEqual(res.Grouped, want) {
		t.Fatalf("Grouped = %v, want %v", res.Grouped, want)
	}
	if want := []string{"Hello World"}; !reflect.DeepEqual(res.Flat, want) {
		t.Fatalf("Flat = %v, want %v", res.Flat, want)
	}
	if res.Files != 1 {
		t.Fatalf("Files = %d, want 1", res.Files)
	}
}

func TestExtractCalls(t *testing.T) {
	tests := []struct {
		name        string
		src         string
		wantGrouped []string
		wantFlat    []string
	}{
		{
			name:        "escaped quote",
			src:         `echo __('It\'s here');`,
			wantGrouped: []string{},
			wantFlat:    []string{"It's here"},
		},
		{
			name:        "trans_choice preferred over trans",
			src:         `trans_choice('apples.count', 3)`,
			wantGrouped: []string{"apples.count"},
			wantFlat:    []string{},
		},
		{
			name:        "non-flat function drops plain literal",
			src:         `trans('Plain text')`,
			wantGrouped: []string{},
			wantFlat:    []string{},
		},
		{
			name:        "method call ignored",
			src:         `$this->trans('messages.hidden')`,
			wantGrouped: []string{},
			wantFlat:    []string{},
		},
		{
			name:        "dynamic key ignored",
			src:         `__('messages.' . $key)`,
			wantGrouped: []string{},
			wantFlat:    []string{},
		},
		{
			name:        "vue $t and blade directive",
			src:         "<b>{{ $t('nav.home') }}</b> @lang('Sign in')",
			wantGrouped: []string{"nav.home"},
			wantFlat:    []string{"Sign in"},
		},
		{
			name:        "malformed namespace skipped",
			src:         `__('pkg:: broken.key')`,
			wantGrouped: []string{},
			wantFlat:    []string{},
		},
	}

	s := NewScanner(defaultOptions())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newCollector(s.flat)
			extractCalls(s.call, tc.src, c)
			res := c.result()
			if !reflect.DeepEqual(res.Grouped, tc.wantGrouped) {
				t.Fatalf("Grouped = %v, want %v", res.Grouped, tc.wantGrouped)
			}
			if !reflect.DeepEqual(res.Flat, tc.wantFlat) {
				t.Fatalf("Flat = %v, want %v", res.Flat, tc.wantFlat)
			}
		})
	}
}

func TestScanGoFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "app/handler.go", `package app

import "example.com/i18n"

func greet(name string) string {
	_ = i18n.T("messages.greeting")
	_ = T("Save " + "changes")
	_ = T(name)
	return T("errors.not_found")
}
`)
	writeFile(t, dir, "app/handler_broken.go", "package app\nfunc {")

	s := NewScanner(defaultOptions())
	s.AddPath(dir)
	res, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if want := []string{"errors.not_found", "messages.greeting"}; !reflect.DeepEqual(res.Grouped, want) {
		t.Fatalf("Grouped = %v, want %v", res.Grouped, want)
	}
	if want := []string{"Save changes"}; !reflect.DeepEqual(res.Flat, want) {
		t.Fatalf("Flat = %v, want %v", res.Flat, want)
	}
	if len(res.Skipped) != 1 || !strings.Contains(res.Skipped[0], "handler_broken.go") {
		t.Fatalf("Skipped = %v, want the broken file", res.Skipped)
	}
}

func TestFindSourcesSkipsAndExcludes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	keep := writeFile(t, dir, "app/a.php", "")
	writeFile(t, dir, "app/readme.md", "")
	writeFile(t, dir, "node_modules/lib/b.js", "")
	writeFile(t, dir, "app/Legacy/c.php", "")
	vue := writeFile(t, dir, "resources/js/App.VUE", "")

	files, err := FindSources(
		[]string{dir},
		[]string{".php", ".vue"},
		[]string{filepath.Join(dir, "app", "Legacy")},
	)
	if err != nil {
		t.Fatalf("FindSources: %v", err)
	}

	want := []string{keep, vue}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("FindSources() = %v, want %v", files, want)
	}
}

func TestFindSourcesDeduplicatesOverlappingPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := writeFile(t, dir, "views/x.php", "")

	files, err := FindSources([]string{dir, filepath.Join(dir, "views")}, []string{".php"}, nil)
	if err != nil {
		t.Fatalf("FindSources: %v", err)
	}
	if !reflect.DeepEqual(files, []string{f}) {
		t.Fatalf("FindSources() = %v, want [%s]", files, f)
	}
}
