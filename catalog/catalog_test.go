package catalog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestFallback(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"welcome", "Welcome"},
		{"new_user", "New User"},
		{"auth.failed_login", "Auth Failed Login"},
		{"Hello World", "Hello World"},
	}
	for _, tc := range tests {
		if got := Fallback(tc.in); got != tc.want {
			t.Fatalf("Fallback(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFallbackConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := Fallback("auth.failed_login"); got != "Auth Failed Login" {
					t.Errorf("Fallback() = %q, want %q", got, "Auth Failed Login")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestLoadMissingRoot(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v := c.Lookup("en", "*", "messages", "welcome"); v.Kind != Missing {
		t.Fatalf("Lookup kind = %v, want Missing", v.Kind)
	}
}

func TestLoadLayouts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "en/messages.json", `{
  "welcome": "Welcome",
  "nested": {"deep": {"title": "Deep title"}},
  "plural": ["one", "many"],
  "dotted.literal": "Literal"
}`)
	writeFile(t, dir, "fr/messages.yaml", "welcome: Bienvenue\nnested:\n  deep:\n    title: Titre\n")
	writeFile(t, dir, "en/admin/users.yml", "title: Users\n")
	writeFile(t, dir, "vendor/pkg/en/auth.json", `{"failed": "Login failed"}`)
	writeFile(t, dir, "fr.json", `{"Hello World": "Bonjour le monde", "count": 3}`)
	writeFile(t, dir, "ar.po", `msgid ""
msgstr ""
"Content-Type: text/plain; charset=UTF-8\n"

msgid "Hello World"
msgstr "مرحبا بالعالم"

msgid "OK"
msgstr "OK"

msgid "100% done"
msgstr "اكتمل 100%"

msgid "Pending"
msgstr ""
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name                          string
		locale, namespace, group, key string
		want                          Value
	}{
		{"group string", "en", "*", "messages", "welcome", Value{Kind: String, Text: "Welcome"}},
		{"nested path", "en", "*", "messages", "nested.deep.title", Value{Kind: String, Text: "Deep title"}},
		{"yaml nested", "fr", "*", "messages", "nested.deep.title", Value{Kind: String, Text: "Titre"}},
		{"array leaf", "en", "*", "messages", "plural", Value{Kind: Array}},
		{"map leaf", "en", "*", "messages", "nested", Value{Kind: Array}},
		{"literal dotted key", "en", "*", "messages", "dotted.literal", Value{Kind: String, Text: "Literal"}},
		{"sub-directory group", "en", "*", "admin/users", "title", Value{Kind: String, Text: "Users"}},
		{"vendor namespace", "en", "pkg", "auth", "failed", Value{Kind: String, Text: "Login failed"}},
		{"namespace mismatch", "en", "*", "auth", "failed", Value{}},
		{"flat json", "fr", "*", "*", "Hello World", Value{Kind: String, Text: "Bonjour le monde"}},
		{"flat json non-string ignored", "fr", "*", "*", "count", Value{}},
		{"flat po", "ar", "*", "*", "Hello World", Value{Kind: String, Text: "مرحبا بالعالم"}},
		{"flat po missing", "ar", "*", "*", "Goodbye", Value{}},
		{"flat po same as msgid", "ar", "*", "*", "OK", Value{Kind: String, Text: "OK"}},
		{"flat po percent sign kept", "ar", "*", "*", "100% done", Value{Kind: String, Text: "اكتمل 100%"}},
		{"flat po empty msgstr", "ar", "*", "*", "Pending", Value{}},
		{"unknown locale", "de", "*", "messages", "welcome", Value{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Lookup(tc.locale, tc.namespace, tc.group, tc.key)
			if got != tc.want {
				t.Fatalf("Lookup(%q, %q, %q, %q) = %+v, want %+v",
					tc.locale, tc.namespace, tc.group, tc.key, got, tc.want)
			}
		})
	}
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "en/messages.json", `{not json`)
	if _, err := Load(dir); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestResolve(t *testing.T) {
	c := New()
	c.SetGroup("*", "en", "messages", map[string]any{
		"welcome": "Welcome",
		"items":   []any{"a", "b"},
	})

	if got := c.Resolve("en", "*", "messages", "welcome"); got != "Welcome" {
		t.Fatalf("Resolve(welcome) = %q, want %q", got, "Welcome")
	}
	if got := c.Resolve("en", "*", "messages", "items"); got != "" {
		t.Fatalf("Resolve(items) = %q, want empty", got)
	}
	if got := c.Resolve("fr", "*", "messages", "new_user"); got != "New User" {
		t.Fatalf("Resolve(new_user) = %q, want %q", got, "New User")
	}
}
