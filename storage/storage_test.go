package storage

import "testing"

func TestSplitKey(t *testing.T) {
	tests := []struct {
		in   string
		want Identity
	}{
		{"messages.welcome", Identity{"*", "messages", "welcome"}},
		{"pkg::auth.failed", Identity{"pkg", "auth", "failed"}},
		{"validation.custom.email.required", Identity{"*", "validation", "custom.email.required"}},
		{"vendor/pkg::admin.title", Identity{"vendor/pkg", "admin", "title"}},
		{"Hello World", Identity{"*", "*", "Hello World"}},
	}
	for _, tc := range tests {
		if got := SplitKey(tc.in); got != tc.want {
			t.Fatalf("SplitKey(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestIdentityStringRoundTrip(t *testing.T) {
	for _, key := range []string{"messages.welcome", "pkg::auth.failed", "a.b.c"} {
		if got := SplitKey(key).String(); got != key {
			t.Fatalf("SplitKey(%q).String() = %q", key, got)
		}
	}
	if got := FlatKey("Hello World").String(); got != "Hello World" {
		t.Fatalf("FlatKey().String() = %q, want %q", got, "Hello World")
	}
}

func TestParseTrashed(t *testing.T) {
	tests := []struct {
		in      string
		want    Trashed
		wantErr bool
	}{
		{"", TrashedExclude, false},
		{"include", TrashedInclude, false},
		{"only", TrashedOnly, false},
		{"all", "", true},
	}
	for _, tc := range tests {
		got, err := ParseTrashed(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseTrashed(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseTrashed(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRecordTranslation(t *testing.T) {
	r := &Record{Key: "welcome"}
	r.SetTranslation(TextAttribute, "fr", "Bienvenue")
	r.SetTranslation("slug", "fr", "ignored")

	if got := r.Translation(TextAttribute, "fr"); got != "Bienvenue" {
		t.Fatalf("Translation(text, fr) = %q, want %q", got, "Bienvenue")
	}
	if got := r.Translation("slug", "fr"); got != "" {
		t.Fatalf("Translation(slug, fr) = %q, want empty", got)
	}
	if len(r.Text) != 1 {
		t.Fatalf("Text = %v, want a single entry", r.Text)
	}
}
