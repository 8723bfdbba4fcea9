package reconcile

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/minios-linux/langsync/config"
	"github.com/minios-linux/langsync/storage"
	"github.com/minios-linux/langsync/storage/sqlite"
)

type fixture struct {
	dir   string
	cfg   *config.Config
	store *sqlite.Store
	svc   *Service
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths = []string{filepath.Join(dir, "resources", "views"), filepath.Join(dir, "missing")}
	cfg.LangPath = filepath.Join(dir, "lang")

	store, err := sqlite.Open(filepath.Join(dir, "langsync.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(&cfg, store, log.New(io.Discard), nil)
	clock := time.UnixMilli(1700000000000)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	writeFile(t, filepath.Join(cfg.LangPath, "en", "messages.json"), `{"welcome": "Welcome", "items": ["one", "many"]}`)
	writeFile(t, filepath.Join(cfg.LangPath, "fr", "messages.json"), `{"welcome": "Bienvenue"}`)
	writeFile(t, filepath.Join(cfg.LangPath, "vendor", "pkg", "en", "auth.json"), `{"failed": "Login failed"}`)

	return &fixture{dir: dir, cfg: &cfg, store: store, svc: svc}
}

func (f *fixture) view(t *testing.T, content string) {
	t.Helper()
	writeFile(t, filepath.Join(f.dir, "resources", "views", "home.blade.php"), content)
}

func (f *fixture) scan(t *testing.T) Report {
	t.Helper()
	rep, err := f.svc.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return rep
}

func (f *fixture) records(t *testing.T, trashed storage.Trashed) map[string]*storage.Record {
	t.Helper()
	recs, err := f.store.List(context.Background(), storage.Filter{Trashed: trashed})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	out := make(map[string]*storage.Record, len(recs))
	for _, r := range recs {
		out[r.Identity().String()] = r
	}
	return out
}

const homeView = `
<h1>{{ __('messages.welcome') }}</h1>
<p>{{ trans('pkg::auth.failed') }}</p>
<span>{{ __("Hello World") }}</span>
`

func TestScanCreatesRecords(t *testing.T) {
	f := newFixture(t)
	f.view(t, homeView)

	rep := f.scan(t)
	if rep.Found != 3 || rep.Created != 3 || rep.Restored != 0 || rep.Stale != 0 {
		t.Fatalf("Report = %+v, want 3 found and created", rep)
	}

	live := f.records(t, storage.TrashedExclude)
	want := map[string]storage.Identity{
		"messages.welcome": {Namespace: "*", Group: "messages", Key: "welcome"},
		"pkg::auth.failed": {Namespace: "pkg", Group: "auth", Key: "failed"},
		"Hello World":      {Namespace: "*", Group: "*", Key: "Hello World"},
	}
	if len(live) != len(want) {
		t.Fatalf("live records = %v, want %d", live, len(want))
	}
	for k, id := range want {
		r, ok := live[k]
		if !ok {
			t.Fatalf("record %q missing", k)
		}
		if r.Identity() != id {
			t.Fatalf("record %q identity = %+v, want %+v", k, r.Identity(), id)
		}
	}

	texts := map[string]map[string]string{
		"messages.welcome": {"en": "Welcome", "ar": "Welcome", "fr": "Bienvenue"},
		"pkg::auth.failed": {"en": "Login failed", "ar": "Failed", "fr": "Failed"},
		"Hello World":      {"en": "Hello World", "ar": "Hello World", "fr": "Hello World"},
	}
	for k, text := range texts {
		if got := live[k].Text; !reflect.DeepEqual(got, text) {
			t.Fatalf("record %q text = %v, want %v", k, got, text)
		}
	}
}

func TestScanIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.view(t, homeView)
	f.scan(t)
	before := f.records(t, storage.TrashedInclude)

	rep := f.scan(t)
	if rep.Created != 0 || rep.Restored != 3 || rep.Revived != 0 || rep.Stale != 0 {
		t.Fatalf("Report = %+v, want 3 restored and nothing else", rep)
	}

	after := f.records(t, storage.TrashedInclude)
	if len(after) != len(before) {
		t.Fatalf("records = %d, want %d", len(after), len(before))
	}
	for k, b := range before {
		a := after[k]
		if a == nil || a.ID != b.ID || a.Trashed() || !reflect.DeepEqual(a.Text, b.Text) {
			t.Fatalf("record %q changed: before %+v, after %+v", k, b, a)
		}
	}
}

func TestScanSoftDeletesAndRevives(t *testing.T) {
	f := newFixture(t)
	f.view(t, homeView)
	f.scan(t)

	f.view(t, `{{ __('messages.welcome') }} {{ trans('pkg::auth.failed') }}`)
	rep := f.scan(t)
	if rep.Stale != 1 || rep.Restored != 2 {
		t.Fatalf("Report = %+v, want 1 stale and 2 restored", rep)
	}
	if _, ok := f.records(t, storage.TrashedExclude)["Hello World"]; ok {
		t.Fatal("removed key is still live")
	}
	trashed := f.records(t, storage.TrashedOnly)
	if _, ok := trashed["Hello World"]; !ok || len(trashed) != 1 {
		t.Fatalf("trashed = %v, want only Hello World", trashed)
	}

	f.view(t, homeView)
	rep = f.scan(t)
	if rep.Created != 0 || rep.Restored != 3 || rep.Revived != 1 || rep.Stale != 0 {
		t.Fatalf("Report = %+v, want Hello World revived", rep)
	}
	if got := len(f.records(t, storage.TrashedExclude)); got != 3 {
		t.Fatalf("live records = %d, want 3", got)
	}
}

func TestScanArrayValuedKey(t *testing.T) {
	f := newFixture(t)
	f.view(t, `{{ trans_choice('messages.items', 2) }}`)

	rep := f.scan(t)
	if rep.Created != 1 {
		t.Fatalf("Report = %+v, want the array key created", rep)
	}
	r := f.records(t, storage.TrashedExclude)["messages.items"]
	if r == nil {
		t.Fatal("messages.items not created")
	}
	if want := map[string]string{"en": "", "ar": "Items", "fr": "Items"}; !reflect.DeepEqual(r.Text, want) {
		t.Fatalf("text = %v, want %v", r.Text, want)
	}

	rep = f.scan(t)
	if rep.SkippedArray != 1 || rep.Restored != 0 || rep.Stale != 1 {
		t.Fatalf("Report = %+v, want the array key skipped", rep)
	}
	if _, ok := f.records(t, storage.TrashedOnly)["messages.items"]; !ok {
		t.Fatal("array key restored, want it left soft-deleted")
	}
}

func TestScanExcludeGroups(t *testing.T) {
	f := newFixture(t)
	f.cfg.ExcludeGroups = []string{"debug"}
	f.view(t, `{{ __('debug.dump') }} {{ __('messages.welcome') }}`)

	rep := f.scan(t)
	if rep.Excluded != 1 || rep.Created != 1 {
		t.Fatalf("Report = %+v, want 1 excluded and 1 created", rep)
	}
	if _, ok := f.records(t, storage.TrashedInclude)["debug.dump"]; ok {
		t.Fatal("excluded group was stored")
	}
}

// failingStore makes Create fail inside transactions.
type failingStore struct {
	storage.RecordStore
}

type failingTx struct {
	storage.RecordTx
}

var errCreate = errors.New("create failed")

func (failingTx) Create(context.Context, *storage.Record) error { return errCreate }

func (s failingStore) InTx(ctx context.Context, fn func(storage.RecordTx) error) error {
	return s.RecordStore.InTx(ctx, func(tx storage.RecordTx) error {
		return fn(failingTx{RecordTx: tx})
	})
}

func TestScanRollsBackOnError(t *testing.T) {
	f := newFixture(t)
	f.view(t, homeView)
	f.scan(t)

	f.view(t, `{{ __('messages.brand_new') }}`)
	svc := NewService(f.cfg, failingStore{RecordStore: f.store}, log.New(io.Discard), nil)
	if _, err := svc.Scan(context.Background()); !errors.Is(err, errCreate) {
		t.Fatalf("Scan() error = %v, want errCreate", err)
	}

	live := f.records(t, storage.TrashedExclude)
	if len(live) != 3 {
		t.Fatalf("live records = %d, want the 3 untouched records", len(live))
	}
	if _, ok := live["messages.brand_new"]; ok {
		t.Fatal("record created despite rollback")
	}
}

func TestScanWithoutExistingPaths(t *testing.T) {
	f := newFixture(t)
	f.view(t, homeView)
	f.scan(t)

	f.cfg.Paths = []string{filepath.Join(f.dir, "nope")}
	rep := f.scan(t)
	if rep.Found != 0 || rep.Stale != 3 {
		t.Fatalf("Report = %+v, want every record stale", rep)
	}
}
