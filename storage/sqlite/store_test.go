package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/minios-linux/langsync/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "langsync.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store, id storage.Identity, text map[string]string) *storage.Record {
	t.Helper()
	r := &storage.Record{Namespace: id.Namespace, Group: id.Group, Key: id.Key, Text: text}
	if err := s.Save(context.Background(), r); err != nil {
		t.Fatalf("Save(%s): %v", id, err)
	}
	return r
}

func TestOpenTwiceKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "langsync.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	seed(t, s, storage.SplitKey("messages.welcome"), map[string]string{"en": "Welcome"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	recs, err := s.List(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].Text["en"] != "Welcome" {
		t.Fatalf("List() = %+v, want the seeded record", recs)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("Open(blank) error = nil")
	}
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	r := seed(t, s, storage.Identity{Group: "auth", Key: "failed"}, map[string]string{"en": "Failed"})
	if r.ID == 0 {
		t.Fatal("Save did not assign an ID")
	}
	if r.Namespace != storage.Wildcard {
		t.Fatalf("Namespace = %q, want %q", r.Namespace, storage.Wildcard)
	}

	r.Text["fr"] = "Échec"
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("Save(update): %v", err)
	}
	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text["fr"] != "Échec" || got.Text["en"] != "Failed" {
		t.Fatalf("Text = %v", got.Text)
	}

	if _, err := s.Get(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get(999) error = %v, want ErrNotFound", err)
	}
	if err := s.Save(ctx, &storage.Record{ID: 999}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Save(999) error = %v, want ErrNotFound", err)
	}
}

func TestUniqueIdentity(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, storage.SplitKey("messages.welcome"), nil)
	dup := &storage.Record{Namespace: "*", Group: "messages", Key: "welcome"}
	if err := s.Save(context.Background(), dup); err == nil {
		t.Fatal("duplicate identity saved without error")
	}
}

func TestListSearchSpecialCharacters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	terms := seed(t, s, storage.FlatKey("Terms & Conditions"), map[string]string{"en": "Terms & Conditions"})
	seed(t, s, storage.FlatKey("a < b"), map[string]string{"en": "a < b"})
	seed(t, s, storage.FlatKey("Done"), map[string]string{"en": "100% done"})
	seed(t, s, storage.FlatKey("Total"), map[string]string{"en": "1000 done"})
	seed(t, s, storage.SplitKey("auth.user_name"), map[string]string{"en": "User name"})
	seed(t, s, storage.SplitKey("auth.username"), map[string]string{"en": "Username"})
	seed(t, s, storage.FlatKey("Quote"), map[string]string{"en": `Say "hi"`})

	var raw string
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT text FROM translations WHERE id = ?", terms.ID).Scan(&raw); err != nil {
		t.Fatalf("reading stored text: %v", err)
	}
	if raw != `{"en":"Terms & Conditions"}` {
		t.Fatalf("stored text = %s, want HTML characters unescaped", raw)
	}

	tests := []struct {
		search string
		want   []string
	}{
		{"Terms & Cond", []string{"Terms & Conditions"}},
		{"a < b", []string{"a < b"}},
		{"100%", []string{"Done"}},
		{"user_", []string{"auth.user_name"}},
		{`"hi"`, []string{"Quote"}},
	}
	for _, tc := range tests {
		t.Run(tc.search, func(t *testing.T) {
			recs, err := s.List(ctx, storage.Filter{Search: tc.search})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var got []string
			for _, r := range recs {
				got = append(got, r.Identity().String())
			}
			if len(got) != len(tc.want) || got[0] != tc.want[0] {
				t.Fatalf("List(search %q) = %v, want %v", tc.search, got, tc.want)
			}
		})
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	welcome := seed(t, s, storage.SplitKey("messages.welcome"), map[string]string{"en": "Welcome", "fr": "Bienvenue"})
	bye := seed(t, s, storage.SplitKey("messages.bye"), map[string]string{"en": "Bye", "fr": ""})
	failed := seed(t, s, storage.SplitKey("pkg::auth.failed"), map[string]string{"en": "Login failed"})
	stale := seed(t, s, storage.FlatKey("Old text"), map[string]string{"en": "Old text"})

	err := s.InTx(ctx, func(tx storage.RecordTx) error {
		if _, err := tx.SoftDeleteAll(ctx, time.Now()); err != nil {
			return err
		}
		for _, id := range []int64{welcome.ID, bye.ID, failed.ID} {
			if err := tx.Restore(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	tests := []struct {
		name string
		f    storage.Filter
		want []string
	}{
		{"default excludes trashed", storage.Filter{}, []string{"messages.bye", "messages.welcome", "pkg::auth.failed"}},
		{"only trashed", storage.Filter{Trashed: storage.TrashedOnly}, []string{"Old text"}},
		{"include trashed", storage.Filter{Trashed: storage.TrashedInclude}, []string{"Old text", "messages.bye", "messages.welcome", "pkg::auth.failed"}},
		{"namespace", storage.Filter{Namespace: "pkg"}, []string{"pkg::auth.failed"}},
		{"group", storage.Filter{Group: "messages"}, []string{"messages.bye", "messages.welcome"}},
		{"search text", storage.Filter{Search: "Bienv"}, []string{"messages.welcome"}},
		{"search key", storage.Filter{Search: "fail"}, []string{"pkg::auth.failed"}},
		{"missing locale", storage.Filter{MissingLocale: "fr"}, []string{"messages.bye", "pkg::auth.failed"}},
		{"limit", storage.Filter{Limit: 1}, []string{"messages.bye"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recs, err := s.List(ctx, tc.f)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var got []string
			for _, r := range recs {
				got = append(got, r.Identity().String())
			}
			if len(got) != len(tc.want) {
				t.Fatalf("List(%+v) = %v, want %v", tc.f, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("List(%+v) = %v, want %v", tc.f, got, tc.want)
				}
			}
		})
	}

	many, err := s.GetMany(ctx, []int64{stale.ID, welcome.ID})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(many) != 1 || many[0].ID != welcome.ID {
		t.Fatalf("GetMany() = %+v, want only the live record", many)
	}

	if err := s.Restore(ctx, stale.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got, err := s.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Trashed() {
		t.Fatal("record still trashed after Restore")
	}
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s, storage.SplitKey("messages.welcome"), nil)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx storage.RecordTx) error {
		if _, err := tx.SoftDeleteAll(ctx, time.Now()); err != nil {
			return err
		}
		if err := tx.Create(ctx, &storage.Record{Namespace: "*", Group: "messages", Key: "new"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	recs, err := s.List(ctx, storage.Filter{Trashed: storage.TrashedInclude})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].Trashed() {
		t.Fatalf("List() = %+v, want the untouched original record", recs)
	}
}

func TestFindWithTrashed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	orig := seed(t, s, storage.SplitKey("pkg::auth.failed"), nil)

	err := s.InTx(ctx, func(tx storage.RecordTx) error {
		at := time.UnixMilli(1700000000000)
		n, err := tx.SoftDeleteAll(ctx, at)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("SoftDeleteAll() = %d, want 1", n)
		}
		r, err := tx.FindWithTrashed(ctx, storage.SplitKey("pkg::auth.failed"))
		if err != nil {
			return err
		}
		if r.ID != orig.ID || r.DeletedAt == nil || !r.DeletedAt.Equal(at) {
			t.Errorf("FindWithTrashed() = %+v, want trashed record %d at %v", r, orig.ID, at)
		}
		if _, err := tx.FindWithTrashed(ctx, storage.SplitKey("auth.failed")); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("FindWithTrashed(other namespace) error = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
}

func TestJobQueue(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	j, err := s.ClaimNext(ctx)
	if err != nil || j != nil {
		t.Fatalf("ClaimNext(empty) = %v, %v; want nil, nil", j, err)
	}

	first, err := s.Enqueue(ctx, storage.JobScan, nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := s.Enqueue(ctx, storage.JobTranslate, []byte(`{"record_ids":[1]}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	claimed, err := s.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed.ID != first.ID || claimed.Status != storage.JobRunning || string(claimed.Payload) != "{}" {
		t.Fatalf("ClaimNext() = %+v, want first job running", claimed)
	}
	if err := s.Complete(ctx, claimed.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	claimed, err = s.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed.ID != second.ID || claimed.Kind != storage.JobTranslate {
		t.Fatalf("ClaimNext() = %+v, want second job", claimed)
	}
	if err := s.Fail(ctx, claimed.ID, "provider down"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	jobs, err := s.ListJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("ListJobs() returned %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != second.ID || jobs[0].Status != storage.JobFailed || jobs[0].Error != "provider down" {
		t.Fatalf("jobs[0] = %+v, want failed second job", jobs[0])
	}
	if jobs[1].Status != storage.JobDone {
		t.Fatalf("jobs[1].Status = %q, want done", jobs[1].Status)
	}

	if err := s.Complete(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Complete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRequeueRunning(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for range 3 {
		if _, err := s.Enqueue(ctx, storage.JobScan, nil); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	a, _ := s.ClaimNext(ctx)
	b, _ := s.ClaimNext(ctx)
	if err := s.Complete(ctx, b.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	n, err := s.RequeueRunning(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RequeueRunning() = %d, %v; want 1, nil", n, err)
	}
	next, err := s.ClaimNext(ctx)
	if err != nil || next == nil || next.ID != a.ID {
		t.Fatalf("ClaimNext() = %+v, %v; want requeued job %s first", next, err, a.ID)
	}

	if err := s.Requeue(ctx, next.ID); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if n, err := s.RequeueRunning(ctx); err != nil || n != 0 {
		t.Fatalf("RequeueRunning() = %d, %v; want 0, nil", n, err)
	}
}
