// Package storage defines translation records, background jobs and the
// store interfaces the rest of langsync works against.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a record or job does not exist.
var ErrNotFound = errors.New("not found")

// Wildcard marks an absent namespace or a flat (ungrouped) key.
const Wildcard = "*"

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// Identity is the unique (namespace, group, key) triple of a record.
type Identity struct {
	Namespace string
	Group     string
	Key       string
}

// String renders the identity the way it appears in source code:
// "ns::group.key", "group.key" or the bare key for flat literals.
func (id Identity) String() string {
	switch {
	case id.Group == Wildcard:
		return id.Key
	case id.Namespace == Wildcard || id.Namespace == "":
		return id.Group + "." + id.Key
	default:
		return id.Namespace + "::" + id.Group + "." + id.Key
	}
}

// SplitKey splits a dotted key on its first "." into group and key, then
// the group on "::" into namespace and group. A key without a dot is flat.
func SplitKey(dotted string) Identity {
	group, key, ok := strings.Cut(dotted, ".")
	if !ok {
		return FlatKey(dotted)
	}
	if ns, g, ok := strings.Cut(group, "::"); ok {
		return Identity{Namespace: ns, Group: g, Key: key}
	}
	return Identity{Namespace: Wildcard, Group: group, Key: key}
}

// FlatKey returns the identity of a flat literal.
func FlatKey(literal string) Identity {
	return Identity{Namespace: Wildcard, Group: Wildcard, Key: literal}
}

// Record is one translation key with its text per locale.
type Record struct {
	ID        int64
	Namespace string
	Group     string
	Key       string
	Text      map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Identity returns the record's (namespace, group, key).
func (r *Record) Identity() Identity {
	return Identity{Namespace: r.Namespace, Group: r.Group, Key: r.Key}
}

// Trashed reports whether the record is soft-deleted.
func (r *Record) Trashed() bool {
	return r.DeletedAt != nil
}

// TextAttribute is the only translatable attribute of a Record.
const TextAttribute = "text"

// TranslatableAttributes lists the attributes an AI translation may fill.
func (r *Record) TranslatableAttributes() []string {
	return []string{TextAttribute}
}

// Translation returns the value of attr in locale.
func (r *Record) Translation(attr, locale string) string {
	if attr != TextAttribute {
		return ""
	}
	return r.Text[locale]
}

// SetTranslation sets the value of attr in locale.
func (r *Record) SetTranslation(attr, locale, value string) {
	if attr != TextAttribute {
		return
	}
	if r.Text == nil {
		r.Text = make(map[string]string)
	}
	r.Text[locale] = value
}

// Trashed selects how soft-deleted records are treated by List.
type Trashed string

const (
	TrashedExclude Trashed = "exclude"
	TrashedInclude Trashed = "include"
	TrashedOnly    Trashed = "only"
)

// ParseTrashed validates a Trashed mode; "" means exclude.
func ParseTrashed(s string) (Trashed, error) {
	switch t := Trashed(s); t {
	case "":
		return TrashedExclude, nil
	case TrashedExclude, TrashedInclude, TrashedOnly:
		return t, nil
	}
	return "", errors.New("trashed must be one of exclude, include, only")
}

// Filter narrows a record listing.
type Filter struct {
	Trashed   Trashed
	Namespace string
	Group     string
	// Search matches keys and text by substring.
	Search string
	// MissingLocale keeps records whose text is empty in that locale.
	MissingLocale string
	Limit         int
}

// RecordStore persists translation records.
type RecordStore interface {
	List(ctx context.Context, f Filter) ([]*Record, error)
	Get(ctx context.Context, id int64) (*Record, error)
	// GetMany returns the live records among ids, in id order.
	GetMany(ctx context.Context, ids []int64) ([]*Record, error)
	// Save inserts a record with a zero ID, or updates its text otherwise.
	Save(ctx context.Context, r *Record) error
	Restore(ctx context.Context, id int64) error
	// InTx runs fn in a single transaction, rolled back when fn fails.
	InTx(ctx context.Context, fn func(RecordTx) error) error
}

// RecordTx is the set of operations a scan performs atomically.
type RecordTx interface {
	// SoftDeleteAll marks every live record deleted at the given time and
	// returns how many were marked.
	SoftDeleteAll(ctx context.Context, at time.Time) (int64, error)
	// FindWithTrashed looks a record up by identity, soft-deleted or not.
	FindWithTrashed(ctx context.Context, id Identity) (*Record, error)
	Restore(ctx context.Context, id int64) error
	Create(ctx context.Context, r *Record) error
}

// ---------------------------------------------------------------------------
// Jobs
// ---------------------------------------------------------------------------

// JobKind names the operation a job runs.
type JobKind string

const (
	JobScan      JobKind = "scan"
	JobTranslate JobKind = "translate"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a queued background operation.
type Job struct {
	ID        string
	Kind      JobKind
	Payload   []byte
	Status    JobStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobQueue is a persistent FIFO of jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, kind JobKind, payload []byte) (*Job, error)
	// ClaimNext marks the oldest queued job running and returns it, or
	// nil when the queue is empty.
	ClaimNext(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, reason string) error
	// Requeue puts a claimed job back in the queue.
	Requeue(ctx context.Context, id string) error
	// RequeueRunning returns every running job to the queue. Only one
	// worker runs at a time, so running jobs at start-up were interrupted.
	RequeueRunning(ctx context.Context) (int64, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
}
