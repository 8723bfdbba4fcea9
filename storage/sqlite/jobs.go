package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/minios-linux/langsync/storage"
)

var jobColumns = []string{"id", "kind", "payload", "status", "error", "created_at", "updated_at"}

func scanJob(row rowScanner) (*storage.Job, error) {
	var (
		j         storage.Job
		payload   string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&j.ID, &j.Kind, &payload, &j.Status, &j.Error, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.Payload = []byte(payload)
	j.CreatedAt = fromMillis(createdAt)
	j.UpdatedAt = fromMillis(updatedAt)
	return &j, nil
}

// Enqueue appends a queued job.
func (s *Store) Enqueue(ctx context.Context, kind storage.JobKind, payload []byte) (*storage.Job, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	now := fromMillis(toMillis(s.now()))
	j := &storage.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		Status:    storage.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := exec(ctx, s.sqlDB, s.sq.Insert("jobs").
		Columns(jobColumns...).
		Values(j.ID, string(j.Kind), string(payload), string(j.Status), "", toMillis(now), toMillis(now)))
	if err != nil {
		return nil, fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	return j, nil
}

// ClaimNext atomically moves the oldest queued job to running.
func (s *Store) ClaimNext(ctx context.Context) (*storage.Job, error) {
	query, args, err := s.sq.Update("jobs").
		Set("status", string(storage.JobRunning)).
		Set("updated_at", toMillis(s.now())).
		Where("id = (SELECT id FROM jobs WHERE status = ? ORDER BY created_at, rowid LIMIT 1)", string(storage.JobQueued)).
		Suffix("RETURNING id, kind, payload, status, error, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	j, err := scanJob(s.sqlDB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

// Complete marks a job done.
func (s *Store) Complete(ctx context.Context, id string) error {
	return s.finish(ctx, id, storage.JobDone, "")
}

// Fail marks a job failed with reason.
func (s *Store) Fail(ctx context.Context, id string, reason string) error {
	return s.finish(ctx, id, storage.JobFailed, reason)
}

// Requeue returns a claimed job to the queue.
func (s *Store) Requeue(ctx context.Context, id string) error {
	return s.finish(ctx, id, storage.JobQueued, "")
}

// RequeueRunning returns every running job to the queue and reports how
// many there were.
func (s *Store) RequeueRunning(ctx context.Context) (int64, error) {
	res, err := exec(ctx, s.sqlDB, s.sq.Update("jobs").
		Set("status", string(storage.JobQueued)).
		Set("updated_at", toMillis(s.now())).
		Where(sq.Eq{"status": string(storage.JobRunning)}))
	if err != nil {
		return 0, fmt.Errorf("requeue running jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) finish(ctx context.Context, id string, status storage.JobStatus, reason string) error {
	res, err := exec(ctx, s.sqlDB, s.sq.Update("jobs").
		Set("status", string(status)).
		Set("error", reason).
		Set("updated_at", toMillis(s.now())).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListJobs returns the most recent jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*storage.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := s.sq.Select(jobColumns...).From("jobs").
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*storage.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
