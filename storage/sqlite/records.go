package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/minios-linux/langsync/storage"
)

const (
	colGroup = `"group"`
	colKey   = `"key"`
)

var recordColumns = []string{"id", "namespace", colGroup, colKey, "text", "created_at", "updated_at", "deleted_at"}

func encodeText(text map[string]string) (string, error) {
	if len(text) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(text); err != nil {
		return "", fmt.Errorf("marshal text: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeContains returns a LIKE pattern matching s literally anywhere.
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func decodeText(raw string) (map[string]string, error) {
	text := make(map[string]string)
	if raw == "" {
		return text, nil
	}
	if err := json.Unmarshal([]byte(raw), &text); err != nil {
		return nil, fmt.Errorf("unmarshal text: %w", err)
	}
	return text, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*storage.Record, error) {
	var (
		r         storage.Record
		rawText   string
		createdAt int64
		updatedAt int64
		deletedAt sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Namespace, &r.Group, &r.Key, &rawText, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	text, err := decodeText(rawText)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", r.ID, err)
	}
	r.Text = text
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	if deletedAt.Valid {
		t := fromMillis(deletedAt.Int64)
		r.DeletedAt = &t
	}
	return &r, nil
}

func queryRecords(ctx context.Context, q querier, b sq.SelectBuilder) ([]*storage.Record, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []*storage.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryRecord(ctx context.Context, q querier, b sq.SelectBuilder) (*storage.Record, error) {
	query, args, err := b.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	r, err := scanRecord(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return r, err
}

func (s *Store) selectRecords() sq.SelectBuilder {
	return s.sq.Select(recordColumns...).From("translations")
}

// List returns records matching f, ordered by namespace, group and key.
func (s *Store) List(ctx context.Context, f storage.Filter) ([]*storage.Record, error) {
	b := s.selectRecords().OrderBy("namespace", colGroup, colKey)

	switch f.Trashed {
	case storage.TrashedInclude:
	case storage.TrashedOnly:
		b = b.Where(sq.NotEq{"deleted_at": nil})
	default:
		b = b.Where(sq.Eq{"deleted_at": nil})
	}
	if f.Namespace != "" {
		b = b.Where(sq.Eq{"namespace": f.Namespace})
	}
	if f.Group != "" {
		b = b.Where(sq.Eq{colGroup: f.Group})
	}
	if f.Search != "" {
		// Text is matched against decoded values, not the stored JSON.
		pattern := likeContains(f.Search)
		b = b.Where(sq.Or{
			sq.Expr(colKey+` LIKE ? ESCAPE '\'`, pattern),
			sq.Expr(`EXISTS (SELECT 1 FROM json_each(text) WHERE value LIKE ? ESCAPE '\')`, pattern),
		})
	}
	if f.MissingLocale != "" {
		b = b.Where("COALESCE(json_extract(text, ?), '') = ''", "$."+jsonQuote(f.MissingLocale))
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	return queryRecords(ctx, s.sqlDB, b)
}

// jsonQuote quotes a locale code for use as a JSON path member.
func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// Get returns a record by id, soft-deleted or not.
func (s *Store) Get(ctx context.Context, id int64) (*storage.Record, error) {
	return queryRecord(ctx, s.sqlDB, s.selectRecords().Where(sq.Eq{"id": id}))
}

// GetMany returns the live records among ids, in id order.
func (s *Store) GetMany(ctx context.Context, ids []int64) ([]*storage.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b := s.selectRecords().
		Where(sq.Eq{"id": ids}).
		Where(sq.Eq{"deleted_at": nil}).
		OrderBy("id")
	return queryRecords(ctx, s.sqlDB, b)
}

// Save inserts r when its ID is zero, otherwise replaces its text.
func (s *Store) Save(ctx context.Context, r *storage.Record) error {
	if r.ID == 0 {
		return s.create(ctx, s.sqlDB, r)
	}
	text, err := encodeText(r.Text)
	if err != nil {
		return err
	}
	now := s.now()
	res, err := exec(ctx, s.sqlDB, s.sq.Update("translations").
		Set("text", text).
		Set("updated_at", toMillis(now)).
		Where(sq.Eq{"id": r.ID}))
	if err != nil {
		return fmt.Errorf("update record %d: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	r.UpdatedAt = fromMillis(toMillis(now))
	return nil
}

// Restore clears the soft-delete marker of a record.
func (s *Store) Restore(ctx context.Context, id int64) error {
	return s.restore(ctx, s.sqlDB, id)
}

func (s *Store) restore(ctx context.Context, q querier, id int64) error {
	res, err := exec(ctx, q, s.sq.Update("translations").
		Set("deleted_at", nil).
		Set("updated_at", toMillis(s.now())).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("restore record %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) create(ctx context.Context, q querier, r *storage.Record) error {
	text, err := encodeText(r.Text)
	if err != nil {
		return err
	}
	if r.Namespace == "" {
		r.Namespace = storage.Wildcard
	}
	now := fromMillis(toMillis(s.now()))
	res, err := exec(ctx, q, s.sq.Insert("translations").
		Columns("namespace", colGroup, colKey, "text", "created_at", "updated_at").
		Values(r.Namespace, r.Group, r.Key, text, toMillis(now), toMillis(now)))
	if err != nil {
		return fmt.Errorf("insert record %s: %w", r.Identity(), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert record %s: %w", r.Identity(), err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	r.DeletedAt = nil
	return nil
}

// InTx runs fn inside a transaction, committing only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(storage.RecordTx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&recordTx{store: s, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type recordTx struct {
	store *Store
	tx    *sql.Tx
}

func (t *recordTx) SoftDeleteAll(ctx context.Context, at time.Time) (int64, error) {
	res, err := exec(ctx, t.tx, t.store.sq.Update("translations").
		Set("deleted_at", toMillis(at)).
		Where(sq.Eq{"deleted_at": nil}))
	if err != nil {
		return 0, fmt.Errorf("soft delete records: %w", err)
	}
	return res.RowsAffected()
}

func (t *recordTx) FindWithTrashed(ctx context.Context, id storage.Identity) (*storage.Record, error) {
	return queryRecord(ctx, t.tx, t.store.selectRecords().Where(sq.Eq{
		"namespace": id.Namespace,
		colGroup:    id.Group,
		colKey:      id.Key,
	}))
}

func (t *recordTx) Restore(ctx context.Context, id int64) error {
	return t.store.restore(ctx, t.tx, id)
}

func (t *recordTx) Create(ctx context.Context, r *storage.Record) error {
	return t.store.create(ctx, t.tx, r)
}
