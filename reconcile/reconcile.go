// Package reconcile keeps the translation records in step with the keys
// referenced by the application's source files.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/minios-linux/langsync/catalog"
	"github.com/minios-linux/langsync/config"
	"github.com/minios-linux/langsync/extract"
	"github.com/minios-linux/langsync/metrics"
	"github.com/minios-linux/langsync/storage"
)

// Report summarises one scan.
type Report struct {
	// Found is the number of distinct keys the scanner returned.
	Found int
	// Created counts new records.
	Created int
	// Restored counts existing records left live by this scan.
	Restored int
	// Revived counts restored records that were already soft-deleted
	// before this scan started.
	Revived int
	// SkippedArray counts found keys left soft-deleted because their
	// default-locale translation is an array.
	SkippedArray int
	// Excluded counts keys dropped by exclude_groups.
	Excluded int
	// Stale counts records that were live before the scan and are
	// soft-deleted after it.
	Stale int
	// SkippedFiles lists sources the scanner could not read.
	SkippedFiles []string
}

// Service runs scan-and-reconcile.
type Service struct {
	cfg     *config.Config
	store   storage.RecordStore
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService returns a reconcile Service.
func NewService(cfg *config.Config, store storage.RecordStore, logger *log.Logger, m *metrics.Metrics) *Service {
	return &Service{cfg: cfg, store: store, logger: logger, metrics: m, now: time.Now}
}

// ScannerOptions maps the configuration onto extractor options.
func ScannerOptions(cfg *config.Config) extract.Options {
	return extract.Options{
		Functions:     cfg.Scanner.Functions,
		FlatFunctions: cfg.Scanner.FlatFunctions,
		Extensions:    cfg.Scanner.Extensions,
		ExcludedPaths: cfg.ExcludedPaths,
	}
}

// Scan extracts keys from the configured paths and reconciles them with
// the store in a single transaction. On error nothing is written.
func (s *Service) Scan(ctx context.Context) (Report, error) {
	rep, err := s.scan(ctx)
	s.metrics.ScanRun(err)
	if err != nil {
		s.logger.Error("scan failed", "err", err)
		return Report{}, err
	}

	s.metrics.ScanRecords("created", rep.Created)
	s.metrics.ScanRecords("restored", rep.Restored)
	s.metrics.ScanRecords("stale", rep.Stale)
	s.metrics.ScanRecords("skipped_array", rep.SkippedArray)
	s.metrics.ScanRecords("excluded", rep.Excluded)
	s.logger.Info("scan complete",
		"found", rep.Found,
		"created", rep.Created,
		"restored", rep.Restored,
		"revived", rep.Revived,
		"stale", rep.Stale,
		"skipped_array", rep.SkippedArray,
		"excluded", rep.Excluded,
	)
	return rep, nil
}

func (s *Service) scan(ctx context.Context) (Report, error) {
	scanner := extract.NewScanner(ScannerOptions(s.cfg))
	for _, p := range s.cfg.Paths {
		if _, err := os.Stat(p); err != nil {
			s.logger.Debug("skipping scan path", "path", p, "err", err)
			continue
		}
		scanner.AddPath(p)
	}
	if len(scanner.Paths()) == 0 {
		s.logger.Warn("none of the configured paths exist; every record will be marked stale", "paths", s.cfg.Paths)
	}

	res, err := scanner.Scan()
	if err != nil {
		return Report{}, fmt.Errorf("scanning sources: %w", err)
	}
	for _, f := range res.Skipped {
		s.logger.Warn("skipped source file", "reason", f)
	}

	cat, err := catalog.Load(s.cfg.LangPath)
	if err != nil {
		return Report{}, fmt.Errorf("loading catalog: %w", err)
	}

	ids := make([]storage.Identity, 0, len(res.Grouped)+len(res.Flat))
	for _, k := range res.Grouped {
		ids = append(ids, storage.SplitKey(k))
	}
	for _, k := range res.Flat {
		ids = append(ids, storage.FlatKey(k))
	}

	rep := Report{Found: len(ids), SkippedFiles: res.Skipped}
	at := time.UnixMilli(s.now().UnixMilli())
	err = s.store.InTx(ctx, func(tx storage.RecordTx) error {
		marked, err := tx.SoftDeleteAll(ctx, at)
		if err != nil {
			return err
		}
		kept := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			wasLive, err := s.reconcile(ctx, tx, cat, id, at, &rep)
			if err != nil {
				return fmt.Errorf("reconciling %s: %w", id, err)
			}
			if wasLive {
				kept++
			}
		}
		rep.Stale = int(marked) - kept
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	return rep, nil
}

// reconcile creates or restores the record for id. It reports whether the
// record was live before this scan and is live again.
func (s *Service) reconcile(ctx context.Context, tx storage.RecordTx, cat *catalog.Catalog, id storage.Identity, at time.Time, rep *Report) (bool, error) {
	if s.excluded(id.Group) {
		rep.Excluded++
		return false, nil
	}

	existing, err := tx.FindWithTrashed(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		r := &storage.Record{
			Namespace: id.Namespace,
			Group:     id.Group,
			Key:       id.Key,
			Text:      make(map[string]string, len(s.cfg.Locales)),
		}
		for _, code := range s.cfg.LocaleCodes() {
			r.Text[code] = cat.Resolve(code, id.Namespace, id.Group, id.Key)
		}
		if err := tx.Create(ctx, r); err != nil {
			return false, err
		}
		rep.Created++
		return false, nil
	case err != nil:
		return false, err
	}

	if cat.Lookup(s.cfg.DefaultLocale, id.Namespace, id.Group, id.Key).Kind == catalog.Array {
		rep.SkippedArray++
		return false, nil
	}
	if err := tx.Restore(ctx, existing.ID); err != nil {
		return false, err
	}
	rep.Restored++
	// Rows soft-deleted at the start of this scan carry exactly at.
	markedNow := existing.DeletedAt != nil && existing.DeletedAt.Equal(at)
	if !markedNow {
		rep.Revived++
	}
	return markedNow, nil
}

func (s *Service) excluded(group string) bool {
	for _, g := range s.cfg.ExcludeGroups {
		if g == group {
			return true
		}
	}
	return false
}
