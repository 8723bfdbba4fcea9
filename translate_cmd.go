package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/minios-linux/langsync/jobs"
	"github.com/minios-linux/langsync/storage"
	"github.com/minios-linux/langsync/translate"
)

// ---------------------------------------------------------------------------
// translate (bulk AI translation of stored records)
// ---------------------------------------------------------------------------

type translateArgs struct {
	source, target   string
	all              bool
	ids              []int64
	namespace, group string
	missing          bool
	queue            bool
	batch            int
}

func newTranslateCmd() *cobra.Command {
	var opts translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate stored records using AI",
		Long: `Translate the text of stored records from a source locale into one
target locale, or every other configured locale with --all.

Records are selected by --ids, or by --group/--namespace. --missing keeps
only records that have no text in a target locale. Each batch is sent as
one structured-output request.

Examples:
  # Translate everything from English into French
  langsync translate --source en --target fr

  # Fill every missing locale of the "auth" group
  langsync translate --source en --all --group auth --missing

  # Queue the work for the worker
  langsync translate --source en --all --ids 1,2,3 --queue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.target == "" && !opts.all {
				return errors.New("either --target or --all is required")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()
			if opts.source == "" {
				opts.source = a.cfg.DefaultLocale
			}
			return a.runTranslate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "Source locale (default: default_locale)")
	cmd.Flags().StringVar(&opts.target, "target", "", "Target locale")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Translate into every configured locale except the source")
	cmd.Flags().Int64SliceVar(&opts.ids, "ids", nil, "Record IDs to translate (comma-separated)")
	cmd.Flags().StringVar(&opts.namespace, "namespace", "", "Only records of this namespace")
	cmd.Flags().StringVar(&opts.group, "group", "", "Only records of this group")
	cmd.Flags().BoolVar(&opts.missing, "missing", false, "Only records missing text in a target locale")
	cmd.Flags().BoolVar(&opts.queue, "queue", false, "Queue the translation for the worker")
	cmd.Flags().IntVar(&opts.batch, "batch", 20, "Records per AI request (0 = all at once)")

	return cmd
}

// selectRecords resolves the records a translate run operates on.
func (a *app) selectRecords(ctx context.Context, args translateArgs) ([]*storage.Record, error) {
	var (
		records []*storage.Record
		err     error
	)
	if len(args.ids) > 0 {
		records, err = a.store.GetMany(ctx, args.ids)
	} else {
		f := storage.Filter{Namespace: args.namespace, Group: args.group}
		if args.missing && !args.all {
			f.MissingLocale = args.target
		}
		records, err = a.store.List(ctx, f)
	}
	if err != nil {
		return nil, err
	}
	if args.missing {
		targets := translate.ResolveTargets(a.cfg.LocaleCodes(), args.source, args.target, args.all)
		records = missingAny(records, targets)
	}
	return records, nil
}

// missingAny keeps records with empty text in at least one target locale.
func missingAny(records []*storage.Record, targets []string) []*storage.Record {
	var out []*storage.Record
	for _, r := range records {
		for _, t := range targets {
			if r.Text[t] == "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// batches splits records into chunks of at most size; size <= 0 means one.
func batches(records []*storage.Record, size int) [][]*storage.Record {
	if size <= 0 || len(records) <= size {
		if len(records) == 0 {
			return nil
		}
		return [][]*storage.Record{records}
	}
	var out [][]*storage.Record
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

func (a *app) runTranslate(ctx context.Context, args translateArgs) error {
	records, err := a.selectRecords(ctx, args)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		a.logger.Warn("no records selected")
		return nil
	}

	if args.queue {
		for _, chunk := range batches(records, args.batch) {
			ids := make([]int64, len(chunk))
			for i, r := range chunk {
				ids[i] = r.ID
			}
			job, err := jobs.Enqueue(ctx, a.store, storage.JobTranslate, jobs.TranslatePayload{
				RecordIDs: ids, Source: args.source, Target: args.target, All: args.all,
			})
			if err != nil {
				return err
			}
			a.logger.Info("translation queued", "job", job.ID, "records", len(ids))
		}
		return nil
	}

	svc, err := a.translator()
	if err != nil {
		return err
	}
	for i, chunk := range batches(records, args.batch) {
		a.logger.Debug("translating batch", "batch", i+1, "records", len(chunk))
		ok, err := svc.TranslateRecords(ctx, chunk, args.source, args.target, args.all)
		if err != nil {
			return err
		}
		if !ok {
			a.logger.Warn("nothing to translate", "source", args.source, "target", args.target, "all", args.all)
			return nil
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// translate-record (translate every attribute of one record)
// ---------------------------------------------------------------------------

func newTranslateRecordCmd() *cobra.Command {
	var (
		source, target string
		all            bool
	)

	cmd := &cobra.Command{
		Use:   "translate-record <id>",
		Short: "Translate a single record using AI",
		Long: `Translate the translatable attributes of one record from the source
locale into a target locale, or every other configured locale with --all.

Examples:
  langsync translate-record 42 --target ar
  langsync translate-record 42 --source en --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" && !all {
				return errors.New("either --target or --all is required")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()
			if source == "" {
				source = a.cfg.DefaultLocale
			}

			ctx := cmd.Context()
			rec, err := a.store.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("record %d: %w", id, err)
			}
			svc, err := a.translator()
			if err != nil {
				return err
			}
			ok, err := svc.TranslateAttributes(ctx, rec, source, target, all)
			if err != nil {
				return err
			}
			if !ok {
				a.logger.Warn("nothing to translate", "id", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source locale (default: default_locale)")
	cmd.Flags().StringVar(&target, "target", "", "Target locale")
	cmd.Flags().BoolVar(&all, "all", false, "Translate into every configured locale except the source")

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}
