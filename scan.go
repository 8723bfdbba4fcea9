package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/minios-linux/langsync/jobs"
	"github.com/minios-linux/langsync/langmeta"
	"github.com/minios-linux/langsync/storage"
	"github.com/minios-linux/langsync/watch"
)

// catalogExtensions are the lang/ file types that affect a scan.
var catalogExtensions = []string{".json", ".yaml", ".yml", ".po"}

// ---------------------------------------------------------------------------
// scan (extract keys and reconcile with the database)
// ---------------------------------------------------------------------------

func newScanCmd() *cobra.Command {
	var (
		sync     bool
		watching bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Extract translation keys and reconcile them with the database",
		Long: `Scan the configured source paths for translation keys and reconcile
them with stored records in one transaction.

Records whose key is no longer used are soft-deleted; keys that reappear
are restored. New keys take their text from the lang/ directory, or a
title-cased form of the key when no translation exists.

With use_queue_on_scan enabled the scan is queued for the worker unless
--sync is given.

Examples:
  # Scan now
  langsync scan --sync

  # Re-scan whenever a source or lang file changes
  langsync scan --sync --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			run := func(ctx context.Context) error {
				if a.cfg.UseQueueOnScan && !sync {
					job, err := jobs.Enqueue(ctx, a.store, storage.JobScan, jobs.ScanPayload{})
					if err != nil {
						return err
					}
					a.logger.Info("scan queued", "job", job.ID)
					return nil
				}
				_, err := a.reconciler().Scan(ctx)
				return err
			}

			ctx := cmd.Context()
			if err := run(ctx); err != nil {
				return err
			}
			if !watching {
				return nil
			}

			paths := append(append([]string(nil), a.cfg.Paths...), a.cfg.LangPath)
			exts := append(append([]string(nil), a.cfg.Scanner.Extensions...), catalogExtensions...)
			w, err := watch.New(watch.Options{Paths: paths, Extensions: exts, Debounce: debounce}, a.logger)
			if err != nil {
				return err
			}
			defer w.Close()
			a.logger.Info("watching for changes", "dirs", len(w.WatchList()))
			return w.Run(ctx, run)
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Scan in the foreground even when use_queue_on_scan is set")
	cmd.Flags().BoolVar(&watching, "watch", false, "Keep running and re-scan when files change")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before a re-scan (with --watch)")

	return cmd
}

// ---------------------------------------------------------------------------
// worker (process queued jobs)
// ---------------------------------------------------------------------------

// registerHandlers binds every job kind to its service.
func (a *app) registerHandlers(r *jobs.Runner) error {
	tr, err := a.translator()
	if err != nil {
		return err
	}

	r.Handle(storage.JobScan, func(ctx context.Context, _ []byte) error {
		_, err := a.reconciler().Scan(ctx)
		return err
	})
	r.Handle(storage.JobTranslate, func(ctx context.Context, payload []byte) error {
		var p jobs.TranslatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decoding translate payload: %w", err)
		}
		records, err := a.store.GetMany(ctx, p.RecordIDs)
		if err != nil {
			return err
		}
		_, err = tr.TranslateRecords(ctx, records, p.Source, p.Target, p.All)
		return err
	})
	return nil
}

func newWorkerCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued scan and translate jobs",
		Long: `Run queued jobs one at a time until interrupted.

When worker.metrics_addr is set, Prometheus metrics are served on
/metrics at that address.

Examples:
  # Process everything queued, then exit
  langsync worker --once

  # Run continuously
  langsync worker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			runner := jobs.NewRunner(a.store, a.cfg.Worker.PollInterval, a.logger, a.metrics)
			if err := a.registerHandlers(runner); err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runner.Recover(ctx); err != nil {
				return err
			}
			if once {
				n, err := runner.Drain(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("queue drained", "jobs", n)
				return nil
			}

			if addr := a.cfg.Worker.MetricsAddr; addr != "" {
				go func() {
					a.logger.Info("serving metrics", "addr", addr)
					if err := a.metrics.Serve(ctx, addr); err != nil {
						a.logger.Error("metrics server stopped", "err", err)
					}
				}()
			}
			a.logger.Info("worker started", "poll", a.cfg.Worker.PollInterval)
			return runner.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Drain the queue and exit")

	return cmd
}

// ---------------------------------------------------------------------------
// jobs (list queued jobs)
// ---------------------------------------------------------------------------

type jobView struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      string    `json:"kind" yaml:"kind"`
	Status    string    `json:"status" yaml:"status"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect background jobs",
	}

	var (
		limit  int
		output string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			recent, err := a.store.ListJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			views := make([]jobView, 0, len(recent))
			t := &table{headers: []string{"id", "kind", "status", "created", "error"}}
			for _, j := range recent {
				views = append(views, jobView{
					ID: j.ID, Kind: string(j.Kind), Status: string(j.Status),
					Error: j.Error, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt,
				})
				t.add(j.ID, string(j.Kind), string(j.Status), j.CreatedAt.Format(time.DateTime), clip(j.Error, 60))
			}
			return writeOutput(cmd.OutOrStdout(), format, views, t)
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs")
	list.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json, yaml")

	cmd.AddCommand(list)
	return cmd
}

// ---------------------------------------------------------------------------
// locales (show configured locales)
// ---------------------------------------------------------------------------

type localeView struct {
	Code    string `json:"code" yaml:"code"`
	Label   string `json:"label" yaml:"label"`
	Flag    string `json:"flag" yaml:"flag"`
	Default bool   `json:"default" yaml:"default"`
}

func localeViews(codes []string, labels, flags map[string]string, def string) []localeView {
	views := make([]localeView, 0, len(codes))
	for _, code := range codes {
		flag := langmeta.FlagEmoji(flags[code])
		if flag == "" {
			flag = langmeta.Resolve(code).Flag()
		}
		views = append(views, localeView{
			Code:    code,
			Label:   langmeta.Label(code, labels[code]),
			Flag:    flag,
			Default: code == def,
		})
	}
	return views
}

func newLocalesCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "locales",
		Short: "Show configured locales",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			labels := make(map[string]string, len(cfg.Locales))
			flags := make(map[string]string, len(cfg.Locales))
			for _, l := range cfg.Locales {
				labels[l.Code] = l.Label
				flags[l.Code] = l.Flag
			}
			views := localeViews(cfg.LocaleCodes(), labels, flags, cfg.DefaultLocale)

			t := &table{headers: []string{"code", "label", "flag", "default"}}
			for _, v := range views {
				def := ""
				if v.Default {
					def = "*"
				}
				t.add(v.Code, v.Label, v.Flag, def)
			}
			return writeOutput(cmd.OutOrStdout(), format, views, t)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json, yaml")

	return cmd
}
