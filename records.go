package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/minios-linux/langsync/storage"
)

// ---------------------------------------------------------------------------
// records (list, show, edit, restore, export)
// ---------------------------------------------------------------------------

type recordView struct {
	ID        int64             `json:"id" yaml:"id"`
	Namespace string            `json:"namespace" yaml:"namespace"`
	Group     string            `json:"group" yaml:"group"`
	Key       string            `json:"key" yaml:"key"`
	Text      map[string]string `json:"text" yaml:"text"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
	DeletedAt *time.Time        `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

func viewOf(r *storage.Record) recordView {
	return recordView{
		ID: r.ID, Namespace: r.Namespace, Group: r.Group, Key: r.Key,
		Text: r.Text, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt,
	}
}

// recordTable lays records out with one column per locale.
func recordTable(records []*storage.Record, locales []string) *table {
	headers := append([]string{"id", "key"}, locales...)
	t := &table{headers: append(headers, "deleted")}
	for _, r := range records {
		row := []string{fmt.Sprint(r.ID), clip(r.Identity().String(), 40)}
		for _, l := range locales {
			row = append(row, clip(r.Text[l], 30))
		}
		deleted := ""
		if r.Trashed() {
			deleted = r.DeletedAt.Format(time.DateTime)
		}
		t.add(append(row, deleted)...)
	}
	return t
}

func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and edit stored translation records",
	}

	cmd.AddCommand(
		newRecordsListCmd(),
		newRecordsShowCmd(),
		newRecordsSetCmd(),
		newRecordsRestoreCmd(),
		newRecordsExportCmd(),
	)
	return cmd
}

func newRecordsListCmd() *cobra.Command {
	var (
		trashed string
		f       storage.Filter
		output  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		Long: `List stored records ordered by namespace, group and key.

Examples:
  # Records of the auth group, including soft-deleted ones
  langsync records list --group auth --trashed include

  # Records without an Arabic translation, as JSON
  langsync records list --missing ar -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			if f.Trashed, err = storage.ParseTrashed(trashed); err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.store.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			views := make([]recordView, 0, len(records))
			for _, r := range records {
				views = append(views, viewOf(r))
			}
			return writeOutput(cmd.OutOrStdout(), format, views, recordTable(records, a.cfg.LocaleCodes()))
		},
	}

	cmd.Flags().StringVar(&trashed, "trashed", "", "Soft-deleted records: exclude (default), include, only")
	cmd.Flags().StringVar(&f.Namespace, "namespace", "", "Only records of this namespace (* for the application)")
	cmd.Flags().StringVar(&f.Group, "group", "", "Only records of this group (* for flat keys)")
	cmd.Flags().StringVar(&f.Search, "search", "", "Substring to match in keys and text")
	cmd.Flags().StringVar(&f.MissingLocale, "missing", "", "Only records with no text in this locale")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "Maximum number of records (0 = no limit)")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json, yaml")

	return cmd
}

func newRecordsShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record with all its translations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
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

			r, err := a.store.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("record %d: %w", id, err)
			}
			t := &table{headers: []string{"locale", "text"}}
			for _, l := range a.cfg.LocaleCodes() {
				t.add(l, r.Text[l])
			}
			out := cmd.OutOrStdout()
			if format == formatTable {
				fmt.Fprintf(out, "#%d %s\n", r.ID, r.Identity())
				if r.Trashed() {
					fmt.Fprintf(out, "deleted at %s\n", r.DeletedAt.Format(time.DateTime))
				}
				fmt.Fprintln(out)
			}
			return writeOutput(out, format, viewOf(r), t)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "Output format: table, json, yaml")

	return cmd
}

func newRecordsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id> <locale> <text>",
		Short: "Set the text of a record in one locale",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			locale := args[1]
			if !a.cfg.HasLocale(locale) {
				return fmt.Errorf("locale %q is not configured", locale)
			}
			ctx := cmd.Context()
			r, err := a.store.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("record %d: %w", id, err)
			}
			r.SetTranslation(storage.TextAttribute, locale, args[2])
			if err := a.store.Save(ctx, r); err != nil {
				return err
			}
			a.logger.Info("record updated", "id", id, "locale", locale)
			return nil
		},
	}

	return cmd
}

func newRecordsRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a soft-deleted record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.Restore(cmd.Context(), id); err != nil {
				return fmt.Errorf("record %d: %w", id, err)
			}
			a.logger.Info("record restored", "id", id)
			return nil
		},
	}

	return cmd
}

func newRecordsExportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write live records back to lang/ files",
		Long: `Export live records as JSON translation files.

Flat keys go to {dir}/{locale}.json. Grouped keys go to
{dir}/{locale}/{group}.json with dotted keys nested; package keys go to
{dir}/vendor/{namespace}/{locale}/{group}.json. Empty texts are omitted.

Examples:
  langsync records export --dir lang`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()
			if dir == "" {
				dir = a.cfg.LangPath
			}

			records, err := a.store.List(cmd.Context(), storage.Filter{})
			if err != nil {
				return err
			}
			files, err := exportRecords(records, a.cfg.LocaleCodes(), dir)
			if err != nil {
				return err
			}
			a.logger.Info("export complete", "dir", dir, "records", len(records), "files", len(files))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default: lang_path)")

	return cmd
}
