// langsync: keeps an application's translation keys in a database and
// translates them with AI providers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/minios-linux/langsync/config"
	"github.com/minios-linux/langsync/metrics"
	"github.com/minios-linux/langsync/notify"
	"github.com/minios-linux/langsync/reconcile"
	"github.com/minios-linux/langsync/storage/sqlite"
	"github.com/minios-linux/langsync/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ---------------------------------------------------------------------------
// Logging
// ---------------------------------------------------------------------------

var prefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

func applyStyles(logger *log.Logger) {
	styles := log.DefaultStyles()
	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").Bold(true).Foreground(lipgloss.Color("63"))
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO ").Bold(true).Foreground(lipgloss.Color("42"))
	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN ").Bold(true).Foreground(lipgloss.Color("214"))
	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").Bold(true).Foreground(lipgloss.Color("196"))
	styles.Key = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styles.Value = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styles.Prefix = prefixStyle
	logger.SetStyles(styles)
}

// newLogger builds the CLI logger. verbose forces debug level.
func newLogger(w io.Writer, level string, verbose bool) (*log.Logger, error) {
	lvl := log.InfoLevel
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	if verbose {
		lvl = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          config.AppName,
	})
	applyStyles(logger)
	return logger, nil
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
	verbose    bool
)

// ---------------------------------------------------------------------------
// Application wiring
// ---------------------------------------------------------------------------

type app struct {
	cfg     *config.Config
	logger  *log.Logger
	store   *sqlite.Store
	metrics *metrics.Metrics
}

// loadConfig reads the configuration and anchors relative paths at the
// project root.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		candidate := filepath.Join(rootDir, config.AppName+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	anchorPaths(cfg, rootDir)
	return cfg, nil
}

func anchorPaths(cfg *config.Config, root string) {
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}
	for i, p := range cfg.Paths {
		cfg.Paths[i] = anchor(p)
	}
	for i, p := range cfg.ExcludedPaths {
		cfg.ExcludedPaths[i] = anchor(p)
	}
	cfg.LangPath = anchor(cfg.LangPath)
	if cfg.Database != ":memory:" {
		cfg.Database = anchor(cfg.Database)
	}
}

// openApp loads the configuration and opens the database.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(os.Stderr, cfg.Log.Level, verbose)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		logger.Debug("config loaded", "file", cfg.File)
	}
	store, err := sqlite.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: store, metrics: metrics.New()}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing database", "err", err)
	}
}

func (a *app) reconciler() *reconcile.Service {
	return reconcile.NewService(a.cfg, a.store, a.logger, a.metrics)
}

// translator wires the AI client. Without usable AI settings translation
// stays disabled and every attempt reports a warning.
func (a *app) translator() (*translate.Service, error) {
	ai, err := newCompleter(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	return translate.NewService(a.cfg, ai, a.store, notify.NewLog(a.logger), a.logger, a.metrics), nil
}

func newCompleter(cfg *config.Config, logger *log.Logger) (translate.Completer, error) {
	if !cfg.AIReady() {
		logger.Warn("AI translation is not configured", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
		return nil, nil
	}
	client, err := translate.NewClient(cfg.AI)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "langsync",
		Short: "Translation key manager with AI translation",
		Long: `langsync: keeps translation keys used in source code in a database
and translates them with AI providers.

Keys are extracted from PHP, Blade, JavaScript, Vue and Go sources, merged
with existing lang/ files and stored in SQLite. Keys that disappear from
the code are soft-deleted and come back when they reappear.

Commands:
  scan              Extract keys and reconcile them with the database
  translate         Translate stored records with AI
  translate-record  Translate a single record
  records           List, inspect, edit and export records
  jobs              Show queued background jobs
  worker            Process queued jobs
  locales           Show configured locales

AI Providers:
  openai, groq, mistral, deepseek, xai, openrouter, custom-openai
  anthropic, gemini, google, ollama`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: langsync.yaml in the project root or search path)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newScanCmd(),
		newTranslateCmd(),
		newTranslateRecordCmd(),
		newRecordsCmd(),
		newJobsCmd(),
		newWorkerCmd(),
		newLocalesCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger, _ := newLogger(os.Stderr, "", false)
		logger.Error(err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "langsync version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}

	return cmd
}
