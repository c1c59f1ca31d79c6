package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradedash/internal/config"
	"tradedash/internal/dashboard"
	"tradedash/internal/logging"
	"tradedash/internal/providers/comtrade"
	"tradedash/internal/store"
	"tradedash/internal/store/sqlite"
)

// cli carries the state shared by every subcommand once the root's
// PersistentPreRunE has run.
type cli struct {
	envFile string
	verbose bool

	cfg config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tradedash:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "tradedash",
		Short: "Interactive global trade dashboard backed by the UN Comtrade preview API",
		Long: `tradedash fetches bilateral trade records from UN Comtrade and projects
them into a flow diagram, a commodity share hierarchy and a trend chart.

Run "tradedash serve" for the live dashboard, or use fetch/render/history
for one-off work from the shell.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.envFile)
			if err != nil {
				return err
			}
			c.cfg = cfg

			log, err := logging.New(cfg.Env, c.verbose || cfg.Verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.newServeCmd(),
		c.newFetchCmd(),
		c.newRenderCmd(),
		c.newHistoryCmd(),
	)
	return root
}

// buildApp assembles the provider, journal and options into an App. The
// caller owns the returned journal.
func (c *cli) buildApp(dbPath, optionsPath string) (*dashboard.App, store.Journal, error) {
	provider, err := comtrade.NewWithConfig(c.cfg.Comtrade, c.log)
	if err != nil {
		return nil, nil, err
	}

	options, err := config.LoadOptions(firstNonEmpty(optionsPath, c.cfg.OptionsFile))
	if err != nil {
		return nil, nil, err
	}

	journal, err := openJournal(firstNonEmpty(dbPath, c.cfg.DBPath))
	if err != nil {
		return nil, nil, err
	}

	return dashboard.NewApp(provider, journal, options, c.log), journal, nil
}

func openJournal(path string) (store.Journal, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

// inputFlags are the dashboard controls as command-line flags. Unset flags
// take the dashboard defaults.
type inputFlags struct {
	reporter  string
	partner   string
	year      string
	commodity string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.reporter, "reporter", "", "reporter ISO3 code (default from options)")
	cmd.Flags().StringVar(&f.partner, "partner", "", "partner ISO3 code (default from options)")
	cmd.Flags().StringVar(&f.year, "year", "", "period, e.g. 2024 (default from options)")
	cmd.Flags().StringVar(&f.commodity, "commodity", "", "classification: HS, SITC or BEC")
}

func (f *inputFlags) inputs(cmd *cobra.Command, app *dashboard.App) dashboard.Inputs {
	in := app.DefaultInputs()
	if cmd.Flags().Changed("reporter") {
		in.Reporter = f.reporter
	}
	if cmd.Flags().Changed("partner") {
		in.Partner = f.partner
	}
	if cmd.Flags().Changed("year") {
		in.Year = f.year
	}
	if cmd.Flags().Changed("commodity") {
		in.Classification = f.commodity
	}
	return in
}

// createOutput opens path for writing, creating parent directories. An
// empty path or "-" writes to fallback.
func createOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return fallback, func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
