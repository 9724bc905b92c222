// Package commands implements the ratecast command line tool.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/config"
	"github.com/ratecast/ratecast/internal/ingest"
	"github.com/ratecast/ratecast/internal/logging"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// cli carries state shared by every subcommand
type cli struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *logging.Logger
}

// ExecuteContext runs the root command with ctx
func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "ratecast",
		Short: "Backtest exchange-rate forecasts",
		Long: `ratecast builds lag, rolling and stationarity features from a daily rate
series and backtests direct or recursive multi-step forecasts against the
held-out tail of the series.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to configuration file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(c),
		newFeaturesCmd(c),
		newWatchCmd(c),
		newVersionCmd(),
	)
	return root
}

// init loads configuration and sets up logging on stderr so stdout carries only results
func (c *cli) init() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	if cfg.Logging.OutputPath == "" || cfg.Logging.OutputPath == "stdout" {
		cfg.Logging.OutputPath = "stderr"
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetGlobal(logger)

	c.cfg = cfg
	c.logger = logger
	return nil
}

// loadSeries reads the dataset, preferring path over the configured one
func (c *cli) loadSeries(path string) (analytics.Series, error) {
	if path == "" {
		path = c.cfg.Data.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no dataset: pass --data or set data.path")
	}
	opts, err := ingest.OptionsFromConfig(c.cfg.Data)
	if err != nil {
		return nil, err
	}
	series, err := ingest.LoadCSV(path, opts)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Dataset loaded",
		"path", path,
		"observations", len(series),
		"first", series[0].Time.Format("2006-01-02"),
		"last", series[len(series)-1].Time.Format("2006-01-02"))
	return series, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ratecast %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			return err
		},
	}
}
