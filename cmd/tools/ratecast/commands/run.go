package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/anomaly"
	"github.com/ratecast/ratecast/internal/analytics/forecast"
	"github.com/ratecast/ratecast/internal/resultstore"
	"github.com/ratecast/ratecast/internal/services"
)

type runOptions struct {
	data       string
	strategies []string
	horizon    int
	step       int
	selection  bool
	seed       int64
	format     string
}

func newRunCmd(c *cli) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest one or more strategies on a CSV series",
		Example: `  ratecast run --data exchange_rate.csv --horizon 7
  ratecast run --strategy direct,recursive --horizon 14 --step 7 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.data, "data", "", "CSV file (default data.path)")
	f.StringSliceVarP(&opts.strategies, "strategy", "s", nil, "strategies to run, or 'all' (default forecast.strategy)")
	f.IntVar(&opts.horizon, "horizon", 0, "rows held out and predicted (default forecast.horizon)")
	f.IntVar(&opts.step, "step", 0, "recursive step size (default forecast.step)")
	f.BoolVar(&opts.selection, "selection", false, "reduce features with the importance selector (default forecast.feature_selection)")
	f.Int64Var(&opts.seed, "seed", 0, "override forecast.seed")
	f.StringVar(&opts.format, "format", "text", "output format: text, json")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, opts *runOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	fc := c.cfg.Forecast
	if cmd.Flags().Changed("seed") {
		fc.Seed = opts.seed
	}
	if opts.horizon > 0 {
		fc.Horizon = opts.horizon
	}
	step := fc.Step
	if opts.step > 0 {
		step = opts.step
	}
	step = min(step, fc.Horizon)
	selection := fc.FeatureSelection
	if cmd.Flags().Changed("selection") {
		selection = opts.selection
	}

	names := opts.strategies
	switch {
	case len(names) == 0:
		names = []string{fc.Strategy}
	case len(names) == 1 && names[0] == "all":
		names = forecast.ListStrategies()
	}

	series, err := c.loadSeries(opts.data)
	if err != nil {
		return err
	}
	anomalies := c.screen(series)

	deps, err := services.BuildDeps(fc, c.cfg.Model)
	if err != nil {
		return err
	}

	strategies := make([]forecast.Strategy, len(names))
	for i, name := range names {
		if strategies[i], err = forecast.NewStrategy(name, deps); err != nil {
			return fmt.Errorf("%w (available: %v)", err, forecast.ListStrategies())
		}
	}

	// Strategies share no mutable state, so they can run side by side
	records := make([]*resultstore.Record, len(strategies))
	var g errgroup.Group
	g.SetLimit(max(c.cfg.Forecast.MaxConcurrentRuns, 1))
	for i, st := range strategies {
		g.Go(func() error {
			created := time.Now().UTC()
			c.logger.Info("Backtest started", "strategy", st.Name(), "horizon", fc.Horizon, "step", step)
			res, err := st.Forecast(series, forecast.Request{
				Horizon:          fc.Horizon,
				Step:             step,
				FeatureSelection: selection,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", st.Name(), err)
			}
			if res.Selection != nil && res.Selection.Err != nil {
				c.logger.Warn("Feature selection failed, all columns kept", "strategy", st.Name(), "error", res.Selection.Err)
			}

			r := &resultstore.Record{
				ID:               uuid.NewString(),
				Status:           resultstore.StatusSucceeded,
				Strategy:         st.Name(),
				Horizon:          fc.Horizon,
				FeatureSelection: selection,
				CreatedAt:        created,
				CompletedAt:      time.Now().UTC(),
				ElapsedMS:        res.Elapsed.Milliseconds(),
				Anomalies:        anomalies,
			}
			if st.Name() == forecast.StrategyRecursive {
				r.Step = step
			}
			services.FillRecord(r, res)
			records[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	return writeRecords(out, records)
}

// screen logs suspicious observations without failing the run
func (c *cli) screen(series analytics.Series) []anomaly.Anomaly {
	found, err := services.ScreenSeries(c.cfg.Data, series)
	if err != nil {
		c.logger.Warn("Input screening skipped", "error", err)
		return nil
	}
	for _, a := range found {
		c.logger.Warn("Suspicious observation",
			"date", a.Time.Format(time.DateOnly),
			"value", a.Value,
			"change", a.Change,
			"type", string(a.Type),
			"score", a.Score)
	}
	return found
}

func writeRecords(out io.Writer, records []*resultstore.Record) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, r := range records {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		step := "-"
		if r.Step > 0 {
			step = strconv.Itoa(r.Step)
		}
		fmt.Fprintf(tw, "strategy=%s\thorizon=%d\tstep=%s\tmodel=%s\tcolumns=%d\n",
			r.Strategy, r.Horizon, step, r.Model, len(r.Columns))
		fmt.Fprintf(tw, "mae=%.6f\trmse=%.6f\tmape=%.4f%%\telapsed=%s\n",
			r.MAE, r.RMSE, r.MAPE, time.Duration(r.ElapsedMS)*time.Millisecond)
		if r.Selection != nil {
			fmt.Fprintf(tw, "selected=%d/%d\n", len(r.Selection.Selected), r.Selection.Requested)
		}
		fmt.Fprintln(tw, "DATE\tPREDICTED\tACTUAL\tERROR")
		for _, p := range r.Points {
			fmt.Fprintf(tw, "%s\t%.6f\t%.6f\t%+.6f\n",
				p.Time.Format(time.DateOnly), p.Predicted, p.Actual, p.Predicted-p.Actual)
		}
	}
	return tw.Flush()
}
