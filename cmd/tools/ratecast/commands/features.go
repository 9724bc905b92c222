package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ratecast/ratecast/internal/analytics/features"
	"github.com/ratecast/ratecast/internal/services"
)

type featuresOptions struct {
	data    string
	horizon int
	rows    int
	out     string
}

func newFeaturesCmd(c *cli) *cobra.Command {
	opts := &featuresOptions{}

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Dump the assembled feature matrix as CSV",
		Long: `Assemble lag, rolling and stationarity features for the given horizon and
write them as CSV with the date first and the target column y last.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.features(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.data, "data", "", "CSV file (default data.path)")
	f.IntVar(&opts.horizon, "horizon", 0, "reference shift (default forecast.horizon)")
	f.IntVar(&opts.rows, "rows", -1, "keep the last N rows; 0 keeps all (default: the direct row cap)")
	f.StringVarP(&opts.out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func (c *cli) features(cmd *cobra.Command, opts *featuresOptions) error {
	horizon := c.cfg.Forecast.Horizon
	if opts.horizon > 0 {
		horizon = opts.horizon
	}

	series, err := c.loadSeries(opts.data)
	if err != nil {
		return err
	}

	deps, err := services.BuildDeps(c.cfg.Forecast, c.cfg.Model)
	if err != nil {
		return err
	}
	rowCap := opts.rows
	if rowCap < 0 {
		rowCap = deps.Assembler.Config().RowCaps.DirectCap(horizon)
	}

	asm, err := deps.Assembler.Assemble(series, horizon, rowCap)
	if err != nil {
		return err
	}
	for _, b := range asm.Skipped {
		c.logger.Warn("Stationarity block skipped", "window", b.Window, "start", b.Start, "end", b.End, "reason", b.Reason)
	}

	out := cmd.OutOrStdout()
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := writeFeatures(out, asm); err != nil {
		return err
	}
	c.logger.Info("Features written", "rows", asm.X.Len(), "columns", len(asm.X.Columns()), "reference", asm.Reference)
	return nil
}

func writeFeatures(out io.Writer, asm *features.Assembly) error {
	w := csv.NewWriter(out)
	cols := asm.X.Columns()

	header := append([]string{"date"}, cols...)
	header = append(header, features.TargetColumn)
	if err := w.Write(header); err != nil {
		return err
	}

	index := asm.X.Index()
	rows := asm.X.Rows()
	record := make([]string, len(header))
	for i, row := range rows {
		record[0] = index[i].Format("2006-01-02")
		for j, v := range row {
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(record)-1] = strconv.FormatFloat(asm.Y[i], 'g', -1, 64)
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write features: %w", err)
	}
	return nil
}
