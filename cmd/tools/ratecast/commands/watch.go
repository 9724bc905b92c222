package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ratecast/ratecast/internal/queue"
)

type watchOptions struct {
	subject string
	format  string
}

func newWatchCmd(c *cli) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print forecast.completed events as the server publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("unknown format %q", opts.format)
			}
			if opts.subject == "" {
				opts.subject = c.cfg.Queue.Subject
			}

			c.logger.Info("Connecting to Queue", "type", c.cfg.Queue.Type, "url", c.cfg.Queue.URL, "subject", opts.subject)
			sub, err := queue.NewSubscriber(c.cfg.Queue)
			if err != nil {
				return err
			}
			defer func() { _ = sub.Close() }()

			return watch(cmd.Context(), sub, opts.subject, opts.format, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.subject, "subject", "", "subject to watch (default queue.subject)")
	f.StringVar(&opts.format, "format", "text", "output format: text, json")
	return cmd
}

// watch prints events until ctx is done
func watch(ctx context.Context, sub queue.Subscriber, subject, format string, out io.Writer) error {
	var mu sync.Mutex
	enc := json.NewEncoder(out)

	err := queue.WatchRunCompleted(sub, subject, func(ev queue.RunCompleted) error {
		mu.Lock()
		defer mu.Unlock()
		if format == "json" {
			return enc.Encode(ev)
		}
		_, err := fmt.Fprintln(out, formatEvent(ev))
		return err
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return sub.Unsubscribe(subject)
}

func formatEvent(ev queue.RunCompleted) string {
	line := fmt.Sprintf("%s run=%s status=%s strategy=%s horizon=%d",
		ev.CompletedAt.Format(time.RFC3339), ev.RunID, ev.Status, ev.Strategy, ev.Horizon)
	if ev.Step > 0 {
		line += fmt.Sprintf(" step=%d", ev.Step)
	}
	if ev.Status == queue.StatusFailed {
		return line + fmt.Sprintf(" error=%q", ev.Error)
	}
	return line + fmt.Sprintf(" mae=%.6f rmse=%.6f elapsed=%dms", ev.MAE, ev.RMSE, ev.ElapsedMS)
}
