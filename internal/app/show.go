package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"gsrwatch/internal/gsr"
	"gsrwatch/internal/service"
)

// Show fetches once and prints the latest values, deltas and recent history.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	svc, err := a.newSession(opts.Range, nil, nil)
	if err != nil {
		return err
	}
	svc.RefreshTier(ctx)

	res, err := svc.Load(ctx, service.LoadOptions{Force: opts.Force})
	if err != nil {
		return err
	}
	if res.Latest == nil {
		fmt.Fprintln(a.Out, "no data")
		return nil
	}

	latest := res.Latest
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Date (UTC)\t%s\n", latest.DateString())
	for _, m := range gsr.Metrics {
		line := formatValue(m, latest.Value(m))
		if d, ok := res.Deltas[m]; ok {
			line += "\t" + formatDelta(d) + " vs " + d.PreviousDate.Format(gsr.DateLayout)
		}
		fmt.Fprintf(writer, "%s\t%s\n", m.Label(), line)
	}
	if latest.Source != "" {
		fmt.Fprintf(writer, "Source\t%s\n", sanitizeInline(latest.Source))
	}
	fmt.Fprintf(writer, "Updated\t%s\n", svc.UpdatedLabel())
	fmt.Fprintf(writer, "Range\t%s %s\n", res.Range, res.Label)
	writer.Flush()

	limit := opts.Limit
	if limit <= 0 {
		limit = a.Config.View.TableRows
	}
	rows := recentRows(res.Window, limit)
	if len(rows) == 0 {
		return nil
	}

	fmt.Fprintf(a.Out, "\nLast %s rows\n", humanize.Comma(int64(len(rows))))
	writer = tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tGSR\tGold\tSilver\tFetched")
	for _, row := range rows {
		fetched := ""
		if !row.FetchedAt.IsZero() {
			fetched = row.FetchedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			row.DateString(),
			formatValue(gsr.MetricGSR, row.GSR),
			formatValue(gsr.MetricGold, row.GoldUSD),
			formatValue(gsr.MetricSilver, row.SilverUSD),
			fetched,
		)
	}
	return writer.Flush()
}

// recentRows returns up to limit rows, newest first.
func recentRows(window []gsr.Observation, limit int) []gsr.Observation {
	n := len(window)
	if limit > 0 && n > limit {
		window = window[n-limit:]
		n = limit
	}
	out := make([]gsr.Observation, n)
	for i, obs := range window {
		out[n-1-i] = obs
	}
	return out
}
