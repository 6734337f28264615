package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"gsrwatch/internal/alerting"
	"gsrwatch/internal/gsr"
)

// AlertSetOptions describe an edit of the saved rule set. Nil fields are left unchanged.
type AlertSetOptions struct {
	Metric    string
	Direction string
	Threshold *float64
	Enabled   *bool
	Sound     *bool
}

func (a *App) withEngine(ctx context.Context, fn func(*alerting.Engine) error) error {
	kv, closeKV, err := a.openKV(ctx)
	if err != nil {
		return err
	}
	defer closeKV()
	return fn(a.newEngine(kv))
}

// AlertsShow prints the saved rules and the fire log.
func (a *App) AlertsShow(ctx context.Context) error {
	kv, closeKV, err := a.openKV(ctx)
	if err != nil {
		return err
	}
	defer closeKV()

	store := alerting.NewStore(kv, a.Logger)
	rules := store.LoadRules(ctx)
	fired := store.LoadFireLog(ctx)

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Enabled\t%t\n", rules.Enabled)
	fmt.Fprintf(writer, "Sound\t%t\n", rules.SoundEnabled)
	fmt.Fprintln(writer, "Metric\tBelow\tAbove")
	for _, m := range gsr.Metrics {
		b := rules.Bounds(m)
		fmt.Fprintf(writer, "%s\t%s\t%s\n", m.Label(), boundText(b.Below), boundText(b.Above))
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if len(fired) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fired))
	for k := range fired {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(a.Out, "\nLast fired")
	writer = tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		at := fired[k]
		fmt.Fprintf(writer, "%s\t%s\t%s\n", k, at.UTC().Format(time.RFC3339), humanize.Time(at))
	}
	return writer.Flush()
}

// AlertsSet applies an edit and saves the rule set.
func (a *App) AlertsSet(ctx context.Context, opts AlertSetOptions) error {
	return a.withEngine(ctx, func(engine *alerting.Engine) error {
		rules := engine.Rules(ctx)
		if opts.Metric != "" {
			metric, err := gsr.ParseMetric(opts.Metric)
			if err != nil {
				return err
			}
			dir, err := alerting.ParseDirection(opts.Direction)
			if err != nil {
				return err
			}
			rules.SetBound(metric, dir, opts.Threshold)
		} else if opts.Threshold != nil {
			return errors.New("--metric is required with a threshold")
		}
		if opts.Enabled != nil {
			rules.Enabled = *opts.Enabled
		}
		if opts.Sound != nil {
			rules.SoundEnabled = *opts.Sound
		}
		return engine.SaveRules(ctx, rules)
	})
}

// AlertsClear removes thresholds for one metric, or all when metric is empty.
func (a *App) AlertsClear(ctx context.Context, metric string) error {
	return a.withEngine(ctx, func(engine *alerting.Engine) error {
		rules := engine.Rules(ctx)
		targets := gsr.Metrics
		if metric != "" {
			m, err := gsr.ParseMetric(metric)
			if err != nil {
				return err
			}
			targets = []gsr.Metric{m}
		}
		for _, m := range targets {
			rules.SetBound(m, alerting.DirectionBelow, nil)
			rules.SetBound(m, alerting.DirectionAbove, nil)
		}
		return engine.SaveRules(ctx, rules)
	})
}

// AlertsTest dispatches a sample notification through the configured channels.
func (a *App) AlertsTest(ctx context.Context) error {
	return a.withEngine(ctx, func(engine *alerting.Engine) error {
		note, err := engine.Test(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "sent: %s\n", note.Title)
		return nil
	})
}

func boundText(v *float64) string {
	if v == nil {
		return "—"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
