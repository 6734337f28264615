package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"gsrwatch/internal/gsr"
)

// InspectOptions configure the inspect command.
type InspectOptions struct {
	Range string
	Force bool
}

// Inspect fetches one payload and reports how it was normalized.
func (a *App) Inspect(ctx context.Context, opts InspectOptions) error {
	token := opts.Range
	if token == "" {
		token = a.Config.View.Range
	}
	rng, err := gsr.ParseRange(token)
	if err != nil {
		return err
	}
	limit := rng.RequiredFetchSize()

	payload, err := a.newLatest().FetchLatest(ctx, limit, opts.Force)
	if err != nil {
		return err
	}
	tier := a.newEntitlement().FetchTier(ctx)

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Endpoint\t%s\n", a.Config.Source.LatestURL)
	fmt.Fprintf(writer, "Limit\t%s\n", humanize.Comma(int64(limit)))
	fmt.Fprintf(writer, "OK\t%t\n", payload.OK)
	if payload.Error != "" {
		fmt.Fprintf(writer, "Error\t%s\n", sanitizeInline(payload.Error))
	}
	fmt.Fprintf(writer, "Shape\t%s\n", payload.Shape)
	fmt.Fprintf(writer, "History rows\t%s\n", humanize.Comma(int64(len(payload.History))))
	fmt.Fprintf(writer, "Dropped rows\t%d\n", payload.Dropped)
	if n := len(payload.History); n > 0 {
		fmt.Fprintf(writer, "Span\t%s → %s\n", payload.History[0].DateString(), payload.History[n-1].DateString())
		window := gsr.Filter(payload.History, rng)
		fmt.Fprintf(writer, "Window %s\t%d rows\n", rng, len(window))
	}
	if payload.Latest != nil {
		fmt.Fprintf(writer, "Latest\t%s\n", payload.Latest.DateString())
	} else {
		fmt.Fprintf(writer, "Latest\t—\n")
	}
	fmt.Fprintf(writer, "Tier\t%s\n", tier)
	return writer.Flush()
}
