package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"marketwatch/internal/sampler"
	"marketwatch/internal/storage"
)

// Sample runs exactly one cycle. DryRun keeps the row in memory instead of
// writing it to the database.
func (a *App) Sample(ctx context.Context, opts SampleOptions) error {
	var store storage.SampleStore
	if opts.DryRun {
		store = storage.NewMemoryStore()
	} else {
		opened, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		store = opened
	}
	defer store.Close()

	sources, closeSources, err := a.newSources()
	if err != nil {
		return err
	}
	defer closeSources()

	out := sampler.New(sources, store, sampler.Options{}, a.Logger).Cycle(ctx, time.Now())
	if err := printOutcome(os.Stdout, out, opts.DryRun); err != nil {
		return err
	}
	return out.Err
}

func printOutcome(w io.Writer, out sampler.Outcome, dryRun bool) error {
	if !out.OK() {
		_, err := fmt.Fprintf(w, "cycle failed (%s): %v\n", out.Kind(), out.Err)
		return err
	}

	status := "inserted"
	switch {
	case dryRun:
		status = "dry-run, not stored"
	case !out.Inserted:
		status = "duplicate, ignored"
	}
	_, err := fmt.Fprintf(w, "%s  index=%.3f (%s: %s)  fx=%.2f  exchange=%.2f  [%s]\n",
		out.Timestamp.Format(time.RFC3339Nano),
		out.Sample.IndexValue, out.IndexSource, out.IndexFrom,
		out.Sample.FXRate, out.Sample.ExchangePrice,
		status,
	)
	return err
}
