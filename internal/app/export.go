package app

import (
	"context"
	"errors"
	"time"

	"marketwatch/internal/report"
)

// Export renders the trailing window as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	reporter := a.newReporter(store, opts.Window, opts.MaxPoints)
	now := time.Now()

	if opts.CSVPath != "" {
		if _, err := reporter.ExportCSV(ctx, now, opts.CSVPath); err != nil {
			if errors.Is(err, report.ErrNoData) {
				return nil
			}
			return err
		}
	}

	if opts.PNGPath != "" {
		if _, err := reporter.RenderFile(ctx, now, opts.PNGPath); err != nil && !errors.Is(err, report.ErrNoData) {
			return err
		}
	}

	return nil
}
