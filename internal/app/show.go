package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"marketwatch/internal/alerting"
	"marketwatch/internal/storage"
)

// Show prints recent samples.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}
	total, err := store.CountSamples(ctx)
	if err != nil {
		return err
	}

	return writeSamples(os.Stdout, samples, total)
}

func writeSamples(out io.Writer, samples []storage.Sample, total int64) error {
	if len(samples) == 0 {
		_, err := fmt.Fprintln(out, "no samples found")
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tIndex\tUSD/KRW\tUSDT/KRW\tPremium%")

	for _, sample := range samples {
		index := "-"
		if sample.HasIndex() {
			index = strconv.FormatFloat(sample.IndexValue, 'f', 3, 64)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			sample.Timestamp.UTC().Format(time.RFC3339),
			index,
			strconv.FormatFloat(sample.FXRate, 'f', 2, 64),
			strconv.FormatFloat(sample.ExchangePrice, 'f', 2, 64),
			premiumOf(sample).StringFixed(3),
		)
	}

	if err := writer.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d of %d samples\n", len(samples), total)
	return err
}

func premiumOf(s storage.Sample) decimal.Decimal {
	return alerting.PremiumPct(s.FXRate, s.ExchangePrice)
}
