package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share. The store
// is expected to start empty.
func runStoreContract(t *testing.T, store SampleStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema init is idempotent")

	empty, err := store.ListSamples(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	first := Sample{Timestamp: t0, IndexValue: 103.5, FXRate: 1350.2, ExchangePrice: 1352.0}

	inserted, err := store.InsertSample(ctx, first)
	require.NoError(t, err)
	require.True(t, inserted)

	dup := first
	dup.FXRate = 9999
	inserted, err = store.InsertSample(ctx, dup)
	require.NoError(t, err, "duplicate timestamps are benign")
	require.False(t, inserted)

	count, err := store.CountSamples(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	rows, err := store.ListSamples(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Timestamp.Equal(t0))
	require.Equal(t, 103.5, rows[0].IndexValue)
	require.Equal(t, 1350.2, rows[0].FXRate, "first write wins")
	require.Equal(t, 1352.0, rows[0].ExchangePrice)

	// inserted out of order on purpose
	for _, offset := range []time.Duration{3 * time.Minute, time.Minute, 2 * time.Minute} {
		_, err := store.InsertSample(ctx, Sample{
			Timestamp:     t0.Add(offset),
			IndexValue:    0.1 + float64(offset/time.Minute),
			FXRate:        1350.123456789,
			ExchangePrice: 1352.000000001,
		})
		require.NoError(t, err)
	}

	since := t0.Add(time.Minute)
	rows, err = store.ListSamples(ctx, &since)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, r := range rows {
		require.False(t, r.Timestamp.Before(since))
		if i > 0 {
			require.True(t, rows[i-1].Timestamp.Before(r.Timestamp), "ascending order")
		}
		require.Equal(t, 1350.123456789, r.FXRate)
		require.Equal(t, 1352.000000001, r.ExchangePrice)
	}

	// a sub-microsecond cutoff must not round down onto the earlier row
	justAfter := t0.Add(time.Nanosecond)
	rows, err = store.ListSamples(ctx, &justAfter)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.True(t, rows[0].Timestamp.Equal(t0.Add(time.Minute)))

	recent, err := store.ListRecentSamples(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.True(t, recent[0].Timestamp.Equal(t0.Add(3*time.Minute)))
}
