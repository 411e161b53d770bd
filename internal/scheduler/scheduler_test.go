package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextAfter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	step := time.Minute

	assert.Equal(t, start, NextAfter(start, start.Add(-time.Second), step))
	assert.Equal(t, start.Add(step), NextAfter(start, start, step))
	assert.Equal(t, start.Add(step), NextAfter(start, start.Add(59*time.Second), step))
	assert.Equal(t, start.Add(2*step), NextAfter(start, start.Add(step), step))
	// a day later the grid is still anchored at start
	assert.Equal(t, start.Add(1441*step), NextAfter(start, start.Add(24*time.Hour+time.Millisecond), step))
}

func TestNewPanicsOnZeroInterval(t *testing.T) {
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}

type recorder struct {
	mu    sync.Mutex
	ticks []time.Time
}

func (r *recorder) add(tick time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, tick)
	return len(r.ticks)
}

func TestRunFiresOnGridAndStops(t *testing.T) {
	interval := 20 * time.Millisecond
	s := New(Options{Interval: interval}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		if rec.add(tick) == 3 {
			cancel()
		}
		return errors.New("failed cycles do not stop the loop")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, rec.ticks, 3)
	for i := 1; i < len(rec.ticks); i++ {
		assert.Equal(t, interval, rec.ticks[i].Sub(rec.ticks[i-1]))
	}
}

func TestRunSkipsTicksMissedByASlowCycle(t *testing.T) {
	interval := 20 * time.Millisecond
	var logs bytes.Buffer
	s := New(Options{Interval: interval, RunOnStart: true}, zerolog.New(&logs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	_ = s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		n := rec.add(tick)
		if n == 1 {
			time.Sleep(3*interval + interval/2)
		}
		if n == 2 {
			cancel()
		}
		return nil
	})

	require.Len(t, rec.ticks, 2)
	gap := rec.ticks[1].Sub(rec.ticks[0])
	assert.GreaterOrEqual(t, gap, 4*interval, "missed ticks are skipped, not replayed")
	assert.Zero(t, gap%interval, "ticks stay on the grid")

	var skipped []int
	dec := json.NewDecoder(&logs)
	for dec.More() {
		var entry struct {
			Skipped *int `json:"skipped"`
		}
		require.NoError(t, dec.Decode(&entry))
		if entry.Skipped != nil {
			skipped = append(skipped, *entry.Skipped)
		}
	}
	require.Len(t, skipped, 1)
	// grid points strictly between the two ticks that actually ran
	assert.Equal(t, int(gap/interval)-1, skipped[0])
}

func TestRunHonoursCancelDuringStartupDelay(t *testing.T) {
	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	err := s.Run(ctx, func(context.Context, time.Time) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
