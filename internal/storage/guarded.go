package storage

import (
	"context"
	"sync"
	"time"
)

// Guarded serialises writers against readers when the sampler and the report
// job run on separate schedules in one process. Readers only observe rows whose
// insert call has returned.
type Guarded struct {
	inner SampleStore
	mu    sync.RWMutex
}

// NewGuarded wraps inner. Wrapping an already guarded store returns it as is.
func NewGuarded(inner SampleStore) *Guarded {
	if g, ok := inner.(*Guarded); ok {
		return g
	}
	return &Guarded{inner: inner}
}

func (g *Guarded) EnsureSchema(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.EnsureSchema(ctx)
}

func (g *Guarded) InsertSample(ctx context.Context, sample Sample) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.InsertSample(ctx, sample)
}

func (g *Guarded) ListSamples(ctx context.Context, since *time.Time) ([]Sample, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.ListSamples(ctx, since)
}

func (g *Guarded) ListRecentSamples(ctx context.Context, limit int) ([]Sample, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.ListRecentSamples(ctx, limit)
}

func (g *Guarded) CountSamples(ctx context.Context) (int64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.inner.CountSamples(ctx)
}

func (g *Guarded) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inner.Close()
}

var _ SampleStore = (*Guarded)(nil)
