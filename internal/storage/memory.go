package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps samples in process. Used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	samples map[int64]Sample
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{samples: make(map[int64]Sample)}
}

func (m *MemoryStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *MemoryStore) InsertSample(ctx context.Context, sample Sample) (bool, error) {
	sample.Timestamp = NormalizeTimestamp(sample.Timestamp)
	key := sample.Timestamp.UnixMicro()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.samples[key]; exists {
		return false, nil
	}
	m.samples[key] = sample
	return true, nil
}

func (m *MemoryStore) ListSamples(ctx context.Context, since *time.Time) ([]Sample, error) {
	var cutoff time.Time
	if since != nil {
		cutoff = NormalizeCutoff(*since)
	}

	m.mu.RLock()
	out := make([]Sample, 0, len(m.samples))
	for _, s := range m.samples {
		if since != nil && s.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) ListRecentSamples(ctx context.Context, limit int) ([]Sample, error) {
	all, _ := m.ListSamples(ctx, nil)
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryStore) CountSamples(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.samples)), nil
}

func (m *MemoryStore) Close() {}

var _ SampleStore = (*MemoryStore)(nil)
