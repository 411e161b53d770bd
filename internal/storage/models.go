package storage

import (
	"math"
	"time"
)

// Sample is one collection cycle's combined quotes. Timestamp is the key.
type Sample struct {
	Timestamp     time.Time
	IndexValue    float64
	FXRate        float64
	ExchangePrice float64
}

// HasIndex reports whether the index column held a value. Rows written by
// this program always have one; NULL is read back as NaN.
func (s Sample) HasIndex() bool {
	return !math.IsNaN(s.IndexValue)
}

// NormalizeTimestamp converts t to the key representation shared by every backend.
func NormalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// NormalizeCutoff converts a query lower bound to the key representation,
// rounding up so rows before since are never returned.
func NormalizeCutoff(since time.Time) time.Time {
	c := NormalizeTimestamp(since)
	if c.Before(since) {
		c = c.Add(time.Microsecond)
	}
	return c
}
