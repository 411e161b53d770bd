package quote

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Chain resolves from a primary source and falls back to a secondary one when
// the primary fails. The fallback may quote a different instrument; the chain
// records which link produced the value so callers can surface it.
type Chain struct {
	field    string
	primary  Source
	fallback Source
	logger   zerolog.Logger
}

// NewChain builds a chain for one sampled field. fallback may be nil.
func NewChain(field string, primary, fallback Source, logger zerolog.Logger) *Chain {
	return &Chain{
		field:    field,
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "quote_chain").Str("field", field).Logger(),
	}
}

func (c *Chain) Name() string { return c.primary.Name() }

// Resolve returns the first usable value in the chain.
func (c *Chain) Resolve(ctx context.Context) (float64, error) {
	res, err := c.ResolveDetailed(ctx)
	return res.Value, err
}

// ResolveDetailed is Resolve plus provenance.
func (c *Chain) ResolveDetailed(ctx context.Context) (Resolution, error) {
	v, err := c.primary.Resolve(ctx)
	if err == nil {
		return Resolution{Value: v, Source: c.primary.Name()}, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return Resolution{}, err
	}

	c.logger.Warn().Err(err).
		Str("primary", c.primary.Name()).
		Str("fallback", c.fallback.Name()).
		Msg("primary source unusable, resolving fallback")

	fv, ferr := c.fallback.Resolve(ctx)
	if ferr != nil {
		return Resolution{}, fmt.Errorf("%w (fallback %s: %v)", err, c.fallback.Name(), ferr)
	}
	return Resolution{Value: fv, Source: c.fallback.Name(), Fallback: true}, nil
}

// Close releases any source that holds a connection.
func (c *Chain) Close() {
	for _, src := range []Source{c.primary, c.fallback} {
		if closer, ok := src.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

var (
	_ Source   = (*Chain)(nil)
	_ Detailer = (*Chain)(nil)
)
