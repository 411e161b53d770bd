package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"marketwatch/internal/failure"
)

// ErrNoValue marks an upstream response that carried no usable number.
var ErrNoValue = errors.New("no usable value")

// Source resolves a single numeric quote from an upstream.
type Source interface {
	Name() string
	Resolve(ctx context.Context) (float64, error)
}

// Resolution describes which link of a chain produced a value.
type Resolution struct {
	Value    float64
	Source   string
	Fallback bool
}

// Detailer is implemented by sources that can report where a value came from.
type Detailer interface {
	ResolveDetailed(ctx context.Context) (Resolution, error)
}

// ResolveDetailed resolves src, using its Detailer implementation when present.
func ResolveDetailed(ctx context.Context, src Source) (Resolution, error) {
	if d, ok := src.(Detailer); ok {
		return d.ResolveDetailed(ctx)
	}
	v, err := src.Resolve(ctx)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Value: v, Source: src.Name()}, nil
}

// parseNumber turns a quoted price such as "1,352.50" into a float64. Zero and
// negative values are not usable quotes.
func parseNumber(op, raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" || cleaned == "-" {
		return 0, failure.Parse(op, ErrNoValue)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, failure.Parse(op, fmt.Errorf("parse %q: %w", raw, err))
	}
	if !d.IsPositive() {
		return 0, failure.Parse(op, fmt.Errorf("%w: %s", ErrNoValue, d.String()))
	}
	return d.InexactFloat64(), nil
}
