package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"marketwatch/internal/failure"
)

// JSONOptions parameterise a JSON quote source.
type JSONOptions struct {
	Name      string
	URL       string
	Path      string
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
}

// JSON fetches a JSON document and extracts one number with a gjson path.
type JSON struct {
	opts   JSONOptions
	getter httpGetter
	logger zerolog.Logger
}

// NewJSON constructs a JSON quote source.
func NewJSON(opts JSONOptions, logger zerolog.Logger) *JSON {
	return &JSON{
		opts:   opts,
		getter: newHTTPGetter(opts.URL, opts.UserAgent, opts.Headers, opts.Timeout),
		logger: logger.With().Str("component", "quote_json").Str("source", opts.Name).Logger(),
	}
}

func (j *JSON) Name() string { return j.opts.Name }

// Resolve fetches the document and extracts the configured path.
func (j *JSON) Resolve(ctx context.Context) (float64, error) {
	op := "resolve " + j.opts.Name
	if j.opts.URL == "" || j.opts.Path == "" {
		return 0, failure.Parse(op, errors.New("url and path required"))
	}

	body, err := j.getter.get(ctx, op, "application/json")
	if err != nil {
		return 0, err
	}

	value, err := extractJSON(op, body, j.opts.Path)
	if err != nil {
		return 0, err
	}
	j.logger.Debug().Float64("value", value).Msg("quote resolved")
	return value, nil
}

func extractJSON(op string, body []byte, path string) (float64, error) {
	if !gjson.ValidBytes(body) {
		return 0, failure.Parse(op, errors.New("malformed json response"))
	}

	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return 0, failure.Parse(op, fmt.Errorf("%w: path %q missing", ErrNoValue, path))
	}

	switch res.Type {
	case gjson.Number:
		return parseNumber(op, res.Raw)
	case gjson.String:
		return parseNumber(op, res.Str)
	case gjson.Null:
		return 0, failure.Parse(op, fmt.Errorf("%w: path %q is null", ErrNoValue, path))
	default:
		return 0, failure.Parse(op, fmt.Errorf("path %q holds %s, want number", path, res.Type))
	}
}

var _ Source = (*JSON)(nil)
