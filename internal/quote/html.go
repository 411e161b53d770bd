package quote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"marketwatch/internal/failure"
)

// HTMLOptions parameterise an HTML scraping source.
type HTMLOptions struct {
	Name      string
	URL       string
	Selector  string
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
}

// HTML scrapes a quote from the first element matching a CSS selector.
type HTML struct {
	opts   HTMLOptions
	getter httpGetter
	logger zerolog.Logger
}

// NewHTML constructs an HTML quote source.
func NewHTML(opts HTMLOptions, logger zerolog.Logger) *HTML {
	return &HTML{
		opts:   opts,
		getter: newHTTPGetter(opts.URL, opts.UserAgent, opts.Headers, opts.Timeout),
		logger: logger.With().Str("component", "quote_html").Str("source", opts.Name).Logger(),
	}
}

func (h *HTML) Name() string { return h.opts.Name }

// Resolve fetches the page and parses the selected element's text.
func (h *HTML) Resolve(ctx context.Context) (float64, error) {
	op := "resolve " + h.opts.Name
	if h.opts.URL == "" || h.opts.Selector == "" {
		return 0, failure.Parse(op, errors.New("url and selector required"))
	}

	body, err := h.getter.get(ctx, op, "text/html,application/xhtml+xml")
	if err != nil {
		return 0, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, failure.Parse(op, fmt.Errorf("parse html: %w", err))
	}

	sel := doc.Find(h.opts.Selector).First()
	if sel.Length() == 0 {
		return 0, failure.Parse(op, fmt.Errorf("%w: selector %q matched nothing", ErrNoValue, h.opts.Selector))
	}

	value, err := parseNumber(op, strings.Join(strings.Fields(sel.Text()), ""))
	if err != nil {
		return 0, err
	}
	h.logger.Debug().Float64("value", value).Msg("quote resolved")
	return value, nil
}

var _ Source = (*HTML)(nil)
