package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketwatch/internal/failure"
	"marketwatch/internal/version"
)

const maxBodyBytes = 4 << 20

type httpGetter struct {
	url       string
	userAgent string
	headers   map[string]string
	client    *http.Client
}

func newHTTPGetter(rawURL, userAgent string, headers map[string]string, timeout time.Duration) httpGetter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return httpGetter{
		url:       rawURL,
		userAgent: userAgent,
		headers:   headers,
		client:    &http.Client{Timeout: timeout},
	}
}

func (g httpGetter) get(ctx context.Context, op, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return nil, failure.Transport(op, err)
	}
	req.Header.Set("Accept", accept)
	if ua := strings.TrimSpace(g.userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}
	for k, v := range g.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, failure.Transport(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, failure.Transport(op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, failure.Transport(op, statusError(g.url, resp.StatusCode, body))
	}
	return body, nil
}

func statusError(rawURL string, status int, body []byte) error {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet == "" {
		return fmt.Errorf("%s responded %d", host, status)
	}
	return fmt.Errorf("%s responded %d: %s", host, status, snippet)
}
