package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketwatch/internal/failure"
)

func TestJSONResolveNumberAndString(t *testing.T) {
	investing := serve(t, http.StatusOK, "application/json", `{"data":{"last":{"value":103.5}}}`)
	bithumb := serve(t, http.StatusOK, "application/json", `{"status":"0000","data":{"closing_price":"1,352"}}`)

	dxy := NewJSON(JSONOptions{Name: "dxy", URL: investing.URL, Path: "data.last.value", Timeout: time.Second}, noopLogger())
	v, err := dxy.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 103.5, v)

	usdt := NewJSON(JSONOptions{Name: "usdt", URL: bithumb.URL, Path: "data.closing_price"}, noopLogger())
	v, err = usdt.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1352.0, v)
}

func TestJSONSendsHeaders(t *testing.T) {
	var gotUA, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotKey = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{"rate":1350.2}`))
	}))
	defer srv.Close()

	src := NewJSON(JSONOptions{
		Name:      "fx",
		URL:       srv.URL,
		Path:      "rate",
		UserAgent: "Mozilla/5.0",
		Headers:   map[string]string{"X-Api-Key": "secret"},
	}, noopLogger())

	v, err := src.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1350.2, v)
	assert.Equal(t, "Mozilla/5.0", gotUA)
	assert.Equal(t, "secret", gotKey)
}

func TestJSONResolveFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   failure.Kind
		noVal  bool
	}{
		{"http error", http.StatusBadGateway, `upstream down`, failure.KindTransport, false},
		{"malformed", http.StatusOK, `{"data":`, failure.KindParse, false},
		{"missing path", http.StatusOK, `{"data":{}}`, failure.KindParse, true},
		{"null value", http.StatusOK, `{"data":{"last":{"value":null}}}`, failure.KindParse, true},
		{"object value", http.StatusOK, `{"data":{"last":{"value":{}}}}`, failure.KindParse, false},
		{"zero value", http.StatusOK, `{"data":{"last":{"value":"0"}}}`, failure.KindParse, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := serve(t, tc.status, "application/json", tc.body)
			src := NewJSON(JSONOptions{Name: "dxy", URL: srv.URL, Path: "data.last.value"}, noopLogger())

			_, err := src.Resolve(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.kind, failure.KindOf(err))
			if tc.noVal {
				assert.ErrorIs(t, err, ErrNoValue)
			}
		})
	}
}

func TestJSONTransportFailure(t *testing.T) {
	srv := serve(t, http.StatusOK, "application/json", `{}`)
	url := srv.URL
	srv.Close()

	src := NewJSON(JSONOptions{Name: "dxy", URL: url, Path: "x"}, noopLogger())
	_, err := src.Resolve(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.KindTransport, failure.KindOf(err))
}

func TestJSONMissingConfig(t *testing.T) {
	src := NewJSON(JSONOptions{Name: "dxy"}, noopLogger())
	_, err := src.Resolve(context.Background())
	require.Error(t, err)
}
