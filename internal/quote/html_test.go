package quote

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketwatch/internal/failure"
)

const quotePage = `<html><body>
<div class="quote"><span id="last">1,351.75</span><span class="chg">+0.3</span></div>
</body></html>`

func TestHTMLResolve(t *testing.T) {
	srv := serve(t, http.StatusOK, "text/html", quotePage)

	src := NewHTML(HTMLOptions{Name: "usdkrw_page", URL: srv.URL, Selector: "div.quote #last"}, noopLogger())
	v, err := src.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1351.75, v)
}

func TestHTMLSelectorMiss(t *testing.T) {
	srv := serve(t, http.StatusOK, "text/html", quotePage)

	src := NewHTML(HTMLOptions{Name: "usdkrw_page", URL: srv.URL, Selector: "#missing"}, noopLogger())
	_, err := src.Resolve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoValue)
	assert.Equal(t, failure.KindParse, failure.KindOf(err))
}

func TestHTMLStatusError(t *testing.T) {
	srv := serve(t, http.StatusForbidden, "text/html", "<html>blocked</html>")

	src := NewHTML(HTMLOptions{Name: "usdkrw_page", URL: srv.URL, Selector: "#last"}, noopLogger())
	_, err := src.Resolve(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.KindTransport, failure.KindOf(err))
}
