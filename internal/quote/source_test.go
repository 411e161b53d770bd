package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketwatch/internal/failure"
)

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{
		"103.5":     103.5,
		" 1,352.0 ": 1352.0,
		"+1350.2":   1350.2,
		"0.000123":  0.000123,
	}
	for raw, want := range cases {
		got, err := parseNumber("test", raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseNumberRejectsUnusable(t *testing.T) {
	for _, raw := range []string{"", "-", "0", "-1.5"} {
		_, err := parseNumber("test", raw)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, ErrNoValue, raw)
		assert.Equal(t, failure.KindParse, failure.KindOf(err), raw)
	}

	_, err := parseNumber("test", "n/a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoValue)
	assert.Equal(t, failure.KindParse, failure.KindOf(err))
}
