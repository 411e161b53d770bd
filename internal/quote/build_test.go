package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketwatch/internal/config"
)

func TestFromConfigKinds(t *testing.T) {
	src, err := FromConfig(config.SourceConfig{Kind: config.SourceKindJSON, Name: "dxy", URL: "http://x", Path: "a"}, noopLogger())
	require.NoError(t, err)
	assert.IsType(t, &JSON{}, src)
	assert.Equal(t, "dxy", src.Name())

	src, err = FromConfig(config.SourceConfig{Kind: config.SourceKindHTML, URL: "http://x", Selector: "#a"}, noopLogger())
	require.NoError(t, err)
	assert.IsType(t, &HTML{}, src)
	assert.Equal(t, "html", src.Name())

	src, err = FromConfig(config.SourceConfig{Kind: config.SourceKindChainlink, RPCURL: "http://x", Address: feedAddress}, noopLogger())
	require.NoError(t, err)
	assert.IsType(t, &Chainlink{}, src)

	_, err = FromConfig(config.SourceConfig{Kind: "ftp"}, noopLogger())
	require.Error(t, err)
}

func TestFieldFromConfig(t *testing.T) {
	chain, err := FieldFromConfig("index", config.FieldConfig{
		Primary:  config.SourceConfig{Kind: config.SourceKindJSON, Name: "investing", URL: "http://a", Path: "p"},
		Fallback: config.SourceConfig{Kind: config.SourceKindJSON, Name: "yahoo", URL: "http://b", Path: "p"},
	}, noopLogger())
	require.NoError(t, err)
	assert.Equal(t, "investing", chain.Name())
	assert.NotNil(t, chain.fallback)

	chain, err = FieldFromConfig("fx", config.FieldConfig{
		Primary: config.SourceConfig{Kind: config.SourceKindJSON, Name: "investing", URL: "http://a", Path: "p"},
	}, noopLogger())
	require.NoError(t, err)
	assert.Nil(t, chain.fallback)
}
