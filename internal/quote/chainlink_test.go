package quote

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedAddress = "0x01435677FB11763550905594A16B645847C1d0F3"

func TestChainlinkMissingConfig(t *testing.T) {
	src := NewChainlink(ChainlinkOptions{Name: "krw_usd"}, noopLogger())
	_, err := src.Resolve(context.Background())
	require.Error(t, err, "rpc url is required")

	src = NewChainlink(ChainlinkOptions{Name: "krw_usd", RPCURL: "http://localhost", Address: "nope"}, noopLogger())
	_, err = src.Resolve(context.Background())
	require.Error(t, err, "aggregator address must be hex")
}

// fakeRPC answers eth_call for decimals() and latestRoundData().
func fakeRPC(t *testing.T, decimals uint8, answer *big.Int) *httptest.Server {
	t.Helper()

	decimalsOut, err := aggregatorABI.Methods["decimals"].Outputs.Pack(decimals)
	require.NoError(t, err)
	roundOut, err := aggregatorABI.Methods["latestRoundData"].Outputs.Pack(
		big.NewInt(1), answer, big.NewInt(0), big.NewInt(0), big.NewInt(1),
	)
	require.NoError(t, err)

	decimalsSel := hexutil.Encode(aggregatorABI.Methods["decimals"].ID)
	roundSel := hexutil.Encode(aggregatorABI.Methods["latestRoundData"].ID)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var call map[string]any
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &call)
		}
		input, _ := call["input"].(string)
		if input == "" {
			input, _ = call["data"].(string)
		}

		var result string
		switch input {
		case decimalsSel:
			result = hexutil.Encode(decimalsOut)
		case roundSel:
			result = hexutil.Encode(roundOut)
		default:
			result = "0x"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChainlinkResolve(t *testing.T) {
	srv := fakeRPC(t, 8, big.NewInt(135020000000))

	src := NewChainlink(ChainlinkOptions{Name: "usd_krw", RPCURL: srv.URL, Address: feedAddress}, noopLogger())
	defer src.Close()

	v, err := src.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1350.2, v)

	// decimals is cached after the first call
	v, err = src.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1350.2, v)
}

func TestChainlinkNonPositiveAnswer(t *testing.T) {
	srv := fakeRPC(t, 8, big.NewInt(0))

	src := NewChainlink(ChainlinkOptions{Name: "usd_krw", RPCURL: srv.URL, Address: feedAddress}, noopLogger())
	defer src.Close()

	_, err := src.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNoValue)
}
