package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"marketwatch/internal/failure"
)

const aggregatorABIJSON = `[
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}
]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// ChainlinkOptions parameterise the on-chain price feed source.
type ChainlinkOptions struct {
	Name    string
	RPCURL  string
	Address string
	Timeout time.Duration
}

// Chainlink reads the latest answer of a Chainlink aggregator over Ethereum RPC.
type Chainlink struct {
	opts      ChainlinkOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	decimals  int32
	clientMux sync.Mutex
}

// NewChainlink builds a new price feed source.
func NewChainlink(opts ChainlinkOptions, logger zerolog.Logger) *Chainlink {
	return &Chainlink{
		opts:     opts,
		logger:   logger.With().Str("component", "quote_chainlink").Str("source", opts.Name).Logger(),
		decimals: -1,
	}
}

func (c *Chainlink) Name() string { return c.opts.Name }

// Resolve returns the feed's latest answer scaled by its decimals.
func (c *Chainlink) Resolve(ctx context.Context) (float64, error) {
	op := "resolve " + c.opts.Name
	if c.opts.RPCURL == "" {
		return 0, failure.Parse(op, errors.New("ethereum rpc url not configured"))
	}
	if !common.IsHexAddress(c.opts.Address) {
		return 0, failure.Parse(op, fmt.Errorf("invalid aggregator address %q", c.opts.Address))
	}

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return 0, failure.Transport(op, err)
	}

	addr := common.HexToAddress(c.opts.Address)

	decimals, err := c.feedDecimals(ctx, client, addr)
	if err != nil {
		return 0, err
	}

	outputs, err := c.call(ctx, client, addr, "latestRoundData")
	if err != nil {
		return 0, err
	}
	if len(outputs) != 5 {
		return 0, failure.Parse(op, errors.New("unexpected latestRoundData response"))
	}
	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return 0, failure.Parse(op, errors.New("failed to decode latestRoundData answer"))
	}
	if answer.Sign() <= 0 {
		return 0, failure.Parse(op, fmt.Errorf("%w: answer %s", ErrNoValue, answer.String()))
	}

	value := decimal.NewFromBigInt(answer, -decimals).InexactFloat64()
	c.logger.Debug().Float64("value", value).Msg("quote resolved")
	return value, nil
}

func (c *Chainlink) feedDecimals(ctx context.Context, client *ethclient.Client, addr common.Address) (int32, error) {
	c.clientMux.Lock()
	cached := c.decimals
	c.clientMux.Unlock()
	if cached >= 0 {
		return cached, nil
	}

	outputs, err := c.call(ctx, client, addr, "decimals")
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, failure.Parse("resolve "+c.opts.Name, errors.New("unexpected decimals response"))
	}
	d, ok := outputs[0].(uint8)
	if !ok {
		return 0, failure.Parse("resolve "+c.opts.Name, errors.New("failed to decode decimals output"))
	}

	c.clientMux.Lock()
	c.decimals = int32(d)
	c.clientMux.Unlock()
	return int32(d), nil
}

func (c *Chainlink) call(ctx context.Context, client *ethclient.Client, addr common.Address, method string) ([]interface{}, error) {
	op := "resolve " + c.opts.Name
	payload, err := aggregatorABI.Pack(method)
	if err != nil {
		return nil, failure.Parse(op, err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, failure.Transport(op, fmt.Errorf("call %s: %w", method, err))
	}

	outputs, err := aggregatorABI.Unpack(method, res)
	if err != nil {
		return nil, failure.Parse(op, fmt.Errorf("unpack %s: %w", method, err))
	}
	return outputs, nil
}

func (c *Chainlink) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Close releases the RPC client.
func (c *Chainlink) Close() {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

var _ Source = (*Chainlink)(nil)
