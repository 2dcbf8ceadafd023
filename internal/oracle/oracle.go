// Package oracle reads a chain's native-token/USD price from its
// price-oracle address (§4.5 step 7): a Chainlink-style aggregator exposing
// `latestAnswer() returns (int256)`, scaled by 10^8. Grounded on the
// oracle-address table in evm_chain.rs and ethclient.CallContract's ABI
// call-data convention.
package oracle

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/model"
)

// latestAnswerSelector is the 4-byte selector for `latestAnswer()`.
var latestAnswerSelector = []byte{0x50, 0xd2, 0x5b, 0xcd}

// CallContractFunc abstracts the eth_call dependency so the oracle can be
// tested without a live client; *ethclient.Client satisfies it.
type CallContractFunc func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

// Client reads a native-token/USD price once per block and caches it.
type Client struct {
	call CallContractFunc

	cachedBlock uint64
	cachedPrice float64
	hasCached   bool
}

func New(call CallContractFunc) *Client {
	return &Client{call: call}
}

// PriceUSD returns the native-token/USD price at blockNumber, reusing the
// cached value if blockNumber matches the last lookup (§4.5 step 7: "once
// per block"). Returns (0, false, nil) if oracleAddr is nil (chain has no
// configured oracle) — this is not an error, just "no USD pricing".
func (c *Client) PriceUSD(ctx context.Context, oracleAddr *common.Address, blockNumber uint64) (float64, bool, error) {
	if oracleAddr == nil {
		return 0, false, nil
	}
	if c.hasCached && c.cachedBlock == blockNumber {
		return c.cachedPrice, true, nil
	}

	out, err := c.call(ctx, ethereum.CallMsg{To: oracleAddr, Data: latestAnswerSelector}, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return 0, false, model.NewError(model.KindOracle, "oracle.PriceUSD", err)
	}
	if len(out) < 32 {
		return 0, false, model.NewError(model.KindOracle, "oracle.PriceUSD", fmt.Errorf("short return data: %d bytes", len(out)))
	}

	answer := new(big.Int).SetBytes(out[:32])
	// Chainlink answers are signed; treat the high bit as sign per two's
	// complement over 256 bits.
	if out[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 256)
		answer.Sub(answer, mod)
	}

	price := new(big.Float).Quo(new(big.Float).SetInt(answer), big.NewFloat(1e8))
	priceF, _ := price.Float64()

	c.cachedBlock = blockNumber
	c.cachedPrice = priceF
	c.hasCached = true
	return priceF, true, nil
}
