package oracle

import (
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestPriceUSDNoOracleConfigured(t *testing.T) {
	c := New(func(ctx context.Context, call ethereum.CallMsg, bn *big.Int) ([]byte, error) {
		t.Fatal("should not be called")
		return nil, nil
	})
	price, ok, err := c.PriceUSD(context.Background(), nil, 100)
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, price)
}

func TestPriceUSDParsesPositiveAnswer(t *testing.T) {
	calls := 0
	c := New(func(ctx context.Context, call ethereum.CallMsg, bn *big.Int) ([]byte, error) {
		calls++
		// 3500.12345678 * 1e8 = 350012345678
		v := big.NewInt(350012345678)
		out := make([]byte, 32)
		v.FillBytes(out)
		return out, nil
	})
	addr := common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b841")
	price, ok, err := c.PriceUSD(context.Background(), &addr, 100)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 3500.12345678, price, 0.0001)

	// Same block reuses the cache.
	_, _, err = c.PriceUSD(context.Background(), &addr, 100)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestPriceUSDCacheMissesOnNewBlock(t *testing.T) {
	calls := 0
	c := New(func(ctx context.Context, call ethereum.CallMsg, bn *big.Int) ([]byte, error) {
		calls++
		out := make([]byte, 32)
		big.NewInt(100000000).FillBytes(out)
		return out, nil
	})
	addr := common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b841")
	_, _, _ = c.PriceUSD(context.Background(), &addr, 100)
	_, _, _ = c.PriceUSD(context.Background(), &addr, 101)
	require.Equal(t, 2, calls)
}
