package forkstate

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/model"
)

func TestNewBlockEnvCopiesFields(t *testing.T) {
	bc := model.BlockContext{Number: 100, Timestamp: 1000, GasLimit: 30_000_000, BaseFee: big.NewInt(7)}
	env := NewBlockEnv(bc)
	require.Equal(t, uint64(100), env.Number)
	require.Equal(t, big.NewInt(7), env.BaseFee)
}

func TestEffectiveGasPriceLegacyTx(t *testing.T) {
	tx := TxEnv{GasPrice: big.NewInt(50)}
	require.Equal(t, big.NewInt(50), tx.EffectiveGasPrice(big.NewInt(10)))
}

func TestEffectiveGasPriceEIP1559CappedByTip(t *testing.T) {
	tx := TxEnv{MaxFeePerGas: big.NewInt(100), MaxPriorityFeePerGas: big.NewInt(2)}
	// feeCap-baseFee = 90, tip = 2, so effective = baseFee + 2 = 12
	require.Equal(t, big.NewInt(12), tx.EffectiveGasPrice(big.NewInt(10)))
}

func TestEffectiveGasPriceEIP1559CappedByFeeCap(t *testing.T) {
	tx := TxEnv{MaxFeePerGas: big.NewInt(15), MaxPriorityFeePerGas: big.NewInt(20)}
	// feeCap-baseFee = 5 < tip 20, so effective = baseFee + 5 = 15
	require.Equal(t, big.NewInt(15), tx.EffectiveGasPrice(big.NewInt(10)))
}
