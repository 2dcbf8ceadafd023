package forkstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/model"
)

// BlockEnv is the subset of model.BlockContext the local EVM needs per
// block, named after revm_tracing.rs's RevmBlockContext.
type BlockEnv struct {
	Number        uint64
	Timestamp     uint64
	Coinbase      common.Address
	Difficulty    *big.Int
	GasLimit      uint64
	BaseFee       *big.Int
	ExcessBlobGas *uint64
	BlobGasPrice  *big.Int
}

// NewBlockEnv derives a BlockEnv from the block context produced by
// BlockFetcher.
func NewBlockEnv(bc model.BlockContext) BlockEnv {
	return BlockEnv{
		Number:        bc.Number,
		Timestamp:     bc.Timestamp,
		Coinbase:      bc.Beneficiary,
		Difficulty:    bc.Difficulty,
		GasLimit:      bc.GasLimit,
		BaseFee:       bc.BaseFee,
		ExcessBlobGas: bc.ExcessBlobGas,
		BlobGasPrice:  bc.BlobGasPrice,
	}
}

// TxEnv is the subset of model.RawTx needed to build a transaction message
// for the EVM, named after revm_tracing.rs's apply_tx_env.
type TxEnv struct {
	From                 common.Address
	To                   *common.Address
	Value                *big.Int
	Input                []byte
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                uint64
	AccessList           []model.AccessTuple
}

// NewTxEnv derives a TxEnv from a RawTx.
func NewTxEnv(tx model.RawTx) TxEnv {
	return TxEnv{
		From:                 tx.From,
		To:                   tx.To,
		Value:                tx.Value,
		Input:                tx.Input,
		GasLimit:             tx.GasLimit,
		GasPrice:             tx.GasPrice,
		MaxFeePerGas:         tx.MaxFeePerGas,
		MaxPriorityFeePerGas: tx.MaxPriorityFeePerGas,
		Nonce:                tx.Nonce,
		AccessList:           tx.AccessList,
	}
}

// EffectiveGasPrice returns the gas price the tx actually paid given the
// block's base fee: BaseFee + min(tip, feeCap - baseFee) for EIP-1559 txs,
// or the legacy GasPrice otherwise.
func (t TxEnv) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	if t.MaxFeePerGas == nil || baseFee == nil {
		return t.GasPrice
	}
	tip := new(big.Int).Sub(t.MaxFeePerGas, baseFee)
	if t.MaxPriorityFeePerGas != nil && tip.Cmp(t.MaxPriorityFeePerGas) > 0 {
		tip = t.MaxPriorityFeePerGas
	}
	return new(big.Int).Add(baseFee, tip)
}
