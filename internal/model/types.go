// Package model defines the core data types shared by every stage of the
// enrichment pipeline: raw chain data, resolved signatures, traces, and the
// final EnrichedTransaction consumed by the filter/sort engine and by output
// formatting.
package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// InputByteStats summarizes the shape of a transaction's calldata, mirroring
// the histogram columns carried by the original columnar extracts
// (n_input_bytes / n_input_zero_bytes / n_input_nonzero_bytes).
type InputByteStats struct {
	Total    int
	Zero     int
	Nonzero  int
}

// RawTx is a single transaction as read from either RPC or the columnar
// cache, before any enrichment. Index is unique within its block and equals
// the transaction's position in consensus order.
type RawTx struct {
	Hash                 common.Hash
	Index                int
	From                 common.Address
	To                   *common.Address // nil == contract creation
	Value                *big.Int
	Input                []byte
	Nonce                uint64
	GasLimit             uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int // nil if not an EIP-1559 tx
	MaxPriorityFeePerGas *big.Int
	AccessList           []AccessTuple
	BlobVersionedHashes  []common.Hash
	ChainID              uint64
	InputStats           InputByteStats
}

// AccessTuple is a single EIP-2930 access-list entry.
type AccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// Receipt carries the fields the pipeline needs out of a transaction
// receipt. A receipt may be legitimately absent (position-0 system
// transactions on some L2 chains) — callers must treat a missing receipt as
// "skip enrichment of cost fields", not an error.
type Receipt struct {
	Success            bool
	EffectiveGasPrice  *big.Int
	GasUsed            uint64
}

// RawLog is an event log in block order. TxIndex references a position in
// the owning RawBlock's Transactions slice.
type RawLog struct {
	TxIndex int
	LogIndex int
	Address  common.Address
	Topics   []common.Hash // 0..4 entries, Topics[0] is the event signature hash
	Data     []byte
}

// RawBlock is the normalized output of BlockFetcher, regardless of source
// (RPC or columnar cache). It is immutable once constructed: a fetcher
// builds the whole struct, nothing mutates it afterward.
type RawBlock struct {
	Number         uint64
	Timestamp      uint64
	Beneficiary    common.Address
	BaseFee        *big.Int
	GasLimit       uint64
	Difficulty     *big.Int
	ExcessBlobGas  *uint64
	Transactions   []RawTx
	Logs           []RawLog
}

// BlockContext feeds the local EVM (RPC and local-fork backends alike use it
// to reconstruct a block's execution environment without needing the full
// consensus header).
type BlockContext struct {
	Number        uint64
	Timestamp     uint64
	Beneficiary   common.Address
	Difficulty    *big.Int
	GasLimit      uint64
	BaseFee       *big.Int
	ExcessBlobGas *uint64
	BlobGasPrice  *big.Int
}

// FromRawBlock derives the BlockContext a trace backend needs from a fetched
// block.
func FromRawBlock(b *RawBlock) BlockContext {
	return BlockContext{
		Number:        b.Number,
		Timestamp:     b.Timestamp,
		Beneficiary:   b.Beneficiary,
		Difficulty:    b.Difficulty,
		GasLimit:      b.GasLimit,
		BaseFee:       b.BaseFee,
		ExcessBlobGas: b.ExcessBlobGas,
	}
}

// CallFrame is one node of a flattened-or-tree internal call structure
// produced by a trace backend.
type CallFrame struct {
	From  common.Address
	To    *common.Address
	Value *big.Int
	Input []byte
	Output []byte
	Calls []CallFrame
}

// Flatten returns the call tree as a depth-first linear sequence, for
// consumers (coinbase analyzer, `touching` filter) that want a flat list
// rather than a tree.
func (c CallFrame) Flatten() []CallFrame {
	out := []CallFrame{c}
	for _, child := range c.Calls {
		out = append(out, child.Flatten()...)
	}
	return out
}

// StorageSlotDiff is a single (slot, before, after) change. Before/After are
// nil when the slot was absent (all-zero) on that side.
type StorageSlotDiff struct {
	Slot   common.Hash
	Before *common.Hash
	After  *common.Hash
}

// StateDiff maps every touched address to its ordered, non-empty slot
// changes. A slot only appears here if Before != After.
type StateDiff map[common.Address][]StorageSlotDiff

// Opcode is a single struct-log step from the opcode tracer.
type Opcode struct {
	PC           uint64
	Mnemonic     string
	GasCost      uint64
	GasRemaining uint64
}

// ResolvedLog is a RawLog plus its resolved event signature and, for
// recognized ERC-20/UniV2/UniV3 families, an optional symbol and transfer
// amount.
type ResolvedLog struct {
	RawLog
	Signature    string
	Symbol       *string
	ERC20Amount  *big.Int
}

// LogGroup bundles consecutive logs sharing the same source address, in
// first-seen order. See the grouping rule in the package-level docs of
// enrich.GroupLogs.
type LogGroup struct {
	SourceAddress common.Address
	Logs          []ResolvedLog
}

// AddressView is a from-address annotated with its ENS reverse-resolution,
// when available.
type AddressView struct {
	Address common.Address
	ENSName *string
}

// EnrichedTransaction is a RawTx augmented by every pipeline stage that ran.
// Pointer-typed fields are nil when the corresponding stage did not run or
// did not apply; see field docs.
type EnrichedTransaction struct {
	RawTx
	Receipt *Receipt // nil if the receipt could not be fetched

	Signature     string // resolved method name, "<Unknown>", or "<ETH transfer>"
	SignatureHash *[4]byte // first 4 bytes of Input, nil if Input is empty

	FromView AddressView
	ToENS    *string // set when synchronous ENS resolution finds a name for `to`

	LogGroups []LogGroup

	CoinbaseTransfer *big.Int // nil unless tracing ran
	Calls            []CallFrame
	TouchedAccounts  map[common.Address]struct{}
	Opcodes          []Opcode
	StateDiffResult  StateDiff

	// TopMetadata/ShowCalls are display hints: the CLI layer sets
	// TopMetadata from `--top-metadata`, and no command sets ShowCalls. The
	// core does not interpret them beyond carrying them through, matching the
	// upstream tool's MEVTransaction fields.
	TopMetadata bool
	ShowCalls   bool
}

// RealTxCost returns gas_used * effective_gas_price + coinbase_transfer, or
// nil if the receipt is missing.
func (e *EnrichedTransaction) RealTxCost() *big.Int {
	if e.Receipt == nil {
		return nil
	}
	cost := new(big.Int).Mul(e.Receipt.EffectiveGasPrice, new(big.Int).SetUint64(e.Receipt.GasUsed))
	if e.CoinbaseTransfer != nil {
		cost.Add(cost, e.CoinbaseTransfer)
	}
	return cost
}

// RealGasPrice returns RealTxCost / GasUsed, or nil if GasUsed is zero or the
// receipt is missing.
func (e *EnrichedTransaction) RealGasPrice() *big.Int {
	if e.Receipt == nil || e.Receipt.GasUsed == 0 {
		return nil
	}
	cost := e.RealTxCost()
	if cost == nil {
		return nil
	}
	return new(big.Int).Div(cost, new(big.Int).SetUint64(e.Receipt.GasUsed))
}

// GasTxCost returns gas_used * effective_gas_price, or nil if the receipt is
// missing.
func (e *EnrichedTransaction) GasTxCost() *big.Int {
	if e.Receipt == nil {
		return nil
	}
	return new(big.Int).Mul(e.Receipt.EffectiveGasPrice, new(big.Int).SetUint64(e.Receipt.GasUsed))
}

// ERC20TransferSum sums ResolvedLog.ERC20Amount across every log in every
// group whose source address equals token.
func (e *EnrichedTransaction) ERC20TransferSum(token common.Address) *big.Int {
	sum := new(big.Int)
	for _, g := range e.LogGroups {
		if g.SourceAddress != token {
			continue
		}
		for _, l := range g.Logs {
			if l.ERC20Amount != nil {
				sum.Add(sum, l.ERC20Amount)
			}
		}
	}
	return sum
}
