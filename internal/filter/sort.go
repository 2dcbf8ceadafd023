package filter

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/model"
)

// SortKey names a sortable quantity from §4.6.
type SortKey int

const (
	SortGasPrice SortKey = iota
	SortGasUsed
	SortTxCost        // gas_used * gas_price
	SortFullTxCost    // real_tx_cost, requires tracing
	SortERC20Transfer // erc20_transfer(token), requires Token to be set
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// SortSpec parametrizes Sort; Token is only consulted for SortERC20Transfer.
type SortSpec struct {
	Key       SortKey
	Direction Direction
	Token     common.Address
}

func (s SortSpec) value(tx *model.EnrichedTransaction) *big.Int {
	switch s.Key {
	case SortGasPrice:
		return tx.GasPrice
	case SortGasUsed:
		if tx.Receipt == nil {
			return nil
		}
		return new(big.Int).SetUint64(tx.Receipt.GasUsed)
	case SortTxCost:
		return tx.GasTxCost()
	case SortFullTxCost:
		return tx.RealTxCost()
	case SortERC20Transfer:
		return tx.ERC20TransferSum(s.Token)
	default:
		return nil
	}
}

// Sort orders txs by spec in place and returns it, breaking ties by
// tx_hash ascending for a deterministic total order (§8). A nil sort value
// (e.g. missing receipt) sorts as if it were zero, so such entries group at
// one end rather than panicking or reordering unpredictably.
func Sort(txs []model.EnrichedTransaction, spec SortSpec) []model.EnrichedTransaction {
	sort.SliceStable(txs, func(i, j int) bool {
		vi, vj := spec.value(&txs[i]), spec.value(&txs[j])
		if vi == nil {
			vi = big.NewInt(0)
		}
		if vj == nil {
			vj = big.NewInt(0)
		}
		cmp := vi.Cmp(vj)
		if cmp == 0 {
			return bytes.Compare(txs[i].Hash.Bytes(), txs[j].Hash.Bytes()) < 0
		}
		if spec.Direction == Descending {
			return cmp > 0
		}
		return cmp < 0
	})
	return txs
}
