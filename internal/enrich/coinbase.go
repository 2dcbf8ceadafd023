package enrich

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/model"
)

// DefaultCoinbaseAnalyzer finds the coinbase bribe the way the upstream tool
// does in coinbase_bribe.rs: walk the flattened call tree and return the
// value of the first call whose recipient is the block's beneficiary, or
// zero if none does. Only the first match counts, not a sum, since a
// validator payment is typically a single direct transfer.
type DefaultCoinbaseAnalyzer struct{}

func (DefaultCoinbaseAnalyzer) CoinbaseTransfer(beneficiary common.Address, calls []model.CallFrame) *big.Int {
	for _, root := range calls {
		for _, f := range root.Flatten() {
			if f.To != nil && *f.To == beneficiary && f.Value != nil {
				return f.Value
			}
		}
	}
	return big.NewInt(0)
}
