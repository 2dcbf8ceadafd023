package filter

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/model"
)

func hashTx(gasPrice int64, hash string) model.EnrichedTransaction {
	return model.EnrichedTransaction{
		RawTx: model.RawTx{GasPrice: big.NewInt(gasPrice), Hash: common.HexToHash(hash)},
	}
}

func TestSortAscendingByGasPrice(t *testing.T) {
	txs := []model.EnrichedTransaction{
		hashTx(300, "0x01"),
		hashTx(100, "0x02"),
		hashTx(200, "0x03"),
	}
	out := Sort(txs, SortSpec{Key: SortGasPrice, Direction: Ascending})
	require.Equal(t, []int64{100, 200, 300}, []int64{out[0].GasPrice.Int64(), out[1].GasPrice.Int64(), out[2].GasPrice.Int64()})
}

func TestSortDescendingByGasPrice(t *testing.T) {
	txs := []model.EnrichedTransaction{
		hashTx(100, "0x02"),
		hashTx(300, "0x01"),
		hashTx(200, "0x03"),
	}
	out := Sort(txs, SortSpec{Key: SortGasPrice, Direction: Descending})
	require.Equal(t, []int64{300, 200, 100}, []int64{out[0].GasPrice.Int64(), out[1].GasPrice.Int64(), out[2].GasPrice.Int64()})
}

// TestSortTieBreakTxHashAscending verifies §8: ties are broken by tx_hash
// ascending regardless of sort direction.
func TestSortTieBreakTxHashAscending(t *testing.T) {
	txs := []model.EnrichedTransaction{
		hashTx(100, "0x03"),
		hashTx(100, "0x01"),
		hashTx(100, "0x02"),
	}
	out := Sort(txs, SortSpec{Key: SortGasPrice, Direction: Ascending})
	require.Equal(t, common.HexToHash("0x01"), out[0].Hash)
	require.Equal(t, common.HexToHash("0x02"), out[1].Hash)
	require.Equal(t, common.HexToHash("0x03"), out[2].Hash)

	outDesc := Sort(txs, SortSpec{Key: SortGasPrice, Direction: Descending})
	require.Equal(t, common.HexToHash("0x01"), outDesc[0].Hash)
	require.Equal(t, common.HexToHash("0x02"), outDesc[1].Hash)
	require.Equal(t, common.HexToHash("0x03"), outDesc[2].Hash)
}

func TestSortERC20TransferSum(t *testing.T) {
	token := common.HexToAddress("0xaa")
	mk := func(amount int64, hash string) model.EnrichedTransaction {
		return model.EnrichedTransaction{
			RawTx: model.RawTx{Hash: common.HexToHash(hash)},
			LogGroups: []model.LogGroup{{
				SourceAddress: token,
				Logs: []model.ResolvedLog{{ERC20Amount: big.NewInt(amount)}},
			}},
		}
	}
	txs := []model.EnrichedTransaction{mk(50, "0x01"), mk(10, "0x02")}
	out := Sort(txs, SortSpec{Key: SortERC20Transfer, Direction: Ascending, Token: token})
	require.Equal(t, int64(10), out[0].ERC20TransferSum(token).Int64())
}
