package enrich

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/model"
)

func TestDefaultCoinbaseAnalyzerFindsFirstMatch(t *testing.T) {
	beneficiary := common.HexToAddress("0xcc")
	other := common.HexToAddress("0xdd")

	calls := []model.CallFrame{
		{To: &other, Value: big.NewInt(1), Calls: []model.CallFrame{
			{To: &beneficiary, Value: big.NewInt(100)},
			{To: &beneficiary, Value: big.NewInt(200)},
		}},
	}

	got := DefaultCoinbaseAnalyzer{}.CoinbaseTransfer(beneficiary, calls)
	require.Equal(t, big.NewInt(100), got)
}

func TestDefaultCoinbaseAnalyzerNoMatch(t *testing.T) {
	beneficiary := common.HexToAddress("0xcc")
	other := common.HexToAddress("0xdd")

	calls := []model.CallFrame{{To: &other, Value: big.NewInt(1)}}

	got := DefaultCoinbaseAnalyzer{}.CoinbaseTransfer(beneficiary, calls)
	require.Equal(t, big.NewInt(0), got)
}

func TestDefaultCoinbaseAnalyzerNilValueSkipped(t *testing.T) {
	beneficiary := common.HexToAddress("0xcc")
	calls := []model.CallFrame{{To: &beneficiary, Value: nil}}

	got := DefaultCoinbaseAnalyzer{}.CoinbaseTransfer(beneficiary, calls)
	require.Equal(t, big.NewInt(0), got)
}
