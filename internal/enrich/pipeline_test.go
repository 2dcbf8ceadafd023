package enrich

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/model"
)

type fakeReceiptFetcher struct {
	receipts map[common.Hash]*model.Receipt
}

func (f fakeReceiptFetcher) FetchReceipts(ctx context.Context, hashes []common.Hash) (map[common.Hash]*model.Receipt, error) {
	out := make(map[common.Hash]*model.Receipt, len(hashes))
	for _, h := range hashes {
		if r, ok := f.receipts[h]; ok {
			out[h] = r
		}
	}
	return out, nil
}

type fakeENSResolver struct {
	names map[common.Address]string
}

func (f fakeENSResolver) ReverseLookupSync(ctx context.Context, addr common.Address) (string, bool) {
	name, ok := f.names[addr]
	return name, ok
}

func TestEnrichBlockAttachesReceiptsAndGroupsLogs(t *testing.T) {
	from := common.HexToAddress("0xaa")
	to := common.HexToAddress("0xbb")
	hash := common.HexToHash("0x01")

	block := &model.RawBlock{
		Number: 100,
		Transactions: []model.RawTx{
			{Hash: hash, Index: 0, From: from, To: &to},
		},
		Logs: []model.RawLog{
			{TxIndex: 0, LogIndex: 0, Address: to},
			{TxIndex: 0, LogIndex: 1, Address: to},
		},
	}

	receipts := fakeReceiptFetcher{receipts: map[common.Hash]*model.Receipt{
		hash: {Success: true, EffectiveGasPrice: big.NewInt(10), GasUsed: 21000},
	}}

	p := &Pipeline{
		Chain:       chains.Get(1),
		MethodStore: fakeMethodStore{},
		EventStore:  fakeEventStore{},
		Receipts:    receipts,
	}

	enriched, err := p.EnrichBlock(context.Background(), block, true, false)
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	require.Equal(t, ETHTransferSignature, enriched[0].Signature)
	require.NotNil(t, enriched[0].Receipt)
	require.Equal(t, uint64(21000), enriched[0].Receipt.GasUsed)
	require.Len(t, enriched[0].LogGroups, 1)
	require.Len(t, enriched[0].LogGroups[0].Logs, 2)
}

func TestEnrichBlockSkipsReceiptsWhenNotNeeded(t *testing.T) {
	hash := common.HexToHash("0x01")
	block := &model.RawBlock{
		Transactions: []model.RawTx{{Hash: hash, Index: 0}},
	}
	p := &Pipeline{Chain: chains.Get(1), MethodStore: fakeMethodStore{}, EventStore: fakeEventStore{}}

	enriched, err := p.EnrichBlock(context.Background(), block, false, false)
	require.NoError(t, err)
	require.Nil(t, enriched[0].Receipt)
}

func TestEnrichBlockSyncENSResolution(t *testing.T) {
	from := common.HexToAddress("0xaa")
	to := common.HexToAddress("0xbb")
	hash := common.HexToHash("0x01")

	block := &model.RawBlock{
		Transactions: []model.RawTx{{Hash: hash, Index: 0, From: from, To: &to}},
	}

	p := &Pipeline{
		Chain:       chains.Get(1),
		MethodStore: fakeMethodStore{},
		EventStore:  fakeEventStore{},
		Receipts:    fakeReceiptFetcher{},
		ENS: fakeENSResolver{names: map[common.Address]string{
			from: "alice.eth",
			to:   "bob.eth",
		}},
	}

	enriched, err := p.EnrichBlock(context.Background(), block, false, true)
	require.NoError(t, err)
	require.NotNil(t, enriched[0].FromView.ENSName)
	require.Equal(t, "alice.eth", *enriched[0].FromView.ENSName)
	require.NotNil(t, enriched[0].ToENS)
	require.Equal(t, "bob.eth", *enriched[0].ToENS)
}

type fakeCoinbaseAnalyzer struct{ amount *big.Int }

func (f fakeCoinbaseAnalyzer) CoinbaseTransfer(beneficiary common.Address, calls []model.CallFrame) *big.Int {
	return f.amount
}

func TestApplyTracePopulatesTouchedAccountsAndCoinbase(t *testing.T) {
	beneficiary := common.HexToAddress("0xcc")
	from := common.HexToAddress("0xaa")
	to := common.HexToAddress("0xbb")

	calls := []model.CallFrame{
		{From: from, To: &to, Calls: []model.CallFrame{
			{From: to, To: &beneficiary},
		}},
	}

	e := &model.EnrichedTransaction{}
	ApplyTrace(e, beneficiary, calls, nil, nil, fakeCoinbaseAnalyzer{amount: big.NewInt(500)})

	require.Contains(t, e.TouchedAccounts, from)
	require.Contains(t, e.TouchedAccounts, to)
	require.Contains(t, e.TouchedAccounts, beneficiary)
	require.Equal(t, big.NewInt(500), e.CoinbaseTransfer)
}
