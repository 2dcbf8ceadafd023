package scheduler

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/enrich"
	"github.com/mevlog-go/mevlog/internal/filter"
	"github.com/mevlog-go/mevlog/internal/model"
)

type fakeFetcher struct {
	blocks map[uint64]*model.RawBlock
}

func (f *fakeFetcher) HeadBlockNumber(ctx context.Context) (uint64, error) { return 100, nil }
func (f *fakeFetcher) FetchBlock(ctx context.Context, number uint64) (*model.RawBlock, error) {
	return f.blocks[number], nil
}

type fakeReceiptFetcher struct {
	receipts map[common.Hash]*model.Receipt
}

func (f *fakeReceiptFetcher) FetchReceipts(ctx context.Context, hashes []common.Hash) (map[common.Hash]*model.Receipt, error) {
	return f.receipts, nil
}

type fakeMethodStore struct{}

func (fakeMethodStore) FindMethod(selector [4]byte) (string, bool) { return "", false }

type fakeEventStore struct{}

func (fakeEventStore) FindEvent(topic0 [32]byte) (string, bool) { return "", false }

type fakeTraceProvider struct {
	label   string
	results map[int]TraceResult
}

func (f *fakeTraceProvider) BackendLabel() string { return f.label }
func (f *fakeTraceProvider) Trace(ctx context.Context, block *model.RawBlock) (map[int]TraceResult, []error) {
	return f.results, make([]error, len(block.Transactions))
}

func newTestBlock() *model.RawBlock {
	return &model.RawBlock{
		Number:      42,
		Beneficiary: common.HexToAddress("0xcc"),
		Transactions: []model.RawTx{
			{Hash: common.HexToHash("0x01"), Index: 0, From: common.HexToAddress("0x01"), GasPrice: big.NewInt(10)},
			{Hash: common.HexToHash("0x02"), Index: 1, From: common.HexToAddress("0x02"), GasPrice: big.NewInt(20)},
		},
	}
}

func TestProcessBlockFiltersAndSorts(t *testing.T) {
	block := newTestBlock()
	fetcher := &fakeFetcher{blocks: map[uint64]*model.RawBlock{42: block}}
	receipts := &fakeReceiptFetcher{receipts: map[common.Hash]*model.Receipt{
		common.HexToHash("0x01"): {Success: true, GasUsed: 21000, EffectiveGasPrice: big.NewInt(10)},
		common.HexToHash("0x02"): {Success: true, GasUsed: 21000, EffectiveGasPrice: big.NewInt(20)},
	}}

	s := &Scheduler{
		Chain:   chains.Get(1),
		Fetcher: fetcher,
		Pipeline: &enrich.Pipeline{
			Chain:       chains.Get(1),
			MethodStore: fakeMethodStore{},
			EventStore:  fakeEventStore{},
			Receipts:    receipts,
		},
		Engine:  filter.Engine{},
		HasSort: true,
		Sort:    filter.SortSpec{Key: filter.SortGasPrice, Direction: filter.Descending},
	}

	result, err := s.ProcessBlock(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	require.Equal(t, common.HexToHash("0x02"), result.Transactions[0].Hash) // higher gas price first
}

func TestProcessBlockRunsTraceWhenFilterRequiresIt(t *testing.T) {
	block := newTestBlock()
	fetcher := &fakeFetcher{blocks: map[uint64]*model.RawBlock{42: block}}
	receipts := &fakeReceiptFetcher{receipts: map[common.Hash]*model.Receipt{}}

	touching := common.HexToAddress("0xdeadbeef")
	tracer := &fakeTraceProvider{
		label: "revm",
		results: map[int]TraceResult{
			0: {Calls: []model.CallFrame{{From: common.HexToAddress("0x01"), To: &touching}}},
		},
	}

	s := &Scheduler{
		Chain:   chains.Get(1),
		Fetcher: fetcher,
		Pipeline: &enrich.Pipeline{
			Chain:       chains.Get(1),
			MethodStore: fakeMethodStore{},
			EventStore:  fakeEventStore{},
			Receipts:    receipts,
		},
		Engine:        filter.Engine{Touching: &touching},
		TraceProvider: tracer,
	}

	result, err := s.ProcessBlock(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	require.Equal(t, common.HexToHash("0x01"), result.Transactions[0].Hash)
}

func TestProcessBlockSkipsTraceWhenNotNeeded(t *testing.T) {
	block := newTestBlock()
	fetcher := &fakeFetcher{blocks: map[uint64]*model.RawBlock{42: block}}
	receipts := &fakeReceiptFetcher{receipts: map[common.Hash]*model.Receipt{}}

	s := &Scheduler{
		Chain:   chains.Get(1),
		Fetcher: fetcher,
		Pipeline: &enrich.Pipeline{
			Chain:       chains.Get(1),
			MethodStore: fakeMethodStore{},
			EventStore:  fakeEventStore{},
			Receipts:    receipts,
		},
		Engine: filter.Engine{},
	}

	result, err := s.ProcessBlock(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	require.Nil(t, result.Transactions[0].Calls)
}

func TestProcessRangeStopsOnCancelledContext(t *testing.T) {
	block := newTestBlock()
	fetcher := &fakeFetcher{blocks: map[uint64]*model.RawBlock{42: block}}
	s := &Scheduler{
		Chain:   chains.Get(1),
		Fetcher: fetcher,
		Pipeline: &enrich.Pipeline{
			Chain:       chains.Get(1),
			MethodStore: fakeMethodStore{},
			EventStore:  fakeEventStore{},
			Receipts:    &fakeReceiptFetcher{receipts: map[common.Hash]*model.Receipt{}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := s.ProcessRange(ctx, []uint64{42, 41, 40}, func(*BlockResult) error {
		calls++
		return nil
	})
	require.Error(t, err)
	require.Equal(t, 0, calls)
}

func TestEnqueueENSLookupsDedupesAndIsBestEffort(t *testing.T) {
	to := common.HexToAddress("0x02")
	s := &Scheduler{ENSQueue: make(chan common.Address, 1)}
	txs := []model.EnrichedTransaction{
		{RawTx: model.RawTx{From: common.HexToAddress("0x01"), To: &to}},
	}

	s.enqueueENSLookups(txs)
	require.Len(t, s.ENSQueue, 1) // only `from` fit; `to` dropped, queue full, never blocks
}

func TestEnqueueSymbolLookupsOnlyFlaggedFamilies(t *testing.T) {
	token := common.HexToAddress("0xaa")
	s := &Scheduler{SymbolQueue: make(chan common.Address, 4)}
	txs := []model.EnrichedTransaction{
		{LogGroups: []model.LogGroup{{
			SourceAddress: token,
			Logs:          []model.ResolvedLog{{Signature: "Transfer(address,address,uint256)"}},
		}}},
	}

	s.enqueueSymbolLookups(txs)
	require.Len(t, s.SymbolQueue, 1)
	require.Equal(t, token, <-s.SymbolQueue)
}
