package enrich

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/model"
	"github.com/mevlog-go/mevlog/internal/tracerpc"
)

// ReceiptFetcher is the subset of rpcsource.Client used here.
type ReceiptFetcher interface {
	FetchReceipts(ctx context.Context, hashes []common.Hash) (map[common.Hash]*model.Receipt, error)
}

// ENSResolver is the subset of ensresolve.Resolver used here.
type ENSResolver interface {
	ReverseLookupSync(ctx context.Context, addr common.Address) (string, bool)
}

// CoinbaseAnalyzer derives the value transferred to the block's beneficiary
// outside of the base gas fee, by inspecting a transaction's call trace
// (§4.5 step 5). Implemented by DefaultCoinbaseAnalyzer; nil when no trace
// ran.
type CoinbaseAnalyzer interface {
	CoinbaseTransfer(beneficiary common.Address, calls []model.CallFrame) *big.Int
}

// Pipeline runs the signature/log/receipt/ENS enrichment stages described in
// §4.5. Tracing (calls, opcodes, state diffs, coinbase transfer) is layered
// in separately by the scheduler once a trace backend result is available,
// since whether tracing runs at all is a filter/flag decision made above
// this package.
type Pipeline struct {
	Chain        chains.Chain
	MethodStore  MethodSignatureStore
	EventStore   EventSignatureStore
	Receipts     ReceiptFetcher
	ENS          ENSResolver // nil disables ENS resolution entirely
	ENSSyncNames map[string]bool // queried names that must resolve synchronously (§4.5.1)
}

// EnrichBlock turns a RawBlock into a list of EnrichedTransaction in
// transaction order. Receipts are fetched once for the whole block
// (concurrency-capped inside Receipts). ENS resolution for `from` addresses
// runs synchronously here only when SelectMode chose Sync; otherwise callers
// are expected to enqueue the address on a background worker themselves.
func (p *Pipeline) EnrichBlock(ctx context.Context, block *model.RawBlock, needReceipts bool, ensSync bool) ([]model.EnrichedTransaction, error) {
	logsByTx := make(map[int][]model.RawLog, len(block.Transactions))
	for _, l := range block.Logs {
		logsByTx[l.TxIndex] = append(logsByTx[l.TxIndex], l)
	}

	var receipts map[common.Hash]*model.Receipt
	if needReceipts {
		hashes := make([]common.Hash, len(block.Transactions))
		for i, tx := range block.Transactions {
			hashes[i] = tx.Hash
		}
		r, err := p.Receipts.FetchReceipts(ctx, hashes)
		if err != nil {
			return nil, err
		}
		receipts = r
	}

	out := make([]model.EnrichedTransaction, len(block.Transactions))
	for i, tx := range block.Transactions {
		out[i] = p.enrichTx(ctx, tx, logsByTx[tx.Index], receipts, ensSync)
	}
	return out, nil
}

func (p *Pipeline) enrichTx(ctx context.Context, tx model.RawTx, rawLogs []model.RawLog, receipts map[common.Hash]*model.Receipt, ensSync bool) model.EnrichedTransaction {
	sig, selector := ResolveMethodSignature(p.Chain, tx, p.MethodStore)

	resolvedLogs := make([]model.ResolvedLog, len(rawLogs))
	for i, l := range rawLogs {
		resolvedLogs[i] = ResolveLog(l, p.EventStore)
	}

	e := model.EnrichedTransaction{
		RawTx:         tx,
		Signature:     sig,
		SignatureHash: selector,
		LogGroups:     GroupLogs(resolvedLogs),
		FromView:      model.AddressView{Address: tx.From},
	}

	if receipts != nil {
		if r, ok := receipts[tx.Hash]; ok {
			e.Receipt = r
		}
	}

	if p.ENS != nil && ensSync {
		if name, ok := p.ENS.ReverseLookupSync(ctx, tx.From); ok {
			e.FromView.ENSName = &name
		}
		if tx.To != nil {
			if name, ok := p.ENS.ReverseLookupSync(ctx, *tx.To); ok {
				e.ToENS = &name
			}
		}
	}

	return e
}

// ApplyTrace layers tracer-derived fields (calls, touched accounts, opcodes,
// state diff, coinbase transfer) onto an already-enriched transaction. This
// is a separate step from EnrichBlock because the scheduler only runs a
// trace backend when the active filter/display actually needs one (§4.5
// step 4's "tracing is opt-in per query").
func ApplyTrace(e *model.EnrichedTransaction, beneficiary common.Address, calls []model.CallFrame, opcodes []model.Opcode, diff model.StateDiff, analyzer CoinbaseAnalyzer) {
	e.Calls = calls
	e.Opcodes = opcodes
	e.StateDiffResult = diff
	e.TouchedAccounts = tracerpc.TouchedAccounts(calls)

	if analyzer != nil {
		e.CoinbaseTransfer = analyzer.CoinbaseTransfer(beneficiary, calls)
	}
}
