// Package scheduler is the top-level driver of §4.7: for a batch of
// blocks, it runs BlockFetcher -> EnrichmentPipeline -> [TraceEngine] ->
// FilterEngine -> sort -> output, deciding per block which of those stages
// actually need to run. It owns the RPC client, the trace backend, the
// price oracle, and the background ENS/symbol worker queues.
package scheduler

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/ensresolve"
	"github.com/mevlog-go/mevlog/internal/enrich"
	"github.com/mevlog-go/mevlog/internal/filter"
	"github.com/mevlog-go/mevlog/internal/metrics"
	"github.com/mevlog-go/mevlog/internal/model"
	"github.com/mevlog-go/mevlog/internal/oracle"
)

// BlockFetcher is the subset of rpcsource.Client used here.
type BlockFetcher interface {
	HeadBlockNumber(ctx context.Context) (uint64, error)
	FetchBlock(ctx context.Context, number uint64) (*model.RawBlock, error)
}

// TraceResult is one transaction's trace-backend output, normalized to the
// shape enrich.ApplyTrace expects regardless of which backend produced it.
type TraceResult struct {
	Calls   []model.CallFrame
	Diff    model.StateDiff
	Opcodes []model.Opcode
}

// TraceProvider runs the TraceEngine (§4.4) over every transaction in a
// block. internal/forkstate and internal/tracerpc each supply one
// implementation; which one is active is decided by config.TraceMode at
// wiring time, outside this package.
type TraceProvider interface {
	Trace(ctx context.Context, block *model.RawBlock) (map[int]TraceResult, []error)
	BackendLabel() string // "revm" or "rpc", for metrics.TracesRun
}

// BlockResult is one block's fully processed output: filtered, sorted
// EnrichedTransactions plus the native-token USD price looked up once for
// this block (§4.5 step 7).
type BlockResult struct {
	Number         uint64
	Transactions   []model.EnrichedTransaction
	NativePriceUSD *float64
}

// Scheduler wires every pipeline stage together for one query (§4.7).
type Scheduler struct {
	Chain    chains.Chain
	Fetcher  BlockFetcher
	Pipeline *enrich.Pipeline
	Engine   filter.Engine

	HasSort bool
	Sort    filter.SortSpec
	Limit   int // 0 means unlimited

	WantTrace     bool // --trace was given explicitly even if no filter needs one
	TraceProvider TraceProvider // nil when tracing never runs
	Analyzer      enrich.CoinbaseAnalyzer

	Oracle *oracle.Client // nil disables USD pricing entirely

	Metrics *metrics.Metrics

	// ENSMode is decided once per query by ensresolve.SelectMode and
	// drives whether EnrichBlock resolves `from`/`to` ENS names inline
	// (Sync) or leaves them to the background worker (Async/Disabled).
	ENSMode ensresolve.Mode

	// ENSQueue/SymbolQueue are the background workers' input channels
	// (§4.7 "two background worker tasks"); nil if ENS/symbol resolution
	// is disabled for this chain/run. Enqueue is best-effort: a full
	// queue drops the request rather than blocking the hot path.
	ENSQueue    chan common.Address
	SymbolQueue chan common.Address
}

// needsTrace reports whether this block's processing requires a trace at
// all: either the filter stack needs one, or the user asked for traces
// explicitly (display-only, e.g. `--trace` with no trace-dependent filter).
func (s *Scheduler) needsTrace() bool {
	return s.WantTrace || s.Engine.NeedsTrace()
}

// ProcessBlock runs the full per-block pipeline (§4.5 steps 1-7) and
// returns the filtered, sorted result.
func (s *Scheduler) ProcessBlock(ctx context.Context, number uint64) (*BlockResult, error) {
	raw, err := s.Fetcher.FetchBlock(ctx, number)
	if err != nil {
		return nil, err
	}

	trace := s.needsTrace()
	prefetch := s.Engine.PrefetchReceipts()
	needReceiptsNow := prefetch || !trace

	ensSync := s.ENSMode == ensresolve.Sync

	txs, err := s.Pipeline.EnrichBlock(ctx, raw, needReceiptsNow, ensSync)
	if err != nil {
		return nil, err
	}

	if s.ENSMode == ensresolve.Async {
		s.enqueueENSLookups(txs)
	}

	if trace && s.TraceProvider != nil {
		results, errs := s.TraceProvider.Trace(ctx, raw)
		for i := range txs {
			if errs[i] != nil {
				continue // §7: per-tx trace failure maps to "no trace data", block continues
			}
			res, ok := results[i]
			if !ok {
				continue
			}
			enrich.ApplyTrace(&txs[i], raw.Beneficiary, res.Calls, res.Opcodes, res.Diff, s.Analyzer)
		}
		if s.Metrics != nil {
			s.Metrics.TracesRun.WithLabelValues(s.TraceProvider.BackendLabel()).Add(float64(len(raw.Transactions)))
		}

		if !needReceiptsNow {
			// §4.6: prefetch_receipts was false, so receipts were deferred
			// until after tracing completed.
			hashes := make([]common.Hash, len(raw.Transactions))
			for i, tx := range raw.Transactions {
				hashes[i] = tx.Hash
			}
			receipts, err := s.Pipeline.Receipts.FetchReceipts(ctx, hashes)
			if err != nil {
				return nil, err
			}
			for i := range txs {
				if r, ok := receipts[txs[i].Hash]; ok {
					txs[i].Receipt = r
				}
			}
		}
	}

	s.enqueueSymbolLookups(txs)

	matched := filter.Apply(txs, s.Engine, trace)
	if s.HasSort {
		matched = filter.Sort(matched, s.Sort)
	}
	if s.Limit > 0 && len(matched) > s.Limit {
		matched = matched[:s.Limit]
	}

	result := &BlockResult{Number: number, Transactions: matched}
	if s.Oracle != nil {
		price, ok, err := s.Oracle.PriceUSD(ctx, s.Chain.PriceOracleAddress, number)
		if err != nil {
			// §7: oracle failures degrade to "no USD pricing", never abort.
			result.NativePriceUSD = nil
		} else if ok {
			result.NativePriceUSD = &price
		}
	}

	if s.Metrics != nil {
		s.Metrics.BlocksProcessed.Inc()
	}
	return result, nil
}

// enqueueSymbolLookups scans every log group's source address across txs
// and enqueues the ones enrich.NeedsSymbolLookup flags, best-effort.
func (s *Scheduler) enqueueSymbolLookups(txs []model.EnrichedTransaction) {
	if s.SymbolQueue == nil {
		return
	}
	seen := map[common.Address]bool{}
	for _, tx := range txs {
		for _, g := range tx.LogGroups {
			if seen[g.SourceAddress] {
				continue
			}
			for _, l := range g.Logs {
				if enrich.NeedsSymbolLookup(l.Signature) {
					seen[g.SourceAddress] = true
					select {
					case s.SymbolQueue <- g.SourceAddress:
					default:
					}
					break
				}
			}
		}
	}
}

// enqueueENSLookups enqueues every tx's from/to address for background
// reverse resolution (§4.5.1's Async mode); best-effort like symbol
// lookups.
func (s *Scheduler) enqueueENSLookups(txs []model.EnrichedTransaction) {
	if s.ENSQueue == nil {
		return
	}
	seen := map[common.Address]bool{}
	enqueue := func(addr common.Address) {
		if seen[addr] {
			return
		}
		seen[addr] = true
		select {
		case s.ENSQueue <- addr:
		default:
		}
	}
	for _, tx := range txs {
		enqueue(tx.From)
		if tx.To != nil {
			enqueue(*tx.To)
		}
	}
}

// ProcessRange drives a batch of block numbers sequentially, in the order
// given (callers pass a most-recent-first list to match §4.7's default).
// In streaming mode, emit is called as each block completes; in buffered
// mode the caller is expected to collect results and sort/limit globally
// afterward (ProcessRange itself does no cross-block accumulation).
func (s *Scheduler) ProcessRange(ctx context.Context, numbers []uint64, emit func(*BlockResult) error) error {
	for _, n := range numbers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result, err := s.ProcessBlock(ctx, n)
		if err != nil {
			return err
		}
		if err := emit(result); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown closes the ENS/symbol queues and waits a small fixed delay for
// their background workers to flush pending cache writes (§4.7: "optional
// convenience for single-shot operation, not a correctness property").
func (s *Scheduler) Shutdown() {
	if s.ENSQueue != nil {
		close(s.ENSQueue)
	}
	if s.SymbolQueue != nil {
		close(s.SymbolQueue)
	}
	time.Sleep(200 * time.Millisecond)
}
