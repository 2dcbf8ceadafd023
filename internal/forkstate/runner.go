package forkstate

import (
	"context"

	"github.com/mevlog-go/mevlog/internal/model"
)

// TxResult is one transaction's trace-backend output, consumed by
// enrich.ApplyTrace.
type TxResult struct {
	Calls []model.CallFrame
	Diff  model.StateDiff
}

// Backend executes a single transaction against the state accumulated by
// every earlier transaction in the same block and returns its call trace
// and storage diff. Implementations must commit their state changes before
// returning, since the sequential commit invariant (§8) requires executing
// index j after i to observe i's effects. The concrete go-ethereum-backed
// implementation lives in evm.go; tests exercise Runner against a fake.
type Backend interface {
	Execute(ctx context.Context, block BlockEnv, tx TxEnv) (TxResult, error)
}

// Runner drives sequential-per-block execution (§5's "local-fork trace loop
// is strictly sequential per block"): transactions are executed strictly in
// index order against one Backend instance, since each one's state changes
// must be visible to the next.
type Runner struct {
	Backend Backend
}

// RunBlock executes every transaction in txs, in order, against block.
// A transaction whose execution errors gets a zero-value TxResult and the
// error is recorded in errs at the same index, matching §7's "trace
// failures per-transaction are logged and mapped to 'no trace data' rather
// than aborting the block".
func (r *Runner) RunBlock(ctx context.Context, block BlockEnv, txs []model.RawTx) ([]TxResult, []error) {
	results := make([]TxResult, len(txs))
	errs := make([]error, len(txs))
	for i, tx := range txs {
		res, err := r.Backend.Execute(ctx, block, NewTxEnv(tx))
		if err != nil {
			errs[i] = err
			continue
		}
		results[i] = res
	}
	return results, errs
}
