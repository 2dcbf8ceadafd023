package scheduler

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/params"

	"github.com/mevlog-go/mevlog/internal/forkstate"
	"github.com/mevlog-go/mevlog/internal/model"
	"github.com/mevlog-go/mevlog/internal/tracerpc"
)

// LocalForkProvider adapts internal/forkstate's sequential-per-block EVM
// backend to the TraceProvider interface: every transaction is executed
// (committing state in order) regardless of whether the filter stack
// wants its trace, since the §4.4.2 commit invariant requires the full
// prefix to run for later transactions to see correct pre-state.
type LocalForkProvider struct {
	ChainID     uint64
	State       *forkstate.RemoteState
	ChainConfig *params.ChainConfig
}

// NewLocalForkProvider builds a provider around a RemoteState pinned to
// block-1 by the caller (the caller dials and pins before constructing
// this, since pinning depends on the block being processed).
func NewLocalForkProvider(state *forkstate.RemoteState, chainID uint64) *LocalForkProvider {
	cfg := *params.AllEthashProtocolChanges
	cfg.ChainID = new(big.Int).SetUint64(chainID)
	return &LocalForkProvider{ChainID: chainID, State: state, ChainConfig: &cfg}
}

func (p *LocalForkProvider) BackendLabel() string { return "revm" }

func (p *LocalForkProvider) Trace(ctx context.Context, block *model.RawBlock) (map[int]TraceResult, []error) {
	backend := forkstate.NewEVMBackend(p.ChainConfig, p.State)
	runner := forkstate.Runner{Backend: backend}

	blockEnv := forkstate.NewBlockEnv(model.FromRawBlock(block))
	results, errs := runner.RunBlock(ctx, blockEnv, block.Transactions)

	out := make(map[int]TraceResult, len(results))
	for i, r := range results {
		if errs[i] != nil {
			continue
		}
		out[block.Transactions[i].Index] = TraceResult{Calls: r.Calls, Diff: r.Diff}
	}
	return out, errs
}

// RPCProvider adapts internal/tracerpc's debug_trace* backend to the
// TraceProvider interface. Unlike LocalForkProvider, each transaction's
// trace is fetched independently via its mined hash (the provider already
// re-executed the block to answer debug_traceTransaction), so there is no
// local commit-ordering concern here.
type RPCProvider struct {
	Backend        *tracerpc.Backend
	IncludeOpcodes bool // struct-log tracer is expensive; only fetched when a display flag asks for it
}

func NewRPCProvider(backend *tracerpc.Backend, includeOpcodes bool) *RPCProvider {
	return &RPCProvider{Backend: backend, IncludeOpcodes: includeOpcodes}
}

func (p *RPCProvider) BackendLabel() string { return "rpc" }

func (p *RPCProvider) Trace(ctx context.Context, block *model.RawBlock) (map[int]TraceResult, []error) {
	out := make(map[int]TraceResult, len(block.Transactions))
	errs := make([]error, len(block.Transactions))

	for i, tx := range block.Transactions {
		calls, err := p.Backend.Calls(ctx, tx.Hash)
		if err != nil {
			errs[i] = err
			continue
		}
		diff, err := p.Backend.StateDiff(ctx, tx.Hash)
		if err != nil {
			errs[i] = err
			continue
		}
		var opcodes []model.Opcode
		if p.IncludeOpcodes {
			opcodes, err = p.Backend.Opcodes(ctx, tx.Hash)
			if err != nil {
				errs[i] = err
				continue
			}
		}
		out[tx.Index] = TraceResult{Calls: calls, Diff: diff, Opcodes: opcodes}
	}
	return out, errs
}
