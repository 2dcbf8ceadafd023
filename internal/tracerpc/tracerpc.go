// Package tracerpc is the RPC-backed TraceEngine backend (§4.4): it drives
// the provider's debug namespace (debug_traceTransaction) across three tracer profiles — call tracer, prestate-diff tracer, and
// struct-log opcode tracer — and normalizes each response into the same
// model.CallFrame/model.StateDiff/model.Opcode shapes internal/forkstate
// produces, so the rest of the pipeline is backend-agnostic.
package tracerpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/model"
)

// Caller is the subset of *rpc.Client used here, narrowed so tests can
// supply a fake transport instead of a live provider connection.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Backend drives debug_trace* against a JSON-RPC provider.
type Backend struct {
	caller Caller
}

// New wraps an rpc.Client (or a fake Caller in tests) as a Backend.
func New(caller Caller) *Backend { return &Backend{caller: caller} }

// Probe selects whether the connected provider supports debug tracing: it
// call-traces txHash with a short timeout and reports true iff the call
// succeeds (§4.4 "Availability probe").
func (b *Backend) Probe(ctx context.Context, txHash common.Hash) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var raw json.RawMessage
	err := b.caller.CallContext(ctx, &raw, "debug_traceTransaction", txHash, callTracerConfig())
	return err == nil
}

func callTracerConfig() map[string]interface{} {
	return map[string]interface{}{"tracer": "callTracer"}
}

func prestateDiffConfig() map[string]interface{} {
	return map[string]interface{}{
		"tracer": "prestateTracer",
		"tracerConfig": map[string]interface{}{
			"diffMode":       true,
			"disableCode":    true,
			"disableStorage": false,
		},
	}
}

// rawCallFrame mirrors geth's callTracer JSON output shape.
type rawCallFrame struct {
	From    common.Address  `json:"from"`
	To      *common.Address `json:"to"`
	Value   *hexBig         `json:"value"`
	Input   hexBytes        `json:"input"`
	Output  hexBytes        `json:"output"`
	Calls   []rawCallFrame  `json:"calls"`
}

func (f rawCallFrame) toModel() model.CallFrame {
	out := model.CallFrame{
		From:   f.From,
		To:     f.To,
		Value:  (*big.Int)(f.Value),
		Input:  f.Input,
		Output: f.Output,
	}
	for _, c := range f.Calls {
		out.Calls = append(out.Calls, c.toModel())
	}
	return out
}

// Calls fetches the call tree for txHash via the call tracer, returning it
// as a single-element slice (the root frame) matching forkstate.TxResult's
// Calls field shape.
func (b *Backend) Calls(ctx context.Context, txHash common.Hash) ([]model.CallFrame, error) {
	var raw rawCallFrame
	if err := b.caller.CallContext(ctx, &raw, "debug_traceTransaction", txHash, callTracerConfig()); err != nil {
		return nil, model.NewError(model.KindPipeline, "tracerpc.Calls", err)
	}
	return []model.CallFrame{raw.toModel()}, nil
}

// prestateAccount is one account's view under the prestate-diff tracer.
type prestateAccount struct {
	Balance *hexBig                    `json:"balance,omitempty"`
	Nonce   *uint64                    `json:"nonce,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
}

type prestateDiffResult struct {
	Pre  map[common.Address]prestateAccount `json:"pre"`
	Post map[common.Address]prestateAccount `json:"post"`
}

// StateDiff fetches the prestate-diff tracer result for txHash and reduces
// it to a model.StateDiff: per §4.4, diff only the union of slot keys across
// pre/post, and a slot value of all-zero on either side maps to absent
// (nil), matching forkstate.ComputeDiff's same convention so both backends
// produce an identical shape.
func (b *Backend) StateDiff(ctx context.Context, txHash common.Hash) (model.StateDiff, error) {
	var raw prestateDiffResult
	if err := b.caller.CallContext(ctx, &raw, "debug_traceTransaction", txHash, prestateDiffConfig()); err != nil {
		return nil, model.NewError(model.KindPipeline, "tracerpc.StateDiff", err)
	}

	diff := model.StateDiff{}
	addrs := map[common.Address]struct{}{}
	for a := range raw.Pre {
		addrs[a] = struct{}{}
	}
	for a := range raw.Post {
		addrs[a] = struct{}{}
	}

	for addr := range addrs {
		pre := raw.Pre[addr]
		post := raw.Post[addr]
		slots := map[common.Hash]struct{}{}
		for s := range pre.Storage {
			slots[s] = struct{}{}
		}
		for s := range post.Storage {
			slots[s] = struct{}{}
		}

		var entries []model.StorageSlotDiff
		for slot := range slots {
			before := nonZeroPtr(pre.Storage[slot])
			after := nonZeroPtr(post.Storage[slot])
			if before == nil && after == nil {
				continue
			}
			if before != nil && after != nil && *before == *after {
				continue
			}
			entries = append(entries, model.StorageSlotDiff{Slot: slot, Before: before, After: after})
		}
		if len(entries) == 0 {
			continue
		}
		sort.Slice(entries, func(i, j int) bool {
			return fmt.Sprintf("%x", entries[i].Slot) < fmt.Sprintf("%x", entries[j].Slot)
		})
		diff[addr] = entries
	}
	return diff, nil
}

func nonZeroPtr(h common.Hash) *common.Hash {
	if h == (common.Hash{}) {
		return nil
	}
	out := h
	return &out
}

// rawStructLog mirrors geth's struct-log tracer per-step output.
type rawStructLog struct {
	Pc      uint64 `json:"pc"`
	Op      string `json:"op"`
	Gas     uint64 `json:"gas"`
	GasCost uint64 `json:"gasCost"`
}

type structLogResult struct {
	StructLogs []rawStructLog `json:"structLogs"`
}

// Opcodes fetches the struct-log opcode stream for txHash.
func (b *Backend) Opcodes(ctx context.Context, txHash common.Hash) ([]model.Opcode, error) {
	var raw structLogResult
	if err := b.caller.CallContext(ctx, &raw, "debug_traceTransaction", txHash, map[string]interface{}{}); err != nil {
		return nil, model.NewError(model.KindPipeline, "tracerpc.Opcodes", err)
	}

	out := make([]model.Opcode, 0, len(raw.StructLogs))
	for _, s := range raw.StructLogs {
		out = append(out, model.Opcode{PC: s.Pc, Mnemonic: s.Op, GasCost: s.GasCost, GasRemaining: s.Gas})
	}
	return out, nil
}

// TouchedAccounts derives the touched-account set from a call tree by
// flattening it, matching forkstate's TouchedAddresses semantics so both
// backends feed the `touching` filter (§4.6) identically.
func TouchedAccounts(calls []model.CallFrame) map[common.Address]struct{} {
	touched := map[common.Address]struct{}{}
	for _, root := range calls {
		for _, frame := range root.Flatten() {
			touched[frame.From] = struct{}{}
			if frame.To != nil {
				touched[*frame.To] = struct{}{}
			}
		}
	}
	return touched
}
