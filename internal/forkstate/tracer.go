package forkstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/mevlog-go/mevlog/internal/model"
)

// callTracer implements vm.EVMLogger, building a model.CallFrame tree from
// CaptureStart/CaptureEnter/CaptureExit/CaptureEnd in the same nested shape
// the call-tracer profile in internal/tracerpc builds from
// debug_traceTransaction's callTracer output — the local-fork backend uses the same CallFrame shape so
// downstream consumers (coinbase analyzer, `touching` filter) don't care
// which backend produced it.
type callTracer struct {
	stack []*model.CallFrame
	root  *model.CallFrame
}

func newCallTracer() *callTracer { return &callTracer{} }

func (t *callTracer) hooks() vm.EVMLogger { return t }

func (t *callTracer) pushFrame(from common.Address, to *common.Address, input []byte, value *big.Int) {
	frame := &model.CallFrame{From: from, To: to, Value: value, Input: append([]byte{}, input...)}
	if len(t.stack) == 0 {
		t.root = frame
	} else {
		parent := t.stack[len(t.stack)-1]
		parent.Calls = append(parent.Calls, *frame)
		frame = &parent.Calls[len(parent.Calls)-1]
	}
	t.stack = append(t.stack, frame)
}

func (t *callTracer) popFrame(output []byte) {
	if len(t.stack) == 0 {
		return
	}
	t.stack[len(t.stack)-1].Output = append([]byte{}, output...)
	t.stack = t.stack[:len(t.stack)-1]
}

// calls returns the completed trace as a single-element slice (the root
// call), matching forkstate.TxResult.Calls' shape.
func (t *callTracer) calls() []model.CallFrame {
	if t.root == nil {
		return nil
	}
	return []model.CallFrame{*t.root}
}

func (t *callTracer) CaptureTxStart(gasLimit uint64) {}
func (t *callTracer) CaptureTxEnd(restGas uint64)    {}

func (t *callTracer) CaptureStart(env *vm.EVM, from common.Address, to common.Address, create bool, input []byte, gas uint64, value *big.Int) {
	toCopy := to
	t.pushFrame(from, &toCopy, input, value)
}

func (t *callTracer) CaptureEnd(output []byte, gasUsed uint64, err error) {
	t.popFrame(output)
}

func (t *callTracer) CaptureEnter(typ vm.OpCode, from common.Address, to common.Address, input []byte, gas uint64, value *big.Int) {
	toCopy := to
	t.pushFrame(from, &toCopy, input, value)
}

func (t *callTracer) CaptureExit(output []byte, gasUsed uint64, err error) {
	t.popFrame(output)
}

func (t *callTracer) CaptureState(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, rData []byte, depth int, err error) {
}

func (t *callTracer) CaptureFault(pc uint64, op vm.OpCode, gas, cost uint64, scope *vm.ScopeContext, depth int, err error) {
}
