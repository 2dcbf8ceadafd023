// Package forkstate implements the local-fork trace backend (§4.5 step 5,
// "Anvil-style fork bootstrap" in SPEC_FULL.md's supplemented features):
// pin a block, construct a BlockEnv/TxEnv pair per transaction, execute
// sequentially against forked state, and derive touched accounts / storage
// diffs / coinbase transfer from the result. Grounded on revm_tracing.rs's
// init_revm_db/apply_block_env/apply_tx_env shape, ported onto
// go-ethereum's core/vm.EVM running against RemoteState (this package's own
// vm.StateDB implementation) since this port has no revm dependency.
package forkstate

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/model"
)

// Snapshot is a per-account, per-slot storage view taken before or after a
// transaction. A slot absent from the inner map is implicitly zero, same as
// on-chain storage semantics.
type Snapshot map[common.Address]map[common.Hash]common.Hash

func (s Snapshot) get(addr common.Address, slot common.Hash) common.Hash {
	acct, ok := s[addr]
	if !ok {
		return common.Hash{}
	}
	return acct[slot]
}

// ComputeDiff implements the §8 StateDiff invariant: the derived diff
// contains a (slot, before, after) entry iff pre[slot] != post[slot] for
// that address; a zero value on either side is represented as a nil
// pointer rather than a zero Hash, so an absent slot and an explicitly zero
// slot look the same (a Snapshot does not distinguish them either).
func ComputeDiff(pre, post Snapshot) model.StateDiff {
	diff := make(model.StateDiff)

	addrs := make(map[common.Address]struct{})
	for addr := range pre {
		addrs[addr] = struct{}{}
	}
	for addr := range post {
		addrs[addr] = struct{}{}
	}

	for addr := range addrs {
		slots := make(map[common.Hash]struct{})
		for slot := range pre[addr] {
			slots[slot] = struct{}{}
		}
		for slot := range post[addr] {
			slots[slot] = struct{}{}
		}

		var changes []model.StorageSlotDiff
		for slot := range slots {
			before := pre.get(addr, slot)
			after := post.get(addr, slot)
			if before == after {
				continue
			}
			change := model.StorageSlotDiff{Slot: slot}
			if before != (common.Hash{}) {
				b := before
				change.Before = &b
			}
			if after != (common.Hash{}) {
				a := after
				change.After = &a
			}
			changes = append(changes, change)
		}
		if len(changes) > 0 {
			sort.Slice(changes, func(i, j int) bool {
				return bytes.Compare(changes[i].Slot.Bytes(), changes[j].Slot.Bytes()) < 0
			})
			diff[addr] = changes
		}
	}

	return diff
}
