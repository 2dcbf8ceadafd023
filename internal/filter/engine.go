package filter

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/model"
)

// PositionRange is an inclusive from..=to range of transaction indices.
type PositionRange struct {
	From, To int
}

func (r PositionRange) contains(i int) bool { return i >= r.From && i <= r.To }

// Engine is the AND-composed predicate stack described in §4.6. Every field
// is optional (its zero value means "no predicate"); a zero Position looks
// the same as the range 0:0, so callers set HasPosition to opt in
// explicitly.
type Engine struct {
	From *AddressMatch
	To   *AddressMatch

	TxIndexes map[int]bool

	HasPosition bool
	Position    PositionRange

	// Touching requires a trace: addr must appear in TouchedAccounts.
	Touching *common.Address

	Events    []EventQuery // all must match (AND)
	NotEvents []EventQuery // none may match

	Method *MethodQuery

	Numeric []NumericPredicate
}

// NeedsTrace reports whether any predicate in the stack requires a trace to
// have run (touching, or a real_tx_cost/real_gas_price numeric predicate).
func (e Engine) NeedsTrace() bool {
	if e.Touching != nil {
		return true
	}
	for _, p := range e.Numeric {
		if p.Field.NeedsTrace() {
			return true
		}
	}
	return false
}

// PrefetchReceipts implements §4.6: true when any cost/gas-price predicate
// is present, meaning receipts should be fetched before tracing rather than
// after.
func (e Engine) PrefetchReceipts() bool {
	for _, p := range e.Numeric {
		if p.Field.NeedsReceipt() {
			return true
		}
	}
	return false
}

// MatchCheap evaluates every predicate that does not require a trace:
// from/to, tx_indexes, position, events/not_events, method, and any numeric
// predicate not flagged NeedsTrace. Predicate order never affects the
// result since every predicate is independently AND-combined (§8's
// commutativity property).
func (e Engine) MatchCheap(tx *model.EnrichedTransaction) bool {
	if e.From != nil && !e.From.matchFrom(tx) {
		return false
	}
	if e.To != nil && !e.To.matchTo(tx) {
		return false
	}
	if e.TxIndexes != nil && !e.TxIndexes[tx.Index] {
		return false
	}
	if e.HasPosition && !e.Position.contains(tx.Index) {
		return false
	}
	for _, q := range e.Events {
		if !anyLogMatches(tx, q) {
			return false
		}
	}
	for _, q := range e.NotEvents {
		if anyLogMatches(tx, q) {
			return false
		}
	}
	if e.Method != nil && !e.Method.Match(tx) {
		return false
	}
	for _, p := range e.Numeric {
		if p.Field.NeedsTrace() {
			continue
		}
		if !p.Match(tx) {
			return false
		}
	}
	return true
}

// MatchTraceDependent evaluates the predicates that require a trace to have
// already run: touching, real_tx_cost, real_gas_price. Callers must only
// invoke this after tracing (or must skip this phase entirely when
// NeedsTrace() is false).
func (e Engine) MatchTraceDependent(tx *model.EnrichedTransaction) bool {
	if e.Touching != nil {
		if _, ok := tx.TouchedAccounts[*e.Touching]; !ok {
			return false
		}
	}
	for _, p := range e.Numeric {
		if !p.Field.NeedsTrace() {
			continue
		}
		if !p.Match(tx) {
			return false
		}
	}
	return true
}

// Match evaluates the full predicate stack (both phases). Use this only
// when tracing has already been applied to every candidate; the scheduler
// otherwise calls MatchCheap first to avoid tracing transactions that would
// be pruned anyway.
func (e Engine) Match(tx *model.EnrichedTransaction) bool {
	return e.MatchCheap(tx) && e.MatchTraceDependent(tx)
}

// Apply filters txs in place, returning only the matches in their original
// order. useTrace selects whether MatchTraceDependent also runs (it must
// only be true once tracing has completed for every tx in txs).
func Apply(txs []model.EnrichedTransaction, e Engine, useTrace bool) []model.EnrichedTransaction {
	out := make([]model.EnrichedTransaction, 0, len(txs))
	for i := range txs {
		tx := &txs[i]
		if !e.MatchCheap(tx) {
			continue
		}
		if useTrace && !e.MatchTraceDependent(tx) {
			continue
		}
		out = append(out, *tx)
	}
	return out
}
