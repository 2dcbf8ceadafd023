// Package filter implements FilterEngine (§4.6): an AND-composed predicate
// stack over EnrichedTransaction, split into a cheap pre-trace phase and a
// trace-dependent post-trace phase, plus the sort-key comparator used after
// filtering. Grounded on the TransactionFilter/and_then chain in
// tx_filter.rs and the NumericFilter/EventFilter types in filter_params.rs.
package filter

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/model"
	"github.com/mevlog-go/mevlog/internal/unitparse"
)

// NumericField names which EnrichedTransaction-derived quantity a numeric
// predicate compares against.
type NumericField int

const (
	FieldEffectiveGasPrice NumericField = iota
	FieldGasTxCost
	FieldRealTxCost
	FieldRealGasPrice
	FieldValue
)

// NumericPredicate is a {field, threshold} pair; a missing underlying value
// (e.g. no receipt yet) makes it not match rather than erroring, since §4.6's
// two-phase split already guarantees prerequisites are met before a
// predicate that needs them is evaluated.
type NumericPredicate struct {
	Field     NumericField
	Threshold unitparse.Threshold
}

func (p NumericPredicate) value(e *model.EnrichedTransaction) *big.Int {
	switch p.Field {
	case FieldEffectiveGasPrice:
		if e.Receipt == nil {
			return nil
		}
		return e.Receipt.EffectiveGasPrice
	case FieldGasTxCost:
		return e.GasTxCost()
	case FieldRealTxCost:
		return e.RealTxCost()
	case FieldRealGasPrice:
		return e.RealGasPrice()
	case FieldValue:
		return e.Value
	default:
		return nil
	}
}

func (p NumericPredicate) Match(e *model.EnrichedTransaction) bool {
	v := p.value(e)
	if v == nil {
		return false
	}
	return p.Threshold.Matches(v)
}

// NeedsTrace reports whether this predicate's field requires tracing
// (real_tx_cost / real_gas_price depend on CoinbaseTransfer).
func (f NumericField) NeedsTrace() bool {
	return f == FieldRealTxCost || f == FieldRealGasPrice
}

// NeedsReceipt reports whether this predicate's field requires a receipt.
func (f NumericField) NeedsReceipt() bool {
	return f != FieldValue
}

// EventQuery matches a single log within a tx: signature (literal or
// "/regex/") and/or source address. A zero-value field is not checked.
type EventQuery struct {
	Signature string // "" means unchecked; "/…/ " marks a regex
	Address   *common.Address
}

func (q EventQuery) matches(l model.ResolvedLog) bool {
	if q.Address != nil && *q.Address != l.Address {
		return false
	}
	if q.Signature == "" {
		return true
	}
	if strings.HasPrefix(q.Signature, "/") && strings.HasSuffix(q.Signature, "/") && len(q.Signature) >= 2 {
		pattern := q.Signature[1 : len(q.Signature)-1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(l.Signature)
	}
	return q.Signature == l.Signature
}

// anyLogMatches reports whether any log across every LogGroup matches q.
func anyLogMatches(e *model.EnrichedTransaction, q EventQuery) bool {
	for _, g := range e.LogGroups {
		for _, l := range g.Logs {
			if q.matches(l) {
				return true
			}
		}
	}
	return false
}

// MethodQuery matches a tx's resolved signature (literal or regex) or its
// raw selector hex.
type MethodQuery struct {
	Signature string
}

func (q MethodQuery) Match(e *model.EnrichedTransaction) bool {
	if q.Signature == "" {
		return true
	}
	selectorHex := ""
	if e.SignatureHash != nil {
		selectorHex = "0x" + strings.ToLower(hexEncode(e.SignatureHash[:]))
	}
	if strings.HasPrefix(q.Signature, "/") && strings.HasSuffix(q.Signature, "/") && len(q.Signature) >= 2 {
		pattern := q.Signature[1 : len(q.Signature)-1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(e.Signature) || re.MatchString(selectorHex)
	}
	return q.Signature == e.Signature || q.Signature == selectorHex
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

// AddressMatch is the `from`/`to` predicate value: either a literal address
// or an ENS name to be matched against the resolved AddressView/ToENS.
type AddressMatch struct {
	Address *common.Address
	ENSName string   // matched case-insensitively against the resolved name
	Create  bool     // `to == CREATE`: matches contract-creation txs only
}

func (m AddressMatch) matchFrom(e *model.EnrichedTransaction) bool {
	if m.Create {
		return false // CREATE only makes sense for `to`
	}
	if m.Address != nil {
		return *m.Address == e.From
	}
	if m.ENSName != "" {
		return e.FromView.ENSName != nil && strings.EqualFold(*e.FromView.ENSName, m.ENSName)
	}
	return true
}

func (m AddressMatch) matchTo(e *model.EnrichedTransaction) bool {
	if m.Create {
		return e.To == nil
	}
	if m.Address != nil {
		return e.To != nil && *m.Address == *e.To
	}
	if m.ENSName != "" {
		return e.ToENS != nil && strings.EqualFold(*e.ToENS, m.ENSName)
	}
	return true
}
