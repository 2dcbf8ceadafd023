package enrich

import (
	"math/big"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/model"
)

const (
	UnknownSignature     = "<Unknown>"
	ETHTransferSignature = "<ETH transfer>"
)

// transferSignature is the canonical ERC-20/721 Transfer event signature;
// ERC-20 amount extraction only applies to this one.
const transferSignature = "Transfer(address,address,uint256)"

// symbolLookupFamilies are the event signatures whose source address gets
// scheduled for a token-symbol lookup (§4.5 step 2): ERC-20 Transfer, plus
// the UniV2/UniV3 swap/mint/burn/sync families whose emitting address is
// typically a pool worth labeling.
var symbolLookupFamilies = map[string]bool{
	"Transfer(address,address,uint256)":                                             true,
	"Approval(address,address,uint256)":                                             true,
	"Swap(address,uint256,uint256,uint256,uint256,address)":                         true, // UniV2
	"Swap(address,address,int256,int256,uint160,uint128,int24)":                     true, // UniV3
	"Mint(address,uint256,uint256)":                                                 true, // UniV2
	"Mint(address,address,int24,int24,uint128,uint256,uint256)":                     true, // UniV3
	"Burn(address,uint256,uint256,address)":                                         true, // UniV2
	"Burn(address,int24,int24,uint128,uint256,uint256)":                             true, // UniV3
	"Sync(uint112,uint112)":                                                         true, // UniV2
}

// MethodSignatureStore is the subset of sigstore.Store used here.
type MethodSignatureStore interface {
	FindMethod(selector [4]byte) (string, bool)
}

// EventSignatureStore is the subset of sigstore.Store used here.
type EventSignatureStore interface {
	FindEvent(topic0 [32]byte) (string, bool)
}

// ResolveMethodSignature implements §4.5 step 1: chain signature overrides
// take priority over the SignatureStore; empty input means an ETH transfer;
// a non-empty input whose selector resolves nowhere is "<Unknown>".
func ResolveMethodSignature(chain chains.Chain, tx model.RawTx, store MethodSignatureStore) (sig string, selector *[4]byte) {
	if len(tx.Input) == 0 {
		return ETHTransferSignature, nil
	}
	if len(tx.Input) < 4 {
		// Malformed but non-empty input shorter than a selector: treat the
		// whole thing as an (unpadded) selector for override/lookup purposes.
		var sel [4]byte
		copy(sel[:], tx.Input)
		return resolveSelector(chain, sel, tx.Index, store), &sel
	}
	var sel [4]byte
	copy(sel[:], tx.Input[:4])
	return resolveSelector(chain, sel, tx.Index, store), &sel
}

func resolveSelector(chain chains.Chain, sel [4]byte, position int, store MethodSignatureStore) string {
	if sig, ok := chain.SignatureOverride(sel, position); ok {
		return sig
	}
	if sig, ok := store.FindMethod(sel); ok {
		return sig
	}
	return UnknownSignature
}

// ResolveEventSignature resolves topic-0 to an event signature, or
// "<Unknown>" on a miss.
func ResolveEventSignature(topic0 [32]byte, store EventSignatureStore) string {
	if sig, ok := store.FindEvent(topic0); ok {
		return sig
	}
	return UnknownSignature
}

// ResolveLog turns a RawLog into a ResolvedLog: event signature lookup plus,
// for ERC-20 Transfer events with >=32 data bytes, the parsed amount.
// Symbol is left nil here; callers fill it in after a symbol lookup for
// addresses flagged by NeedsSymbolLookup.
func ResolveLog(raw model.RawLog, store EventSignatureStore) model.ResolvedLog {
	sig := UnknownSignature
	if len(raw.Topics) > 0 {
		sig = ResolveEventSignature(raw.Topics[0], store)
	}

	resolved := model.ResolvedLog{RawLog: raw, Signature: sig}
	if sig == transferSignature && len(raw.Data) >= 32 {
		resolved.ERC20Amount = new(big.Int).SetBytes(raw.Data[:32])
	}
	return resolved
}

// NeedsSymbolLookup reports whether a resolved log's source address should
// be scheduled for an (async) token-symbol lookup.
func NeedsSymbolLookup(signature string) bool {
	return symbolLookupFamilies[signature]
}
