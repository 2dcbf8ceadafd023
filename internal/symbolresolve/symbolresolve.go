// Package symbolresolve resolves a token contract's `symbol()` for display
// next to ERC-20/UniV2/UniV3 log groups (§4.5 step 2), mirroring
// ensresolve's direct-call, content-addressed-cache design since no ABI
// client library is present in the corpus for either.
package symbolresolve

import (
	"context"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mevlog-go/mevlog/internal/diskcache"
)

var symbolSelector = []byte{0x95, 0xd8, 0x9b, 0x41} // symbol()

// CallContractFunc abstracts eth_call for testability.
type CallContractFunc func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

// Resolver looks up an ERC-20-shaped contract's symbol() and caches it.
type Resolver struct {
	call  CallContractFunc
	cache *diskcache.Cache
}

func New(call CallContractFunc, cache *diskcache.Cache) *Resolver {
	return &Resolver{call: call, cache: cache}
}

// LookupSync resolves token's symbol synchronously, on a cache miss calling
// symbol() and decoding either the ABI dynamic-string or bytes32 return
// shape (some legacy tokens, e.g. MKR, return bytes32 instead of string).
func (r *Resolver) LookupSync(ctx context.Context, token common.Address) (string, bool) {
	key := strings.ToLower(token.Hex())
	if sym, res := r.cache.Get(key); res != diskcache.Unknown {
		return sym, res == diskcache.Known
	}

	sym, ok := r.resolveOnChain(ctx, token)
	if !ok {
		r.cache.SetKnownEmpty(key)
		return "", false
	}
	r.cache.SetValue(key, sym)
	return sym, true
}

func (r *Resolver) resolveOnChain(ctx context.Context, token common.Address) (string, bool) {
	out, err := r.call(ctx, ethereum.CallMsg{To: &token, Data: symbolSelector}, nil)
	if err != nil || len(out) == 0 {
		return "", false
	}

	if len(out) == 32 {
		// bytes32 return: trim trailing NUL padding.
		sym := strings.TrimRight(string(out), "\x00")
		if sym != "" {
			return sym, true
		}
		return "", false
	}

	if len(out) < 64 {
		return "", false
	}
	strLen := new(big.Int).SetBytes(out[32:64]).Uint64()
	if uint64(len(out)) < 64+strLen {
		return "", false
	}
	sym := string(out[64 : 64+strLen])
	if sym == "" {
		return "", false
	}
	return sym, true
}

// Worker consumes token addresses from a channel and resolves them
// asynchronously, caching each result; exits when the channel closes or ctx
// is cancelled (§4.7's background symbol-resolver task).
func (r *Resolver) Worker(ctx context.Context, addrs <-chan common.Address) {
	for {
		select {
		case addr, ok := <-addrs:
			if !ok {
				return
			}
			r.LookupSync(ctx, addr)
		case <-ctx.Done():
			return
		}
	}
}
