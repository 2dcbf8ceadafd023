// Package ensresolve implements ENS reverse resolution (address -> name)
// and the mode-selection policy of §4.5.1. Grounded on ens_utils.rs: ENS
// lookups hit the on-chain registry/resolver directly via raw calls whose
// selectors and arguments are encoded by hand, rather than a dedicated ENS client
// library (none is present in the corpus).
package ensresolve

import (
	"context"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/diskcache"
)

// ensRegistry is the canonical ENS registry address, identical across every
// chain that deploys it (mainnet only, per the mode-selection rule below).
var ensRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

var resolverSelector = []byte{0x01, 0x78, 0xb8, 0xbf}   // resolver(bytes32)
var nameSelector = []byte{0x69, 0x1f, 0x34, 0x31}       // name(bytes32)

// Mode is the ENS lookup mode chosen per §4.5.1.
type Mode int

const (
	Disabled Mode = iota
	Sync
	Async
)

// SelectMode implements the decision table: non-mainnet chains never
// resolve; a query for a specific, not-yet-cached ENS name resolves
// synchronously so the filter can act on it now; everything else is async.
func SelectMode(chain chains.Chain, queriedName string, cache *diskcache.Cache) Mode {
	if !chain.IsMainnet() {
		return Disabled
	}
	if queriedName != "" && !common.IsHexAddress(queriedName) && strings.Contains(queriedName, ".") {
		if _, res := cache.Get(strings.ToLower(queriedName)); res == diskcache.Unknown {
			return Sync
		}
	}
	return Async
}

// CallContractFunc abstracts eth_call for testability.
type CallContractFunc func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

// Resolver performs direct on-chain ENS reverse resolution.
type Resolver struct {
	call  CallContractFunc
	cache *diskcache.Cache
}

func New(call CallContractFunc, cache *diskcache.Cache) *Resolver {
	return &Resolver{call: call, cache: cache}
}

// namehash computes the ENS namehash of a dotted name (EIP-137).
func namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash.Bytes())
	}
	return node
}

// reverseName builds "<addr-without-0x-lowercase>.addr.reverse".
func reverseName(addr common.Address) string {
	return strings.ToLower(addr.Hex()[2:]) + ".addr.reverse"
}

// ReverseLookupSync resolves addr's ENS name synchronously, on a cache miss
// querying the registry then the resolver. Resolution failures (no resolver
// set, revert) degrade to KnownEmpty, matching §7's "ENS/symbol resolution
// failures are logged and cached as MISSING".
func (r *Resolver) ReverseLookupSync(ctx context.Context, addr common.Address) (string, bool) {
	key := strings.ToLower(addr.Hex())
	if name, res := r.cache.Get(key); res != diskcache.Unknown {
		return name, res == diskcache.Known
	}

	name, ok := r.resolveOnChain(ctx, addr)
	if !ok {
		r.cache.SetKnownEmpty(key)
		return "", false
	}
	r.cache.SetValue(key, name)
	return name, true
}

func (r *Resolver) resolveOnChain(ctx context.Context, addr common.Address) (string, bool) {
	node := namehash(reverseName(addr))

	resolverCall := append(append([]byte{}, resolverSelector...), node.Bytes()...)
	out, err := r.call(ctx, ethereum.CallMsg{To: &ensRegistry, Data: resolverCall}, nil)
	if err != nil || len(out) < 32 {
		return "", false
	}
	resolverAddr := common.BytesToAddress(out[12:32])
	if resolverAddr == (common.Address{}) {
		return "", false
	}

	nameCall := append(append([]byte{}, nameSelector...), node.Bytes()...)
	out, err = r.call(ctx, ethereum.CallMsg{To: &resolverAddr, Data: nameCall}, nil)
	if err != nil || len(out) < 64 {
		return "", false
	}
	// ABI-encoded dynamic string: [offset][length][data...]
	strLen := new(big.Int).SetBytes(out[32:64]).Uint64()
	if uint64(len(out)) < 64+strLen {
		return "", false
	}
	name := string(out[64 : 64+strLen])
	if name == "" {
		return "", false
	}
	return name, true
}

// Worker consumes addresses from a channel and resolves them asynchronously,
// caching the result. Senders are cloneable via the shared channel; the
// worker exits when the channel closes (§9 background-worker design). This
// request returns None immediately; the name appears in the cache for
// future requests.
func (r *Resolver) Worker(ctx context.Context, addrs <-chan common.Address) {
	for {
		select {
		case addr, ok := <-addrs:
			if !ok {
				return
			}
			r.ReverseLookupSync(ctx, addr)
		case <-ctx.Done():
			return
		}
	}
}
