// Package chains is the static ChainRegistry: a compile-time table from
// chain id to the metadata every other component needs (display name,
// native currency, explorer, price oracle, cache directory name, and
// per-chain signature overrides). Grounded on the supported-chain table in
// evm_chain.rs and its EVMChainType enum from the original_source port.
package chains

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SignatureOverrideKey pins a signature override to one transaction position
// within a block, since some chains emit selectors at fixed positions that
// are never registered upstream (e.g. system transactions).
type SignatureOverrideKey struct {
	Selector [4]byte
	Position int
}

// Chain is the full metadata record for one chain id.
type Chain struct {
	ID                 uint64
	Name               string
	CurrencySymbol     string
	ExplorerURL        string
	PriceOracleAddress *common.Address
	CacheDirName       string
	SignatureOverrides map[SignatureOverrideKey]string
}

var registry = map[uint64]Chain{
	1: {
		ID:             1,
		Name:           "Ethereum Mainnet",
		CurrencySymbol: "ETH",
		ExplorerURL:    "https://etherscan.io",
		// Chainlink ETH/USD mainnet feed.
		PriceOracleAddress: addrPtr("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"),
		CacheDirName:       "mainnet",
	},
	8453: {
		ID:                 8453,
		Name:               "Base",
		CurrencySymbol:     "ETH",
		ExplorerURL:        "https://basescan.org",
		PriceOracleAddress: addrPtr("0x71041dddad3595F9CEd3C7FA53a69Fdaf398EB51"),
		CacheDirName:       "base",
	},
	56: {
		ID:                 56,
		Name:               "BNB Smart Chain",
		CurrencySymbol:     "BNB",
		ExplorerURL:        "https://bscscan.com",
		PriceOracleAddress: addrPtr("0x0567F2323251f0Aab15c8dFb1967E4e8A7D42aeE"),
		CacheDirName:       "bsc",
	},
	42161: {
		ID:                 42161,
		Name:               "Arbitrum One",
		CurrencySymbol:     "ETH",
		ExplorerURL:        "https://arbiscan.io",
		PriceOracleAddress: addrPtr("0x639Fe6ab55C921f74e7fac1ee960C0B6293ba612"),
		CacheDirName:       "arbitrum",
	},
	137: {
		ID:                 137,
		Name:               "Polygon",
		CurrencySymbol:     "MATIC",
		ExplorerURL:        "https://polygonscan.com",
		PriceOracleAddress: addrPtr("0xAB594600376Ec9fD91F8e885dADF0CE036862dE0"),
		CacheDirName:       "polygon",
	},
	1088: {
		ID:             1088,
		Name:           "Metis",
		CurrencySymbol: "METIS",
		ExplorerURL:    "https://andromeda-explorer.metis.io",
		CacheDirName:   "metis",
	},
	10: {
		ID:                 10,
		Name:               "OP Mainnet",
		CurrencySymbol:     "ETH",
		ExplorerURL:        "https://optimistic.etherscan.io",
		PriceOracleAddress: addrPtr("0x13e3Ee699D1909E989722E753853AE30b17e08c5"),
		CacheDirName:       "optimism",
	},
	43114: {
		ID:                 43114,
		Name:               "Avalanche C-Chain",
		CurrencySymbol:     "AVAX",
		ExplorerURL:        "https://snowtrace.io",
		PriceOracleAddress: addrPtr("0x0A77230d17318075983913bC2145DB16C7366156"),
		CacheDirName:       "avalanche",
	},
	59144: {
		ID:             59144,
		Name:           "Linea",
		CurrencySymbol: "ETH",
		ExplorerURL:    "https://lineascan.build",
		CacheDirName:   "linea",
	},
	534352: {
		ID:             534352,
		Name:           "Scroll",
		CurrencySymbol: "ETH",
		ExplorerURL:    "https://scrollscan.com",
		CacheDirName:   "scroll",
	},
	250: {
		ID:                 250,
		Name:               "Fantom Opera",
		CurrencySymbol:     "FTM",
		ExplorerURL:        "https://ftmscan.com",
		PriceOracleAddress: addrPtr("0xf4766552D15AE4d256Ad41B6cf2933482B0680dc"),
		CacheDirName:       "fantom",
	},
}

func addrPtr(hex string) *common.Address {
	a := common.HexToAddress(hex)
	return &a
}

// Get returns the registered chain metadata, or the generic "unknown"
// record if id has no entry: empty oracle, cache dir "network_<id>".
func Get(id uint64) Chain {
	if c, ok := registry[id]; ok {
		return c
	}
	return Chain{
		ID:             id,
		Name:           fmt.Sprintf("Unknown network %d", id),
		CurrencySymbol: "ETH",
		CacheDirName:   fmt.Sprintf("network_%d", id),
	}
}

// Exists reports whether id has a dedicated registry entry (as opposed to
// falling back to the generic unknown record).
func Exists(id uint64) bool {
	_, ok := registry[id]
	return ok
}

// IsMainnet is used by the ENSLookup mode selector (§4.5.1): ENS resolution
// is disabled on every chain but mainnet.
func (c Chain) IsMainnet() bool { return c.ID == 1 }

// SignatureOverride looks up a forced signature for (selector, position),
// taking priority over the SignatureStore during resolution.
func (c Chain) SignatureOverride(selector [4]byte, position int) (string, bool) {
	if c.SignatureOverrides == nil {
		return "", false
	}
	sig, ok := c.SignatureOverrides[SignatureOverrideKey{Selector: selector, Position: position}]
	return sig, ok
}

// List returns every chain with a dedicated registry entry, sorted by id.
func List() []Chain {
	out := make([]Chain, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SupportedChainsHelp renders the "- name (chain_id)" listing used by the
// ConfigError message when a URL cannot be resolved for an unrecognized
// chain id. Ported from
// EVMChainType::supported_chains_text in the original source.
func SupportedChainsHelp() string {
	var b strings.Builder
	b.WriteString("Currently supported EVM chains:\n")
	for _, c := range List() {
		fmt.Fprintf(&b, "- %s (%d)\n", c.Name, c.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}
