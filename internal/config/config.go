// Package config implements the persisted-state layout and connection
// options of §6: `~/.mevlog/config.toml` chain URL overrides loaded with
// BurntSushi/toml, layered under CLI flags and the ETH_RPC_URL/ETH_WS_URL
// env vars, plus the ConnOpts/TraceMode shape ported from shared_init.rs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/model"
)

// TraceMode selects the trace backend (§6's `--trace rpc|revm`, named
// local-fork here since no literal revm dependency exists in this port).
type TraceMode int

const (
	TraceNone TraceMode = iota
	TraceRPC
	TraceLocalFork
)

func ParseTraceMode(s string) (TraceMode, error) {
	switch s {
	case "", "none":
		return TraceNone, nil
	case "rpc":
		return TraceRPC, nil
	case "revm", "local-fork":
		return TraceLocalFork, nil
	default:
		return TraceNone, model.NewError(model.KindConfig, "config.ParseTraceMode", fmt.Errorf("unknown trace mode %q, want \"rpc\" or \"revm\"", s))
	}
}

// ChainOverride is one `[chains.<id>]` table in config.toml.
type ChainOverride struct {
	RPCURL string `toml:"rpc_url"`
}

// File is the on-disk shape of config.toml: `{chains: {id: {rpc_url: "..."}}}`.
type File struct {
	Chains map[string]ChainOverride `toml:"chains"`
}

// Dir returns `~/.mevlog`.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", model.NewError(model.KindConfig, "config.Dir", err)
	}
	return filepath.Join(home, ".mevlog"), nil
}

// Path returns `~/.mevlog/config.toml`.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// SignatureDBPath returns `~/.mevlog/signatures-sqlite.db`.
func SignatureDBPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "signatures-sqlite.db"), nil
}

// CacheDir returns `~/.mevlog/.<name>-cache`, used for the ENS and symbol
// content-addressed stores.
func CacheDir(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "."+name+"-cache"), nil
}

// RevmCacheDir returns `~/.mevlog/.revm-cache/<chainCacheDir>`.
func RevmCacheDir(chainCacheDir string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".revm-cache", chainCacheDir), nil
}

// CryoCacheDir returns `~/.mevlog/.cryo-cache/<chainCacheDir>`.
func CryoCacheDir(chainCacheDir string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".cryo-cache", chainCacheDir), nil
}

// Load reads config.toml; a missing file is not an error (returns an empty
// File), matching the "optional overrides" framing of §6.
func Load() (*File, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, model.NewError(model.KindConfig, "config.Load", err)
	}
	return &f, nil
}

// ResolveRPCURL returns the rpc_url configured for chainID, or "" if none.
func (f *File) ResolveRPCURL(chainID uint64) string {
	if f == nil || f.Chains == nil {
		return ""
	}
	return f.Chains[fmt.Sprint(chainID)].RPCURL
}

// ConnOpts is the resolved connection configuration: exactly one of RPCURL
// or WSURL must be set, per shared_init.rs's mutual-exclusion rule.
type ConnOpts struct {
	RPCURL  string
	WSURL   string
	ChainID uint64
	Trace   TraceMode
}

// Validate enforces "exactly one of --rpc-url / --ws-url".
func (c ConnOpts) Validate() error {
	if c.RPCURL != "" && c.WSURL != "" {
		return model.NewError(model.KindConfig, "ConnOpts.Validate", fmt.Errorf("--rpc-url and --ws-url are mutually exclusive"))
	}
	if c.RPCURL == "" && c.WSURL == "" {
		return model.NewError(model.KindConfig, "ConnOpts.Validate", fmt.Errorf("one of --rpc-url or --ws-url is required"))
	}
	return nil
}

// URL returns whichever of RPCURL/WSURL is set.
func (c ConnOpts) URL() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return c.WSURL
}

// Resolve builds ConnOpts from CLI flags, env vars, and config.toml, in
// that precedence order (§6): an explicit --rpc-url/--ws-url wins; else the
// ETH_RPC_URL/ETH_WS_URL env vars; else, if --chain-id was given, the
// config.toml override for that chain; else an error, which also lists the
// supported chains when --chain-id names an unknown chain.
func Resolve(rpcURLFlag, wsURLFlag string, chainIDFlag uint64, hasChainID bool, file *File) (ConnOpts, error) {
	opts := ConnOpts{RPCURL: rpcURLFlag, WSURL: wsURLFlag, ChainID: chainIDFlag}

	if opts.RPCURL == "" && opts.WSURL == "" {
		opts.RPCURL = os.Getenv("ETH_RPC_URL")
		opts.WSURL = os.Getenv("ETH_WS_URL")
	}

	if opts.RPCURL == "" && opts.WSURL == "" && hasChainID {
		if url := file.ResolveRPCURL(chainIDFlag); url != "" {
			opts.RPCURL = url
		}
	}

	if opts.RPCURL == "" && opts.WSURL == "" {
		if hasChainID && !chains.Exists(chainIDFlag) {
			return ConnOpts{}, model.NewError(model.KindConfig, "config.Resolve", fmt.Errorf("no RPC URL configured for chain id %d and it is not a known chain.\n%s", chainIDFlag, chains.SupportedChainsHelp()))
		}
		return ConnOpts{}, model.NewError(model.KindConfig, "config.Resolve", fmt.Errorf("no RPC URL: pass --rpc-url/--ws-url, set ETH_RPC_URL/ETH_WS_URL, or configure chains.<id>.rpc_url in config.toml"))
	}

	return opts, opts.Validate()
}

// LockDir acquires a non-blocking advisory lock on `~/.mevlog/LOCK`,
// mirroring go-ethereum's instance-directory lock in node.Node.openDataDir:
// `update-db` writes the signature database in place, and the lock keeps a
// concurrent query process from observing it mid-write. A held lock from
// another process is reported as a config error rather than blocking, since
// mevlog invocations are one-shot CLI runs rather than long-lived daemons.
func LockDir(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.NewError(model.KindConfig, "config.LockDir", err)
	}
	lock := flock.New(filepath.Join(dir, "LOCK"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, model.NewError(model.KindConfig, "config.LockDir", err)
	}
	if !ok {
		return nil, model.NewError(model.KindConfig, "config.LockDir", fmt.Errorf("%s is already in use by another mevlog process", dir))
	}
	return lock, nil
}

// Quiet reports whether QUIET=1 is set (§6); main then logs errors only.
func Quiet() bool {
	return os.Getenv("QUIET") == "1"
}

// LogLevel returns MEVLOG_LOG, falling back to "info".
func LogLevel() string {
	if v := os.Getenv("MEVLOG_LOG"); v != "" {
		return v
	}
	return "info"
}
