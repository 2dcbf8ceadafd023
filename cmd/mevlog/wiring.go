package main

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v2"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/config"
	"github.com/mevlog-go/mevlog/internal/diskcache"
	"github.com/mevlog-go/mevlog/internal/ensresolve"
	"github.com/mevlog-go/mevlog/internal/enrich"
	"github.com/mevlog-go/mevlog/internal/forkstate"
	"github.com/mevlog-go/mevlog/internal/metrics"
	"github.com/mevlog-go/mevlog/internal/model"
	"github.com/mevlog-go/mevlog/internal/oracle"
	"github.com/mevlog-go/mevlog/internal/rpcsource"
	"github.com/mevlog-go/mevlog/internal/scheduler"
	"github.com/mevlog-go/mevlog/internal/sigstore"
	"github.com/mevlog-go/mevlog/internal/symbolresolve"
	"github.com/mevlog-go/mevlog/internal/tracerpc"
)

const ensWorkerQueueSize = 64
const symbolWorkerQueueSize = 64

// app bundles a wired Scheduler with the resources its Shutdown doesn't
// already own (the RPC client, signature store, caches), so the CLI layer
// can close everything in one place regardless of which command ran.
type app struct {
	Scheduler *scheduler.Scheduler
	Client    *rpcsource.Client
	Store     *sigstore.Store
	ENSCache  *diskcache.Cache
	SymCache  *diskcache.Cache
	Lock      *flock.Flock
}

func (a *app) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.ENSCache != nil {
		a.ENSCache.Close()
	}
	if a.SymCache != nil {
		a.SymCache.Close()
	}
	if a.Client != nil {
		a.Client.Close()
	}
	if a.Lock != nil {
		a.Lock.Unlock()
	}
}

// wireApp dials the RPC connection and builds every component the
// Scheduler needs (pipeline, trace provider, oracle, background workers),
// per the "build first, trim last" shape of §4.7/§9.
func wireApp(ctx context.Context, c *cli.Context, queriedENSName string) (*app, error) {
	file, err := config.Load()
	if err != nil {
		return nil, err
	}

	traceMode, err := config.ParseTraceMode(c.String("trace"))
	if err != nil {
		return nil, err
	}

	hasChainID := c.IsSet("chain-id")
	opts, err := config.Resolve(c.String("rpc-url"), c.String("ws-url"), c.Uint64("chain-id"), hasChainID, file)
	if err != nil {
		return nil, err
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	lock, err := config.LockDir(dir)
	if err != nil {
		return nil, err
	}

	client, err := rpcsource.Dial(ctx, opts.URL(), c.Uint64("max-retries"))
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	m := metrics.New()
	client.SetMetrics(m)

	chainID := opts.ChainID
	if !hasChainID {
		chainID = 1 // no --chain-id given: ConnOpts already required an explicit URL, default registry metadata to mainnet
	}
	chain := chains.Get(chainID)

	a := &app{Client: client, Lock: lock}

	sigPath, err := config.SignatureDBPath()
	if err != nil {
		a.Close()
		return nil, err
	}
	store, err := sigstore.Open(sigPath)
	if err != nil {
		a.Close()
		return nil, model.NewError(model.KindData, "wireApp", err)
	}
	a.Store = store

	ensCacheDir, err := config.CacheDir("ens")
	if err != nil {
		a.Close()
		return nil, err
	}
	ensCache, err := diskcache.Open(ensCacheDir)
	if err != nil {
		a.Close()
		return nil, model.NewError(model.KindData, "wireApp", err)
	}
	a.ENSCache = ensCache

	symCacheDir, err := config.CacheDir("symbols")
	if err != nil {
		a.Close()
		return nil, err
	}
	symCache, err := diskcache.Open(symCacheDir)
	if err != nil {
		a.Close()
		return nil, model.NewError(model.KindData, "wireApp", err)
	}
	a.SymCache = symCache

	ensMode := ensresolve.SelectMode(chain, queriedENSName, ensCache)
	if c.Bool("ens") && ensMode == ensresolve.Async {
		ensMode = ensresolve.Sync
	}
	var ensResolver *ensresolve.Resolver
	var ensQueue chan common.Address
	if ensMode != ensresolve.Disabled {
		ensResolver = ensresolve.New(client.CallContract, ensCache)
		ensQueue = make(chan common.Address, ensWorkerQueueSize)
		go ensResolver.Worker(ctx, ensQueue)
	}

	symResolver := symbolresolve.New(client.CallContract, symCache)
	symQueue := make(chan common.Address, symbolWorkerQueueSize)
	go symResolver.Worker(ctx, symQueue)

	pipeline := &enrich.Pipeline{
		Chain:       chain,
		MethodStore: store,
		EventStore:  store,
		Receipts:    client,
	}
	if ensResolver != nil {
		pipeline.ENS = ensResolver
	}

	sched := &scheduler.Scheduler{
		Chain:       chain,
		Fetcher:     client,
		Pipeline:    pipeline,
		Analyzer:    enrich.DefaultCoinbaseAnalyzer{},
		Oracle:      oracle.New(client.CallContract),
		Metrics:     m,
		ENSMode:     ensMode,
		ENSQueue:    ensQueue,
		SymbolQueue: symQueue,
	}

	switch traceMode {
	case config.TraceRPC:
		sched.WantTrace = true
		sched.TraceProvider = scheduler.NewRPCProvider(tracerpc.New(client.Raw()), false)
	case config.TraceLocalFork:
		sched.WantTrace = true
		sched.TraceProvider = &dynamicLocalForkProvider{url: opts.URL(), chainID: chain.ID}
	}

	a.Scheduler = sched
	return a, nil
}

// dynamicLocalForkProvider adapts scheduler.LocalForkProvider to a batch run
// spanning multiple blocks: the local-fork backend must be rooted at
// block-1 for whichever block it is about to replay (§4.4.2), so a fresh
// RemoteState is dialed and pinned on every Trace call rather than once at
// wiring time.
type dynamicLocalForkProvider struct {
	url     string
	chainID uint64
}

func (p *dynamicLocalForkProvider) BackendLabel() string { return "revm" }

func (p *dynamicLocalForkProvider) Trace(ctx context.Context, block *model.RawBlock) (map[int]scheduler.TraceResult, []error) {
	var pinned uint64
	if block.Number > 0 {
		pinned = block.Number - 1
	}
	state, err := forkstate.Dial(ctx, p.url, pinned)
	if err != nil {
		errs := make([]error, len(block.Transactions))
		for i := range errs {
			errs[i] = err
		}
		return nil, errs
	}
	inner := scheduler.NewLocalForkProvider(state, p.chainID)
	return inner.Trace(ctx, block)
}
