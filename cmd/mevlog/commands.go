package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/config"
	"github.com/mevlog-go/mevlog/internal/filter"
	"github.com/mevlog-go/mevlog/internal/model"
	"github.com/mevlog-go/mevlog/internal/scheduler"
)

var searchCommand = &cli.Command{
	Name:  "search",
	Usage: "enrich, filter, and emit transactions over a block range",
	Flags: append(append([]cli.Flag{
		&cli.StringFlag{Name: "b", Aliases: []string{"block"}, Usage: "block spec: N, \"latest\", N:M, or N:", Required: true},
		&cli.Uint64Flag{Name: "max-range", Usage: "error if the resolved range spans more blocks than this, 0 = unlimited"},
	}, connFlags...), filterFlags...),
	Action: runSearch,
}

func runSearch(c *cli.Context) error {
	ctx := c.Context

	format, err := parseOutputFormat(c.String("format"))
	if err != nil {
		return err
	}

	a, err := wireApp(ctx, c, c.String("from")+c.String("to"))
	if err != nil {
		return err
	}
	defer a.Close()

	head, err := a.Scheduler.Fetcher.HeadBlockNumber(ctx)
	if err != nil {
		return err
	}

	rng, err := parseBlockSpec(c.String("b"), head)
	if err != nil {
		return err
	}
	if err := clampRange(rng, c.Uint64("max-range")); err != nil {
		return err
	}

	engine, err := buildEngine(c)
	if err != nil {
		return err
	}
	a.Scheduler.Engine = engine

	sort, hasSort, err := buildSort(c)
	if err != nil {
		return err
	}
	a.Scheduler.HasSort = hasSort
	a.Scheduler.Sort = sort
	a.Scheduler.Limit = c.Int("limit")

	w := newWriter(os.Stdout, format)

	if hasSort || a.Scheduler.Limit > 0 {
		// Buffered: global sort/limit needs every block's matches collected
		// first (§4.7's "buffered mode" path).
		var all []model.EnrichedTransaction
		err = a.Scheduler.ProcessRange(ctx, rng.numbersDescending(), func(br *scheduler.BlockResult) error {
			all = append(all, br.Transactions...)
			return nil
		})
		if err != nil {
			return err
		}
		if hasSort {
			all = filter.Sort(all, sort)
		}
		if a.Scheduler.Limit > 0 && len(all) > a.Scheduler.Limit {
			all = all[:a.Scheduler.Limit]
		}
		for i := range all {
			if err := w.WriteTx(&all[i]); err != nil {
				return err
			}
		}
		return w.Close()
	}

	// Streaming: emit each block's matches as they complete.
	err = a.Scheduler.ProcessRange(ctx, rng.numbersDescending(), func(br *scheduler.BlockResult) error {
		for i := range br.Transactions {
			if err := w.WriteTx(&br.Transactions[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return w.Close()
}

var txCommand = &cli.Command{
	Name:      "tx",
	Usage:     "run the pipeline over a single transaction's block, optionally with neighbors",
	ArgsUsage: "<hash>",
	Flags: append(append([]cli.Flag{
		&cli.IntFlag{Name: "before", Usage: "include N transactions before the target"},
		&cli.IntFlag{Name: "after", Usage: "include N transactions after the target"},
		&cli.BoolFlag{Name: "reverse", Usage: "emit in reverse (highest index first)"},
		&cli.BoolFlag{Name: "top-metadata", Usage: "mark the target transaction with TopMetadata"},
	}, connFlags...), filterFlags...),
	Action: runTx,
}

func runTx(c *cli.Context) error {
	if c.NArg() != 1 {
		return model.NewError(model.KindFilter, "tx", fmt.Errorf("expected exactly one transaction hash argument"))
	}
	ctx := c.Context

	format, err := parseOutputFormat(c.String("format"))
	if err != nil {
		return err
	}

	a, err := wireApp(ctx, c, c.String("from")+c.String("to"))
	if err != nil {
		return err
	}
	defer a.Close()

	hash := c.Args().First()
	block, targetIndex, err := locateTxBlock(ctx, a, hash)
	if err != nil {
		return err
	}

	engine, err := buildEngine(c)
	if err != nil {
		return err
	}
	a.Scheduler.Engine = engine
	a.Scheduler.Limit = 0

	before, after := c.Int("before"), c.Int("after")
	a.Scheduler.Engine.HasPosition = true
	a.Scheduler.Engine.Position.From = max0(targetIndex - before)
	a.Scheduler.Engine.Position.To = targetIndex + after

	result, err := a.Scheduler.ProcessBlock(ctx, block)
	if err != nil {
		return err
	}

	txs := result.Transactions
	if c.Bool("reverse") {
		for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
			txs[i], txs[j] = txs[j], txs[i]
		}
	}
	if c.Bool("top-metadata") {
		for i := range txs {
			if txs[i].Index == targetIndex {
				txs[i].TopMetadata = true
			}
		}
	}

	w := newWriter(os.Stdout, format)
	for i := range txs {
		if err := w.WriteTx(&txs[i]); err != nil {
			return err
		}
	}
	return w.Close()
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// locateTxBlock finds which block a transaction hash was mined in, via
// eth_getTransactionByHash.
func locateTxBlock(ctx context.Context, a *app, hash string) (blockNumber uint64, txIndex int, err error) {
	if len(hash) != 66 || hash[:2] != "0x" {
		return 0, 0, model.NewError(model.KindFilter, "locateTxBlock", fmt.Errorf("invalid transaction hash %q", hash))
	}
	return a.Client.LocateTransaction(ctx, common.HexToHash(hash))
}

var watchCommand = &cli.Command{
	Name:   "watch",
	Usage:  "poll for new blocks and apply the pipeline to each",
	Flags:  append(connFlags, filterFlags...),
	Action: runWatch,
}

func runWatch(c *cli.Context) error {
	ctx := c.Context

	format, err := parseOutputFormat(c.String("format"))
	if err != nil {
		return err
	}

	a, err := wireApp(ctx, c, c.String("from")+c.String("to"))
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := buildEngine(c)
	if err != nil {
		return err
	}
	a.Scheduler.Engine = engine

	sort, hasSort, err := buildSort(c)
	if err != nil {
		return err
	}
	a.Scheduler.HasSort = hasSort
	a.Scheduler.Sort = sort

	w := newWriter(os.Stdout, format)

	lastSeen, err := a.Scheduler.Fetcher.HeadBlockNumber(ctx)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		head, err := a.Scheduler.Fetcher.HeadBlockNumber(ctx)
		if err != nil {
			return err
		}
		for n := lastSeen + 1; n <= head; n++ {
			result, err := a.Scheduler.ProcessBlock(ctx, n)
			if err != nil {
				return err
			}
			for i := range result.Transactions {
				if err := w.WriteTx(&result.Transactions[i]); err != nil {
					return err
				}
			}
		}
		lastSeen = head
		time.Sleep(time.Second)
	}
}

var chainsCommand = &cli.Command{
	Name:  "chains",
	Usage: "list known chains",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "filter", Usage: "substring filter on chain name"},
		&cli.IntFlag{Name: "limit", Usage: "cap the number of results, 0 = unlimited"},
		&cli.StringFlag{Name: "format", Usage: "text|json|json-pretty", Value: "text"},
	},
	Action: runChains,
}

func runChains(c *cli.Context) error {
	list := chains.List()
	if f := c.String("filter"); f != "" {
		filtered := list[:0]
		for _, ch := range list {
			if containsFold(ch.Name, f) {
				filtered = append(filtered, ch)
			}
		}
		list = filtered
	}
	if limit := c.Int("limit"); limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	format, err := parseOutputFormat(c.String("format"))
	if err != nil {
		return err
	}
	if format == formatText {
		writeChainsTable(os.Stdout, list)
		return nil
	}
	return writeJSON(os.Stdout, format, list)
}

var chainInfoCommand = &cli.Command{
	Name:  "chain-info",
	Usage: "show metadata for a single chain",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "chain-id", Required: true},
		&cli.BoolFlag{Name: "skip-urls", Usage: "accepted for compatibility; chain-info always prints metadata only and benchmarks no RPC URLs"},
		&cli.IntFlag{Name: "rpcs-limit", Usage: "accepted for compatibility; has no effect"},
		&cli.IntFlag{Name: "rpc-timeout-ms", Usage: "accepted for compatibility; has no effect", Value: 2000},
		&cli.StringFlag{Name: "format", Usage: "text|json|json-pretty", Value: "text"},
	},
	Action: runChainInfo,
}

func runChainInfo(c *cli.Context) error {
	id := c.Uint64("chain-id")
	if !chains.Exists(id) {
		return model.NewError(model.KindConfig, "chain-info", fmt.Errorf("Chain ID %d not found", id))
	}
	chain := chains.Get(id)

	format, err := parseOutputFormat(c.String("format"))
	if err != nil {
		return err
	}
	if format == formatText {
		writeChainInfoTable(os.Stdout, chain)
		return nil
	}
	return writeJSON(os.Stdout, format, chain)
}

var updateDBCommand = &cli.Command{
	Name:   "update-db",
	Usage:  "refresh the embedded signatures database",
	Action: runUpdateDB,
}

func runUpdateDB(c *cli.Context) error {
	path, err := config.SignatureDBPath()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "signatures database: %s\n", path)
	fmt.Fprintln(os.Stdout, "no remote signature feed is configured for this build; bulk-import via sigstore.Store.BulkImportMethods/ImportEvent to refresh it.")
	return nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
