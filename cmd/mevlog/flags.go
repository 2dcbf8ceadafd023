package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/mevlog-go/mevlog/internal/filter"
	"github.com/mevlog-go/mevlog/internal/model"
	"github.com/mevlog-go/mevlog/internal/unitparse"
)

// connFlags are the connection options shared by every subcommand that
// talks to a chain (§6's "Connection options").
var connFlags = []cli.Flag{
	&cli.StringFlag{Name: "rpc-url", Usage: "HTTP(S) JSON-RPC endpoint"},
	&cli.StringFlag{Name: "ws-url", Usage: "WebSocket JSON-RPC endpoint"},
	&cli.Uint64Flag{Name: "chain-id", Usage: "resolve the RPC URL from config.toml for this chain id"},
	&cli.StringFlag{Name: "trace", Usage: "trace backend: rpc|revm", Value: "none"},
	&cli.Uint64Flag{Name: "max-retries", Usage: "max RPC retry attempts", Value: 10},
}

// filterFlags are the shared filter options of §4.6, usable by search/tx/watch.
var filterFlags = []cli.Flag{
	&cli.StringFlag{Name: "from", Usage: "match tx.from: address or ENS name"},
	&cli.StringFlag{Name: "to", Usage: "match tx.to: address, ENS name, or \"CREATE\""},
	&cli.StringFlag{Name: "method", Usage: "match resolved method signature (literal or /regex/)"},
	&cli.StringSliceFlag{Name: "event", Usage: "require a matching log (literal or /regex/, optionally \"sig@address\")"},
	&cli.StringSliceFlag{Name: "not-event", Usage: "require no matching log"},
	&cli.StringFlag{Name: "touching", Usage: "match txs whose trace touches this address (requires tracing)"},
	&cli.StringFlag{Name: "p", Aliases: []string{"position"}, Usage: "tx position within the block: N or N:M"},
	&cli.StringSliceFlag{Name: "tx-index", Usage: "match one or more specific tx indexes"},
	&cli.StringSliceFlag{Name: "min-gas-price", Usage: "ge<value><unit> threshold on effective gas price"},
	&cli.StringSliceFlag{Name: "max-gas-price", Usage: "le<value><unit> threshold on effective gas price"},
	&cli.StringSliceFlag{Name: "min-value", Usage: "ge<value><unit> threshold on tx value"},
	&cli.StringSliceFlag{Name: "min-real-tx-cost", Usage: "ge<value><unit> threshold on real_tx_cost (requires tracing)"},
	&cli.StringFlag{Name: "sort", Usage: "sort key: gas-price|gas-used|tx-cost|real-tx-cost|erc20-transfer"},
	&cli.StringFlag{Name: "sort-dir", Usage: "asc|desc", Value: "desc"},
	&cli.StringFlag{Name: "token", Usage: "ERC-20 token address, required by --sort erc20-transfer"},
	&cli.IntFlag{Name: "limit", Usage: "cap the number of results, 0 = unlimited"},
	&cli.StringFlag{Name: "format", Usage: "text|json|json-pretty|json-stream|json-pretty-stream", Value: "text"},
	&cli.BoolFlag{Name: "ens", Usage: "force synchronous ENS resolution for this query's --from/--to name"},
}

// parseAddressOrENS builds an AddressMatch from a flag value that may be a
// literal address, an ENS name, or (for `to` only) the literal "CREATE".
func parseAddressOrENS(s string) *filter.AddressMatch {
	if s == "" {
		return nil
	}
	if strings.EqualFold(s, "CREATE") {
		return &filter.AddressMatch{Create: true}
	}
	if common.IsHexAddress(s) {
		addr := common.HexToAddress(s)
		return &filter.AddressMatch{Address: &addr}
	}
	return &filter.AddressMatch{ENSName: s}
}

// parseEventQuery parses "sig" or "sig@0xaddress" into an EventQuery.
func parseEventQuery(s string) (filter.EventQuery, error) {
	sig, addrPart, hasAddr := strings.Cut(s, "@")
	q := filter.EventQuery{Signature: sig}
	if hasAddr {
		if !common.IsHexAddress(addrPart) {
			return filter.EventQuery{}, model.NewError(model.KindFilter, "parseEventQuery", fmt.Errorf("invalid address in event query %q", s))
		}
		addr := common.HexToAddress(addrPart)
		q.Address = &addr
	}
	return q, nil
}

// parsePosition parses "-p"'s N or N:M grammar into a PositionRange.
func parsePosition(s string) (filter.PositionRange, error) {
	if idx := strings.Index(s, ":"); idx >= 0 {
		from, err := strconv.Atoi(s[:idx])
		if err != nil {
			return filter.PositionRange{}, model.NewError(model.KindFilter, "parsePosition", err)
		}
		to, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return filter.PositionRange{}, model.NewError(model.KindFilter, "parsePosition", err)
		}
		return filter.PositionRange{From: from, To: to}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return filter.PositionRange{}, model.NewError(model.KindFilter, "parsePosition", err)
	}
	return filter.PositionRange{From: n, To: n}, nil
}

// buildEngine assembles a filter.Engine from the shared filter flags on c.
func buildEngine(c *cli.Context) (filter.Engine, error) {
	var e filter.Engine

	e.From = parseAddressOrENS(c.String("from"))
	e.To = parseAddressOrENS(c.String("to"))

	if m := c.String("method"); m != "" {
		e.Method = &filter.MethodQuery{Signature: m}
	}

	for _, s := range c.StringSlice("event") {
		q, err := parseEventQuery(s)
		if err != nil {
			return e, err
		}
		e.Events = append(e.Events, q)
	}
	for _, s := range c.StringSlice("not-event") {
		q, err := parseEventQuery(s)
		if err != nil {
			return e, err
		}
		e.NotEvents = append(e.NotEvents, q)
	}

	if t := c.String("touching"); t != "" {
		if !common.IsHexAddress(t) {
			return e, model.NewError(model.KindFilter, "buildEngine", fmt.Errorf("--touching must be a literal address, got %q", t))
		}
		addr := common.HexToAddress(t)
		e.Touching = &addr
	}

	if p := c.String("p"); p != "" {
		pos, err := parsePosition(p)
		if err != nil {
			return e, err
		}
		e.HasPosition = true
		e.Position = pos
	}

	if idxs := c.StringSlice("tx-index"); len(idxs) > 0 {
		e.TxIndexes = map[int]bool{}
		for _, s := range idxs {
			n, err := strconv.Atoi(s)
			if err != nil {
				return e, model.NewError(model.KindFilter, "buildEngine", err)
			}
			e.TxIndexes[n] = true
		}
	}

	numeric, err := buildNumericPredicates(c)
	if err != nil {
		return e, err
	}
	e.Numeric = numeric

	return e, nil
}

func buildNumericPredicates(c *cli.Context) ([]filter.NumericPredicate, error) {
	var out []filter.NumericPredicate
	specs := []struct {
		flag  string
		field filter.NumericField
	}{
		{"min-gas-price", filter.FieldEffectiveGasPrice},
		{"max-gas-price", filter.FieldEffectiveGasPrice},
		{"min-value", filter.FieldValue},
		{"min-real-tx-cost", filter.FieldRealTxCost},
	}
	for _, spec := range specs {
		for _, s := range c.StringSlice(spec.flag) {
			th, err := unitparse.ParseThreshold(s)
			if err != nil {
				return nil, model.NewError(model.KindFilter, "buildNumericPredicates", err)
			}
			out = append(out, filter.NumericPredicate{Field: spec.field, Threshold: th})
		}
	}
	return out, nil
}

// buildSort returns the SortSpec and whether one was requested.
func buildSort(c *cli.Context) (filter.SortSpec, bool, error) {
	key := c.String("sort")
	if key == "" {
		return filter.SortSpec{}, false, nil
	}

	var sk filter.SortKey
	switch key {
	case "gas-price":
		sk = filter.SortGasPrice
	case "gas-used":
		sk = filter.SortGasUsed
	case "tx-cost":
		sk = filter.SortTxCost
	case "real-tx-cost":
		sk = filter.SortFullTxCost
	case "erc20-transfer":
		sk = filter.SortERC20Transfer
	default:
		return filter.SortSpec{}, false, model.NewError(model.KindFilter, "buildSort", fmt.Errorf("unknown --sort %q", key))
	}

	dir := filter.Descending
	switch c.String("sort-dir") {
	case "", "desc":
		dir = filter.Descending
	case "asc":
		dir = filter.Ascending
	default:
		return filter.SortSpec{}, false, model.NewError(model.KindFilter, "buildSort", fmt.Errorf("unknown --sort-dir %q", c.String("sort-dir")))
	}

	spec := filter.SortSpec{Key: sk, Direction: dir}
	if sk == filter.SortERC20Transfer {
		token := c.String("token")
		if !common.IsHexAddress(token) {
			return filter.SortSpec{}, false, model.NewError(model.KindFilter, "buildSort", fmt.Errorf("--sort erc20-transfer requires --token=<address>"))
		}
		spec.Token = common.HexToAddress(token)
	}
	return spec, true, nil
}
