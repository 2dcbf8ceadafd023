package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/model"
)

func TestCreateAddressMatchesGoEthereumDerivation(t *testing.T) {
	from := common.HexToAddress("0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")
	got := createAddress(from, 0)
	require.Contains(t, got, "CREATE::0x")
	require.Len(t, got, len("CREATE::")+42)
}

func TestBigStringNil(t *testing.T) {
	require.Equal(t, "0", bigString(nil))
}

func TestBigStringValue(t *testing.T) {
	require.Equal(t, "123", bigString(big.NewInt(123)))
}

func newEnrichedTx() *model.EnrichedTransaction {
	var tx model.EnrichedTransaction
	tx.Hash = common.HexToHash("0xaa")
	tx.Index = 3
	tx.From = common.HexToAddress("0x01")
	to := common.HexToAddress("0x02")
	tx.To = &to
	tx.GasPrice = big.NewInt(7)
	tx.Signature = "transfer(address,uint256)"
	tx.FromView.Address = tx.From
	return &tx
}

func TestNewTxViewWithoutReceipt(t *testing.T) {
	tx := newEnrichedTx()
	v := newTxView(tx)
	require.Equal(t, tx.Hash.Hex(), v.Hash)
	require.Equal(t, 3, v.Index)
	require.Nil(t, v.GasUsed)
	require.Nil(t, v.Success)
	require.Equal(t, "7", v.GasPrice)
	require.Equal(t, "0", v.Value)
	require.Nil(t, v.SignatureHash)
	require.Nil(t, v.FromENS)
	require.Nil(t, v.ToENS)
	require.Empty(t, v.LogGroups)
	require.Nil(t, v.Calls)
}

func TestNewTxViewSignatureHashNonceValue(t *testing.T) {
	tx := newEnrichedTx()
	tx.Nonce = 42
	tx.Value = big.NewInt(1000)
	hash := [4]byte{0xde, 0xad, 0xbe, 0xef}
	tx.SignatureHash = &hash

	v := newTxView(tx)
	require.Equal(t, uint64(42), v.Nonce)
	require.Equal(t, "1000", v.Value)
	require.NotNil(t, v.SignatureHash)
	require.Equal(t, "0xdeadbeef", *v.SignatureHash)
}

func TestNewTxViewFromToENS(t *testing.T) {
	tx := newEnrichedTx()
	fromName := "jaredfromsubway.eth"
	tx.FromView.ENSName = &fromName

	v := newTxView(tx)
	require.NotNil(t, v.FromENS)
	require.Equal(t, "jaredfromsubway.eth", *v.FromENS)
	require.Nil(t, v.ToENS)
	require.Equal(t, tx.From.Hex(), v.From) // plain address even when FromENS is set
}

func TestNewTxViewLogGroups(t *testing.T) {
	tx := newEnrichedTx()
	source := common.HexToAddress("0x03")
	symbol := "USDC"
	amount := big.NewInt(500)
	tx.LogGroups = []model.LogGroup{{
		SourceAddress: source,
		Logs: []model.ResolvedLog{{
			RawLog: model.RawLog{
				Address: source,
				Topics:  []common.Hash{common.HexToHash("0x1")},
				Data:    []byte{0x01, 0x02},
			},
			Signature:   "Transfer(address,address,uint256)",
			Symbol:      &symbol,
			ERC20Amount: amount,
		}},
	}}

	v := newTxView(tx)
	require.Len(t, v.LogGroups, 1)
	require.Equal(t, source.Hex(), v.LogGroups[0].Source)
	require.Len(t, v.LogGroups[0].Logs, 1)
	log := v.LogGroups[0].Logs[0]
	require.Equal(t, "Transfer(address,address,uint256)", log.Signature)
	require.NotNil(t, log.Symbol)
	require.Equal(t, "USDC", *log.Symbol)
	require.NotNil(t, log.Amount)
	require.Equal(t, "500", *log.Amount)
	require.Equal(t, "0x0102", log.Data)
}

func TestNewTxViewCallsTree(t *testing.T) {
	tx := newEnrichedTx()
	inner := common.HexToAddress("0x04")
	tx.Calls = []model.CallFrame{{
		From:  tx.From,
		To:    &inner,
		Value: big.NewInt(1),
		Calls: []model.CallFrame{{From: inner, Value: big.NewInt(0)}},
	}}

	v := newTxView(tx)
	require.Len(t, v.Calls, 1)
	require.Equal(t, tx.From.Hex(), v.Calls[0].From)
	require.NotNil(t, v.Calls[0].To)
	require.Len(t, v.Calls[0].Calls, 1)
}

func TestNewTxViewOpcodesAndStateDiff(t *testing.T) {
	tx := newEnrichedTx()
	tx.Opcodes = []model.Opcode{{PC: 0, Mnemonic: "PUSH1", GasCost: 3, GasRemaining: 100}}
	addr := common.HexToAddress("0x05")
	slot := common.HexToHash("0x1")
	after := common.HexToHash("0x2")
	tx.StateDiffResult = model.StateDiff{addr: {{Slot: slot, After: &after}}}

	v := newTxView(tx)
	require.Len(t, v.Opcodes, 1)
	require.Equal(t, "PUSH1", v.Opcodes[0].Mnemonic)
	require.Len(t, v.StateDiff, 1)
	require.Equal(t, addr.Hex(), v.StateDiff[0].Address)
	require.Nil(t, v.StateDiff[0].Slots[0].Before)
	require.NotNil(t, v.StateDiff[0].Slots[0].After)
}

func TestNewTxViewWithReceipt(t *testing.T) {
	tx := newEnrichedTx()
	tx.Receipt = &model.Receipt{Success: true, GasUsed: 21000, EffectiveGasPrice: big.NewInt(9)}
	v := newTxView(tx)
	require.NotNil(t, v.GasUsed)
	require.Equal(t, uint64(21000), *v.GasUsed)
	require.NotNil(t, v.Success)
	require.True(t, *v.Success)
	require.NotNil(t, v.RealGasPrice)
	require.NotNil(t, v.RealTxCost)
}

func TestToLineContractCreation(t *testing.T) {
	tx := newEnrichedTx()
	tx.To = nil
	tx.Nonce = 5
	line := toLine(tx)
	require.Contains(t, line, "CREATE::")
}

func TestToLineENS(t *testing.T) {
	tx := newEnrichedTx()
	name := "vitalik.eth"
	tx.ToENS = &name
	require.Equal(t, "vitalik.eth", toLine(tx))
}

func TestToLinePlainAddress(t *testing.T) {
	tx := newEnrichedTx()
	require.Equal(t, tx.To.Hex(), toLine(tx))
}

func TestFromLineENS(t *testing.T) {
	tx := newEnrichedTx()
	name := "alice.eth"
	tx.FromView.ENSName = &name
	require.Equal(t, "alice.eth", fromLine(tx))
}

func TestFromLinePlainAddress(t *testing.T) {
	tx := newEnrichedTx()
	require.Equal(t, tx.From.Hex(), fromLine(tx))
}

func TestWriterJSONStreamEmitsPerLine(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(&buf, formatJSONStream)
	require.NoError(t, w.WriteTx(newEnrichedTx()))
	require.NoError(t, w.WriteTx(newEnrichedTx()))
	require.NoError(t, w.Close())

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	require.Equal(t, 2, lines)
}

func TestWriterBufferedJSONEmitsOneArray(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(&buf, formatJSON)
	require.NoError(t, w.WriteTx(newEnrichedTx()))
	require.NoError(t, w.WriteTx(newEnrichedTx()))
	require.NoError(t, w.Close())

	var out []txView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
}

func TestWriterTextFormat(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(&buf, formatText)
	require.NoError(t, w.WriteTx(newEnrichedTx()))
	require.NoError(t, w.Close())
	require.Contains(t, buf.String(), "transfer(address,uint256)")
}

func TestHexDump(t *testing.T) {
	require.Equal(t, "0xdeadbeef", hexDump([]byte{0xde, 0xad, 0xbe, 0xef}))
}

func TestGweiStringRoundsToTwoDecimals(t *testing.T) {
	wei, _ := new(big.Int).SetString("18253300000", 10)
	require.Equal(t, "18.25", gweiString(wei))
}

func TestWriterTextFormatShowsRealGasPriceInGwei(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(&buf, formatText)

	tx := newEnrichedTx()
	tx.Receipt = &model.Receipt{Success: true, GasUsed: 21000, EffectiveGasPrice: big.NewInt(18253300000000)}
	require.NoError(t, w.WriteTx(tx))
	require.NoError(t, w.Close())

	require.Contains(t, buf.String(), "Real Gas Price: 18253.30 GWEI")
}
