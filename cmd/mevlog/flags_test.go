package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/mevlog-go/mevlog/internal/filter"
)

// newTestContext builds a *cli.Context with filterFlags registered and the
// given name=value pairs set, mirroring internal/flags's own BigFlag test
// harness in the upstream go-ethereum tree.
func newTestContext(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range filterFlags {
		require.NoError(t, f.Apply(fs))
	}
	app := cli.NewApp()
	ctx := cli.NewContext(app, fs, nil)
	for k, v := range args {
		require.NoError(t, ctx.Set(k, v))
	}
	return ctx
}

func TestParseAddressOrENSCreate(t *testing.T) {
	m := parseAddressOrENS("CREATE")
	require.NotNil(t, m)
	require.True(t, m.Create)
}

func TestParseAddressOrENSHex(t *testing.T) {
	m := parseAddressOrENS("0x0000000000000000000000000000000000000001")
	require.NotNil(t, m)
	require.NotNil(t, m.Address)
}

func TestParseAddressOrENSName(t *testing.T) {
	m := parseAddressOrENS("vitalik.eth")
	require.NotNil(t, m)
	require.Equal(t, "vitalik.eth", m.ENSName)
}

func TestParseAddressOrENSEmpty(t *testing.T) {
	require.Nil(t, parseAddressOrENS(""))
}

func TestParseEventQueryPlain(t *testing.T) {
	q, err := parseEventQuery("Transfer(address,address,uint256)")
	require.NoError(t, err)
	require.Equal(t, "Transfer(address,address,uint256)", q.Signature)
	require.Nil(t, q.Address)
}

func TestParseEventQueryWithAddress(t *testing.T) {
	q, err := parseEventQuery("Transfer(address,address,uint256)@0x0000000000000000000000000000000000000002")
	require.NoError(t, err)
	require.NotNil(t, q.Address)
}

func TestParseEventQueryInvalidAddress(t *testing.T) {
	_, err := parseEventQuery("Transfer(...)@not-an-address")
	require.Error(t, err)
}

func TestParsePositionSingle(t *testing.T) {
	p, err := parsePosition("5")
	require.NoError(t, err)
	require.Equal(t, filter.PositionRange{From: 5, To: 5}, p)
}

func TestParsePositionRange(t *testing.T) {
	p, err := parsePosition("2:9")
	require.NoError(t, err)
	require.Equal(t, filter.PositionRange{From: 2, To: 9}, p)
}

func TestParsePositionInvalid(t *testing.T) {
	_, err := parsePosition("abc")
	require.Error(t, err)
}

func TestBuildEngineFromTo(t *testing.T) {
	ctx := newTestContext(t, map[string]string{
		"from": "0x0000000000000000000000000000000000000001",
		"to":   "CREATE",
	})
	e, err := buildEngine(ctx)
	require.NoError(t, err)
	require.NotNil(t, e.From)
	require.NotNil(t, e.To)
	require.True(t, e.To.Create)
}

func TestBuildEngineTouchingRejectsNonAddress(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"touching": "not-an-address"})
	_, err := buildEngine(ctx)
	require.Error(t, err)
}

func TestBuildEnginePosition(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"p": "1:3"})
	e, err := buildEngine(ctx)
	require.NoError(t, err)
	require.True(t, e.HasPosition)
	require.Equal(t, filter.PositionRange{From: 1, To: 3}, e.Position)
}

func TestBuildNumericPredicatesMinGasPrice(t *testing.T) {
	ctx := newTestContext(t, map[string]string{})
	require.NoError(t, ctx.Set("min-gas-price", "ge10gwei"))
	e, err := buildEngine(ctx)
	require.NoError(t, err)
	require.Len(t, e.Numeric, 1)
	require.Equal(t, filter.FieldEffectiveGasPrice, e.Numeric[0].Field)
}

func TestBuildSortNoneRequested(t *testing.T) {
	ctx := newTestContext(t, map[string]string{})
	_, has, err := buildSort(ctx)
	require.NoError(t, err)
	require.False(t, has)
}

func TestBuildSortGasPriceDescByDefault(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"sort": "gas-price"})
	spec, has, err := buildSort(ctx)
	require.NoError(t, err)
	require.True(t, has)
	require.Equal(t, filter.SortGasPrice, spec.Key)
	require.Equal(t, filter.Descending, spec.Direction)
}

func TestBuildSortAscending(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"sort": "gas-used", "sort-dir": "asc"})
	spec, has, err := buildSort(ctx)
	require.NoError(t, err)
	require.True(t, has)
	require.Equal(t, filter.Ascending, spec.Direction)
}

func TestBuildSortERC20TransferRequiresToken(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"sort": "erc20-transfer"})
	_, _, err := buildSort(ctx)
	require.Error(t, err)
}

func TestBuildSortERC20TransferWithToken(t *testing.T) {
	ctx := newTestContext(t, map[string]string{
		"sort":  "erc20-transfer",
		"token": "0x0000000000000000000000000000000000000003",
	})
	spec, has, err := buildSort(ctx)
	require.NoError(t, err)
	require.True(t, has)
	require.Equal(t, filter.SortERC20Transfer, spec.Key)
}

func TestBuildSortUnknownKey(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"sort": "bogus"})
	_, _, err := buildSort(ctx)
	require.Error(t, err)
}
