package unitparse

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseValueHalfEther(t *testing.T) {
	v, err := ParseValue("0.5ether")
	require.NoError(t, err)
	require.Equal(t, "500000000000000000", v.String())
}

func TestParseValuePureNumberIsWei(t *testing.T) {
	v, err := ParseValue("42")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), v)
}

func TestParseValueSynonyms(t *testing.T) {
	a, err := ParseValue("1shannon")
	require.NoError(t, err)
	b, err := ParseValue("1gwei")
	require.NoError(t, err)
	require.Equal(t, b, a)
}

func TestParseThresholdGe(t *testing.T) {
	th, err := ParseThreshold("ge1ether")
	require.NoError(t, err)
	require.Equal(t, GreaterOrEqual, th.Operator)
	require.True(t, th.Matches(new(big.Int).Mul(big.NewInt(2), th.Wei)))
	require.False(t, th.Matches(big.NewInt(1)))
}

func TestParseThresholdBadPrefix(t *testing.T) {
	_, err := ParseThreshold("gt1ether")
	require.Error(t, err)
}

// TestThresholdRoundTripProperty is the property from §8: for every unit,
// parse("ge1"+U) == {>=, 1*multiplier(U)}.
func TestThresholdRoundTripProperty(t *testing.T) {
	units := []string{"wei", "kwei", "mwei", "gwei", "szabo", "finney", "ether", "kether", "mether", "gether", "tether"}
	for _, u := range units {
		th, err := ParseThreshold("ge1" + u)
		require.NoError(t, err)
		unit, err := ParseUnit(u)
		require.NoError(t, err)
		require.Equal(t, unit.Multiplier().String(), th.Wei.String(), "unit %s", u)
	}
}

func TestParseValuePropertyIntegerMultiple(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		n := rapid.Int64Range(0, 1_000_000).Draw(tt, "n")
		v, err := ParseValue(big.NewInt(n).String() + "gwei")
		require.NoError(tt, err)
		want := new(big.Int).Mul(big.NewInt(n), Gwei.Multiplier())
		require.Equal(tt, want.String(), v.String())
	})
}
