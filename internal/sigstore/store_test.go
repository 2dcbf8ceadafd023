package sigstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFindMethodMissThenHit(t *testing.T) {
	s := newTestStore(t)
	selector := [4]byte{0xa9, 0x05, 0x9c, 0xbb} // transfer(address,uint256)

	_, ok := s.FindMethod(selector)
	require.False(t, ok)

	require.NoError(t, s.ImportMethod(selector, "transfer(address,uint256)"))

	// cache was primed with a miss above; ImportMethod replaced it, so this
	// lookup now hits.
	sig, ok := s.FindMethod(selector)
	require.True(t, ok)
	require.Equal(t, "transfer(address,uint256)", sig)
}

func TestFindEventRoundTrip(t *testing.T) {
	s := newTestStore(t)
	var topic0 [32]byte
	copy(topic0[:], []byte("ddf252ad1be2c89b69c2b068fc378da"))

	require.NoError(t, s.ImportEvent(topic0, "Transfer(address,address,uint256)"))
	sig, ok := s.FindEvent(topic0)
	require.True(t, ok)
	require.Equal(t, "Transfer(address,address,uint256)", sig)
}

func TestBulkImportMethods(t *testing.T) {
	s := newTestStore(t)
	rows := map[[4]byte]string{
		{0x18, 0x16, 0x0d, 0xdd}: "totalSupply()",
		{0x70, 0xa0, 0x82, 0x31}: "balanceOf(address)",
	}
	require.NoError(t, s.BulkImportMethods(rows))

	sig, ok := s.FindMethod([4]byte{0x70, 0xa0, 0x82, 0x31})
	require.True(t, ok)
	require.Equal(t, "balanceOf(address)", sig)
}
