package diskcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUnknownKey(t *testing.T) {
	c := newTestCache(t)
	_, res := c.Get("0xabc")
	require.Equal(t, Unknown, res)
}

func TestKnownEmptyRoundTrip(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.SetKnownEmpty("0xABC"))
	_, res := c.Get("0xabc")
	require.Equal(t, KnownEmpty, res)
}

func TestKnownValueRoundTrip(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.SetValue("0xDEF", "jaredfromsubway.eth"))
	name, res := c.Get("0xdef")
	require.Equal(t, Known, res)
	require.Equal(t, "jaredfromsubway.eth", name)
}
