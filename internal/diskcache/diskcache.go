// Package diskcache implements the content-addressed on-disk caches used by
// ENS resolution and ERC-20 symbol lookup. Each cache is a Pebble-backed KV store (the same
// engine go-ethereum's core/rawdb offers as an alternative to LevelDB),
// fronted by an in-memory fastcache so repeated lookups of hot keys avoid a
// disk round-trip. A single-byte MISSING marker records a known-absent
// result, distinguishing "never looked up" from "looked up, found nothing"
// so negative lookups are never retried. Grounded on ens_utils.rs/
// symbol_utils.rs content-addressed cache design from original_source.
package diskcache

import (
	"strings"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cockroachdb/pebble"
)

// missing is the single-byte sentinel value.
var missing = []byte{0x00}

// LookupResult is the outcome of reading a cache key.
type LookupResult int

const (
	Unknown LookupResult = iota
	KnownEmpty
	Known
)

// Cache is a lowercase-address-keyed on-disk store with an in-memory
// fastcache front. Concurrent writes are safe (each key is written at most
// once per miss; re-writing the same value is idempotent).
type Cache struct {
	mu   sync.Mutex
	db   *pebble.DB
	mem  *fastcache.Cache
}

// Open opens (creating if absent) a Pebble store at dir.
func Open(dir string) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Cache{db: db, mem: fastcache.New(4 << 20)}, nil
}

func normalize(key string) []byte {
	return []byte(strings.ToLower(key))
}

// Get reads a key, returning (value, Known) on a hit, ("", KnownEmpty) for a
// recorded miss, or ("", Unknown) if the key has never been written.
func (c *Cache) Get(key string) (string, LookupResult) {
	k := normalize(key)

	if v, ok := c.mem.HasGet(nil, k); ok {
		return decode(v)
	}

	c.mu.Lock()
	v, closer, err := c.db.Get(k)
	c.mu.Unlock()
	if err != nil {
		if err == pebble.ErrNotFound {
			return "", Unknown
		}
		return "", Unknown
	}
	defer closer.Close()
	value := append([]byte(nil), v...)
	c.mem.Set(k, value)
	return decode(value)
}

func decode(v []byte) (string, LookupResult) {
	if len(v) == 1 && v[0] == missing[0] {
		return "", KnownEmpty
	}
	return string(v), Known
}

// SetKnownEmpty records key as a known-absent result (e.g. an address
// without an ENS reverse record).
func (c *Cache) SetKnownEmpty(key string) error {
	return c.set(key, missing)
}

// SetValue records a resolved value (ENS name, ERC-20 symbol) for key.
func (c *Cache) SetValue(key, value string) error {
	if len(value) == 0 {
		return c.SetKnownEmpty(key)
	}
	return c.set(key, []byte(value))
}

func (c *Cache) set(key string, value []byte) error {
	k := normalize(key)
	c.mu.Lock()
	err := c.db.Set(k, value, pebble.Sync)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.mem.Set(k, value)
	return nil
}

// Close flushes and closes the underlying Pebble store.
func (c *Cache) Close() error {
	return c.db.Close()
}
