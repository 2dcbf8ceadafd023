// Package sigstore is the SignatureStore: an embedded SQLite database of
// `methods(selector_bytes PRIMARY KEY, signature TEXT)` and
// `events(topic0_bytes PRIMARY KEY, signature TEXT)`, fronted by a
// process-wide read-mostly LRU so repeated lookups of frequent selectors
// never touch the database. Grounded on db_method.rs/db_event.rs/
// database.rs from original_source; the SQLite engine itself
// (modernc.org/sqlite) is an out-of-pack dependency — see DESIGN.md.
package sigstore

import (
	"database/sql"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ethereum/go-ethereum/log"

	_ "modernc.org/sqlite"
)

const cacheSize = 4096

// Store wraps the signatures-sqlite.db connection pool plus the hot
// in-memory mapping described in §4.1. Opening it at startup is expected to
// be fatal on failure; lookups never return an error, only (value, ok).
type Store struct {
	db *sql.DB

	methodMu    sync.RWMutex
	methodCache *lru.Cache[[4]byte, *string]

	eventMu    sync.RWMutex
	eventCache *lru.Cache[[32]byte, *string]
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the methods/events tables exist. Failure here is fatal to the caller, per
// §4.1's contract.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sigstore: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sigstore: ping %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS methods (
		selector_bytes BLOB PRIMARY KEY,
		signature TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sigstore: create methods table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events (
		topic0_bytes BLOB PRIMARY KEY,
		signature TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sigstore: create events table: %w", err)
	}

	methodCache, _ := lru.New[[4]byte, *string](cacheSize)
	eventCache, _ := lru.New[[32]byte, *string](cacheSize)

	return &Store{db: db, methodCache: methodCache, eventCache: eventCache}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// FindMethod resolves a 4-byte selector to a human-readable method
// signature. Never errors on a miss: returns ("", false).
func (s *Store) FindMethod(selector [4]byte) (string, bool) {
	s.methodMu.RLock()
	if cached, ok := s.methodCache.Get(selector); ok {
		s.methodMu.RUnlock()
		if cached == nil {
			return "", false
		}
		return *cached, true
	}
	s.methodMu.RUnlock()

	var sig string
	err := s.db.QueryRow(`SELECT signature FROM methods WHERE selector_bytes = ?`, selector[:]).Scan(&sig)
	s.methodMu.Lock()
	defer s.methodMu.Unlock()
	if err != nil {
		if err != sql.ErrNoRows {
			log.Warn("sigstore: method lookup failed", "selector", fmt.Sprintf("%x", selector), "err", err)
		}
		s.methodCache.Add(selector, nil)
		return "", false
	}
	s.methodCache.Add(selector, &sig)
	return sig, true
}

// FindEvent resolves a 32-byte topic-0 to a human-readable event signature.
func (s *Store) FindEvent(topic0 [32]byte) (string, bool) {
	s.eventMu.RLock()
	if cached, ok := s.eventCache.Get(topic0); ok {
		s.eventMu.RUnlock()
		if cached == nil {
			return "", false
		}
		return *cached, true
	}
	s.eventMu.RUnlock()

	var sig string
	err := s.db.QueryRow(`SELECT signature FROM events WHERE topic0_bytes = ?`, topic0[:]).Scan(&sig)
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	if err != nil {
		if err != sql.ErrNoRows {
			log.Warn("sigstore: event lookup failed", "topic0", fmt.Sprintf("%x", topic0), "err", err)
		}
		s.eventCache.Add(topic0, nil)
		return "", false
	}
	s.eventCache.Add(topic0, &sig)
	return sig, true
}

// ImportMethod inserts or replaces a single method signature. Used by the
// (external) seed step.
func (s *Store) ImportMethod(selector [4]byte, signature string) error {
	_, err := s.db.Exec(`INSERT INTO methods (selector_bytes, signature) VALUES (?, ?)
		ON CONFLICT(selector_bytes) DO UPDATE SET signature = excluded.signature`,
		selector[:], signature)
	if err != nil {
		return err
	}
	s.methodMu.Lock()
	s.methodCache.Add(selector, &signature)
	s.methodMu.Unlock()
	return nil
}

// ImportEvent inserts or replaces a single event signature.
func (s *Store) ImportEvent(topic0 [32]byte, signature string) error {
	_, err := s.db.Exec(`INSERT INTO events (topic0_bytes, signature) VALUES (?, ?)
		ON CONFLICT(topic0_bytes) DO UPDATE SET signature = excluded.signature`,
		topic0[:], signature)
	if err != nil {
		return err
	}
	s.eventMu.Lock()
	s.eventCache.Add(topic0, &signature)
	s.eventMu.Unlock()
	return nil
}

// BulkImportMethods imports many method rows inside a single transaction,
// used by the seed step for initial population.
func (s *Store) BulkImportMethods(rows map[[4]byte]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO methods (selector_bytes, signature) VALUES (?, ?)
		ON CONFLICT(selector_bytes) DO UPDATE SET signature = excluded.signature`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for selector, sig := range rows {
		if _, err := stmt.Exec(selector[:], sig); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.methodMu.Lock()
	for selector, sig := range rows {
		sig := sig
		s.methodCache.Add(selector, &sig)
	}
	s.methodMu.Unlock()
	return nil
}
