// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/merkato/internal/logging"
)

// ErrRevocationStoreClosed is returned after Close.
var ErrRevocationStoreClosed = errors.New("revocation store is closed")

const revokedPrefix = "revoked:"

// RevocationStore remembers logged-out token IDs until the tokens expire.
type RevocationStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// OpenRevocationStore opens a badger database at path. An empty path keeps
// revocations in memory, which loses them on restart.
func OpenRevocationStore(path string) (*RevocationStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for token revocation: %w", err)
	}
	logging.Info().Str("path", path).Bool("in_memory", path == "").Msg("Token revocation store opened")
	return &RevocationStore{db: db}, nil
}

func revokedKey(jti string) []byte {
	return []byte(revokedPrefix + jti)
}

// Revoke records jti as revoked for ttl. A non-positive ttl means the token
// has already expired and nothing needs to be stored.
func (s *RevocationStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrRevocationStoreClosed
	}
	if ttl <= 0 {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(revokedKey(jti), []byte{1}).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked and has not yet expired.
func (s *RevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrRevocationStoreClosed
	}
	revoked := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(revokedKey(jti))
		switch {
		case err == nil:
			revoked = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return revoked, nil
}

// Count returns the number of live revocations.
func (s *RevocationStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrRevocationStoreClosed
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(revokedPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// RunGC runs badger value log garbage collection until nothing is left to
// rewrite. In-memory stores have no value log and return immediately.
func (s *RevocationStore) RunGC() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.db.Opts().InMemory {
		return
	}
	for s.db.RunValueLogGC(0.5) == nil {
	}
}

// Serve runs periodic garbage collection until ctx is cancelled. It
// satisfies suture.Service.
func (s *RevocationStore) Serve(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunGC()
		}
	}
}

// Close closes the badger database.
func (s *RevocationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
