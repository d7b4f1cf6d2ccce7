// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package lootboard

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/lootledger/lootledger/internal/models"
)

// Store persists rendered artifacts in BadgerDB.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) the artifact store at path. An empty path
// opens an in-memory store, used by tests.
func OpenStore(path string) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying BadgerDB.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores an artifact, replacing any previous version for the board.
func (s *Store) Put(artifact *Artifact) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	period := models.Period{}
	if err := parsePeriodString(artifact.Period, &period); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key(artifact.GroupID, period)), data)
	})
}

// Get retrieves the stored artifact for a board, or ErrNotReady if none was
// ever generated.
func (s *Store) Get(groupID int64, period models.Period) (*Artifact, error) {
	var artifact Artifact
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key(groupID, period)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotReady
		}
		if err != nil {
			return fmt.Errorf("get artifact: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &artifact)
		})
	})
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Delete removes a board's artifact. Used when a group is archived.
func (s *Store) Delete(groupID int64, period models.Period) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key(groupID, period)))
	})
}

func parsePeriodString(s string, out *models.Period) error {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			out.Kind = models.PeriodKind(s[:i])
			out.Key = s[i+1:]
			if !out.Kind.Valid() {
				return fmt.Errorf("invalid period %q", s)
			}
			return nil
		}
	}
	return fmt.Errorf("invalid period %q", s)
}
