// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vtree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianForge/pkg/logging"
)

// BadgerConfig configures the Badger-backed store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool
}

// DefaultBadgerConfig returns the production configuration.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path}
}

// InMemoryBadgerConfig returns a configuration for tests: no disk I/O,
// everything lost on Close.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// BadgerStore persists tree documents in a Badger key-value database.
//
// # Thread Safety
//
// Safe for concurrent use. Badger transactions provide isolation.
type BadgerStore struct {
	db  *badger.DB
	log *logging.Logger
}

// badgerQuiet routes Badger's chatty logger through the service logger
// at debug level.
type badgerQuiet struct {
	log *logging.Logger
}

func (l *badgerQuiet) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerQuiet) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerQuiet) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerQuiet) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// OpenBadgerStore opens or creates the database.
//
// # Inputs
//
//   - cfg: Store configuration. Path is required unless InMemory is true.
//
// # Outputs
//
//   - *BadgerStore: The opened store. Caller must Close it.
//   - error: Non-nil if the directory cannot be created or opened.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("vtree: badger path is required unless in-memory")
	}

	log := logging.Default()

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("creating badger directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(&badgerQuiet{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}

	return &BadgerStore{db: db, log: log}, nil
}

// treeKey builds the storage key for an application id.
func treeKey(appID string) []byte {
	return []byte("vtree:" + appID)
}

// Load returns the document for the application id.
func (s *BadgerStore) Load(ctx context.Context, appID string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(treeKey(appID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrTreeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading tree %q: %w", appID, err)
	}
	return decodeDocument(raw)
}

// Save writes the document wholesale.
func (s *BadgerStore) Save(ctx context.Context, appID string, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return &SerializationError{Reason: "encoding document", Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(treeKey(appID), raw)
	})
	if err != nil {
		return fmt.Errorf("saving tree %q: %w", appID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
