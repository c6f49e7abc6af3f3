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
	"sync"
)

// Store persists tree documents keyed by application id.
//
// # Description
//
// The whole document is read and written wholesale; there is no partial
// write. Implementations must return a document the caller owns (no
// aliasing with internal state).
type Store interface {
	// Load returns the document for the application id.
	// Returns ErrTreeNotFound when none exists.
	Load(ctx context.Context, appID string) (*Document, error)

	// Save writes the document wholesale.
	Save(ctx context.Context, appID string, doc *Document) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-process Store for tests and ephemeral sessions.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Load returns the stored document for the application id.
func (s *MemoryStore) Load(_ context.Context, appID string) (*Document, error) {
	s.mu.RLock()
	raw, ok := s.docs[appID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrTreeNotFound
	}
	return decodeDocument(raw)
}

// Save writes the document wholesale.
func (s *MemoryStore) Save(_ context.Context, appID string, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &SerializationError{Reason: "encoding document", Err: err}
	}
	s.mu.Lock()
	s.docs[appID] = raw
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// decodeDocument unmarshals and sanity-checks a stored document.
func decodeDocument(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &SerializationError{Reason: "decoding document", Err: err}
	}
	return &doc, nil
}
