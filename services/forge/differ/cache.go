// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package differ

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianForge/services/forge/snapshot"
)

// CachedDiffer memoizes diff results by content-hash pair.
//
// # Description
//
// The version tree and the planner frequently re-diff the same snapshot
// pairs (head vs. proposed, compare views). Results are pure functions of
// the two canonical forms plus options, so they cache safely. Concurrent
// requests for the same pair are deduplicated with singleflight so only
// one computation runs.
//
// # Thread Safety
//
// Safe for concurrent use.
type CachedDiffer struct {
	inner *Differ

	mu      sync.RWMutex
	results map[string]*Result
	maxSize int

	group singleflight.Group
}

// DefaultCacheSize bounds the memoized result count.
const DefaultCacheSize = 256

// NewCached wraps a Differ with a bounded memoization layer.
//
// # Inputs
//
//   - inner: The underlying differ. Must not be nil.
//   - maxSize: Maximum cached results. Values < 1 use DefaultCacheSize.
func NewCached(inner *Differ, maxSize int) *CachedDiffer {
	if inner == nil {
		panic("differ: inner differ must not be nil")
	}
	if maxSize < 1 {
		maxSize = DefaultCacheSize
	}
	return &CachedDiffer{
		inner:   inner,
		results: make(map[string]*Result, maxSize),
		maxSize: maxSize,
	}
}

// Diff returns the memoized diff for the snapshot pair, computing it once
// per key across concurrent callers.
func (c *CachedDiffer) Diff(oldSnap, newSnap snapshot.Snapshot, opts Options) (*Result, error) {
	oldHash, err := oldSnap.Hash()
	if err != nil {
		return nil, fmt.Errorf("old snapshot: %w", err)
	}
	newHash, err := newSnap.Hash()
	if err != nil {
		return nil, fmt.Errorf("new snapshot: %w", err)
	}
	key := cacheKey(oldHash, newHash, opts)

	c.mu.RLock()
	if cached, ok := c.results[key]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		result, err := c.inner.Diff(oldSnap, newSnap, opts)
		if err != nil {
			return nil, err
		}
		c.store(key, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// store inserts a result, evicting arbitrarily when the cache is full.
// Eviction order doesn't matter for correctness: entries are pure values.
func (c *CachedDiffer) store(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.results) >= c.maxSize {
		for k := range c.results {
			delete(c.results, k)
			break
		}
	}
	c.results[key] = result
}

// Len returns the number of cached results.
func (c *CachedDiffer) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// cacheKey builds the memoization key from the pair hashes and options.
func cacheKey(oldHash, newHash string, opts Options) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%v|%v|%s|%v",
		oldHash, newHash, opts.IgnoreWhitespace, opts.IgnoreCase, opts.Algorithm, opts.Semantic)))
	return hex.EncodeToString(sum[:16])
}
