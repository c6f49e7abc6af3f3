// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot models a complete representation of a generated artifact
// at one point in time.
//
// # Description
//
// Every diff, compare, and version operation in the forge engine works on a
// single deterministic string form. A snapshot is either raw text or a
// structured value; structured values are canonicalized to JSON with stable
// key ordering before any comparison. The canonical form is part of the
// persistence contract and must not change between releases.
//
// # Thread Safety
//
// Snapshot values are immutable after creation and safe to share.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Kind discriminates the snapshot union.
type Kind string

const (
	// KindText is a raw textual artifact.
	KindText Kind = "text"

	// KindStructured is a JSON-serializable structured artifact.
	KindStructured Kind = "structured"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Snapshot is a complete artifact representation at one instant.
//
// # Description
//
// Snapshot is a tagged union: exactly one of Text or Structured is
// meaningful, selected by Kind. Use FromText or FromStructured to build
// well-formed values.
type Snapshot struct {
	// Kind selects which field carries the artifact.
	Kind Kind `json:"kind"`

	// Text is the raw artifact content (Kind == KindText).
	Text string `json:"text,omitempty"`

	// Structured is the structured artifact (Kind == KindStructured).
	// It must be JSON-serializable.
	Structured any `json:"structured,omitempty"`
}

// FromText creates a text snapshot.
func FromText(text string) Snapshot {
	return Snapshot{Kind: KindText, Text: text}
}

// FromStructured creates a structured snapshot.
//
// The value must serialize cleanly with encoding/json; Canonical reports
// an error otherwise.
func FromStructured(value any) Snapshot {
	return Snapshot{Kind: KindStructured, Structured: value}
}

// Canonical returns the single deterministic string form of the snapshot.
//
// # Description
//
// Text snapshots canonicalize to themselves. Structured snapshots serialize
// through encoding/json, which emits map keys in sorted order, giving a
// stable byte form for any JSON-equivalent value. The same logical value
// always produces the same canonical string.
//
// # Outputs
//
//   - string: The canonical form.
//   - error: Non-nil if a structured value is not JSON-serializable.
func (s Snapshot) Canonical() (string, error) {
	switch s.Kind {
	case KindText:
		return s.Text, nil
	case KindStructured:
		data, err := json.Marshal(s.Structured)
		if err != nil {
			return "", fmt.Errorf("canonicalize structured snapshot: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown snapshot kind %q", s.Kind)
	}
}

// MustCanonical returns the canonical form, panicking on malformed input.
//
// Intended for call sites that already validated the snapshot.
func (s Snapshot) MustCanonical() string {
	c, err := s.Canonical()
	if err != nil {
		panic("snapshot: " + err.Error())
	}
	return c
}

// Hash returns the hex SHA-256 of the canonical form.
//
// Used as a cache key and for cheap equality checks between versions.
func (s Snapshot) Hash() (string, error) {
	c, err := s.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(c))
	return hex.EncodeToString(sum[:]), nil
}

// Equal reports whether two snapshots have identical canonical forms.
func Equal(a, b Snapshot) (bool, error) {
	ca, err := a.Canonical()
	if err != nil {
		return false, err
	}
	cb, err := b.Canonical()
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}
