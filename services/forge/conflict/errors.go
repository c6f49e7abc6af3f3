// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conflict

import (
	"errors"
	"fmt"
)

// ErrUnresolved indicates a merge left conflicts without a chosen
// resolution. Surfaced, never silently guessed.
var ErrUnresolved = errors.New("merge conflicts unresolved")

// UnresolvedError carries the records a strategy could not settle.
type UnresolvedError struct {
	// Records are the conflicts left without a chosen resolution.
	Records []Record
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%d merge conflict(s) unresolved", len(e.Records))
}

// Unwrap enables errors.Is(err, ErrUnresolved).
func (e *UnresolvedError) Unwrap() error {
	return ErrUnresolved
}
