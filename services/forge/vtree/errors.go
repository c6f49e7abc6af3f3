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
	"errors"
	"fmt"
)

// Sentinel errors for the vtree package.
var (
	// ErrNotInitialized is returned when an operation requires a root
	// version and the tree has none.
	ErrNotInitialized = errors.New("tree not initialized")

	// ErrAlreadyInitialized is returned when Initialize runs twice.
	ErrAlreadyInitialized = errors.New("tree already initialized")

	// ErrBranchNotFound is returned when a referenced branch doesn't exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrVersionNotFound is returned when a referenced version doesn't exist.
	ErrVersionNotFound = errors.New("version not found")

	// ErrBranchEmpty is returned when a branch has no versions and no
	// fork point to fall back to.
	ErrBranchEmpty = errors.New("branch has no versions")

	// ErrInvalidBranchName is returned when a branch name fails validation.
	ErrInvalidBranchName = errors.New("invalid branch name")

	// ErrBranchNameTaken is returned when a live branch already uses the name.
	ErrBranchNameTaken = errors.New("branch name already in use")

	// ErrProtectedBranch is returned when deleting main or the active branch.
	ErrProtectedBranch = errors.New("branch is protected")

	// ErrTreeNotFound is returned by stores when no document exists for
	// the application id.
	ErrTreeNotFound = errors.New("version tree not found")
)

// SerializationError wraps a malformed persisted or imported document.
type SerializationError struct {
	// Reason describes what made the document invalid.
	Reason string

	// Err is the underlying decode error, may be nil.
	Err error
}

// Error returns the error message.
func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid tree document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid tree document: %s", e.Reason)
}

// Unwrap returns the underlying error.
func (e *SerializationError) Unwrap() error {
	return e.Err
}
