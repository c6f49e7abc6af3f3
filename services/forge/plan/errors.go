// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the plan package.
var (
	// ErrDependencyCycle is returned when the file dependency graph
	// contains a cycle. No plan is produced.
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// ErrNoChanges is returned when plan creation receives no changes.
	ErrNoChanges = errors.New("no changes to plan")

	// ErrApplyFailed is returned when a change list cannot be applied to
	// a file's current content.
	ErrApplyFailed = errors.New("change application failed")
)

// CycleError carries the file cycle that aborted plan creation.
type CycleError struct {
	// Cycle is the dependency loop, first file repeated at the end.
	Cycle []string
}

// Error returns the error message.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap enables errors.Is(err, ErrDependencyCycle).
func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}
