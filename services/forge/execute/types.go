// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package execute runs update plans with progress, checkpoints, and
// rollback.
//
// # Description
//
// The executor is a small state machine over an in-memory workspace:
// validation gates every mutation, checkpoints are taken per the plan's
// rollback strategy, and any unhandled failure or cancellation restores
// the nearest checkpoint. The caller never observes a partially applied
// mixed state.
package execute

import (
	"errors"
	"time"
)

// Stage is an execution phase reported through the progress callback.
type Stage string

const (
	StagePlanning     Stage = "planning"
	StageValidation   Stage = "validation"
	StageExecution    Stage = "execution"
	StageVerification Stage = "verification"
	StageComplete     Stage = "complete"
	StageRollback     Stage = "rollback"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// Progress is one progress report.
type Progress struct {
	// Stage is the current phase.
	Stage Stage `json:"stage"`

	// CurrentFile is the file being processed, empty between files.
	CurrentFile string `json:"current_file,omitempty"`

	// Percent is overall completion in [0,100].
	Percent float64 `json:"percent"`

	// Errors are the failure messages accumulated so far.
	Errors []string `json:"errors,omitempty"`

	// Warnings are the non-blocking findings accumulated so far.
	Warnings []string `json:"warnings,omitempty"`
}

// ProgressFunc receives progress reports. May be nil.
type ProgressFunc func(Progress)

// RollbackPoint is a saved multi-file state.
type RollbackPoint struct {
	// ID uniquely identifies the point.
	ID string `json:"id"`

	// Timestamp is when the point was taken.
	Timestamp time.Time `json:"timestamp"`

	// Description explains what the point precedes.
	Description string `json:"description"`

	// State is the full file content map at the time of capture.
	State map[string]string `json:"snapshot_state"`

	// Applied lists the files applied before this point was taken.
	Applied []string `json:"applied_modifications"`
}

// Result is the outcome of one plan execution.
type Result struct {
	// Success is true when every modification applied and no required
	// validation failed.
	Success bool `json:"success"`

	// Errors are the failure messages, per-file and plan-level.
	Errors []string `json:"errors,omitempty"`

	// Warnings are the non-blocking findings.
	Warnings []string `json:"warnings,omitempty"`

	// RolledBack is true when the workspace was restored to a checkpoint.
	RolledBack bool `json:"rolled_back"`

	// FinalState is the workspace content after execution or rollback.
	FinalState map[string]string `json:"-"`

	// Duration is the total execution time.
	Duration time.Duration `json:"duration"`
}

// Sentinel errors for the execute package.
var (
	// ErrPlanInFlight is returned when the same plan is already executing.
	ErrPlanInFlight = errors.New("plan is already executing")

	// ErrNilPlan is returned when Execute receives a nil plan.
	ErrNilPlan = errors.New("plan must not be nil")
)
