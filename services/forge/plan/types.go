// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plan turns target change sets into ordered, risk-assessed
// update plans.
//
// # Description
//
// A plan binds one FileModification per affected file, a dependency
// graph derived from import extraction, a topological execution order,
// and a rollback strategy matched to the assessed risk. Plan creation is
// pure: it reads the workspace map it is given and performs no I/O.
package plan

import (
	"time"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
	"github.com/AleutianAI/AleutianForge/services/forge/validate"
)

// Status tracks a FileModification through execution.
type Status string

const (
	// StatusPending means the modification has not been attempted.
	StatusPending Status = "pending"

	// StatusApplied means the modification succeeded.
	StatusApplied Status = "applied"

	// StatusFailed means the modification was attempted and failed.
	StatusFailed Status = "failed"

	// StatusSkipped means execution never reached the modification.
	StatusSkipped Status = "skipped"
)

// FileModification is one file's proposed update.
type FileModification struct {
	// Path is the workspace-relative file path.
	Path string `json:"path"`

	// OriginalContent is the file content before the update.
	OriginalContent string `json:"original_content"`

	// ProposedContent is the file content after applying Changes.
	ProposedContent string `json:"proposed_content"`

	// Changes are the structured edits producing ProposedContent.
	Changes []differ.Change `json:"changes"`

	// Status is the execution status.
	Status Status `json:"status"`

	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`
}

// RollbackStrategy selects how checkpoints are taken during execution.
type RollbackStrategy string

const (
	// RollbackAtomic takes a single all-or-nothing checkpoint.
	RollbackAtomic RollbackStrategy = "atomic"

	// RollbackIncremental checkpoints at start and end.
	RollbackIncremental RollbackStrategy = "incremental"

	// RollbackCheckpoint checkpoints after every file.
	RollbackCheckpoint RollbackStrategy = "checkpoint"
)

// RiskLevel grades a plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskAssessment explains the assigned risk level.
type RiskAssessment struct {
	// Level is the overall grade.
	Level RiskLevel `json:"level"`

	// Factors lists the conditions that raised the grade.
	Factors []string `json:"factors,omitempty"`

	// ChangeCount is the total number of changes across all files.
	ChangeCount int `json:"change_count"`

	// HighImpactCount is the number of high or breaking changes.
	HighImpactCount int `json:"high_impact_count"`
}

// UpdatePlan is an ordered, risk-assessed description of an update.
type UpdatePlan struct {
	// ID uniquely identifies the plan.
	ID string `json:"id"`

	// Description is the caller-supplied summary.
	Description string `json:"description"`

	// Targets holds one modification per affected file.
	Targets []*FileModification `json:"targets"`

	// DependencyGraph maps each file to the workspace files it imports.
	DependencyGraph map[string][]string `json:"dependency_graph"`

	// ExecutionOrder is a topological order of DependencyGraph:
	// every file appears after all of its dependencies.
	ExecutionOrder []string `json:"execution_order"`

	// RollbackStrategy follows Risk.Level.
	RollbackStrategy RollbackStrategy `json:"rollback_strategy"`

	// Risk is the plan's risk assessment.
	Risk RiskAssessment `json:"risk_assessment"`

	// ValidationSteps run before and during execution.
	ValidationSteps []validate.Step `json:"validation_steps"`

	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at"`
}

// Target returns the modification for a path, nil when absent.
func (p *UpdatePlan) Target(path string) *FileModification {
	for _, t := range p.Targets {
		if t.Path == path {
			return t
		}
	}
	return nil
}
