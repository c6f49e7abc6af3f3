// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate runs pluggable checks over proposed file contents.
//
// # Description
//
// Validation steps gate plan execution: required step failures abort an
// update before any mutation, optional failures surface as warnings.
// Built-in steps cover syntax balance, dependency completeness, and
// semantic safety. Steps are plain values so callers can append their own.
package validate

import (
	"context"
	"time"
)

// Severity grades a validation warning.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Warning is a non-blocking validation finding.
type Warning struct {
	// Step is the id of the step that produced the warning.
	Step string `json:"step"`

	// File is the file the finding applies to.
	File string `json:"file,omitempty"`

	// Line is the 0-based line of the finding, -1 when unknown.
	Line int `json:"line"`

	// Severity is the severity level.
	Severity Severity `json:"severity"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Result is the outcome of one validation step.
type Result struct {
	// Passed indicates whether the step succeeded.
	Passed bool `json:"passed"`

	// Errors are blocking findings (only meaningful on required steps).
	Errors []string `json:"errors,omitempty"`

	// Warnings are non-blocking findings.
	Warnings []Warning `json:"warnings,omitempty"`
}

// Context carries the material a step validates.
type Context struct {
	// Path is the file under validation.
	Path string

	// Content is the proposed file content.
	Content string

	// Original is the pre-update content, empty for new files.
	Original string

	// Workspace maps every file path to its proposed content, so steps
	// can check cross-file properties.
	Workspace map[string]string
}

// Step is one pluggable validation check.
type Step struct {
	// ID uniquely identifies the step.
	ID string `json:"id"`

	// Name is the human-readable step name.
	Name string `json:"name"`

	// Required marks failures as blocking.
	Required bool `json:"required"`

	// Validator runs the check. Must not be nil.
	Validator func(ctx context.Context, vc *Context) Result `json:"-"`
}

// Report aggregates the outcome of a full validation pass.
type Report struct {
	// Passed is false when any required step failed.
	Passed bool `json:"passed"`

	// Errors collects blocking findings from failed required steps.
	Errors []string `json:"errors,omitempty"`

	// Warnings collects every non-blocking finding.
	Warnings []Warning `json:"warnings,omitempty"`

	// FailedSteps lists ids of steps that did not pass, required or not.
	FailedSteps []string `json:"failed_steps,omitempty"`

	// ValidatedAt is when the pass ran.
	ValidatedAt time.Time `json:"validated_at"`
}

// Run executes the steps against one validation context.
//
// # Description
//
// Every step runs even after a required failure, so the report shows the
// complete picture. Only required failures flip Passed; optional step
// errors are demoted to warnings.
//
// # Inputs
//
//   - ctx: Cancellation context, checked between steps.
//   - steps: The steps to run, in order.
//   - vc: The validation context. Must not be nil.
//
// # Outputs
//
//   - *Report: The aggregate outcome.
//   - error: Non-nil only when ctx is cancelled mid-pass.
func Run(ctx context.Context, steps []Step, vc *Context) (*Report, error) {
	report := &Report{Passed: true, ValidatedAt: time.Now().UTC()}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := step.Validator(ctx, vc)
		report.Warnings = append(report.Warnings, result.Warnings...)

		if result.Passed {
			continue
		}
		report.FailedSteps = append(report.FailedSteps, step.ID)

		if step.Required {
			report.Passed = false
			report.Errors = append(report.Errors, result.Errors...)
			continue
		}
		for _, msg := range result.Errors {
			report.Warnings = append(report.Warnings, Warning{
				Step:     step.ID,
				File:     vc.Path,
				Line:     -1,
				Severity: SeverityLow,
				Message:  msg,
			})
		}
	}

	return report, nil
}
