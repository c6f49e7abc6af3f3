// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/AleutianAI/AleutianForge/pkg/logging"
	"github.com/AleutianAI/AleutianForge/services/forge/differ"
	"github.com/AleutianAI/AleutianForge/services/forge/plan"
	"github.com/AleutianAI/AleutianForge/services/forge/validate"
)

// Executor runs update plans over an in-memory workspace.
//
// # Description
//
// The executor moves through planning, validation, execution, and
// verification. Required validation failures abort before any mutation.
// Per-file apply failures are recorded and, unless the plan is atomic,
// execution continues; any unhandled failure or cancellation rolls the
// workspace back to the nearest checkpoint.
//
// # Thread Safety
//
// Safe for concurrent use across different plans. A given plan must be
// executed by exactly one in-flight call; a second call for the same
// plan id fails with ErrPlanInFlight.
type Executor struct {
	differ  *differ.Differ
	log     *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics

	mu       sync.Mutex
	inflight map[string]bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithTracer sets the tracer. Default is a no-op tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) { e.tracer = tracer }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		differ:   differ.New(),
		log:      logging.Default(),
		tracer:   noop.NewTracerProvider().Tracer("forge/execute"),
		metrics:  defaultMetrics(),
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the plan against the given workspace state.
//
// # Inputs
//
//   - ctx: Cancellation context, checked between files (not mid-file).
//   - p: The plan. Must not be nil.
//   - workspace: Current content per file path. Not mutated; the result
//     carries the new state.
//   - onProgress: Optional progress callback.
//
// # Outputs
//
//   - *Result: The execution outcome. Expected failures (validation,
//     per-file apply errors) surface here with Success=false, not as an
//     error.
//   - error: ErrNilPlan, ErrPlanInFlight, or a context error after
//     rollback completed.
func (e *Executor) Execute(ctx context.Context, p *plan.UpdatePlan, workspace map[string]string, onProgress ProgressFunc) (*Result, error) {
	if p == nil {
		return nil, ErrNilPlan
	}
	if err := e.acquire(p.ID); err != nil {
		return nil, err
	}
	defer e.release(p.ID)

	ctx, span := e.tracer.Start(ctx, "execute.plan")
	defer span.End()

	started := time.Now()
	run := &run{
		executor: e,
		plan:     p,
		state:    cloneState(workspace),
		report:   onProgress,
		result:   &Result{},
	}

	err := run.execute(ctx)

	run.result.Duration = time.Since(started)
	run.result.FinalState = run.state
	e.metrics.ExecutionDurationSeconds.WithLabelValues(string(p.RollbackStrategy)).Observe(run.result.Duration.Seconds())
	e.metrics.ExecutionsTotal.WithLabelValues(outcome(run.result)).Inc()

	return run.result, err
}

func (e *Executor) acquire(planID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[planID] {
		return ErrPlanInFlight
	}
	e.inflight[planID] = true
	return nil
}

func (e *Executor) release(planID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, planID)
}

// outcome labels a result for metrics.
func outcome(r *Result) string {
	switch {
	case r.RolledBack:
		return "rolled_back"
	case r.Success:
		return "success"
	default:
		return "failed"
	}
}

// =============================================================================
// Run State Machine
// =============================================================================

// run is the per-execution state.
type run struct {
	executor *Executor
	plan     *plan.UpdatePlan
	state    map[string]string
	report   ProgressFunc
	result   *Result

	checkpoints []*RollbackPoint
	applied     []string
}

// execute drives the stages in order.
func (r *run) execute(ctx context.Context) error {
	r.progress(StagePlanning, "", 0)

	if !r.validation(ctx) {
		// Nothing was mutated. Surface the failure, no rollback needed.
		r.result.Success = false
		return nil
	}

	r.checkpoint("before execution")

	if err := r.applyAll(ctx); err != nil {
		r.rollback("cancelled")
		return err
	}
	if r.result.RolledBack {
		return nil
	}

	r.verification(ctx)

	if r.result.Success && r.plan.RollbackStrategy == plan.RollbackIncremental {
		r.checkpoint("after execution")
	}
	r.progress(StageComplete, "", 100)

	r.executor.log.Info("plan execution finished",
		"plan_id", r.plan.ID,
		"success", r.result.Success,
		"rolled_back", r.result.RolledBack,
		"files", len(r.plan.Targets),
		"errors", len(r.result.Errors),
	)
	return nil
}

// validation runs every validation step against every target's proposed
// content. Any required failure aborts before mutation.
func (r *run) validation(ctx context.Context) bool {
	r.progress(StageValidation, "", 0)
	passed := true

	proposed := cloneState(r.state)
	for _, t := range r.plan.Targets {
		proposed[t.Path] = t.ProposedContent
	}

	for _, target := range r.plan.Targets {
		report, err := validate.Run(ctx, r.plan.ValidationSteps, &validate.Context{
			Path:      target.Path,
			Content:   target.ProposedContent,
			Original:  target.OriginalContent,
			Workspace: proposed,
		})
		if err != nil {
			r.result.Errors = append(r.result.Errors, fmt.Sprintf("validation cancelled: %v", err))
			return false
		}

		for _, w := range report.Warnings {
			r.result.Warnings = append(r.result.Warnings, fmt.Sprintf("%s: %s", w.File, w.Message))
		}
		if !report.Passed {
			passed = false
			r.result.Errors = append(r.result.Errors, report.Errors...)
			target.Status = plan.StatusFailed
			if len(report.Errors) > 0 {
				target.Error = report.Errors[0]
			}
		}
	}

	return passed
}

// applyAll applies modifications in execution order. Returns an error
// only for cancellation; per-file failures are recorded and absorbed.
func (r *run) applyAll(ctx context.Context) error {
	total := len(r.plan.ExecutionOrder)
	r.result.Success = true

	for i, file := range r.plan.ExecutionOrder {
		if err := ctx.Err(); err != nil {
			r.markSkipped()
			return err
		}

		r.progress(StageExecution, file, percent(i, total))

		target := r.plan.Target(file)
		if target == nil {
			continue
		}

		if err := r.applyOne(target); err != nil {
			target.Status = plan.StatusFailed
			target.Error = err.Error()
			r.result.Success = false
			r.result.Errors = append(r.result.Errors, fmt.Sprintf("%s: %v", file, err))
			r.executor.metrics.FileFailuresTotal.Inc()
			r.executor.log.Warn("file modification failed", "plan_id", r.plan.ID, "file", file, "error", err)

			if r.plan.RollbackStrategy == plan.RollbackAtomic {
				r.rollback("apply_failed")
				r.markSkipped()
				return nil
			}
			continue
		}

		target.Status = plan.StatusApplied
		r.applied = append(r.applied, file)
		r.executor.metrics.FilesAppliedTotal.Inc()

		if r.plan.RollbackStrategy == plan.RollbackCheckpoint {
			r.checkpoint(fmt.Sprintf("after %s", file))
		}
	}

	return nil
}

// applyOne applies a single modification to the live state and verifies
// the result matches the plan's proposed content.
func (r *run) applyOne(target *plan.FileModification) error {
	applied, err := differ.ApplyChanges(r.state[target.Path], target.Changes)
	if err != nil {
		return err
	}

	verdict, err := r.executor.differ.DiffText(applied, target.ProposedContent, differ.Options{})
	if err != nil {
		return err
	}
	if !verdict.Identical() {
		return fmt.Errorf("applied content diverges from proposal by %d change(s)", len(verdict.Changes))
	}

	r.state[target.Path] = applied
	return nil
}

// verification re-validates the applied files in their final state.
// Findings here are warnings: rollback is reachable only from validation
// and execution.
func (r *run) verification(ctx context.Context) {
	r.progress(StageVerification, "", 95)

	for _, file := range r.applied {
		report, err := validate.Run(ctx, r.plan.ValidationSteps, &validate.Context{
			Path:      file,
			Content:   r.state[file],
			Workspace: r.state,
		})
		if err != nil {
			return
		}
		if !report.Passed {
			for _, msg := range report.Errors {
				r.result.Warnings = append(r.result.Warnings, fmt.Sprintf("post-apply: %s", msg))
			}
		}
	}
}

// checkpoint captures the current state as a rollback point.
func (r *run) checkpoint(description string) {
	r.checkpoints = append(r.checkpoints, &RollbackPoint{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Description: description,
		State:       cloneState(r.state),
		Applied:     append([]string(nil), r.applied...),
	})
}

// rollback restores the nearest checkpoint.
func (r *run) rollback(trigger string) {
	if len(r.checkpoints) == 0 {
		return
	}
	point := r.checkpoints[len(r.checkpoints)-1]

	r.progress(StageRollback, "", 100)
	r.state = cloneState(point.State)
	r.applied = append([]string(nil), point.Applied...)
	r.result.RolledBack = true
	r.result.Success = false

	r.executor.metrics.RollbacksTotal.WithLabelValues(trigger).Inc()
	r.executor.log.Warn("rolled back to checkpoint",
		"plan_id", r.plan.ID,
		"checkpoint", point.Description,
		"trigger", trigger,
	)
}

// markSkipped marks every still-pending target as skipped.
func (r *run) markSkipped() {
	for _, target := range r.plan.Targets {
		if target.Status == plan.StatusPending {
			target.Status = plan.StatusSkipped
		}
	}
}

// progress emits one report when a callback is registered.
func (r *run) progress(stage Stage, file string, pct float64) {
	if r.report == nil {
		return
	}
	r.report(Progress{
		Stage:       stage,
		CurrentFile: file,
		Percent:     pct,
		Errors:      append([]string(nil), r.result.Errors...),
		Warnings:    append([]string(nil), r.result.Warnings...),
	})
}

// percent maps file index to overall completion, reserving the tail for
// verification.
func percent(i, total int) float64 {
	if total == 0 {
		return 90
	}
	return float64(i) / float64(total) * 90
}

// cloneState copies a workspace map.
func cloneState(state map[string]string) map[string]string {
	clone := make(map[string]string, len(state))
	for k, v := range state {
		clone[k] = v
	}
	return clone
}
