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
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
	"github.com/AleutianAI/AleutianForge/services/forge/plan"
	"github.com/AleutianAI/AleutianForge/services/forge/validate"
)

func replaceLine(line int, oldContent, content string) []differ.Change {
	return []differ.Change{{
		Kind:       differ.KindModification,
		StartLine:  line,
		EndLine:    line,
		Content:    content,
		OldContent: oldContent,
		Confidence: 1.0,
	}}
}

// manualPlan builds a plan directly so tests can control per-file
// failure modes.
func manualPlan(strategy plan.RollbackStrategy, targets ...*plan.FileModification) *plan.UpdatePlan {
	order := make([]string, len(targets))
	graph := make(map[string][]string, len(targets))
	for i, t := range targets {
		order[i] = t.Path
		graph[t.Path] = nil
	}
	return &plan.UpdatePlan{
		ID:               "plan-" + string(strategy),
		Description:      "test plan",
		Targets:          targets,
		DependencyGraph:  graph,
		ExecutionOrder:   order,
		RollbackStrategy: strategy,
		ValidationSteps:  validate.BuiltinSteps(),
	}
}

func target(path, original, proposed string, changes []differ.Change) *plan.FileModification {
	return &plan.FileModification{
		Path:            path,
		OriginalContent: original,
		ProposedContent: proposed,
		Changes:         changes,
		Status:          plan.StatusPending,
	}
}

func TestExecute_Success(t *testing.T) {
	workspace := map[string]string{"App.jsx": "const a = 1;\nconst b = 2;"}
	changes := map[string][]differ.Change{
		"App.jsx": replaceLine(1, "const b = 2;", "const b = 3;"),
	}
	p, err := plan.NewPlanner().Create(changes, workspace, "bump b")
	if err != nil {
		t.Fatal(err)
	}

	var stages []Stage
	result, err := NewExecutor().Execute(context.Background(), p, workspace, func(pr Progress) {
		stages = append(stages, pr.Stage)
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !result.Success || result.RolledBack {
		t.Fatalf("success = %v, rolledBack = %v, errors = %v", result.Success, result.RolledBack, result.Errors)
	}
	if got := result.FinalState["App.jsx"]; got != "const a = 1;\nconst b = 3;" {
		t.Errorf("final state = %q", got)
	}
	if p.Targets[0].Status != plan.StatusApplied {
		t.Errorf("status = %s, want applied", p.Targets[0].Status)
	}
	// The source workspace must not be mutated.
	if workspace["App.jsx"] != "const a = 1;\nconst b = 2;" {
		t.Error("input workspace was mutated")
	}

	sawExecution, sawComplete := false, false
	for _, s := range stages {
		if s == StageExecution {
			sawExecution = true
		}
		if s == StageComplete {
			sawComplete = true
		}
	}
	if stages[0] != StagePlanning || !sawExecution || !sawComplete {
		t.Errorf("stage sequence = %v", stages)
	}
}

func TestExecute_RequiredValidationAbortsBeforeMutation(t *testing.T) {
	workspace := map[string]string{"App.jsx": "const safe = 1;"}
	p := manualPlan(plan.RollbackCheckpoint,
		target("App.jsx", workspace["App.jsx"], "eval(userInput);",
			replaceLine(0, "const safe = 1;", "eval(userInput);")),
	)

	result, err := NewExecutor().Execute(context.Background(), p, workspace, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Success {
		t.Error("required validation failure must fail the run")
	}
	if result.RolledBack {
		t.Error("nothing was mutated, rollback must not run")
	}
	if result.FinalState["App.jsx"] != workspace["App.jsx"] {
		t.Error("state mutated despite validation failure")
	}
	if p.Targets[0].Status != plan.StatusFailed {
		t.Errorf("status = %s, want failed", p.Targets[0].Status)
	}
}

func TestExecute_AtomicRollbackRestoresInitialState(t *testing.T) {
	// Second file fails to apply; atomic strategy must restore the
	// pre-execution state, undoing the first file.
	workspace := map[string]string{"a.jsx": "old a", "b.jsx": "old b"}
	p := manualPlan(plan.RollbackAtomic,
		target("a.jsx", "old a", "new a", replaceLine(0, "old a", "new a")),
		target("b.jsx", "old b", "new b",
			[]differ.Change{{Kind: differ.KindDeletion, StartLine: 5, EndLine: 9}}),
	)

	result, err := NewExecutor().Execute(context.Background(), p, workspace, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Success || !result.RolledBack {
		t.Fatalf("success = %v, rolledBack = %v", result.Success, result.RolledBack)
	}
	if result.FinalState["a.jsx"] != "old a" || result.FinalState["b.jsx"] != "old b" {
		t.Errorf("final state not restored: %v", result.FinalState)
	}
	if p.Targets[1].Status != plan.StatusFailed {
		t.Errorf("failing target status = %s, want failed", p.Targets[1].Status)
	}
}

func TestExecute_NonAtomicContinuesPastFailure(t *testing.T) {
	workspace := map[string]string{"a.jsx": "old a", "b.jsx": "old b", "c.jsx": "old c"}
	p := manualPlan(plan.RollbackCheckpoint,
		target("a.jsx", "old a", "new a", replaceLine(0, "old a", "new a")),
		target("b.jsx", "old b", "new b",
			[]differ.Change{{Kind: differ.KindDeletion, StartLine: 5, EndLine: 9}}),
		target("c.jsx", "old c", "new c", replaceLine(0, "old c", "new c")),
	)

	result, err := NewExecutor().Execute(context.Background(), p, workspace, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Success {
		t.Error("a per-file failure must set success=false")
	}
	if result.RolledBack {
		t.Error("non-atomic strategies keep going, no rollback")
	}
	if result.FinalState["a.jsx"] != "new a" || result.FinalState["c.jsx"] != "new c" {
		t.Errorf("surviving files not applied: %v", result.FinalState)
	}
	if result.FinalState["b.jsx"] != "old b" {
		t.Errorf("failed file mutated: %q", result.FinalState["b.jsx"])
	}
	if p.Targets[2].Status != plan.StatusApplied {
		t.Errorf("third target status = %s, want applied", p.Targets[2].Status)
	}
}

func TestExecute_CancellationRollsBackToNearestCheckpoint(t *testing.T) {
	workspace := map[string]string{"a.jsx": "old a", "b.jsx": "old b", "c.jsx": "old c"}
	p := manualPlan(plan.RollbackCheckpoint,
		target("a.jsx", "old a", "new a", replaceLine(0, "old a", "new a")),
		target("b.jsx", "old b", "new b", replaceLine(0, "old b", "new b")),
		target("c.jsx", "old c", "new c", replaceLine(0, "old c", "new c")),
	)

	ctx, cancel := context.WithCancel(context.Background())
	result, err := NewExecutor().Execute(ctx, p, workspace, func(pr Progress) {
		// Cancel while the second file is in flight; the executor
		// notices before the third.
		if pr.Stage == StageExecution && pr.CurrentFile == "b.jsx" {
			cancel()
		}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if !result.RolledBack || result.Success {
		t.Fatalf("success = %v, rolledBack = %v", result.Success, result.RolledBack)
	}
	// Per-file checkpoints mean the first two applications survive; the
	// third never ran and stays original. No mixed partial state.
	if result.FinalState["a.jsx"] != "new a" || result.FinalState["b.jsx"] != "new b" {
		t.Errorf("checkpointed files lost: %v", result.FinalState)
	}
	if result.FinalState["c.jsx"] != "old c" {
		t.Errorf("unreached file mutated: %q", result.FinalState["c.jsx"])
	}
	if p.Targets[2].Status != plan.StatusSkipped {
		t.Errorf("unreached target status = %s, want skipped", p.Targets[2].Status)
	}
}

func TestExecute_PlanGuards(t *testing.T) {
	e := NewExecutor()

	if _, err := e.Execute(context.Background(), nil, nil, nil); !errors.Is(err, ErrNilPlan) {
		t.Errorf("nil plan error = %v, want ErrNilPlan", err)
	}

	p := manualPlan(plan.RollbackAtomic, target("a.jsx", "x", "x", nil))
	if err := e.acquire(p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(context.Background(), p, map[string]string{"a.jsx": "x"}, nil); !errors.Is(err, ErrPlanInFlight) {
		t.Errorf("in-flight error = %v, want ErrPlanInFlight", err)
	}
	e.release(p.ID)
}
