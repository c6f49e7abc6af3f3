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
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
	"github.com/AleutianAI/AleutianForge/services/forge/validate"
)

// mediumChangeCount is the change count above which a plan grades at
// least medium risk.
const mediumChangeCount = 10

// Planner builds update plans from per-file change sets.
//
// # Thread Safety
//
// Stateless, safe for concurrent use.
type Planner struct {
	steps []validate.Step
}

// NewPlanner creates a Planner with the built-in validation pipeline.
func NewPlanner() *Planner {
	return &Planner{steps: validate.BuiltinSteps()}
}

// NewPlannerWithSteps creates a Planner with a custom validation pipeline.
func NewPlannerWithSteps(steps []validate.Step) *Planner {
	return &Planner{steps: steps}
}

// Create builds an update plan for the given per-file change sets.
//
// # Description
//
// One FileModification is built per affected file by applying its changes
// to the current workspace content. The dependency graph is derived from
// import extraction over the proposed contents; execution order is a
// topological sort of that graph restricted to the affected files. A
// cycle aborts creation and no plan is produced.
//
// # Inputs
//
//   - targetChanges: Changes per workspace-relative file path.
//   - workspace: Current content per file path. Files absent from the
//     map are treated as new, empty files.
//   - description: Caller-supplied plan summary.
//
// # Outputs
//
//   - *UpdatePlan: The ordered, risk-assessed plan.
//   - error: ErrNoChanges, *CycleError (wrapping ErrDependencyCycle), or
//     an ErrApplyFailed wrapper when a change list does not fit its file.
func (p *Planner) Create(targetChanges map[string][]differ.Change, workspace map[string]string, description string) (*UpdatePlan, error) {
	if len(targetChanges) == 0 {
		return nil, ErrNoChanges
	}

	paths := make([]string, 0, len(targetChanges))
	for file := range targetChanges {
		paths = append(paths, file)
	}
	sort.Strings(paths)

	proposed := make(map[string]string, len(workspace))
	for file, content := range workspace {
		proposed[file] = content
	}

	targets := make([]*FileModification, 0, len(paths))
	for _, file := range paths {
		original := workspace[file]
		content, err := differ.ApplyChanges(original, targetChanges[file])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrApplyFailed, file, err)
		}
		proposed[file] = content
		targets = append(targets, &FileModification{
			Path:            file,
			OriginalContent: original,
			ProposedContent: content,
			Changes:         targetChanges[file],
			Status:          StatusPending,
		})
	}

	graph := dependencyGraph(paths, proposed)
	order, err := topoSort(paths, graph)
	if err != nil {
		return nil, err
	}

	risk := assessRisk(targets)
	return &UpdatePlan{
		ID:               uuid.NewString(),
		Description:      description,
		Targets:          targets,
		DependencyGraph:  graph,
		ExecutionOrder:   order,
		Risk:             risk,
		RollbackStrategy: strategyFor(risk.Level),
		ValidationSteps:  p.steps,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// =============================================================================
// Dependency Graph
// =============================================================================

var importSpecRe = regexp.MustCompile(`(?m)^\s*(?:import\s+[^'"]*?from\s+|import\s+|export\s+[^'"]*?from\s+)['"]([^'"]+)['"]`)

// dependencyGraph maps each target file to the target files its proposed
// content imports. Only relative specifiers resolve; package imports are
// external and carry no ordering constraint.
func dependencyGraph(paths []string, proposed map[string]string) map[string][]string {
	targetSet := make(map[string]bool, len(paths))
	for _, file := range paths {
		targetSet[file] = true
	}

	graph := make(map[string][]string, len(paths))
	for _, file := range paths {
		var deps []string
		seen := make(map[string]bool)
		for _, m := range importSpecRe.FindAllStringSubmatch(proposed[file], -1) {
			dep := resolveImport(file, m[1], targetSet)
			if dep != "" && dep != file && !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
		sort.Strings(deps)
		graph[file] = deps
	}
	return graph
}

// resolveImport maps a relative import specifier to a target file path.
// Extension-less specifiers match any known source extension.
func resolveImport(from, spec string, targets map[string]bool) string {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return ""
	}
	resolved := path.Clean(path.Join(path.Dir(from), spec))
	if targets[resolved] {
		return resolved
	}
	for _, ext := range []string{".js", ".jsx", ".ts", ".tsx", ".css"} {
		if targets[resolved+ext] {
			return resolved + ext
		}
	}
	if targets[resolved+"/index.js"] {
		return resolved + "/index.js"
	}
	return ""
}

// topoSort orders files so every file follows all of its dependencies.
// Ties break alphabetically for deterministic plans.
func topoSort(paths []string, graph map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(paths))
	dependents := make(map[string][]string, len(paths))
	for _, file := range paths {
		indegree[file] += 0
		for _, dep := range graph[file] {
			indegree[file]++
			dependents[dep] = append(dependents[dep], file)
		}
	}

	var ready []string
	for _, file := range paths {
		if indegree[file] == 0 {
			ready = append(ready, file)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(paths))
	for len(ready) > 0 {
		file := ready[0]
		ready = ready[1:]
		order = append(order, file)

		for _, dependent := range dependents[file] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(order) != len(paths) {
		return nil, &CycleError{Cycle: findCycle(paths, graph)}
	}
	return order, nil
}

// insertSorted keeps the ready queue alphabetical.
func insertSorted(queue []string, file string) []string {
	i := sort.SearchStrings(queue, file)
	queue = append(queue, "")
	copy(queue[i+1:], queue[i:])
	queue[i] = file
	return queue
}

// findCycle locates one dependency loop for the error message.
func findCycle(paths []string, graph map[string][]string) []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(paths))
	var stack []string
	var cycle []string

	var visit func(file string) bool
	visit = func(file string) bool {
		state[file] = inStack
		stack = append(stack, file)
		for _, dep := range graph[file] {
			switch state[dep] {
			case inStack:
				for i, f := range stack {
					if f == dep {
						cycle = append(append(cycle, stack[i:]...), dep)
						return true
					}
				}
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[file] = done
		return false
	}

	for _, file := range paths {
		if state[file] == unvisited && visit(file) {
			break
		}
	}
	return cycle
}

// =============================================================================
// Risk Assessment
// =============================================================================

// assessRisk grades the plan from its change profile.
//
// High: any breaking semantic change, or more than half the changes are
// high impact. Medium: any risk factor, or raw change count above the
// threshold. Low otherwise.
func assessRisk(targets []*FileModification) RiskAssessment {
	assessment := RiskAssessment{Level: RiskLow}
	breaking := false

	for _, t := range targets {
		for _, c := range t.Changes {
			assessment.ChangeCount++
			if c.Tag == nil {
				continue
			}
			switch c.Tag.Impact {
			case differ.ImpactBreaking:
				breaking = true
				assessment.HighImpactCount++
			case differ.ImpactHigh:
				assessment.HighImpactCount++
			}
		}
	}

	if breaking {
		assessment.Factors = append(assessment.Factors, "breaking semantic change present")
	}
	if assessment.ChangeCount > 0 && assessment.HighImpactCount*2 > assessment.ChangeCount {
		assessment.Factors = append(assessment.Factors, "majority of changes are high impact")
	}
	if assessment.ChangeCount > mediumChangeCount {
		assessment.Factors = append(assessment.Factors,
			fmt.Sprintf("change count %d exceeds %d", assessment.ChangeCount, mediumChangeCount))
	}

	switch {
	case breaking || assessment.HighImpactCount*2 > assessment.ChangeCount:
		assessment.Level = RiskHigh
	case len(assessment.Factors) > 0:
		assessment.Level = RiskMedium
	}
	return assessment
}

// strategyFor maps risk to the rollback strategy.
func strategyFor(level RiskLevel) RollbackStrategy {
	switch level {
	case RiskHigh:
		return RollbackCheckpoint
	case RiskMedium:
		return RollbackIncremental
	default:
		return RollbackAtomic
	}
}
