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
	"fmt"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
)

// =============================================================================
// Strategies
// =============================================================================

// Strategy names a merge policy.
type Strategy string

const (
	// StrategySimple succeeds only when no conflicts were detected.
	StrategySimple Strategy = "simple"

	// StrategyConservative resolves only auto-resolvable conflicts.
	StrategyConservative Strategy = "conservative"

	// StrategyAggressive prefers the later change set everywhere.
	StrategyAggressive Strategy = "aggressive"

	// StrategyBalanced merges auto-resolvable conflicts and surfaces the
	// rest for manual resolution.
	StrategyBalanced Strategy = "balanced"
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// SelectStrategy picks a merge strategy for the detected conflicts.
//
// Simple short-circuits a conflict-free merge. Everything auto-resolvable
// merges under conservative; otherwise balanced keeps the resolvable
// subset moving while surfacing the rest.
func SelectStrategy(records []Record) Strategy {
	if len(records) == 0 {
		return StrategySimple
	}
	allAuto := true
	for i := range records {
		if !records[i].AutoResolvable {
			allAuto = false
			break
		}
	}
	if allAuto {
		return StrategyConservative
	}
	return StrategyBalanced
}

// =============================================================================
// Merge Result
// =============================================================================

// MergeResult is the outcome of combining change sets over one baseline.
type MergeResult struct {
	// Merged holds every change applied without collision plus the
	// resolution outcomes of settled conflicts.
	Merged []differ.Change `json:"merged"`

	// Content is the baseline with Merged applied. When conflicts remain
	// unresolved it reflects only the accepted and settled changes.
	Content string `json:"content"`

	// Conflicts holds every detected conflict, resolved or not.
	Conflicts []Record `json:"conflicts,omitempty"`
}

// Unresolved returns the conflicts still lacking a chosen resolution.
func (r *MergeResult) Unresolved() []Record {
	var out []Record
	for _, rec := range r.Conflicts {
		if !rec.Resolved() {
			out = append(out, rec)
		}
	}
	return out
}

// =============================================================================
// Selector
// =============================================================================

// Selector combines change sets under a merge strategy.
//
// # Thread Safety
//
// Stateless, safe for concurrent use.
type Selector struct {
	detector *Detector
}

// NewSelector creates a Selector.
func NewSelector() *Selector {
	return &Selector{detector: NewDetector()}
}

// MergeChangeSets combines multiple change sets over one baseline.
//
// # Description
//
// Sets apply sequentially. Each incoming change is checked against the
// cumulative already-accepted set: non-conflicting changes apply eagerly,
// conflicting ones are collected into records. The chosen strategy then
// settles what it can; the caller decides what to do with the rest.
//
// # Inputs
//
//   - base: The baseline canonical text every change set was expressed
//     against.
//   - changeSets: Two or more change lists expressed against base.
//   - strategy: The merge policy.
//
// # Outputs
//
//   - *MergeResult: Accepted changes, the merged content, and all
//     conflict records.
//   - error: *UnresolvedError (wrapping ErrUnresolved) when the strategy
//     leaves conflicts unresolved. The result is still returned so the
//     caller can inspect or manually resolve them.
func (s *Selector) MergeChangeSets(base string, changeSets [][]differ.Change, strategy Strategy) (*MergeResult, error) {
	result := &MergeResult{}

	// Overlap conflicts track which accepted entries they supersede so a
	// chosen resolution can replace them in the merged output.
	var accepted []differ.Change
	var supersedes [][]int

	for setIdx, set := range changeSets {
		for _, incoming := range set {
			colliding := collidingIndexes(accepted, incoming)
			if setIdx == 0 || len(colliding) == 0 {
				accepted = append(accepted, incoming)
				continue
			}
			members := make([]differ.Change, 0, len(colliding)+1)
			for _, idx := range colliding {
				members = append(members, accepted[idx])
			}
			members = append(members, incoming)
			result.Conflicts = append(result.Conflicts, s.detector.newRecord(overlapKind(members), members))
			supersedes = append(supersedes, colliding)
		}
	}

	// The accepted set can still collide semantically: the same symbol
	// edited from disjoint regions. Both edits stay in the merged output
	// either way; the record carries the preference.
	for _, rec := range s.detector.Detect(accepted) {
		if rec.Kind == KindSemantic || rec.Kind == KindDependency {
			result.Conflicts = append(result.Conflicts, rec)
			supersedes = append(supersedes, nil)
		}
	}

	s.resolve(result, strategy)

	dropped := make(map[int]bool)
	var settled []differ.Change
	for i, rec := range result.Conflicts {
		if !rec.Resolved() || len(supersedes[i]) == 0 {
			continue
		}
		for _, idx := range supersedes[i] {
			dropped[idx] = true
		}
		start, end := groupSpan(rec.Changes)
		settled = append(settled, differ.Change{
			Kind:       differ.KindModification,
			StartLine:  start,
			EndLine:    end,
			Content:    rec.Chosen.Content,
			Confidence: 0.8,
		})
	}

	for i, c := range accepted {
		if !dropped[i] {
			result.Merged = append(result.Merged, c)
		}
	}
	result.Merged = append(result.Merged, settled...)

	content, err := differ.ApplyChanges(base, result.Merged)
	if err != nil {
		return result, fmt.Errorf("applying merged changes: %w", err)
	}
	result.Content = content

	if unresolved := result.Unresolved(); len(unresolved) > 0 {
		return result, &UnresolvedError{Records: unresolved}
	}
	return result, nil
}

// resolve chooses resolutions in place per the strategy.
func (s *Selector) resolve(result *MergeResult, strategy Strategy) {
	for i := range result.Conflicts {
		rec := &result.Conflicts[i]

		switch strategy {
		case StrategySimple:
			// No conflicts expected. Leave everything unresolved.

		case StrategyConservative:
			if rec.AutoResolvable {
				choose(rec, "attempt-merge")
			}

		case StrategyAggressive:
			// Last writer wins: the later change set's edit prevails.
			choose(rec, "keep-b")

		case StrategyBalanced:
			if rec.AutoResolvable {
				choose(rec, "attempt-merge")
			}
		}
	}
}

// choose sets the named candidate as the chosen resolution.
func choose(rec *Record, strategy string) {
	for i := range rec.Resolutions {
		if rec.Resolutions[i].Strategy == strategy {
			rec.Chosen = &rec.Resolutions[i]
			return
		}
	}
}

// collidingIndexes returns the accepted indexes the incoming change
// overlaps.
func collidingIndexes(accepted []differ.Change, incoming differ.Change) []int {
	var idxs []int
	for i, c := range accepted {
		if c.Overlaps(incoming) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// groupSpan returns the combined old-file range of a conflict group.
func groupSpan(members []differ.Change) (int, int) {
	start, end := members[0].StartLine, members[0].EndLine
	for _, c := range members[1:] {
		if c.StartLine < start {
			start = c.StartLine
		}
		if c.EndLine > end {
			end = c.EndLine
		}
	}
	if end < start {
		end = start
	}
	return start, end
}
