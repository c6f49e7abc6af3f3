// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conflict detects and resolves collisions between change sets.
//
// # Description
//
// This package implements conflict detection over structured changes and
// the merge strategy machinery built on top of it. Detection is pure: a
// detected conflict is data, never an error. Errors surface only when a
// caller asks for a resolved merge and a strategy leaves conflicts
// unresolved.
//
// # Thread Safety
//
// Detector and Selector are stateless and safe for concurrent use.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
)

// =============================================================================
// Kinds and Risk
// =============================================================================

// Kind categorizes a conflict.
type Kind string

const (
	// KindContent marks changes whose old-file line ranges overlap.
	KindContent Kind = "content"

	// KindStructure marks overlapping changes involving block moves.
	KindStructure Kind = "structure"

	// KindDependency marks colliding edits to the same import.
	KindDependency Kind = "dependency"

	// KindSemantic marks non-overlapping edits to the same symbol.
	KindSemantic Kind = "semantic"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Risk grades how dangerous a candidate resolution is.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// =============================================================================
// Records
// =============================================================================

// Resolution is one candidate way to settle a conflict.
type Resolution struct {
	// Strategy names the candidate ("keep-a", "keep-b", "attempt-merge").
	Strategy string `json:"strategy"`

	// Description explains what applying this candidate does.
	Description string `json:"description"`

	// Content is the text the conflicted region would hold afterwards.
	Content string `json:"content"`

	// Risk grades the candidate.
	Risk Risk `json:"risk"`
}

// Record is one detected conflict.
//
// # Description
//
// Changes always holds at least two entries whose line ranges overlap or
// whose semantic tags name the same symbol. Records are transient planning
// artifacts: they are either folded into a chosen resolution or surfaced
// unresolved, never persisted.
type Record struct {
	// ID uniquely identifies the record within one detection pass.
	ID string `json:"id"`

	// Kind is the conflict category.
	Kind Kind `json:"kind"`

	// Location is a human-readable region description.
	Location string `json:"location"`

	// Description explains the collision.
	Description string `json:"description"`

	// Changes are the colliding changes, at least two.
	Changes []differ.Change `json:"conflicting_changes"`

	// Resolutions are the ordered candidate resolutions.
	Resolutions []Resolution `json:"candidate_resolutions,omitempty"`

	// Chosen is the selected resolution, nil until a strategy picks one.
	Chosen *Resolution `json:"chosen_resolution,omitempty"`

	// AutoResolvable is true only for same-category import or formatting
	// collisions. Logic changes are never auto-resolved.
	AutoResolvable bool `json:"auto_resolvable"`
}

// Resolved reports whether a resolution has been chosen.
func (r *Record) Resolved() bool {
	return r.Chosen != nil
}

// =============================================================================
// Detector
// =============================================================================

// Detector finds collisions in a combined change list.
//
// # Thread Safety
//
// Stateless, safe for concurrent use.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns every conflict in the given changes.
//
// # Description
//
// Two passes run over a deterministically ordered copy of the input, so
// the result is independent of input order. The overlap pass groups
// changes transitively: three changes over one region produce one record,
// not three pairs. The semantic pass then matches changes whose tags name
// the same symbol but whose content differs, covering collisions the line
// ranges miss.
//
// # Inputs
//
//   - changes: The combined change list, typically the union of two or
//     more proposed change sets over one baseline.
//
// # Outputs
//
//   - []Record: Detected conflicts. Empty when the changes are compatible.
func (d *Detector) Detect(changes []differ.Change) []Record {
	if len(changes) < 2 {
		return nil
	}

	ordered := make([]differ.Change, len(changes))
	copy(ordered, changes)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		if a.EndLine != b.EndLine {
			return a.EndLine < b.EndLine
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Content < b.Content
	})

	var records []Record
	grouped := make([]bool, len(ordered))

	// Overlap pass: sweep the sorted changes, extending the current group
	// while ranges keep intersecting.
	for i := 0; i < len(ordered); i++ {
		group := []int{i}
		for j := i + 1; j < len(ordered); j++ {
			if !overlapsAny(ordered, group, j) {
				break
			}
			group = append(group, j)
		}
		if len(group) < 2 {
			continue
		}
		members := make([]differ.Change, len(group))
		for k, idx := range group {
			members[k] = ordered[idx]
			grouped[idx] = true
		}
		records = append(records, d.newRecord(overlapKind(members), members))
		i = group[len(group)-1]
	}

	// Semantic pass: same symbol touched by changes whose ranges never met.
	bySymbol := make(map[string][]int)
	var symbols []string
	for i, c := range ordered {
		if grouped[i] || c.Tag == nil {
			continue
		}
		key := string(c.Tag.Category) + ":" + c.Tag.Name
		if _, seen := bySymbol[key]; !seen {
			symbols = append(symbols, key)
		}
		bySymbol[key] = append(bySymbol[key], i)
	}
	for _, key := range symbols {
		idxs := bySymbol[key]
		if len(idxs) < 2 || !contentDiffers(ordered, idxs) {
			continue
		}
		members := make([]differ.Change, len(idxs))
		for k, idx := range idxs {
			members[k] = ordered[idx]
		}
		kind := KindSemantic
		if members[0].Tag.Category == differ.CategoryImport {
			kind = KindDependency
		}
		records = append(records, d.newRecord(kind, members))
	}

	return records
}

// newRecord assembles a Record with candidate resolutions.
func (d *Detector) newRecord(kind Kind, members []differ.Change) Record {
	rec := Record{
		ID:             uuid.NewString(),
		Kind:           kind,
		Location:       location(members),
		Description:    describe(kind, members),
		Changes:        members,
		AutoResolvable: autoResolvable(members),
	}
	rec.Resolutions = GenerateResolutions(members[0], members[len(members)-1])
	return rec
}

// GenerateResolutions returns the ordered candidate resolutions for a
// colliding pair.
//
// # Outputs
//
//   - []Resolution: keep-a, keep-b, then attempt-merge. Keeping one side
//     is medium risk (the other side's intent is dropped); a textual merge
//     is high risk unless both sides are import edits.
func GenerateResolutions(a, b differ.Change) []Resolution {
	mergeRisk := RiskHigh
	if isImport(a) && isImport(b) {
		mergeRisk = RiskLow
	}

	merged := a.Content
	if b.Content != "" && b.Content != a.Content {
		if merged != "" {
			merged += "\n"
		}
		merged += b.Content
	}

	return []Resolution{
		{
			Strategy:    "keep-a",
			Description: "keep the first change, discard the second",
			Content:     a.Content,
			Risk:        RiskMedium,
		},
		{
			Strategy:    "keep-b",
			Description: "keep the second change, discard the first",
			Content:     b.Content,
			Risk:        RiskMedium,
		},
		{
			Strategy:    "attempt-merge",
			Description: "combine both changes into one region",
			Content:     merged,
			Risk:        mergeRisk,
		},
	}
}

// =============================================================================
// Classification Helpers
// =============================================================================

// overlapsAny reports whether ordered[j] overlaps any current group member.
func overlapsAny(ordered []differ.Change, group []int, j int) bool {
	for _, idx := range group {
		if ordered[idx].Overlaps(ordered[j]) {
			return true
		}
	}
	return false
}

// overlapKind classifies an overlap group. Moves make it structural,
// everything else is a content collision.
func overlapKind(members []differ.Change) Kind {
	for _, c := range members {
		if c.Kind == differ.KindMove {
			return KindStructure
		}
	}
	return KindContent
}

// contentDiffers reports whether the indexed changes disagree on content.
func contentDiffers(ordered []differ.Change, idxs []int) bool {
	first := ordered[idxs[0]].Content
	for _, idx := range idxs[1:] {
		if ordered[idx].Content != first {
			return true
		}
	}
	return false
}

// autoResolvable is deliberately conservative: only collisions where every
// change is an import edit qualify. Anything touching logic stays manual.
func autoResolvable(members []differ.Change) bool {
	for _, c := range members {
		if !isImport(c) {
			return false
		}
	}
	return true
}

func isImport(c differ.Change) bool {
	return c.Tag != nil && c.Tag.Category == differ.CategoryImport
}

// location renders the covered region of a group.
func location(members []differ.Change) string {
	start, end := groupSpan(members)
	return fmt.Sprintf("lines %d-%d", start, end)
}

// describe renders a one-line collision summary.
func describe(kind Kind, members []differ.Change) string {
	parts := make([]string, len(members))
	for i, c := range members {
		parts[i] = c.String()
	}
	switch kind {
	case KindSemantic, KindDependency:
		return fmt.Sprintf("%d changes target symbol %q with different content: %s",
			len(members), members[0].Tag.Name, strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("%d changes overlap the same region: %s",
			len(members), strings.Join(parts, ", "))
	}
}
