// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package differ computes structured diffs between artifact snapshots.
//
// # Description
//
// This package implements the semantic differ: a pure function from two
// snapshots to a structured change list, a best-effort semantic summary,
// and a bounded complexity score. Line diffs are computed with
// sergi/go-diff in line mode. Semantic classification is a heuristic
// pattern pass behind the SemanticExtractor interface, never a parser.
//
// # Thread Safety
//
// Differ is stateless and safe for concurrent use. Results are immutable
// after creation.
package differ

import "fmt"

// =============================================================================
// Change Kinds
// =============================================================================

// ChangeKind categorizes a single structured edit.
type ChangeKind string

const (
	// KindInsertion adds lines that did not exist in the old snapshot.
	KindInsertion ChangeKind = "insertion"

	// KindDeletion removes lines from the old snapshot.
	KindDeletion ChangeKind = "deletion"

	// KindModification replaces a line range with new content.
	KindModification ChangeKind = "modification"

	// KindMove relocates a block of identical content.
	KindMove ChangeKind = "move"
)

// String returns the string representation of the kind.
func (k ChangeKind) String() string {
	return string(k)
}

// =============================================================================
// Impact
// =============================================================================

// Impact grades how disruptive a tagged change is.
type Impact string

const (
	// ImpactLow covers import and formatting-level changes.
	ImpactLow Impact = "low"

	// ImpactMedium covers state, hook, and function body changes.
	ImpactMedium Impact = "medium"

	// ImpactHigh covers component and prop contract changes.
	ImpactHigh Impact = "high"

	// ImpactBreaking marks removals of symbols other code may depend on.
	ImpactBreaking Impact = "breaking"
)

// =============================================================================
// Semantic Tag
// =============================================================================

// SemanticTag classifies a change against the extracted symbol sets.
//
// Tags are a best-effort heuristic classification, not a correctness
// guarantee; consumers must treat them as advisory.
type SemanticTag struct {
	// Category is the symbol category (function, component, import, ...).
	Category Category `json:"category"`

	// Name is the affected symbol name.
	Name string `json:"name"`

	// Scope is where the symbol lives. Currently always "module".
	Scope string `json:"scope"`

	// Impact grades the disruption of this change.
	Impact Impact `json:"impact"`
}

// =============================================================================
// Change
// =============================================================================

// Change is one structured edit between two snapshots.
//
// # Description
//
// Line indexes are zero-based and refer to the OLD snapshot's canonical
// form. For insertions the convention is EndLine = StartLine-1: content is
// inserted before old line StartLine. For moves, TargetLine is the old-file
// index the block is inserted before after removal from [StartLine,EndLine].
type Change struct {
	// Kind is the edit kind.
	Kind ChangeKind `json:"kind"`

	// StartLine is the first affected old line (0-based).
	StartLine int `json:"start_line"`

	// EndLine is the last affected old line (inclusive).
	// For insertions EndLine == StartLine-1.
	EndLine int `json:"end_line"`

	// Content is the new text for insertions, modifications, and moves.
	Content string `json:"content,omitempty"`

	// OldContent is the replaced/removed text, when applicable.
	OldContent string `json:"old_content,omitempty"`

	// TargetLine is the insertion point for moves (0-based, old file).
	TargetLine int `json:"target_line,omitempty"`

	// Confidence is the classifier's confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Tag is the optional semantic classification.
	Tag *SemanticTag `json:"semantic_tag,omitempty"`
}

// LineSpan returns the number of old lines this change covers.
func (c Change) LineSpan() int {
	if c.Kind == KindInsertion {
		return 0
	}
	return c.EndLine - c.StartLine + 1
}

// Overlaps reports whether two changes touch intersecting old line ranges.
//
// Insertions occupy the boundary before StartLine and only collide with a
// range that contains that boundary line.
func (c Change) Overlaps(other Change) bool {
	aStart, aEnd := c.effectiveRange()
	bStart, bEnd := other.effectiveRange()
	return aStart <= bEnd && bStart <= aEnd
}

// effectiveRange widens insertions to their boundary line so that overlap
// checks remain meaningful for zero-width edits.
func (c Change) effectiveRange() (int, int) {
	if c.Kind == KindInsertion {
		return c.StartLine, c.StartLine
	}
	return c.StartLine, c.EndLine
}

// String returns a compact human-readable description.
func (c Change) String() string {
	switch c.Kind {
	case KindInsertion:
		return fmt.Sprintf("insertion@%d(+%d lines)", c.StartLine, countLines(c.Content))
	case KindMove:
		return fmt.Sprintf("move@%d-%d->%d", c.StartLine, c.EndLine, c.TargetLine)
	default:
		return fmt.Sprintf("%s@%d-%d", c.Kind, c.StartLine, c.EndLine)
	}
}

// =============================================================================
// Options
// =============================================================================

// Algorithm selects the diff algorithm.
type Algorithm string

const (
	// AlgorithmLine is the default line-oriented diff.
	AlgorithmLine Algorithm = "line"
)

// Options configures a diff operation.
type Options struct {
	// IgnoreWhitespace normalizes leading/trailing whitespace per line
	// before comparing.
	IgnoreWhitespace bool

	// IgnoreCase lowercases both snapshots before comparing.
	IgnoreCase bool

	// Algorithm selects the diff algorithm. Default: AlgorithmLine.
	Algorithm Algorithm

	// Semantic enables symbol extraction, tagging, and scoring.
	Semantic bool
}

// DefaultOptions returns the default diff configuration.
func DefaultOptions() Options {
	return Options{Algorithm: AlgorithmLine, Semantic: true}
}

// =============================================================================
// Result
// =============================================================================

// CategoryDelta holds the per-category symbol set differences.
type CategoryDelta struct {
	// Added lists symbols present only in the new snapshot.
	Added []string `json:"added,omitempty"`

	// Removed lists symbols present only in the old snapshot.
	Removed []string `json:"removed,omitempty"`

	// Modified lists symbols whose declaration text changed.
	Modified []string `json:"modified,omitempty"`
}

// Empty reports whether the delta carries no differences.
func (d CategoryDelta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// SemanticSummary aggregates symbol-level differences per category.
type SemanticSummary struct {
	// Categories maps each category to its symbol delta.
	Categories map[Category]CategoryDelta `json:"categories"`

	// BreakingRemovals lists removed functions/components other code may
	// still reference.
	BreakingRemovals []string `json:"breaking_removals,omitempty"`
}

// Result is the outcome of a diff operation.
type Result struct {
	// Changes is the ordered structured change list (by StartLine).
	Changes []Change `json:"changes"`

	// Summary is the semantic symbol summary (nil unless Semantic was set).
	Summary *SemanticSummary `json:"semantic_summary,omitempty"`

	// ComplexityScore is the bounded 0-10 risk/complexity score.
	ComplexityScore float64 `json:"complexity_score"`

	// Recommendations are threshold-derived review hints.
	Recommendations []string `json:"recommendations,omitempty"`

	// LinesAdded and LinesRemoved are raw line statistics.
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// Identical reports whether the diff found no differences.
func (r *Result) Identical() bool {
	return len(r.Changes) == 0
}
