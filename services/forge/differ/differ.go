// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/AleutianAI/AleutianForge/services/forge/snapshot"
)

// Complexity weights per category. Imports are cheap to change, component
// and prop contracts are not. Breaking removals carry an extra penalty on
// top of the per-symbol weight.
const (
	weightImport    = 0.3
	weightState     = 0.8
	weightHook      = 0.8
	weightFunction  = 1.0
	weightProp      = 1.2
	weightComponent = 1.5
	weightBreaking  = 1.5

	maxComplexity = 10.0

	// splitThreshold is the score above which the differ recommends
	// splitting the update.
	splitThreshold = 7.0

	// largeChangeCount is the change count above which a review pass is
	// recommended.
	largeChangeCount = 20
)

// Differ computes structured diffs between snapshots.
//
// # Description
//
// Pure and deterministic: identical snapshots always yield an empty change
// list and a zero complexity score. Diff performs no I/O and returns an
// error only for malformed (non-serializable) input.
//
// # Thread Safety
//
// Safe for concurrent use.
type Differ struct {
	extractor SemanticExtractor
}

// New creates a Differ with the default regex extractor.
func New() *Differ {
	return NewWithExtractor(NewRegexExtractor())
}

// NewWithExtractor creates a Differ with a custom extractor.
//
// # Inputs
//
//   - extractor: Symbol extractor. Must not be nil.
//
// # Panics
//
//   - Panics if extractor is nil.
func NewWithExtractor(extractor SemanticExtractor) *Differ {
	if extractor == nil {
		panic("differ: extractor must not be nil")
	}
	return &Differ{extractor: extractor}
}

// Diff computes the structured diff between two snapshots.
//
// # Inputs
//
//   - old: The baseline snapshot.
//   - new: The proposed snapshot.
//   - opts: Diff options. Zero value selects the line algorithm without
//     semantic analysis.
//
// # Outputs
//
//   - *Result: Changes, semantic summary, complexity score, recommendations.
//   - error: Non-nil only for malformed snapshots.
func (d *Differ) Diff(oldSnap, newSnap snapshot.Snapshot, opts Options) (*Result, error) {
	oldText, err := oldSnap.Canonical()
	if err != nil {
		return nil, fmt.Errorf("old snapshot: %w", err)
	}
	newText, err := newSnap.Canonical()
	if err != nil {
		return nil, fmt.Errorf("new snapshot: %w", err)
	}
	return d.DiffText(oldText, newText, opts)
}

// DiffText computes the structured diff between two canonical strings.
//
// Exposed separately because the planner and executor already hold
// canonical file contents.
func (d *Differ) DiffText(oldText, newText string, opts Options) (*Result, error) {
	result := &Result{Changes: []Change{}}

	cmpOld, cmpNew := oldText, newText
	if opts.IgnoreCase {
		cmpOld = strings.ToLower(cmpOld)
		cmpNew = strings.ToLower(cmpNew)
	}
	if opts.IgnoreWhitespace {
		cmpOld = normalizeWhitespace(cmpOld)
		cmpNew = normalizeWhitespace(cmpNew)
	}

	if cmpOld != cmpNew {
		result.Changes, result.LinesAdded, result.LinesRemoved = d.lineChanges(oldText, newText)
	}

	if opts.Semantic {
		oldTable := d.extractor.Extract(oldText)
		newTable := d.extractor.Extract(newText)

		result.Summary = summarize(oldTable, newTable)
		if !result.Identical() {
			result.ComplexityScore = score(result.Summary, result.LinesAdded+result.LinesRemoved)
		}
		d.tagChanges(result.Changes, oldTable, newTable)
		result.Recommendations = recommend(result)
	}

	return result, nil
}

// lineChanges runs the line-mode diff and folds runs into structured
// changes. Adjacent delete+insert runs fold into one modification.
//
// The diff operates on strings.Split line arrays (one rune per distinct
// line fed to diffmatchpatch), so change contents splice back exactly
// under ApplyChanges regardless of trailing-newline shape.
func (d *Differ) lineChanges(oldText, newText string) ([]Change, int, int) {
	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")

	ids := make(map[string]rune)
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(encodeLines(oldLines, ids), encodeLines(newLines, ids), false)

	var (
		changes        []Change
		added, removed int
	)
	oldPos, newPos := 0, 0

	for i := 0; i < len(diffs); i++ {
		chunk := diffs[i]
		n := len([]rune(chunk.Text))

		switch chunk.Type {
		case diffmatchpatch.DiffEqual:
			oldPos += n
			newPos += n

		case diffmatchpatch.DiffDelete:
			oldContent := strings.Join(oldLines[oldPos:oldPos+n], "\n")

			// A delete immediately followed by an insert is a modification
			// of the same region.
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				m := len([]rune(diffs[i+1].Text))
				changes = append(changes, Change{
					Kind:       KindModification,
					StartLine:  oldPos,
					EndLine:    oldPos + n - 1,
					Content:    strings.Join(newLines[newPos:newPos+m], "\n"),
					OldContent: oldContent,
					Confidence: 0.9,
				})
				added += m
				removed += n
				oldPos += n
				newPos += m
				i++ // consume the insert
				continue
			}

			changes = append(changes, Change{
				Kind:       KindDeletion,
				StartLine:  oldPos,
				EndLine:    oldPos + n - 1,
				OldContent: oldContent,
				Confidence: 1.0,
			})
			removed += n
			oldPos += n

		case diffmatchpatch.DiffInsert:
			changes = append(changes, Change{
				Kind:       KindInsertion,
				StartLine:  oldPos,
				EndLine:    oldPos - 1,
				Content:    strings.Join(newLines[newPos:newPos+n], "\n"),
				Confidence: 1.0,
			})
			added += n
			newPos += n
		}
	}

	return changes, added, removed
}

// encodeLines maps each distinct line to one rune so diffmatchpatch
// compares whole lines. The ids map must be shared between the old and
// new encodings of one diff call so identical lines get identical runes.
func encodeLines(lines []string, ids map[string]rune) string {
	var sb strings.Builder
	for _, line := range lines {
		r, ok := ids[line]
		if !ok {
			// Start beyond the surrogate range to stay a valid rune.
			r = rune(0xE000 + len(ids))
			ids[line] = r
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// tagChanges attaches semantic tags to changes whose content declares an
// extracted symbol. Best effort: untaggable changes stay untagged.
func (d *Differ) tagChanges(changes []Change, oldTable, newTable SymbolTable) {
	for i := range changes {
		c := &changes[i]

		source := c.Content
		table := newTable
		removed := false
		if c.Kind == KindDeletion {
			source = c.OldContent
			table = oldTable
			removed = true
		}

		fragment := d.extractor.Extract(source)
		for _, cat := range AllCategories {
			for name := range fragment[cat] {
				if _, known := table[cat][name]; !known {
					continue
				}
				c.Tag = &SemanticTag{
					Category: cat,
					Name:     name,
					Scope:    "module",
					Impact:   impactFor(cat, removed),
				}
				break
			}
			if c.Tag != nil {
				break
			}
		}
	}
}

// summarize computes the per-category added/removed/modified sets.
func summarize(oldTable, newTable SymbolTable) *SemanticSummary {
	summary := &SemanticSummary{
		Categories: make(map[Category]CategoryDelta, len(AllCategories)),
	}

	for _, cat := range AllCategories {
		var delta CategoryDelta

		for name, decl := range newTable[cat] {
			oldDecl, existed := oldTable[cat][name]
			switch {
			case !existed:
				delta.Added = append(delta.Added, name)
			case oldDecl != decl:
				delta.Modified = append(delta.Modified, name)
			}
		}
		for name := range oldTable[cat] {
			if _, exists := newTable[cat][name]; !exists {
				delta.Removed = append(delta.Removed, name)
				if cat == CategoryFunction || cat == CategoryComponent {
					summary.BreakingRemovals = append(summary.BreakingRemovals, name)
				}
			}
		}

		sort.Strings(delta.Added)
		sort.Strings(delta.Removed)
		sort.Strings(delta.Modified)
		summary.Categories[cat] = delta
	}

	sort.Strings(summary.BreakingRemovals)
	return summary
}

// score derives the bounded complexity score as a weighted sum over the
// summary plus a small raw-volume term.
func score(summary *SemanticSummary, lineVolume int) float64 {
	weights := map[Category]float64{
		CategoryImport:    weightImport,
		CategoryState:     weightState,
		CategoryHook:      weightHook,
		CategoryFunction:  weightFunction,
		CategoryProp:      weightProp,
		CategoryComponent: weightComponent,
	}

	total := 0.0
	for cat, delta := range summary.Categories {
		count := len(delta.Added) + len(delta.Removed) + len(delta.Modified)
		total += float64(count) * weights[cat]
	}
	total += float64(len(summary.BreakingRemovals)) * weightBreaking

	// Raw churn matters even when nothing semantic was recognized.
	total += 0.05 * float64(lineVolume)

	if total > maxComplexity {
		return maxComplexity
	}
	return total
}

// recommend derives review hints from thresholds.
func recommend(result *Result) []string {
	var recs []string

	if result.ComplexityScore > splitThreshold {
		recs = append(recs, fmt.Sprintf(
			"complexity score %.1f exceeds %.0f: split this into smaller, independently verifiable updates",
			result.ComplexityScore, splitThreshold))
	}
	if result.Summary != nil {
		for _, name := range result.Summary.BreakingRemovals {
			recs = append(recs, fmt.Sprintf("symbol %q was removed: verify no dependents still reference it", name))
		}
		if imports := result.Summary.Categories[CategoryImport]; len(imports.Removed) > 0 {
			recs = append(recs, "imports were removed: check for dangling references to the removed modules")
		}
	}
	if len(result.Changes) > largeChangeCount {
		recs = append(recs, fmt.Sprintf("%d separate changes: consider a focused review pass per region", len(result.Changes)))
	}

	return recs
}

// =============================================================================
// Helpers
// =============================================================================

// countLines counts the lines in a text chunk. Chunks produced by the
// line-mode diff end each full line with a newline; a trailing partial
// line still counts as one line.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// normalizeWhitespace trims per-line leading/trailing whitespace.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}
