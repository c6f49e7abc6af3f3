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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
)

func baseText(lines int) string {
	out := make([]string, lines)
	for i := range out {
		out[i] = fmt.Sprintf("line%d", i)
	}
	return strings.Join(out, "\n")
}

func modification(start, end int, content string) differ.Change {
	return differ.Change{
		Kind:       differ.KindModification,
		StartLine:  start,
		EndLine:    end,
		Content:    content,
		Confidence: 1.0,
	}
}

func tagged(c differ.Change, cat differ.Category, name string) differ.Change {
	c.Tag = &differ.SemanticTag{Category: cat, Name: name, Scope: "module", Impact: differ.ImpactMedium}
	return c
}

func TestDetect_DisjointChanges(t *testing.T) {
	records := NewDetector().Detect([]differ.Change{
		modification(0, 1, "a"),
		modification(5, 6, "b"),
	})
	if len(records) != 0 {
		t.Errorf("records = %d, want 0: %v", len(records), records)
	}
}

func TestDetect_ContentOverlap(t *testing.T) {
	// Two changes over lines 4-6 with different content collapse into one
	// content conflict that must not auto-resolve.
	a := modification(4, 6, "const x = 1;")
	b := modification(4, 6, "const x = 2;")

	records := NewDetector().Detect([]differ.Change{a, b})

	if len(records) != 1 {
		t.Fatalf("records = %d, want 1: %v", len(records), records)
	}
	rec := records[0]
	if rec.Kind != KindContent {
		t.Errorf("kind = %s, want content", rec.Kind)
	}
	if rec.AutoResolvable {
		t.Error("logic conflict must not be auto-resolvable")
	}
	if len(rec.Changes) != 2 {
		t.Errorf("conflicting changes = %d, want 2", len(rec.Changes))
	}
	if rec.Location != "lines 4-6" {
		t.Errorf("location = %q, want %q", rec.Location, "lines 4-6")
	}
	if len(rec.Resolutions) != 3 {
		t.Fatalf("resolutions = %d, want 3", len(rec.Resolutions))
	}
	if rec.Resolutions[0].Strategy != "keep-a" || rec.Resolutions[1].Strategy != "keep-b" || rec.Resolutions[2].Strategy != "attempt-merge" {
		t.Errorf("unexpected resolution order: %v", rec.Resolutions)
	}
}

func TestDetect_Symmetry(t *testing.T) {
	a := modification(4, 6, "alpha")
	b := modification(5, 8, "beta")

	forward := NewDetector().Detect([]differ.Change{a, b})
	reverse := NewDetector().Detect([]differ.Change{b, a})

	if len(forward) != len(reverse) {
		t.Fatalf("asymmetric counts: %d vs %d", len(forward), len(reverse))
	}
	for i := range forward {
		if forward[i].Kind != reverse[i].Kind || forward[i].Location != reverse[i].Location {
			t.Errorf("record %d differs: %v vs %v", i, forward[i], reverse[i])
		}
		if len(forward[i].Changes) != len(reverse[i].Changes) {
			t.Errorf("record %d member count differs", i)
		}
	}
}

func TestDetect_GroupsTransitively(t *testing.T) {
	// Three changes chained over one region fold into a single record.
	records := NewDetector().Detect([]differ.Change{
		modification(2, 4, "one"),
		modification(4, 6, "two"),
		modification(6, 8, "three"),
	})

	if len(records) != 1 {
		t.Fatalf("records = %d, want 1: %v", len(records), records)
	}
	if len(records[0].Changes) != 3 {
		t.Errorf("members = %d, want 3", len(records[0].Changes))
	}
	if records[0].Location != "lines 2-8" {
		t.Errorf("location = %q, want %q", records[0].Location, "lines 2-8")
	}
}

func TestDetect_SemanticCollision(t *testing.T) {
	// Disjoint ranges, same symbol, different content.
	a := tagged(modification(1, 1, "function go() { return 1; }"), differ.CategoryFunction, "go")
	b := tagged(modification(9, 9, "function go() { return 2; }"), differ.CategoryFunction, "go")

	records := NewDetector().Detect([]differ.Change{a, b})

	if len(records) != 1 {
		t.Fatalf("records = %d, want 1: %v", len(records), records)
	}
	if records[0].Kind != KindSemantic {
		t.Errorf("kind = %s, want semantic", records[0].Kind)
	}
	if records[0].AutoResolvable {
		t.Error("function collision must not be auto-resolvable")
	}
}

func TestDetect_ImportCollisions(t *testing.T) {
	t.Run("overlapping_imports_auto_resolve", func(t *testing.T) {
		a := tagged(modification(0, 0, "import a from 'a';"), differ.CategoryImport, "a")
		b := tagged(modification(0, 0, "import b from 'b';"), differ.CategoryImport, "b")

		records := NewDetector().Detect([]differ.Change{a, b})
		if len(records) != 1 {
			t.Fatalf("records = %d, want 1", len(records))
		}
		if !records[0].AutoResolvable {
			t.Error("pure import collision should auto-resolve")
		}
	})

	t.Run("same_import_disjoint_ranges", func(t *testing.T) {
		a := tagged(modification(0, 0, "import axios from 'axios';"), differ.CategoryImport, "axios")
		b := tagged(modification(7, 7, "import axios from 'axios/lite';"), differ.CategoryImport, "axios")

		records := NewDetector().Detect([]differ.Change{a, b})
		if len(records) != 1 {
			t.Fatalf("records = %d, want 1", len(records))
		}
		if records[0].Kind != KindDependency {
			t.Errorf("kind = %s, want dependency", records[0].Kind)
		}
	})
}

func TestMergeChangeSets_NonConflicting(t *testing.T) {
	result, err := NewSelector().MergeChangeSets(baseText(12), [][]differ.Change{
		{modification(0, 0, "a")},
		{modification(5, 5, "b")},
		{modification(10, 10, "c")},
	}, StrategySimple)

	if err != nil {
		t.Fatalf("MergeChangeSets() error = %v", err)
	}
	if len(result.Merged) != 3 {
		t.Errorf("merged = %d, want 3", len(result.Merged))
	}
	if len(result.Conflicts) != 0 {
		t.Errorf("conflicts = %d, want 0", len(result.Conflicts))
	}

	want := "a\nline1\nline2\nline3\nline4\nb\nline6\nline7\nline8\nline9\nc\nline11"
	if result.Content != want {
		t.Errorf("content = %q, want %q", result.Content, want)
	}
}

func TestMergeChangeSets_UnresolvedSurfaces(t *testing.T) {
	result, err := NewSelector().MergeChangeSets(baseText(8), [][]differ.Change{
		{modification(4, 6, "const x = 1;")},
		{modification(4, 6, "const x = 2;")},
	}, StrategyBalanced)

	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("error = %v, want ErrUnresolved", err)
	}
	var unresolved *UnresolvedError
	if !errors.As(err, &unresolved) {
		t.Fatal("error is not *UnresolvedError")
	}
	if len(unresolved.Records) != 1 {
		t.Errorf("unresolved records = %d, want 1", len(unresolved.Records))
	}
	if result == nil {
		t.Fatal("result must still be returned for manual resolution")
	}
	// The non-conflicting first change still merged.
	if len(result.Merged) != 1 {
		t.Errorf("merged = %d, want 1", len(result.Merged))
	}
	if !strings.Contains(result.Content, "const x = 1;") {
		t.Errorf("content = %q, want the accepted change applied", result.Content)
	}
}

func TestMergeChangeSets_AggressiveLastWriterWins(t *testing.T) {
	result, err := NewSelector().MergeChangeSets(baseText(8), [][]differ.Change{
		{modification(4, 6, "first")},
		{modification(4, 6, "second")},
	}, StrategyAggressive)

	if err != nil {
		t.Fatalf("MergeChangeSets() error = %v", err)
	}
	if len(result.Conflicts) != 1 || !result.Conflicts[0].Resolved() {
		t.Fatalf("expected one resolved conflict, got %v", result.Conflicts)
	}
	if result.Conflicts[0].Chosen.Strategy != "keep-b" {
		t.Errorf("chosen = %s, want keep-b", result.Conflicts[0].Chosen.Strategy)
	}
	found := false
	for _, c := range result.Merged {
		if c.Content == "second" {
			found = true
		}
	}
	if !found {
		t.Error("merged output missing the winning content")
	}
	if !strings.Contains(result.Content, "second") || strings.Contains(result.Content, "first") {
		t.Errorf("content = %q, want the later set to win", result.Content)
	}
}

func TestMergeChangeSets_ConservativeImports(t *testing.T) {
	a := tagged(modification(0, 0, "import a from 'a';"), differ.CategoryImport, "a")
	b := tagged(modification(0, 0, "import b from 'b';"), differ.CategoryImport, "b")

	result, err := NewSelector().MergeChangeSets(baseText(3), [][]differ.Change{{a}, {b}}, StrategyConservative)
	if err != nil {
		t.Fatalf("MergeChangeSets() error = %v", err)
	}
	if len(result.Conflicts) != 1 || !result.Conflicts[0].Resolved() {
		t.Fatalf("expected one auto-resolved conflict, got %v", result.Conflicts)
	}
	if result.Conflicts[0].Chosen.Strategy != "attempt-merge" {
		t.Errorf("chosen = %s, want attempt-merge", result.Conflicts[0].Chosen.Strategy)
	}
	want := "import a from 'a';\nimport b from 'b';\nline1\nline2"
	if result.Content != want {
		t.Errorf("content = %q, want %q", result.Content, want)
	}
}

func TestSelectStrategy(t *testing.T) {
	if got := SelectStrategy(nil); got != StrategySimple {
		t.Errorf("no conflicts: strategy = %s, want simple", got)
	}

	auto := Record{AutoResolvable: true}
	manual := Record{AutoResolvable: false}

	if got := SelectStrategy([]Record{auto, auto}); got != StrategyConservative {
		t.Errorf("all auto: strategy = %s, want conservative", got)
	}
	if got := SelectStrategy([]Record{auto, manual}); got != StrategyBalanced {
		t.Errorf("mixed: strategy = %s, want balanced", got)
	}
}
