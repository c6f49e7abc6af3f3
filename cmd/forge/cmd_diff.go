// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
	"github.com/AleutianAI/AleutianForge/services/forge/snapshot"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	diffIgnoreWhitespace bool
	diffIgnoreCase       bool
	diffNoSemantic       bool
	diffJSON             bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var diffCmd = &cobra.Command{
	Use:   "diff <old-file> <new-file>",
	Short: "Compute the semantic diff between two file revisions",
	Long: `Compute a structured diff between two revisions of a source file.

Reports line-level changes, symbol-level additions/removals/modifications
(components, functions, hooks, imports), a 0-10 complexity score, and
review recommendations.

Examples:
  forge diff App.v1.jsx App.v2.jsx
  forge diff --json old/Button.jsx new/Button.jsx
  forge diff --ignore-whitespace a.js b.js`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffIgnoreWhitespace, "ignore-whitespace", false,
		"Ignore leading/trailing whitespace per line")
	diffCmd.Flags().BoolVar(&diffIgnoreCase, "ignore-case", false,
		"Compare case-insensitively")
	diffCmd.Flags().BoolVar(&diffNoSemantic, "no-semantic", false,
		"Skip symbol extraction and scoring")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false,
		"Output as JSON for scripting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runDiff(cmd *cobra.Command, args []string) error {
	oldRaw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	newRaw, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[1], err)
	}

	opts := differ.Options{
		IgnoreWhitespace: diffIgnoreWhitespace,
		IgnoreCase:       diffIgnoreCase,
		Algorithm:        differ.AlgorithmLine,
		Semantic:         cfg.Differ.Semantic && !diffNoSemantic,
	}

	d := differ.NewCached(differ.New(), cfg.Differ.CacheSize)
	result, err := d.Diff(snapshot.FromText(string(oldRaw)), snapshot.FromText(string(newRaw)), opts)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	if diffJSON {
		return outputDiffJSON(result)
	}
	outputDiffText(args[0], args[1], result)
	return nil
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputDiffJSON(result *differ.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func outputDiffText(oldPath, newPath string, result *differ.Result) {
	if result.Identical() {
		fmt.Printf("%s and %s are identical\n", oldPath, newPath)
		return
	}

	fmt.Printf("%s -> %s: %d change(s), +%d/-%d lines\n",
		oldPath, newPath, len(result.Changes), result.LinesAdded, result.LinesRemoved)
	for _, change := range result.Changes {
		fmt.Printf("  %s", change.String())
		if change.Tag != nil {
			fmt.Printf("  [%s %s, impact %s]", change.Tag.Category, change.Tag.Name, change.Tag.Impact)
		}
		fmt.Println()
	}

	if result.Summary != nil {
		for cat, delta := range result.Summary.Categories {
			if delta.Empty() {
				continue
			}
			fmt.Printf("  %s: +%v -%v ~%v\n", cat, delta.Added, delta.Removed, delta.Modified)
		}
		if len(result.Summary.BreakingRemovals) > 0 {
			fmt.Printf("  breaking removals: %v\n", result.Summary.BreakingRemovals)
		}
	}

	fmt.Printf("complexity: %.1f/10\n", result.ComplexityScore)
	for _, rec := range result.Recommendations {
		fmt.Printf("  hint: %s\n", rec)
	}
}
