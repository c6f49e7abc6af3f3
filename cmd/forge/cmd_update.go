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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
	"github.com/AleutianAI/AleutianForge/services/forge/execute"
	"github.com/AleutianAI/AleutianForge/services/forge/plan"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	updateDryRun  bool
	updateVerbose bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var updateCmd = &cobra.Command{
	Use:   "update <workspace-dir> <proposed-dir>",
	Short: "Plan and apply proposed file changes to a workspace",
	Long: `Diff every file in the proposed directory against the workspace,
build a dependency-ordered update plan, validate it, and apply it with
rollback protection. Files present only in the workspace are left alone.

With --dry-run the plan is printed but nothing is written back.

Examples:
  forge update ./app ./app-proposed
  forge update --dry-run ./app ./app-proposed`,
	Args: cobra.ExactArgs(2),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateDryRun, "dry-run", false,
		"Print the plan without applying it")
	updateCmd.Flags().BoolVar(&updateVerbose, "verbose", false,
		"Report per-file progress during execution")

	rootCmd.AddCommand(updateCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runUpdate(cmd *cobra.Command, args []string) error {
	workspaceDir, proposedDir := args[0], args[1]

	workspace, err := readDirFiles(workspaceDir)
	if err != nil {
		return fmt.Errorf("reading workspace: %w", err)
	}
	proposed, err := readDirFiles(proposedDir)
	if err != nil {
		return fmt.Errorf("reading proposed files: %w", err)
	}

	d := differ.New()
	targetChanges := make(map[string][]differ.Change)
	for path, newContent := range proposed {
		result, err := d.DiffText(workspace[path], newContent, differ.DefaultOptions())
		if err != nil {
			return fmt.Errorf("diffing %s: %w", path, err)
		}
		if result.Identical() {
			continue
		}
		targetChanges[path] = result.Changes
	}
	if len(targetChanges) == 0 {
		fmt.Println("workspace already up to date")
		return nil
	}

	planner := plan.NewPlanner()
	updatePlan, err := planner.Create(targetChanges, workspace,
		fmt.Sprintf("update %s from %s", workspaceDir, proposedDir))
	if err != nil {
		return err
	}

	fmt.Printf("plan %s: %d file(s), risk %s, rollback %s\n",
		updatePlan.ID, len(updatePlan.Targets), updatePlan.Risk.Level, updatePlan.RollbackStrategy)
	for _, path := range updatePlan.ExecutionOrder {
		fmt.Printf("  %s (%d change(s))\n", path, len(updatePlan.Target(path).Changes))
	}
	for _, factor := range updatePlan.Risk.Factors {
		fmt.Printf("  risk: %s\n", factor)
	}
	if updateDryRun {
		return nil
	}

	var onProgress execute.ProgressFunc
	if updateVerbose {
		onProgress = func(p execute.Progress) {
			if p.CurrentFile != "" {
				fmt.Printf("  [%3.0f%%] %s %s\n", p.Percent, p.Stage, p.CurrentFile)
			}
		}
	}

	executor := execute.NewExecutor(execute.WithLogger(logger))
	result, err := executor.Execute(cmd.Context(), updatePlan, workspace, onProgress)
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	if !result.Success {
		for _, msg := range result.Errors {
			fmt.Printf("error: %s\n", msg)
		}
		if result.RolledBack {
			return fmt.Errorf("update rolled back")
		}
		return fmt.Errorf("update failed")
	}

	if err := writeDirFiles(workspaceDir, result.FinalState, workspace); err != nil {
		return fmt.Errorf("writing workspace: %w", err)
	}
	fmt.Printf("applied %d file(s) in %s\n", len(updatePlan.Targets), result.Duration.Round(time.Millisecond))
	return nil
}

// =============================================================================
// FILESYSTEM HELPERS
// =============================================================================

// readDirFiles loads every regular file under root, keyed by relative
// slash path. Hidden directories (.git and friends) are skipped.
func readDirFiles(root string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// writeDirFiles writes back only the files whose content changed.
func writeDirFiles(root string, final, original map[string]string) error {
	for rel, content := range final {
		if original[rel] == content {
			continue
		}
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
