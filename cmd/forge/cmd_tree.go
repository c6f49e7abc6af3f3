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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianForge/services/forge/snapshot"
	"github.com/AleutianAI/AleutianForge/services/forge/vtree"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	treeMessage string
	treeAuthor  string
	treeTags    []string
	treeFrom    string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var (
	treeCmd = &cobra.Command{
		Use:   "tree",
		Short: "Manage an application's version tree",
		Long: `Manage the append-only version tree of a generated application:
initialize it, commit new snapshots, branch, switch, merge, and compare
versions. The storage backend (memory or badger) comes from the
configuration file; the memory backend does not survive process exit and
is only useful for scripting pipelines that export the tree.`,
	}

	treeInitCmd = &cobra.Command{
		Use:   "init <app-id> <file>",
		Short: "Initialize a version tree from an initial snapshot",
		Args:  cobra.ExactArgs(2),
		RunE:  runTreeInit,
	}

	treeCommitCmd = &cobra.Command{
		Use:   "commit <app-id> <file>",
		Short: "Commit a new snapshot to the current branch",
		Args:  cobra.ExactArgs(2),
		RunE:  runTreeCommit,
	}

	treeHistoryCmd = &cobra.Command{
		Use:   "history <app-id>",
		Short: "Show the current branch's version history",
		Args:  cobra.ExactArgs(1),
		RunE:  runTreeHistory,
	}

	treeBranchCmd = &cobra.Command{
		Use:   "branch <app-id> <name>",
		Short: "Create a branch from the current head (or --from a version)",
		Args:  cobra.ExactArgs(2),
		RunE:  runTreeBranch,
	}

	treeSwitchCmd = &cobra.Command{
		Use:   "switch <app-id> <branch-name>",
		Short: "Switch the active branch",
		Args:  cobra.ExactArgs(2),
		RunE:  runTreeSwitch,
	}

	treeMergeCmd = &cobra.Command{
		Use:   "merge <app-id> <source-branch> <target-branch>",
		Short: "Merge a source branch's head into a target branch",
		Args:  cobra.ExactArgs(3),
		RunE:  runTreeMerge,
	}

	treeCompareCmd = &cobra.Command{
		Use:   "compare <app-id> <from-version-id> <to-version-id>",
		Short: "Render a unified diff between two versions",
		Args:  cobra.ExactArgs(3),
		RunE:  runTreeCompare,
	}
)

func init() {
	treeCommitCmd.Flags().StringVarP(&treeMessage, "message", "m", "",
		"Commit message")
	treeCommitCmd.Flags().StringVar(&treeAuthor, "author", "",
		"Author recorded in the version metadata")
	treeCommitCmd.Flags().StringSliceVar(&treeTags, "tag", nil,
		"Tags recorded in the version metadata")
	treeBranchCmd.Flags().StringVar(&treeFrom, "from", "",
		"Fork point version ID (defaults to the current head)")
	treeMergeCmd.Flags().StringVarP(&treeMessage, "message", "m", "",
		"Merge commit message")

	treeCmd.AddCommand(treeInitCmd)
	treeCmd.AddCommand(treeCommitCmd)
	treeCmd.AddCommand(treeHistoryCmd)
	treeCmd.AddCommand(treeBranchCmd)
	treeCmd.AddCommand(treeSwitchCmd)
	treeCmd.AddCommand(treeMergeCmd)
	treeCmd.AddCommand(treeCompareCmd)
}

// =============================================================================
// STORE SELECTION
// =============================================================================

// openStore builds the configured vtree backend.
func openStore() (vtree.Store, error) {
	switch cfg.Storage.Backend {
	case "badger":
		return vtree.OpenBadgerStore(vtree.DefaultBadgerConfig(cfg.Storage.Path))
	default:
		return vtree.NewMemoryStore(), nil
	}
}

// loadTree opens the store and loads an existing tree.
func loadTree(ctx context.Context, appID string) (*vtree.Tree, vtree.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	tree, err := vtree.Load(ctx, appID, store, vtree.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return tree, store, nil
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runTreeInit(cmd *cobra.Command, args []string) error {
	appID, path := args[0], args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	tree := vtree.New(appID, store, vtree.WithLogger(logger))
	version, err := tree.Initialize(cmd.Context(), snapshot.FromText(string(raw)), "initial version")
	if err != nil {
		return err
	}

	fmt.Printf("initialized %s at %s (version %s)\n", appID, version.VersionNumber, version.ID)
	return nil
}

func runTreeCommit(cmd *cobra.Command, args []string) error {
	appID, path := args[0], args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	tree, store, err := loadTree(cmd.Context(), appID)
	if err != nil {
		return err
	}
	defer store.Close()

	version, err := tree.CreateVersion(cmd.Context(), snapshot.FromText(string(raw)), treeMessage, treeAuthor, treeTags)
	if err != nil {
		return err
	}

	fmt.Printf("committed %s (version %s)\n", version.VersionNumber, version.ID)
	if version.Metadata.Stats != nil {
		fmt.Printf("  +%d/-%d lines, %d change(s)\n",
			version.Metadata.Stats.LinesAdded, version.Metadata.Stats.LinesRemoved,
			version.Metadata.Stats.ChangeCount)
	}
	return nil
}

func runTreeHistory(cmd *cobra.Command, args []string) error {
	tree, store, err := loadTree(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	branch, err := tree.CurrentBranch()
	if err != nil {
		return err
	}
	versions, err := tree.History(branch.ID)
	if err != nil {
		return err
	}

	fmt.Printf("branch %s (%d version(s))\n", branch.Name, len(versions))
	for _, v := range versions {
		msg := v.Metadata.Message
		if msg == "" {
			msg = "(no message)"
		}
		fmt.Printf("  %-8s %s  %s  %s\n",
			v.VersionNumber, v.ID, v.Metadata.Timestamp.Format(time.RFC3339), msg)
	}
	return nil
}

func runTreeBranch(cmd *cobra.Command, args []string) error {
	tree, store, err := loadTree(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	branch, err := tree.CreateBranch(cmd.Context(), args[1], treeFrom)
	if err != nil {
		return err
	}

	fmt.Printf("created branch %s (%s)\n", branch.Name, branch.ID)
	return nil
}

func runTreeSwitch(cmd *cobra.Command, args []string) error {
	tree, store, err := loadTree(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	branch, err := tree.BranchByName(args[1])
	if err != nil {
		return err
	}
	if err := tree.SwitchBranch(cmd.Context(), branch.ID); err != nil {
		return err
	}

	head, err := tree.Head()
	if err != nil {
		return err
	}
	fmt.Printf("switched to %s (head %s)\n", branch.Name, head.VersionNumber)
	return nil
}

func runTreeMerge(cmd *cobra.Command, args []string) error {
	tree, store, err := loadTree(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	source, err := tree.BranchByName(args[1])
	if err != nil {
		return err
	}
	target, err := tree.BranchByName(args[2])
	if err != nil {
		return err
	}

	version, err := tree.MergeBranch(cmd.Context(), source.ID, target.ID, treeMessage, treeAuthor)
	if err != nil {
		return err
	}

	fmt.Printf("merged %s into %s (version %s)\n", source.Name, target.Name, version.VersionNumber)
	return nil
}

func runTreeCompare(cmd *cobra.Command, args []string) error {
	tree, store, err := loadTree(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	comparison, err := tree.CompareVersions(args[1], args[2])
	if err != nil {
		return err
	}

	fmt.Print(comparison.Unified)
	return nil
}
