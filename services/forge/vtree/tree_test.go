// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vtree

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianForge/services/forge/snapshot"
)

func newTree(t *testing.T) *Tree {
	t.Helper()
	return New("app-"+t.Name(), NewMemoryStore())
}

func initTree(t *testing.T, content string) *Tree {
	t.Helper()
	tree := newTree(t)
	_, err := tree.Initialize(context.Background(), snapshot.FromText(content), "initial")
	require.NoError(t, err)
	return tree
}

func TestInitialize(t *testing.T) {
	tree := newTree(t)
	ctx := context.Background()

	root, err := tree.Initialize(ctx, snapshot.FromText("<App/>"), "initial generation")
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", root.VersionNumber)
	assert.Equal(t, 1, root.SequenceNumber)
	assert.Empty(t, root.ParentVersionID)
	assert.Nil(t, root.DiffFromParent)

	branch, err := tree.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch.Name)
	assert.True(t, branch.IsMain)
	assert.True(t, branch.IsActive)

	head, err := tree.Head()
	require.NoError(t, err)
	assert.Equal(t, root.ID, head.ID)

	_, err = tree.Initialize(ctx, snapshot.FromText("x"), "again")
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestCreateVersion_AdvancesHead(t *testing.T) {
	tree := initTree(t, "<App/>")
	ctx := context.Background()

	root, err := tree.Head()
	require.NoError(t, err)

	v2, err := tree.CreateVersion(ctx, snapshot.FromText("<App title=\"hi\"/>"), "add title", "", nil)
	require.NoError(t, err)

	assert.Equal(t, "1.1.0", v2.VersionNumber)
	assert.Equal(t, 2, v2.SequenceNumber)
	assert.Equal(t, root.ID, v2.ParentVersionID)
	assert.Equal(t, "system", v2.Metadata.Author)
	require.NotNil(t, v2.DiffFromParent)
	assert.NotEmpty(t, v2.DiffFromParent.Changes)
	require.NotNil(t, v2.Metadata.Stats)
	assert.Equal(t, len(v2.DiffFromParent.Changes), v2.Metadata.Stats.ChangeCount)

	head, err := tree.Head()
	require.NoError(t, err)
	assert.Equal(t, v2.ID, head.ID)
}

func TestCreateVersion_Uninitialized(t *testing.T) {
	tree := newTree(t)
	_, err := tree.CreateVersion(context.Background(), snapshot.FromText("x"), "msg", "", nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestBranchIsolation(t *testing.T) {
	// A commit on a feature branch must not move main's head.
	tree := initTree(t, "code1")
	ctx := context.Background()

	_, err := tree.CreateVersion(ctx, snapshot.FromText("code2"), "second", "", nil)
	require.NoError(t, err)
	mainHead, err := tree.Head()
	require.NoError(t, err)

	feature, err := tree.CreateBranch(ctx, "feature", "")
	require.NoError(t, err)
	assert.False(t, feature.IsActive)
	assert.Equal(t, mainHead.ID, feature.ParentVersionID)

	require.NoError(t, tree.SwitchBranch(ctx, feature.ID))
	featureCommit, err := tree.CreateVersion(ctx, snapshot.FromText("code3"), "feature work", "dev", nil)
	require.NoError(t, err)
	assert.Equal(t, feature.ID, featureCommit.BranchID)
	assert.Equal(t, mainHead.ID, featureCommit.ParentVersionID)

	main, err := tree.BranchByName("main")
	require.NoError(t, err)
	require.NoError(t, tree.SwitchBranch(ctx, main.ID))

	head, err := tree.Head()
	require.NoError(t, err)
	assert.Equal(t, mainHead.ID, head.ID, "main head moved by a feature commit")
}

func TestTreeInvariants(t *testing.T) {
	// Sequence numbers stay strictly increasing tree-wide and the head
	// always belongs to the current branch after mixed operations.
	tree := initTree(t, "v1")
	ctx := context.Background()

	_, err := tree.CreateVersion(ctx, snapshot.FromText("v2"), "m2", "", nil)
	require.NoError(t, err)
	feature, err := tree.CreateBranch(ctx, "feature", "")
	require.NoError(t, err)
	require.NoError(t, tree.SwitchBranch(ctx, feature.ID))
	_, err = tree.CreateVersion(ctx, snapshot.FromText("v3"), "m3", "", nil)
	require.NoError(t, err)
	main, err := tree.BranchByName("main")
	require.NoError(t, err)
	_, err = tree.MergeBranch(ctx, feature.ID, main.ID, "", "")
	require.NoError(t, err)

	doc, err := tree.Export()
	require.NoError(t, err)

	last := 0
	for _, v := range doc.Versions {
		assert.Greater(t, v.SequenceNumber, last, "sequence must strictly increase")
		last = v.SequenceNumber
	}

	head, err := tree.Head()
	require.NoError(t, err)
	branch, err := tree.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, branch.ID, head.BranchID, "head must belong to the current branch")
}

func TestCreateBranch_NameTaken(t *testing.T) {
	tree := initTree(t, "x")
	ctx := context.Background()

	_, err := tree.CreateBranch(ctx, "feature", "")
	require.NoError(t, err)
	_, err = tree.CreateBranch(ctx, "feature", "")
	assert.ErrorIs(t, err, ErrBranchNameTaken)
	_, err = tree.CreateBranch(ctx, "main", "")
	assert.ErrorIs(t, err, ErrBranchNameTaken)

	_, err = tree.CreateBranch(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidBranchName)
	assert.NotErrorIs(t, err, ErrBranchNameTaken)
}

func TestSwitchBranch_Errors(t *testing.T) {
	tree := initTree(t, "x")
	err := tree.SwitchBranch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestMergeBranch(t *testing.T) {
	tree := initTree(t, "base")
	ctx := context.Background()

	feature, err := tree.CreateBranch(ctx, "feature", "")
	require.NoError(t, err)
	require.NoError(t, tree.SwitchBranch(ctx, feature.ID))
	featureHead, err := tree.CreateVersion(ctx, snapshot.FromText("feature content"), "work", "", nil)
	require.NoError(t, err)

	main, err := tree.BranchByName("main")
	require.NoError(t, err)
	require.NoError(t, tree.SwitchBranch(ctx, main.ID))

	merge, err := tree.MergeBranch(ctx, feature.ID, main.ID, "", "")
	require.NoError(t, err)

	assert.Equal(t, main.ID, merge.BranchID)
	assert.Equal(t, "feature content", merge.Snapshot, "last writer wins at snapshot granularity")
	require.NotNil(t, merge.MergeInfo)
	assert.Equal(t, feature.ID, merge.MergeInfo.SourceBranchID)
	assert.Equal(t, featureHead.ID, merge.MergeInfo.SourceVersionID)

	head, err := tree.Head()
	require.NoError(t, err)
	assert.Equal(t, merge.ID, head.ID)
}

func TestMergeBranch_EmptySource(t *testing.T) {
	tree := initTree(t, "base")
	ctx := context.Background()

	feature, err := tree.CreateBranch(ctx, "feature", "")
	require.NoError(t, err)
	main, err := tree.BranchByName("main")
	require.NoError(t, err)

	_, err = tree.MergeBranch(ctx, feature.ID, main.ID, "", "")
	assert.ErrorIs(t, err, ErrBranchEmpty)
}

func TestRevertToVersion(t *testing.T) {
	tree := initTree(t, "original")
	ctx := context.Background()

	root, err := tree.Head()
	require.NoError(t, err)
	_, err = tree.CreateVersion(ctx, snapshot.FromText("changed"), "change", "", nil)
	require.NoError(t, err)

	revert, err := tree.RevertToVersion(ctx, root.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "original", revert.Snapshot)
	assert.Equal(t, 3, revert.SequenceNumber, "revert is a forward commit")
	assert.Contains(t, revert.Metadata.Message, "revert to 1.0.0")

	// The reverted-from version is untouched.
	doc, err := tree.Export()
	require.NoError(t, err)
	assert.Len(t, doc.Versions, 3)
}

func TestDeleteBranch(t *testing.T) {
	tree := initTree(t, "x")
	ctx := context.Background()

	main, err := tree.BranchByName("main")
	require.NoError(t, err)
	assert.ErrorIs(t, tree.DeleteBranch(ctx, main.ID), ErrProtectedBranch)

	feature, err := tree.CreateBranch(ctx, "feature", "")
	require.NoError(t, err)
	require.NoError(t, tree.SwitchBranch(ctx, feature.ID))
	_, err = tree.CreateVersion(ctx, snapshot.FromText("y"), "work", "", nil)
	require.NoError(t, err)

	// Active branch is protected.
	assert.ErrorIs(t, tree.DeleteBranch(ctx, feature.ID), ErrProtectedBranch)

	require.NoError(t, tree.SwitchBranch(ctx, main.ID))
	require.NoError(t, tree.DeleteBranch(ctx, feature.ID))

	_, err = tree.BranchByName("feature")
	assert.ErrorIs(t, err, ErrBranchNotFound)

	// Soft delete: versions survive and the name frees up.
	doc, err := tree.Export()
	require.NoError(t, err)
	assert.Len(t, doc.Versions, 2)
	_, err = tree.CreateBranch(ctx, "feature", "")
	assert.NoError(t, err)
}

func TestCompareVersions(t *testing.T) {
	tree := initTree(t, "line1\nline2\nline3")
	ctx := context.Background()

	root, err := tree.Head()
	require.NoError(t, err)
	v2, err := tree.CreateVersion(ctx, snapshot.FromText("line1\nlineX\nline3"), "tweak", "", nil)
	require.NoError(t, err)

	cmp, err := tree.CompareVersions(root.ID, v2.ID)
	require.NoError(t, err)

	require.NotNil(t, cmp.Diff)
	assert.Len(t, cmp.Diff.Changes, 1)
	assert.Contains(t, cmp.Unified, "-line2")
	assert.Contains(t, cmp.Unified, "+lineX")
	assert.True(t, strings.Contains(cmp.Unified, "@@"), "unified output missing hunk header: %q", cmp.Unified)

	_, err = tree.CompareVersions(root.ID, "missing")
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestExportImport_RoundTrip(t *testing.T) {
	tree := initTree(t, "content")
	ctx := context.Background()
	_, err := tree.CreateVersion(ctx, snapshot.FromText("content v2"), "v2", "", nil)
	require.NoError(t, err)

	doc, err := tree.Export()
	require.NoError(t, err)

	restored := New("restored-app", NewMemoryStore())
	require.NoError(t, restored.Import(ctx, doc))

	head, err := restored.Head()
	require.NoError(t, err)
	assert.Equal(t, "content v2", head.Snapshot)

	again, err := restored.Export()
	require.NoError(t, err)
	assert.Equal(t, doc.Versions, again.Versions)
	assert.Equal(t, doc.Branches, again.Branches)
}

func TestImport_Malformed(t *testing.T) {
	tree := newTree(t)
	ctx := context.Background()

	var serr *SerializationError

	err := tree.Import(ctx, nil)
	assert.ErrorAs(t, err, &serr)

	err = tree.Import(ctx, &Document{SchemaVersion: 99})
	assert.ErrorAs(t, err, &serr)

	err = tree.Import(ctx, &Document{
		SchemaVersion: schemaVersion,
		Branches:      []*Branch{{ID: "b1", Name: "main", IsMain: true, IsActive: true}},
		Versions: []*Version{
			{ID: "v1", BranchID: "b1", SequenceNumber: 2},
			{ID: "v2", BranchID: "b1", SequenceNumber: 2},
		},
		CurrentBranchID: "b1",
		HeadVersionID:   "v2",
	})
	assert.ErrorAs(t, err, &serr)
}

func TestLoad_Persistence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tree := New("persisted-app", store)
	_, err := tree.Initialize(ctx, snapshot.FromText("persisted"), "init")
	require.NoError(t, err)
	_, err = tree.CreateVersion(ctx, snapshot.FromText("persisted v2"), "v2", "", nil)
	require.NoError(t, err)

	reloaded, err := Load(ctx, "persisted-app", store)
	require.NoError(t, err)

	head, err := reloaded.Head()
	require.NoError(t, err)
	assert.Equal(t, "persisted v2", head.Snapshot)
	assert.Equal(t, 2, head.SequenceNumber)

	_, err = Load(ctx, "unknown-app", store)
	assert.ErrorIs(t, err, ErrTreeNotFound)
}
