// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vtree maintains an append-only DAG of artifact versions.
//
// # Description
//
// A Tree records every generated snapshot as an immutable version on a
// branch. Reverts and merges are forward commits; history is never
// rewritten. The whole tree persists as one JSON document keyed by
// application id through an injected store, read and written wholesale.
// That wholesale write is a documented limitation for very large
// histories.
//
// # Thread Safety
//
// All Tree mutations are linearized by an internal mutex. One Tree
// instance owns one application's history; callers share the instance,
// not the document.
package vtree

import (
	"time"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
)

// ChangeStats summarizes the diff that produced a version.
type ChangeStats struct {
	// LinesAdded and LinesRemoved are raw line counts.
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`

	// ChangeCount is the number of structured changes.
	ChangeCount int `json:"change_count"`

	// ComplexityScore is the bounded 0-10 diff score.
	ComplexityScore float64 `json:"complexity_score"`
}

// Metadata describes who created a version and why.
type Metadata struct {
	// Author is the creator, "system" when unset.
	Author string `json:"author"`

	// Message is the commit message.
	Message string `json:"message"`

	// Timestamp is the creation time (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Tags are optional caller-supplied labels.
	Tags []string `json:"tags,omitempty"`

	// Stats summarizes the diff from the parent version.
	Stats *ChangeStats `json:"change_stats,omitempty"`
}

// MergeInfo records the provenance of a merge commit.
type MergeInfo struct {
	// SourceBranchID is the branch merged from.
	SourceBranchID string `json:"source_branch_id"`

	// TargetBranchID is the branch merged into.
	TargetBranchID string `json:"target_branch_id"`

	// SourceVersionID is the source branch head at merge time.
	SourceVersionID string `json:"source_version_id"`
}

// Version is one immutable node in the tree.
//
// Versions are append-only: once created, no field changes. Reverting
// creates a new version with an old snapshot, never an edit.
type Version struct {
	// ID uniquely identifies the version.
	ID string `json:"id"`

	// BranchID is the branch the version was committed on.
	BranchID string `json:"branch_id"`

	// ParentVersionID is the previous head, empty for the root.
	ParentVersionID string `json:"parent_version_id,omitempty"`

	// VersionNumber is the semantic version label (minor bump per commit).
	VersionNumber string `json:"version_number"`

	// SequenceNumber is strictly increasing across the whole tree.
	SequenceNumber int `json:"sequence_number"`

	// Snapshot is the canonical artifact content at this version.
	Snapshot string `json:"snapshot"`

	// Metadata carries author, message, timestamp, tags, and stats.
	Metadata Metadata `json:"metadata"`

	// DiffFromParent is the structured diff against the parent, nil for
	// the root version.
	DiffFromParent *differ.Result `json:"diff_from_parent,omitempty"`

	// MergeInfo is set only on merge commits.
	MergeInfo *MergeInfo `json:"merge_info,omitempty"`
}

// Branch is one line of development.
type Branch struct {
	// ID uniquely identifies the branch.
	ID string `json:"id"`

	// Name is unique among live branches.
	Name string `json:"name"`

	// ParentVersionID is the version the branch forked from.
	ParentVersionID string `json:"parent_version_id,omitempty"`

	// ParentBranchID is the branch forked from.
	ParentBranchID string `json:"parent_branch_id,omitempty"`

	// IsMain marks the root branch. It can never be deleted.
	IsMain bool `json:"is_main"`

	// IsActive marks the branch the head currently follows.
	IsActive bool `json:"is_active"`

	// Deleted tombstones the branch. Its versions are retained; the
	// name is freed for reuse.
	Deleted bool `json:"deleted,omitempty"`

	// CreatedAt is the branch creation time (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Document is the persisted form of a whole tree.
//
// The document is JSON-serializable and round-trips verbatim through
// Export/Import.
type Document struct {
	// AppID keys the document in the store.
	AppID string `json:"app_id"`

	// SchemaVersion guards future format migrations.
	SchemaVersion int `json:"schema_version"`

	// Versions is the append-only version log, in creation order.
	Versions []*Version `json:"versions"`

	// Branches lists every branch, tombstones included.
	Branches []*Branch `json:"branches"`

	// CurrentBranchID is the active branch.
	CurrentBranchID string `json:"current_branch_id"`

	// HeadVersionID is the version the tree currently points at.
	HeadVersionID string `json:"head_version_id"`

	// NextSequence is the next global sequence number to assign.
	NextSequence int `json:"next_sequence"`
}

// schemaVersion is the current Document format version.
const schemaVersion = 1

// Comparison is the outcome of comparing two versions.
type Comparison struct {
	// FromID and ToID are the compared version ids.
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`

	// Diff is the structured diff from From to To.
	Diff *differ.Result `json:"diff"`

	// Unified is the rendered unified-diff text.
	Unified string `json:"unified"`
}
