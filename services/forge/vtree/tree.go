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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianForge/pkg/logging"
	"github.com/AleutianAI/AleutianForge/services/forge/differ"
	"github.com/AleutianAI/AleutianForge/services/forge/snapshot"
)

// defaultAuthor is recorded when the caller supplies no author.
const defaultAuthor = "system"

// Tree owns one application's version history.
//
// # Thread Safety
//
// Every operation takes the tree mutex, so concurrent callers on one
// Tree are linearized and the monotonic-sequence and head-consistency
// invariants hold. Separate applications get separate Tree instances.
type Tree struct {
	mu     sync.Mutex
	appID  string
	store  Store
	differ *differ.Differ
	log    *logging.Logger
	doc    *Document
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(t *Tree) { t.log = log }
}

// WithDiffer sets the differ used for parent diffs and comparisons.
func WithDiffer(d *differ.Differ) Option {
	return func(t *Tree) { t.differ = d }
}

// New creates an empty, uninitialized Tree.
//
// # Inputs
//
//   - appID: The application the history belongs to. Must not be empty.
//   - store: The persistence backend. Must not be nil.
//
// # Panics
//
//   - Panics on empty appID or nil store.
func New(appID string, store Store, opts ...Option) *Tree {
	if appID == "" {
		panic("vtree: appID must not be empty")
	}
	if store == nil {
		panic("vtree: store must not be nil")
	}
	t := &Tree{
		appID:  appID,
		store:  store,
		differ: differ.New(),
		log:    logging.Default(),
		doc: &Document{
			AppID:         appID,
			SchemaVersion: schemaVersion,
			NextSequence:  1,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load reopens an existing tree from the store.
//
// # Outputs
//
//   - *Tree: The loaded tree.
//   - error: ErrTreeNotFound when no document exists, *SerializationError
//     when the stored document is malformed.
func Load(ctx context.Context, appID string, store Store, opts ...Option) (*Tree, error) {
	doc, err := store.Load(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	t := New(appID, store, opts...)
	t.doc = doc
	return t, nil
}

// =============================================================================
// Lifecycle Operations
// =============================================================================

// Initialize creates the main branch and the root version.
//
// # Inputs
//
//   - snap: The initial artifact snapshot.
//   - message: The root commit message.
//
// # Outputs
//
//   - *Version: The root version: sequence 1, number "1.0.0".
//   - error: ErrAlreadyInitialized, a snapshot canonicalization error,
//     or a store error.
func (t *Tree) Initialize(ctx context.Context, snap snapshot.Snapshot, message string) (*Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.doc.Versions) > 0 {
		return nil, ErrAlreadyInitialized
	}

	canonical, err := snap.Canonical()
	if err != nil {
		return nil, fmt.Errorf("canonicalizing snapshot: %w", err)
	}

	branch := &Branch{
		ID:        uuid.NewString(),
		Name:      "main",
		IsMain:    true,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	version := &Version{
		ID:             uuid.NewString(),
		BranchID:       branch.ID,
		VersionNumber:  "1.0.0",
		SequenceNumber: t.doc.NextSequence,
		Snapshot:       canonical,
		Metadata: Metadata{
			Author:    defaultAuthor,
			Message:   message,
			Timestamp: time.Now().UTC(),
		},
	}

	t.doc.NextSequence++
	t.doc.Branches = []*Branch{branch}
	t.doc.Versions = []*Version{version}
	t.doc.CurrentBranchID = branch.ID
	t.doc.HeadVersionID = version.ID

	if err := t.save(ctx); err != nil {
		return nil, err
	}
	t.log.Info("tree initialized", "app_id", t.appID, "version", version.VersionNumber)
	return version, nil
}

// CreateVersion appends a new version on the current branch.
//
// # Description
//
// Computes the diff from the current head, assigns the next minor
// version number and the next global sequence number, and advances the
// head. Append-only: no prior version is touched.
//
// # Inputs
//
//   - snap: The new artifact snapshot.
//   - message: The commit message.
//   - author: The creator, "system" when empty.
//   - tags: Optional labels.
func (t *Tree) CreateVersion(ctx context.Context, snap snapshot.Snapshot, message, author string, tags []string) (*Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	head, err := t.headVersion()
	if err != nil {
		return nil, err
	}

	canonical, err := snap.Canonical()
	if err != nil {
		return nil, fmt.Errorf("canonicalizing snapshot: %w", err)
	}

	diffResult, err := t.differ.DiffText(head.Snapshot, canonical, differ.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("diffing against head: %w", err)
	}

	version := t.appendVersion(head, canonical, message, author, tags, diffResult, nil)
	if err := t.save(ctx); err != nil {
		return nil, err
	}

	t.log.Info("version created",
		"app_id", t.appID,
		"version", version.VersionNumber,
		"sequence", version.SequenceNumber,
		"complexity", diffResult.ComplexityScore,
	)
	return version, nil
}

// appendVersion builds and appends a version on the current branch.
// Caller holds the lock and saves afterwards.
func (t *Tree) appendVersion(parent *Version, canonical, message, author string, tags []string, diffResult *differ.Result, merge *MergeInfo) *Version {
	if author == "" {
		author = defaultAuthor
	}
	version := &Version{
		ID:              uuid.NewString(),
		BranchID:        t.doc.CurrentBranchID,
		ParentVersionID: parent.ID,
		VersionNumber:   bumpMinor(parent.VersionNumber),
		SequenceNumber:  t.doc.NextSequence,
		Snapshot:        canonical,
		Metadata: Metadata{
			Author:    author,
			Message:   message,
			Timestamp: time.Now().UTC(),
			Tags:      tags,
			Stats:     statsFrom(diffResult),
		},
		DiffFromParent: diffResult,
		MergeInfo:      merge,
	}
	t.doc.NextSequence++
	t.doc.Versions = append(t.doc.Versions, version)
	t.doc.HeadVersionID = version.ID
	return version
}

// =============================================================================
// Branch Operations
// =============================================================================

// CreateBranch forks a new, inactive branch.
//
// # Inputs
//
//   - name: Unique among live branches.
//   - fromVersionID: The fork point, current head when empty.
func (t *Tree) CreateBranch(ctx context.Context, name, fromVersionID string) (*Branch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.doc.Versions) == 0 {
		return nil, ErrNotInitialized
	}
	if name == "" {
		return nil, fmt.Errorf("%w: must not be empty", ErrInvalidBranchName)
	}
	for _, b := range t.doc.Branches {
		if !b.Deleted && b.Name == name {
			return nil, fmt.Errorf("%w: %q", ErrBranchNameTaken, name)
		}
	}

	if fromVersionID == "" {
		fromVersionID = t.doc.HeadVersionID
	}
	from := t.version(fromVersionID)
	if from == nil {
		return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, fromVersionID)
	}

	branch := &Branch{
		ID:              uuid.NewString(),
		Name:            name,
		ParentVersionID: from.ID,
		ParentBranchID:  from.BranchID,
		CreatedAt:       time.Now().UTC(),
	}
	t.doc.Branches = append(t.doc.Branches, branch)

	if err := t.save(ctx); err != nil {
		return nil, err
	}
	t.log.Info("branch created", "app_id", t.appID, "branch", name)
	return branch, nil
}

// SwitchBranch makes the target branch active and recomputes the head.
//
// The head becomes the branch's highest-sequence version; a branch with
// no versions yet points at its fork version.
func (t *Tree) SwitchBranch(ctx context.Context, branchID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.branch(branchID)
	if target == nil || target.Deleted {
		return fmt.Errorf("%w: %q", ErrBranchNotFound, branchID)
	}
	if target.IsActive {
		return nil
	}

	headID := ""
	if latest := t.latestOn(target.ID); latest != nil {
		headID = latest.ID
	} else if target.ParentVersionID != "" {
		headID = target.ParentVersionID
	} else {
		return fmt.Errorf("%w: %q", ErrBranchEmpty, target.Name)
	}

	for _, b := range t.doc.Branches {
		b.IsActive = false
	}
	target.IsActive = true
	t.doc.CurrentBranchID = target.ID
	t.doc.HeadVersionID = headID

	if err := t.save(ctx); err != nil {
		return err
	}
	t.log.Info("switched branch", "app_id", t.appID, "branch", target.Name)
	return nil
}

// MergeBranch records the source branch head as a new version on the
// target branch.
//
// # Description
//
// Last writer wins at snapshot granularity: the merge commit's snapshot
// is the source head's snapshot, tagged with MergeInfo. Fine-grained
// resolution is expected to have already run through conflict detection;
// this call only records the outcome.
func (t *Tree) MergeBranch(ctx context.Context, sourceID, targetID, message, author string) (*Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	source := t.branch(sourceID)
	if source == nil || source.Deleted {
		return nil, fmt.Errorf("%w: source %q", ErrBranchNotFound, sourceID)
	}
	target := t.branch(targetID)
	if target == nil || target.Deleted {
		return nil, fmt.Errorf("%w: target %q", ErrBranchNotFound, targetID)
	}

	sourceHead := t.latestOn(source.ID)
	if sourceHead == nil {
		return nil, fmt.Errorf("%w: source %q", ErrBranchEmpty, source.Name)
	}
	targetHead := t.latestOn(target.ID)
	if targetHead == nil && target.ParentVersionID != "" {
		targetHead = t.version(target.ParentVersionID)
	}
	if targetHead == nil {
		return nil, fmt.Errorf("%w: target %q", ErrBranchEmpty, target.Name)
	}

	diffResult, err := t.differ.DiffText(targetHead.Snapshot, sourceHead.Snapshot, differ.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("diffing merge: %w", err)
	}

	if author == "" {
		author = defaultAuthor
	}
	if message == "" {
		message = fmt.Sprintf("merge %s into %s", source.Name, target.Name)
	}

	version := &Version{
		ID:              uuid.NewString(),
		BranchID:        target.ID,
		ParentVersionID: targetHead.ID,
		VersionNumber:   bumpMinor(targetHead.VersionNumber),
		SequenceNumber:  t.doc.NextSequence,
		Snapshot:        sourceHead.Snapshot,
		Metadata: Metadata{
			Author:    author,
			Message:   message,
			Timestamp: time.Now().UTC(),
			Stats:     statsFrom(diffResult),
		},
		DiffFromParent: diffResult,
		MergeInfo: &MergeInfo{
			SourceBranchID:  source.ID,
			TargetBranchID:  target.ID,
			SourceVersionID: sourceHead.ID,
		},
	}
	t.doc.NextSequence++
	t.doc.Versions = append(t.doc.Versions, version)
	if t.doc.CurrentBranchID == target.ID {
		t.doc.HeadVersionID = version.ID
	}

	if err := t.save(ctx); err != nil {
		return nil, err
	}
	t.log.Info("branch merged", "app_id", t.appID, "source", source.Name, "target", target.Name)
	return version, nil
}

// RevertToVersion creates a new forward version whose snapshot equals
// the target's. History is never rewritten.
func (t *Tree) RevertToVersion(ctx context.Context, versionID, message string) (*Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.version(versionID)
	if target == nil {
		return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, versionID)
	}
	head, err := t.headVersion()
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = fmt.Sprintf("revert to %s", target.VersionNumber)
	}

	diffResult, err := t.differ.DiffText(head.Snapshot, target.Snapshot, differ.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("diffing revert: %w", err)
	}

	version := t.appendVersion(head, target.Snapshot, message, defaultAuthor, nil, diffResult, nil)
	if err := t.save(ctx); err != nil {
		return nil, err
	}
	return version, nil
}

// DeleteBranch tombstones a branch. Its versions are retained.
//
// # Outputs
//
//   - error: ErrProtectedBranch for main or the active branch,
//     ErrBranchNotFound otherwise when missing.
func (t *Tree) DeleteBranch(ctx context.Context, branchID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	branch := t.branch(branchID)
	if branch == nil || branch.Deleted {
		return fmt.Errorf("%w: %q", ErrBranchNotFound, branchID)
	}
	if branch.IsMain || branch.IsActive {
		return fmt.Errorf("%w: %q", ErrProtectedBranch, branch.Name)
	}

	branch.Deleted = true
	if err := t.save(ctx); err != nil {
		return err
	}
	t.log.Info("branch deleted", "app_id", t.appID, "branch", branch.Name)
	return nil
}

// =============================================================================
// Queries
// =============================================================================

// Head returns the version the tree currently points at.
func (t *Tree) Head() (*Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.headVersion()
}

// CurrentBranch returns the active branch.
func (t *Tree) CurrentBranch() (*Branch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	branch := t.branch(t.doc.CurrentBranchID)
	if branch == nil {
		return nil, ErrNotInitialized
	}
	return branch, nil
}

// BranchByName returns a live branch by name.
func (t *Tree) BranchByName(name string) (*Branch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range t.doc.Branches {
		if !b.Deleted && b.Name == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrBranchNotFound, name)
}

// Version returns a version by id.
func (t *Tree) Version(versionID string) (*Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v := t.version(versionID); v != nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, versionID)
}

// History returns the versions on a branch in sequence order.
func (t *Tree) History(branchID string) ([]*Version, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.branch(branchID) == nil {
		return nil, fmt.Errorf("%w: %q", ErrBranchNotFound, branchID)
	}
	var out []*Version
	for _, v := range t.doc.Versions {
		if v.BranchID == branchID {
			out = append(out, v)
		}
	}
	return out, nil
}

// =============================================================================
// Export / Import
// =============================================================================

// Export returns a deep copy of the persisted document.
func (t *Tree) Export() (*Document, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyDocument(t.doc)
}

// Import replaces the tree's document and persists it.
//
// # Outputs
//
//   - error: *SerializationError when the document is malformed; the
//     tree is left untouched in that case.
func (t *Tree) Import(ctx context.Context, doc *Document) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if doc == nil {
		return &SerializationError{Reason: "document is nil"}
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	clone, err := copyDocument(doc)
	if err != nil {
		return err
	}
	clone.AppID = t.appID

	t.doc = clone
	return t.save(ctx)
}

// =============================================================================
// Internals
// =============================================================================

// save persists the document wholesale. Caller holds the lock.
func (t *Tree) save(ctx context.Context) error {
	return t.store.Save(ctx, t.appID, t.doc)
}

// headVersion resolves the current head. Caller holds the lock.
func (t *Tree) headVersion() (*Version, error) {
	if t.doc.HeadVersionID == "" {
		return nil, ErrNotInitialized
	}
	if v := t.version(t.doc.HeadVersionID); v != nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: head %q", ErrVersionNotFound, t.doc.HeadVersionID)
}

// version finds a version by id. Caller holds the lock.
func (t *Tree) version(id string) *Version {
	for _, v := range t.doc.Versions {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// branch finds a branch by id, tombstones included. Caller holds the lock.
func (t *Tree) branch(id string) *Branch {
	for _, b := range t.doc.Branches {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// latestOn returns the highest-sequence version on a branch, nil when
// the branch has none. Caller holds the lock.
func (t *Tree) latestOn(branchID string) *Version {
	var latest *Version
	for _, v := range t.doc.Versions {
		if v.BranchID == branchID && (latest == nil || v.SequenceNumber > latest.SequenceNumber) {
			latest = v
		}
	}
	return latest
}

// copyDocument deep-copies via the JSON form the store uses anyway.
func copyDocument(doc *Document) (*Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, &SerializationError{Reason: "encoding document", Err: err}
	}
	return decodeDocument(raw)
}

// validateDocument checks the structural invariants of a document.
func validateDocument(doc *Document) error {
	if doc.SchemaVersion != schemaVersion {
		return &SerializationError{Reason: fmt.Sprintf("unsupported schema version %d", doc.SchemaVersion)}
	}

	branches := make(map[string]*Branch, len(doc.Branches))
	for _, b := range doc.Branches {
		if b.ID == "" {
			return &SerializationError{Reason: "branch with empty id"}
		}
		branches[b.ID] = b
	}

	versions := make(map[string]*Version, len(doc.Versions))
	lastSeq := 0
	for _, v := range doc.Versions {
		if v.ID == "" {
			return &SerializationError{Reason: "version with empty id"}
		}
		if _, ok := branches[v.BranchID]; !ok {
			return &SerializationError{Reason: fmt.Sprintf("version %s references unknown branch %s", v.ID, v.BranchID)}
		}
		if v.SequenceNumber <= lastSeq {
			return &SerializationError{Reason: fmt.Sprintf("sequence numbers not strictly increasing at version %s", v.ID)}
		}
		lastSeq = v.SequenceNumber
		versions[v.ID] = v
	}

	if len(doc.Versions) > 0 {
		if _, ok := versions[doc.HeadVersionID]; !ok {
			return &SerializationError{Reason: fmt.Sprintf("head %q does not resolve", doc.HeadVersionID)}
		}
		current, ok := branches[doc.CurrentBranchID]
		if !ok {
			return &SerializationError{Reason: fmt.Sprintf("current branch %q does not resolve", doc.CurrentBranchID)}
		}
		if current.Deleted {
			return &SerializationError{Reason: fmt.Sprintf("current branch %q is deleted", current.Name)}
		}
	}

	return nil
}

// statsFrom converts a diff result into version stats.
func statsFrom(result *differ.Result) *ChangeStats {
	if result == nil {
		return nil
	}
	return &ChangeStats{
		LinesAdded:      result.LinesAdded,
		LinesRemoved:    result.LinesRemoved,
		ChangeCount:     len(result.Changes),
		ComplexityScore: result.ComplexityScore,
	}
}

// bumpMinor computes the next minor version: "1.4.2" -> "1.5.0".
// Malformed input rebases at "0.1.0".
func bumpMinor(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return "0.1.0"
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return "0.1.0"
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return "0.1.0"
	}
	return fmt.Sprintf("%d.%d.0", major, minor+1)
}
