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
	"bytes"
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/AleutianAI/AleutianForge/services/forge/differ"
)

// CompareVersions diffs two versions and renders unified hunks.
//
// # Inputs
//
//   - fromID, toID: The version ids to compare, in that direction.
//
// # Outputs
//
//   - *Comparison: Structured diff plus the unified-diff rendering.
//   - error: ErrVersionNotFound when either id does not resolve.
func (t *Tree) CompareVersions(fromID, toID string) (*Comparison, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.version(fromID)
	if from == nil {
		return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, fromID)
	}
	to := t.version(toID)
	if to == nil {
		return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, toID)
	}

	result, err := t.differ.DiffText(from.Snapshot, to.Snapshot, differ.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("diffing versions: %w", err)
	}

	unified, err := renderUnified(from.VersionNumber, to.VersionNumber, result.Changes)
	if err != nil {
		return nil, fmt.Errorf("rendering unified diff: %w", err)
	}

	return &Comparison{
		FromID:  from.ID,
		ToID:    to.ID,
		Diff:    result,
		Unified: unified,
	}, nil
}

// renderUnified converts structured changes into unified hunks.
//
// Changes arrive in old-file order, so the new-file line offset is the
// running insertion/deletion delta.
func renderUnified(fromLabel, toLabel string, changes []differ.Change) (string, error) {
	if len(changes) == 0 {
		return "", nil
	}

	fd := &godiff.FileDiff{
		OrigName: fromLabel,
		NewName:  toLabel,
	}

	delta := 0
	for _, c := range changes {
		var body bytes.Buffer
		origLines, newLines := 0, 0

		if c.Kind == differ.KindDeletion || c.Kind == differ.KindModification || c.Kind == differ.KindMove {
			for _, line := range strings.Split(c.OldContent, "\n") {
				body.WriteString("-")
				body.WriteString(line)
				body.WriteString("\n")
				origLines++
			}
		}
		if c.Kind == differ.KindInsertion || c.Kind == differ.KindModification || c.Kind == differ.KindMove {
			for _, line := range strings.Split(c.Content, "\n") {
				body.WriteString("+")
				body.WriteString(line)
				body.WriteString("\n")
				newLines++
			}
		}

		// Zero-length ranges anchor on the preceding line.
		origStart := c.StartLine + 1
		newStart := c.StartLine + 1 + delta
		if c.Kind == differ.KindInsertion {
			origStart = c.StartLine
		}
		if c.Kind == differ.KindDeletion {
			newStart = c.StartLine + delta
		}

		fd.Hunks = append(fd.Hunks, &godiff.Hunk{
			OrigStartLine: int32(origStart),
			OrigLines:     int32(origLines),
			NewStartLine:  int32(newStart),
			NewLines:      int32(newLines),
			Body:          body.Bytes(),
		})
		delta += newLines - origLines
	}

	raw, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
