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
)

// ApplyChanges applies a structured change list to the old text.
//
// # Description
//
// Changes must be expressed in old-file coordinates and non-overlapping,
// which holds for any list produced by Diff. Applying Diff(A, B).Changes
// to A reproduces B exactly.
//
// # Inputs
//
//   - oldText: The baseline canonical text.
//   - changes: Non-overlapping changes in old-file coordinates.
//
// # Outputs
//
//   - string: The patched text.
//   - error: Non-nil if a change range falls outside the text or two
//     changes overlap.
func ApplyChanges(oldText string, changes []Change) (string, error) {
	lines := strings.Split(oldText, "\n")

	ordered := make([]Change, 0, len(changes))
	for _, c := range changes {
		if c.Kind == KindMove {
			// Moves splice as a deletion plus an insertion at the target.
			ordered = append(ordered,
				Change{Kind: KindDeletion, StartLine: c.StartLine, EndLine: c.EndLine, OldContent: c.Content},
				Change{Kind: KindInsertion, StartLine: c.TargetLine, EndLine: c.TargetLine - 1, Content: c.Content},
			)
			continue
		}
		ordered = append(ordered, c)
	}

	// Apply bottom-up so earlier indexes stay valid. Insertions at the
	// same index apply after removals so a replacement region keeps its
	// relative order and inserted content is never consumed by a removal.
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartLine != ordered[j].StartLine {
			return ordered[i].StartLine > ordered[j].StartLine
		}
		return ordered[i].Kind != KindInsertion && ordered[j].Kind == KindInsertion
	})

	for idx, c := range ordered {
		if idx > 0 && c.Overlaps(ordered[idx-1]) && !(c.Kind == KindInsertion || ordered[idx-1].Kind == KindInsertion) {
			return "", fmt.Errorf("overlapping changes at line %d", c.StartLine)
		}

		switch c.Kind {
		case KindInsertion:
			if c.StartLine < 0 || c.StartLine > len(lines) {
				return "", fmt.Errorf("insertion point %d outside document (%d lines)", c.StartLine, len(lines))
			}
			insert := strings.Split(c.Content, "\n")
			lines = append(lines[:c.StartLine], append(insert, lines[c.StartLine:]...)...)

		case KindDeletion, KindModification:
			if c.StartLine < 0 || c.EndLine >= len(lines) || c.StartLine > c.EndLine {
				return "", fmt.Errorf("%s range %d-%d outside document (%d lines)", c.Kind, c.StartLine, c.EndLine, len(lines))
			}
			var replace []string
			if c.Kind == KindModification {
				replace = strings.Split(c.Content, "\n")
			}
			rest := append([]string{}, lines[c.EndLine+1:]...)
			lines = append(lines[:c.StartLine], append(replace, rest...)...)

		default:
			return "", fmt.Errorf("unknown change kind %q", c.Kind)
		}
	}

	return strings.Join(lines, "\n"), nil
}
