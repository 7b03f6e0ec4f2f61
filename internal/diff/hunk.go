// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

// Hunk is a maximal run of non-equal ops.
type Hunk struct {
	Start    int `json:"start"`     // Index of the first op of the hunk
	End      int `json:"end"`       // Index one past the last op
	OldStart int `json:"old_start"` // 1-based original line where the hunk begins
	NewStart int `json:"new_start"` // 1-based modified line where the hunk begins
	Deleted  int `json:"deleted"`   // Number of deleted lines
	Inserted int `json:"inserted"`  // Number of inserted lines
}

// Ops returns the slice of ops covered by the hunk.
func (h Hunk) Ops(ops []DiffOp) []DiffOp {
	return ops[h.Start:h.End]
}

// Hunks groups ops into hunks, in order.
func Hunks(ops []DiffOp) []Hunk {
	var hunks []Hunk
	var cur *Hunk
	oldLine, newLine := 1, 1

	for i, op := range ops {
		if op.Kind == OpEqual {
			if cur != nil {
				cur.End = i
				hunks = append(hunks, *cur)
				cur = nil
			}
			oldLine++
			newLine++
			continue
		}

		if cur == nil {
			cur = &Hunk{Start: i, OldStart: oldLine, NewStart: newLine}
		}
		if op.Kind == OpDelete {
			cur.Deleted++
			oldLine++
		} else {
			cur.Inserted++
			newLine++
		}
	}

	if cur != nil {
		cur.End = len(ops)
		hunks = append(hunks, *cur)
	}
	return hunks
}
