// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diff computes line-level differences between two texts.
package diff

import (
	"context"
	"fmt"
	"strings"
)

// =============================================================================
// DIFF OPERATIONS
// =============================================================================

// Op is the kind of a single DiffOp.
type Op int

const (
	// OpEqual marks a line present in both inputs
	OpEqual Op = iota
	// OpDelete marks a line present only in the original
	OpDelete
	// OpInsert marks a line present only in the modified text
	OpInsert
)

// String returns the string representation of an operation.
func (o Op) String() string {
	switch o {
	case OpEqual:
		return "equal"
	case OpDelete:
		return "delete"
	case OpInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// Prefix returns the conventional marker character for this operation.
func (o Op) Prefix() string {
	switch o {
	case OpDelete:
		return "-"
	case OpInsert:
		return "+"
	default:
		return " "
	}
}

// MarshalText encodes the operation as its name.
func (o Op) MarshalText() ([]byte, error) {
	switch o {
	case OpEqual, OpDelete, OpInsert:
		return []byte(o.String()), nil
	default:
		return nil, fmt.Errorf("diff: unknown op %d", int(o))
	}
}

// UnmarshalText decodes an operation name produced by MarshalText.
func (o *Op) UnmarshalText(text []byte) error {
	switch string(text) {
	case "equal":
		*o = OpEqual
	case "delete":
		*o = OpDelete
	case "insert":
		*o = OpInsert
	default:
		return fmt.Errorf("diff: unknown op %q", string(text))
	}
	return nil
}

// DiffOp is one classified line of a diff result.
type DiffOp struct {
	Kind Op     `json:"kind"`
	Line string `json:"line"`
}

// Equal returns an OpEqual DiffOp.
func Equal(line string) DiffOp { return DiffOp{Kind: OpEqual, Line: line} }

// Delete returns an OpDelete DiffOp.
func Delete(line string) DiffOp { return DiffOp{Kind: OpDelete, Line: line} }

// Insert returns an OpInsert DiffOp.
func Insert(line string) DiffOp { return DiffOp{Kind: OpInsert, Line: line} }

// String renders the op as its marker followed by the line.
func (d DiffOp) String() string {
	return d.Kind.Prefix() + d.Line
}

// =============================================================================
// COMPUTATION
// =============================================================================

// ComputeDiff returns the minimal line diff transforming original into modified.
// It is defined for every input and never fails.
func ComputeDiff(original, modified string) []DiffOp {
	ops, err := ComputeDiffContext(context.Background(), original, modified)
	if err != nil {
		// Background is never canceled.
		panic(fmt.Errorf("ComputeDiff: %w", err))
	}
	return ops
}

// ComputeDiffContext is ComputeDiff with cancellation. If ctx ends before the
// search completes, the returned error wraps both ErrAborted and ctx.Err().
func ComputeDiffContext(ctx context.Context, original, modified string) ([]DiffOp, error) {
	return ComputeLines(ctx, SplitLines(original), SplitLines(modified))
}

// EditDistance returns the number of inserted and deleted lines in ops.
func EditDistance(ops []DiffOp) int {
	n := 0
	for _, op := range ops {
		if op.Kind != OpEqual {
			n++
		}
	}
	return n
}

// OriginalLines reconstructs the original line sequence from ops.
func OriginalLines(ops []DiffOp) []string {
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Kind != OpInsert {
			lines = append(lines, op.Line)
		}
	}
	return lines
}

// ModifiedLines reconstructs the modified line sequence from ops.
func ModifiedLines(ops []DiffOp) []string {
	lines := make([]string, 0, len(ops))
	for _, op := range ops {
		if op.Kind != OpDelete {
			lines = append(lines, op.Line)
		}
	}
	return lines
}

// =============================================================================
// FILE DIFF
// =============================================================================

// File modes reported in DiffStats.
const (
	FileModeNew       = "new"
	FileModeDeleted   = "deleted"
	FileModeModified  = "modified"
	FileModeUnchanged = "unchanged"
)

// DiffStats holds statistics about a diff.
type DiffStats struct {
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Unchanged int    `json:"unchanged"`
	FileMode  string `json:"file_mode"`
}

// Diff is the diff of one file: its path, the ops and derived statistics.
type Diff struct {
	FilePath string    `json:"file_path,omitempty"`
	Ops      []DiffOp  `json:"ops"`
	Stats    DiffStats `json:"stats"`
}

// New wraps already computed ops into a Diff. original and modified are only
// consulted to classify the file mode, and that uses the raw text rather than
// its lines: "" against "\n" is a new file holding one empty line, while
// "\n" against "\n" is unchanged.
func New(filePath, original, modified string, ops []DiffOp) *Diff {
	d := &Diff{FilePath: filePath, Ops: ops}
	if d.Ops == nil {
		d.Ops = []DiffOp{}
	}

	for _, op := range ops {
		switch op.Kind {
		case OpInsert:
			d.Stats.Additions++
		case OpDelete:
			d.Stats.Deletions++
		default:
			d.Stats.Unchanged++
		}
	}

	switch {
	case original == "" && modified != "":
		d.Stats.FileMode = FileModeNew
	case original != "" && modified == "":
		d.Stats.FileMode = FileModeDeleted
	case d.Stats.Additions == 0 && d.Stats.Deletions == 0:
		d.Stats.FileMode = FileModeUnchanged
	default:
		d.Stats.FileMode = FileModeModified
	}

	return d
}

// Compare diffs original against modified and returns the result as a Diff.
func Compare(ctx context.Context, filePath, original, modified string) (*Diff, error) {
	ops, err := ComputeDiffContext(ctx, original, modified)
	if err != nil {
		return nil, err
	}
	return New(filePath, original, modified, ops), nil
}

// HasChanges reports whether the diff contains any insertion or deletion.
func (d *Diff) HasChanges() bool {
	return d.Stats.Additions > 0 || d.Stats.Deletions > 0
}

// Hunks groups the diff's changes into hunks.
func (d *Diff) Hunks() []Hunk {
	return Hunks(d.Ops)
}

// Summary returns a human-readable summary of the diff.
func (d *Diff) Summary() string {
	var parts []string

	switch d.Stats.FileMode {
	case FileModeNew:
		parts = append(parts, "New file")
	case FileModeDeleted:
		parts = append(parts, "File deleted")
	case FileModeUnchanged:
		return "Unchanged"
	default:
		parts = append(parts, "Modified")
	}

	if d.Stats.Additions > 0 {
		parts = append(parts, fmt.Sprintf("+%d", d.Stats.Additions))
	}
	if d.Stats.Deletions > 0 {
		parts = append(parts, fmt.Sprintf("-%d", d.Stats.Deletions))
	}

	return strings.Join(parts, " ")
}
