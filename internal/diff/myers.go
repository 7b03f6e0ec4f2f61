// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package diff

import (
	"context"
	"errors"
	"fmt"
)

// ErrAborted is returned when a diff is abandoned because its context ended.
var ErrAborted = errors.New("diff aborted")

// pollInterval is how many search layers run between context checks.
const pollInterval = 16

// ComputeLines diffs two pre-split line sequences.
//
// Among all shortest edit scripts the one returned matches a line whenever
// the next original and modified lines are equal, deletes when a deletion
// still leads to a shortest script, and inserts otherwise. Within every hunk
// deletions are then ordered before insertions.
//
// The distances that drive those choices come from a reverse Myers search,
// O((N+M)·D) time. Only every step-th search layer is kept, with step
// growing as the square root of D, and the layers in between are recomputed
// a block at a time during the forward walk.
func ComputeLines(ctx context.Context, original, modified []string) ([]DiffOp, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	a, b := intern(original, modified)

	var ops []DiffOp
	if !shareLine(a, b) {
		ops = make([]DiffOp, 0, len(original)+len(modified))
		for _, line := range original {
			ops = append(ops, Delete(line))
		}
		for _, line := range modified {
			ops = append(ops, Insert(line))
		}
	} else {
		t, err := newTrace(ctx, a, b)
		if err != nil {
			return nil, err
		}
		if ops, err = t.walk(original, modified); err != nil {
			return nil, err
		}
	}

	ops = deletesFirst(ops)
	if err := validate(original, modified, ops); err != nil {
		panic(fmt.Errorf("ComputeLines: validate failed with %v", err))
	}
	return ops, nil
}

// intern maps every distinct line to a small integer so the search compares
// ints instead of strings. Lines of original are numbered first.
func intern(original, modified []string) ([]int, []int) {
	ids := make(map[string]int, len(original)+len(modified))
	conv := func(lines []string) []int {
		out := make([]int, len(lines))
		for i, line := range lines {
			id, ok := ids[line]
			if !ok {
				id = len(ids)
				ids[line] = id
			}
			out[i] = id
		}
		return out
	}
	return conv(original), conv(modified)
}

// shareLine reports whether any line occurs in both inputs. A modified id is
// shared iff it is below the number of distinct original lines.
func shareLine(a, b []int) bool {
	distinct := 0
	for _, id := range a {
		distinct = max(distinct, id+1)
	}
	for _, id := range b {
		if id < distinct {
			return true
		}
	}
	return false
}

// trace is a Myers search run backwards from the end of both inputs. Layer d
// holds, for every diagonal k = x - y in -d, -d+2 .. d, how many trailing
// original lines x a path of d edits can cover, or -1 when none reaches that
// diagonal. Layer d has d+1 entries, diagonal k at index (k+d)/2.
type trace struct {
	ctx  context.Context
	a, b []int
	dist int // edit distance of the whole inputs

	step       int     // layer spacing of marks
	marks      [][]int // marks[i] is layer i*step
	block      [][]int // recomputed layers blockStart, blockStart+1, ...
	blockStart int
}

func newTrace(ctx context.Context, a, b []int) (*trace, error) {
	t := &trace{ctx: ctx, a: a, b: b, step: 1, blockStart: -1}

	cur := t.first()
	t.marks = [][]int{cur}
	d := 0
	for !t.done(cur, d) {
		d++
		if d%pollInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAborted, err)
			}
		}
		cur = t.next(cur, d)
		if d%t.step != 0 {
			continue
		}
		t.marks = append(t.marks, cur)
		if len(t.marks) > 2*t.step {
			kept := t.marks[:0]
			for i := 0; i < len(t.marks); i += 2 {
				kept = append(kept, t.marks[i])
			}
			clear(t.marks[len(kept):])
			t.marks = kept
			t.step *= 2
		}
	}
	t.dist = d
	return t, nil
}

// first is layer 0: the common suffix.
func (t *trace) first() []int {
	return []int{t.slide(0, 0)}
}

// slide follows diagonal k = x - y backwards over equal lines and returns
// the new x.
func (t *trace) slide(x, k int) int {
	n, m := len(t.a), len(t.b)
	y := x - k
	for x < n && y < m && t.a[n-1-x] == t.b[m-1-y] {
		x++
		y++
	}
	return x
}

// next computes layer d from layer d-1.
func (t *trace) next(prev []int, d int) []int {
	n, m := len(t.a), len(t.b)
	cur := make([]int, d+1)
	for idx := range cur {
		k := 2*idx - d
		best := -1
		// From diagonal k+1 by taking one more modified line.
		if idx < d {
			if x := prev[idx]; x >= 0 && x-k <= m {
				best = x
			}
		}
		// From diagonal k-1 by taking one more original line.
		if idx > 0 {
			if x := prev[idx-1] + 1; x > 0 && x <= n {
				best = max(best, x)
			}
		}
		if best < 0 {
			cur[idx] = -1
			continue
		}
		cur[idx] = t.slide(best, k)
	}
	return cur
}

// done reports whether layer d covers both inputs entirely.
func (t *trace) done(layer []int, d int) bool {
	n, m := len(t.a), len(t.b)
	k := n - m
	if k < -d || k > d || (k+d)%2 != 0 {
		return false
	}
	return layer[(k+d)/2] >= n
}

// layer returns layer d, recomputing its block from the nearest mark when it
// is not cached.
func (t *trace) layer(d int) []int {
	if d >= t.blockStart && d < t.blockStart+len(t.block) {
		return t.block[d-t.blockStart]
	}
	base := d / t.step * t.step
	cur := t.marks[d/t.step]
	t.block = append(t.block[:0], cur)
	for l := base + 1; l < base+t.step && l <= t.dist; l++ {
		cur = t.next(cur, l)
		t.block = append(t.block, cur)
	}
	t.blockStart = base
	return t.block[d-base]
}

// reaches reports whether original[i:] and modified[j:] are at most d edits
// apart.
func (t *trace) reaches(d, i, j int) bool {
	if d < 0 {
		return false
	}
	x := len(t.a) - i
	k := x - (len(t.b) - j)
	if k < -d || k > d || (k+d)%2 != 0 {
		return false
	}
	return t.layer(d)[(k+d)/2] >= x
}

// walk builds the edit script from the start of both inputs. Equal lines are
// always matched since a match never lengthens a shortest script. Otherwise
// the original line is deleted when the remaining inputs are then left
// edits-1 apart.
func (t *trace) walk(original, modified []string) ([]DiffOp, error) {
	n, m := len(t.a), len(t.b)
	ops := make([]DiffOp, 0, max(n, m))
	i, j, left := 0, 0, t.dist

	for steps := 1; i < n || j < m; steps++ {
		if steps%(pollInterval*64) == 0 {
			if err := t.ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAborted, err)
			}
		}
		switch {
		case i < n && j < m && t.a[i] == t.b[j]:
			ops = append(ops, Equal(original[i]))
			i++
			j++
		case i < n && t.reaches(left-1, i+1, j):
			ops = append(ops, Delete(original[i]))
			i++
			left--
		default:
			ops = append(ops, Insert(modified[j]))
			j++
			left--
		}
	}
	return ops, nil
}

// deletesFirst reorders every hunk so its deletions precede its insertions.
// Relative order within each kind is kept, so both inputs still reconstruct.
func deletesFirst(ops []DiffOp) []DiffOp {
	out := make([]DiffOp, 0, len(ops))
	var inserts []DiffOp
	for _, op := range ops {
		switch op.Kind {
		case OpDelete:
			out = append(out, op)
		case OpInsert:
			inserts = append(inserts, op)
		default:
			out = append(out, inserts...)
			inserts = inserts[:0]
			out = append(out, op)
		}
	}
	return append(out, inserts...)
}
