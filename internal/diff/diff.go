// Package diff computes line-level deltas between two text blobs.
//
// Both inputs are split on "\n" with no further normalization: the empty
// string is a single empty line, and a trailing newline produces a final
// empty line. Every function here is pure — no side effects, no failure
// modes for Compare.
package diff

import (
	"fmt"
	"strings"
)

// Kind classifies a delta.
type Kind string

const (
	// Insert means lines exist only in the revised text.
	Insert Kind = "insert"
	// Delete means lines exist only in the original text.
	Delete Kind = "delete"
	// Change means a run of original lines was replaced by a different run.
	Change Kind = "change"
)

// Chunk is a contiguous run of lines anchored at a zero-based line index.
// An insert delta carries an empty original chunk whose Position marks
// where the revised lines slot in; a delete delta mirrors that on the
// revised side.
type Chunk struct {
	Position int      `json:"position"`
	Lines    []string `json:"lines"`
}

// Delta is one contiguous change group, in document order.
type Delta struct {
	Kind     Kind  `json:"kind"`
	Original Chunk `json:"original"`
	Revised  Chunk `json:"revised"`
}

// Result bundles the compared texts with their ordered deltas.
// Identical inputs produce an empty delta slice.
type Result struct {
	Original string  `json:"original"`
	Revised  string  `json:"revised"`
	Deltas   []Delta `json:"deltas"`
}

// Compare computes a minimal edit script between original and revised,
// based on the longest common subsequence of their lines. Memory stays
// linear in the input size, so content at the store's size limit diffs
// without a quadratic table.
func Compare(original, revised string) Result {
	origLines := splitLines(original)
	revLines := splitLines(revised)

	// Unchanged head and tail never appear in a delta, so trim them
	// before the LCS proper. Edits clustered in one region then only
	// pay for that region.
	prefix := commonPrefix(origLines, revLines)
	origLines = origLines[prefix:]
	revLines = revLines[prefix:]
	suffix := commonSuffix(origLines, revLines)
	a := origLines[:len(origLines)-suffix]
	b := revLines[:len(revLines)-suffix]

	ids := map[string]int{}
	ai := internLines(a, ids)
	bi := internLines(b, ids)

	var matches []match
	lcsMatches(ai, bi, 0, 0, &matches)

	deltas := []Delta{}
	emit := func(i, mi, j, mj int) {
		if mi > i || mj > j {
			deltas = append(deltas, newDelta(prefix+i, a[i:mi], prefix+j, b[j:mj]))
		}
	}
	i, j := 0, 0
	for _, m := range matches {
		emit(i, m.i, j, m.j)
		i, j = m.i+1, m.j+1
	}
	emit(i, len(a), j, len(b))

	return Result{Original: original, Revised: revised, Deltas: deltas}
}

type match struct{ i, j int }

// lcsMatches appends the index pairs of a longest common subsequence of
// a and b, in order, offset by (ai, bj). Hirschberg's divide and conquer
// keeps the working set at two DP rows regardless of input length.
func lcsMatches(a, b []int, ai, bj int, out *[]match) {
	if len(a) == 0 || len(b) == 0 {
		return
	}
	if len(a) == 1 {
		for j, v := range b {
			if v == a[0] {
				*out = append(*out, match{ai, bj + j})
				return
			}
		}
		return
	}

	mid := len(a) / 2
	left := lcsRow(a[:mid], b)
	right := lcsRow(reversed(a[mid:]), reversed(b))

	split, best := 0, -1
	for k := 0; k <= len(b); k++ {
		if sum := left[k] + right[len(b)-k]; sum > best {
			split, best = k, sum
		}
	}

	lcsMatches(a[:mid], b[:split], ai, bj, out)
	lcsMatches(a[mid:], b[split:], ai+mid, bj+split, out)
}

// lcsRow returns the final row of the LCS length table for a against b:
// row[j] is the LCS length of all of a and b[:j].
func lcsRow(a, b []int) []int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for _, av := range a {
		for j, bv := range b {
			if av == bv {
				cur[j+1] = prev[j] + 1
			} else if prev[j+1] >= cur[j] {
				cur[j+1] = prev[j+1]
			} else {
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}
	return prev
}

func reversed(s []int) []int {
	out := make([]int, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// internLines maps each line to a small integer so the LCS compares ints
// instead of re-hashing long strings on every cell.
func internLines(lines []string, ids map[string]int) []int {
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

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}

// Apply reconstructs the revised text by replaying deltas over original.
// It verifies each delta's original chunk against the text and fails if
// the deltas do not belong to this original.
func Apply(original string, deltas []Delta) (string, error) {
	src := splitLines(original)
	out := make([]string, 0, len(src))
	next := 0

	for _, d := range deltas {
		pos := d.Original.Position
		if pos < next || pos > len(src) {
			return "", fmt.Errorf("diff: delta at line %d out of order", pos)
		}
		out = append(out, src[next:pos]...)
		for k, line := range d.Original.Lines {
			if pos+k >= len(src) || src[pos+k] != line {
				return "", fmt.Errorf("diff: delta at line %d does not match original", pos)
			}
		}
		out = append(out, d.Revised.Lines...)
		next = pos + len(d.Original.Lines)
	}
	out = append(out, src[next:]...)

	return strings.Join(out, "\n"), nil
}

func newDelta(origPos int, deleted []string, revPos int, inserted []string) Delta {
	kind := Change
	switch {
	case len(deleted) == 0:
		kind = Insert
	case len(inserted) == 0:
		kind = Delete
	}
	if deleted == nil {
		deleted = []string{}
	}
	if inserted == nil {
		inserted = []string{}
	}
	return Delta{
		Kind:     kind,
		Original: Chunk{Position: origPos, Lines: deleted},
		Revised:  Chunk{Position: revPos, Lines: inserted},
	}
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}
