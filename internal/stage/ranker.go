package stage

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Ranker is the in-process rank stage. It reads every input line and
// writes those fuzzy-matching Query, best match first.
//
// Whitespace separates terms; a line must match all of them. Matching is
// case-insensitive unless a term has an upper-case letter.
type Ranker struct {
	Query string
}

// Compile-time check that Ranker implements Stage.
var _ Stage = (*Ranker)(nil)

// Name implements Stage.
func (r *Ranker) Name() string { return "rank" }

// Run implements Stage.
func (r *Ranker) Run(ctx context.Context, in io.Reader, out io.Writer) Outcome {
	lines, err := readLines(in)
	if err != nil {
		return finish(ctx, r.Name(), err)
	}
	if ctx.Err() != nil {
		return canceled(ctx, r.Name())
	}

	w := bufio.NewWriter(out)
	for _, line := range Rank(r.Query, lines) {
		if _, err := w.WriteString(line); err != nil {
			return finish(ctx, r.Name(), err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return finish(ctx, r.Name(), err)
		}
	}
	return finish(ctx, r.Name(), w.Flush())
}

// Rank returns the lines matching every term of query, ordered by
// descending total score. Ties keep input order.
func Rank(query string, lines []string) []string {
	terms := strings.Fields(query)
	if len(terms) == 0 || len(lines) == 0 {
		return nil
	}

	scores := make(map[int]int, len(lines))
	for i, term := range terms {
		next := make(map[int]int)
		for _, m := range fuzzy.Find(term, lines) {
			if hasUpper(term) && !isSubsequence(term, m.Str) {
				continue
			}
			prev, ok := scores[m.Index]
			if i > 0 && !ok {
				continue
			}
			next[m.Index] = prev + m.Score
		}
		scores = next
		if len(scores) == 0 {
			return nil
		}
	}

	idx := make([]int, 0, len(scores))
	for i := range scores {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool {
		if scores[idx[a]] != scores[idx[b]] {
			return scores[idx[a]] > scores[idx[b]]
		}
		return idx[a] < idx[b]
	})

	ranked := make([]string, len(idx))
	for i, j := range idx {
		ranked[i] = lines[j]
	}
	return ranked
}

// isSubsequence reports whether the runes of sub appear in s in order,
// compared case-sensitively.
func isSubsequence(sub, s string) bool {
	want := []rune(sub)
	if len(want) == 0 {
		return true
	}
	for _, r := range s {
		if r == want[0] {
			want = want[1:]
			if len(want) == 0 {
				return true
			}
		}
	}
	return false
}

// readLines reads in to EOF and returns its non-empty lines without
// line terminators. A nil reader yields no lines.
func readLines(in io.Reader) ([]string, error) {
	if in == nil {
		return nil, nil
	}
	var lines []string
	br := bufio.NewReader(in)
	for {
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
	}
}
