// Package analytics derives category statistics from labeled interviews
package analytics

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/pbaille/codebook/internal/domain"
)

// ExtractSequence lists the categories of an interview in the order their runs
// begin. A run nested in another one counts at the position of its own first
// token, not where the enclosing run ends.
func ExtractSequence(iv *domain.Interview) []domain.CategoryID {
	var seq []domain.CategoryID
	for _, p := range iv.Paragraphs {
		for _, id := range p.Order() {
			tok := p.Token(id)
			if tok.First && tok.Category != domain.None {
				seq = append(seq, tok.Category)
			}
		}
	}
	return seq
}

// CountOccurrences counts, per interview, how many runs of every category
// occur. Each run also counts once for every ancestor of its category.
func CountOccurrences(h *domain.Hierarchy, ivs []*domain.Interview) map[domain.InterviewKey]map[domain.CategoryID]int {
	out := make(map[domain.InterviewKey]map[domain.CategoryID]int, len(ivs))
	for _, iv := range ivs {
		counts := make(map[domain.CategoryID]int)
		for _, c := range ExtractSequence(iv) {
			counts[c]++
			for _, a := range h.Ancestors(c) {
				counts[a]++
			}
		}
		out[iv.Key()] = counts
	}
	return out
}

// CountTokensWithCategory counts, per interview, the tokens carrying any category
func CountTokensWithCategory(ivs []*domain.Interview) map[domain.InterviewKey]int {
	out := make(map[domain.InterviewKey]int, len(ivs))
	for _, iv := range ivs {
		n := 0
		for _, p := range iv.Paragraphs {
			for _, id := range p.Order() {
				if p.Token(id).Category != domain.None {
					n++
				}
			}
		}
		out[iv.Key()] = n
	}
	return out
}

// Pattern is a contiguous slice of a category sequence with its number of
// occurrences
type Pattern struct {
	Categories []domain.CategoryID
	Count      int
}

// Codes renders the pattern's categories as codes of h
func (p Pattern) Codes(h *domain.Hierarchy) []string {
	codes := make([]string, len(p.Categories))
	for i, c := range p.Categories {
		codes[i] = h.Code(c)
	}
	return codes
}

// ExtractPatterns counts every contiguous window of length minLen..maxLen of
// each interview's category sequence. Overlapping windows all count. Patterns
// come back ordered by count, most frequent first. Ties follow the category
// ids of the window, which is hierarchy table order rather than code order.
func ExtractPatterns(ivs []*domain.Interview, minLen, maxLen int) (map[domain.InterviewKey][]Pattern, error) {
	if minLen < 1 {
		return nil, &domain.ValidationError{Field: "min", Message: "pattern length must be at least 1"}
	}
	if maxLen < minLen {
		return nil, &domain.ValidationError{Field: "max", Message: fmt.Sprintf("max length %d is below min length %d", maxLen, minLen)}
	}

	out := make(map[domain.InterviewKey][]Pattern, len(ivs))
	for _, iv := range ivs {
		seq := ExtractSequence(iv)
		index := make(map[string]int)
		var patterns []Pattern
		for n := minLen; n <= maxLen && n <= len(seq); n++ {
			for start := 0; start+n <= len(seq); start++ {
				window := seq[start : start+n]
				key := windowKey(window)
				if at, ok := index[key]; ok {
					patterns[at].Count++
					continue
				}
				index[key] = len(patterns)
				patterns = append(patterns, Pattern{Categories: slices.Clone(window), Count: 1})
			}
		}
		slices.SortStableFunc(patterns, func(a, b Pattern) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return slices.Compare(a.Categories, b.Categories)
		})
		out[iv.Key()] = patterns
	}
	return out, nil
}

func windowKey(window []domain.CategoryID) string {
	var sb strings.Builder
	for i, c := range window {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprint(&sb, int(c))
	}
	return sb.String()
}
