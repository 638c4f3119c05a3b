// Package validate compares projects structurally, typically a project
// against its own reloaded copy after a save.
package validate

import (
	"fmt"
	"slices"

	"github.com/pbaille/codebook/internal/domain"
)

// Diff returns "" when a and b are structurally equal and otherwise a
// description of the first discrepancy. Categories are compared by code so a
// rebuilt hierarchy matches the original. Checks run in this order: category
// codes, interview count, then per (participant, index) pair the participant,
// index, paragraph count, token texts and each token's flags and category.
func Diff(a, b *domain.Project) string {
	ac, bc := a.Categories.Codes(), b.Categories.Codes()
	if !slices.Equal(ac, bc) {
		return fmt.Sprintf("category codes differ: %v vs %v", ac, bc)
	}

	if len(a.Interviews) != len(b.Interviews) {
		return fmt.Sprintf("interview count differs: %d vs %d", len(a.Interviews), len(b.Interviews))
	}

	ai, bi := a.SortedInterviews(), b.SortedInterviews()
	for i := range ai {
		if d := diffInterview(a.Categories, b.Categories, ai[i], bi[i]); d != "" {
			return d
		}
	}
	return ""
}

func diffInterview(ah, bh *domain.Hierarchy, a, b *domain.Interview) string {
	if a.Participant != b.Participant {
		return fmt.Sprintf("participant differs: %q vs %q", a.Participant, b.Participant)
	}
	if a.Index != b.Index {
		return fmt.Sprintf("interview %s: index differs: %d vs %d", a.Participant, a.Index, b.Index)
	}
	if len(a.Paragraphs) != len(b.Paragraphs) {
		return fmt.Sprintf("interview %s: paragraph count differs: %d vs %d", a.Key(), len(a.Paragraphs), len(b.Paragraphs))
	}

	for n := range a.Paragraphs {
		pa, pb := a.Paragraphs[n], b.Paragraphs[n]
		if wa, wb := pa.Words(), pb.Words(); !slices.Equal(wa, wb) {
			return fmt.Sprintf("interview %s paragraph %d: text differs: %q vs %q", a.Key(), n, pa.Text(), pb.Text())
		}

		oa, ob := pa.Order(), pb.Order()
		for pos := range oa {
			ta, tb := pa.Token(oa[pos]), pb.Token(ob[pos])
			if ta.First != tb.First || ta.Last != tb.Last || ah.Code(ta.Category) != bh.Code(tb.Category) {
				return fmt.Sprintf("interview %s paragraph %d token %d (%q): (first=%t last=%t category=%q) vs (first=%t last=%t category=%q)",
					a.Key(), n, pos, ta.Text,
					ta.First, ta.Last, ah.Code(ta.Category),
					tb.First, tb.Last, bh.Code(tb.Category))
			}
		}
	}
	return ""
}
