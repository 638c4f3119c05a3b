// Package report lays analytics results out as tables for the terminal and
// for spreadsheet export.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pbaille/codebook/internal/analytics"
	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/ods"
)

// Occurrences has one row per interview and one column per category. Parent
// columns include the runs of their descendants.
func Occurrences(h *domain.Hierarchy, ivs []*domain.Interview) ods.Table {
	cats := h.All()
	t := ods.Table{Name: "occurrences", Header: []string{"interview"}}
	for _, c := range cats {
		t.Header = append(t.Header, c.Code)
	}

	counts := analytics.CountOccurrences(h, ivs)
	for _, iv := range ivs {
		row := []any{iv.Key().String()}
		for _, c := range cats {
			id, _ := h.Lookup(c.Code)
			row = append(row, counts[iv.Key()][id])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Coverage lists per interview the token count, the tagged token count and
// their ratio
func Coverage(ivs []*domain.Interview) ods.Table {
	t := ods.Table{Name: "coverage", Header: []string{"interview", "tokens", "tagged", "ratio"}}
	tagged := analytics.CountTokensWithCategory(ivs)
	for _, iv := range ivs {
		total := iv.TokenCount()
		n := tagged[iv.Key()]
		ratio := 0.0
		if total > 0 {
			ratio = float64(n) / float64(total)
		}
		t.Rows = append(t.Rows, []any{iv.Key().String(), total, n, ratio})
	}
	return t
}

// Patterns lists the category patterns of length minLen..maxLen per interview,
// most frequent first
func Patterns(h *domain.Hierarchy, ivs []*domain.Interview, minLen, maxLen int) (ods.Table, error) {
	all, err := analytics.ExtractPatterns(ivs, minLen, maxLen)
	if err != nil {
		return ods.Table{}, err
	}

	t := ods.Table{Name: "patterns", Header: []string{"interview", "pattern", "length", "count"}}
	for _, iv := range ivs {
		for _, p := range all[iv.Key()] {
			t.Rows = append(t.Rows, []any{iv.Key().String(), strings.Join(p.Codes(h), " "), len(p.Categories), p.Count})
		}
	}
	return t, nil
}

// WriteText prints t as aligned columns
func WriteText(w io.Writer, t ods.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			if f, ok := c.(float64); ok {
				cells[i] = fmt.Sprintf("%.2f", f)
				continue
			}
			cells[i] = fmt.Sprint(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
