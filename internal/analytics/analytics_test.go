package analytics

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/labeling"
)

func newProject(t *testing.T) *domain.Project {
	t.Helper()
	h := domain.NewHierarchy()
	mustAdd := func(code, parent string) {
		if _, err := h.Add(code, code, parent); err != nil {
			t.Fatal(err)
		}
	}
	mustAdd("P", "")
	mustAdd("A", "P")
	mustAdd("B", "P")
	mustAdd("Q", "")
	mustAdd("C", "Q")
	return domain.NewProject("analytics", h)
}

// assign labels the tokens at positions of paragraph n with code
func assign(t *testing.T, proj *domain.Project, iv *domain.Interview, n int, code string, positions ...int) {
	t.Helper()
	p := iv.Paragraphs[n]
	ids, err := p.Handles(positions)
	if err != nil {
		t.Fatal(err)
	}
	cat, ok := proj.Categories.Lookup(code)
	if !ok {
		t.Fatalf("unknown category %s", code)
	}
	if err := labeling.Assign(p, ids, cat); err != nil {
		t.Fatalf("assign %s to %v: %v", code, positions, err)
	}
}

// sequenceInterview tags one token per code, one after the other
func sequenceInterview(t *testing.T, proj *domain.Project, participant string, codes ...string) *domain.Interview {
	t.Helper()
	iv, err := proj.AddInterview(participant, strings.Repeat("word ", len(codes)))
	if err != nil {
		t.Fatal(err)
	}
	for i, code := range codes {
		assign(t, proj, iv, 0, code, i)
	}
	return iv
}

func codes(h *domain.Hierarchy, ids []domain.CategoryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = h.Code(id)
	}
	return out
}

func TestExtractSequence_OrderedByRunStart(t *testing.T) {
	proj := newProject(t)
	iv, err := proj.AddInterview("P01", "one two three four\n\nfive six")
	if err != nil {
		t.Fatal(err)
	}
	assign(t, proj, iv, 0, "A", 0, 1, 2)
	assign(t, proj, iv, 0, "B", 1)
	assign(t, proj, iv, 0, "C", 3)
	assign(t, proj, iv, 1, "B", 0, 1)

	got := codes(proj.Categories, ExtractSequence(iv))
	want := []string{"A", "B", "C", "B"}
	if !slices.Equal(got, want) {
		t.Errorf("ExtractSequence = %v, want %v", got, want)
	}
}

func TestExtractSequence_InterruptedRunCountsOnce(t *testing.T) {
	proj := newProject(t)
	iv, err := proj.AddInterview("P01", "one two three")
	if err != nil {
		t.Fatal(err)
	}
	assign(t, proj, iv, 0, "A", 0, 2)

	got := codes(proj.Categories, ExtractSequence(iv))
	if !slices.Equal(got, []string{"A"}) {
		t.Errorf("ExtractSequence = %v, want [A]", got)
	}
}

func TestCountOccurrences_RollsUpAncestors(t *testing.T) {
	proj := newProject(t)
	h := proj.Categories
	iv := sequenceInterview(t, proj, "P01", "A", "B", "A", "C")
	other := sequenceInterview(t, proj, "P02", "C")

	counts := CountOccurrences(h, []*domain.Interview{iv, other})

	tests := []struct {
		key  domain.InterviewKey
		code string
		want int
	}{
		{iv.Key(), "A", 2},
		{iv.Key(), "B", 1},
		{iv.Key(), "P", 3},
		{iv.Key(), "C", 1},
		{iv.Key(), "Q", 1},
		{other.Key(), "C", 1},
		{other.Key(), "Q", 1},
		{other.Key(), "A", 0},
	}
	for _, tt := range tests {
		id, _ := h.Lookup(tt.code)
		if got := counts[tt.key][id]; got != tt.want {
			t.Errorf("%s count of %s = %d, want %d", tt.key, tt.code, got, tt.want)
		}
	}
}

func TestCountOccurrences_SingleRunIncrementsParent(t *testing.T) {
	proj := newProject(t)
	iv, err := proj.AddInterview("P01", "a b c d")
	if err != nil {
		t.Fatal(err)
	}
	assign(t, proj, iv, 0, "A", 1, 2)

	counts := CountOccurrences(proj.Categories, []*domain.Interview{iv})[iv.Key()]
	a, _ := proj.Categories.Lookup("A")
	p, _ := proj.Categories.Lookup("P")
	if counts[a] != 1 || counts[p] != 1 {
		t.Errorf("counts A=%d P=%d, want 1 and 1", counts[a], counts[p])
	}
}

func TestCountTokensWithCategory(t *testing.T) {
	proj := newProject(t)
	iv, err := proj.AddInterview("P01", "a b c d e\n\nf g")
	if err != nil {
		t.Fatal(err)
	}
	assign(t, proj, iv, 0, "A", 0, 1, 2)
	assign(t, proj, iv, 0, "B", 1)
	assign(t, proj, iv, 1, "C", 1)
	empty, err := proj.AddInterview("P02", "nothing tagged")
	if err != nil {
		t.Fatal(err)
	}

	got := CountTokensWithCategory([]*domain.Interview{iv, empty})
	if got[iv.Key()] != 4 {
		t.Errorf("tagged tokens of %s = %d, want 4", iv.Key(), got[iv.Key()])
	}
	if got[empty.Key()] != 0 {
		t.Errorf("tagged tokens of %s = %d, want 0", empty.Key(), got[empty.Key()])
	}
}

func TestExtractPatterns(t *testing.T) {
	proj := newProject(t)
	h := proj.Categories

	tests := []struct {
		name     string
		sequence []string
		min, max int
		want     map[string]int
	}{
		{"unigrams", []string{"A", "B", "A"}, 1, 1, map[string]int{"A": 2, "B": 1}},
		{"bigrams", []string{"A", "B", "A"}, 2, 2, map[string]int{"A B": 1, "B A": 1}},
		{"overlapping windows", []string{"A", "B", "C"}, 2, 3, map[string]int{"A B": 1, "B C": 1, "A B C": 1}},
		{"repeated bigram", []string{"A", "A", "A"}, 2, 2, map[string]int{"A A": 2}},
		{"longer than sequence", []string{"A", "B"}, 3, 5, map[string]int{}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := sequenceInterview(t, proj, "P"+string(rune('a'+i)), tt.sequence...)
			all, err := ExtractPatterns([]*domain.Interview{iv}, tt.min, tt.max)
			if err != nil {
				t.Fatal(err)
			}
			got := make(map[string]int)
			for _, p := range all[iv.Key()] {
				got[strings.Join(p.Codes(h), " ")] = p.Count
			}
			if len(got) != len(tt.want) {
				t.Fatalf("patterns = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("pattern %q count = %d, want %d", k, got[k], v)
				}
			}
		})
	}
}

func TestExtractPatterns_SortedByCount(t *testing.T) {
	proj := newProject(t)
	iv := sequenceInterview(t, proj, "P01", "B", "A", "A")

	all, err := ExtractPatterns([]*domain.Interview{iv}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	patterns := all[iv.Key()]
	if len(patterns) != 2 || patterns[0].Count != 2 || patterns[0].Codes(proj.Categories)[0] != "A" {
		t.Errorf("patterns not sorted by count: %+v", patterns)
	}
}

func TestExtractPatterns_InvalidLengths(t *testing.T) {
	for _, tt := range []struct{ min, max int }{{0, 2}, {3, 2}} {
		_, err := ExtractPatterns(nil, tt.min, tt.max)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("ExtractPatterns(%d, %d) error = %v, want ErrInvalidInput", tt.min, tt.max, err)
		}
	}
}

func TestExtractPatterns_TiesInTableOrder(t *testing.T) {
	h := domain.NewHierarchy()
	for _, code := range []string{"ZED", "ALPHA"} {
		if _, err := h.Add(code, code, ""); err != nil {
			t.Fatal(err)
		}
	}
	proj := domain.NewProject("ties", h)
	iv := sequenceInterview(t, proj, "P01", "ALPHA", "ZED")

	all, err := ExtractPatterns([]*domain.Interview{iv}, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, p := range all[iv.Key()] {
		got = append(got, strings.Join(p.Codes(h), ","))
	}
	want := []string{"ZED", "ALPHA", "ALPHA,ZED"}
	if !slices.Equal(got, want) {
		t.Errorf("pattern order = %v, want %v", got, want)
	}
}
