package domain

import (
	"errors"
	"slices"
	"testing"
)

func testHierarchy(t *testing.T) *Hierarchy {
	t.Helper()
	h := NewHierarchy()
	for _, c := range [][2]string{{"EMO", ""}, {"JOY", "EMO"}, {"ANG", "EMO"}, {"RAGE", "ANG"}, {"WORK", ""}} {
		if _, err := h.Add(c[0], "", c[1]); err != nil {
			t.Fatalf("Add(%s): %v", c[0], err)
		}
	}
	return h
}

func lookup(t *testing.T, h *Hierarchy, code string) CategoryID {
	t.Helper()
	id, ok := h.Lookup(code)
	if !ok {
		t.Fatalf("no category %s", code)
	}
	return id
}

func codes(h *Hierarchy, ids []CategoryID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = h.Code(id)
	}
	return out
}

func TestHierarchy_Structure(t *testing.T) {
	h := testHierarchy(t)

	if got := codes(h, h.Roots()); !slices.Equal(got, []string{"EMO", "WORK"}) {
		t.Errorf("Roots = %v", got)
	}
	if got := codes(h, h.Children(lookup(t, h, "EMO"))); !slices.Equal(got, []string{"JOY", "ANG"}) {
		t.Errorf("Children(EMO) = %v", got)
	}
	if got := codes(h, h.Ancestors(lookup(t, h, "RAGE"))); !slices.Equal(got, []string{"ANG", "EMO"}) {
		t.Errorf("Ancestors(RAGE) = %v", got)
	}

	selectable := map[string]bool{"EMO": false, "JOY": true, "ANG": false, "RAGE": true, "WORK": true}
	for code, want := range selectable {
		if got := h.IsSelectable(lookup(t, h, code)); got != want {
			t.Errorf("IsSelectable(%s) = %t, want %t", code, got, want)
		}
	}
	if h.IsSelectable(None) || h.Code(None) != "" {
		t.Error("None must be neither selectable nor coded")
	}
	if got := h.Codes(); !slices.Equal(got, []string{"ANG", "EMO", "JOY", "RAGE", "WORK"}) {
		t.Errorf("Codes = %v", got)
	}
}

func TestHierarchy_AddErrors(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		parent string
	}{
		{"empty code", "  ", ""},
		{"duplicate", "JOY", ""},
		{"unknown parent", "X", "NOPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHierarchy(t)
			_, err := h.Add(tt.code, "", tt.parent)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Add error = %v, want ErrInvalidInput", err)
			}
			if h.Len() != 5 {
				t.Errorf("Len = %d after failed Add", h.Len())
			}
		})
	}
}

func TestSplitTranscript(t *testing.T) {
	text := "  we moved\tin spring \r\n\r\nthen  it\nrained\n \n\n\nend"
	got := SplitTranscript(text)
	want := [][]string{{"we", "moved", "in", "spring"}, {"then", "it", "rained"}, {"end"}}
	if len(got) != len(want) {
		t.Fatalf("SplitTranscript = %q, want %q", got, want)
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("paragraph %d = %q, want %q", i, got[i], want[i])
		}
	}
	if got := SplitTranscript("caf\xe9 bell\x07 \x01\x02 ok\ufffe"); len(got) != 1 || !slices.Equal(got[0], []string{"caf\ufffd", "bell", "ok"}) {
		t.Errorf("SplitTranscript of unclean text = %q", got)
	}
	if got := SplitTranscript(" \n\n "); len(got) != 0 {
		t.Errorf("blank transcript gave %q", got)
	}
}

func TestParagraph_NewIsOneUntaggedRun(t *testing.T) {
	p := NewParagraph([]string{"a", "b", "c"})
	if err := p.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if p.Text() != "a b c" || p.Len() != 3 {
		t.Errorf("Text = %q, Len = %d", p.Text(), p.Len())
	}
	order := p.Order()
	if !p.Token(order[0]).First || p.Token(order[0]).Last || !p.Token(order[2]).Last {
		t.Error("untagged run flags not set at the paragraph edges")
	}
	if p.Next(order[2]) != NoToken || p.Prev(order[0]) != NoToken {
		t.Error("chain not terminated")
	}
	if _, err := p.Handles([]int{0, 3}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Handles out of range error = %v, want ErrNotFound", err)
	}
}

func TestParagraph_Check(t *testing.T) {
	h := testHierarchy(t)
	joy, work := lookup(t, h, "JOY"), lookup(t, h, "WORK")

	tests := []struct {
		name   string
		tokens []Token
		ok     bool
	}{
		{"nested run", []Token{
			{Text: "a", Category: joy, First: true},
			{Text: "b", Category: work, First: true, Last: true},
			{Text: "c", Category: joy, Last: true},
		}, true},
		{"run interrupted by untagged", []Token{
			{Text: "a", Category: joy, First: true},
			{Text: "b", Category: None, First: true, Last: true},
			{Text: "c", Category: joy, Last: true},
		}, true},
		{"never closed", []Token{
			{Text: "a", Category: joy, First: true},
			{Text: "b", Category: joy},
		}, false},
		{"interleaved", []Token{
			{Text: "a", Category: joy, First: true},
			{Text: "b", Category: work, First: true},
			{Text: "c", Category: joy, Last: true},
			{Text: "d", Category: work, Last: true},
		}, false},
		{"tag outside run", []Token{
			{Text: "a", Category: joy, First: true, Last: true},
			{Text: "b", Category: joy},
		}, false},
		{"untagged run split", []Token{
			{Text: "a", Category: None, First: true, Last: true},
			{Text: "b", Category: None, First: true, Last: true},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParagraph(nil)
			for _, tok := range tt.tokens {
				p.Append(tok)
			}
			if err := p.Check(); (err == nil) != tt.ok {
				t.Errorf("Check() = %v, want ok=%t", err, tt.ok)
			}
		})
	}
}

func TestProject_DeleteRenumbers(t *testing.T) {
	p := NewProject("study", nil)
	for _, participant := range []string{"P01", "P02", "P01", "P01"} {
		if _, err := p.AddInterview(participant, "hello there"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := p.AddInterview(" ", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank participant error = %v, want ErrInvalidInput", err)
	}

	third, err := p.Interview(InterviewKey{Participant: "P01", Index: 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.DeleteInterview(InterviewKey{Participant: "P01", Index: 2}); err != nil {
		t.Fatal(err)
	}
	if third.Index != 2 {
		t.Errorf("later interview index = %d, want 2", third.Index)
	}

	var keys []string
	for _, iv := range p.SortedInterviews() {
		keys = append(keys, iv.Key().String())
	}
	if !slices.Equal(keys, []string{"P01#1", "P01#2", "P02#1"}) {
		t.Errorf("interviews after delete = %v", keys)
	}

	next, err := p.AddInterview("P01", "again")
	if err != nil {
		t.Fatal(err)
	}
	if next.Index != 3 {
		t.Errorf("next index = %d, want 3", next.Index)
	}
	if err := p.DeleteInterview(InterviewKey{Participant: "P09", Index: 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing error = %v, want ErrNotFound", err)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"tab\tnew\nline\r", "tab\tnew\nline\r"},
		{"bell\x07", "bell"},
		{"\x00\x1f", ""},
		{"caf\xe9", "caf\ufffd"},
		{"\ufffe\uffff", ""},
		{"caf\u00e9 \U0001F600", "caf\u00e9 \U0001F600"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
