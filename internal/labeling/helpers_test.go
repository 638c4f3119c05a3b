package labeling

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pbaille/codebook/internal/domain"
)

// testHierarchy returns a root P with leaves A, B, C, D
func testHierarchy(t *testing.T) *domain.Hierarchy {
	t.Helper()
	h := domain.NewHierarchy()
	if _, err := h.Add("P", "Parent", ""); err != nil {
		t.Fatal(err)
	}
	for _, code := range []string{"A", "B", "C", "D"} {
		if _, err := h.Add(code, "Leaf "+code, "P"); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

// build parses a paragraph notation: "-" untagged, "A(" opens a run of A,
// "A)" closes it, "A()" is a single-token run and "A" continues the open run
func build(t *testing.T, h *domain.Hierarchy, notation string) *domain.Paragraph {
	t.Helper()
	fields := strings.Fields(notation)
	p := domain.NewParagraph(nil)
	for i, f := range fields {
		tok := domain.Token{Text: fmt.Sprintf("w%d", i), Category: domain.None}
		if f == "-" {
			tok.First = i == 0 || fields[i-1] != "-"
			tok.Last = i == len(fields)-1 || fields[i+1] != "-"
			p.Append(tok)
			continue
		}
		code := strings.TrimRight(f, "()")
		id, ok := h.Lookup(code)
		if !ok {
			t.Fatalf("unknown category %q in %q", code, notation)
		}
		tok.Category = id
		tok.First = strings.Contains(f, "(")
		tok.Last = strings.Contains(f, ")")
		p.Append(tok)
	}
	if err := p.Check(); err != nil {
		t.Fatalf("fixture %q is malformed: %v", notation, err)
	}
	return p
}

// render is the inverse of build
func render(p *domain.Paragraph, h *domain.Hierarchy) string {
	var parts []string
	for _, id := range p.Order() {
		tok := p.Token(id)
		if tok.Category == domain.None {
			parts = append(parts, "-")
			continue
		}
		s := h.Code(tok.Category)
		if tok.First {
			s += "("
		}
		if tok.Last {
			s += ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// state captures every field of every token, untagged flags included
func state(p *domain.Paragraph) string {
	var sb strings.Builder
	for _, id := range p.Order() {
		tok := p.Token(id)
		fmt.Fprintf(&sb, "%s:%d:%t:%t ", tok.Text, tok.Category, tok.First, tok.Last)
	}
	return sb.String()
}

func handles(t *testing.T, p *domain.Paragraph, positions ...int) []domain.TokenID {
	t.Helper()
	ids, err := p.Handles(positions)
	if err != nil {
		t.Fatal(err)
	}
	return ids
}

func category(t *testing.T, h *domain.Hierarchy, code string) domain.CategoryID {
	t.Helper()
	if code == "-" {
		return domain.None
	}
	id, ok := h.Lookup(code)
	if !ok {
		t.Fatalf("unknown category %q", code)
	}
	return id
}
