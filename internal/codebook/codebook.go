// Package codebook reads and writes category hierarchies in a small text
// format:
//
//	# comments run to the end of the line
//	category EMO "Emotion" {
//	    category JOY "Joy"
//	    category FEAR "Fear"
//	}
//	category PLACE
//
// A missing name defaults to the code.
package codebook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/pbaille/codebook/internal/domain"
)

// File is the parsed form of a codebook
type File struct {
	Categories []*Decl `@@*`
}

// Decl is one category declaration with its nested children
type Decl struct {
	Pos      lexer.Position
	Code     string  `"category" @Ident`
	Name     *string `@String?`
	Children []*Decl `( "{" @@* "}" )?`
}

var codebookLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
	{Name: "Punct", Pattern: `[{}]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var codebookParser = participle.MustBuild[File](
	participle.Lexer(codebookLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
)

// Parse reads a codebook into a hierarchy. Syntax errors and duplicate codes
// are reported with their position in filename.
func Parse(filename string, r io.Reader) (*domain.Hierarchy, error) {
	f, err := codebookParser.Parse(filename, r)
	if err != nil {
		return nil, &domain.ValidationError{Field: "codebook", Message: err.Error()}
	}

	h := domain.NewHierarchy()
	for _, d := range f.Categories {
		if err := add(h, d, ""); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// ParseString is Parse over an in-memory codebook
func ParseString(filename, src string) (*domain.Hierarchy, error) {
	return Parse(filename, strings.NewReader(src))
}

func add(h *domain.Hierarchy, d *Decl, parent string) error {
	name := d.Code
	if d.Name != nil {
		name = *d.Name
	}
	if _, err := h.Add(d.Code, name, parent); err != nil {
		return fmt.Errorf("%s: %w", d.Pos, err)
	}
	for _, c := range d.Children {
		if err := add(h, c, d.Code); err != nil {
			return err
		}
	}
	return nil
}

// Write renders h in codebook syntax, children indented under their parent
func Write(w io.Writer, h *domain.Hierarchy) error {
	var sb strings.Builder
	var walk func(id domain.CategoryID, depth int)
	walk = func(id domain.CategoryID, depth int) {
		c, _ := h.Get(id)
		indent := strings.Repeat("    ", depth)
		fmt.Fprintf(&sb, "%scategory %s %s", indent, c.Code, strconv.Quote(c.Name))
		children := h.Children(id)
		if len(children) == 0 {
			sb.WriteString("\n")
			return
		}
		sb.WriteString(" {\n")
		for _, child := range children {
			walk(child, depth+1)
		}
		fmt.Fprintf(&sb, "%s}\n", indent)
	}
	for _, root := range h.Roots() {
		walk(root, 0)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write codebook: %w", err)
	}
	return nil
}
