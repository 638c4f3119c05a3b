// Package xmlfile reads and writes projects as XML documents. Paths ending in
// ".xz" are transparently xz-compressed.
//
// Layout:
//
//	<project id="…" name="…" created="…">
//	  <categories>
//	    <category code="EMO" name="Emotion"/>
//	    <category code="JOY" name="Joy" parent="EMO"/>
//	  </categories>
//	  <interviews>
//	    <interview id="…" participant="P01" index="1" created="…">
//	      <paragraph>
//	        <token category="JOY" first="true">glad</token>
//	      </paragraph>
//	    </interview>
//	  </interviews>
//	</project>
//
// Untagged tokens carry no category attribute. Categories are listed parents
// first.
package xmlfile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/ulikunitz/xz"

	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/logging"
)

type xmlProject struct {
	XMLName    xml.Name       `xml:"project"`
	ID         string         `xml:"id,attr"`
	Name       string         `xml:"name,attr"`
	Created    string         `xml:"created,attr"`
	Categories []xmlCategory  `xml:"categories>category"`
	Interviews []xmlInterview `xml:"interviews>interview"`
}

type xmlCategory struct {
	Code   string `xml:"code,attr"`
	Name   string `xml:"name,attr"`
	Parent string `xml:"parent,attr,omitempty"`
}

type xmlInterview struct {
	ID          string         `xml:"id,attr"`
	Participant string         `xml:"participant,attr"`
	Index       int            `xml:"index,attr"`
	Created     string         `xml:"created,attr"`
	Paragraphs  []xmlParagraph `xml:"paragraph"`
}

type xmlParagraph struct {
	Tokens []xmlToken `xml:"token"`
}

type xmlToken struct {
	Category string `xml:"category,attr,omitempty"`
	First    bool   `xml:"first,attr,omitempty"`
	Last     bool   `xml:"last,attr,omitempty"`
	Text     string `xml:",chardata"`
}

var (
	projectExpr    = xpath.MustCompile("/project")
	categoryExpr   = xpath.MustCompile("/project/categories/category")
	interviewExpr  = xpath.MustCompile("/project/interviews/interview")
	paragraphExpr  = xpath.MustCompile("paragraph")
	tokenExpr      = xpath.MustCompile("token")
	errMissingRoot = errors.New("missing <project> root element")
)

// Encode writes p as an indented XML document
func Encode(w io.Writer, p *domain.Project) error {
	doc := xmlProject{
		ID:      p.ID,
		Name:    p.Name,
		Created: p.CreatedAt.Format(time.RFC3339Nano),
	}

	h := p.Categories
	for _, c := range h.All() {
		doc.Categories = append(doc.Categories, xmlCategory{Code: c.Code, Name: c.Name, Parent: h.Code(c.Parent)})
	}

	for _, iv := range p.SortedInterviews() {
		xi := xmlInterview{
			ID:          iv.ID,
			Participant: iv.Participant,
			Index:       iv.Index,
			Created:     iv.CreatedAt.Format(time.RFC3339Nano),
		}
		for _, par := range iv.Paragraphs {
			var xp xmlParagraph
			for _, id := range par.Order() {
				tok := par.Token(id)
				xp.Tokens = append(xp.Tokens, xmlToken{
					Category: h.Code(tok.Category),
					First:    tok.First,
					Last:     tok.Last,
					Text:     tok.Text,
				})
			}
			xi.Paragraphs = append(xi.Paragraphs, xp)
		}
		doc.Interviews = append(doc.Interviews, xi)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return nil
}

// Decode parses a project document and checks every paragraph's labeling
func Decode(r io.Reader) (*domain.Project, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}

	node := xmlquery.QuerySelector(root, projectExpr)
	if node == nil {
		return nil, errMissingRoot
	}
	p := domain.NewProject(node.SelectAttr("name"), nil)
	p.ID = node.SelectAttr("id")
	if p.CreatedAt, err = parseTime(node.SelectAttr("created")); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	for _, c := range xmlquery.QuerySelectorAll(root, categoryExpr) {
		if _, err := p.Categories.Add(c.SelectAttr("code"), c.SelectAttr("name"), c.SelectAttr("parent")); err != nil {
			return nil, fmt.Errorf("category %q: %w", c.SelectAttr("code"), err)
		}
	}

	for _, n := range xmlquery.QuerySelectorAll(root, interviewExpr) {
		iv, err := decodeInterview(p.Categories, n)
		if err != nil {
			return nil, err
		}
		p.Interviews = append(p.Interviews, iv)
	}
	return p, nil
}

func decodeInterview(h *domain.Hierarchy, n *xmlquery.Node) (*domain.Interview, error) {
	iv := &domain.Interview{
		ID:          n.SelectAttr("id"),
		Participant: n.SelectAttr("participant"),
	}
	index, err := strconv.Atoi(n.SelectAttr("index"))
	if err != nil || index < 1 {
		return nil, fmt.Errorf("interview %s: bad index %q", iv.Participant, n.SelectAttr("index"))
	}
	iv.Index = index
	if iv.CreatedAt, err = parseTime(n.SelectAttr("created")); err != nil {
		return nil, fmt.Errorf("interview %s: %w", iv.Key(), err)
	}

	for i, pn := range xmlquery.QuerySelectorAll(n, paragraphExpr) {
		par := domain.NewParagraph(nil)
		for _, tn := range xmlquery.QuerySelectorAll(pn, tokenExpr) {
			tok := domain.Token{
				Text:     strings.TrimSpace(tn.InnerText()),
				Category: domain.None,
				First:    tn.SelectAttr("first") == "true",
				Last:     tn.SelectAttr("last") == "true",
			}
			if code := tn.SelectAttr("category"); code != "" {
				cat, ok := h.Lookup(code)
				if !ok {
					return nil, fmt.Errorf("interview %s paragraph %d: unknown category %q", iv.Key(), i, code)
				}
				tok.Category = cat
			}
			par.Append(tok)
		}
		if err := par.Check(); err != nil {
			return nil, fmt.Errorf("interview %s paragraph %d: %w", iv.Key(), i, err)
		}
		iv.Paragraphs = append(iv.Paragraphs, par)
	}
	return iv, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

// Save writes p to path, compressing with xz when path ends in ".xz"
func Save(path string, p *domain.Project) (err error) {
	start := time.Now()
	defer func() { logging.Persistence("save", path, time.Since(start), err) }()

	f, err := os.Create(path)
	if err != nil {
		return &domain.PersistenceError{Op: "write", Path: path, Err: err}
	}
	defer f.Close()

	var w io.Writer = f
	var xw *xz.Writer
	if isXZ(path) {
		if xw, err = xz.NewWriter(f); err != nil {
			return &domain.PersistenceError{Op: "write", Path: path, Err: fmt.Errorf("create xz writer: %w", err)}
		}
		w = xw
	}

	if err := Encode(w, p); err != nil {
		return &domain.PersistenceError{Op: "write", Path: path, Err: err}
	}
	if xw != nil {
		if err := xw.Close(); err != nil {
			return &domain.PersistenceError{Op: "write", Path: path, Err: fmt.Errorf("close xz writer: %w", err)}
		}
	}
	if err := f.Close(); err != nil {
		return &domain.PersistenceError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Load reads a project written by Save
func Load(path string) (p *domain.Project, err error) {
	start := time.Now()
	defer func() { logging.Persistence("load", path, time.Since(start), err) }()

	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "read", Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if isXZ(path) {
		if r, err = xz.NewReader(f); err != nil {
			return nil, &domain.PersistenceError{Op: "read", Path: path, Err: fmt.Errorf("open xz stream: %w", err)}
		}
	}

	p, err = Decode(r)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "parse", Path: path, Err: err}
	}
	return p, nil
}

func isXZ(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xz")
}
