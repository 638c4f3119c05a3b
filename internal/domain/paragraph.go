package domain

import (
	"fmt"
	"strings"
)

// TokenID is a handle to a token inside its paragraph's arena
type TokenID int

// NoToken terminates the chain in both directions
const NoToken TokenID = -1

// Token is a word of transcript text with its category labeling
type Token struct {
	Text     string
	Category CategoryID
	First    bool
	Last     bool

	next TokenID
	prev TokenID
}

// Paragraph owns an ordered token chain. Tokens live in an arena and link to
// each other through handles, so splicing stays O(1) without shared pointers.
type Paragraph struct {
	tokens []Token
	head   TokenID
	tail   TokenID
}

// NewParagraph builds an untagged paragraph from words
func NewParagraph(words []string) *Paragraph {
	p := &Paragraph{head: NoToken, tail: NoToken}
	for i, w := range words {
		p.Append(Token{
			Text:     w,
			Category: None,
			First:    i == 0,
			Last:     i == len(words)-1,
		})
	}
	return p
}

// Append links tok at the end of the chain and returns its handle. Flags are
// stored as given; loaders use this to rebuild persisted chains.
func (p *Paragraph) Append(tok Token) TokenID {
	id := TokenID(len(p.tokens))
	tok.next = NoToken
	tok.prev = p.tail
	p.tokens = append(p.tokens, tok)
	if p.tail != NoToken {
		p.tokens[p.tail].next = id
	} else {
		p.head = id
	}
	p.tail = id
	return id
}

// Len returns the number of tokens
func (p *Paragraph) Len() int {
	return len(p.tokens)
}

// Head returns the first token of the chain
func (p *Paragraph) Head() TokenID {
	return p.head
}

// Next returns the successor of id, NoToken at the end of the paragraph
func (p *Paragraph) Next(id TokenID) TokenID {
	return p.tokens[id].next
}

// Prev returns the predecessor of id, NoToken at the start of the paragraph
func (p *Paragraph) Prev(id TokenID) TokenID {
	return p.tokens[id].prev
}

// Contains reports whether id is a handle of p
func (p *Paragraph) Contains(id TokenID) bool {
	return id >= 0 && int(id) < len(p.tokens)
}

// Token returns the token behind id for in-place mutation
func (p *Paragraph) Token(id TokenID) *Token {
	return &p.tokens[id]
}

// Order walks the chain and returns the handles in text order
func (p *Paragraph) Order() []TokenID {
	out := make([]TokenID, 0, len(p.tokens))
	for id := p.head; id != NoToken; id = p.tokens[id].next {
		out = append(out, id)
	}
	return out
}

// Words returns the token texts in order
func (p *Paragraph) Words() []string {
	words := make([]string, 0, len(p.tokens))
	for id := p.head; id != NoToken; id = p.tokens[id].next {
		words = append(words, p.tokens[id].Text)
	}
	return words
}

// Text joins the words with single spaces
func (p *Paragraph) Text() string {
	return strings.Join(p.Words(), " ")
}

// Check verifies the labeling invariant: tagged runs open on First and close on
// Last like brackets, never interleave, and every tagged token carries the
// category of the innermost open run. Untagged tokens form maximal runs of
// consecutive untagged tokens marked by First and Last.
func (p *Paragraph) Check() error {
	var stack []CategoryID
	pos := 0
	for id := p.head; id != NoToken; id = p.tokens[id].next {
		tok := p.tokens[id]
		if tok.Category == None {
			wantFirst := tok.prev == NoToken || p.tokens[tok.prev].Category != None
			wantLast := tok.next == NoToken || p.tokens[tok.next].Category != None
			if tok.First != wantFirst || tok.Last != wantLast {
				return fmt.Errorf("untagged token %d (%q): first=%t last=%t, want first=%t last=%t",
					pos, tok.Text, tok.First, tok.Last, wantFirst, wantLast)
			}
			pos++
			continue
		}

		if tok.First {
			stack = append(stack, tok.Category)
		}
		if len(stack) == 0 {
			return fmt.Errorf("token %d (%q): category %d used outside any open run", pos, tok.Text, tok.Category)
		}
		if top := stack[len(stack)-1]; top != tok.Category {
			return fmt.Errorf("token %d (%q): category %d inside open run of %d", pos, tok.Text, tok.Category, top)
		}
		if tok.Last {
			stack = stack[:len(stack)-1]
		}
		pos++
	}
	if len(stack) > 0 {
		return fmt.Errorf("%d run(s) never closed, innermost category %d", len(stack), stack[len(stack)-1])
	}
	return nil
}

// Handles converts chain positions to token handles
func (p *Paragraph) Handles(positions []int) ([]TokenID, error) {
	order := p.Order()
	out := make([]TokenID, len(positions))
	for i, pos := range positions {
		if pos < 0 || pos >= len(order) {
			return nil, &NotFoundError{Resource: "token", ID: fmt.Sprint(pos)}
		}
		out[i] = order[pos]
	}
	return out, nil
}
