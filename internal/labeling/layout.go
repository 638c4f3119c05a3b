package labeling

import "github.com/pbaille/codebook/internal/domain"

// run is one bracketed category run of a paragraph
type run struct {
	cat    domain.CategoryID
	open   int   // chain position of the First token
	close  int   // chain position of the Last token
	tokens []int // positions labeled by this run (innermost), ascending
}

// layout is a positional snapshot of a well-formed paragraph
type layout struct {
	order []domain.TokenID // position -> handle
	pos   []int            // handle -> position
	runs  []run
}

// scan indexes the paragraph's runs with an explicit stack, so every open
// event is paired with its close in a single pass
func scan(p *domain.Paragraph) (*layout, error) {
	if err := p.Check(); err != nil {
		return nil, &domain.PreconditionError{Op: "assign", Message: "malformed paragraph: " + err.Error()}
	}

	l := &layout{order: p.Order(), pos: make([]int, p.Len())}
	var stack []int
	for i, id := range l.order {
		l.pos[id] = i
		tok := p.Token(id)
		if tok.Category == domain.None {
			continue
		}
		if tok.First {
			l.runs = append(l.runs, run{cat: tok.Category, open: i})
			stack = append(stack, len(l.runs)-1)
		}
		r := &l.runs[stack[len(stack)-1]]
		r.tokens = append(r.tokens, i)
		if tok.Last {
			r.close = i
			stack = stack[:len(stack)-1]
		}
	}
	return l, nil
}

// span is an inclusive range of chain positions
type span struct {
	from, to int
}

const (
	regionSelected = 0
	regionLeft     = -1
	regionRight    = -2
)

// selection is a selection split into its selected parts. Enclosed part k
// (1-based) lies between parts[k-1] and parts[k].
type selection struct {
	parts   []span
	regions []int // region of each position in [first, last]: selected or enclosed part number
}

func (s *selection) first() int { return s.parts[0].from }
func (s *selection) last() int  { return s.parts[len(s.parts)-1].to }

// interrupted reports whether the selection skips tokens
func (s *selection) interrupted() bool { return len(s.parts) > 1 }

func (s *selection) region(pos int) int {
	switch {
	case pos < s.first():
		return regionLeft
	case pos > s.last():
		return regionRight
	}
	return s.regions[pos-s.first()]
}

// selectionOf validates handles and groups their positions into parts
func (l *layout) selectionOf(p *domain.Paragraph, handles []domain.TokenID) (*selection, error) {
	if len(handles) == 0 {
		return nil, &domain.PreconditionError{Op: "assign", Message: "empty selection"}
	}

	positions := make([]int, len(handles))
	for i, id := range handles {
		if !p.Contains(id) {
			return nil, &domain.PreconditionError{Op: "assign", Message: "token does not belong to the paragraph"}
		}
		positions[i] = l.pos[id]
		if i > 0 && positions[i] <= positions[i-1] {
			return nil, &domain.PreconditionError{Op: "assign", Message: "selection is not in strictly increasing chain order"}
		}
	}

	s := &selection{}
	cur := span{from: positions[0], to: positions[0]}
	for _, q := range positions[1:] {
		if q == cur.to+1 {
			cur.to = q
			continue
		}
		s.parts = append(s.parts, cur)
		cur = span{from: q, to: q}
	}
	s.parts = append(s.parts, cur)

	s.regions = make([]int, s.last()-s.first()+1)
	for k := 1; k < len(s.parts); k++ {
		for q := s.parts[k-1].to + 1; q < s.parts[k].from; q++ {
			s.regions[q-s.first()] = k
		}
	}
	return s, nil
}
