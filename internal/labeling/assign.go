// Package labeling assigns detail categories to token selections while keeping
// the paragraph's runs well-formed.
package labeling

import (
	"github.com/pbaille/codebook/internal/domain"
)

// boundary moves the start (First) or the end (Last) of a run onto a token
// that survives the assignment
type boundary struct {
	pos   int
	first bool
}

// Assign labels the selected tokens of p with cat (domain.None clears them).
//
// The selection must be non-empty, belong to p and be in strictly increasing
// chain order; otherwise a *domain.PreconditionError is returned. A selection
// that skips tokens fails with *domain.InvalidSelectionError when a run kept
// between two selected parts cannot be nested inside the new run. Validation
// always completes before the first write, so a failed call leaves p untouched.
func Assign(p *domain.Paragraph, handles []domain.TokenID, cat domain.CategoryID) error {
	l, err := scan(p)
	if err != nil {
		return err
	}
	sel, err := l.selectionOf(p, handles)
	if err != nil {
		return err
	}
	moves, err := l.repairs(sel)
	if err != nil {
		return err
	}

	for _, b := range moves {
		tok := p.Token(l.order[b.pos])
		if b.first {
			tok.First = true
		} else {
			tok.Last = true
		}
	}

	for _, part := range sel.parts {
		for q := part.from; q <= part.to; q++ {
			tok := p.Token(l.order[q])
			tok.Category = cat
			tok.First = false
			tok.Last = false
		}
	}
	if cat != domain.None {
		p.Token(l.order[sel.first()]).First = true
		p.Token(l.order[sel.last()]).Last = true
	}

	markUntagged(p, l.order, max(sel.first()-1, 0), min(sel.last()+1, len(l.order)-1))
	return nil
}

// repairs decides, for every run intersecting the selection, where its
// surviving tokens put its new start and end. Runs losing all their tokens
// vanish; runs surviving on both sides enclose the new run unchanged.
func (l *layout) repairs(sel *selection) ([]boundary, error) {
	var moves []boundary
	for _, r := range l.runs {
		if r.open > sel.last() || r.close < sel.first() {
			continue
		}

		part := 0 // enclosed part holding surviving tokens
		firstIn, lastIn := -1, -1
		lastLeft, firstRight := -1, -1
		hasLeft, hasRight := false, false
		for _, q := range r.tokens {
			switch reg := sel.region(q); reg {
			case regionSelected:
			case regionLeft:
				hasLeft, lastLeft = true, q
			case regionRight:
				if !hasRight {
					hasRight, firstRight = true, q
				}
			default:
				if part != 0 && part != reg {
					return nil, conflict(r, "keeps tokens in two enclosed parts")
				}
				part = reg
				if firstIn < 0 {
					firstIn = q
				}
				lastIn = q
			}
		}

		switch {
		case part != 0 && (hasLeft || hasRight):
			return nil, conflict(r, "continues outside the enclosed part it keeps tokens in")
		case part != 0:
			if r.open < sel.parts[part-1].from {
				return nil, conflict(r, "opens before the selected part leading its enclosed tokens")
			}
			if r.close > sel.parts[part].to {
				return nil, conflict(r, "closes after the selected part trailing its enclosed tokens")
			}
			if r.open != firstIn {
				moves = append(moves, boundary{pos: firstIn, first: true})
			}
			if r.close != lastIn {
				moves = append(moves, boundary{pos: lastIn})
			}
		case hasLeft && hasRight:
		case hasLeft:
			moves = append(moves, boundary{pos: lastLeft})
		case hasRight:
			moves = append(moves, boundary{pos: firstRight, first: true})
		}
	}
	return moves, nil
}

func conflict(r run, reason string) error {
	return &domain.InvalidSelectionError{Category: r.cat, Position: r.open, Reason: reason}
}

// markUntagged re-derives the flags of untagged tokens in [from, to]: they
// bound maximal stretches of consecutive untagged tokens, so untagged
// neighbours merge without a boundary.
func markUntagged(p *domain.Paragraph, order []domain.TokenID, from, to int) {
	untagged := func(q int) bool {
		return q >= 0 && q < len(order) && p.Token(order[q]).Category == domain.None
	}
	for q := from; q <= to; q++ {
		if !untagged(q) {
			continue
		}
		tok := p.Token(order[q])
		tok.First = !untagged(q - 1)
		tok.Last = !untagged(q + 1)
	}
}
