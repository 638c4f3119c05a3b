package labeling

import (
	"fmt"

	"github.com/pbaille/codebook/internal/domain"
)

// ReplaceCategories swaps proj's hierarchy for next. mapping translates old
// category codes to leaf codes of next; tokens whose category has no mapping
// are cleared one by one through Assign, the rest are relabeled in place.
func ReplaceCategories(proj *domain.Project, next *domain.Hierarchy, mapping map[string]string) error {
	for from, to := range mapping {
		id, ok := next.Lookup(to)
		if !ok {
			return &domain.ValidationError{Field: "mapping", Message: fmt.Sprintf("%s maps to unknown category %s", from, to)}
		}
		if !next.IsSelectable(id) {
			return &domain.ValidationError{Field: "mapping", Message: fmt.Sprintf("%s maps to %s, which has subcategories", from, to)}
		}
	}

	old := proj.Categories
	translate := make([]domain.CategoryID, old.Len())
	for i := range translate {
		translate[i] = domain.None
		if to, ok := mapping[old.Code(domain.CategoryID(i))]; ok {
			translate[i], _ = next.Lookup(to)
		}
	}

	for _, iv := range proj.Interviews {
		for n, p := range iv.Paragraphs {
			if err := p.Check(); err != nil {
				return &domain.PreconditionError{Op: "replace categories", Message: fmt.Sprintf("interview %s paragraph %d: %v", iv.Key(), n, err)}
			}
		}
	}

	for _, iv := range proj.Interviews {
		for _, p := range iv.Paragraphs {
			// Clearing works in the old id space, so it has to finish before relabeling.
			for _, id := range p.Order() {
				c := p.Token(id).Category
				if c != domain.None && (!old.Valid(c) || translate[c] == domain.None) {
					if err := Assign(p, []domain.TokenID{id}, domain.None); err != nil {
						return fmt.Errorf("clear token of interview %s: %w", iv.Key(), err)
					}
				}
			}
			for _, id := range p.Order() {
				if tok := p.Token(id); tok.Category != domain.None {
					tok.Category = translate[tok.Category]
				}
			}
		}
	}

	proj.Categories = next
	return nil
}
