package domain

import (
	"slices"
	"strings"
)

// CategoryID indexes a category inside its Hierarchy
type CategoryID int

// None is the category of untagged tokens
const None CategoryID = -1

// Category is a detail category node. Parent is None for roots.
type Category struct {
	Code   string     `json:"code"`
	Name   string     `json:"name"`
	Parent CategoryID `json:"parent"`
}

// Hierarchy is a forest of categories stored as a flat table. A parent must be
// added before its children, so the parent relation can never form a cycle.
type Hierarchy struct {
	cats     []Category
	children [][]CategoryID
	byCode   map[string]CategoryID
}

// NewHierarchy creates an empty hierarchy
func NewHierarchy() *Hierarchy {
	return &Hierarchy{byCode: make(map[string]CategoryID)}
}

// Add appends a category under the category with parentCode ("" for a root)
func (h *Hierarchy) Add(code, name, parentCode string) (CategoryID, error) {
	code = strings.TrimSpace(CleanText(code))
	name = CleanText(name)
	if code == "" {
		return None, &ValidationError{Field: "code", Message: "category code is required"}
	}
	if _, dup := h.byCode[code]; dup {
		return None, &ValidationError{Field: "code", Message: "duplicate category code " + code}
	}

	parent := None
	if parentCode != "" {
		p, ok := h.byCode[parentCode]
		if !ok {
			return None, &ValidationError{Field: "parent", Message: "unknown parent category " + parentCode}
		}
		parent = p
	}

	id := CategoryID(len(h.cats))
	h.cats = append(h.cats, Category{Code: code, Name: name, Parent: parent})
	h.children = append(h.children, nil)
	if parent != None {
		h.children[parent] = append(h.children[parent], id)
	}
	h.byCode[code] = id
	return id, nil
}

// Len returns the number of categories
func (h *Hierarchy) Len() int {
	return len(h.cats)
}

// Valid reports whether id names a category of h
func (h *Hierarchy) Valid(id CategoryID) bool {
	return id >= 0 && int(id) < len(h.cats)
}

// Get returns the category with the given id
func (h *Hierarchy) Get(id CategoryID) (Category, bool) {
	if !h.Valid(id) {
		return Category{}, false
	}
	return h.cats[id], true
}

// Lookup finds a category by code
func (h *Hierarchy) Lookup(code string) (CategoryID, bool) {
	id, ok := h.byCode[code]
	return id, ok
}

// Code returns the code of id, or "" for None and unknown ids
func (h *Hierarchy) Code(id CategoryID) string {
	if !h.Valid(id) {
		return ""
	}
	return h.cats[id].Code
}

// Children returns the direct children of id in insertion order
func (h *Hierarchy) Children(id CategoryID) []CategoryID {
	if !h.Valid(id) {
		return nil
	}
	return slices.Clone(h.children[id])
}

// Roots returns the categories without a parent
func (h *Hierarchy) Roots() []CategoryID {
	var roots []CategoryID
	for i, c := range h.cats {
		if c.Parent == None {
			roots = append(roots, CategoryID(i))
		}
	}
	return roots
}

// Ancestors walks from the parent of id up to its root
func (h *Hierarchy) Ancestors(id CategoryID) []CategoryID {
	var out []CategoryID
	if !h.Valid(id) {
		return out
	}
	for p := h.cats[id].Parent; p != None; p = h.cats[p].Parent {
		out = append(out, p)
	}
	return out
}

// IsSelectable reports whether id is a leaf and may be assigned to tokens
func (h *Hierarchy) IsSelectable(id CategoryID) bool {
	return h.Valid(id) && len(h.children[id]) == 0
}

// Codes returns all category codes sorted
func (h *Hierarchy) Codes() []string {
	codes := make([]string, len(h.cats))
	for i, c := range h.cats {
		codes[i] = c.Code
	}
	slices.Sort(codes)
	return codes
}

// All returns the categories in table order; parents always precede children
func (h *Hierarchy) All() []Category {
	return slices.Clone(h.cats)
}
