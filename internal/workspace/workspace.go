// Package workspace ties a project to its database: it loads the project,
// runs mutations under the project lock and writes every successful mutation
// back. The CLI and the HTTP server both go through it.
package workspace

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/labeling"
	"github.com/pbaille/codebook/internal/lock"
	"github.com/pbaille/codebook/internal/logging"
	"github.com/pbaille/codebook/internal/store"
	"github.com/pbaille/codebook/internal/validate"
)

// Store is the persistence a workspace needs
type Store interface {
	Path() string
	HasProject() (bool, error)
	Save(p *domain.Project) error
	Load() (*domain.Project, error)
}

var _ Store = (*store.Store)(nil)

// lockRetry is the polling interval while another writer holds the lock
const lockRetry = 50 * time.Millisecond

// Workspace owns the in-memory copy of a stored project
type Workspace struct {
	store  Store
	locker lock.Locker

	mu          sync.Mutex
	project     *domain.Project
	fingerprint string
}

// Init stores a new empty project with categories h. It refuses to overwrite
// an existing project.
func Init(ctx context.Context, s Store, l lock.Locker, name string, h *domain.Hierarchy) (*Workspace, error) {
	return Import(ctx, s, l, domain.NewProject(name, h), false)
}

// Import stores p under the project lock. An existing project is only
// replaced when overwrite is set.
func Import(ctx context.Context, s Store, l lock.Locker, p *domain.Project, overwrite bool) (*Workspace, error) {
	lease, err := lock.Acquire(ctx, l, s.Path(), lockRetry)
	if err != nil {
		return nil, err
	}
	defer lease.Release(ctx)

	if !overwrite {
		exists, err := s.HasProject()
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &domain.ValidationError{Field: "project", Message: "a project already exists in " + s.Path()}
		}
	}

	if err := s.Save(p); err != nil {
		return nil, err
	}
	return &Workspace{store: s, locker: l, project: p, fingerprint: validate.Fingerprint(p)}, nil
}

// Open loads the stored project
func Open(s Store, l lock.Locker) (*Workspace, error) {
	p, err := s.Load()
	if err != nil {
		return nil, err
	}
	return &Workspace{store: s, locker: l, project: p, fingerprint: validate.Fingerprint(p)}, nil
}

// Project returns the current project. Read it inside Project().View.
func (w *Workspace) Project() *domain.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.project
}

// View runs fn on the current project under its shared lock
func (w *Workspace) View(fn func(p *domain.Project)) {
	p := w.Project()
	p.View(func() { fn(p) })
}

// Update runs fn on the project while holding the project lock and saves the
// result. When another process saved the project since it was last read here,
// the stored copy replaces the in-memory one before fn runs. Nothing is saved
// when fn fails.
func (w *Workspace) Update(ctx context.Context, fn func(p *domain.Project) error) error {
	lease, err := lock.Acquire(ctx, w.locker, w.store.Path(), lockRetry)
	if err != nil {
		return err
	}
	defer lease.Release(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()

	stored, err := w.store.Load()
	if err != nil {
		return err
	}
	if fp := validate.Fingerprint(stored); fp != w.fingerprint {
		logging.Info("project changed on disk, reloading", "path", w.store.Path())
		w.project, w.fingerprint = stored, fp
	}

	p := w.project
	if err := p.Update(func() error { return fn(p) }); err != nil {
		return err
	}
	if err := w.store.Save(p); err != nil {
		// drop the unsaved change
		w.project, w.fingerprint = stored, validate.Fingerprint(stored)
		return err
	}
	w.fingerprint = validate.Fingerprint(p)
	return nil
}

// Selection addresses tokens of one paragraph by chain position
type Selection struct {
	Interview domain.InterviewKey `json:"interview"`
	Paragraph int                 `json:"paragraph"`
	Tokens    []int               `json:"tokens"`
}

// Assign tags the selected tokens with the leaf category code
func (w *Workspace) Assign(ctx context.Context, sel Selection, code string) error {
	return w.Update(ctx, func(p *domain.Project) error {
		cat, ok := p.Categories.Lookup(code)
		if !ok {
			return &domain.NotFoundError{Resource: "category", ID: code}
		}
		if !p.Categories.IsSelectable(cat) {
			return &domain.ValidationError{Field: "category", Message: fmt.Sprintf("%s has subcategories and cannot be assigned", code)}
		}
		return apply(p, sel, cat, code)
	})
}

// Clear removes any category from the selected tokens
func (w *Workspace) Clear(ctx context.Context, sel Selection) error {
	return w.Update(ctx, func(p *domain.Project) error {
		return apply(p, sel, domain.None, "")
	})
}

func apply(p *domain.Project, sel Selection, cat domain.CategoryID, code string) error {
	iv, err := p.Interview(sel.Interview)
	if err != nil {
		return err
	}
	if sel.Paragraph < 0 || sel.Paragraph >= len(iv.Paragraphs) {
		return &domain.NotFoundError{Resource: "paragraph", ID: fmt.Sprintf("%s/%d", sel.Interview, sel.Paragraph)}
	}
	par := iv.Paragraphs[sel.Paragraph]
	ids, err := par.Handles(sel.Tokens)
	if err != nil {
		return err
	}

	err = labeling.Assign(par, ids, cat)
	logging.Assignment(sel.Interview.String(), sel.Paragraph, code, len(ids), err)
	return err
}

// AddInterview splits text into paragraphs and appends it for participant
func (w *Workspace) AddInterview(ctx context.Context, participant, text string) (domain.InterviewKey, error) {
	var key domain.InterviewKey
	err := w.Update(ctx, func(p *domain.Project) error {
		iv, err := p.AddInterview(participant, text)
		if err != nil {
			return err
		}
		key = iv.Key()
		return nil
	})
	return key, err
}

// DeleteInterview removes an interview and renumbers the participant's others
func (w *Workspace) DeleteInterview(ctx context.Context, key domain.InterviewKey) error {
	return w.Update(ctx, func(p *domain.Project) error {
		return p.DeleteInterview(key)
	})
}

// ReplaceCategories installs a new hierarchy, translating tokens through
// mapping (old code to new code) and clearing unmapped ones. With keepCommon,
// old codes without an explicit mapping that name a leaf of next map to
// themselves; they are matched against the hierarchy current at the time of
// the update.
func (w *Workspace) ReplaceCategories(ctx context.Context, next *domain.Hierarchy, mapping map[string]string, keepCommon bool) error {
	return w.Update(ctx, func(p *domain.Project) error {
		m := make(map[string]string, len(mapping))
		maps.Copy(m, mapping)
		if keepCommon {
			for _, code := range p.Categories.Codes() {
				if _, set := m[code]; set {
					continue
				}
				if id, ok := next.Lookup(code); ok && next.IsSelectable(id) {
					m[code] = code
				}
			}
		}
		return labeling.ReplaceCategories(p, next, m)
	})
}
