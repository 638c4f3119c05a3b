package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/logging"
)

//go:embed schema.sql
var schema string

// Store keeps one project in a SQLite database
type Store struct {
	db   *sql.DB
	path string
}

// New opens the database at dbPath and creates the schema if needed
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, &domain.PersistenceError{Op: "open", Path: dbPath, Err: fmt.Errorf("open database: %w", err)}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &domain.PersistenceError{Op: "open", Path: dbPath, Err: fmt.Errorf("init schema: %w", err)}
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database, shared with the project lock
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// HasProject reports whether a project was saved
func (s *Store) HasProject() (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM project").Scan(&n); err != nil {
		return false, s.fail("load", fmt.Errorf("count project: %w", err))
	}
	return n > 0, nil
}

// Save replaces the stored project with p in a single transaction
func (s *Store) Save(p *domain.Project) error {
	start := time.Now()
	err := s.save(p)
	logging.Persistence("save", s.path, time.Since(start), err)
	return err
}

func (s *Store) save(p *domain.Project) error {
	tx, err := s.db.Begin()
	if err != nil {
		return s.fail("save", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	for _, table := range []string{"tokens", "interviews", "categories", "project"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return s.fail("save", fmt.Errorf("clear %s: %w", table, err))
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO project (id, name, created_at) VALUES (?, ?, ?)",
		p.ID, p.Name, p.CreatedAt,
	); err != nil {
		return s.fail("save", fmt.Errorf("insert project: %w", err))
	}

	h := p.Categories
	for i, c := range h.All() {
		var parent *string
		if c.Parent != domain.None {
			code := h.Code(c.Parent)
			parent = &code
		}
		if _, err := tx.Exec(
			"INSERT INTO categories (code, name, parent_code, position) VALUES (?, ?, ?, ?)",
			c.Code, c.Name, parent, i,
		); err != nil {
			return s.fail("save", fmt.Errorf("insert category %s: %w", c.Code, err))
		}
	}

	insertToken, err := tx.Prepare(
		"INSERT INTO tokens (interview_id, paragraph, position, text, category_code, is_first, is_last) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return s.fail("save", fmt.Errorf("prepare token insert: %w", err))
	}
	defer insertToken.Close()

	for _, iv := range p.Interviews {
		if _, err := tx.Exec(
			"INSERT INTO interviews (id, participant, idx, created_at) VALUES (?, ?, ?, ?)",
			iv.ID, iv.Participant, iv.Index, iv.CreatedAt,
		); err != nil {
			return s.fail("save", fmt.Errorf("insert interview %s: %w", iv.Key(), err))
		}

		for n, par := range iv.Paragraphs {
			for pos, id := range par.Order() {
				tok := par.Token(id)
				var code *string
				if tok.Category != domain.None {
					c := h.Code(tok.Category)
					code = &c
				}
				if _, err := insertToken.Exec(iv.ID, n, pos, tok.Text, code, tok.First, tok.Last); err != nil {
					return s.fail("save", fmt.Errorf("insert token %s/%d/%d: %w", iv.Key(), n, pos, err))
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return s.fail("save", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Load rebuilds the stored project. It fails with a NotFoundError when the
// database holds no project and with a PersistenceError when the stored
// labeling is not well-formed.
func (s *Store) Load() (*domain.Project, error) {
	start := time.Now()
	p, err := s.load()
	logging.Persistence("load", s.path, time.Since(start), err)
	return p, err
}

func (s *Store) load() (*domain.Project, error) {
	p := domain.NewProject("", nil)
	err := s.db.QueryRow("SELECT id, name, created_at FROM project").Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Resource: "project", ID: s.path}
	}
	if err != nil {
		return nil, s.fail("load", fmt.Errorf("get project: %w", err))
	}

	if err := s.loadCategories(p.Categories); err != nil {
		return nil, err
	}
	if err := s.loadInterviews(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) loadCategories(h *domain.Hierarchy) error {
	rows, err := s.db.Query("SELECT code, name, parent_code FROM categories ORDER BY position")
	if err != nil {
		return s.fail("load", fmt.Errorf("list categories: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var code, name string
		var parent sql.NullString
		if err := rows.Scan(&code, &name, &parent); err != nil {
			return s.fail("load", fmt.Errorf("scan category: %w", err))
		}
		if _, err := h.Add(code, name, parent.String); err != nil {
			return s.fail("load", fmt.Errorf("rebuild category %s: %w", code, err))
		}
	}
	if err := rows.Err(); err != nil {
		return s.fail("load", fmt.Errorf("list categories: %w", err))
	}
	return nil
}

func (s *Store) loadInterviews(p *domain.Project) error {
	rows, err := s.db.Query("SELECT id, participant, idx, created_at FROM interviews ORDER BY participant, idx")
	if err != nil {
		return s.fail("load", fmt.Errorf("list interviews: %w", err))
	}
	defer rows.Close()

	byID := make(map[string]*domain.Interview)
	for rows.Next() {
		iv := &domain.Interview{}
		if err := rows.Scan(&iv.ID, &iv.Participant, &iv.Index, &iv.CreatedAt); err != nil {
			return s.fail("load", fmt.Errorf("scan interview: %w", err))
		}
		p.Interviews = append(p.Interviews, iv)
		byID[iv.ID] = iv
	}
	if err := rows.Err(); err != nil {
		return s.fail("load", fmt.Errorf("list interviews: %w", err))
	}

	tokens, err := s.db.Query(`
		SELECT interview_id, paragraph, text, category_code, is_first, is_last
		FROM tokens
		ORDER BY interview_id, paragraph, position
	`)
	if err != nil {
		return s.fail("load", fmt.Errorf("list tokens: %w", err))
	}
	defer tokens.Close()

	for tokens.Next() {
		var ivID, text string
		var n int
		var code sql.NullString
		var tok domain.Token
		if err := tokens.Scan(&ivID, &n, &text, &code, &tok.First, &tok.Last); err != nil {
			return s.fail("load", fmt.Errorf("scan token: %w", err))
		}

		iv, ok := byID[ivID]
		if !ok {
			return s.fail("load", fmt.Errorf("token of unknown interview %s", ivID))
		}
		// paragraphs arrive in order, so a new index can only extend the list
		for len(iv.Paragraphs) <= n {
			iv.Paragraphs = append(iv.Paragraphs, domain.NewParagraph(nil))
		}

		tok.Text = text
		tok.Category = domain.None
		if code.Valid {
			cat, ok := p.Categories.Lookup(code.String)
			if !ok {
				return s.fail("load", fmt.Errorf("token of interview %s uses unknown category %s", iv.Key(), code.String))
			}
			tok.Category = cat
		}
		iv.Paragraphs[n].Append(tok)
	}
	if err := tokens.Err(); err != nil {
		return s.fail("load", fmt.Errorf("list tokens: %w", err))
	}

	for _, iv := range p.Interviews {
		for n, par := range iv.Paragraphs {
			if err := par.Check(); err != nil {
				return s.fail("load", fmt.Errorf("interview %s paragraph %d: %w", iv.Key(), n, err))
			}
		}
	}
	return nil
}

func (s *Store) fail(op string, err error) error {
	return &domain.PersistenceError{Op: op, Path: s.path, Err: err}
}
