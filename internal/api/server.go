package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/codebook/internal/codebook"
	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/fetcher"
	"github.com/pbaille/codebook/internal/lock"
	"github.com/pbaille/codebook/internal/logging"
	"github.com/pbaille/codebook/internal/ods"
	"github.com/pbaille/codebook/internal/report"
	"github.com/pbaille/codebook/internal/workspace"
	"github.com/pbaille/codebook/internal/xmlfile"
)

// Server handles HTTP requests for the codebook API
type Server struct {
	ws   *workspace.Workspace
	addr string
}

// New creates a new API server
func New(ws *workspace.Workspace, addr string) *Server {
	return &Server{ws: ws, addr: addr}
}

// Handler returns the routed handler with CORS and request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Categories
	mux.HandleFunc("GET /categories", s.listCategories)
	mux.HandleFunc("PUT /categories", s.replaceCategories)

	// Interviews
	mux.HandleFunc("GET /interviews", s.listInterviews)
	mux.HandleFunc("POST /interviews", s.addInterview)
	mux.HandleFunc("GET /interviews/{participant}/{index}", s.getInterview)
	mux.HandleFunc("DELETE /interviews/{participant}/{index}", s.deleteInterview)

	// Labeling
	mux.HandleFunc("POST /assign", s.assign)
	mux.HandleFunc("POST /clear", s.clear)

	// Statistics
	mux.HandleFunc("GET /stats/occurrences", s.occurrences)
	mux.HandleFunc("GET /stats/coverage", s.coverage)
	mux.HandleFunc("GET /stats/patterns", s.patterns)

	mux.HandleFunc("GET /export", s.export)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withLogging(withCORS(mux))
}

// Run starts the HTTP server
func (s *Server) Run() error {
	logging.Info("starting server", "addr", s.addr)
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		logging.HTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CategoryNode represents a category with its children for hierarchical display
type CategoryNode struct {
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Selectable bool           `json:"selectable"`
	Children   []CategoryNode `json:"children,omitempty"`
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	var tree []CategoryNode
	var flat []domain.Category
	s.ws.View(func(p *domain.Project) {
		h := p.Categories
		var buildNode func(id domain.CategoryID) CategoryNode
		buildNode = func(id domain.CategoryID) CategoryNode {
			c, _ := h.Get(id)
			node := CategoryNode{Code: c.Code, Name: c.Name, Selectable: h.IsSelectable(id)}
			for _, child := range h.Children(id) {
				node.Children = append(node.Children, buildNode(child))
			}
			return node
		}
		for _, root := range h.Roots() {
			tree = append(tree, buildNode(root))
		}
		flat = h.All()
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": tree,
		"flat":       flat,
	})
}

// ReplaceCategoriesRequest installs a new codebook. Mapping translates old
// codes to new ones and Keep maps codes present in both to themselves; tokens
// of unmapped categories are cleared.
type ReplaceCategoriesRequest struct {
	Codebook string            `json:"codebook"`
	Mapping  map[string]string `json:"mapping,omitempty"`
	Keep     bool              `json:"keep,omitempty"`
}

func (s *Server) replaceCategories(w http.ResponseWriter, r *http.Request) {
	var req ReplaceCategoriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	next, err := codebook.ParseString("request", req.Codebook)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.ws.ReplaceCategories(r.Context(), next, req.Mapping, req.Keep); err != nil {
		writeDomainError(w, err)
		return
	}
	s.listCategories(w, r)
}

// InterviewSummary is one entry of the interview list
type InterviewSummary struct {
	Participant string `json:"participant"`
	Index       int    `json:"index"`
	Paragraphs  int    `json:"paragraphs"`
	Tokens      int    `json:"tokens"`
}

func (s *Server) listInterviews(w http.ResponseWriter, r *http.Request) {
	var out []InterviewSummary
	s.ws.View(func(p *domain.Project) {
		for _, iv := range p.SortedInterviews() {
			out = append(out, InterviewSummary{
				Participant: iv.Participant,
				Index:       iv.Index,
				Paragraphs:  len(iv.Paragraphs),
				Tokens:      iv.TokenCount(),
			})
		}
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interviews": out,
	})
}

// AddInterviewRequest is the request body for adding an interview. Text takes
// precedence over URL.
type AddInterviewRequest struct {
	Participant string `json:"participant"`
	Text        string `json:"text,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (s *Server) addInterview(w http.ResponseWriter, r *http.Request) {
	var req AddInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := req.Text
	if strings.TrimSpace(text) == "" {
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "text or url is required")
			return
		}
		fetched, err := fetcher.Fetch(req.URL)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		text = fetched
	}

	key, err := s.ws.AddInterview(r.Context(), req.Participant, text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

// TokenView is a token as served to clients
type TokenView struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	First    bool   `json:"first,omitempty"`
	Last     bool   `json:"last,omitempty"`
}

// InterviewView is an interview with its labeled paragraphs
type InterviewView struct {
	ID          string        `json:"id"`
	Participant string        `json:"participant"`
	Index       int           `json:"index"`
	CreatedAt   time.Time     `json:"created_at"`
	Paragraphs  [][]TokenView `json:"paragraphs"`
}

func (s *Server) getInterview(w http.ResponseWriter, r *http.Request) {
	key, ok := interviewKey(w, r)
	if !ok {
		return
	}

	var view InterviewView
	var err error
	s.ws.View(func(p *domain.Project) {
		var iv *domain.Interview
		if iv, err = p.Interview(key); err != nil {
			return
		}
		view = InterviewView{ID: iv.ID, Participant: iv.Participant, Index: iv.Index, CreatedAt: iv.CreatedAt}
		for _, par := range iv.Paragraphs {
			tokens := make([]TokenView, 0, par.Len())
			for _, id := range par.Order() {
				tok := par.Token(id)
				tokens = append(tokens, TokenView{
					Text:     tok.Text,
					Category: p.Categories.Code(tok.Category),
					First:    tok.First,
					Last:     tok.Last,
				})
			}
			view.Paragraphs = append(view.Paragraphs, tokens)
		}
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) deleteInterview(w http.ResponseWriter, r *http.Request) {
	key, ok := interviewKey(w, r)
	if !ok {
		return
	}
	if err := s.ws.DeleteInterview(r.Context(), key); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func interviewKey(w http.ResponseWriter, r *http.Request) (domain.InterviewKey, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 1 {
		writeError(w, http.StatusBadRequest, "index must be a positive integer")
		return domain.InterviewKey{}, false
	}
	return domain.InterviewKey{Participant: r.PathValue("participant"), Index: index}, true
}

// AssignRequest tags the selected tokens. Category is ignored by /clear.
type AssignRequest struct {
	workspace.Selection
	Category string `json:"category,omitempty"`
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	if err := s.ws.Assign(r.Context(), req.Selection, req.Category); err != nil {
		writeDomainError(w, err)
		return
	}
	r.SetPathValue("participant", req.Interview.Participant)
	r.SetPathValue("index", strconv.Itoa(req.Interview.Index))
	s.getInterview(w, r)
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.ws.Clear(r.Context(), req.Selection); err != nil {
		writeDomainError(w, err)
		return
	}
	r.SetPathValue("participant", req.Interview.Participant)
	r.SetPathValue("index", strconv.Itoa(req.Interview.Index))
	s.getInterview(w, r)
}

// TableView is a statistics table as served to clients
type TableView struct {
	Name   string   `json:"name"`
	Header []string `json:"header"`
	Rows   [][]any  `json:"rows"`
}

func (s *Server) occurrences(w http.ResponseWriter, r *http.Request) {
	var t ods.Table
	s.ws.View(func(p *domain.Project) {
		t = report.Occurrences(p.Categories, p.SortedInterviews())
	})
	writeTable(w, r, t)
}

func (s *Server) coverage(w http.ResponseWriter, r *http.Request) {
	var t ods.Table
	s.ws.View(func(p *domain.Project) {
		t = report.Coverage(p.SortedInterviews())
	})
	writeTable(w, r, t)
}

func (s *Server) patterns(w http.ResponseWriter, r *http.Request) {
	minLen, maxLen := 2, 3
	if v := r.URL.Query().Get("min"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			minLen = n
		}
	}
	if v := r.URL.Query().Get("max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxLen = n
		}
	}

	var t ods.Table
	var err error
	s.ws.View(func(p *domain.Project) {
		t, err = report.Patterns(p.Categories, p.SortedInterviews(), minLen, maxLen)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeTable(w, r, t)
}

// writeTable answers with JSON, or with a spreadsheet for ?format=ods
func writeTable(w http.ResponseWriter, r *http.Request, t ods.Table) {
	if r.URL.Query().Get("format") == "ods" {
		var buf bytes.Buffer
		if err := ods.Write(&buf, t); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.oasis.opendocument.spreadsheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.Name+".ods"))
		w.Write(buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, TableView{Name: t.Name, Header: t.Header, Rows: t.Rows})
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	var err error
	s.ws.View(func(p *domain.Project) {
		err = xmlfile.Encode(&buf, p)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain errors to HTTP status codes
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSelection):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrPrecondition):
		status = http.StatusBadRequest
	case errors.Is(err, lock.ErrHeld):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}
