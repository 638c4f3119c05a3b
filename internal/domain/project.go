package domain

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InterviewKey identifies an interview inside a project
type InterviewKey struct {
	Participant string `json:"participant"`
	Index       int    `json:"index"`
}

func (k InterviewKey) String() string {
	return fmt.Sprintf("%s#%d", k.Participant, k.Index)
}

// Compare orders keys by participant, then index
func (k InterviewKey) Compare(o InterviewKey) int {
	if c := strings.Compare(k.Participant, o.Participant); c != 0 {
		return c
	}
	return cmp.Compare(k.Index, o.Index)
}

// Interview is one transcript of a participant
type Interview struct {
	ID          string
	Participant string
	Index       int // 1-based, unique among the participant's interviews
	Paragraphs  []*Paragraph
	CreatedAt   time.Time
}

// Key returns the (participant, index) pair of the interview
func (iv *Interview) Key() InterviewKey {
	return InterviewKey{Participant: iv.Participant, Index: iv.Index}
}

// TokenCount returns the number of tokens over all paragraphs
func (iv *Interview) TokenCount() int {
	n := 0
	for _, p := range iv.Paragraphs {
		n += p.Len()
	}
	return n
}

// Project owns a category hierarchy and the interviews tagged with it.
// Its methods are not synchronized: run mutations inside Update and
// read-only work inside View.
type Project struct {
	ID         string
	Name       string
	Categories *Hierarchy
	Interviews []*Interview
	CreatedAt  time.Time

	mu sync.RWMutex
}

// NewProject creates an empty project using h (an empty hierarchy when nil)
func NewProject(name string, h *Hierarchy) *Project {
	if h == nil {
		h = NewHierarchy()
	}
	return &Project{
		ID:         uuid.New().String(),
		Name:       CleanText(name),
		Categories: h,
		CreatedAt:  time.Now().UTC(),
	}
}

// Update runs fn while holding the project's exclusive lock
func (p *Project) Update(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn()
}

// View runs fn while holding the project's shared lock
func (p *Project) View(fn func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn()
}

var paragraphBreak = regexp.MustCompile(`\n[ \t\f\v]*\n`)

// CleanText makes s storable in every project format: invalid UTF-8 bytes
// become U+FFFD and runes outside the XML character range are dropped.
func CleanText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}

// SplitTranscript breaks text into paragraphs on blank lines and paragraphs
// into words on whitespace. Empty paragraphs are dropped. The text goes
// through CleanText first.
func SplitTranscript(text string) [][]string {
	text = strings.ReplaceAll(CleanText(text), "\r\n", "\n")
	var out [][]string
	for _, block := range paragraphBreak.Split(text, -1) {
		if words := strings.Fields(block); len(words) > 0 {
			out = append(out, words)
		}
	}
	return out
}

// AddInterview appends an untagged interview for participant built from text.
// It receives the next free index of that participant.
func (p *Project) AddInterview(participant, text string) (*Interview, error) {
	participant = strings.TrimSpace(CleanText(participant))
	if participant == "" {
		return nil, &ValidationError{Field: "participant", Message: "participant id is required"}
	}

	iv := &Interview{
		ID:          uuid.New().String(),
		Participant: participant,
		Index:       len(p.InterviewsOf(participant)) + 1,
		CreatedAt:   time.Now().UTC(),
	}
	for _, words := range SplitTranscript(text) {
		iv.Paragraphs = append(iv.Paragraphs, NewParagraph(words))
	}
	p.Interviews = append(p.Interviews, iv)
	return iv, nil
}

// InterviewsOf returns the participant's interviews ordered by index
func (p *Project) InterviewsOf(participant string) []*Interview {
	var out []*Interview
	for _, iv := range p.Interviews {
		if iv.Participant == participant {
			out = append(out, iv)
		}
	}
	slices.SortFunc(out, func(a, b *Interview) int { return cmp.Compare(a.Index, b.Index) })
	return out
}

// Interview finds an interview by participant and index
func (p *Project) Interview(key InterviewKey) (*Interview, error) {
	for _, iv := range p.Interviews {
		if iv.Key() == key {
			return iv, nil
		}
	}
	return nil, &NotFoundError{Resource: "interview", ID: key.String()}
}

// DeleteInterview removes an interview and shifts the participant's later
// interviews down so indices stay 1..N
func (p *Project) DeleteInterview(key InterviewKey) error {
	at := slices.IndexFunc(p.Interviews, func(iv *Interview) bool { return iv.Key() == key })
	if at < 0 {
		return &NotFoundError{Resource: "interview", ID: key.String()}
	}
	p.Interviews = slices.Delete(p.Interviews, at, at+1)

	for _, iv := range p.Interviews {
		if iv.Participant == key.Participant && iv.Index > key.Index {
			iv.Index--
		}
	}
	return nil
}

// SortedInterviews returns the interviews ordered by (participant, index)
func (p *Project) SortedInterviews() []*Interview {
	out := slices.Clone(p.Interviews)
	slices.SortFunc(out, func(a, b *Interview) int { return a.Key().Compare(b.Key()) })
	return out
}
