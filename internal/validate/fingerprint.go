package validate

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/pbaille/codebook/internal/domain"
)

// Fingerprint hashes exactly the fields Diff compares, so two projects with
// equal fingerprints have no discrepancy. It is a cheap way to tell whether a
// stored copy changed without loading both sides.
func Fingerprint(p *domain.Project) string {
	h := blake3.New()
	for _, code := range p.Categories.Codes() {
		writeField(h, "c", code)
	}
	for _, iv := range p.SortedInterviews() {
		writeField(h, "i", iv.Participant, iv.Index, len(iv.Paragraphs))
		for _, par := range iv.Paragraphs {
			writeField(h, "p", par.Len())
			for _, id := range par.Order() {
				tok := par.Token(id)
				writeField(h, "t", tok.Text, tok.First, tok.Last, p.Categories.Code(tok.Category))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes length-prefixed values so adjacent fields cannot collide
func writeField(w io.Writer, tag string, values ...any) {
	fmt.Fprint(w, tag)
	for _, v := range values {
		s := fmt.Sprint(v)
		fmt.Fprintf(w, "|%d:%s", len(s), s)
	}
	fmt.Fprint(w, "\n")
}
