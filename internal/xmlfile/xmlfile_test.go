package xmlfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/labeling"
	"github.com/pbaille/codebook/internal/validate"
)

func tagged(t *testing.T) *domain.Project {
	t.Helper()
	h := domain.NewHierarchy()
	for _, c := range [][2]string{{"EMO", ""}, {"JOY", "EMO"}, {"FEAR", "EMO"}, {"PLACE", ""}} {
		if _, err := h.Add(c[0], strings.ToLower(c[0])+" & co", c[1]); err != nil {
			t.Fatal(err)
		}
	}
	p := domain.NewProject("xml <study>", h)

	iv, err := p.AddInterview("P01", "we moved to the city in spring\n\nit felt \"strange\" & new")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddInterview("P02", "short one"); err != nil {
		t.Fatal(err)
	}

	assign := func(n int, code string, positions ...int) {
		par := iv.Paragraphs[n]
		ids, err := par.Handles(positions)
		if err != nil {
			t.Fatal(err)
		}
		cat, _ := h.Lookup(code)
		if err := labeling.Assign(par, ids, cat); err != nil {
			t.Fatal(err)
		}
	}
	assign(0, "JOY", 0, 1, 2, 3, 4)
	assign(0, "PLACE", 3, 4)
	assign(1, "FEAR", 0, 1, 2, 4)
	return p
}

func TestEncodeDecode(t *testing.T) {
	want := tagged(t)

	var buf bytes.Buffer
	if err := Encode(&buf, want); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "<?xml") {
		t.Errorf("missing XML declaration:\n%s", buf.String())
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d := validate.Diff(want, got); d != "" {
		t.Errorf("round trip differs: %s", d)
	}
	if got.Name != want.Name || got.ID != want.ID {
		t.Errorf("project = %q/%q, want %q/%q", got.ID, got.Name, want.ID, want.Name)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("created = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestSaveLoad(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"plain", "project.xml"},
		{"compressed", "project.xml.xz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tagged(t)
			path := filepath.Join(t.TempDir(), tt.file)
			if err := Save(path, want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if d := validate.Diff(want, got); d != "" {
				t.Errorf("round trip differs: %s", d)
			}
		})
	}
}

func TestSave_CompressesXZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.xz")
	if err := Save(path, tagged(t)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// xz stream magic
	if !bytes.HasPrefix(data, []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}) {
		t.Errorf("file does not start with xz magic: % x", data[:min(6, len(data))])
	}
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "<project><unclosed></project>"},
		{"wrong root", `<book/>`},
		{"unknown category", `<project id="x" name="x">
			<interviews><interview participant="P01" index="1">
			<paragraph><token category="NOPE" first="true" last="true">hi</token></paragraph>
			</interview></interviews></project>`},
		{"bad index", `<project id="x" name="x">
			<interviews><interview participant="P01" index="zero"></interview></interviews></project>`},
		{"malformed labeling", `<project id="x" name="x">
			<categories><category code="A" name="a"/></categories>
			<interviews><interview participant="P01" index="1">
			<paragraph><token category="A" first="true">open</token><token>never</token></paragraph>
			</interview></interviews></project>`},
		{"orphan parent", `<project id="x" name="x">
			<categories><category code="A" name="a" parent="B"/></categories></project>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.xml")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !errors.Is(err, domain.ErrPersistence) {
				t.Errorf("Load error = %v, want ErrPersistence", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.xml"))
	if !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load error = %v, want ErrPersistence wrapping ErrNotExist", err)
	}
}

func TestSaveLoad_UncleanInput(t *testing.T) {
	h := domain.NewHierarchy()
	if _, err := h.Add("JOY", "joy\x07", ""); err != nil {
		t.Fatal(err)
	}
	want := domain.NewProject("study\x01", h)
	iv, err := want.AddInterview("P01\x00", "caf\xe9 ok bell\x07 \x01 \ufffe")
	if err != nil {
		t.Fatal(err)
	}
	if got := iv.Paragraphs[0].Text(); got != "caf\ufffd ok bell" {
		t.Fatalf("stored text = %q", got)
	}

	path := filepath.Join(t.TempDir(), "unclean.xml")
	if err := Save(path, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if d := validate.Diff(want, got); d != "" {
		t.Errorf("round trip differs: %s", d)
	}
	if validate.Fingerprint(want) != validate.Fingerprint(got) {
		t.Error("fingerprints differ after round trip")
	}
}
