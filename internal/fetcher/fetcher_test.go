package fetcher

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const transcript = `<html>
<head><title>Interview</title><style>p { color: red }</style></head>
<body>
<nav>home | about</nav>
<h1>Interview with P01</h1>
<p>I moved here <em>three</em> years ago.</p>
<div>It was <b>hard</b> at first<br>but it got better.</div>
<script>track()</script>
<ul><li>first point</li><li>second   point</li></ul>
</body>
</html>`

func TestFromHTML(t *testing.T) {
	got, err := FromHTML(strings.NewReader(transcript))
	if err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"Interview with P01",
		"I moved here three years ago.",
		"It was hard at first but it got better.",
		"first point",
		"second point",
	}, "\n\n")
	if got != want {
		t.Errorf("FromHTML =\n%q\nwant\n%q", got, want)
	}
}

func TestFromHTML_Empty(t *testing.T) {
	if _, err := FromHTML(strings.NewReader("<html><script>x()</script></html>")); err == nil {
		t.Error("expected error for document without text")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/p01" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(transcript))
	}))
	defer srv.Close()

	text, err := Fetch(srv.URL + "/p01")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.HasPrefix(text, "Interview with P01\n\n") {
		t.Errorf("unexpected text %q", text)
	}

	if _, err := Fetch(srv.URL + "/missing"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Fetch missing page error = %v, want HTTP 404", err)
	}
}

func TestFetch_RejectsScheme(t *testing.T) {
	if _, err := Fetch("ftp://example.com/t.html"); err == nil {
		t.Error("expected unsupported scheme error")
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com", true},
		{" http://x", true},
		{"www.example.com", true},
		{"transcript.html", false},
	}
	for _, tt := range tests {
		if got := IsURL(tt.in); got != tt.want {
			t.Errorf("IsURL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		contentType string
		want        string
	}{
		{"utf-8 kept", "café ok", "", "café ok"},
		{"latin-1 without charset", "caf\xe9 ok", "", "café ok"},
		{"declared charset", "caf\xe9", "text/plain; charset=iso-8859-1", "café"},
		{"windows-1252 quotes", "\x93hi\x94", "", "“hi”"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText([]byte(tt.data), tt.contentType)
			if err != nil {
				t.Fatalf("DecodeText failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromHTML_DeclaredCharset(t *testing.T) {
	doc := "<html><head><meta charset=\"iso-8859-1\"></head><body><p>caf\xe9 cr\xe8me</p></body></html>"
	got, err := FromHTML(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if got != "café crème" {
		t.Errorf("FromHTML = %q, want %q", got, "café crème")
	}
}

func TestFetch_HeaderCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		w.Write([]byte("<p>d\xe9j\xe0 vu</p>"))
	}))
	defer srv.Close()

	text, err := Fetch(srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if text != "déjà vu" {
		t.Errorf("Fetch = %q, want %q", text, "déjà vu")
	}
}
