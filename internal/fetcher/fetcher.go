package fetcher

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Fetch retrieves an HTML transcript and returns its text with one blank
// line between paragraphs
func Fetch(rawURL string) (string, error) {
	// Validate URL
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "codebook/1.0 (transcript import)")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read body with size limit (5MB)
	return fromHTML(io.LimitReader(resp.Body, 5*1024*1024), resp.Header.Get("Content-Type"))
}

// DecodeText converts plain transcript bytes to UTF-8. A charset named in
// contentType or a byte order mark wins; otherwise valid UTF-8 is kept as is
// and anything else is read as windows-1252, a superset of Latin-1.
func DecodeText(data []byte, contentType string) (string, error) {
	enc, name, certain := charset.DetermineEncoding(data, contentType)
	if !certain {
		if utf8.Valid(data) {
			return string(data), nil
		}
		enc, name = charset.Lookup("windows-1252")
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s text: %w", name, err)
	}
	return string(out), nil
}

// IsURL checks if a string looks like a URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

// Tags to skip (non-content)
var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true, "head": true,
}

// Tags that end a paragraph
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "dd": true, "dt": true, "section": true, "article": true,
}

// FromHTML extracts readable text from an HTML document. Each block element
// becomes its own paragraph; a <br> only breaks the line. The document is
// decoded from the charset its meta tags declare.
func FromHTML(r io.Reader) (string, error) {
	return fromHTML(r, "text/html")
}

func fromHTML(r io.Reader, contentType string) (string, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	doc, err := html.Parse(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var paragraphs []string
	var current strings.Builder
	flush := func() {
		if text := strings.Join(strings.Fields(current.String()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
		current.Reset()
	}

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			current.WriteString(n.Data)
			current.WriteString(" ")
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			flush()
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}

		if n.Type == html.ElementNode && blockTags[n.Data] {
			flush()
		}
	}

	extract(doc)
	flush()

	if len(paragraphs) == 0 {
		return "", fmt.Errorf("no text content found")
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
