package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultChunkRunes is the default size of an extracted text chunk.
const DefaultChunkRunes = 2000

const maxPageBytes = 2 << 20

// Extractor fetches a page and returns its visible text in chunks.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) ([]string, error)
}

// HTMLExtractor fetches pages over HTTP and extracts visible text.
type HTMLExtractor struct {
	client     *http.Client
	chunkRunes int
}

// NewHTMLExtractor creates an extractor. chunkRunes <= 0 uses
// DefaultChunkRunes; timeout 0 uses 10 s.
func NewHTMLExtractor(chunkRunes int, timeout time.Duration) *HTMLExtractor {
	if chunkRunes <= 0 {
		chunkRunes = DefaultChunkRunes
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &HTMLExtractor{client: &http.Client{Timeout: timeout}, chunkRunes: chunkRunes}
}

// Extract returns the page's visible text split into chunks.
func (e *HTMLExtractor) Extract(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("search extract: create request: %w", err)
	}
	req.Header.Set("User-Agent", "kioku/1.0 (+https://github.com/bdobrica/kioku)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search extract: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search extract: fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	text, err := VisibleText(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("search extract: parse %s: %w", pageURL, err)
	}
	return Chunk(text, e.chunkRunes), nil
}

var hiddenElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Noscript: true,
	atom.Template: true,
}

// VisibleText parses an HTML document and returns its visible text nodes
// joined by single spaces.
func VisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hiddenElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(parts, " "), nil
}

// Chunk splits s into pieces of at most size runes.
func Chunk(s string, size int) []string {
	if s == "" || size <= 0 {
		return nil
	}
	runes := []rune(s)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

var _ Extractor = (*HTMLExtractor)(nil)
