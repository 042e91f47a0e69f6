package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Lookup runs query through s and, when e is set, appends the first chunk of
// the top result's page text. Failures are logged and yield whatever was
// gathered so far.
func Lookup(ctx context.Context, s Searcher, e Extractor, query string, n int) string {
	results, err := s.Search(ctx, query, n)
	if err != nil {
		slog.Warn("search: web search failed", "err", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "- %s (%s): %s\n", r.Name, r.URL, r.Snippet)
	}
	if e != nil && results[0].URL != "" {
		chunks, err := e.Extract(ctx, results[0].URL)
		if err != nil {
			slog.Warn("search: page extraction failed", "url", results[0].URL, "err", err)
		} else if len(chunks) > 0 {
			fmt.Fprintf(&b, "Top page text: %s\n", chunks[0])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
