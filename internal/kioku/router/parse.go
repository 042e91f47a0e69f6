package router

import "strings"

const (
	toolsHeader = "Tools:"
	terminator  = "ready[]"
)

// Parse reads the tool list from classifier output. It uses the last
// "Tools:" section and reads one call per line up to ready[]. Any deviation
// (unknown tool, missing brackets, missing terminator) yields nil; a
// well-formed section with no calls yields an empty non-nil slice. Order and
// duplicates are preserved.
func Parse(output string) []Request {
	i := strings.LastIndex(output, toolsHeader)
	if i < 0 {
		return nil
	}
	section := output[i+len(toolsHeader):]

	reqs := []Request{}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == terminator {
			return reqs
		}
		req, ok := parseCall(line)
		if !ok {
			return nil
		}
		reqs = append(reqs, req)
	}
	return nil
}

// parseCall parses `name[param]`, where param may be quoted.
func parseCall(line string) (Request, bool) {
	open := strings.IndexByte(line, '[')
	if open <= 0 || !strings.HasSuffix(line, "]") {
		return Request{}, false
	}
	kind := Kind(strings.TrimSpace(line[:open]))
	if !kind.valid() {
		return Request{}, false
	}
	param := strings.TrimSpace(line[open+1 : len(line)-1])
	if strings.ContainsAny(param, "[]") {
		return Request{}, false
	}
	param = unquote(param)
	if !kind.takesQuery() {
		param = ""
	}
	return Request{Kind: kind, Query: param}, true
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
