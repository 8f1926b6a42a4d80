package structured

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
)

var ErrNoJSON = errors.New("NO_JSON_IN_OUTPUT")

// ParseError means the raw output held no parseable JSON document.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return "parse: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

var codeFenceRegex = regexp.MustCompile("```(?:json|JSON)?\\s*([\\s\\S]*?)```")

// ExtractJSON locates the JSON document in raw model output. A fenced block
// is preferred; otherwise the longest top-level balanced {...} or [...] span
// is used, so bracketed prose such as "[1]" before the payload is skipped.
// The returned text is valid JSON.
func ExtractJSON(raw string) (string, error) {
	found := candidates(raw)
	if len(found) == 0 {
		return "", &ParseError{Raw: raw, Err: ErrNoJSON}
	}
	return found[0], nil
}

// candidates returns every JSON document in raw, most likely first: fenced
// blocks in order, then the whole text, then top-level spans longest first.
func candidates(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	var found []string
	if strings.Contains(s, "```") {
		for _, m := range codeFenceRegex.FindAllStringSubmatch(s, -1) {
			candidate := strings.TrimSpace(m[1])
			if isContainer(candidate) && json.Valid([]byte(candidate)) {
				found = append(found, candidate)
			}
		}
	}

	if isContainer(s) && json.Valid([]byte(s)) {
		return append(found, s)
	}

	var spans []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		end := matchBracket(s, i)
		if end < 0 {
			continue
		}
		candidate := s[i : end+1]
		if json.Valid([]byte(candidate)) {
			spans = append(spans, candidate)
			i = end
		}
	}
	sort.SliceStable(spans, func(a, b int) bool { return len(spans[a]) > len(spans[b]) })

	for _, span := range spans {
		if !contains(found, span) {
			found = append(found, span)
		}
	}
	return found
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isContainer(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

// matchBracket returns the index closing the bracket opened at start, ignoring
// brackets inside strings, or -1.
func matchBracket(s string, start int) int {
	opening := s[start]
	closing := byte('}')
	if opening == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for j := start; j < len(s); j++ {
		c := s[j]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == opening:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// decodeAll unmarshals every candidate in raw into generic values for the
// validator, most likely first.
func decodeAll(raw string) ([]any, error) {
	found := candidates(raw)
	if len(found) == 0 {
		return nil, &ParseError{Raw: raw, Err: ErrNoJSON}
	}
	docs := make([]any, 0, len(found))
	for _, text := range found {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
		docs = append(docs, v)
	}
	return docs, nil
}
