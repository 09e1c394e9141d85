package analyze

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no parseable JSON document can be recovered
// from a model reply. Callers must treat this as a failure, never as an
// empty result.
var ErrNoJSON = errors.New("no JSON found in response")

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json|JSON)\\s*\\n(.*?)```")

// ExtractJSON recovers a JSON document from an unconstrained text reply.
// A fenced block labeled json wins; otherwise every brace-delimited
// substring is tried and the largest parseable one is returned.
func ExtractJSON(text string) (json.RawMessage, error) {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	best := largestBraceDocument(text)
	if best == "" {
		return nil, ErrNoJSON
	}
	return json.RawMessage(best), nil
}

// largestBraceDocument scans for balanced {...} substrings and returns
// the longest one that parses as JSON.
func largestBraceDocument(text string) string {
	var best string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			continue
		}
		candidate := text[i : end+1]
		if len(candidate) > len(best) && json.Valid([]byte(candidate)) {
			best = candidate
		}
	}
	return best
}

// matchBrace returns the index of the brace closing the one at start, or
// -1 when the text ends first. Braces inside JSON strings are skipped.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
