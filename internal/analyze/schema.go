package analyze

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxTitleLen   = 60
	maxCategories = 3
)

// Candidate is a validated, normalized snippet proposal.
type Candidate struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Categories  []string   `json:"categories"`
	Fragments   []Fragment `json:"fragments"`
	IsPublic    bool       `json:"isPublic"`
	Locked      bool       `json:"locked"`
}

// Fragment is one code block of a candidate.
type Fragment struct {
	FileName string `json:"file_name"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Position int    `json:"position"`
}

// ValidationError records why one extracted candidate was rejected.
type ValidationError struct {
	Index   int
	Reasons []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("candidate %d: %s", e.Index, strings.Join(e.Reasons, "; "))
}

// rawCandidate accepts the alias variants different model replies use for
// the same fields, before normalization to the canonical form.
type rawCandidate struct {
	Title       any           `json:"title"`
	Description any           `json:"description"`
	Categories  []any         `json:"categories"`
	Fragments   []rawFragment `json:"fragments"`
}

type rawFragment struct {
	FileName  string `json:"file_name"`
	FileName2 string `json:"fileName"`
	FileName3 string `json:"filename"`
	Code      string `json:"code"`
	Content   string `json:"content"`
	Language  string `json:"language"`
	Lang      string `json:"lang"`
	Position  *int   `json:"position"`
}

func (f *rawFragment) fileName() string {
	if f.FileName != "" {
		return f.FileName
	}
	if f.FileName2 != "" {
		return f.FileName2
	}
	return f.FileName3
}

func (f *rawFragment) code() string {
	if f.Code != "" {
		return f.Code
	}
	return f.Content
}

func (f *rawFragment) language() string {
	if f.Language != "" {
		return f.Language
	}
	return f.Lang
}

// candidateEnvelope matches the expected top-level reply shape. A bare
// array of candidates is also accepted.
type candidateEnvelope struct {
	Candidates []rawCandidate `json:"candidates"`
	Snippets   []rawCandidate `json:"snippets"`
}

// parseCandidates decodes an extracted JSON document into its raw
// candidate list, accepting both the enveloped and bare-array shapes.
func parseCandidates(doc json.RawMessage) ([]rawCandidate, error) {
	var env candidateEnvelope
	if err := json.Unmarshal(doc, &env); err == nil {
		if len(env.Candidates) > 0 {
			return env.Candidates, nil
		}
		if len(env.Snippets) > 0 {
			return env.Snippets, nil
		}
	}

	var bare []rawCandidate
	if err := json.Unmarshal(doc, &bare); err == nil {
		return bare, nil
	}

	// A single candidate object without an envelope
	var one rawCandidate
	if err := json.Unmarshal(doc, &one); err == nil && one.Title != nil {
		return []rawCandidate{one}, nil
	}

	return nil, nil
}

// ValidateCandidates applies auto-fixes, then validation, then
// normalization. Candidates that still fail after auto-fix are collected
// into the error list and dropped; they are never partially kept.
func ValidateCandidates(raw []rawCandidate, maxCandidates int) ([]Candidate, []ValidationError) {
	var valid []Candidate
	var errs []ValidationError

	for i, rc := range raw {
		cand, reasons := normalizeCandidate(rc)
		if len(reasons) > 0 {
			errs = append(errs, ValidationError{Index: i, Reasons: reasons})
			continue
		}
		valid = append(valid, cand)
	}

	if maxCandidates > 0 && len(valid) > maxCandidates {
		valid = valid[:maxCandidates]
	}
	return valid, errs
}

func normalizeCandidate(rc rawCandidate) (Candidate, []string) {
	var reasons []string

	title, ok := asString(rc.Title)
	if !ok || strings.TrimSpace(title) == "" {
		reasons = append(reasons, "title is missing or not a string")
	}
	title = strings.TrimSpace(title)
	// The limit is characters, not bytes; slicing runes keeps a
	// multibyte title valid UTF-8.
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen-3]) + "..."
	}

	desc, ok := asString(rc.Description)
	if !ok {
		reasons = append(reasons, "description is missing or not a string")
	}
	desc = strings.TrimSpace(desc)

	var categories []string
	seen := make(map[string]bool)
	for _, c := range rc.Categories {
		s, ok := asString(c)
		if !ok {
			continue
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		categories = append(categories, s)
	}
	if len(categories) > maxCategories {
		categories = categories[:maxCategories]
	}

	if len(rc.Fragments) == 0 {
		reasons = append(reasons, "fragments must be a non-empty array")
	}
	fragments := make([]Fragment, 0, len(rc.Fragments))
	for j, rf := range rc.Fragments {
		name := strings.TrimSpace(rf.fileName())
		code := strings.TrimSpace(rf.code())
		lang := strings.TrimSpace(rf.language())
		if name == "" {
			reasons = append(reasons, fmt.Sprintf("fragment %d: file_name is empty", j))
		}
		if code == "" {
			reasons = append(reasons, fmt.Sprintf("fragment %d: code is empty", j))
		}
		if lang == "" {
			reasons = append(reasons, fmt.Sprintf("fragment %d: language is empty", j))
		}
		fragments = append(fragments, Fragment{
			FileName: name,
			Code:     code,
			Language: lang,
			Position: j,
		})
	}

	if len(reasons) > 0 {
		return Candidate{}, reasons
	}

	return Candidate{
		Title:       title,
		Description: desc,
		Categories:  categories,
		Fragments:   fragments,
		IsPublic:    false,
		Locked:      false,
	}, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
