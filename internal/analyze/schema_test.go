package analyze

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustParse(t *testing.T, doc string) []rawCandidate {
	t.Helper()
	raw, err := parseCandidates(json.RawMessage(doc))
	if err != nil {
		t.Fatalf("parseCandidates() error = %v", err)
	}
	return raw
}

func TestValidateCandidates_ValidUnchanged(t *testing.T) {
	t.Parallel()

	raw := mustParse(t, `{"candidates": [{
		"title": "Docker Build and Run",
		"description": "Builds the image and runs it on port 3000.",
		"categories": ["docker", "containers", "deployment"],
		"fragments": [
			{"file_name": "build.sh", "code": "docker build -t app .", "language": "bash"},
			{"file_name": "run.sh", "code": "docker run -p 3000:3000 app", "language": "bash"}
		]
	}]}`)

	valid, errs := ValidateCandidates(raw, 3)
	if len(errs) != 0 {
		t.Fatalf("unexpected validation errors: %v", errs)
	}
	if len(valid) != 1 {
		t.Fatalf("valid = %d, want 1", len(valid))
	}

	c := valid[0]
	if c.Title != "Docker Build and Run" {
		t.Errorf("Title = %q", c.Title)
	}
	if len(c.Categories) != 3 {
		t.Errorf("Categories = %v", c.Categories)
	}
	if c.IsPublic || c.Locked {
		t.Error("isPublic and locked must default to false")
	}
	if c.Fragments[0].Position != 0 || c.Fragments[1].Position != 1 {
		t.Errorf("positions = %d, %d", c.Fragments[0].Position, c.Fragments[1].Position)
	}
}

func TestValidateCandidates_AutoFixes(t *testing.T) {
	t.Parallel()

	longTitle := strings.Repeat("x", 90)
	raw := mustParse(t, `{"candidates": [{
		"title": "`+longTitle+`",
		"description": "d",
		"categories": ["A", "b", "C", "d", "e"],
		"fragments": [{"file_name": "f.sh", "code": "echo hi", "language": "bash", "position": 42}]
	}]}`)

	valid, errs := ValidateCandidates(raw, 3)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	c := valid[0]
	if len(c.Title) != 60 {
		t.Errorf("title length = %d, want 60", len(c.Title))
	}
	if !strings.HasSuffix(c.Title, "...") {
		t.Errorf("title = %q, want ellipsis suffix", c.Title)
	}
	if c.Title[:57] != longTitle[:57] {
		t.Error("truncation must keep the first 57 characters")
	}
	if len(c.Categories) != 3 {
		t.Errorf("categories = %v, want 3", c.Categories)
	}
	if c.Categories[0] != "a" {
		t.Errorf("categories must be lower-cased, got %v", c.Categories)
	}
	if c.Fragments[0].Position != 0 {
		t.Errorf("position = %d, provider-supplied value must be overridden", c.Fragments[0].Position)
	}
}

func TestValidateCandidates_MultibyteTitle(t *testing.T) {
	t.Parallel()

	short := strings.Repeat("é", 40)
	long := strings.Repeat("é", 70)
	raw := mustParse(t, `{"candidates": [
		{"title": "`+short+`", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]},
		{"title": "`+long+`", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]}
	]}`)

	valid, errs := ValidateCandidates(raw, 3)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if valid[0].Title != short {
		t.Errorf("a 40-character title must not be truncated, got %q", valid[0].Title)
	}

	truncated := valid[1].Title
	if !utf8.ValidString(truncated) {
		t.Errorf("truncated title is not valid UTF-8: %q", truncated)
	}
	if got := utf8.RuneCountInString(truncated); got != 60 {
		t.Errorf("title length = %d characters, want 60", got)
	}
	if !strings.HasSuffix(truncated, "...") {
		t.Errorf("title = %q, want ellipsis suffix", truncated)
	}
	if !strings.HasPrefix(truncated, strings.Repeat("é", 57)) {
		t.Error("truncation must keep the first 57 characters")
	}
}

func TestValidateCandidates_AliasNormalization(t *testing.T) {
	t.Parallel()

	raw := mustParse(t, `{"candidates": [{
		"title": "t",
		"description": "d",
		"categories": [],
		"fragments": [{"fileName": "a.sh", "content": "echo a", "lang": "bash"}]
	}]}`)

	valid, errs := ValidateCandidates(raw, 3)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	f := valid[0].Fragments[0]
	if f.FileName != "a.sh" || f.Code != "echo a" || f.Language != "bash" {
		t.Errorf("fragment = %+v", f)
	}
}

func TestValidateCandidates_RejectsWithReasons(t *testing.T) {
	t.Parallel()

	raw := mustParse(t, `{"candidates": [
		{"title": "ok", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]},
		{"title": "", "description": "d", "categories": [], "fragments": []},
		{"title": "bad frag", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "", "language": "l"}]}
	]}`)

	valid, errs := ValidateCandidates(raw, 3)
	if len(valid) != 1 {
		t.Fatalf("valid = %d, want 1", len(valid))
	}
	if len(errs) != 2 {
		t.Fatalf("errs = %v, want 2", errs)
	}
	if errs[0].Index != 1 || errs[1].Index != 2 {
		t.Errorf("error indices = %d, %d", errs[0].Index, errs[1].Index)
	}
	if len(errs[0].Reasons) == 0 || len(errs[1].Reasons) == 0 {
		t.Error("rejections must carry field-level reasons")
	}
}

func TestValidateCandidates_CapsCandidateCount(t *testing.T) {
	t.Parallel()

	raw := mustParse(t, `{"candidates": [
		{"title": "a", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]},
		{"title": "b", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]},
		{"title": "c", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]},
		{"title": "d", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]}
	]}`)

	valid, _ := ValidateCandidates(raw, 3)
	if len(valid) != 3 {
		t.Errorf("valid = %d, want 3", len(valid))
	}
}

func TestParseCandidates_BareArray(t *testing.T) {
	t.Parallel()

	raw := mustParse(t, `[{"title": "t", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]}]`)
	if len(raw) != 1 {
		t.Fatalf("raw = %d, want 1", len(raw))
	}
}

func TestParseCandidates_SingleObject(t *testing.T) {
	t.Parallel()

	raw := mustParse(t, `{"title": "t", "description": "d", "categories": [], "fragments": [{"file_name": "f", "code": "c", "language": "l"}]}`)
	if len(raw) != 1 {
		t.Fatalf("raw = %d, want 1", len(raw))
	}
}
