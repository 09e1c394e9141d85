package analyze

import (
	"errors"
	"testing"
)

func TestExtractJSON_FencedBlock(t *testing.T) {
	t.Parallel()

	text := "Here are your snippets:\n\n```json\n{\"candidates\": [{\"title\": \"Docker Build and Run\"}]}\n```\n\nLet me know if you need anything else."

	doc, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(doc) != `{"candidates": [{"title": "Docker Build and Run"}]}` {
		t.Errorf("doc = %s", doc)
	}
}

func TestExtractJSON_LargestOfMany(t *testing.T) {
	t.Parallel()

	text := `Some prose {"small": 1} and then the real payload {"candidates": [{"title": "t", "fragments": []}]} plus {"x": 2} trailing.`

	doc, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(doc) != `{"candidates": [{"title": "t", "fragments": []}]}` {
		t.Errorf("doc = %s", doc)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	t.Parallel()

	_, err := ExtractJSON("I could not produce any structured output, sorry.")
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("error = %v, want ErrNoJSON", err)
	}
}

func TestExtractJSON_InvalidFencedFallsBack(t *testing.T) {
	t.Parallel()

	text := "```json\n{broken\n```\nbut also {\"ok\": true} here"

	doc, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(doc) != `{"ok": true}` {
		t.Errorf("doc = %s", doc)
	}
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	t.Parallel()

	text := `{"code": "if { grep -q x; } then echo {}", "language": "bash"}`

	doc, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if string(doc) != text {
		t.Errorf("doc = %s", doc)
	}
}

func TestBatchDigest_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := BatchDigest([]string{"docker build -t app .", "docker run -p 3000:3000 app"})
	b := BatchDigest([]string{"docker run -p 3000:3000 app", "docker build -t app ."})
	if a != b {
		t.Error("digest must not depend on command order")
	}

	c := BatchDigest([]string{"docker build -t app ."})
	if a == c {
		t.Error("different sets must produce different digests")
	}

	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}
