package analyze

import (
	"fmt"
	"strings"
)

// PromptBuilder constructs the analysis prompt for a command batch
type PromptBuilder struct {
	maxCandidates int
	groupSimilar  bool
}

// NewPromptBuilder creates a new PromptBuilder
func NewPromptBuilder(maxCandidates int, groupSimilar bool) *PromptBuilder {
	if maxCandidates <= 0 {
		maxCandidates = 3
	}
	return &PromptBuilder{
		maxCandidates: maxCandidates,
		groupSimilar:  groupSimilar,
	}
}

// Build renders the prompt for one batch of commands
func (b *PromptBuilder) Build(commands []string) string {
	var sb strings.Builder

	sb.WriteString("You are a documentation assistant for a code-snippet manager. ")
	sb.WriteString("Turn the terminal commands below into reusable, documented snippets.\n\n")

	sb.WriteString("Commands:\n")
	for i, cmd := range commands {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, cmd)
	}

	fmt.Fprintf(&sb, "\nProduce at most %d snippets.", b.maxCandidates)
	if b.groupSimilar {
		sb.WriteString(" Group related commands into a single snippet where it makes sense.")
	}
	sb.WriteString("\n\nRespond with ONLY a JSON object in this exact shape:\n")
	sb.WriteString("```json\n")
	sb.WriteString(`{
  "candidates": [
    {
      "title": "Short descriptive title",
      "description": "What the commands do and when to use them, with a worked example.",
      "categories": ["category1", "category2"],
      "fragments": [
        {"file_name": "example.sh", "code": "the command(s)", "language": "bash"}
      ]
    }
  ]
}
`)
	sb.WriteString("```\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- title: at most 60 characters\n")
	sb.WriteString("- categories: at most 3, lowercase\n")
	sb.WriteString("- fragments: at least one per candidate, code and language never empty\n")
	sb.WriteString("- no text outside the JSON object\n")

	return sb.String()
}
