package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// trivialCommands are base commands never worth turning into snippets.
// Matching on the base command (first token) catches "ls -la" and friends
// without a regex per variant.
var trivialCommands = map[string]bool{
	"cd":      true,
	"ls":      true,
	"ll":      true,
	"pwd":     true,
	"exit":    true,
	"clear":   true,
	"history": true,
	"which":   true,
	"man":     true,
}

// Filter decides which captured commands are worth keeping for enhancement.
type Filter struct {
	minLength int
	excludes  []*regexp.Regexp
}

// NewFilter compiles the given exclusion patterns into a Filter.
// Invalid patterns are reported rather than silently dropped, since a
// typo'd pattern would otherwise let secrets through.
func NewFilter(minLength int, excludePatterns []string) (*Filter, error) {
	excludes := make([]*regexp.Regexp, 0, len(excludePatterns))
	for _, p := range excludePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		excludes = append(excludes, re)
	}
	return &Filter{minLength: minLength, excludes: excludes}, nil
}

// Accept reports whether a captured command should be kept.
func (f *Filter) Accept(command string) bool {
	command = strings.TrimSpace(command)
	if len(command) < f.minLength {
		return false
	}
	if trivialCommands[BaseCommand(command)] {
		return false
	}
	for _, re := range f.excludes {
		if re.MatchString(command) {
			return false
		}
	}
	return true
}

// Keep returns the subset of commands that pass the filter, trimmed.
func (f *Filter) Keep(commands []string) []string {
	kept := make([]string, 0, len(commands))
	for _, cmd := range commands {
		cmd = strings.TrimSpace(cmd)
		if f.Accept(cmd) {
			kept = append(kept, cmd)
		}
	}
	return kept
}

// BaseCommand returns the first token of a command, skipping sudo and
// environment assignments. Shell-aware tokenization handles quoting;
// unparseable input falls back to whitespace splitting.
func BaseCommand(command string) string {
	tokens, err := shlex.Split(command)
	if err != nil {
		tokens = strings.Fields(command)
	}
	for _, tok := range tokens {
		if tok == "sudo" || strings.Contains(tok, "=") {
			continue
		}
		return tok
	}
	return ""
}
