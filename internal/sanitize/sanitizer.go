package sanitize

// Sanitizer replaces credential-looking tokens in text with placeholders.
type Sanitizer struct {
	patterns []Pattern
}

// NewSanitizer creates a new Sanitizer with the default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: GetSecretPatterns(),
	}
}

// NewSanitizerWithPatterns creates a Sanitizer with custom patterns.
func NewSanitizerWithPatterns(patterns []Pattern) *Sanitizer {
	return &Sanitizer{
		patterns: patterns,
	}
}

// Sanitize removes sensitive data from the input string.
// Returns the input with secrets replaced by placeholders.
func (s *Sanitizer) Sanitize(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, p := range s.patterns {
		result = p.Regex.ReplaceAllString(result, p.Replacement)
	}
	return result
}

// SanitizeAll sanitizes every string in the slice.
func (s *Sanitizer) SanitizeAll(inputs []string) []string {
	results := make([]string, len(inputs))
	for i, input := range inputs {
		results[i] = s.Sanitize(input)
	}
	return results
}
