package logging

import (
	"fmt"
	"regexp"
)

// Pattern is a named redaction rule.
type Pattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Built-in pattern names.
const (
	PatternEmail = "email"
	PatternPhone = "phone"
)

var defaultPatterns = []Pattern{
	{Name: PatternEmail, Pattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, Replacement: "***@***"},
	{Name: PatternPhone, Pattern: `(?:\+\d{1,3}[-.\s]?)?\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, Replacement: "***-***-****"},
}

// Redactor replaces personal data in log values. Proposal descriptions
// and comments are free text and regularly carry contact details.
type Redactor struct {
	patterns []compiled
}

type compiled struct {
	name        string
	re          *regexp.Regexp
	replacement string
}

// NewRedactor compiles the built-in patterns followed by custom ones.
func NewRedactor(custom []Pattern) (*Redactor, error) {
	r := &Redactor{}
	for _, p := range append(append([]Pattern(nil), defaultPatterns...), custom...) {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, compiled{name: p.Name, re: re, replacement: p.Replacement})
	}
	return r, nil
}

// RedactString applies every pattern to value in order.
func (r *Redactor) RedactString(value string) string {
	if r == nil || value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.re.ReplaceAllString(value, p.replacement)
	}
	return value
}

// Patterns returns the pattern names in application order.
func (r *Redactor) Patterns() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.name
	}
	return names
}
