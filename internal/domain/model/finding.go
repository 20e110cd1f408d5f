package model

import (
	"fmt"
	"strings"
)

// Severity classifies a review finding.
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// NormalizeSeverity maps arbitrary severity text from the review service to
// a known Severity. Unrecognized values degrade to SeveritySuggestion rather
// than being dropped.
func NormalizeSeverity(raw string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityError:
		return SeverityError
	case SeverityWarning:
		return SeverityWarning
	default:
		return SeveritySuggestion
	}
}

// Finding is a single piece of automated review feedback for one file.
// Line is a position within the unified diff hunk (the GitHub review-comment
// addressing model), not an absolute file line number.
type Finding struct {
	Line     int
	Message  string
	Severity Severity
}

// CommentBody renders the finding as an inline review comment body,
// e.g. "[WARNING] possible nil dereference".
func (f Finding) CommentBody() string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(f.Severity)), f.Message)
}
