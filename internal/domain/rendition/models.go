package rendition

import (
	"fmt"
	"strings"
)

// Result is the outcome of the pre-closure integrity audit. Errors
// block closure; warnings are informational.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// IncompleteError is returned when closing a project whose integrity
// audit reported errors.
type IncompleteError struct {
	ProjectID int64
	Errors    []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("rendition for project %d is incomplete: %s", e.ProjectID, strings.Join(e.Errors, "; "))
}

func (e *IncompleteError) Code() string { return "rendition_incomplete" }
