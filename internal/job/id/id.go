// Package id provides unique identifier generation for jobs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: merge-<uuid v4>
// Example: merge-9f8c2b1e-4d0a-4c1b-9a55-0f3f2d6c7e11
func Generate() string {
	return "merge-" + uuid.NewString()
}

// Valid reports whether s has the format produced by Generate.
func Valid(s string) bool {
	rest, ok := strings.CutPrefix(s, "merge-")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
