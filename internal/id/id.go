// Package id generates identifiers for requests and background runs.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used in log lines and responses.
const (
	PrefixQA         = "qa"
	PrefixExtraction = "ext"
)

// Generate creates a prefixed NanoID, e.g. "qa-V1StGXR8_Z5jdHi6B-myT".
// Returns an error if the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// RunID identifies one mirror sync run. Runs are reported through logs and
// the refresh response, so a standard UUID keeps them greppable across tools.
func RunID() string {
	return uuid.NewString()
}
