// Package domain holds the mirrored library model shared by the store, cache and services.
package domain

import (
	"fmt"
)

// LibraryType distinguishes the personal library from group libraries.
type LibraryType string

const (
	LibraryUser  LibraryType = "user"
	LibraryGroup LibraryType = "group"
)

// ParseLibraryType accepts the path form used by clients ("user" or "group").
func ParseLibraryType(s string) (LibraryType, error) {
	switch LibraryType(s) {
	case LibraryUser, LibraryGroup:
		return LibraryType(s), nil
	default:
		return "", fmt.Errorf("unknown library type %q", s)
	}
}

// Scope identifies one library. Every collection, item and membership belongs to exactly one.
type Scope struct {
	Type LibraryType `json:"library_type"`
	ID   string      `json:"library_id"`
}

// NewScope builds a scope from a library kind and id.
func NewScope(t LibraryType, id string) Scope {
	return Scope{Type: t, ID: id}
}

func (s Scope) String() string {
	return string(s.Type) + "/" + s.ID
}

// Library is one entry of the library list served to clients.
type Library struct {
	ID   string      `json:"id"`
	Type LibraryType `json:"type"`
	Name string      `json:"name"`
}

// Scope returns the library's scope.
func (l Library) Scope() Scope {
	return Scope{Type: l.Type, ID: l.ID}
}

// PersonalLibraryName is the display name of the configured user's library.
const PersonalLibraryName = "My library"
