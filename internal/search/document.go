// Package search provides full-text search over mirrored items using Bleve.
// The index is derived from the relational mirror and rebuilt after each sync.
package search

import (
	"regexp"
	"strconv"

	"github.com/zotairo/zotairo-server/internal/domain"
)

// ItemDocument is one item as indexed. ID is "<type>/<library>/<key>" so the
// same key in two libraries never collides.
type ItemDocument struct {
	ID          string
	LibraryType string
	LibraryID   string
	Key         string
	ItemType    string
	Title       string
	Creators    string
	Abstract    string
	Publication string
	Tags        []string
	Year        int
}

// DocumentID builds the index id for an item.
func DocumentID(scope domain.Scope, key string) string {
	return scope.String() + "/" + key
}

// scopeKey is the single keyword used to filter hits to one library.
func scopeKey(scope domain.Scope) string {
	return string(scope.Type) + ":" + scope.ID
}

// ToMap converts the document to the field names used by the mapping.
func (d *ItemDocument) ToMap() map[string]any {
	m := map[string]any{
		"scope":     d.LibraryType + ":" + d.LibraryID,
		"key":       d.Key,
		"item_type": d.ItemType,
		"title":     d.Title,
	}
	if d.Creators != "" {
		m["creators"] = d.Creators
	}
	if d.Abstract != "" {
		m["abstract"] = d.Abstract
	}
	if d.Publication != "" {
		m["publication"] = d.Publication
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.Year > 0 {
		m["year"] = float64(d.Year)
	}
	return m
}

var yearPattern = regexp.MustCompile(`\b(1[5-9]\d\d|2\d\d\d)\b`)

// ParseYear finds a four-digit year in a free-form date such as "March 2017" or "2017-03-01".
func ParseYear(date string) int {
	m := yearPattern.FindString(date)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}
