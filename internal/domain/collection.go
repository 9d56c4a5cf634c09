package domain

import "encoding/json"

// Collection is a mirrored folder. ParentID is empty for top-level collections.
type Collection struct {
	Scope
	ID       string
	Name     string
	ParentID string
}

// Item is a mirrored top-level item or independent attachment.
// Metadata is the remote item's data object, stored verbatim.
type Item struct {
	Scope
	ID       string
	Title    string
	Metadata json.RawMessage
}

// Membership links an item to a collection within the same scope.
type Membership struct {
	Scope
	ItemID       string
	CollectionID string
}

// Snapshot is one full traversal of the remote libraries, applied atomically.
type Snapshot struct {
	Collections []Collection
	Items       []Item
	Memberships []Membership
}

// Counts summarizes a snapshot or the store contents.
type Counts struct {
	Collections int `json:"collections"`
	Items       int `json:"items"`
	Memberships int `json:"memberships"`
}

// Counts returns the snapshot's row counts.
func (s *Snapshot) Counts() Counts {
	return Counts{
		Collections: len(s.Collections),
		Items:       len(s.Items),
		Memberships: len(s.Memberships),
	}
}

// Merge appends another snapshot's rows.
func (s *Snapshot) Merge(other Snapshot) {
	s.Collections = append(s.Collections, other.Collections...)
	s.Items = append(s.Items, other.Items...)
	s.Memberships = append(s.Memberships, other.Memberships...)
}

// SubcollectionInfo is a child collection with the number of its own children.
type SubcollectionInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NumCollections int    `json:"numCollections"`
}
