package zotero

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Group is a group library the API key can read.
type Group struct {
	ID   int       `json:"id"`
	Data GroupData `json:"data"`
}

// GroupData holds a group's display fields.
type GroupData struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// IDString returns the group id in the form used for scopes and URLs.
func (g Group) IDString() string {
	return strconv.Itoa(g.ID)
}

// Collection is one collection entry.
type Collection struct {
	Key  string         `json:"key"`
	Data CollectionData `json:"data"`
	Meta CollectionMeta `json:"meta"`
}

// CollectionData keeps the verbatim JSON alongside the fields the server reads.
type CollectionData struct {
	Key              string    `json:"key"`
	Name             string    `json:"name"`
	ParentCollection ParentRef `json:"parentCollection"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the known fields and retains the original bytes.
func (d *CollectionData) UnmarshalJSON(b []byte) error {
	type plain CollectionData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = CollectionData(p)
	d.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON re-emits the original bytes when available.
func (d CollectionData) MarshalJSON() ([]byte, error) {
	if len(d.raw) > 0 {
		return d.raw, nil
	}
	type plain CollectionData
	return json.Marshal(plain(d))
}

// CollectionMeta holds server-computed counters.
type CollectionMeta struct {
	NumCollections int `json:"numCollections"`
	NumItems       int `json:"numItems"`
}

// ParentRef is a parent collection key. The API encodes "no parent" as false.
type ParentRef string

// UnmarshalJSON accepts a string, false, or null.
func (p *ParentRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("false")) || bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*p = ParentRef(s)
	return nil
}

// MarshalJSON writes false for an empty parent, matching the API.
func (p ParentRef) MarshalJSON() ([]byte, error) {
	if p == "" {
		return []byte("false"), nil
	}
	return json.Marshal(string(p))
}

// Item is one item entry of any type: regular item, attachment, note or annotation.
type Item struct {
	Key  string   `json:"key"`
	Data ItemData `json:"data"`
	Meta ItemMeta `json:"meta"`
}

// ItemMeta holds server-computed fields.
type ItemMeta struct {
	NumChildren *int `json:"numChildren,omitempty"`
}

// Creator is one author, editor or other contributor.
type Creator struct {
	CreatorType string `json:"creatorType,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Tag is one item tag.
type Tag struct {
	Tag  string `json:"tag"`
	Type int    `json:"type,omitempty"`
}

// Item types the server distinguishes.
const (
	ItemTypeAttachment = "attachment"
	ItemTypeNote       = "note"
	ItemTypeAnnotation = "annotation"
)

// TopLevelFilter excludes attachments and annotations from item listings.
const TopLevelFilter = "-attachment || annotation"

// ItemData keeps the verbatim JSON alongside the fields the server reads.
type ItemData struct {
	Key              string    `json:"key"`
	ItemType         string    `json:"itemType"`
	Title            string    `json:"title,omitempty"`
	Creators         []Creator `json:"creators,omitempty"`
	Date             string    `json:"date,omitempty"`
	Tags             []Tag     `json:"tags,omitempty"`
	AbstractNote     string    `json:"abstractNote,omitempty"`
	URL              string    `json:"url,omitempty"`
	Publisher        string    `json:"publisher,omitempty"`
	PublicationTitle string    `json:"publicationTitle,omitempty"`
	Publication      string    `json:"publication,omitempty"`
	Collections      []string  `json:"collections,omitempty"`
	ParentItem       string    `json:"parentItem,omitempty"`

	// Attachments
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	LinkMode    string `json:"linkMode,omitempty"`

	// Notes
	Note string `json:"note,omitempty"`

	// Annotations
	AnnotationType      string `json:"annotationType,omitempty"`
	AnnotationText      string `json:"annotationText,omitempty"`
	AnnotationComment   string `json:"annotationComment,omitempty"`
	AnnotationColor     string `json:"annotationColor,omitempty"`
	AnnotationPageLabel string `json:"annotationPageLabel,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the known fields and retains the original bytes.
func (d *ItemData) UnmarshalJSON(b []byte) error {
	type plain ItemData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = ItemData(p)
	d.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON re-emits the original bytes when available.
func (d ItemData) MarshalJSON() ([]byte, error) {
	if len(d.raw) > 0 {
		return d.raw, nil
	}
	type plain ItemData
	return json.Marshal(plain(d))
}

// Raw returns the item's data object as received, or a fresh encoding for locally built values.
func (d ItemData) Raw() (json.RawMessage, error) {
	return d.MarshalJSON()
}

// IsAttachment reports whether the item is an attachment.
func (d ItemData) IsAttachment() bool {
	return d.ItemType == ItemTypeAttachment
}

// IsPDF reports whether an attachment holds a PDF.
func (d ItemData) IsPDF() bool {
	return d.ContentType == "application/pdf"
}
