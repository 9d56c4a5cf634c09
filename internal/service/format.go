package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

// childLookupConcurrency bounds the per-item child listings made while formatting a list.
const childLookupConcurrency = 4

// ItemSummary is one entry of a live item listing, as cached and served.
type ItemSummary struct {
	Key           string   `json:"key"`
	Title         string   `json:"title"`
	ItemType      string   `json:"itemType"`
	Creators      string   `json:"creators"`
	Date          string   `json:"date"`
	Tags          []string `json:"tags"`
	HasAttachment bool     `json:"hasAttachment"`
	AbstractNote  string   `json:"abstractNote"`
	URL           string   `json:"url"`
}

// AttachmentInfo describes one attachment of an item.
type AttachmentInfo struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// ItemDetail is a live item with its attachments.
type ItemDetail struct {
	Key          string           `json:"key"`
	Title        string           `json:"title"`
	ItemType     string           `json:"itemType"`
	Creators     string           `json:"creators"`
	Date         string           `json:"date"`
	Tags         []string         `json:"tags"`
	Attachments  []AttachmentInfo `json:"attachments"`
	AbstractNote string           `json:"abstractNote"`
	URL          string           `json:"url"`
}

// StoredItem is a mirrored item with display fields derived from its metadata.
type StoredItem struct {
	ID               string          `json:"id"`
	Key              string          `json:"key"`
	Title            string          `json:"title"`
	Metadata         json.RawMessage `json:"metadata"`
	HasAttachment    bool            `json:"hasAttachment"`
	ItemType         string          `json:"itemType"`
	Creators         string          `json:"creators"`
	Date             string          `json:"date"`
	Tags             []string        `json:"tags"`
	Publisher        string          `json:"publisher"`
	PublicationTitle string          `json:"publicationTitle"`
}

// StoredItemDetail is a mirrored item plus its live attachment list.
type StoredItemDetail struct {
	StoredItem
	Attachments []AttachmentInfo `json:"attachments"`
}

// ItemRow is the bare mirrored row: id, title and raw metadata.
type ItemRow struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Metadata json.RawMessage `json:"metadata"`
}

// FormatCreators renders creators last-name first ("Last, First"), joined by "; ".
// A creator without a last name falls back to the first name, then the single-field name.
func FormatCreators(creators []zotero.Creator) string {
	names := make([]string, 0, len(creators))
	for _, c := range creators {
		var name string
		switch {
		case c.LastName != "":
			name = c.LastName
			if c.FirstName != "" {
				name += ", " + c.FirstName
			}
		case c.FirstName != "":
			name = c.FirstName
		default:
			name = c.Name
		}
		names = append(names, name)
	}
	return strings.Join(names, "; ")
}

func tagNames(tags []zotero.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Tag)
	}
	return out
}

func publicationTitle(d zotero.ItemData) string {
	if d.PublicationTitle != "" {
		return d.PublicationTitle
	}
	return d.Publication
}

// attachmentsOf keeps attachment children. When there is more than one and
// any is a PDF, only the PDFs are kept.
func attachmentsOf(children []zotero.Item) []AttachmentInfo {
	var all, pdfs []zotero.Item
	for _, c := range children {
		if !c.Data.IsAttachment() {
			continue
		}
		all = append(all, c)
		if c.Data.IsPDF() {
			pdfs = append(pdfs, c)
		}
	}
	if len(all) > 1 && len(pdfs) > 0 {
		all = pdfs
	}

	out := make([]AttachmentInfo, 0, len(all))
	for _, a := range all {
		out = append(out, AttachmentInfo{
			Key:         a.Key,
			Title:       a.Data.Title,
			Filename:    a.Data.Filename,
			ContentType: a.Data.ContentType,
		})
	}
	return out
}

// attachmentChecker answers "does this item have an attachment child" with one
// child listing per item. Lookup failures count as no attachment.
type attachmentChecker struct {
	zotero ZoteroAPI
	logger *slog.Logger
}

func (a attachmentChecker) has(ctx context.Context, scope domain.Scope, key string) bool {
	children, err := a.zotero.ListChildren(ctx, scope, key)
	if err != nil {
		a.logger.Warn("child lookup failed, assuming no attachment",
			"scope", scope.String(), "key", key, "error", err)
		return false
	}
	for _, c := range children {
		if c.Data.IsAttachment() {
			return true
		}
	}
	return false
}

// fanOut runs has for every key and returns the results by index.
// skip marks keys already known to have no children.
func (a attachmentChecker) fanOut(ctx context.Context, scope domain.Scope, keys []string, skip []bool) []bool {
	out := make([]bool, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(childLookupConcurrency)
	for i, key := range keys {
		if key == "" || (skip != nil && skip[i]) {
			continue
		}
		g.Go(func() error {
			out[i] = a.has(gctx, scope, key)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// summarize formats remote items for a listing.
func (a attachmentChecker) summarize(ctx context.Context, scope domain.Scope, items []zotero.Item) []ItemSummary {
	keys := make([]string, len(items))
	skip := make([]bool, len(items))
	for i, it := range items {
		keys[i] = it.Key
		skip[i] = it.Meta.NumChildren != nil && *it.Meta.NumChildren == 0
	}
	has := a.fanOut(ctx, scope, keys, skip)

	out := make([]ItemSummary, 0, len(items))
	for i, it := range items {
		d := it.Data
		out = append(out, ItemSummary{
			Key:           it.Key,
			Title:         d.Title,
			ItemType:      d.ItemType,
			Creators:      FormatCreators(d.Creators),
			Date:          d.Date,
			Tags:          tagNames(d.Tags),
			HasAttachment: has[i],
			AbstractNote:  d.AbstractNote,
			URL:           d.URL,
		})
	}
	return out
}

// storedItem derives display fields from a mirrored row. Unparsable metadata yields empty fields.
func storedItem(it domain.Item) StoredItem {
	var d zotero.ItemData
	meta := it.Metadata
	if len(meta) == 0 || json.Unmarshal(meta, &d) != nil {
		meta = json.RawMessage("{}")
	}
	return StoredItem{
		ID:               it.ID,
		Key:              it.ID,
		Title:            it.Title,
		Metadata:         meta,
		ItemType:         d.ItemType,
		Creators:         FormatCreators(d.Creators),
		Date:             d.Date,
		Tags:             tagNames(d.Tags),
		Publisher:        d.Publisher,
		PublicationTitle: publicationTitle(d),
	}
}

// storedItems formats rows and fills HasAttachment through the child fan-out.
func (a attachmentChecker) storedItems(ctx context.Context, scope domain.Scope, items []domain.Item) []StoredItem {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.ID
	}
	has := a.fanOut(ctx, scope, keys, nil)

	out := make([]StoredItem, 0, len(items))
	for i, it := range items {
		si := storedItem(it)
		si.HasAttachment = has[i]
		out = append(out, si)
	}
	return out
}

func itemRows(items []domain.Item) []ItemRow {
	out := make([]ItemRow, 0, len(items))
	for _, it := range items {
		meta := it.Metadata
		if len(meta) == 0 {
			meta = json.RawMessage("{}")
		}
		out = append(out, ItemRow{ID: it.ID, Title: it.Title, Metadata: meta})
	}
	return out
}
