package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/id"
	"github.com/zotairo/zotairo-server/internal/store"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

// Sync phases reported in SyncFailure.
const (
	PhaseGroups      = "groups"
	PhaseCollections = "collections"
	PhaseItems       = "items"
	PhaseAttachments = "attachments"
	PhaseIndex       = "index"
)

// untitledAttachment names an independent attachment with neither title nor filename.
const untitledAttachment = "(Attachment)"

// SyncFailure is one library phase that failed during a run. The run continues.
type SyncFailure struct {
	Scope string `json:"scope"`
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// LibrarySync reports the rows one library contributed.
type LibrarySync struct {
	Library domain.Library `json:"library"`
	Counts  domain.Counts  `json:"counts"`
}

// SyncReport summarizes one mirror run.
type SyncReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMs int64         `json:"duration_ms"`
	Libraries  []LibrarySync `json:"libraries"`
	Counts     domain.Counts `json:"counts"`
	Failures   []SyncFailure `json:"failures,omitempty"`
	// Applied is false when nothing was fetched and the previous mirror was kept.
	Applied bool `json:"applied"`
	// Shared is true when this caller joined a run already in progress.
	Shared bool `json:"shared,omitempty"`
}

// MirrorService copies every library from Zotero into the relational store.
type MirrorService struct {
	zotero ZoteroAPI
	store  store.Writer
	search *SearchService
	logger *slog.Logger
	group  singleflight.Group

	// runs are scoped to the service lifetime, not to callers.
	base context.Context
	stop context.CancelFunc
}

// NewMirrorService creates the service. search may be nil.
func NewMirrorService(z ZoteroAPI, w store.Writer, search *SearchService, logger *slog.Logger) *MirrorService {
	base, stop := context.WithCancel(context.Background())
	return &MirrorService{zotero: z, store: w, search: search, logger: logger, base: base, stop: stop}
}

// Stop cancels any run in progress. A cancelled run leaves the store untouched.
func (m *MirrorService) Stop() {
	m.stop()
}

// Run performs a full sync. Concurrent calls share one run. The run ignores
// ctx cancellation so a disconnecting caller cannot abort it for the others;
// only Stop ends it early.
func (m *MirrorService) Run(ctx context.Context) (*SyncReport, error) {
	v, err, shared := m.group.Do("mirror", func() (any, error) {
		return m.run(m.base)
	})
	if err != nil {
		return nil, err
	}
	report := *v.(*SyncReport)
	report.Shared = shared
	return &report, nil
}

func (m *MirrorService) run(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{RunID: id.RunID(), StartedAt: time.Now()}
	logger := m.logger.With("run_id", report.RunID)
	logger.Info("mirror sync started")

	libs, err := enumerateLibraries(ctx, m.zotero)
	if err != nil {
		report.fail(m.zotero.UserScope(), PhaseGroups, err, logger)
	}

	var snap domain.Snapshot
	for _, lib := range libs {
		libSnap := m.syncLibrary(ctx, lib.Scope(), report, logger)
		report.Libraries = append(report.Libraries, LibrarySync{Library: lib, Counts: libSnap.Counts()})
		snap.Merge(libSnap)
	}
	report.Counts = snap.Counts()

	if err := ctx.Err(); err != nil {
		logger.Warn("mirror sync cancelled, keeping previous contents")
		return nil, fmt.Errorf("mirror sync cancelled: %w", err)
	}

	if report.Counts == (domain.Counts{}) && len(report.Failures) > 0 {
		report.DurationMs = time.Since(report.StartedAt).Milliseconds()
		logger.Warn("mirror sync fetched nothing, keeping previous contents", "failures", len(report.Failures))
		return report, nil
	}

	if err := m.store.ReplaceAll(ctx, &snap); err != nil {
		return nil, fmt.Errorf("apply mirror snapshot: %w", err)
	}
	report.Applied = true

	if m.search != nil {
		if err := m.search.Rebuild(&snap); err != nil {
			report.fail(domain.Scope{}, PhaseIndex, err, logger)
		}
	}

	report.DurationMs = time.Since(report.StartedAt).Milliseconds()
	logger.Info("mirror sync finished",
		"libraries", len(report.Libraries),
		"collections", report.Counts.Collections,
		"items", report.Counts.Items,
		"memberships", report.Counts.Memberships,
		"failures", len(report.Failures),
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

func (r *SyncReport) fail(scope domain.Scope, phase string, err error, logger *slog.Logger) {
	logger.Error("mirror sync phase failed", "scope", scope.String(), "phase", phase, "error", err)
	r.Failures = append(r.Failures, SyncFailure{Scope: scope.String(), Phase: phase, Error: err.Error()})
}

// syncLibrary stages one library. Each phase fails independently.
func (m *MirrorService) syncLibrary(ctx context.Context, scope domain.Scope, report *SyncReport, logger *slog.Logger) domain.Snapshot {
	var snap domain.Snapshot

	colls, err := m.zotero.ListCollections(ctx, scope)
	if err != nil {
		report.fail(scope, PhaseCollections, err, logger)
	}
	for _, c := range colls {
		snap.Collections = append(snap.Collections, domain.Collection{
			Scope:    scope,
			ID:       c.Key,
			Name:     c.Data.Name,
			ParentID: string(c.Data.ParentCollection),
		})
	}

	top := make(map[string]struct{})
	items, err := m.zotero.ListTopItems(ctx, scope, zotero.TopLevelFilter)
	if err != nil {
		report.fail(scope, PhaseItems, err, logger)
	}
	for _, it := range items {
		if err := addItem(&snap, scope, it, it.Data.Title); err != nil {
			report.fail(scope, PhaseItems, err, logger)
			continue
		}
		top[it.Key] = struct{}{}
	}

	attachments, err := m.zotero.ListItemsByType(ctx, scope, zotero.ItemTypeAttachment)
	if err != nil {
		report.fail(scope, PhaseAttachments, err, logger)
	}
	for _, att := range attachments {
		if parent := att.Data.ParentItem; parent != "" {
			if _, ok := top[parent]; ok {
				continue
			}
		}
		title := att.Data.Title
		if title == "" {
			title = att.Data.Filename
		}
		if title == "" {
			title = untitledAttachment
		}
		if err := addItem(&snap, scope, att, title); err != nil {
			report.fail(scope, PhaseAttachments, err, logger)
		}
	}

	logger.Debug("library staged", "scope", scope.String(),
		"collections", len(snap.Collections), "items", len(snap.Items))
	return snap
}

// addItem stages an item row with its verbatim data and its memberships.
func addItem(snap *domain.Snapshot, scope domain.Scope, it zotero.Item, title string) error {
	raw, err := it.Data.Raw()
	if err != nil {
		return fmt.Errorf("encode item %s: %w", it.Key, err)
	}
	snap.Items = append(snap.Items, domain.Item{Scope: scope, ID: it.Key, Title: title, Metadata: raw})
	for _, coll := range it.Data.Collections {
		snap.Memberships = append(snap.Memberships, domain.Membership{Scope: scope, ItemID: it.Key, CollectionID: coll})
	}
	return nil
}
