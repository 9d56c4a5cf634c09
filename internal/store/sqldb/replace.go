package sqldb

import (
	"context"
	"fmt"

	"github.com/zotairo/zotairo-server/internal/domain"
)

// ReplaceAll swaps the whole mirror for snap in one transaction.
// Readers see either the previous contents or the new ones, never an empty store.
func (s *Store) ReplaceAll(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"item_collections", "items", "collections"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	collStmt, err := tx.PrepareContext(ctx, s.q(upsertCollectionSQL))
	if err != nil {
		return fmt.Errorf("prepare collection insert: %w", err)
	}
	defer collStmt.Close()

	itemStmt, err := tx.PrepareContext(ctx, s.q(upsertItemSQL))
	if err != nil {
		return fmt.Errorf("prepare item insert: %w", err)
	}
	defer itemStmt.Close()

	memberStmt, err := tx.PrepareContext(ctx, s.q(addMembershipSQL))
	if err != nil {
		return fmt.Errorf("prepare membership insert: %w", err)
	}
	defer memberStmt.Close()

	for _, c := range snap.Collections {
		if _, err := collStmt.ExecContext(ctx, string(c.Type), c.Scope.ID, c.ID, c.Name, nullIfEmpty(c.ParentID)); err != nil {
			return fmt.Errorf("insert collection %s in %s: %w", c.ID, c.Scope, err)
		}
	}
	for _, it := range snap.Items {
		if _, err := itemStmt.ExecContext(ctx, string(it.Type), it.Scope.ID, it.ID, it.Title, metadataText(it.Metadata)); err != nil {
			return fmt.Errorf("insert item %s in %s: %w", it.ID, it.Scope, err)
		}
	}
	for _, m := range snap.Memberships {
		if _, err := memberStmt.ExecContext(ctx, string(m.Type), m.Scope.ID, m.ItemID, m.CollectionID); err != nil {
			return fmt.Errorf("insert membership %s->%s in %s: %w", m.ItemID, m.CollectionID, m.Scope, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	counts := snap.Counts()
	s.logger.Info("mirror replaced",
		"collections", counts.Collections,
		"items", counts.Items,
		"memberships", counts.Memberships)
	return nil
}
