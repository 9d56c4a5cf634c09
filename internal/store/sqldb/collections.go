package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zotairo/zotairo-server/internal/domain"
)

const upsertCollectionSQL = `INSERT INTO collections (library_type, library_id, id, name, parent_id)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (library_type, library_id, id) DO UPDATE SET
	name = excluded.name,
	parent_id = excluded.parent_id`

func scanCollection(scanner interface{ Scan(dest ...any) error }, scope domain.Scope) (domain.Collection, error) {
	c := domain.Collection{Scope: scope}
	var parent sql.NullString
	if err := scanner.Scan(&c.ID, &c.Name, &parent); err != nil {
		return domain.Collection{}, err
	}
	c.ParentID = parent.String
	return c, nil
}

// UpsertCollection inserts or replaces a collection keyed by (scope, id).
func (s *Store) UpsertCollection(ctx context.Context, c domain.Collection) error {
	return s.upsertCollection(ctx, s.db, c)
}

func (s *Store) upsertCollection(ctx context.Context, ex execer, c domain.Collection) error {
	_, err := ex.ExecContext(ctx, s.q(upsertCollectionSQL),
		string(c.Type), c.Scope.ID, c.ID, c.Name, nullIfEmpty(c.ParentID))
	if err != nil {
		return fmt.Errorf("upsert collection %s in %s: %w", c.ID, c.Scope, err)
	}
	return nil
}

// ListCollections returns every collection of a library, ordered by name.
func (s *Store) ListCollections(ctx context.Context, scope domain.Scope) ([]domain.Collection, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, name, parent_id FROM collections
		WHERE library_type = ? AND library_id = ?
		ORDER BY LOWER(name), id`), string(scope.Type), scope.ID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	collections := []domain.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows, scope)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// ListSubcollections returns the direct children of parentID with their own child counts.
func (s *Store) ListSubcollections(ctx context.Context, scope domain.Scope, parentID string) ([]domain.SubcollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT c.id, c.name,
			(SELECT COUNT(*) FROM collections sc
			 WHERE sc.library_type = c.library_type
			   AND sc.library_id = c.library_id
			   AND sc.parent_id = c.id)
		FROM collections c
		WHERE c.library_type = ? AND c.library_id = ? AND c.parent_id = ?
		ORDER BY LOWER(c.name), c.id`), string(scope.Type), scope.ID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list subcollections: %w", err)
	}
	defer rows.Close()

	subs := []domain.SubcollectionInfo{}
	for rows.Next() {
		var info domain.SubcollectionInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.NumCollections); err != nil {
			return nil, fmt.Errorf("scan subcollection: %w", err)
		}
		subs = append(subs, info)
	}
	return subs, rows.Err()
}

// ListChildCollectionIDs returns the ids of direct children of parentID.
func (s *Store) ListChildCollectionIDs(ctx context.Context, scope domain.Scope, parentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id FROM collections
		WHERE library_type = ? AND library_id = ? AND parent_id = ?
		ORDER BY id`), string(scope.Type), scope.ID, parentID)
	if err != nil {
		return nil, fmt.Errorf("list child collections: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
