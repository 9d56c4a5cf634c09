package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/store"
)

const upsertItemSQL = `INSERT INTO items (library_type, library_id, id, title, metadata)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (library_type, library_id, id) DO UPDATE SET
	title = excluded.title,
	metadata = excluded.metadata`

const addMembershipSQL = `INSERT INTO item_collections (library_type, library_id, item_id, collection_id)
VALUES (?, ?, ?, ?)
ON CONFLICT DO NOTHING`

func scanItem(scanner interface{ Scan(dest ...any) error }, scope domain.Scope) (domain.Item, error) {
	it := domain.Item{Scope: scope}
	var metadata string
	if err := scanner.Scan(&it.ID, &it.Title, &metadata); err != nil {
		return domain.Item{}, err
	}
	it.Metadata = json.RawMessage(metadata)
	return it, nil
}

func metadataText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// UpsertItem inserts or replaces an item keyed by (scope, id).
func (s *Store) UpsertItem(ctx context.Context, it domain.Item) error {
	return s.upsertItem(ctx, s.db, it)
}

func (s *Store) upsertItem(ctx context.Context, ex execer, it domain.Item) error {
	_, err := ex.ExecContext(ctx, s.q(upsertItemSQL),
		string(it.Type), it.Scope.ID, it.ID, it.Title, metadataText(it.Metadata))
	if err != nil {
		return fmt.Errorf("upsert item %s in %s: %w", it.ID, it.Scope, err)
	}
	return nil
}

// AddMembership records an item-collection link. Re-adding is a no-op.
func (s *Store) AddMembership(ctx context.Context, m domain.Membership) error {
	return s.addMembership(ctx, s.db, m)
}

func (s *Store) addMembership(ctx context.Context, ex execer, m domain.Membership) error {
	_, err := ex.ExecContext(ctx, s.q(addMembershipSQL),
		string(m.Type), m.Scope.ID, m.ItemID, m.CollectionID)
	if err != nil {
		return fmt.Errorf("add membership %s->%s in %s: %w", m.ItemID, m.CollectionID, m.Scope, err)
	}
	return nil
}

func (s *Store) queryItems(ctx context.Context, scope domain.Scope, query string, args ...any) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Item{}
	for rows.Next() {
		it, err := scanItem(rows, scope)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListItems returns the items that are members of collectionID.
func (s *Store) ListItems(ctx context.Context, scope domain.Scope, collectionID string) ([]domain.Item, error) {
	items, err := s.queryItems(ctx, scope, `SELECT i.id, i.title, i.metadata
		FROM items i
		JOIN item_collections ic
		  ON ic.item_id = i.id
		 AND ic.library_type = i.library_type
		 AND ic.library_id = i.library_id
		WHERE ic.library_type = ? AND ic.library_id = ? AND ic.collection_id = ?
		ORDER BY LOWER(i.title), i.id`, string(scope.Type), scope.ID, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list collection items: %w", err)
	}
	return items, nil
}

// ListAllItems returns every item of a library.
func (s *Store) ListAllItems(ctx context.Context, scope domain.Scope) ([]domain.Item, error) {
	items, err := s.queryItems(ctx, scope, `SELECT id, title, metadata FROM items
		WHERE library_type = ? AND library_id = ?
		ORDER BY LOWER(title), id`, string(scope.Type), scope.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// SearchItems returns items whose title contains query. Matching ignores
// ASCII case on sqlite and full case on postgres. LIKE wildcards in query
// match literally.
func (s *Store) SearchItems(ctx context.Context, scope domain.Scope, query string) ([]domain.Item, error) {
	pattern := "%" + escapeLike(query) + "%"
	items, err := s.queryItems(ctx, scope, `SELECT id, title, metadata FROM items
		WHERE library_type = ? AND library_id = ? AND title `+s.likeOp()+` ? ESCAPE '\'
		ORDER BY LOWER(title), id`, string(scope.Type), scope.ID, pattern)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return items, nil
}

// GetItem returns one item or store.ErrNotFound.
func (s *Store) GetItem(ctx context.Context, scope domain.Scope, id string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT id, title, metadata FROM items
		WHERE library_type = ? AND library_id = ? AND id = ?`), string(scope.Type), scope.ID, id)
	it, err := scanItem(row, scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage(fmt.Sprintf("item %s not found in %s", id, scope))
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
