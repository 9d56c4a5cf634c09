// Package store defines the relational mirror of the remote libraries.
// Implementations live in subpackages; services depend only on these interfaces.
package store

import (
	"context"

	"github.com/zotairo/zotairo-server/internal/domain"
)

// Reader serves scope-filtered queries over the mirror.
type Reader interface {
	ListCollections(ctx context.Context, scope domain.Scope) ([]domain.Collection, error)
	ListSubcollections(ctx context.Context, scope domain.Scope, parentID string) ([]domain.SubcollectionInfo, error)
	ListItems(ctx context.Context, scope domain.Scope, collectionID string) ([]domain.Item, error)
	ListAllItems(ctx context.Context, scope domain.Scope) ([]domain.Item, error)
	SearchItems(ctx context.Context, scope domain.Scope, query string) ([]domain.Item, error)
	GetItem(ctx context.Context, scope domain.Scope, id string) (*domain.Item, error)
	ListChildCollectionIDs(ctx context.Context, scope domain.Scope, parentID string) ([]string, error)
	Counts(ctx context.Context) (domain.Counts, error)
}

// Writer mutates the mirror. The mirror sync is its only production caller.
type Writer interface {
	UpsertCollection(ctx context.Context, c domain.Collection) error
	UpsertItem(ctx context.Context, it domain.Item) error
	AddMembership(ctx context.Context, m domain.Membership) error
	ReplaceAll(ctx context.Context, snap *domain.Snapshot) error
}

// Store is the full relational store.
type Store interface {
	Reader
	Writer
	Close() error
}
