package service

import (
	"context"
	"io"

	"github.com/zotairo/zotairo-server/internal/domain"
	"github.com/zotairo/zotairo-server/internal/zotero"
)

// ZoteroAPI is the part of the Zotero client the services call.
type ZoteroAPI interface {
	UserScope() domain.Scope
	ListGroups(ctx context.Context) ([]zotero.Group, error)
	ListCollections(ctx context.Context, scope domain.Scope) ([]zotero.Collection, error)
	ListSubcollections(ctx context.Context, scope domain.Scope, key string) ([]zotero.Collection, error)
	ListTopItems(ctx context.Context, scope domain.Scope, itemType string) ([]zotero.Item, error)
	ListCollectionItems(ctx context.Context, scope domain.Scope, key, itemType string) ([]zotero.Item, error)
	ListItemsByType(ctx context.Context, scope domain.Scope, itemType string) ([]zotero.Item, error)
	GetItem(ctx context.Context, scope domain.Scope, key string) (*zotero.Item, error)
	ListChildren(ctx context.Context, scope domain.Scope, key string) ([]zotero.Item, error)
	DownloadFile(ctx context.Context, scope domain.Scope, key string, w io.Writer) (int64, error)
}

var _ ZoteroAPI = (*zotero.Client)(nil)
