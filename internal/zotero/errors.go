package zotero

import (
	"errors"
	"fmt"

	"github.com/zotairo/zotairo-server/internal/domain"
)

// Sentinel errors for Zotero API operations.
var (
	ErrNotFound     = errors.New("zotero: not found")
	ErrUnauthorized = errors.New("zotero: invalid or missing API key")
	ErrRateLimited  = errors.New("zotero: rate limited by server")
	ErrBadRequest   = errors.New("zotero: bad request")
	ErrServer       = errors.New("zotero: server error")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op    string // listCollections, getItem, downloadFile, ...
	Scope domain.Scope
	Key   string // item or collection key, if applicable
	Err   error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("zotero %s [%s/%s]: %v", e.Op, e.Scope, e.Key, e.Err)
	}
	return fmt.Sprintf("zotero %s [%s]: %v", e.Op, e.Scope, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op string, scope domain.Scope, key string, err error) error {
	return &Error{Op: op, Scope: scope, Key: key, Err: err}
}

// IsNotFound reports whether err means the remote resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
