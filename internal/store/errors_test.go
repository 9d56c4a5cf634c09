package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zotairo/zotairo-server/internal/store"
)

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := store.ErrNotFound.WithCause(cause)

	assert.Contains(t, err.Error(), "resource not found")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.ErrorIs(t, err, cause)
}

func TestError_WithMessageStillMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("get item: %w", store.ErrNotFound.WithMessage("item ABCD not found"))

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NotErrorIs(t, err, store.ErrInvalidInput)

	var storeErr *store.Error
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, http.StatusNotFound, storeErr.HTTPCode())
	assert.Equal(t, "item ABCD not found", storeErr.Error())
}
