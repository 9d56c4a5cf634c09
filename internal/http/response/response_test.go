package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"message": "test"}, discard())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var result Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, Version, result.Version)
	assert.True(t, result.Success)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Error)
}

func TestJSON_ErrorStatus(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNotFound, map[string]string{"message": "test"}, nil)

	var result Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success, "Success should be false for status >= 400")
}

func TestError_CarriesCodeAndMessage(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadGateway, "REMOTE_UNAVAILABLE", "zotero unavailable", nil, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var result ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, Version, result.Version)
	assert.False(t, result.Success)
	assert.Equal(t, "REMOTE_UNAVAILABLE", result.Code)
	assert.Equal(t, "zotero unavailable", result.Message)
	assert.Equal(t, "zotero unavailable", result.Error)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"domain not found", domainerrors.NotFound("attachment file not found"), http.StatusNotFound, "NOT_FOUND"},
		{"domain too large", domainerrors.PayloadTooLargef("file is %d bytes", 200), http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"wrapped domain", errors.Join(errors.New("outer"), domainerrors.Validation("bad name")), http.StatusBadRequest, "VALIDATION"},
		{"store not found", store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"store invalid", store.ErrInvalidInput, http.StatusBadRequest, "VALIDATION"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, tt.err, discard())

			assert.Equal(t, tt.wantCode, w.Code)

			var result ErrorEnvelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			assert.Equal(t, tt.wantBody, result.Code)
			assert.False(t, result.Success)
		})
	}
}

func TestHandleError_HidesInternalMessages(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, errors.New("open /secret/path: permission denied"), nil)

	var result ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "internal server error", result.Message)
}
