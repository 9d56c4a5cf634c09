package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zotairo/zotairo-server/internal/http/response"
)

// EnvelopeVersion is sent as "v" on every response.
const EnvelopeVersion = response.Version

// APIEnvelope wraps successful responses and errors without a code.
type APIEnvelope = response.Envelope //nolint:revive // API prefix matches APIError

// APIErrorEnvelope wraps errors that carry a machine-readable code.
type APIErrorEnvelope = response.ErrorEnvelope //nolint:revive // API prefix matches APIError

// EnvelopeTransformer wraps every huma response body in the shared envelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	code, _ := strconv.Atoi(status)
	if code < http.StatusBadRequest {
		return APIEnvelope{Version: EnvelopeVersion, Success: true, Data: v}, nil
	}

	err, ok := v.(error)
	if !ok {
		return APIEnvelope{Version: EnvelopeVersion, Error: http.StatusText(code)}, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return APIErrorEnvelope{
			Version: EnvelopeVersion,
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
			Error:   apiErr.Message,
		}, nil
	}
	return APIEnvelope{Version: EnvelopeVersion, Error: err.Error()}, nil
}
