package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
	"github.com/zotairo/zotairo-server/internal/validation"
)

type turn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant model system"`
	Content string `json:"content"`
}

type qaRequest struct {
	File    string `json:"pdf_filename" validate:"required,basename"`
	Prompt  string `json:"prompt" validate:"required"`
	History []turn `json:"history" validate:"dive"`
}

func TestValidate_Valid(t *testing.T) {
	v := validation.New()
	err := v.Validate(qaRequest{File: "paper.pdf", Prompt: "summarize", History: []turn{{Role: "user", Content: "hi"}}})
	assert.NoError(t, err)
}

func TestValidate_UsesJSONNames(t *testing.T) {
	v := validation.New()
	err := v.Validate(qaRequest{})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["pdf_filename"])
	assert.Equal(t, "is required", details["prompt"])
}

func TestValidate_Basename(t *testing.T) {
	v := validation.New()
	tests := []struct {
		name  string
		valid bool
	}{
		{"paper.pdf", true},
		{"../etc/passwd", false},
		{"sub/paper.pdf", false},
		{"..", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(qaRequest{File: tt.name, Prompt: "x"})
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, "must be a plain file name", domainErr.Details.(map[string]string)["pdf_filename"])
		})
	}
}

func TestValidate_NestedPath(t *testing.T) {
	v := validation.New()
	err := v.Validate(qaRequest{File: "a.pdf", Prompt: "x", History: []turn{{Role: "robot"}}})

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	details := domainErr.Details.(map[string]string)
	assert.Contains(t, details["history[0].role"], "must be one of")
}
