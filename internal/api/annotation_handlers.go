package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zotairo/zotairo-server/internal/annotation"
	domainerrors "github.com/zotairo/zotairo-server/internal/errors"
)

func (s *Server) registerAnnotationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "saveAnnotations",
		Method:      http.MethodPost,
		Path:        "/api/annotations/save",
		Summary:     "Save annotations",
		Description: "Stores the annotation object drawn over a document, replacing any earlier one",
		Tags:        []string{"Annotations"},
	}, s.handleSaveAnnotations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAnnotations",
		Method:      http.MethodGet,
		Path:        "/api/annotations/{filename}",
		Summary:     "Get annotations",
		Description: "Returns the stored annotation object, or an empty object when there is none",
		Tags:        []string{"Annotations"},
	}, s.handleGetAnnotations)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteAnnotations",
		Method:      http.MethodDelete,
		Path:        "/api/annotations/{filename}",
		Summary:     "Delete annotations",
		Tags:        []string{"Annotations"},
	}, s.handleDeleteAnnotations)
}

// SaveAnnotationsInput is the save request.
type SaveAnnotationsInput struct {
	Body struct {
		Filename string         `json:"filename" minLength:"1" doc:"Document filename the annotations belong to"`
		Data     map[string]any `json:"data" doc:"Annotation object, stored verbatim"`
	}
}

// AnnotationStatus reports the outcome of a write.
type AnnotationStatus struct {
	Status  string `json:"status" doc:"success or warning"`
	Message string `json:"message"`
}

// AnnotationStatusOutput wraps a write outcome.
type AnnotationStatusOutput struct {
	Body AnnotationStatus
}

// AnnotationFileInput names a document.
type AnnotationFileInput struct {
	Filename string `path:"filename" minLength:"1" doc:"Document filename"`
}

// AnnotationsOutput contains the stored annotation object.
type AnnotationsOutput struct {
	Body map[string]any
}

func (s *Server) handleSaveAnnotations(_ context.Context, input *SaveAnnotationsInput) (*AnnotationStatusOutput, error) {
	raw, err := json.Marshal(input.Body.Data)
	if err != nil {
		return nil, domainerrors.Validation("annotation data is not valid JSON")
	}
	if err := s.services.Annotations.Save(input.Body.Filename, raw); err != nil {
		if errors.Is(err, annotation.ErrInvalidPayload) {
			return nil, domainerrors.Validation(err.Error())
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to save annotations")
	}
	return &AnnotationStatusOutput{Body: AnnotationStatus{
		Status:  annotation.StatusSuccess,
		Message: "annotations saved for " + input.Body.Filename,
	}}, nil
}

func (s *Server) handleGetAnnotations(_ context.Context, input *AnnotationFileInput) (*AnnotationsOutput, error) {
	raw, err := s.services.Annotations.Get(input.Filename)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to read annotations")
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "stored annotations are corrupt")
	}
	return &AnnotationsOutput{Body: data}, nil
}

func (s *Server) handleDeleteAnnotations(_ context.Context, input *AnnotationFileInput) (*AnnotationStatusOutput, error) {
	result, err := s.services.Annotations.Delete(input.Filename)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete annotations")
	}
	return &AnnotationStatusOutput{Body: AnnotationStatus{Status: result.Status, Message: result.Message}}, nil
}
