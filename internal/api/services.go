package api

import (
	"github.com/zotairo/zotairo-server/internal/annotation"
	"github.com/zotairo/zotairo-server/internal/service"
)

// Services groups the business services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Library     *service.LibraryService
	Item        *service.ItemService
	Attachment  *service.AttachmentService
	Extraction  *service.ExtractionService
	QA          *service.QAService
	Annotations *annotation.Store
}
