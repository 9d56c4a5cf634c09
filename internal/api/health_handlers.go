package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zotairo/zotairo-server/internal/domain"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, unhealthy or disabled"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	Mirror     *domain.Counts             `json:"mirror,omitempty" doc:"Row counts of the relational mirror"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	merge := func(name string, h ComponentHealth) {
		components[name] = h
		switch h.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	dbHealth, counts := s.checkDatabase(ctx)
	merge("database", dbHealth)
	merge("search", s.checkSearchIndex())

	webdav := ComponentHealth{Status: "disabled", Message: "attachment mirror not configured"}
	if s.opts.WebDAVEnabled {
		webdav = ComponentHealth{Status: "healthy", Message: "attachment mirror configured"}
	}
	components["webdav"] = webdav

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
			Mirror:     counts,
		},
	}, nil
}

// checkDatabase pings the relational store and reads its row counts.
func (s *Server) checkDatabase(ctx context.Context) (ComponentHealth, *domain.Counts) {
	if s.opts.Store == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "database not configured",
		}, nil
	}

	start := time.Now()
	err := s.opts.Store.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database unreachable",
		}, nil
	}

	counts, err := s.opts.Store.Counts(ctx)
	if err != nil {
		return ComponentHealth{
			Status:  "degraded",
			Latency: latency.String(),
			Message: "database read failed",
		}, nil
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}, &counts
}

// checkSearchIndex verifies the Bleve index is accessible.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.opts.Index == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "search index not configured",
		}
	}

	start := time.Now()
	docCount, err := s.opts.Index.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}

	// Empty until the first mirror sync finishes.
	if docCount == 0 {
		return ComponentHealth{
			Status:  "degraded",
			Latency: latency.String(),
			Message: "search index empty",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
		Message: strconv.FormatUint(docCount, 10) + " documents",
	}
}
