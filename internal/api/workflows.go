package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"mail-agent/backend/internal/services"
	"mail-agent/backend/pkg/models"
)

// ProcessPrompt runs the free-text workflow.
// (POST /ai/process)
func (s *Server) ProcessPrompt(c echo.Context) error {
	var req AIPromptRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return models.Invalid("prompt", "is required")
	}

	result, err := s.Coordinator.Handle(c.Request().Context(), services.ComposePrompt(req.Prompt, req.Context), req.Service)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// GenerateSummary summarizes the posted JSON object.
// (POST /ai/generate-summary)
func (s *Server) GenerateSummary(c echo.Context, params GenerateSummaryParams) error {
	var data map[string]any
	if err := bind(c, &data); err != nil {
		return err
	}

	result, err := s.Coordinator.GenerateSummary(c.Request().Context(), data, deref(params.Service))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// CompleteInternSetup onboards one subject end to end.
// (POST /workflow/complete-intern-setup)
func (s *Server) CompleteInternSetup(c echo.Context, params WorkflowParams) error {
	var req InternData
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := s.Coordinator.Onboard(c.Request().Context(), req.Subject(), deref(params.Service))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// BulkInternSetup onboards a list of subjects on the bounded worker pool.
// (POST /workflow/bulk-intern-setup)
func (s *Server) BulkInternSetup(c echo.Context, params WorkflowParams) error {
	var req []InternData
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := s.Coordinator.OnboardBatch(c.Request().Context(), subjects(req), deref(params.Service))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// ResumeWorkflowRun continues an interrupted onboarding from its cursor.
// (POST /workflow/runs/{runId}/resume)
func (s *Server) ResumeWorkflowRun(c echo.Context, runId string, params WorkflowParams) error {
	result, err := s.Coordinator.ResumeOnboarding(c.Request().Context(), runId, deref(params.Service))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
