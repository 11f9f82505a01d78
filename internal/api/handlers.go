// Package api contains the HTTP handlers for the mail agent service
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"mail-agent/backend/internal/auth"
	"mail-agent/backend/internal/logging"
	"mail-agent/backend/internal/repository"
	"mail-agent/backend/internal/services"
	"mail-agent/backend/pkg/models"
)

const (
	systemName = "Mail Agent System"
	version    = "2.0.0"
)

// Coordinator is the workflow surface the handlers drive.
type Coordinator interface {
	Handle(ctx context.Context, prompt, service string) (*models.WorkflowResult, error)
	GenerateSummary(ctx context.Context, data map[string]any, service string) (*models.WorkflowResult, error)
	Onboard(ctx context.Context, subject models.Subject, service string) (*models.OnboardingResult, error)
	ResumeOnboarding(ctx context.Context, runID, service string) (*models.OnboardingResult, error)
	OnboardBatch(ctx context.Context, subjects []models.Subject, service string) (*models.BatchOnboardingResult, error)
	Capabilities() map[string]any
	Ping(ctx context.Context) error
}

// Identifier resolves the caller of a request, if any.
type Identifier interface {
	Identify(r *http.Request) (*auth.Identity, bool)
}

// Server holds the dependencies for the API server. Notifier and
// Provisioner may be nil when their backends are not configured.
type Server struct {
	Coordinator Coordinator
	Store       repository.RecordStore
	Notifier    services.Notifier
	Provisioner services.Provisioner
	Identity    Identifier
	Logger      *logging.Logger
	Now         func() time.Time
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates a new Server.
func NewServer(coordinator Coordinator, store repository.RecordStore, notifier services.Notifier, provisioner services.Provisioner, identity Identifier, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		Coordinator: coordinator,
		Store:       store,
		Notifier:    notifier,
		Provisioner: provisioner,
		Identity:    identity,
		Logger:      logger,
		Now:         time.Now,
	}
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Server) identify(c echo.Context) (*auth.Identity, bool) {
	if s.Identity == nil {
		return nil, false
	}
	return s.Identity.Identify(c.Request())
}

func agents() map[string]string {
	return map[string]string{
		"ai_agent":       "Prompt processing and content generation",
		"mail_agent":     "Email delivery",
		"database_agent": "Record storage",
		"outlook_agent":  "Account provisioning",
	}
}

// Root describes the service.
// (GET /)
func (s *Server) Root(c echo.Context) error {
	_, authenticated := s.identify(c)
	return c.JSON(http.StatusOK, map[string]any{
		"system":        systemName,
		"version":       version,
		"architecture":  "4-Agent System",
		"agents":        agents(),
		"status":        "operational",
		"authenticated": authenticated,
	})
}

// Status reports wiring and login state.
// (GET /status)
func (s *Server) Status(c echo.Context) error {
	authStatus := map[string]any{"status": "not_authenticated", "user": nil}
	if id, ok := s.identify(c); ok {
		authStatus = map[string]any{"status": "authenticated", "user": id}
	}
	status := map[string]any{
		"system":         systemName + " 2.0",
		"agents":         agents(),
		"authentication": authStatus,
		"endpoints": map[string]string{
			"ai_processing":     "/ai/process",
			"email_sending":     "/mail/send",
			"database_access":   "/database/interns",
			"account_creation":  "/outlook/create-email",
			"complete_workflow": "/workflow/complete-intern-setup",
		},
		"timestamp": s.now(),
	}
	if s.Coordinator != nil {
		status["capabilities"] = s.Coordinator.Capabilities()
	}
	return c.JSON(http.StatusOK, status)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
}

// Health reports liveness and record store reachability. A store that does
// not answer turns the response into 503.
// (GET /healthz)
func (s *Server) Health(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: s.now(),
		Service:   "mail-agent",
		Version:   version,
		Database:  "ok",
	}
	code := http.StatusOK
	if s.Coordinator != nil {
		if err := s.Coordinator.Ping(c.Request().Context()); err != nil {
			s.Logger.Warn("health check: record store unreachable", "error", err)
			status.Status = "degraded"
			status.Database = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, status)
}

// RegisterPublicHandlers mounts the routes that need no session.
func RegisterPublicHandlers(router EchoRouter, s *Server) {
	router.GET("/", s.Root)
	router.GET("/status", s.Status)
	router.GET("/healthz", s.Health)
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// StatusFor maps an error onto its HTTP status.
func StatusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case timedOut(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// timedOut reports a deadline, either bare or flagged on an upstream call.
func timedOut(err error) bool {
	var up *models.UpstreamCallError
	if errors.As(err, &up) && up.Timeout {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// ErrorHandler renders every handler error as an RFC 7807 Problem Details
// JSON response.
func ErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := StatusFor(err)
		detail := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(he.Code)
			}
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method, "path", c.Path(), "status", status, "error", err)
		}
		problem := ProblemDetails{
			Type:     "about:blank",
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Instance: c.Request().URL.Path,
		}
		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		if err := c.JSON(status, problem); err != nil {
			logger.Error("failed to write problem response", "error", err)
		}
	}
}

// bind decodes the request body only. Path and query values never leak
// into map destinations, and decode failures become 400s.
func bind(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code == http.StatusUnsupportedMediaType {
				return he
			}
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+errString(he.Message))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return nil
}

func errString(v any) string {
	switch m := v.(type) {
	case string:
		return m
	case error:
		return m.Error()
	default:
		return "malformed"
	}
}
