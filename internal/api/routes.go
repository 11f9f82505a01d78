package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers behind authentication.
type ServerInterface interface {
	// (POST /ai/process)
	ProcessPrompt(ctx echo.Context) error
	// (POST /ai/generate-summary)
	GenerateSummary(ctx echo.Context, params GenerateSummaryParams) error
	// (POST /workflow/complete-intern-setup)
	CompleteInternSetup(ctx echo.Context, params WorkflowParams) error
	// (POST /workflow/bulk-intern-setup)
	BulkInternSetup(ctx echo.Context, params WorkflowParams) error
	// (POST /workflow/runs/{runId}/resume)
	ResumeWorkflowRun(ctx echo.Context, runId string, params WorkflowParams) error
	// (GET /database/interns)
	ListInterns(ctx echo.Context, params ListInternsParams) error
	// (POST /database/intern)
	AddIntern(ctx echo.Context) error
	// (GET /database/settings)
	GetSettings(ctx echo.Context) error
	// (GET /database/documents/{collection})
	ListDocuments(ctx echo.Context, collection string, params ListDocumentsParams) error
	// (POST /database/documents/{collection})
	CreateDocument(ctx echo.Context, collection string) error
	// (GET /database/documents/{collection}/{id})
	GetDocument(ctx echo.Context, collection string, id string) error
	// (PATCH /database/documents/{collection}/{key})
	UpdateDocument(ctx echo.Context, collection string, key string) error
	// (POST /mail/send)
	SendEmail(ctx echo.Context) error
	// (POST /mail/send-bulk)
	SendBulkEmail(ctx echo.Context) error
	// (POST /mail/send-credentials)
	SendCredentials(ctx echo.Context) error
	// (POST /outlook/create-email)
	CreateAccount(ctx echo.Context) error
	// (POST /outlook/create-email-bulk)
	CreateAccounts(ctx echo.Context) error
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func bindPath(ctx echo.Context, name string, dest *string) error {
	err := runtime.BindStyledParameterWithOptions("simple", name, ctx.Param(name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: %s", name, err))
	}
	return nil
}

func bindService(ctx echo.Context, dest **string) error {
	err := runtime.BindQueryParameter("form", true, false, "service", ctx.QueryParams(), dest)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter service: %s", err))
	}
	return nil
}

// ProcessPrompt converts echo context to params.
func (w *ServerInterfaceWrapper) ProcessPrompt(ctx echo.Context) error {
	return w.Handler.ProcessPrompt(ctx)
}

// GenerateSummary converts echo context to params.
func (w *ServerInterfaceWrapper) GenerateSummary(ctx echo.Context) error {
	var params GenerateSummaryParams
	if err := bindService(ctx, &params.Service); err != nil {
		return err
	}
	return w.Handler.GenerateSummary(ctx, params)
}

// CompleteInternSetup converts echo context to params.
func (w *ServerInterfaceWrapper) CompleteInternSetup(ctx echo.Context) error {
	var params WorkflowParams
	if err := bindService(ctx, &params.Service); err != nil {
		return err
	}
	return w.Handler.CompleteInternSetup(ctx, params)
}

// BulkInternSetup converts echo context to params.
func (w *ServerInterfaceWrapper) BulkInternSetup(ctx echo.Context) error {
	var params WorkflowParams
	if err := bindService(ctx, &params.Service); err != nil {
		return err
	}
	return w.Handler.BulkInternSetup(ctx, params)
}

// ResumeWorkflowRun converts echo context to params.
func (w *ServerInterfaceWrapper) ResumeWorkflowRun(ctx echo.Context) error {
	var runId string
	if err := bindPath(ctx, "runId", &runId); err != nil {
		return err
	}
	var params WorkflowParams
	if err := bindService(ctx, &params.Service); err != nil {
		return err
	}
	return w.Handler.ResumeWorkflowRun(ctx, runId, params)
}

// ListInterns converts echo context to params.
func (w *ServerInterfaceWrapper) ListInterns(ctx echo.Context) error {
	var params ListInternsParams
	err := runtime.BindQueryParameter("form", true, false, "status", ctx.QueryParams(), &params.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter status: %s", err))
	}
	err = runtime.BindQueryParameter("form", true, false, "department", ctx.QueryParams(), &params.Department)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter department: %s", err))
	}
	return w.Handler.ListInterns(ctx, params)
}

// AddIntern converts echo context to params.
func (w *ServerInterfaceWrapper) AddIntern(ctx echo.Context) error {
	return w.Handler.AddIntern(ctx)
}

// GetSettings converts echo context to params.
func (w *ServerInterfaceWrapper) GetSettings(ctx echo.Context) error {
	return w.Handler.GetSettings(ctx)
}

// ListDocuments converts echo context to params.
func (w *ServerInterfaceWrapper) ListDocuments(ctx echo.Context) error {
	var collection string
	if err := bindPath(ctx, "collection", &collection); err != nil {
		return err
	}
	var params ListDocumentsParams
	err := runtime.BindQueryParameter("form", true, false, "limit", ctx.QueryParams(), &params.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter limit: %s", err))
	}
	return w.Handler.ListDocuments(ctx, collection, params)
}

// CreateDocument converts echo context to params.
func (w *ServerInterfaceWrapper) CreateDocument(ctx echo.Context) error {
	var collection string
	if err := bindPath(ctx, "collection", &collection); err != nil {
		return err
	}
	return w.Handler.CreateDocument(ctx, collection)
}

// GetDocument converts echo context to params.
func (w *ServerInterfaceWrapper) GetDocument(ctx echo.Context) error {
	var collection, id string
	if err := bindPath(ctx, "collection", &collection); err != nil {
		return err
	}
	if err := bindPath(ctx, "id", &id); err != nil {
		return err
	}
	return w.Handler.GetDocument(ctx, collection, id)
}

// UpdateDocument converts echo context to params.
func (w *ServerInterfaceWrapper) UpdateDocument(ctx echo.Context) error {
	var collection, key string
	if err := bindPath(ctx, "collection", &collection); err != nil {
		return err
	}
	if err := bindPath(ctx, "key", &key); err != nil {
		return err
	}
	return w.Handler.UpdateDocument(ctx, collection, key)
}

// SendEmail converts echo context to params.
func (w *ServerInterfaceWrapper) SendEmail(ctx echo.Context) error {
	return w.Handler.SendEmail(ctx)
}

// SendBulkEmail converts echo context to params.
func (w *ServerInterfaceWrapper) SendBulkEmail(ctx echo.Context) error {
	return w.Handler.SendBulkEmail(ctx)
}

// SendCredentials converts echo context to params.
func (w *ServerInterfaceWrapper) SendCredentials(ctx echo.Context) error {
	return w.Handler.SendCredentials(ctx)
}

// CreateAccount converts echo context to params.
func (w *ServerInterfaceWrapper) CreateAccount(ctx echo.Context) error {
	return w.Handler.CreateAccount(ctx)
}

// CreateAccounts converts echo context to params.
func (w *ServerInterfaceWrapper) CreateAccounts(ctx echo.Context) error {
	return w.Handler.CreateAccounts(ctx)
}

// EchoRouter is the subset of echo.Echo and echo.Group used for registration.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds each server route to the EchoRouter.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	RegisterHandlersWithBaseURL(router, si, "")
}

// RegisterHandlersWithBaseURL registers handlers, prefixing every path with baseURL.
func RegisterHandlersWithBaseURL(router EchoRouter, si ServerInterface, baseURL string) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}

	router.POST(baseURL+"/ai/process", wrapper.ProcessPrompt)
	router.POST(baseURL+"/ai/generate-summary", wrapper.GenerateSummary)
	router.POST(baseURL+"/workflow/complete-intern-setup", wrapper.CompleteInternSetup)
	router.POST(baseURL+"/workflow/bulk-intern-setup", wrapper.BulkInternSetup)
	router.POST(baseURL+"/workflow/runs/:runId/resume", wrapper.ResumeWorkflowRun)
	router.GET(baseURL+"/database/interns", wrapper.ListInterns)
	router.POST(baseURL+"/database/intern", wrapper.AddIntern)
	router.GET(baseURL+"/database/settings", wrapper.GetSettings)
	router.GET(baseURL+"/database/documents/:collection", wrapper.ListDocuments)
	router.POST(baseURL+"/database/documents/:collection", wrapper.CreateDocument)
	router.GET(baseURL+"/database/documents/:collection/:id", wrapper.GetDocument)
	router.PATCH(baseURL+"/database/documents/:collection/:key", wrapper.UpdateDocument)
	router.POST(baseURL+"/mail/send", wrapper.SendEmail)
	router.POST(baseURL+"/mail/send-bulk", wrapper.SendBulkEmail)
	router.POST(baseURL+"/mail/send-credentials", wrapper.SendCredentials)
	router.POST(baseURL+"/outlook/create-email", wrapper.CreateAccount)
	router.POST(baseURL+"/outlook/create-email-bulk", wrapper.CreateAccounts)
}
