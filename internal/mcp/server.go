// Package mcp exposes the mail agent workflows as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mail-agent/backend/internal/repository"
	"mail-agent/backend/pkg/models"
)

const defaultQueryLimit = 25

// Workflows is the part of the coordinator reachable over MCP.
type Workflows interface {
	Handle(ctx context.Context, prompt, service string) (*models.WorkflowResult, error)
	Onboard(ctx context.Context, subject models.Subject, service string) (*models.OnboardingResult, error)
}

type Server struct {
	mcpServer *server.MCPServer
	workflows Workflows
	store     repository.RecordStore
}

func NewServer(workflows Workflows, store repository.RecordStore, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Mail Agent",
			version,
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
		store:     store,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"process_prompt",
			mcp.WithDescription("Answer a free-text request, consulting stored records and mailing the answer when the request asks for it"),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("The request text")),
			mcp.WithString("service", mcp.Description("Content generator: anthropic, sidecar or offline")),
		),
		s.handleProcessPrompt,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"onboard_subject",
			mcp.WithDescription("Onboard a new intern: store the record, create the mailbox, send credentials and a welcome message"),
			mcp.WithString("name", mcp.Required(), mcp.Description("Full name")),
			mcp.WithString("personal_email", mcp.Description("Address that receives the credentials")),
			mcp.WithString("department", mcp.Description("Department joined")),
			mcp.WithString("start_date", mcp.Description("First working day")),
			mcp.WithString("service", mcp.Description("Content generator for the welcome message")),
		),
		s.handleOnboardSubject,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"query_records",
			mcp.WithDescription("List records of a collection such as interns, policies or reports"),
			mcp.WithString("collection", mcp.Required(), mcp.Description("Collection name")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of records, default 25")),
		),
		s.handleQueryRecords,
	)
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleProcessPrompt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	prompt := stringArg(args, "prompt")
	if prompt == "" {
		return mcp.NewToolResultError("Missing required parameter: prompt"), nil
	}

	result, err := s.workflows.Handle(ctx, prompt, stringArg(args, "service"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to process prompt: %v", err)), nil
	}
	return jsonResult(result)
}

func (s *Server) handleOnboardSubject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	name := stringArg(args, "name")
	if name == "" {
		return mcp.NewToolResultError("Missing required parameter: name"), nil
	}

	subject := models.Subject{
		Name:          name,
		PersonalEmail: stringArg(args, "personal_email"),
		Department:    stringArg(args, "department"),
		StartDate:     stringArg(args, "start_date"),
	}
	result, err := s.workflows.Onboard(ctx, subject, stringArg(args, "service"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to onboard %s: %v", name, err)), nil
	}
	return jsonResult(result)
}

func (s *Server) handleQueryRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	collection := stringArg(args, "collection")
	if collection == "" {
		return mcp.NewToolResultError("Missing required parameter: collection"), nil
	}
	limit := defaultQueryLimit
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}

	recs, err := s.store.Query(ctx, collection, nil, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to query %s: %v", collection, err)), nil
	}
	return jsonResult(map[string]any{
		"collection": collection,
		"count":      len(recs),
		"data":       recs,
	})
}

// MountHTTPHandlers serves the streamable HTTP transport on /mcp and the
// SSE transport on /mcp/sse and /mcp/message.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	streamable := server.NewStreamableHTTPServer(mcpServer, server.WithEndpointPath("/mcp"))
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.Handle("/mcp", streamable)
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
