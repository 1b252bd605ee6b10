// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes tasklint tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tasklint/internal/apperr"
	"github.com/starford/tasklint/internal/docservice"
	"github.com/starford/tasklint/internal/index"
)

const formatURI = "tasklint://format"

// Server wraps the MCP server with tasklint tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all tasklint tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"tasklint",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("validate_document",
		mcp.WithDescription("Parse and validate one outline document. Returns its headings and every finding "+
			"(severity, code, line, message, fixable)."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. projects/home.org)")),
	), s.validateDocument)

	s.mcp.AddTool(mcp.NewTool("fix_document",
		mcp.WithDescription("Repair structural defects in a document. With preview=true the changes are "+
			"returned but nothing is written; otherwise a backup is written first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document")),
		mcp.WithBoolean("preview", mcp.Description("Compute changes without writing (default true)")),
	), s.fixDocument)

	s.mcp.AddTool(mcp.NewTool("vault_report",
		mcp.WithDescription("Summarize findings across all documents, including TASK_IDs shared between documents."),
	), s.vaultReport)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List indexed documents with their finding counts."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
		mcp.WithBoolean("with_issues", mcp.Description("Only documents that have findings")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("search_headings",
		mcp.WithDescription("Search heading titles, tags and TASK_IDs."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchHeadings)

	s.mcp.AddTool(mcp.NewTool("generate_id",
		mcp.WithDescription("Mint a new TASK_ID that no document uses yet. Nothing is written."),
	), s.generateID)

	s.mcp.AddTool(mcp.NewTool("ensure_id",
		mcp.WithDescription("Return the TASK_ID of a heading, adding one to its drawer when it has none. "+
			"An existing valid identifier is never replaced."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document")),
		mcp.WithNumber("heading", mcp.Required(), mcp.Description("0-based index of the heading in document order")),
	), s.ensureID)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the tasklint outline format contract. "+
			"Call this before creating or editing task documents."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Outline Format Contract",
			mcp.WithResourceDescription("Outline format that all task documents must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(path string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path))
	case errors.Is(err, docservice.ErrNoIndex):
		return mcp.NewToolResultError("index unavailable")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) validateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Check(ctx, path)
	if err != nil {
		return errorResult(path, err), nil
	}
	return jsonResult(d)
}

func (s *Server) fixDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	preview := req.GetBool("preview", true)

	o, err := s.svc.Fix(ctx, path, docservice.FixOptions{Preview: preview})
	if err != nil {
		return errorResult(path, err), nil
	}
	return jsonResult(o)
}

func (s *Server) vaultReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Report(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rep)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := index.ListFilter{
		Prefix:     req.GetString("folder", ""),
		WithIssues: req.GetBool("with_issues", false),
	}
	docs, total, err := s.svc.List(ctx, 500, 0, filter)
	if err != nil {
		return errorResult("", err), nil
	}
	return jsonResult(map[string]any{"documents": docs, "total": total})
}

func (s *Server) searchHeadings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return errorResult("", err), nil
	}
	return jsonResult(results)
}

func (s *Server) generateID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.svc.GenerateID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) ensureID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	heading, err := req.RequireInt("heading")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.EnsureID(ctx, path, heading, "")
	if err != nil {
		return errorResult(path, err), nil
	}
	return jsonResult(res)
}

func (s *Server) getFormatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}
