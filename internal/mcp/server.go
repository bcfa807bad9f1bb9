// Package mcp exposes an engine.Engine as MCP tools over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memvra/dejavu/internal/engine"
)

// Server wraps an engine with MCP tool handlers.
type Server struct {
	engine  *engine.Engine
	mcp     *server.MCPServer
	version string
}

// NewServer registers every tool against e.
func NewServer(e *engine.Engine, version string) *Server {
	s := &Server{
		engine:  e,
		version: version,
		mcp:     server.NewMCPServer("dejavu", version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// ServeStdio blocks serving requests on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("add_message",
		mcp.WithDescription("Record a message and get an adaptive response: a pointer to earlier material when the topic was already covered, or a signal that a full answer is needed."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The message text")),
		mcp.WithString("session_id", mcp.Description("Optional session identifier")),
	), s.handleAddMessage)

	s.mcp.AddTool(mcp.NewTool("find_similar",
		mcp.WithDescription("List cached units most similar to a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
		mcp.WithNumber("k", mcp.Description("Maximum number of results (default 5)")),
	), s.handleFindSimilar)

	s.mcp.AddTool(mcp.NewTool("get_unit",
		mcp.WithDescription("Show a cached unit and its decompressed entries."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Unit ID")),
	), s.handleGetUnit)

	s.mcp.AddTool(mcp.NewTool("force_rotate",
		mcp.WithDescription("Close and cache the open unit now."),
	), s.handleForceRotate)

	s.mcp.AddTool(mcp.NewTool("vacuum",
		mcp.WithDescription("Evict cached units older than the temporal window."),
	), s.handleVacuum)

	s.mcp.AddTool(mcp.NewTool("stats",
		mcp.WithDescription("Report cache and compression statistics."),
	), s.handleStats)
}

