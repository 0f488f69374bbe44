// Package mcp exposes the regulatory knowledge base to MCP clients over
// stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"regrag/internal/retriever"
	"regrag/pkg/models"
)

// Config holds MCP server identity.
type Config struct {
	Name    string
	Version string
}

// Stats reports knowledge base size for the stats tool.
type Stats struct {
	IndexedChunks int            `json:"indexed_chunks"`
	Downloads     int            `json:"downloads"`
	ByCategory    map[string]int `json:"by_category"`
}

// StatsFunc gathers the current knowledge base stats.
type StatsFunc func(ctx context.Context) Stats

// Server wraps the MCP server with retrieval tools.
type Server struct {
	mcpServer *server.MCPServer
	retriever *retriever.Retriever
	stats     StatsFunc
}

// NewServer creates an MCP server exposing search and stats tools.
func NewServer(config Config, r *retriever.Retriever, stats StatsFunc) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		retriever: r,
		stats:     stats,
	}

	searchTool := mcp.NewTool("search_regulations",
		mcp.WithDescription("Search the regulatory document knowledge base by semantic similarity. Returns matching passages with source file, page and score."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of passages to return (default: 5)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	statsTool := mcp.NewTool("knowledge_base_stats",
		mcp.WithDescription("Report how many documents were downloaded per category and how many chunks are indexed."),
	)
	mcpServer.AddTool(statsTool, s.statsHandler)

	return s
}

// searchHandler handles the search_regulations tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	topK := req.GetInt("top_k", retriever.DefaultTopK)

	passages, err := s.handleSearch(ctx, query, topK)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	result, err := json.Marshal(passages)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// statsHandler handles the knowledge_base_stats tool call.
func (s *Server) statsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(s.stats(ctx))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// handleSearch retrieves passages for the query.
func (s *Server) handleSearch(ctx context.Context, query string, topK int) ([]models.Passage, error) {
	return s.retriever.Retrieve(ctx, query, topK)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
