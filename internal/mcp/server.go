package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/listingsearch/internal/logging"
	"github.com/dshills/listingsearch/internal/searcher"
	"github.com/dshills/listingsearch/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "listingsearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// ErrNoSearcher is returned when the server is built without a searcher
var ErrNoSearcher = errors.New("mcp: searcher is required")

// Deps are the application components the tools operate on
type Deps struct {
	Searcher *searcher.Searcher

	// Store enables create_listing and storage statistics. It is nil when
	// listings come from a read-only source.
	Store storage.Storage

	Logger *logging.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	searcher *searcher.Searcher
	logger   *logging.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps) (*Server, error) {
	if deps.Searcher == nil {
		return nil, ErrNoSearcher
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		storage:  deps.Store,
		searcher: deps.Searcher,
		logger:   logger.With("component", "mcp"),
	}

	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until the client
// disconnects. Closing the store is left to the caller.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving on stdio", "writes_enabled", s.storage != nil)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchListingsTool(), s.handleSearchListings)
	s.mcp.AddTool(invalidateCacheTool(), s.handleInvalidateCache)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	if s.storage != nil {
		s.mcp.AddTool(createListingTool(), s.handleCreateListing)
	}
}
