// Package mcpserver exposes the catalog and the composition path as MCP tools
// so an agent can build automations the same way the wizard does.
package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/wizard"
)

// CatalogLoader loads the full catalog.
type CatalogLoader interface {
	Load(ctx context.Context) (*catalog.Catalog, error)
}

// Submitter creates the automations of a composition.
type Submitter interface {
	Submit(ctx context.Context, st wizard.State) (submit.Result, error)
}

// Server serves the automatr tools over streamable HTTP or stdio.
type Server struct {
	loader    CatalogLoader
	submitter Submitter
	version   string

	mcpServer *server.MCPServer
	stdServer *http.Server
	port      int
	mu        sync.Mutex
	catalog   *catalog.Catalog
}

// New creates a server. Nothing is served until Start or ServeStdio.
func New(loader CatalogLoader, submitter Submitter, version string) *Server {
	s := &Server{
		loader:    loader,
		submitter: submitter,
		version:   version,
	}
	s.mcpServer = server.NewMCPServer(
		"automatr",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Start serves on addr ("127.0.0.1:0" picks a free port) and returns the
// bound port once the listener is open.
func (s *Server) Start(ctx context.Context, addr string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, fmt.Errorf("server already started")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true)))
	s.stdServer = &http.Server{Handler: mux}

	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP server error: %v", err)
		}
	}()

	logger.Info("MCP server ready on port %d", s.port)
	return s.port, nil
}

// ServeStdio serves over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Stop shuts the HTTP server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil
	}
	if err := s.stdServer.Shutdown(context.Background()); err != nil {
		logger.Warn("Error stopping MCP server: %v", err)
		return fmt.Errorf("failed to stop server: %w", err)
	}
	s.stdServer = nil
	return nil
}

// URL returns the MCP endpoint.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}

// loadCatalog loads the catalog once. A failed load is retried on the next
// call.
func (s *Server) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog != nil {
		return s.catalog, nil
	}
	c, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.catalog = c
	return c, nil
}
