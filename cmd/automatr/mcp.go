package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/mcpserver"
)

var mcpFlags struct {
	http string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the composition tools over MCP",
	Long: `Serve list_services, list_events and create_automation as MCP tools.

By default the server speaks over stdin/stdout, the way MCP clients launch
local tools. Use --http to serve streamable HTTP on an address instead.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpFlags.http, "http", "", "Serve streamable HTTP on this address (e.g. localhost:8090)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcpserver.New(a.loader, a.submitter(), version)

	if mcpFlags.http == "" {
		return srv.ServeStdio()
	}

	if _, err := srv.Start(cmd.Context(), mcpFlags.http); err != nil {
		return err
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			logger.Warn("Error stopping MCP server: %v", err)
		}
	}()
	fmt.Fprintf(os.Stderr, "Serving MCP at %s\n", srv.URL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
	case <-cmd.Context().Done():
	}
	return nil
}
