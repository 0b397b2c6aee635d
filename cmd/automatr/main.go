package main

import (
	"context"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/tui/theme"
)

const (
	logoText1 = "▄▀█ █ █ ▀█▀ █▀█ █▀▄▀█ ▄▀█ ▀█▀ █▀█"
	logoText2 = "█▀█ █▄█  █  █▄█ █ ▀ █ █▀█  █  █▀▄"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "automatr",
	Short: "Compose trigger → action automations from the terminal",
}

// renderLogo renders the logo in the theme's accent colors
func renderLogo() string {
	t := theme.Current()
	line1 := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Primary)).Render(logoText1)
	line2 := lipgloss.NewStyle().Foreground(lipgloss.Color(t.Secondary)).Render(logoText2)
	return line1 + "\n" + line2
}

func init() {
	// Set Long description with logo
	rootCmd.Long = renderLogo() + `

automatr builds automations for a trigger/action platform: pick a service
event that starts the automation, then one or more actions it runs. The
wizard loads the service catalog, links accounts, renders each event's
configuration form and submits one automation per action.

The same path is exposed to agents as MCP tools (automatr mcp).`

	rootCmd.PersistentFlags().StringVar(&rootFlags.apiURL, "api-url", "", "Backend base URL (default: from config)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.token, "token", "", "Bearer token (default: from config)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(setupCmd)
}
