package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/automatr/internal/config"
)

var setupFlags struct {
	project bool
	force   bool
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create automatr configuration file",
	Long: `Create an automatr configuration file with sensible defaults.

By default, creates a global config at ~/.config/automatr/automatr.yml.
Use --project to create a project-local config in the current directory.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
}

func runSetup(cmd *cobra.Command, args []string) error {
	// Determine target path
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	// Check if config already exists
	if !setupFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	cfg := setupConfig()

	var err error
	if setupFlags.project {
		err = config.WriteProject(cfg)
	} else {
		err = config.WriteGlobal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Config written to: %s\n\n", targetPath)
	if cfg.Token == "" {
		fmt.Println("No token stored; add one with 'automatr setup --force --token <token>' to create automations.")
	}
	fmt.Println("Run 'automatr create' to get started.")
	return nil
}

// setupConfig returns the defaults with --api-url and --token applied.
func setupConfig() *config.Config {
	cfg := config.Default()
	if rootFlags.apiURL != "" {
		cfg.APIURL = strings.TrimRight(rootFlags.apiURL, "/")
	}
	if rootFlags.token != "" {
		cfg.Token = rootFlags.token
	}
	return cfg
}

// fileExists checks if a file exists (helper for setup command).
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
