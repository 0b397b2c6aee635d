// Package hooks runs user commands after a submission, e.g. to post the new
// automations to a chat or to commit a record of them.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/automatr/internal/logger"
)

const (
	// ConfigFileName is looked up in the directory automatr create runs in.
	ConfigFileName = ".automatr.hooks.yml"

	// DefaultTimeout applies to hooks without a timeout, in seconds.
	DefaultTimeout = 30
)

// Config is the parsed hooks file.
//
//	version: 1
//	hooks:
//	  post_submit:
//	    - command: notify-send "{{area_name}}: {{created}} created"
//	      timeout: 10
type Config struct {
	Version int         `yaml:"version"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig groups hooks by the point they run at. Only post_submit exists.
type HooksConfig struct {
	PostSubmit []*HookConfig `yaml:"post_submit"`
}

// HookConfig is one shell command.
type HookConfig struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout"`
}

// LoadConfig loads the hooks configuration from the working directory.
// Returns nil if the config file doesn't exist (hooks are optional).
// Returns an error only if the file exists but cannot be parsed.
func LoadConfig(workDir string) (*Config, error) {
	configPath := filepath.Join(workDir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No hooks config found at %s", configPath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hooks config: %w", err)
	}

	logger.Debug("Loaded hooks config from %s (version: %d)", configPath, cfg.Version)
	return &cfg, nil
}

// Variables describe the submission a hook runs for.
type Variables struct {
	AreaName string
	Trigger  string   // "service/event"
	AreaIDs  []string // of the created automations
	Created  int
	Failed   int
}

func (v Variables) values() map[string]string {
	return map[string]string{
		"area_name": v.AreaName,
		"trigger":   v.Trigger,
		"area_ids":  strings.Join(v.AreaIDs, ","),
		"created":   strconv.Itoa(v.Created),
		"failed":    strconv.Itoa(v.Failed),
	}
}

// Execute runs a hook command and returns its output.
// Variables are exported as AUTOMATR_* environment variables. Placeholders in
// the command ({{area_name}}, {{trigger}}, {{area_ids}}, {{created}},
// {{failed}}) become references to them, so values are never parsed by the
// shell. Quote them like any variable: "{{area_name}}".
// On error, returns an error message as output and nil error (graceful degradation).
// Only returns error for context cancellation.
func Execute(ctx context.Context, hook *HookConfig, workDir string, vars Variables) (string, error) {
	if hook == nil || hook.Command == "" {
		return "", nil
	}

	command := expandVariables(hook.Command, vars)
	logger.Debug("Executing hook command: %s", command)

	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	for k, v := range vars.values() {
		cmd.Env = append(cmd.Env, envName(k)+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// Check for context cancellation (propagate this)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if execCtx.Err() == context.DeadlineExceeded {
		logger.Warn("Hook command timed out after %ds: %s", timeout, command)
		return fmt.Sprintf("[Hook timed out after %ds]\nPartial output:\n%s", timeout, stdout.String()), nil
	}

	if err != nil {
		logger.Warn("Hook command failed: %v", err)
		output := stdout.String()
		if stderr.Len() > 0 {
			output += "\n[stderr]\n" + stderr.String()
		}
		return fmt.Sprintf("[Hook command failed: %v]\n%s", err, output), nil
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		logger.Debug("Hook stderr: %s", stderr.String())
		output += "\n[stderr]\n" + stderr.String()
	}

	logger.Debug("Hook executed successfully, output length: %d bytes", len(output))
	return output, nil
}

// ExecuteAll runs hooks in order and joins their non-empty outputs with a
// blank line. It stops at the first context cancellation.
func ExecuteAll(ctx context.Context, hooks []*HookConfig, workDir string, vars Variables) (string, error) {
	var outputs []string
	for _, hook := range hooks {
		out, err := Execute(ctx, hook, workDir, vars)
		if err != nil {
			return strings.Join(outputs, "\n"), err
		}
		if out != "" {
			outputs = append(outputs, out)
		}
	}
	return strings.Join(outputs, "\n"), nil
}

func envName(variable string) string {
	return "AUTOMATR_" + strings.ToUpper(variable)
}

// expandVariables replaces {{variable}} placeholders with ${AUTOMATR_*}
// references.
func expandVariables(command string, vars Variables) string {
	result := command
	for name := range vars.values() {
		result = strings.ReplaceAll(result, "{{"+name+"}}", "${"+envName(name)+"}")
	}
	return result
}
