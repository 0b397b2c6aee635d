// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Linking mechanism kinds for Provider.Kind.
const (
	ProviderOAuth2   = "oauth2"   // authorize URL built client-side
	ProviderRedirect = "redirect" // navigate to a fixed URL
	ProviderBackend  = "backend"  // backend issues the authorize URL
)

// Provider describes how the account of one service gets linked.
type Provider struct {
	Kind        string   `mapstructure:"kind" yaml:"kind"`
	ClientID    string   `mapstructure:"client_id" yaml:"client_id,omitempty"`
	AuthURL     string   `mapstructure:"auth_url" yaml:"auth_url,omitempty"`
	RedirectURL string   `mapstructure:"redirect_url" yaml:"redirect_url,omitempty"`
	Scopes      []string `mapstructure:"scopes" yaml:"scopes,omitempty"`
	Path        string   `mapstructure:"path" yaml:"path,omitempty"` // redirect target or backend connect endpoint
}

// Config holds all configuration values for automatr.
type Config struct {
	APIURL            string              `mapstructure:"api_url" yaml:"api_url"`
	Token             string              `mapstructure:"token" yaml:"token,omitempty"`
	DeepLink          string              `mapstructure:"deep_link" yaml:"deep_link"`
	DetailConcurrency int                 `mapstructure:"detail_concurrency" yaml:"detail_concurrency"`
	Timeout           time.Duration       `mapstructure:"timeout" yaml:"timeout"`
	LogLevel          string              `mapstructure:"log_level" yaml:"log_level"`
	LogFile           string              `mapstructure:"log_file" yaml:"log_file"`
	DataDir           string              `mapstructure:"data_dir" yaml:"data_dir"`
	Journal           bool                `mapstructure:"journal" yaml:"journal"`
	Providers         map[string]Provider `mapstructure:"providers" yaml:"providers,omitempty"`
}

// envKeys lists the keys that can be overridden with AUTOMATR_* variables.
var envKeys = []string{
	"api_url",
	"token",
	"deep_link",
	"detail_concurrency",
	"timeout",
	"log_level",
	"log_file",
	"data_dir",
	"journal",
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("automatr")

	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("deep_link", "http://localhost:8081/dashboard")
	v.SetDefault("detail_concurrency", 8)
	v.SetDefault("timeout", "15s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("data_dir", ".automatr")
	v.SetDefault("journal", true)

	v.SetEnvPrefix("AUTOMATR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit bindings so Unmarshal sees env values for keys never set in a file.
	for _, key := range envKeys {
		if err := v.BindEnv(key, "AUTOMATR_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns the configuration used when no file or env var is present.
func Default() *Config {
	cfg := &Config{
		APIURL:            "http://localhost:8080",
		DeepLink:          "http://localhost:8081/dashboard",
		DetailConcurrency: 8,
		Timeout:           15 * time.Second,
		LogLevel:          "info",
		DataDir:           ".automatr",
		Journal:           true,
	}
	cfg.applyDefaults()
	return cfg
}

// DefaultProviders returns the built-in linking mechanisms.
func DefaultProviders() map[string]Provider {
	google := Provider{
		Kind:        ProviderOAuth2,
		RedirectURL: "http://localhost:8081/oauth/google/callback",
		Scopes: []string{
			"openid", "email", "profile",
			"https://mail.google.com/",
			"https://www.googleapis.com/auth/drive",
		},
	}
	return map[string]Provider{
		"github":       {Kind: ProviderBackend, Path: "/github/connect/"},
		"spotify":      {Kind: ProviderBackend, Path: "/spotify/connect/"},
		"google":       google,
		"gmail":        google,
		"google-drive": google,
	}
}

// applyDefaults fills providers missing from the loaded config and clamps
// values that would make the client unusable.
func (c *Config) applyDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string]Provider)
	}
	for name, p := range DefaultProviders() {
		if _, ok := c.Providers[name]; !ok {
			c.Providers[name] = p
		}
	}
	if c.DetailConcurrency < 1 {
		c.DetailConcurrency = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/automatr/automatr.yml or $XDG_CONFIG_HOME/automatr/automatr.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "automatr", "automatr.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "automatr", "automatr.yml")
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return "automatr.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// 0600: the file may hold a bearer token
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
