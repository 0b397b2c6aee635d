package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/automatr/internal/api"
	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/config"
	"github.com/mark3labs/automatr/internal/journal"
	"github.com/mark3labs/automatr/internal/linking"
	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/submit"
)

var rootFlags struct {
	apiURL   string
	token    string
	logLevel string
}

// app holds the collaborators the commands share.
type app struct {
	cfg     *config.Config
	client  *api.Client
	loader  *catalog.Loader
	bridge  *linking.Bridge
	journal *journal.Store
}

// newApp loads the configuration, applies flag overrides and builds the
// backend client. The journal is opened only when withJournal is set and the
// config enables it; a journal that cannot start is logged and skipped.
func newApp(ctx context.Context, withJournal bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootFlags.apiURL != "" {
		cfg.APIURL = strings.TrimRight(rootFlags.apiURL, "/")
	}
	if rootFlags.token != "" {
		cfg.Token = rootFlags.token
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}

	client := api.New(cfg.APIURL, api.StaticToken(cfg.Token), api.WithTimeout(cfg.Timeout))
	a := &app{
		cfg:    cfg,
		client: client,
		loader: catalog.NewLoader(client, cfg.DetailConcurrency),
		bridge: linking.New(cfg.Providers, client, nil, cfg.DeepLink),
	}

	if withJournal && cfg.Journal {
		store, err := journal.Open(ctx, cfg.DataDir)
		if err != nil {
			logger.Warn("Journal disabled: %v", err)
		} else {
			a.journal = store
		}
	}
	return a, nil
}

// submitter creates automations through the client, recording outcomes in
// the journal when it is open.
func (a *app) submitter() *submit.Submitter {
	var opts []submit.Option
	if a.journal != nil {
		opts = append(opts, submit.WithRecorder(a.journal))
	}
	return submit.New(a.client, opts...)
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warn("Error closing journal: %v", err)
		}
	}
}
