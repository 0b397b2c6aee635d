// Package catalog loads the services offered by the backend and the triggers
// and reactions of each one.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/automatr/internal/api"
	"github.com/mark3labs/automatr/internal/logger"
)

// ErrCatalogUnavailable means the service list itself could not be fetched.
// Nothing can be composed without it.
var ErrCatalogUnavailable = errors.New("service catalog unavailable")

// Source is the subset of the backend client the loader needs.
type Source interface {
	ListServices(ctx context.Context) ([]api.ServiceSummary, error)
	GetService(ctx context.Context, remoteID string) (*api.ServiceDetail, error)
}

// Loader fetches a Catalog in two phases: the service list, then the details
// of every service concurrently.
type Loader struct {
	src         Source
	concurrency int
}

// NewLoader creates a loader that runs at most concurrency detail requests at
// a time. Values below 1 mean one at a time.
func NewLoader(src Source, concurrency int) *Loader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Loader{src: src, concurrency: concurrency}
}

// Services runs the first phase. The returned catalog lists services but has
// no events yet; DetailsLoaded reports false.
func (l *Loader) Services(ctx context.Context) (*Catalog, error) {
	summaries, err := l.src.ListServices(ctx)
	if err != nil {
		logger.Error("Failed to load service list: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	c := &Catalog{
		Services: make([]Service, 0, len(summaries)),
		Triggers: make(map[string][]Event),
		Actions:  make(map[string][]Event),
	}
	for _, s := range summaries {
		id := s.Name
		if id == "" {
			id = s.ID
		}
		c.Services = append(c.Services, Service{
			ID:           id,
			RemoteID:     s.ID,
			Name:         s.DisplayName,
			IconURL:      s.IconURL,
			Connected:    s.IsConnected,
			RequiresAuth: s.RequiresAuth,
			TriggerCount: s.ActionsCount,
			ActionCount:  s.ReactionsCount,
		})
	}
	logger.Debug("Loaded %d services", len(c.Services))
	return c, nil
}

// detailResult is one fan-out slot. Each goroutine writes only its own slot.
type detailResult struct {
	triggers []Event
	actions  []Event
	err      error
}

// Details runs the second phase against a catalog returned by Services and
// returns a new catalog with events merged in. A service whose detail request
// fails keeps empty event lists and is recorded in Gaps.
func (l *Loader) Details(ctx context.Context, base *Catalog) *Catalog {
	results := make([]detailResult, len(base.Services))

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, svc := range base.Services {
		g.Go(func() error {
			results[i] = l.fetchDetail(ctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	c := &Catalog{
		Services:      append([]Service(nil), base.Services...),
		Triggers:      make(map[string][]Event, len(base.Services)),
		Actions:       make(map[string][]Event, len(base.Services)),
		detailsLoaded: true,
	}
	for i, svc := range base.Services {
		r := results[i]
		if r.err != nil {
			logger.Warn("Details of service %s unavailable: %v", svc.ID, r.err)
			c.Gaps = append(c.Gaps, Gap{ServiceID: svc.ID, Err: r.err})
			continue
		}
		c.Triggers[svc.ID] = r.triggers
		c.Actions[svc.ID] = r.actions
	}
	return c
}

// Load runs both phases.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	c, err := l.Services(ctx)
	if err != nil {
		return nil, err
	}
	return l.Details(ctx, c), nil
}

func (l *Loader) fetchDetail(ctx context.Context, svc Service) detailResult {
	detail, err := l.src.GetService(ctx, svc.RemoteID)
	if err != nil {
		return detailResult{err: err}
	}
	return detailResult{
		triggers: eventsFromSpecs(svc.ID, detail.Actions),
		actions:  eventsFromSpecs(svc.ID, detail.Reactions),
	}
}

func eventsFromSpecs(serviceID string, specs []api.EventSpec) []Event {
	events := make([]Event, 0, len(specs))
	for _, s := range specs {
		name := s.DisplayName
		if name == "" {
			name = s.Name
		}
		events = append(events, Event{
			ID:          s.Name,
			ServiceID:   serviceID,
			Name:        name,
			Description: s.Description,
			Fields:      FieldsFromParams(s.Params),
		})
	}
	return events
}
