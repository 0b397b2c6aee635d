package testfixtures

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mark3labs/automatr/internal/api"
	"github.com/mark3labs/automatr/internal/catalog"
)

// ErrOffline is returned by fakes configured to fail.
var ErrOffline = errors.New("offline")

// FakeAPI stands in for the backend client. It serves option lists,
// authorize links and create requests from memory.
type FakeAPI struct {
	mu sync.Mutex

	Options    map[string][]api.Option // by options URL
	OptionErrs map[string]error        // by options URL
	FailCreate map[string]bool         // by action service
	Anonymous  bool

	OptionCalls []string
	Created     []api.CreateAreaRequest
}

// NewFakeAPI returns a backend serving the option lists of Catalog.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		Options: map[string][]api.Option{
			ReposURL: {
				{ID: "octo/hello", Name: "octo/hello"},
				{ID: "octo/world", Name: "octo/world"},
			},
			ChannelsURL: {
				{ID: "c-general", Name: "#general"},
				{ID: "c-alerts", Name: "#alerts"},
			},
		},
		OptionErrs: map[string]error{},
		FailCreate: map[string]bool{},
	}
}

// FetchOptions returns the configured options for ref.
func (f *FakeAPI) FetchOptions(ctx context.Context, ref string) ([]api.Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OptionCalls = append(f.OptionCalls, ref)
	if err := f.OptionErrs[ref]; err != nil {
		return nil, err
	}
	return f.Options[ref], nil
}

// SetOptionErr makes the next fetches of ref fail, or succeed again with nil.
func (f *FakeAPI) SetOptionErr(ref string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OptionErrs[ref] = err
}

// CreateArea records req and fails for services listed in FailCreate.
func (f *FakeAPI) CreateArea(ctx context.Context, req api.CreateAreaRequest) (*api.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = append(f.Created, req)
	if f.FailCreate[req.ActionServiceID] {
		return nil, api.ErrNetwork
	}
	return &api.Area{ID: "area-" + req.ActionServiceID, Name: req.Name, Enabled: true}, nil
}

// HasCredential reports false when Anonymous is set.
func (f *FakeAPI) HasCredential() bool { return !f.Anonymous }

// ConnectURL returns a fixed authorize link for path.
func (f *FakeAPI) ConnectURL(ctx context.Context, path, next string) (string, error) {
	return "https://auth.example.com" + path + "?next=" + next, nil
}

// ResolveURL prefixes relative references with a fixed base.
func (f *FakeAPI) ResolveURL(ref string) string {
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	return "http://api.test" + ref
}

// Requests returns a copy of the recorded create requests.
func (f *FakeAPI) Requests() []api.CreateAreaRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.CreateAreaRequest(nil), f.Created...)
}

// FakeLoader serves a catalog in two phases without a network.
type FakeLoader struct {
	Catalog     *catalog.Catalog
	ServicesErr error

	mu    sync.Mutex
	calls int
}

// NewFakeLoader serves Catalog.
func NewFakeLoader() *FakeLoader {
	return &FakeLoader{Catalog: Catalog()}
}

// Services returns the service list of the catalog, without events.
func (l *FakeLoader) Services(ctx context.Context) (*catalog.Catalog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.ServicesErr != nil {
		return nil, errors.Join(catalog.ErrCatalogUnavailable, l.ServicesErr)
	}
	return &catalog.Catalog{Services: l.Catalog.Services}, nil
}

// Details returns the full catalog.
func (l *FakeLoader) Details(ctx context.Context, base *catalog.Catalog) *catalog.Catalog {
	return l.Catalog
}

// Calls returns how many times the service list was requested.
func (l *FakeLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
