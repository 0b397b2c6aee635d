// Package linking decides whether a service account is linked and starts the
// external flow that links it.
package linking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/config"
	"github.com/mark3labs/automatr/internal/logger"
)

// ErrLinkUnsupported means no linking mechanism is configured for a service.
var ErrLinkUnsupported = errors.New("account linking not supported")

// Outcome tells the caller what Link did.
type Outcome int

const (
	// Linked means the service was marked linked without leaving the client.
	Linked Outcome = iota
	// Redirected means the user was sent to an external authorize page.
	// Linkage shows up on the next catalog load.
	Redirected
)

// Result is returned by Link.
type Result struct {
	Outcome Outcome
	URL     string // set when Redirected
}

// Backend issues authorize links and resolves relative paths.
type Backend interface {
	ConnectURL(ctx context.Context, path, next string) (string, error)
	ResolveURL(ref string) string
}

// Navigator sends the user to a URL.
type Navigator interface {
	Open(url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string) error

// Open calls f.
func (f NavigatorFunc) Open(url string) error { return f(url) }

// Browser opens URLs in the system browser.
var Browser Navigator = NavigatorFunc(func(u string) error {
	// The TUI owns the terminal.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return browser.OpenURL(u)
})

// Bridge links service accounts. It never polls; linkage reported by the
// backend is refreshed only by reloading the catalog.
type Bridge struct {
	providers map[string]config.Provider
	backend   Backend
	nav       Navigator
	deepLink  string

	mu     sync.Mutex
	marked map[string]bool
}

// New creates a bridge. deepLink is the callback target handed to providers.
func New(providers map[string]config.Provider, backend Backend, nav Navigator, deepLink string) *Bridge {
	if nav == nil {
		nav = Browser
	}
	return &Bridge{
		providers: providers,
		backend:   backend,
		nav:       nav,
		deepLink:  deepLink,
		marked:    make(map[string]bool),
	}
}

// IsLinked reports whether the account for s is usable.
func (b *Bridge) IsLinked(s catalog.Service) bool {
	if s.AlwaysLinked() || s.Connected {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.marked[s.ID]
}

// Supported reports whether Link could start a flow for s.
func (b *Bridge) Supported(s catalog.Service) bool {
	if s.AlwaysLinked() {
		return true
	}
	_, ok := b.providers[s.ID]
	return ok
}

// Link links the account for s. Services that need no account are marked
// linked synchronously; otherwise the provider flow is started.
func (b *Bridge) Link(ctx context.Context, s catalog.Service) (Result, error) {
	if s.AlwaysLinked() {
		b.mu.Lock()
		b.marked[s.ID] = true
		b.mu.Unlock()
		return Result{Outcome: Linked}, nil
	}

	target, err := b.AuthorizeURL(ctx, s)
	if err != nil {
		return Result{}, err
	}
	logger.Info("Opening authorize page for %s", s.ID)
	if err := b.nav.Open(target); err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", target, err)
	}
	return Result{Outcome: Redirected, URL: target}, nil
}

// AuthorizeURL computes the provider URL for s without navigating.
func (b *Bridge) AuthorizeURL(ctx context.Context, s catalog.Service) (string, error) {
	p, ok := b.providers[s.ID]
	if !ok {
		logger.Warn("No linking mechanism configured for %s", s.ID)
		return "", fmt.Errorf("%s: %w", s.ID, ErrLinkUnsupported)
	}

	switch p.Kind {
	case config.ProviderBackend:
		if b.backend == nil {
			return "", fmt.Errorf("%s: no backend: %w", s.ID, ErrLinkUnsupported)
		}
		return b.backend.ConnectURL(ctx, p.Path, b.deepLink)
	case config.ProviderRedirect:
		if p.Path == "" {
			return "", fmt.Errorf("%s: empty redirect path: %w", s.ID, ErrLinkUnsupported)
		}
		return b.redirectURL(p.Path)
	case config.ProviderOAuth2:
		return b.oauthURL(s.ID, p)
	default:
		return "", fmt.Errorf("%s: unknown provider kind %q: %w", s.ID, p.Kind, ErrLinkUnsupported)
	}
}

func (b *Bridge) redirectURL(path string) (string, error) {
	target := path
	if b.backend != nil {
		target = b.backend.ResolveURL(path)
	}
	if b.deepLink == "" {
		return target, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing redirect %s: %w", path, err)
	}
	q := u.Query()
	q.Set("next", b.deepLink)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (b *Bridge) oauthURL(serviceID string, p config.Provider) (string, error) {
	if p.ClientID == "" {
		return "", fmt.Errorf("%s: oauth2 client_id not configured: %w", serviceID, ErrLinkUnsupported)
	}

	endpoint := endpointFor(serviceID)
	if p.AuthURL != "" {
		endpoint = oauth2.Endpoint{AuthURL: p.AuthURL}
	}
	if endpoint.AuthURL == "" {
		return "", fmt.Errorf("%s: oauth2 auth_url not configured: %w", serviceID, ErrLinkUnsupported)
	}

	redirect := p.RedirectURL
	if redirect == "" {
		redirect = b.deepLink
	}

	cfg := &oauth2.Config{
		ClientID:    p.ClientID,
		RedirectURL: redirect,
		Scopes:      p.Scopes,
		Endpoint:    endpoint,
	}
	return cfg.AuthCodeURL(uuid.NewString(),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// endpointFor returns the well-known endpoint for a service slug.
func endpointFor(serviceID string) oauth2.Endpoint {
	switch {
	case serviceID == "gmail" || strings.HasPrefix(serviceID, "google"):
		return endpoints.Google
	case serviceID == "github":
		return endpoints.GitHub
	case serviceID == "spotify":
		return endpoints.Spotify
	case serviceID == "discord":
		return endpoints.Discord
	default:
		return oauth2.Endpoint{}
	}
}
