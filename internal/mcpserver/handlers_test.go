package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/automatr/internal/api"
	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/submit"
)

type staticLoader struct {
	c     *catalog.Catalog
	err   error
	calls int
}

func (l *staticLoader) Load(ctx context.Context) (*catalog.Catalog, error) {
	l.calls++
	return l.c, l.err
}

type fakeCreator struct {
	mu   sync.Mutex
	reqs []api.CreateAreaRequest
	fail bool
}

func (f *fakeCreator) CreateArea(ctx context.Context, req api.CreateAreaRequest) (*api.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.fail {
		return nil, api.ErrNetwork
	}
	return &api.Area{ID: "area-" + req.ActionServiceID}, nil
}

func (f *fakeCreator) HasCredential() bool { return true }

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]catalog.Service{
			{ID: "timer", Name: "Timer"},
			{ID: "discord", Name: "Discord", Connected: true},
		},
		map[string][]catalog.Event{
			"timer": {{ID: "every_day", Name: "Every day", Fields: []catalog.ConfigField{
				{Name: "hour", Label: "Hour", Kind: catalog.KindNumber, Required: true},
			}}},
		},
		map[string][]catalog.Event{
			"discord": {{ID: "send_message", Name: "Send message", Fields: []catalog.ConfigField{
				{Name: "channel", Label: "Channel", Kind: catalog.KindSelect, OptionsURL: "/discord/channels/"},
			}}},
		},
	)
}

func setupTestServer(t *testing.T) (*Server, *staticLoader, *fakeCreator) {
	t.Helper()
	loader := &staticLoader{c: testCatalog()}
	creator := &fakeCreator{}
	return New(loader, submit.New(creator), "test"), loader, creator
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

// extractText extracts text from CallToolResult.Content[0]
func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if textContent, ok := result.Content[0].(mcp.TextContent); ok {
		return textContent.Text
	}
	return ""
}

func TestListServices(t *testing.T) {
	srv, loader, _ := setupTestServer(t)

	res, err := srv.handleListServices(context.Background(), call("list_services", nil))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var services []serviceView
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &services))
	require.Len(t, services, 2)
	assert.Equal(t, serviceView{ID: "timer", Name: "Timer", Triggers: 1}, services[0])
	assert.True(t, services[1].Connected)

	_, err = srv.handleListServices(context.Background(), call("list_services", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls, "catalog is loaded once")
}

func TestListServices_CatalogUnavailable(t *testing.T) {
	loader := &staticLoader{err: errors.New("service catalog unavailable")}
	srv := New(loader, submit.New(&fakeCreator{}), "test")

	res, err := srv.handleListServices(context.Background(), call("list_services", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	loader.err, loader.c = nil, testCatalog()
	res, err = srv.handleListServices(context.Background(), call("list_services", nil))
	require.NoError(t, err)
	assert.False(t, res.IsError, "failed load is retried")
}

func TestListEvents(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	res, err := srv.handleListEvents(context.Background(), call("list_events", map[string]any{
		"service": "discord",
		"kind":    "action",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(res))

	var events []eventView
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "send_message", events[0].ID)
	require.Len(t, events[0].Fields, 1)
	assert.Equal(t, "select", events[0].Fields[0].Type)
	assert.Equal(t, "/discord/channels/", events[0].Fields[0].OptionsURL)
}

func TestListEvents_Errors(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	tests := []map[string]any{
		{"kind": "trigger"},
		{"service": "slack", "kind": "trigger"},
		{"service": "timer", "kind": "sideways"},
	}
	for _, args := range tests {
		res, err := srv.handleListEvents(context.Background(), call("list_events", args))
		require.NoError(t, err)
		assert.True(t, res.IsError, args)
	}
}

func TestCreateAutomation(t *testing.T) {
	srv, _, creator := setupTestServer(t)

	res, err := srv.handleCreateAutomation(context.Background(), call("create_automation", map[string]any{
		"name": "Daily ping",
		"trigger": map[string]any{
			"service": "timer",
			"event":   "every_day",
			"config":  map[string]any{"hour": float64(8)},
		},
		"actions": []any{
			map[string]any{"service": "discord", "event": "send_message", "config": map[string]any{"channel": "c-1"}},
		},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(res))

	var view createdView
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &view))
	assert.Equal(t, 1, view.Created)
	assert.Equal(t, []string{"area-discord"}, view.AreaIDs)

	require.Len(t, creator.reqs, 1)
	req := creator.reqs[0]
	assert.Equal(t, "Daily ping", req.Name)
	assert.Equal(t, map[string]string{"hour": "8"}, req.TriggerConfig)
	assert.Equal(t, map[string]string{"channel": "c-1"}, req.ActionConfig)
}

func TestCreateAutomation_UnresolvedSubmitsNothing(t *testing.T) {
	srv, _, creator := setupTestServer(t)

	res, err := srv.handleCreateAutomation(context.Background(), call("create_automation", map[string]any{
		"trigger": map[string]any{"service": "timer", "event": "every_day"},
		"actions": []any{map[string]any{"service": "slack", "event": "post"}},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Empty(t, creator.reqs)
}

func TestCreateAutomation_TotalFailure(t *testing.T) {
	srv, _, creator := setupTestServer(t)
	creator.fail = true

	res, err := srv.handleCreateAutomation(context.Background(), call("create_automation", map[string]any{
		"trigger": map[string]any{"service": "timer", "event": "every_day"},
		"actions": []any{map[string]any{"service": "discord", "event": "send_message"}},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(res), `"failed":1`)
}

func TestCreateAutomation_BadArguments(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	tests := []map[string]any{
		nil,
		{"trigger": "timer"},
		{"trigger": map[string]any{"service": "timer", "event": "every_day"}},
		{"trigger": map[string]any{"service": "timer", "event": "every_day"}, "actions": []any{"x"}},
		{
			"trigger": map[string]any{"service": "timer", "event": "every_day", "config": map[string]any{"hour": []any{1}}},
			"actions": []any{map[string]any{"service": "discord", "event": "send_message"}},
		},
	}
	for _, args := range tests {
		res, err := srv.handleCreateAutomation(context.Background(), call("create_automation", args))
		require.NoError(t, err)
		assert.True(t, res.IsError, args)
	}
}

func TestStartStop(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	port, err := srv.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	assert.NotZero(t, port)
	assert.Contains(t, srv.URL(), "/mcp")

	_, err = srv.Start(context.Background(), "127.0.0.1:0")
	assert.Error(t, err)

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
}
