package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/template"
	"github.com/mark3labs/automatr/internal/wizard"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_services",
			mcp.WithDescription("List the services that can be used in automations, with their connection state"),
		),
		s.handleListServices,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_events",
			mcp.WithDescription("List the triggers or actions of a service and their configuration fields"),
			mcp.WithString("service", mcp.Required(),
				mcp.Description("Service slug, e.g. github"),
			),
			mcp.WithString("kind", mcp.Required(),
				mcp.Description("Which events to list"),
				mcp.Enum("trigger", "action"),
			),
		),
		s.handleListEvents,
	)

	stepSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"service": map[string]any{"type": "string", "description": "Service slug"},
			"event":   map[string]any{"type": "string", "description": "Event id"},
			"config": map[string]any{
				"type":                 "object",
				"description":          "Field name to value",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
		"required": []string{"service", "event"},
	}

	s.mcpServer.AddTool(
		mcp.NewTool("create_automation",
			mcp.WithDescription("Create one automation per action, all sharing the same trigger"),
			mcp.WithString("name", mcp.Description("Display name of the automations")),
			mcp.WithObject("trigger", mcp.Required(),
				mcp.Description("The trigger step"),
				mcp.Properties(stepSchema["properties"].(map[string]any)),
			),
			mcp.WithArray("actions", mcp.Required(),
				mcp.Description("One or more action steps"),
				mcp.Items(stepSchema),
			),
		),
		s.handleCreateAutomation,
	)
}

type serviceView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Triggers  int    `json:"triggers"`
	Actions   int    `json:"actions"`
}

func (s *Server) handleListServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := s.loadCatalog(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := make([]serviceView, 0, len(c.Services))
	for _, svc := range c.Services {
		out = append(out, serviceView{
			ID:        svc.ID,
			Name:      svc.Label(),
			Connected: svc.AlwaysLinked() || svc.Connected,
			Triggers:  len(c.TriggersOf(svc.ID)),
			Actions:   len(c.ActionsOf(svc.ID)),
		})
	}
	return jsonResult(out)
}

type fieldView struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Required   bool     `json:"required,omitempty"`
	Options    []string `json:"options,omitempty"`
	OptionsURL string   `json:"options_url,omitempty"`
}

type eventView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Fields      []fieldView `json:"fields"`
}

func (s *Server) handleListEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	service, _ := args["service"].(string)
	kind, _ := args["kind"].(string)
	if service == "" {
		return mcp.NewToolResultError("missing 'service' parameter"), nil
	}

	c, err := s.loadCatalog(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := c.Service(service); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown service %q", service)), nil
	}

	var events []catalog.Event
	switch kind {
	case "trigger":
		events = c.TriggersOf(service)
	case "action":
		events = c.ActionsOf(service)
	default:
		return mcp.NewToolResultError("'kind' must be trigger or action"), nil
	}
	if gap, ok := c.Gap(service); ok {
		return mcp.NewToolResultError(gap.Error()), nil
	}

	out := make([]eventView, 0, len(events))
	for _, e := range events {
		ev := eventView{ID: e.ID, Name: e.Name, Description: e.Description, Fields: []fieldView{}}
		for _, f := range e.Fields {
			fv := fieldView{Name: f.Name, Label: f.Label, Type: f.Kind.String(), Required: f.Required, OptionsURL: f.OptionsURL}
			for _, o := range f.Options {
				fv.Options = append(fv.Options, o.ID)
			}
			ev.Fields = append(ev.Fields, fv)
		}
		out = append(out, ev)
	}
	return jsonResult(out)
}

type createdView struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	AreaIDs []string `json:"area_ids,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func (s *Server) handleCreateAutomation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if args == nil {
		return mcp.NewToolResultError("no arguments provided"), nil
	}

	file := &template.File{}
	file.Name, _ = args["name"].(string)

	trigger, err := parseStep(args["trigger"])
	if err != nil {
		return mcp.NewToolResultError("trigger: " + err.Error()), nil
	}
	file.Trigger = trigger

	actionsRaw, ok := args["actions"].([]any)
	if !ok || len(actionsRaw) == 0 {
		return mcp.NewToolResultError("'actions' must be a non-empty array"), nil
	}
	for i, raw := range actionsRaw {
		step, err := parseStep(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("action %d: %v", i, err)), nil
		}
		file.Actions = append(file.Actions, step)
	}

	c, err := s.loadCatalog(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := file.Apply(c, wizard.New())
	if err != nil {
		// Nothing is submitted unless every step resolved.
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.submitter.Submit(ctx, st)
	if err != nil && !errors.Is(err, submit.ErrTotalFailure) {
		return mcp.NewToolResultError(err.Error()), nil
	}

	view := createdView{Created: res.Created, Failed: res.Failed}
	for _, o := range res.Outcomes {
		if o.Err != nil {
			view.Errors = append(view.Errors, fmt.Sprintf("%s: %v", o.StepID, o.Err))
			continue
		}
		if o.Area != nil {
			view.AreaIDs = append(view.AreaIDs, o.Area.ID)
		}
	}
	if res.Created == 0 {
		data, _ := json.Marshal(view)
		return mcp.NewToolResultError(string(data)), nil
	}
	return jsonResult(view)
}

// parseStep reads a {service, event, config} object. Config values may be
// strings, numbers or booleans.
func parseStep(raw any) (template.Step, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return template.Step{}, errors.New("not an object")
	}
	step := template.Step{}
	step.Service, _ = m["service"].(string)
	step.Event, _ = m["event"].(string)
	if step.Service == "" || step.Event == "" {
		return step, errors.New("'service' and 'event' are required")
	}

	if cfg, ok := m["config"].(map[string]any); ok {
		step.Config = make(map[string]string, len(cfg))
		for k, v := range cfg {
			switch val := v.(type) {
			case string:
				step.Config[k] = val
			case float64:
				step.Config[k] = strconv.FormatFloat(val, 'f', -1, 64)
			case bool:
				step.Config[k] = strconv.FormatBool(val)
			default:
				return step, fmt.Errorf("config %q: unsupported value %v", k, v)
			}
		}
	}
	return step, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(strings.TrimSpace(string(data))), nil
}
