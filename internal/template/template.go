// Package template loads automation templates: a named trigger and one or
// more actions, identified by service and event, that prefill the wizard.
package template

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/wizard"
)

// Step names one service event and optional configuration.
type Step struct {
	Service string            `yaml:"service"`
	Event   string            `yaml:"event"`
	Config  map[string]string `yaml:"config,omitempty"`
}

// File is a template as stored on disk.
type File struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Trigger     Step   `yaml:"trigger"`
	Actions     []Step `yaml:"actions"`
}

// Parse decodes and validates a YAML template.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding template: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads a template from a file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate checks that the trigger and every action name a service and event.
func (f *File) Validate() error {
	if f.Trigger.Service == "" || f.Trigger.Event == "" {
		return fmt.Errorf("trigger: %w", wizard.ErrIncompleteTemplate)
	}
	if len(f.Actions) == 0 {
		return fmt.Errorf("no actions: %w", wizard.ErrIncompleteTemplate)
	}
	for i, a := range f.Actions {
		if a.Service == "" || a.Event == "" {
			return fmt.Errorf("action %d: %w", i, wizard.ErrIncompleteTemplate)
		}
	}
	return nil
}

// Template returns the four identifiers of the trigger and the first action.
func (f *File) Template() wizard.Template {
	t := wizard.Template{
		TriggerService: f.Trigger.Service,
		TriggerEvent:   f.Trigger.Event,
	}
	if len(f.Actions) > 0 {
		t.ActionService = f.Actions[0].Service
		t.ActionEvent = f.Actions[0].Event
	}
	return t
}

// FromTemplate wraps four identifiers as a one-action file.
func FromTemplate(t wizard.Template) *File {
	return &File{
		Trigger: Step{Service: t.TriggerService, Event: t.TriggerEvent},
		Actions: []Step{{Service: t.ActionService, Event: t.ActionEvent}},
	}
}

// Apply prefills s with the whole template. The trigger and first action go
// through wizard.State.Prefill; further actions are appended. Configuration
// from the file is applied to every step that resolved.
//
// The returned state is always usable. The error joins every step that could
// not be applied.
func (f *File) Apply(c *catalog.Catalog, s wizard.State) (wizard.State, error) {
	out, err := s.Prefill(c, f.Template())
	if errors.Is(err, wizard.ErrCatalogNotReady) || errors.Is(err, wizard.ErrIncompleteTemplate) {
		return s, err
	}
	errs := []error{err}

	if f.Name != "" && out.AreaName == "" {
		out = out.SetAreaName(f.Name)
	}

	out, err = configure(out, wizard.TriggerID, f.Trigger.Config)
	errs = append(errs, err)
	if len(f.Actions) > 0 {
		out, err = configure(out, out.Actions[0].ID, f.Actions[0].Config)
		errs = append(errs, err)
	}

	for i, a := range f.Actions[1:] {
		out = out.AddAction()
		id := out.Actions[len(out.Actions)-1].ID
		svc, ok := lookupService(c, a.Service)
		if !ok {
			errs = append(errs, fmt.Errorf("action %d: unknown service %q: %w", i+1, a.Service, wizard.ErrUnresolved))
			continue
		}
		ev, ok := lookupEvent(c.Action, svc.ID, a.Event)
		if !ok {
			errs = append(errs, fmt.Errorf("action %d: unknown event %q: %w", i+1, a.Event, wizard.ErrUnresolved))
			continue
		}
		// Both resolved, so neither transition can fail.
		out, _ = out.SetService(id, &svc, nil)
		out, _ = out.SetEvent(id, &ev)
		out, _ = out.OpenPhase(id, wizard.PhaseApp)
		out, err = configure(out, id, a.Config)
		errs = append(errs, err)
	}

	out, _ = out.SetActiveStep(wizard.TriggerID)
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Template %q applied partially: %v", f.Name, err)
		return out, err
	}
	return out, nil
}

func configure(s wizard.State, id string, config map[string]string) (wizard.State, error) {
	if len(config) == 0 {
		return s, nil
	}
	st, ok := s.Step(id)
	if !ok || st.Event == nil {
		// The step did not resolve; that is already reported.
		return s, nil
	}
	return s.SetConfig(id, config)
}

func lookupService(c *catalog.Catalog, id string) (catalog.Service, bool) {
	if svc, ok := c.Service(id); ok {
		return svc, true
	}
	return c.Service(slug.Make(id))
}

func lookupEvent(lookup func(string, string) (catalog.Event, bool), serviceID, id string) (catalog.Event, bool) {
	if ev, ok := lookup(serviceID, id); ok {
		return ev, true
	}
	return lookup(serviceID, strings.ReplaceAll(slug.Make(id), "-", "_"))
}

// Slug normalizes a template or service name.
func Slug(s string) string {
	return slug.Make(s)
}

// Query parameter names of a template link.
const (
	ParamTriggerService = "tS"
	ParamTriggerEvent   = "tE"
	ParamActionService  = "aS"
	ParamActionEvent    = "aE"
)

// ParseQuery reads a template link. raw may be a full URL
// ("https://app/create?tS=github&tE=new_issue&aS=discord&aE=send_message")
// or just its query string.
func ParseQuery(raw string) (wizard.Template, error) {
	query := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		query = raw[i+1:]
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return wizard.Template{}, fmt.Errorf("parsing template link: %w", err)
	}
	t := wizard.Template{
		TriggerService: values.Get(ParamTriggerService),
		TriggerEvent:   values.Get(ParamTriggerEvent),
		ActionService:  values.Get(ParamActionService),
		ActionEvent:    values.Get(ParamActionEvent),
	}
	if !t.Complete() {
		return t, wizard.ErrIncompleteTemplate
	}
	return t, nil
}

// Link formats a template as a query string.
func Link(t wizard.Template) string {
	v := url.Values{}
	v.Set(ParamTriggerService, t.TriggerService)
	v.Set(ParamTriggerEvent, t.TriggerEvent)
	v.Set(ParamActionService, t.ActionService)
	v.Set(ParamActionEvent, t.ActionEvent)
	return v.Encode()
}
