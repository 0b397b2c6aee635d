package wizard

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"

	"github.com/mark3labs/automatr/internal/catalog"
)

// Template names a trigger and a first action by service and event
// identifiers.
type Template struct {
	TriggerService string `yaml:"trigger_service" json:"trigger_service"`
	TriggerEvent   string `yaml:"trigger_event" json:"trigger_event"`
	ActionService  string `yaml:"action_service" json:"action_service"`
	ActionEvent    string `yaml:"action_event" json:"action_event"`
}

// Complete reports whether all four identifiers are present.
func (t Template) Complete() bool {
	return t.TriggerService != "" && t.TriggerEvent != "" &&
		t.ActionService != "" && t.ActionEvent != ""
}

// Prefill writes the template into the trigger and the first action. Each of
// the two steps is applied whole or not at all: a step whose service or event
// does not resolve is left untouched. Applied steps land on App for review
// with empty configuration, and the trigger is expanded.
//
// The returned state is always usable. The error wraps ErrUnresolved when
// one or both steps were skipped, and ErrIncompleteTemplate or
// ErrCatalogNotReady when nothing was attempted.
func (s State) Prefill(c *catalog.Catalog, t Template) (State, error) {
	if !t.Complete() {
		return s, ErrIncompleteTemplate
	}
	if !c.DetailsLoaded() {
		return s, ErrCatalogNotReady
	}

	out := s.clone()
	var missing []string

	if svc, ev, ok := resolve(c, t.TriggerService, t.TriggerEvent, c.Trigger); ok {
		out.Trigger = prefilled(TriggerID, svc, ev)
	} else {
		missing = append(missing, TriggerID)
	}

	first := out.Actions[0].ID
	if svc, ev, ok := resolve(c, t.ActionService, t.ActionEvent, c.Action); ok {
		out.Actions[0] = prefilled(first, svc, ev)
	} else {
		missing = append(missing, first)
	}

	out.Active = TriggerID
	if len(missing) > 0 {
		return out, fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(missing, ", "))
	}
	return out, nil
}

func prefilled(id string, svc catalog.Service, ev catalog.Event) Step {
	st := newStep(id)
	st.Service = &svc
	st.Event = &ev
	st.Phase = PhaseApp
	return st
}

type eventLookup func(serviceID, eventID string) (catalog.Event, bool)

// resolve finds a service and event, trying the identifiers as given and then
// in slug form ("Google Drive" becomes "google-drive").
func resolve(c *catalog.Catalog, serviceID, eventID string, lookup eventLookup) (catalog.Service, catalog.Event, bool) {
	svc, ok := c.Service(serviceID)
	if !ok {
		if svc, ok = c.Service(slug.Make(serviceID)); !ok {
			return catalog.Service{}, catalog.Event{}, false
		}
	}
	ev, ok := lookup(svc.ID, eventID)
	if !ok {
		if ev, ok = lookup(svc.ID, eventSlug(eventID)); !ok {
			return catalog.Service{}, catalog.Event{}, false
		}
	}
	return svc, ev, true
}

// eventSlug normalizes an event name. Event ids use underscores.
func eventSlug(s string) string {
	return strings.ReplaceAll(slug.Make(s), "-", "_")
}
