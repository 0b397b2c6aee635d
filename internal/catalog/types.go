package catalog

import "fmt"

// FieldKind tags the variant of a ConfigField.
type FieldKind int

const (
	// KindText is a free-form input. Unknown backend types fall back to it.
	KindText FieldKind = iota
	// KindNumber is a numeric input.
	KindNumber
	// KindSelect picks one of Options, or of the options served at OptionsURL.
	KindSelect
	// KindTextarea is free-form text that may span lines.
	KindTextarea
)

func (k FieldKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindSelect:
		return "select"
	case KindTextarea:
		return "textarea"
	default:
		return "text"
	}
}

// Option is one selectable {id, name} pair.
type Option struct {
	ID   string
	Name string
}

// ConfigField is one named parameter of a trigger or reaction.
type ConfigField struct {
	Name        string // key in the config payload
	Label       string
	Kind        FieldKind
	Placeholder string
	Options     []Option // static choices, select only
	OptionsURL  string   // remote choices, select only
	Required    bool     // informational; completion does not consult it
}

// FreeText reports whether the field takes free-form text.
func (f ConfigField) FreeText() bool {
	return f.Kind == KindText || f.Kind == KindTextarea
}

// Remote reports whether the field's choices must be fetched at render time.
func (f ConfigField) Remote() bool {
	return f.Kind == KindSelect && f.OptionsURL != ""
}

// Service is an integrable external application.
type Service struct {
	ID           string // stable slug
	RemoteID     string // backend identifier used for detail requests
	Name         string // display name
	IconURL      string
	Connected    bool
	RequiresAuth *bool // nil when the backend did not say
	TriggerCount int
	ActionCount  int
}

// AlwaysLinked reports whether the service never needs account linking.
func (s Service) AlwaysLinked() bool {
	return s.RequiresAuth != nil && !*s.RequiresAuth
}

// Label returns the display name, falling back to the slug.
func (s Service) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Event is a trigger or a reaction offered by a service.
type Event struct {
	ID          string // unique within ServiceID
	ServiceID   string
	Name        string
	Description string
	Fields      []ConfigField
}

// Gap records a service whose details could not be loaded. The service stays
// selectable but offers no triggers or reactions.
type Gap struct {
	ServiceID string
	Err       error
}

func (g Gap) Error() string {
	return fmt.Sprintf("details of %s unavailable: %v", g.ServiceID, g.Err)
}

func (g Gap) Unwrap() error { return g.Err }

// Catalog is the loaded set of services and their events. It is read-only
// once returned by a Loader and may be shared freely.
type Catalog struct {
	Services []Service
	Triggers map[string][]Event // by service ID
	Actions  map[string][]Event // by service ID
	Gaps     []Gap

	detailsLoaded bool
}

// New builds a fully loaded catalog from parts. Events get their ServiceID
// from the map key.
func New(services []Service, triggers, actions map[string][]Event) *Catalog {
	c := &Catalog{
		Services:      services,
		Triggers:      make(map[string][]Event, len(triggers)),
		Actions:       make(map[string][]Event, len(actions)),
		detailsLoaded: true,
	}
	for id, evs := range triggers {
		c.Triggers[id] = withService(id, evs)
	}
	for id, evs := range actions {
		c.Actions[id] = withService(id, evs)
	}
	return c
}

func withService(id string, evs []Event) []Event {
	out := make([]Event, len(evs))
	for i, e := range evs {
		e.ServiceID = id
		out[i] = e
	}
	return out
}

// DetailsLoaded reports whether the per-service fan-out has completed.
func (c *Catalog) DetailsLoaded() bool {
	return c != nil && c.detailsLoaded
}

// Service looks up a service by slug.
func (c *Catalog) Service(id string) (Service, bool) {
	if c == nil {
		return Service{}, false
	}
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// TriggersOf returns the triggers of a service.
func (c *Catalog) TriggersOf(serviceID string) []Event {
	if c == nil {
		return nil
	}
	return c.Triggers[serviceID]
}

// ActionsOf returns the reactions of a service.
func (c *Catalog) ActionsOf(serviceID string) []Event {
	if c == nil {
		return nil
	}
	return c.Actions[serviceID]
}

// Trigger looks up one trigger.
func (c *Catalog) Trigger(serviceID, eventID string) (Event, bool) {
	return find(c.TriggersOf(serviceID), eventID)
}

// Action looks up one reaction.
func (c *Catalog) Action(serviceID, eventID string) (Event, bool) {
	return find(c.ActionsOf(serviceID), eventID)
}

// Gap returns the load failure recorded for a service, if any.
func (c *Catalog) Gap(serviceID string) (Gap, bool) {
	if c == nil {
		return Gap{}, false
	}
	for _, g := range c.Gaps {
		if g.ServiceID == serviceID {
			return g, true
		}
	}
	return Gap{}, false
}

func find(events []Event, id string) (Event, bool) {
	for _, e := range events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}
