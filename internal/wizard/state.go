// Package wizard holds the composition state of one automation: a trigger
// step and one or more action steps, each walked through four sub-phases.
//
// State is a value. Every transition returns a new State and leaves the
// receiver untouched, so a caller can keep or discard the previous value.
package wizard

import (
	"errors"
	"maps"
	"strconv"
	"strings"

	"github.com/mark3labs/automatr/internal/catalog"
)

// Step identifiers.
const (
	TriggerID = "trigger"
	NoStep    = "" // no step expanded
)

const actionPrefix = "action-"

// ActionID returns the identifier of the i-th action step.
func ActionID(i int) string {
	return actionPrefix + strconv.Itoa(i)
}

// Transition errors.
var (
	ErrUnknownStep        = errors.New("unknown step")
	ErrNoService          = errors.New("no service chosen")
	ErrEventMismatch      = errors.New("event does not belong to the chosen service")
	ErrNotLinked          = errors.New("account not linked")
	ErrNoEvent            = errors.New("no event chosen")
	ErrCatalogNotReady    = errors.New("catalog details not loaded")
	ErrIncompleteTemplate = errors.New("template needs all four identifiers")
	ErrUnresolved         = errors.New("template identifiers did not resolve")
)

// Phase is the sub-phase of a step.
type Phase int

const (
	PhaseApp Phase = iota
	PhaseAccount
	PhaseConfig
	PhaseTest
)

// Phases lists the sub-phases in order.
var Phases = []Phase{PhaseApp, PhaseAccount, PhaseConfig, PhaseTest}

func (p Phase) String() string {
	switch p {
	case PhaseAccount:
		return "Connect account"
	case PhaseConfig:
		return "Configure"
	case PhaseTest:
		return "Test"
	default:
		return "Choose app"
	}
}

// Meta summarizes how far a step has been filled in.
type Meta int

const (
	MetaEmpty Meta = iota
	MetaAppChosen
	MetaEventChosen
	MetaReady
)

func (m Meta) String() string {
	switch m {
	case MetaAppChosen:
		return "app chosen"
	case MetaEventChosen:
		return "event chosen"
	case MetaReady:
		return "ready"
	default:
		return "empty"
	}
}

// Linker reports whether an account is usable for a service.
type Linker interface {
	IsLinked(s catalog.Service) bool
}

// catalogLinks trusts the catalog's own flags.
type catalogLinks struct{}

func (catalogLinks) IsLinked(s catalog.Service) bool {
	return s.AlwaysLinked() || s.Connected
}

// Step is the trigger or one action of the automation being composed.
type Step struct {
	ID      string
	Service *catalog.Service
	Event   *catalog.Event
	Config  map[string]string
	Phase   Phase // remembered while the step is collapsed
}

// IsTrigger reports whether this is the trigger step.
func (s Step) IsTrigger() bool { return s.ID == TriggerID }

// Complete reports whether the step has a service, an event and, when the
// event has fields, some configuration. Individual required fields are not
// checked.
func (s Step) Complete() bool {
	if s.Service == nil || s.Event == nil {
		return false
	}
	return len(s.Event.Fields) == 0 || len(s.Config) > 0
}

// Meta returns the step's meta-state.
func (s Step) Meta() Meta {
	switch {
	case s.Service == nil:
		return MetaEmpty
	case s.Event == nil:
		return MetaAppChosen
	case s.Complete():
		return MetaReady
	default:
		return MetaEventChosen
	}
}

// Chosen reports whether both service and event are set.
func (s Step) Chosen() bool {
	return s.Service != nil && s.Event != nil
}

func (s Step) clone() Step {
	out := s
	out.Config = maps.Clone(s.Config)
	if out.Config == nil {
		out.Config = map[string]string{}
	}
	return out
}

func newStep(id string) Step {
	return Step{ID: id, Config: map[string]string{}}
}

// State is the whole composition.
type State struct {
	Trigger  Step
	Actions  []Step // never empty, append-only
	AreaName string
	Active   string // expanded step, or NoStep
}

// New returns a fresh composition with one trigger and one empty action. The
// trigger is expanded.
func New() State {
	return State{
		Trigger: newStep(TriggerID),
		Actions: []Step{newStep(ActionID(0))},
		Active:  TriggerID,
	}
}

// Steps returns the trigger followed by the actions.
func (s State) Steps() []Step {
	out := make([]Step, 0, len(s.Actions)+1)
	out = append(out, s.Trigger.clone())
	for _, a := range s.Actions {
		out = append(out, a.clone())
	}
	return out
}

// Step looks a step up by id.
func (s State) Step(id string) (Step, bool) {
	if id == TriggerID {
		return s.Trigger.clone(), true
	}
	if i, ok := s.actionIndex(id); ok {
		return s.Actions[i].clone(), true
	}
	return Step{}, false
}

// MetaOf returns the meta-state of a step.
func (s State) MetaOf(id string) (Meta, error) {
	st, ok := s.Step(id)
	if !ok {
		return MetaEmpty, ErrUnknownStep
	}
	return st.Meta(), nil
}

// Complete reports whether a step is complete. Unknown steps are not.
func (s State) Complete(id string) bool {
	st, ok := s.Step(id)
	return ok && st.Complete()
}

// CanSubmit reports whether every step has a service and an event.
// Configuration is not required here even though Complete needs it.
func (s State) CanSubmit() bool {
	if !s.Trigger.Chosen() {
		return false
	}
	for _, a := range s.Actions {
		if !a.Chosen() {
			return false
		}
	}
	return true
}

// ActivePhase returns the sub-phase of the expanded step.
func (s State) ActivePhase() (Phase, bool) {
	st, ok := s.Step(s.Active)
	if !ok {
		return PhaseApp, false
	}
	return st.Phase, true
}

func (s State) actionIndex(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, actionPrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 || i >= len(s.Actions) || s.Actions[i].ID != id {
		return 0, false
	}
	return i, true
}

// clone deep-copies everything mutable.
func (s State) clone() State {
	out := s
	out.Trigger = s.Trigger.clone()
	out.Actions = make([]Step, len(s.Actions))
	for i, a := range s.Actions {
		out.Actions[i] = a.clone()
	}
	return out
}

// update applies fn to a copy of the step with the given id.
func (s State) update(id string, fn func(st *Step) error) (State, error) {
	out := s.clone()
	var target *Step
	if id == TriggerID {
		target = &out.Trigger
	} else if i, ok := s.actionIndex(id); ok {
		target = &out.Actions[i]
	} else {
		return s, ErrUnknownStep
	}
	if err := fn(target); err != nil {
		return s, err
	}
	return out, nil
}
