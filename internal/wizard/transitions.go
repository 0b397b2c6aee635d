package wizard

import (
	"fmt"

	"github.com/mark3labs/automatr/internal/catalog"
)

// SetService chooses the service of a step. Choosing a different service
// discards the event and configuration without asking. The step moves to the
// Account sub-phase and straight on to Config when links reports the account
// usable. A nil service clears the step back to App. A nil links trusts the
// catalog flags.
func (s State) SetService(id string, svc *catalog.Service, links Linker) (State, error) {
	if links == nil {
		links = catalogLinks{}
	}
	return s.update(id, func(st *Step) error {
		if svc == nil {
			st.Service, st.Event = nil, nil
			st.Config = map[string]string{}
			st.Phase = PhaseApp
			return nil
		}
		if st.Service == nil || st.Service.ID != svc.ID {
			chosen := *svc
			st.Service = &chosen
			st.Event = nil
			st.Config = map[string]string{}
		}
		st.Phase = PhaseAccount
		if links.IsLinked(*st.Service) {
			st.Phase = PhaseConfig
		}
		return nil
	})
}

// SetEvent chooses the event of a step. A different event discards the
// configuration and moves the step to Config, or to Test when the event has
// no fields. A nil event clears it.
func (s State) SetEvent(id string, ev *catalog.Event) (State, error) {
	return s.update(id, func(st *Step) error {
		if st.Service == nil {
			return ErrNoService
		}
		if ev == nil {
			st.Event = nil
			st.Config = map[string]string{}
			st.Phase = PhaseConfig
			return nil
		}
		if ev.ServiceID != st.Service.ID {
			return fmt.Errorf("%s on %s: %w", ev.ID, st.Service.ID, ErrEventMismatch)
		}
		if st.Event != nil && st.Event.ID == ev.ID {
			return nil
		}
		chosen := *ev
		st.Event = &chosen
		st.Config = map[string]string{}
		st.Phase = PhaseConfig
		if len(chosen.Fields) == 0 {
			st.Phase = PhaseTest
		}
		return nil
	})
}

// SetConfigValue sets one configuration key, leaving sibling keys intact.
func (s State) SetConfigValue(id, key, value string) (State, error) {
	return s.update(id, func(st *Step) error {
		if st.Event == nil {
			return ErrNoEvent
		}
		st.Config[key] = value
		return nil
	})
}

// SetConfig replaces the whole configuration of a step.
func (s State) SetConfig(id string, config map[string]string) (State, error) {
	return s.update(id, func(st *Step) error {
		if st.Event == nil {
			return ErrNoEvent
		}
		st.Config = map[string]string{}
		for k, v := range config {
			st.Config[k] = v
		}
		return nil
	})
}

// Continue advances the expanded sub-phase of a step. From Test it moves on:
// the trigger hands over to the first action, an action to the next one, and
// the last action collapses the wizard.
func (s State) Continue(id string, links Linker) (State, error) {
	if links == nil {
		links = catalogLinks{}
	}
	st, ok := s.Step(id)
	if !ok {
		return s, ErrUnknownStep
	}

	if st.Phase == PhaseTest {
		out := s.clone()
		out.Active = s.nextAfter(id)
		return out, nil
	}

	return s.update(id, func(st *Step) error {
		switch st.Phase {
		case PhaseApp:
			if st.Service == nil {
				return ErrNoService
			}
			st.Phase = PhaseAccount
			if links.IsLinked(*st.Service) {
				st.Phase = PhaseConfig
			}
		case PhaseAccount:
			if st.Service == nil {
				return ErrNoService
			}
			if !links.IsLinked(*st.Service) {
				return ErrNotLinked
			}
			st.Phase = PhaseConfig
		case PhaseConfig:
			if st.Event == nil {
				return ErrNoEvent
			}
			st.Phase = PhaseTest
		}
		return nil
	})
}

// nextAfter returns the step that follows id once its Test phase is done.
func (s State) nextAfter(id string) string {
	if id == TriggerID {
		return s.Actions[0].ID
	}
	i, _ := s.actionIndex(id)
	if i+1 < len(s.Actions) {
		return s.Actions[i+1].ID
	}
	return NoStep
}

// MarkLinked records that the account of a step's service became usable. A
// step waiting in Account moves on to Config.
func (s State) MarkLinked(id string) (State, error) {
	return s.update(id, func(st *Step) error {
		if st.Service == nil {
			return ErrNoService
		}
		if st.Phase == PhaseAccount {
			st.Phase = PhaseConfig
		}
		return nil
	})
}

// OpenPhase expands a step on the given sub-phase.
func (s State) OpenPhase(id string, p Phase) (State, error) {
	out, err := s.update(id, func(st *Step) error {
		st.Phase = p
		return nil
	})
	if err != nil {
		return s, err
	}
	out.Active = id
	return out, nil
}

// SetActiveStep expands a step, keeping its sub-phase. NoStep collapses all.
func (s State) SetActiveStep(id string) (State, error) {
	if id != NoStep {
		if _, ok := s.Step(id); !ok {
			return s, ErrUnknownStep
		}
	}
	out := s.clone()
	out.Active = id
	return out, nil
}

// ToggleStep expands a collapsed step or collapses the expanded one.
func (s State) ToggleStep(id string) (State, error) {
	if s.Active == id {
		return s.SetActiveStep(NoStep)
	}
	return s.SetActiveStep(id)
}

// AddAction appends an empty action and expands it on App.
func (s State) AddAction() State {
	out := s.clone()
	st := newStep(ActionID(len(out.Actions)))
	out.Actions = append(out.Actions, st)
	out.Active = st.ID
	return out
}

// SetAreaName sets the display name of the resulting automations.
func (s State) SetAreaName(name string) State {
	out := s.clone()
	out.AreaName = name
	return out
}
