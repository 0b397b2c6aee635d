package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ServiceSummary is one entry of the service catalog endpoint.
type ServiceSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"` // stable slug
	DisplayName    string `json:"display_name"`
	IconURL        string `json:"icon_url"`
	ActionsCount   int    `json:"actions_count"`
	ReactionsCount int    `json:"reactions_count"`
	IsConnected    bool   `json:"is_connected"`
	RequiresAuth   *bool  `json:"requires_auth,omitempty"` // nil means the backend did not say
}

// ServiceDetail is the per-service detail payload. The backend calls
// triggers "actions" and effects "reactions".
type ServiceDetail struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	IconURL     string      `json:"icon_url"`
	Actions     []EventSpec `json:"actions"`
	Reactions   []EventSpec `json:"reactions"`
}

// EventSpec describes one trigger or reaction and its parameter schema.
type EventSpec struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Param is one raw parameter of an EventSpec.
type Param struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Required    bool    `json:"required"`
	Options     Options `json:"options"`
	OptionsURL  string  `json:"options_url"`
}

// Option is an {id, name} pair offered by a select field.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts a bare string ("1-1") as well as {"id":..,"name":..}.
// Numeric ids are kept in their textual form.
func (o *Option) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		o.ID, o.Name = s, s
		return nil
	}

	var raw struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding option: %w", err)
	}

	id := string(bytes.TrimSpace(raw.ID))
	if len(id) > 0 && id[0] == '"' {
		if err := json.Unmarshal(raw.ID, &id); err != nil {
			return err
		}
	}
	if id == "null" {
		id = ""
	}
	o.ID = id
	o.Name = raw.Name
	if o.Name == "" {
		o.Name = o.ID
	}
	return nil
}

// Options is a list of select options.
type Options []Option

// CreateAreaRequest is the payload of the create-automation endpoint. The
// backend names the trigger "action" and the effect "reaction" on the wire.
type CreateAreaRequest struct {
	Name             string            `json:"name"`
	TriggerServiceID string            `json:"action_service_id"`
	TriggerEventID   string            `json:"action_name"`
	TriggerConfig    map[string]string `json:"action_config"`
	ActionServiceID  string            `json:"reaction_service_id"`
	ActionEventID    string            `json:"reaction_name"`
	ActionConfig     map[string]string `json:"reaction_config"`
}

// Area is a persisted automation as returned by the backend.
type Area struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// connectResponse is returned by backend-issued authorize endpoints.
type connectResponse struct {
	URL string `json:"url"`
}
