package composer

import (
	"bytes"
	"encoding/json"
	"strings"

	chroma "github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/tui/theme"
	"github.com/mark3labs/automatr/internal/wizard"
)

// triggerPreview is the part of every create request the trigger supplies.
type triggerPreview struct {
	Service string            `json:"action_service_id"`
	Event   string            `json:"action_name"`
	Config  map[string]string `json:"action_config"`
}

// previewJSON renders what a step contributes to the create requests. An
// action previews its whole request; the trigger only its shared part.
func previewJSON(st wizard.State, stepID string) string {
	step, ok := st.Step(stepID)
	if !ok {
		return ""
	}

	var v any
	if step.IsTrigger() {
		req := submit.Request(st, step)
		v = triggerPreview{Service: req.TriggerServiceID, Event: req.TriggerEventID, Config: req.TriggerConfig}
	} else {
		v = submit.Request(st, step)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// highlightJSON colors JSON for the terminal, falling back to the plain text.
func highlightJSON(source string) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}

	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Get("terminal256")
	}
	if formatter == nil {
		return source
	}

	baseStyle := styles.Get("catppuccin-mocha")
	if baseStyle == nil {
		baseStyle = styles.Fallback
	}

	// Match the card background instead of the style's own.
	bgColour := chroma.MustParseColour(theme.Current().BgBase)
	style, err := baseStyle.Builder().Transform(func(entry chroma.StyleEntry) chroma.StyleEntry {
		entry.Background = bgColour
		return entry
	}).Build()
	if err != nil {
		style = baseStyle
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return source
	}
	return strings.TrimRight(buf.String(), "\n")
}
