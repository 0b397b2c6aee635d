package theme

import "charm.land/lipgloss/v2"

// Styles contains all pre-built lipgloss styles for the TUI.
type Styles struct {
	HeaderTitle lipgloss.Style
	Subtitle    lipgloss.Style
	Text        lipgloss.Style
	Muted       lipgloss.Style
	Dim         lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	// Step cards
	CardActive lipgloss.Style
	CardIdle   lipgloss.Style

	// Sub-phase stepper
	PhaseDone    lipgloss.Style
	PhaseCurrent lipgloss.Style
	PhasePending lipgloss.Style

	// Pickers
	ItemSelected lipgloss.Style
	ItemNormal   lipgloss.Style

	// Config form
	FieldLabel        lipgloss.Style
	FieldLabelFocused lipgloss.Style

	// Hint bar
	HintKey       lipgloss.Style
	HintDesc      lipgloss.Style
	HintSeparator lipgloss.Style

	// Buttons
	ButtonNormal   lipgloss.Style
	ButtonDisabled lipgloss.Style
	ButtonFocused  lipgloss.Style

	ModalContainer lipgloss.Style
}

// HintBar renders key/description pairs.
// Example: HintBar("↑↓", "navigate", "enter", "select")
// Returns: "↑↓ navigate • enter select"
func (s *Styles) HintBar(pairs ...string) string {
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return ""
	}

	var result string
	for i := 0; i < len(pairs); i += 2 {
		if i > 0 {
			result += " " + s.HintSeparator.Render("•") + " "
		}
		result += s.HintKey.Render(pairs[i]) + " " + s.HintDesc.Render(pairs[i+1])
	}
	return result
}
