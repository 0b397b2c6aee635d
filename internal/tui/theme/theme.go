// Package theme holds the color palette and pre-built styles of the TUI.
package theme

import (
	"sync"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// Theme defines the color palette for the TUI.
type Theme struct {
	Name   string
	IsDark bool

	// Semantic colors
	Primary   string // lipgloss.Color is a string type
	Secondary string
	Tertiary  string

	// Background hierarchy (dark→light)
	BgCrust    string
	BgBase     string
	BgMantle   string
	BgGutter   string
	BgSurface0 string
	BgSurface1 string
	BgSurface2 string
	BgOverlay  string

	// Foreground hierarchy (dim→bright)
	FgMuted  string
	FgSubtle string
	FgBase   string
	FgBright string

	// Status colors
	Success string
	Warning string
	Error   string
	Info    string

	// Lazy-built styles
	styles     *Styles
	stylesOnce sync.Once
}

var (
	current     *Theme
	currentOnce sync.Once
)

// Current returns the active theme.
func Current() *Theme {
	currentOnce.Do(func() {
		current = NewCatppuccinMocha()
	})
	return current
}

// S returns the pre-built styles for this theme.
// Styles are lazily initialized on first call.
func (t *Theme) S() *Styles {
	t.stylesOnce.Do(func() {
		t.styles = t.buildStyles()
	})
	return t.styles
}

// buildStyles constructs the pre-built styles from theme colors.
func (t *Theme) buildStyles() *Styles {
	c := lipgloss.Color
	button := lipgloss.NewStyle().Padding(0, 2).MarginLeft(1).MarginRight(1)

	return &Styles{
		HeaderTitle: lipgloss.NewStyle().
			Foreground(c(t.Primary)).
			Bold(true),
		Subtitle: lipgloss.NewStyle().
			Foreground(c(t.Secondary)).
			Bold(true),
		Text:  lipgloss.NewStyle().Foreground(c(t.FgBase)),
		Muted: lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		Dim:   lipgloss.NewStyle().Foreground(c(t.BgOverlay)),

		Success: lipgloss.NewStyle().Foreground(c(t.Success)),
		Warning: lipgloss.NewStyle().Foreground(c(t.Warning)),
		Error:   lipgloss.NewStyle().Foreground(c(t.Error)),
		Info:    lipgloss.NewStyle().Foreground(c(t.Info)),

		CardActive: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c(t.Tertiary)).
			Padding(0, 1),
		CardIdle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c(t.BgSurface2)).
			Padding(0, 1),

		PhaseDone:    lipgloss.NewStyle().Foreground(c(t.Success)),
		PhaseCurrent: lipgloss.NewStyle().Foreground(c(t.Primary)).Bold(true),
		PhasePending: lipgloss.NewStyle().Foreground(c(t.BgOverlay)),

		ItemSelected: lipgloss.NewStyle().
			Foreground(c(t.BgBase)).
			Background(c(t.Tertiary)).
			Bold(true),
		ItemNormal: lipgloss.NewStyle().Foreground(c(t.FgBase)),

		FieldLabel: lipgloss.NewStyle().
			Foreground(c(t.FgSubtle)).
			Bold(true),
		FieldLabelFocused: lipgloss.NewStyle().
			Foreground(c(t.Primary)).
			Bold(true),

		HintKey: lipgloss.NewStyle().
			Foreground(c(t.FgSubtle)).
			Bold(true),
		HintDesc:      lipgloss.NewStyle().Foreground(c(t.FgMuted)),
		HintSeparator: lipgloss.NewStyle().Foreground(c(t.BgSurface2)),

		ButtonNormal: button.
			Foreground(c(t.FgBase)).
			Background(c(t.BgSurface0)),
		ButtonDisabled: button.
			Foreground(c(t.BgOverlay)).
			Background(c(t.BgMantle)),
		ButtonFocused: button.
			Foreground(c(t.BgBase)).
			Background(c(t.Tertiary)).
			Bold(true),

		ModalContainer: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c(t.Tertiary)).
			Background(c(t.BgBase)).
			Padding(1, 2),
	}
}

// InputStyles returns textinput styles matching the theme.
func (t *Theme) InputStyles() textinput.Styles {
	c := lipgloss.Color
	return textinput.Styles{
		Focused: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(c(t.FgBase)),
			Placeholder: lipgloss.NewStyle().Foreground(c(t.FgMuted)),
			Prompt:      lipgloss.NewStyle().Foreground(c(t.Tertiary)),
		},
		Blurred: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(c(t.FgMuted)),
			Placeholder: lipgloss.NewStyle().Foreground(c(t.FgMuted)),
			Prompt:      lipgloss.NewStyle().Foreground(c(t.BgOverlay)),
		},
		Cursor: textinput.CursorStyle{
			Color: c(t.Primary),
			Shape: tea.CursorBar,
			Blink: true,
		},
	}
}

// NewSpinner returns a spinner in the primary color.
func (t *Theme) NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(t.Primary))
	return s
}
