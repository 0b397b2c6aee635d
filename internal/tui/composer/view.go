package composer

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/tui/theme"
	"github.com/mark3labs/automatr/internal/wizard"
)

// View renders the composer.
func (m *Model) View() tea.View {
	var view tea.View
	view.AltScreen = true

	content := m.render()
	if m.alert != "" {
		content = m.renderAlert()
	}

	canvas := uv.NewScreenBuffer(m.width, m.height)
	uv.NewStyledString(content).Draw(canvas, uv.Rectangle{
		Min: uv.Position{X: 0, Y: 0},
		Max: uv.Position{X: m.width, Y: m.height},
	})

	view.Content = lipgloss.NewLayer(canvas.Render())
	return view
}

func (m *Model) cardWidth() int {
	return max(min(m.width-4, 96), 40)
}

func (m *Model) render() string {
	s := theme.Current().S()
	var sections []string

	sections = append(sections, s.HeaderTitle.Render("New automation")+"  "+m.renderStatus())
	if m.notice != "" {
		sections = append(sections, s.Warning.Render(m.notice))
	}
	sections = append(sections, "")

	if m.loading == loadFailed {
		sections = append(sections,
			s.Error.Render("✗ The service catalog could not be loaded."),
			s.Muted.Render(m.loadErr.Error()),
			"",
			s.HintBar("r", "retry", "esc", "quit"),
		)
		return strings.Join(sections, "\n")
	}

	steps := m.st.Steps()
	for i, step := range steps {
		sections = append(sections, m.renderCard(step, i == m.cursor && m.st.Active == wizard.NoStep))
	}

	collapsed := m.st.Active == wizard.NoStep
	sections = append(sections, m.renderRow("+ Add action", collapsed && m.cursor == len(steps)+rowAdd))
	sections = append(sections, m.renderName(collapsed && m.cursor == len(steps)+rowName))

	label := fmt.Sprintf(" Create %d automation(s) ", len(m.st.Actions))
	if m.submitting {
		label = " " + m.spinner.View() + " Creating... "
	}
	bar := NewButtonBar([]Button{
		submitButton(m.st.CanSubmit(), collapsed && m.cursor == len(steps)+rowSubmit, m.submitting, label),
	})
	bar.SetWidth(m.cardWidth())
	sections = append(sections, "", bar.Render(), "", m.renderHints())

	return strings.Join(sections, "\n")
}

func (m *Model) renderStatus() string {
	s := theme.Current().S()
	switch m.loading {
	case loadServices:
		return m.spinner.View() + s.Muted.Render(" Loading services...")
	case loadDetails:
		return m.spinner.View() + s.Muted.Render(" Loading events...")
	case loadFailed:
		return s.Error.Render("catalog unavailable")
	}
	if gaps := gapNotes(m.cat); len(gaps) > 0 {
		return s.Warning.Render("details missing for " + strings.Join(gaps, ", "))
	}
	return s.Dim.Render(fmt.Sprintf("%d services", len(m.cat.Services)))
}

func (m *Model) renderRow(label string, selected bool) string {
	s := theme.Current().S()
	if selected {
		return s.ItemSelected.Render(" " + label + " ")
	}
	return s.ItemNormal.Render(" " + label + " ")
}

func (m *Model) renderName(selected bool) string {
	s := theme.Current().S()
	if m.editingName {
		return s.FieldLabelFocused.Render(" Name: ") + m.nameInput.View()
	}
	name := m.st.AreaName
	if name == "" {
		name = s.Dim.Render(submit.DefaultAreaName)
	}
	return m.renderRow("Name:", selected) + " " + name
}

// stepTitle is "Trigger" or "Action N".
func stepTitle(step wizard.Step) string {
	if step.IsTrigger() {
		return "Trigger"
	}
	var n int
	fmt.Sscanf(step.ID, "action-%d", &n)
	return fmt.Sprintf("Action %d", n+1)
}

// summary is the one-line description of a collapsed step.
func summary(step wizard.Step) string {
	switch {
	case step.Service == nil:
		return "Choose an app"
	case step.Event == nil:
		return step.Service.Label()
	}
	name := step.Event.Name
	if name == "" {
		name = step.Event.ID
	}
	return step.Service.Label() + " · " + name
}

func (m *Model) renderCard(step wizard.Step, selected bool) string {
	s := theme.Current().S()
	active := m.st.Active == step.ID

	badge := s.Dim
	switch step.Meta() {
	case wizard.MetaReady:
		badge = s.Success
	case wizard.MetaEventChosen, wizard.MetaAppChosen:
		badge = s.Info
	}

	head := s.Subtitle.Render(stepTitle(step)) + "  " + s.Text.Render(summary(step)) + "  " + badge.Render("["+step.Meta().String()+"]")
	if selected {
		head = s.ItemSelected.Render("›") + " " + head
	}

	style := s.CardIdle
	body := head
	if active {
		style = s.CardActive
		body = head + "\n" + m.renderStepper(step) + "\n\n" + m.renderPanel(step)
	}
	return style.Width(m.cardWidth()).Render(body)
}

// renderStepper shows the four sub-phases with the current one highlighted.
func (m *Model) renderStepper(step wizard.Step) string {
	s := theme.Current().S()
	parts := make([]string, 0, len(wizard.Phases))
	for _, p := range wizard.Phases {
		switch {
		case p == step.Phase:
			parts = append(parts, s.PhaseCurrent.Render("● "+p.String()))
		case p < step.Phase:
			parts = append(parts, s.PhaseDone.Render("✓ "+p.String()))
		default:
			parts = append(parts, s.PhasePending.Render("○ "+p.String()))
		}
	}
	return strings.Join(parts, s.Dim.Render(" ─ "))
}

func (m *Model) renderPanel(step wizard.Step) string {
	s := theme.Current().S()
	switch step.Phase {
	case wizard.PhaseApp:
		if m.appPicker == nil {
			return m.spinner.View() + s.Muted.Render(" Loading services...")
		}
		return m.appPicker.View()

	case wizard.PhaseAccount:
		return m.renderAccount(step)

	case wizard.PhaseConfig:
		if !m.cat.DetailsLoaded() {
			return m.spinner.View() + s.Muted.Render(" Loading events...")
		}
		if step.Event == nil || m.changingEvent {
			if m.eventPicker == nil {
				return ""
			}
			return m.eventPicker.View()
		}
		var b strings.Builder
		b.WriteString(s.FieldLabel.Render("Event: ") + s.Text.Render(summary(step)))
		b.WriteString("\n\n")
		if m.form != nil {
			b.WriteString(m.form.View())
		}
		return b.String()

	default:
		return s.Muted.Render("This step will send:") + "\n" + highlightJSON(previewJSON(m.st, step.ID))
	}
}

func (m *Model) renderAccount(step wizard.Step) string {
	s := theme.Current().S()
	if step.Service == nil {
		return ""
	}
	label := step.Service.Label()
	if m.links().IsLinked(*step.Service) {
		return s.Success.Render("✓ Your "+label+" account is connected.") + "\n" + s.Muted.Render("Press enter to continue.")
	}

	lines := []string{s.Text.Render("Connect your " + label + " account to use it here.")}
	switch {
	case m.linking:
		lines = append(lines, m.spinner.View()+s.Muted.Render(" Opening sign-in..."))
	case m.linkNotes[step.ID] != "":
		lines = append(lines, s.Warning.Render(m.linkNotes[step.ID]))
	default:
		lines = append(lines, s.Muted.Render("Press enter to connect."))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderHints() string {
	s := theme.Current().S()
	if m.editingName {
		return s.HintBar("enter", "done")
	}
	step, ok := m.st.Step(m.st.Active)
	if !ok {
		return s.HintBar("↑↓", "navigate", "enter", "open", "a", "add action", "n", "name", "ctrl+s", "create", "esc", "quit")
	}
	switch step.Phase {
	case wizard.PhaseApp:
		return s.HintBar("type", "filter", "↑↓", "navigate", "enter", "choose", "esc", "collapse")
	case wizard.PhaseAccount:
		return s.HintBar("enter", "connect", "ctrl+r", "refresh", "shift+←→", "phase", "esc", "collapse")
	case wizard.PhaseConfig:
		if step.Event == nil || m.changingEvent {
			return s.HintBar("type", "filter", "↑↓", "navigate", "enter", "choose", "esc", "back")
		}
		if m.form != nil && m.form.EditorAvailable() {
			return s.HintBar("tab", "next field", "ctrl+o", "editor", "ctrl+e", "change event", "enter", "continue", "esc", "collapse")
		}
		return s.HintBar("tab", "next field", "←→", "option", "ctrl+e", "change event", "enter", "continue", "esc", "collapse")
	default:
		return s.HintBar("enter", "continue", "ctrl+s", "create", "shift+←→", "phase", "esc", "collapse")
	}
}

func (m *Model) renderAlert() string {
	s := theme.Current().S()
	box := s.ModalContainer.Render(s.Error.Render(m.alert) + "\n\n" + s.HintBar("enter", "dismiss"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// gapNotes lists the services whose details failed, for the status line.
func gapNotes(c *catalog.Catalog) []string {
	out := make([]string, 0, len(c.Gaps))
	for _, g := range c.Gaps {
		out = append(out, g.ServiceID)
	}
	return out
}
