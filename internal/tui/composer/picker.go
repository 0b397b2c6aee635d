package composer

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/mark3labs/automatr/internal/tui/theme"
)

// pickItem is one row of a picker.
type pickItem struct {
	id     string
	label  string
	detail string // dimmed suffix, e.g. connection state
}

// picker is a filterable single-choice list. It is used for services and
// for events.
type picker struct {
	items    []pickItem
	filtered []pickItem
	selected int
	search   textinput.Model
	empty    string // shown when there is nothing to pick
	height   int    // visible rows
}

func newPicker(items []pickItem, placeholder, empty string) *picker {
	in := textinput.New()
	in.Prompt = "Search: "
	in.Placeholder = placeholder
	in.SetStyles(theme.Current().InputStyles())
	in.SetWidth(40)

	p := &picker{items: items, search: in, empty: empty, height: 8}
	p.filter()
	return p
}

// Focus focuses the search input.
func (p *picker) Focus() tea.Cmd {
	return p.search.Focus()
}

// selectID moves the selection to id when it is visible.
func (p *picker) selectID(id string) {
	for i, it := range p.filtered {
		if it.id == id {
			p.selected = i
			return
		}
	}
}

// Selected returns the highlighted item.
func (p *picker) Selected() (pickItem, bool) {
	if p.selected < 0 || p.selected >= len(p.filtered) {
		return pickItem{}, false
	}
	return p.filtered[p.selected], true
}

// Update handles navigation and typing. It reports true when enter picked an
// item.
func (p *picker) Update(msg tea.Msg) (tea.Cmd, bool) {
	if keyMsg, ok := msg.(tea.KeyPressMsg); ok {
		switch keyMsg.String() {
		case "up", "ctrl+k":
			if p.selected > 0 {
				p.selected--
			}
			return nil, false
		case "down", "ctrl+j":
			if p.selected < len(p.filtered)-1 {
				p.selected++
			}
			return nil, false
		case "enter":
			_, ok := p.Selected()
			return nil, ok
		}
	}

	var cmd tea.Cmd
	before := p.search.Value()
	p.search, cmd = p.search.Update(msg)
	if p.search.Value() != before {
		p.filter()
	}
	return cmd, false
}

// filter applies the search query with a case-insensitive substring match
// on the label and the id.
func (p *picker) filter() {
	query := strings.ToLower(strings.TrimSpace(p.search.Value()))
	if query == "" {
		p.filtered = p.items
	} else {
		p.filtered = make([]pickItem, 0)
		for _, it := range p.items {
			if strings.Contains(strings.ToLower(it.label), query) || strings.Contains(it.id, query) {
				p.filtered = append(p.filtered, it)
			}
		}
	}
	if p.selected >= len(p.filtered) {
		p.selected = 0
	}
}

// View renders the search input and the visible window of rows.
func (p *picker) View() string {
	s := theme.Current().S()
	if len(p.items) == 0 {
		return s.Muted.Render(p.empty)
	}

	var b strings.Builder
	b.WriteString(p.search.View())
	b.WriteString("\n")

	if len(p.filtered) == 0 {
		b.WriteString(s.Muted.Render("Nothing matches your search"))
		return b.String()
	}

	start := 0
	if p.selected >= p.height {
		start = p.selected - p.height + 1
	}
	end := min(start+p.height, len(p.filtered))
	for i := start; i < end; i++ {
		it := p.filtered[i]
		line := it.label
		if i == p.selected {
			line = s.ItemSelected.Render(" " + line + " ")
		} else {
			line = s.ItemNormal.Render(" " + line + " ")
		}
		if it.detail != "" {
			line += " " + s.Dim.Render(it.detail)
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	if end < len(p.filtered) {
		b.WriteString("\n")
		b.WriteString(s.Dim.Render("  ↓ more"))
	}
	return b.String()
}
