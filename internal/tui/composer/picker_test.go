package composer

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/automatr/internal/tui/testfixtures"
)

func testItems() []pickItem {
	return []pickItem{
		{id: "timer", label: "Timer"},
		{id: "github", label: "GitHub", detail: "not connected"},
		{id: "discord", label: "Discord", detail: "connected"},
	}
}

func TestPicker_Navigate(t *testing.T) {
	p := newPicker(testItems(), "", "nothing")
	p.Focus()

	p.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	p.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	p.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	it, ok := p.Selected()
	require.True(t, ok)
	assert.Equal(t, "discord", it.id)

	p.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	_, picked := p.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	assert.True(t, picked)
	it, _ = p.Selected()
	assert.Equal(t, "github", it.id)
}

func TestPicker_Filter(t *testing.T) {
	p := newPicker(testItems(), "", "nothing")
	p.Focus()

	for _, r := range "HUB" {
		p.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	require.Len(t, p.filtered, 1)
	assert.Equal(t, "github", p.filtered[0].id)
	assert.Contains(t, testfixtures.Plain(p.View()), "not connected")

	for _, r := range "zzz" {
		p.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	_, picked := p.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	assert.False(t, picked)
	assert.Contains(t, testfixtures.Plain(p.View()), "Nothing matches your search")
}

func TestPicker_SelectID(t *testing.T) {
	p := newPicker(testItems(), "", "nothing")
	p.selectID("discord")

	it, ok := p.Selected()
	require.True(t, ok)
	assert.Equal(t, "discord", it.id)

	p.selectID("missing")
	it, _ = p.Selected()
	assert.Equal(t, "discord", it.id)
}

func TestPicker_Empty(t *testing.T) {
	p := newPicker(nil, "", "No apps available")

	_, ok := p.Selected()
	assert.False(t, ok)
	assert.Equal(t, "No apps available", testfixtures.Plain(p.View()))
}

func TestPicker_Window(t *testing.T) {
	var items []pickItem
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		items = append(items, pickItem{id: id, label: "item-" + id})
	}
	p := newPicker(items, "", "nothing")

	view := testfixtures.Plain(p.View())
	assert.Contains(t, view, "item-h")
	assert.NotContains(t, view, "item-i")
	assert.Contains(t, view, "↓ more")

	for range 9 {
		p.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	}
	view = testfixtures.Plain(p.View())
	assert.Contains(t, view, "item-j")
	assert.NotContains(t, view, "item-b")
}
