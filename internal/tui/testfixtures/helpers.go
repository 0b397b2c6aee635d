// Package testfixtures holds the catalog, fakes and helpers shared by the
// TUI tests.
package testfixtures

import (
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/colorprofile"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/ansi"
)

// Initialize test environment
func init() {
	// Set Ascii profile to disable color output for consistent output across CI/platforms
	lipgloss.Writer.Profile = colorprofile.Ascii
}

// Canonical terminal size for all tests
const (
	TestTermWidth  = 120
	TestTermHeight = 40
)

// CmdTimeout bounds how long Drain waits for a single command. Commands
// that block longer (cursor blink, animation ticks) are skipped.
const CmdTimeout = 200 * time.Millisecond

// Drain runs cmd and every command nested in batches, returning the
// messages produced.
func Drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(CmdTimeout):
		return nil
	}

	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, Drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// MsgsOf filters msgs down to type T.
func MsgsOf[T tea.Msg](msgs []tea.Msg) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// Plain strips ANSI sequences from rendered output.
func Plain(s string) string {
	return ansi.Strip(s)
}

// Screen draws a view onto a canonical canvas and returns its plain text.
func Screen(v tea.View) string {
	canvas := uv.NewScreenBuffer(TestTermWidth, TestTermHeight)
	if v.Content != nil {
		v.Content.Draw(canvas, canvas.Bounds())
	}
	return Plain(canvas.Render())
}
