// Package form renders the configuration fields of a trigger or action as
// editable controls. Select fields backed by an options URL load their
// choices asynchronously without blocking the rest of the form.
package form

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/editor"

	"github.com/mark3labs/automatr/internal/api"
	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/tui/theme"
	"github.com/mark3labs/automatr/internal/wizard"
)

// NoConfigText is shown instead of an empty form.
const NoConfigText = "No configuration needed"

// OptionsFetcher loads the choices of a remote select field. Relative
// references are resolved against the API base by the fetcher.
type OptionsFetcher interface {
	FetchOptions(ctx context.Context, ref string) ([]api.Option, error)
}

// OptionsStatus is the state of a select field's choices.
type OptionsStatus int

const (
	OptionsReady OptionsStatus = iota
	OptionsLoading
	OptionsFailed
)

// FieldChangedMsg carries a single key update for the step the form was
// built for.
type FieldChangedMsg struct {
	Origin wizard.Ticket
	Key    string
	Value  string
}

// optionsLoadedMsg delivers the result of a remote options fetch. Results
// for another form or an older fetch of the same field are dropped.
type optionsLoadedMsg struct {
	form    int64
	field   int
	gen     int
	options []catalog.Option
	err     error
}

// editorDoneMsg is sent when $EDITOR exits. The edited text is in path.
type editorDoneMsg struct {
	form  int64
	field int
	path  string
	err   error
}

var errNoFetcher = errors.New("no options source")

var formIDs atomic.Int64

type field struct {
	spec    catalog.ConfigField
	input   textinput.Model // text and number
	value   string
	options []catalog.Option
	status  OptionsStatus
	err     error
	gen     int
}

// Form is the config editor of one step.
type Form struct {
	id      int64
	origin  wizard.Ticket
	fields  []*field
	focus   int
	fetcher OptionsFetcher
	spinner spinner.Model
	width   int
}

// Option configures a Form.
type Option func(*Form)

// WithFetcher sets the loader for remote select fields.
func WithFetcher(f OptionsFetcher) Option {
	return func(fm *Form) { fm.fetcher = f }
}

// WithOrigin tags every FieldChangedMsg with the step the form edits.
func WithOrigin(t wizard.Ticket) Option {
	return func(fm *Form) { fm.origin = t }
}

// WithWidth sets the rendering width.
func WithWidth(w int) Option {
	return func(fm *Form) { fm.width = w }
}

// New builds a form for fields, seeded with values.
func New(fields []catalog.ConfigField, values map[string]string, opts ...Option) *Form {
	t := theme.Current()
	f := &Form{
		id:      formIDs.Add(1),
		spinner: t.NewSpinner(),
		width:   60,
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, spec := range fields {
		fd := &field{spec: spec, value: values[spec.Name]}
		switch spec.Kind {
		case catalog.KindSelect:
			fd.options = spec.Options
			if spec.Remote() {
				fd.status = OptionsLoading
			}
		default:
			in := textinput.New()
			in.Prompt = "> "
			in.Placeholder = spec.Placeholder
			switch {
			case in.Placeholder != "":
			case spec.Kind == catalog.KindNumber:
				in.Placeholder = "0"
			case spec.Kind == catalog.KindTextarea:
				in.Placeholder = "ctrl+o opens your editor"
			}
			in.SetStyles(t.InputStyles())
			in.SetWidth(f.inputWidth())
			in.SetValue(fd.value)
			fd.input = in
		}
		f.fields = append(f.fields, fd)
	}
	return f
}

// Init starts the remote option fetches and focuses the first field.
func (f *Form) Init() tea.Cmd {
	var cmds []tea.Cmd
	loading := false
	for i, fd := range f.fields {
		if fd.status == OptionsLoading {
			loading = true
			cmds = append(cmds, f.fetch(i))
		}
	}
	if loading {
		cmds = append(cmds, f.spinner.Tick)
	}
	cmds = append(cmds, f.focusField(0))
	return tea.Batch(cmds...)
}

func (f *Form) fetch(i int) tea.Cmd {
	fd := f.fields[i]
	if f.fetcher == nil {
		fd.status = OptionsFailed
		fd.err = errNoFetcher
		return nil
	}
	fetcher, ref, id, gen := f.fetcher, fd.spec.OptionsURL, f.id, fd.gen
	return func() tea.Msg {
		opts, err := fetcher.FetchOptions(context.Background(), ref)
		msg := optionsLoadedMsg{form: id, field: i, gen: gen, err: err}
		for _, o := range opts {
			msg.options = append(msg.options, catalog.Option{ID: o.ID, Name: o.Name})
		}
		return msg
	}
}

// Update handles messages for the form. Value changes come back as a
// FieldChangedMsg command.
func (f *Form) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case optionsLoadedMsg:
		f.applyOptions(msg)
		return nil

	case editorDoneMsg:
		return f.applyEdit(msg)

	case spinner.TickMsg:
		if f.Loading() {
			var cmd tea.Cmd
			f.spinner, cmd = f.spinner.Update(msg)
			return cmd
		}
		return nil

	case tea.KeyPressMsg:
		return f.handleKey(msg)
	}

	if fd := f.focused(); fd != nil && fd.spec.Kind != catalog.KindSelect {
		var cmd tea.Cmd
		fd.input, cmd = fd.input.Update(msg)
		return cmd
	}
	return nil
}

func (f *Form) applyOptions(msg optionsLoadedMsg) {
	if msg.form != f.id || msg.field < 0 || msg.field >= len(f.fields) {
		return
	}
	fd := f.fields[msg.field]
	if msg.gen != fd.gen {
		return
	}
	if msg.err != nil {
		logger.Warn("Loading options for %s failed: %v", fd.spec.Name, msg.err)
		fd.status = OptionsFailed
		fd.err = msg.err
		return
	}
	fd.status = OptionsReady
	fd.err = nil
	fd.options = msg.options
}

func (f *Form) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "down":
		return f.focusField(f.focus + 1)
	case "shift+tab", "up":
		return f.focusField(f.focus - 1)
	}

	fd := f.focused()
	if fd == nil {
		return nil
	}

	if fd.spec.FreeText() {
		if msg.String() == "ctrl+o" {
			return f.openEditor(f.focus)
		}
		// Multi-line text is only edited in $EDITOR.
		if multiline(fd.value) {
			return nil
		}
	}

	if fd.spec.Kind == catalog.KindSelect {
		switch msg.String() {
		case "left", "h":
			return f.cycle(fd, -1)
		case "right", "l", "space":
			return f.cycle(fd, 1)
		case "r":
			if fd.status == OptionsFailed {
				return f.Retry(f.focus)
			}
		}
		return nil
	}

	if fd.spec.Kind == catalog.KindNumber && !numeric(msg.Text) {
		return nil
	}
	var cmd tea.Cmd
	fd.input, cmd = fd.input.Update(msg)
	if v := fd.input.Value(); v != fd.value {
		fd.value = v
		return tea.Batch(cmd, f.changed(fd))
	}
	return cmd
}

// openEditor hands the i-th field's value to $EDITOR in a temp file.
func (f *Form) openEditor(i int) tea.Cmd {
	fd := f.fields[i]
	tmp, err := os.CreateTemp("", "automatr_field_*.txt")
	if err != nil {
		logger.Warn("Creating temp file for %s failed: %v", fd.spec.Name, err)
		return nil
	}
	path := tmp.Name()
	if _, err := tmp.WriteString(fd.value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		logger.Warn("Writing temp file for %s failed: %v", fd.spec.Name, err)
		return nil
	}
	_ = tmp.Close()

	cmd, err := editor.Command("automatr", path)
	if err != nil {
		_ = os.Remove(path)
		logger.Warn("Opening editor failed: %v", err)
		return nil
	}

	id := f.id
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorDoneMsg{form: id, field: i, path: path, err: err}
	})
}

// applyEdit reads back the text written in $EDITOR. The temp file is
// removed even when the result is dropped.
func (f *Form) applyEdit(msg editorDoneMsg) tea.Cmd {
	defer func() { _ = os.Remove(msg.path) }()

	if msg.form != f.id || msg.field < 0 || msg.field >= len(f.fields) {
		return nil
	}
	fd := f.fields[msg.field]
	if msg.err != nil {
		logger.Warn("Editor for %s exited with error: %v", fd.spec.Name, msg.err)
		return nil
	}
	data, err := os.ReadFile(msg.path)
	if err != nil {
		logger.Warn("Reading edited %s failed: %v", fd.spec.Name, err)
		return nil
	}

	v := strings.TrimRight(string(data), "\r\n")
	if v == fd.value {
		return nil
	}
	fd.value = v
	fd.input.SetValue(v)
	return f.changed(fd)
}

// Retry refetches the options of the i-th field.
func (f *Form) Retry(i int) tea.Cmd {
	if i < 0 || i >= len(f.fields) || !f.fields[i].spec.Remote() {
		return nil
	}
	fd := f.fields[i]
	fd.gen++
	fd.status = OptionsLoading
	fd.err = nil
	return tea.Batch(f.fetch(i), f.spinner.Tick)
}

func (f *Form) cycle(fd *field, delta int) tea.Cmd {
	if fd.status != OptionsReady || len(fd.options) == 0 {
		return nil
	}
	idx := indexOf(fd.options, fd.value)
	switch {
	case idx < 0 && delta < 0:
		idx = len(fd.options) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + delta + len(fd.options)) % len(fd.options)
	}
	fd.value = fd.options[idx].ID
	return f.changed(fd)
}

func (f *Form) changed(fd *field) tea.Cmd {
	msg := FieldChangedMsg{Origin: f.origin, Key: fd.spec.Name, Value: fd.value}
	msg.Origin.Field = fd.spec.Name
	return func() tea.Msg { return msg }
}

func (f *Form) focusField(i int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	if i < 0 {
		i = 0
	}
	if i >= len(f.fields) {
		i = len(f.fields) - 1
	}
	for _, fd := range f.fields {
		if fd.spec.Kind != catalog.KindSelect {
			fd.input.Blur()
		}
	}
	f.focus = i
	if fd := f.fields[i]; fd.spec.Kind != catalog.KindSelect {
		return fd.input.Focus()
	}
	return nil
}

func (f *Form) focused() *field {
	if f.focus < 0 || f.focus >= len(f.fields) {
		return nil
	}
	return f.fields[f.focus]
}

// Blur removes the cursor from text inputs.
func (f *Form) Blur() {
	for _, fd := range f.fields {
		if fd.spec.Kind != catalog.KindSelect {
			fd.input.Blur()
		}
	}
}

// Focus restores the cursor on the focused field.
func (f *Form) Focus() tea.Cmd {
	return f.focusField(f.focus)
}

// SetWidth updates the rendering width.
func (f *Form) SetWidth(w int) {
	f.width = w
	for _, fd := range f.fields {
		if fd.spec.Kind != catalog.KindSelect {
			fd.input.SetWidth(f.inputWidth())
		}
	}
}

func (f *Form) inputWidth() int {
	if f.width < 20 {
		return 16
	}
	return f.width - 4
}

// Empty reports whether there is nothing to configure.
func (f *Form) Empty() bool { return len(f.fields) == 0 }

// Loading reports whether any field is still fetching options.
func (f *Form) Loading() bool {
	for _, fd := range f.fields {
		if fd.status == OptionsLoading {
			return true
		}
	}
	return false
}

// Status returns the options status of the named field.
func (f *Form) Status(name string) OptionsStatus {
	for _, fd := range f.fields {
		if fd.spec.Name == name {
			return fd.status
		}
	}
	return OptionsReady
}

// Values returns the current value of every field that has one.
func (f *Form) Values() map[string]string {
	out := make(map[string]string)
	for _, fd := range f.fields {
		if fd.value != "" {
			out[fd.spec.Name] = fd.value
		}
	}
	return out
}

// EditorAvailable reports whether ctrl+o opens the focused field in $EDITOR.
func (f *Form) EditorAvailable() bool {
	fd := f.focused()
	return fd != nil && fd.spec.FreeText()
}

// Origin returns the ticket the form was built for.
func (f *Form) Origin() wizard.Ticket { return f.origin }

// View renders the form.
func (f *Form) View() string {
	s := theme.Current().S()
	if len(f.fields) == 0 {
		return s.Muted.Render(NoConfigText)
	}

	var b strings.Builder
	for i, fd := range f.fields {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := fd.spec.Label
		if fd.spec.Required {
			label += " *"
		}
		if i == f.focus {
			b.WriteString(s.FieldLabelFocused.Render(label))
		} else {
			b.WriteString(s.FieldLabel.Render(label))
		}
		b.WriteString("\n")
		b.WriteString(f.renderControl(fd, i == f.focus))
	}
	return b.String()
}

func (f *Form) renderControl(fd *field, focused bool) string {
	s := theme.Current().S()
	if fd.spec.Kind != catalog.KindSelect {
		if !multiline(fd.value) {
			return fd.input.View()
		}
		lines := strings.Split(fd.value, "\n")
		out := "> " + s.Text.Render(lines[0]) + " " + s.Dim.Render(fmt.Sprintf("(+%d lines)", len(lines)-1))
		if focused {
			out += "  " + s.HintBar("ctrl+o", "edit")
		}
		return out
	}

	switch fd.status {
	case OptionsLoading:
		return f.spinner.View() + " " + s.Muted.Render("Loading options...")
	case OptionsFailed:
		out := s.Error.Render("✗ Could not load options")
		if focused {
			out += "  " + s.HintBar("r", "retry")
		}
		return out
	}

	if len(fd.options) == 0 {
		return s.Muted.Render("No options available")
	}
	name := "Select..."
	if idx := indexOf(fd.options, fd.value); idx >= 0 {
		name = fd.options[idx].Name
	}
	if focused {
		return s.ItemSelected.Render("‹ "+name+" ›") + "  " + s.Dim.Render("←→ change")
	}
	return s.ItemNormal.Render("‹ " + name + " ›")
}

func indexOf(opts []catalog.Option, id string) int {
	for i, o := range opts {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func multiline(v string) bool {
	return strings.Contains(v, "\n")
}

// numeric accepts key presses that can be part of a number. Non-text keys
// (arrows, backspace) have no text and pass through.
func numeric(text string) bool {
	for _, r := range text {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			return false
		}
	}
	return true
}
