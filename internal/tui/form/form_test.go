package form

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/tui/testfixtures"
	"github.com/mark3labs/automatr/internal/wizard"
)

func sendMessageFields() []catalog.ConfigField {
	ev, _ := testfixtures.Catalog().Action("discord", "send_message")
	return ev.Fields
}

func typeText(f *Form, s string) []FieldChangedMsg {
	var out []FieldChangedMsg
	for _, r := range s {
		cmd := f.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
		out = append(out, testfixtures.MsgsOf[FieldChangedMsg](testfixtures.Drain(cmd))...)
	}
	return out
}

// loadOptions runs the fetches started by Init and feeds the results back.
func loadOptions(t *testing.T, f *Form) {
	t.Helper()
	for _, msg := range testfixtures.MsgsOf[optionsLoadedMsg](testfixtures.Drain(f.Init())) {
		f.Update(msg)
	}
}

func TestNew_NoFields(t *testing.T) {
	f := New(nil, nil)

	assert.True(t, f.Empty())
	assert.Equal(t, NoConfigText, testfixtures.Plain(f.View()))
	assert.Nil(t, f.Update(tea.KeyPressMsg{Code: tea.KeyTab}))
}

func TestRemoteSelect_LoadsOptions(t *testing.T) {
	backend := testfixtures.NewFakeAPI()
	f := New(sendMessageFields(), nil, WithFetcher(backend))

	assert.Equal(t, OptionsLoading, f.Status("channel"))
	assert.Contains(t, testfixtures.Plain(f.View()), "Loading options...")

	loadOptions(t, f)

	assert.Equal(t, OptionsReady, f.Status("channel"))
	assert.Equal(t, []string{testfixtures.ChannelsURL}, backend.OptionCalls)
	assert.False(t, f.Loading())
	assert.Contains(t, testfixtures.Plain(f.View()), "Select...")
}

func TestRemoteSelect_FailureKeepsSiblingsUsable(t *testing.T) {
	backend := testfixtures.NewFakeAPI()
	backend.SetOptionErr(testfixtures.ChannelsURL, testfixtures.ErrOffline)
	origin := wizard.Ticket{StepID: "action-0", ServiceID: "discord", EventID: "send_message"}
	f := New(sendMessageFields(), nil, WithFetcher(backend), WithOrigin(origin))

	loadOptions(t, f)
	require.Equal(t, OptionsFailed, f.Status("channel"))
	assert.Contains(t, testfixtures.Plain(f.View()), "Could not load options")

	// The message field still takes input.
	f.Update(tea.KeyPressMsg{Code: tea.KeyTab})
	changes := typeText(f, "hi")
	require.NotEmpty(t, changes)
	last := changes[len(changes)-1]
	assert.Equal(t, "message", last.Key)
	assert.Equal(t, "hi", last.Value)
	assert.Equal(t, "action-0", last.Origin.StepID)
	assert.Equal(t, "message", last.Origin.Field)
	assert.Equal(t, map[string]string{"message": "hi"}, f.Values())
}

func TestRemoteSelect_Retry(t *testing.T) {
	backend := testfixtures.NewFakeAPI()
	backend.SetOptionErr(testfixtures.ChannelsURL, testfixtures.ErrOffline)
	f := New(sendMessageFields(), nil, WithFetcher(backend))
	loadOptions(t, f)
	require.Equal(t, OptionsFailed, f.Status("channel"))

	backend.SetOptionErr(testfixtures.ChannelsURL, nil)
	cmd := f.Update(tea.KeyPressMsg{Code: 'r', Text: "r"})
	assert.Equal(t, OptionsLoading, f.Status("channel"))

	for _, msg := range testfixtures.MsgsOf[optionsLoadedMsg](testfixtures.Drain(cmd)) {
		f.Update(msg)
	}
	assert.Equal(t, OptionsReady, f.Status("channel"))
	assert.Len(t, backend.OptionCalls, 2)
}

func TestRemoteSelect_StaleResultDropped(t *testing.T) {
	backend := testfixtures.NewFakeAPI()
	backend.SetOptionErr(testfixtures.ChannelsURL, testfixtures.ErrOffline)
	f := New(sendMessageFields(), nil, WithFetcher(backend))
	stale := testfixtures.MsgsOf[optionsLoadedMsg](testfixtures.Drain(f.Init()))
	require.Len(t, stale, 1)

	// A retry supersedes the first fetch before its result arrives.
	f.Retry(0)
	f.Update(stale[0])
	assert.Equal(t, OptionsLoading, f.Status("channel"))

	// Results addressed to another form are ignored too.
	other := New(sendMessageFields(), nil, WithFetcher(backend))
	other.Update(optionsLoadedMsg{form: f.id, field: 0, err: testfixtures.ErrOffline})
	assert.Equal(t, OptionsLoading, other.Status("channel"))
}

func TestSelect_CycleEmitsSingleKey(t *testing.T) {
	f := New(sendMessageFields(), map[string]string{"message": "keep"}, WithFetcher(testfixtures.NewFakeAPI()))
	loadOptions(t, f)

	changes := testfixtures.MsgsOf[FieldChangedMsg](testfixtures.Drain(f.Update(tea.KeyPressMsg{Code: tea.KeyRight})))
	require.Len(t, changes, 1)
	assert.Equal(t, "channel", changes[0].Key)
	assert.Equal(t, "c-general", changes[0].Value)

	changes = testfixtures.MsgsOf[FieldChangedMsg](testfixtures.Drain(f.Update(tea.KeyPressMsg{Code: tea.KeyLeft})))
	require.Len(t, changes, 1)
	assert.Equal(t, "c-alerts", changes[0].Value)

	assert.Equal(t, map[string]string{"channel": "c-alerts", "message": "keep"}, f.Values())
	assert.Contains(t, testfixtures.Plain(f.View()), "#alerts")
}

func TestStaticSelect(t *testing.T) {
	fields := []catalog.ConfigField{{
		Name:    "unit",
		Label:   "Unit",
		Kind:    catalog.KindSelect,
		Options: []catalog.Option{{ID: "c", Name: "Celsius"}, {ID: "f", Name: "Fahrenheit"}},
	}}
	f := New(fields, map[string]string{"unit": "f"})

	assert.Nil(t, testfixtures.MsgsOf[optionsLoadedMsg](testfixtures.Drain(f.Init())))
	assert.Equal(t, OptionsReady, f.Status("unit"))
	assert.Contains(t, testfixtures.Plain(f.View()), "Fahrenheit")

	changes := testfixtures.MsgsOf[FieldChangedMsg](testfixtures.Drain(f.Update(tea.KeyPressMsg{Code: tea.KeyRight})))
	require.Len(t, changes, 1)
	assert.Equal(t, "c", changes[0].Value)
}

func TestNumberField_RejectsLetters(t *testing.T) {
	ev, _ := testfixtures.Catalog().Trigger("timer", "every_day")
	f := New(ev.Fields, nil)
	testfixtures.Drain(f.Init())

	assert.Empty(t, typeText(f, "ab"))
	changes := typeText(f, "12")
	require.Len(t, changes, 2)
	assert.Equal(t, "12", changes[1].Value)
	assert.Contains(t, testfixtures.Plain(f.View()), "Hour *")
}

func TestNoFetcher_FailsLocally(t *testing.T) {
	f := New(sendMessageFields(), nil)
	testfixtures.Drain(f.Init())

	assert.Equal(t, OptionsFailed, f.Status("channel"))
	assert.False(t, f.Loading())
}

func noteFields() []catalog.ConfigField {
	return []catalog.ConfigField{
		{Name: "body", Label: "Body", Kind: catalog.KindTextarea},
		{Name: "count", Label: "Count", Kind: catalog.KindNumber},
	}
}

func writeEdited(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edited.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestEditor_OpensOnFreeTextOnly(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("EDITOR", "true")
	t.Setenv("TMPDIR", tmp)
	f := New(noteFields(), map[string]string{"body": "draft"})
	ctrlO := tea.KeyPressMsg{Code: 'o', Mod: tea.ModCtrl}

	assert.True(t, f.EditorAvailable())
	assert.NotNil(t, f.Update(ctrlO))

	files, err := filepath.Glob(filepath.Join(tmp, "automatr_field_*.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "draft", string(data))

	f.Update(tea.KeyPressMsg{Code: tea.KeyTab})
	assert.False(t, f.EditorAvailable())
	f.Update(ctrlO)
	files, err = filepath.Glob(filepath.Join(tmp, "automatr_field_*.txt"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestEditor_WritesBackMultilineValue(t *testing.T) {
	origin := wizard.Ticket{StepID: "action-0", ServiceID: "gmail", EventID: "send_email"}
	f := New(noteFields(), map[string]string{"body": "draft"}, WithOrigin(origin))
	path := writeEdited(t, "line one\nline two\n")

	changes := testfixtures.MsgsOf[FieldChangedMsg](testfixtures.Drain(f.Update(editorDoneMsg{form: f.id, field: 0, path: path})))
	require.Len(t, changes, 1)
	assert.Equal(t, "body", changes[0].Key)
	assert.Equal(t, "line one\nline two", changes[0].Value)
	assert.Equal(t, "body", changes[0].Origin.Field)
	assert.NoFileExists(t, path)

	view := testfixtures.Plain(f.View())
	assert.Contains(t, view, "line one")
	assert.Contains(t, view, "(+1 lines)")

	// Typing does not flatten a multi-line value.
	assert.Empty(t, typeText(f, "x"))
	assert.Equal(t, "line one\nline two", f.Values()["body"])
}

func TestEditor_StaleOrFailedResultDropped(t *testing.T) {
	f := New(noteFields(), map[string]string{"body": "draft"})

	path := writeEdited(t, "changed")
	assert.Nil(t, f.Update(editorDoneMsg{form: f.id + 1, field: 0, path: path}))
	assert.NoFileExists(t, path)

	path = writeEdited(t, "changed")
	assert.Nil(t, f.Update(editorDoneMsg{form: f.id, field: 0, path: path, err: errors.New("exit status 1")}))
	assert.NoFileExists(t, path)

	assert.Equal(t, "draft", f.Values()["body"])
}
