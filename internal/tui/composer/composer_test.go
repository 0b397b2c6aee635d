package composer

import (
	"context"
	"sync"
	"testing"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/linking"
	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/template"
	"github.com/mark3labs/automatr/internal/tui/form"
	"github.com/mark3labs/automatr/internal/tui/testfixtures"
	"github.com/mark3labs/automatr/internal/wizard"
)

// fakeLinker links services from a set and answers Link with a fixed outcome.
type fakeLinker struct {
	mu      sync.Mutex
	linked  map[string]bool
	outcome linking.Outcome
	err     error
	calls   []string
}

func newFakeLinker() *fakeLinker {
	return &fakeLinker{linked: map[string]bool{}, outcome: linking.Redirected}
}

func (f *fakeLinker) IsLinked(s catalog.Service) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return s.AlwaysLinked() || s.Connected || f.linked[s.ID]
}

func (f *fakeLinker) Link(ctx context.Context, s catalog.Service) (linking.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s.ID)
	if f.err != nil {
		return linking.Result{}, f.err
	}
	if f.outcome == linking.Linked {
		f.linked[s.ID] = true
	}
	return linking.Result{Outcome: f.outcome, URL: "https://auth.example.com/" + s.ID}, nil
}

func (f *fakeLinker) link(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linked[id] = true
}

type harness struct {
	t       *testing.T
	m       *Model
	backend *testfixtures.FakeAPI
	loader  *testfixtures.FakeLoader
	links   *fakeLinker
	quit    bool
}

func newHarness(t *testing.T, tmpl *template.File) *harness {
	h := &harness{
		t:       t,
		backend: testfixtures.NewFakeAPI(),
		loader:  testfixtures.NewFakeLoader(),
		links:   newFakeLinker(),
	}
	h.m = New(Deps{
		Loader:    h.loader,
		Linker:    h.links,
		Options:   h.backend,
		Submitter: submit.New(h.backend),
		Template:  tmpl,
	})
	h.m.Update(tea.WindowSizeMsg{Width: testfixtures.TestTermWidth, Height: testfixtures.TestTermHeight})
	return h
}

// start runs Init and waits for the catalog.
func (h *harness) start() *harness {
	h.run(h.m.Init(), 0)
	return h
}

func (h *harness) send(msg tea.Msg) {
	_, cmd := h.m.Update(msg)
	h.run(cmd, 0)
}

// run executes cmd and feeds the resulting messages back into the model.
// Spinner ticks are dropped so animations do not loop.
func (h *harness) run(cmd tea.Cmd, depth int) {
	if depth > 8 {
		return
	}
	for _, msg := range testfixtures.Drain(cmd) {
		switch msg.(type) {
		case spinner.TickMsg:
			continue
		case tea.QuitMsg:
			h.quit = true
			continue
		}
		_, next := h.m.Update(msg)
		h.run(next, depth+1)
	}
}

func (h *harness) press(keys ...string) {
	for _, k := range keys {
		h.send(keyPress(k))
	}
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.send(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
}

func (h *harness) step(id string) wizard.Step {
	h.t.Helper()
	st, ok := h.m.State().Step(id)
	require.True(h.t, ok, "step %s", id)
	return st
}

func (h *harness) screen() string {
	return testfixtures.Screen(h.m.View())
}

func keyPress(k string) tea.KeyPressMsg {
	switch k {
	case "enter":
		return tea.KeyPressMsg{Code: tea.KeyEnter}
	case "esc":
		return tea.KeyPressMsg{Code: tea.KeyEscape}
	case "tab":
		return tea.KeyPressMsg{Code: tea.KeyTab}
	case "up":
		return tea.KeyPressMsg{Code: tea.KeyUp}
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}
	case "left":
		return tea.KeyPressMsg{Code: tea.KeyLeft}
	case "right":
		return tea.KeyPressMsg{Code: tea.KeyRight}
	case "shift+left":
		return tea.KeyPressMsg{Code: tea.KeyLeft, Mod: tea.ModShift}
	case "shift+right":
		return tea.KeyPressMsg{Code: tea.KeyRight, Mod: tea.ModShift}
	case "ctrl+c":
		return tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl}
	case "ctrl+e":
		return tea.KeyPressMsg{Code: 'e', Mod: tea.ModCtrl}
	case "ctrl+r":
		return tea.KeyPressMsg{Code: 'r', Mod: tea.ModCtrl}
	case "ctrl+s":
		return tea.KeyPressMsg{Code: 's', Mod: tea.ModCtrl}
	}
	r := []rune(k)[0]
	return tea.KeyPressMsg{Code: r, Text: k}
}

// composeTimerToDiscord walks the wizard from a fresh state to a submittable
// timer → discord composition.
func composeTimerToDiscord(h *harness) {
	h.press("enter") // timer
	h.press("enter") // every_day
	h.typeText("8")
	h.press("enter") // to Test
	h.press("enter") // on to action-0

	h.typeText("disc")
	h.press("enter") // discord
	h.press("enter") // send_message
	h.press("right") // #general
	h.press("tab")
	h.typeText("hi")
	h.press("enter") // to Test
	h.press("enter") // collapse
}

func TestInit_LoadsCatalogInTwoPhases(t *testing.T) {
	h := newHarness(t, nil)
	assert.Contains(t, h.screen(), "Loading services...")

	h.start()

	require.True(t, h.m.Catalog().DetailsLoaded())
	assert.Equal(t, 1, h.loader.Calls())
	assert.Equal(t, wizard.TriggerID, h.m.State().Active)
	screen := h.screen()
	assert.Contains(t, screen, "4 services")
	assert.Contains(t, screen, "Timer")
	assert.Contains(t, screen, "GitHub")
}

func TestInit_CatalogFailureAndRetry(t *testing.T) {
	h := newHarness(t, nil)
	h.loader.ServicesErr = testfixtures.ErrOffline
	h.start()

	assert.Nil(t, h.m.Catalog())
	assert.Contains(t, h.screen(), "could not be loaded")

	h.loader.ServicesErr = nil
	h.press("r")

	assert.Equal(t, 2, h.loader.Calls())
	assert.True(t, h.m.Catalog().DetailsLoaded())
	assert.NotContains(t, h.screen(), "could not be loaded")
}

func TestCompose_EndToEnd(t *testing.T) {
	h := newHarness(t, nil).start()
	composeTimerToDiscord(h)

	st := h.m.State()
	assert.Equal(t, wizard.NoStep, st.Active)
	assert.Equal(t, map[string]string{"hour": "8"}, h.step(wizard.TriggerID).Config)
	assert.Equal(t, map[string]string{"channel": "c-general", "message": "hi"}, h.step(wizard.ActionID(0)).Config)
	require.True(t, st.CanSubmit())

	h.press("enter") // cursor sits on create
	require.True(t, h.quit)

	reqs := h.backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "timer", reqs[0].TriggerServiceID)
	assert.Equal(t, "every_day", reqs[0].TriggerEventID)
	assert.Equal(t, map[string]string{"hour": "8"}, reqs[0].TriggerConfig)
	assert.Equal(t, "discord", reqs[0].ActionServiceID)
	assert.Equal(t, "send_message", reqs[0].ActionEventID)
	assert.Equal(t, submit.DefaultAreaName, reqs[0].Name)
	assert.Equal(t, 1, h.m.result.Submit.Created)
}

func TestCompose_TestPhaseShowsPreview(t *testing.T) {
	h := newHarness(t, nil).start()
	h.press("enter", "down", "enter") // timer, every_minute

	assert.Equal(t, wizard.PhaseTest, h.step(wizard.TriggerID).Phase)
	screen := h.screen()
	assert.Contains(t, screen, "This step will send:")
	assert.Contains(t, screen, `"action_service_id": "timer"`)
	assert.Contains(t, screen, `"action_name": "every_minute"`)
}

func TestSubmit_BlockedUntilReady(t *testing.T) {
	h := newHarness(t, nil).start()
	h.press("enter", "enter") // timer, every_day; action still empty

	h.press("ctrl+s")

	assert.False(t, h.quit)
	assert.False(t, h.m.submitting)
	assert.Empty(t, h.backend.Requests())
}

func TestSubmit_TotalFailureShowsAlert(t *testing.T) {
	h := newHarness(t, nil).start()
	h.backend.FailCreate["discord"] = true
	composeTimerToDiscord(h)

	h.press("ctrl+s")

	assert.False(t, h.quit)
	assert.Contains(t, h.screen(), "No automation could be created")
	h.press("enter")
	assert.Empty(t, h.m.alert)
}

func TestSubmit_NotSignedIn(t *testing.T) {
	h := newHarness(t, nil).start()
	h.backend.Anonymous = true
	composeTimerToDiscord(h)

	h.press("ctrl+s")

	assert.False(t, h.quit)
	assert.Contains(t, h.m.alert, "not signed in")
	assert.Empty(t, h.backend.Requests())
}

func TestSubmit_PartialSuccessQuits(t *testing.T) {
	h := newHarness(t, nil).start()
	composeTimerToDiscord(h)

	h.press("a")
	require.Equal(t, wizard.ActionID(1), h.m.State().Active)
	h.typeText("gmail")
	h.press("enter", "enter") // gmail, send_email
	h.typeText("me@example.com")
	h.backend.FailCreate["gmail"] = true

	h.press("ctrl+s")

	require.True(t, h.quit)
	assert.Equal(t, 1, h.m.result.Submit.Created)
	assert.Equal(t, 1, h.m.result.Submit.Failed)
	assert.Len(t, h.backend.Requests(), 2)
}

func TestAccount_RedirectThenReload(t *testing.T) {
	h := newHarness(t, nil).start()
	h.typeText("git")
	h.press("enter")
	require.Equal(t, wizard.PhaseAccount, h.step(wizard.TriggerID).Phase)
	assert.Contains(t, h.screen(), "Connect your GitHub account")

	h.press("enter")
	assert.Equal(t, []string{"github"}, h.links.calls)
	assert.Equal(t, wizard.PhaseAccount, h.step(wizard.TriggerID).Phase)
	assert.Contains(t, h.screen(), "Finish signing in in your browser")

	h.links.link("github")
	h.press("ctrl+r")

	assert.Equal(t, 2, h.loader.Calls())
	assert.Equal(t, wizard.PhaseConfig, h.step(wizard.TriggerID).Phase)
}

func TestAccount_LinkedImmediately(t *testing.T) {
	h := newHarness(t, nil).start()
	h.links.outcome = linking.Linked
	h.typeText("git")
	h.press("enter", "enter")

	assert.Equal(t, wizard.PhaseConfig, h.step(wizard.TriggerID).Phase)
	assert.Contains(t, h.screen(), "New issue")
}

func TestAccount_Unsupported(t *testing.T) {
	h := newHarness(t, nil).start()
	h.links.err = linking.ErrLinkUnsupported
	h.typeText("git")
	h.press("enter", "enter")

	assert.Equal(t, wizard.PhaseAccount, h.step(wizard.TriggerID).Phase)
	assert.Contains(t, h.screen(), "cannot be linked from here")
}

func TestStaleLinkResultDropped(t *testing.T) {
	h := newHarness(t, nil).start()
	h.typeText("git")
	h.press("enter")
	ticket := h.m.State().TicketFor(wizard.TriggerID, "")

	// Switch the trigger to timer before the link result arrives.
	h.press("shift+left")
	require.Equal(t, wizard.PhaseApp, h.step(wizard.TriggerID).Phase)
	h.press("up", "enter")
	require.Equal(t, "timer", h.step(wizard.TriggerID).Service.ID)

	h.send(linkResultMsg{ticket: ticket, result: linking.Result{Outcome: linking.Linked}})

	assert.Equal(t, wizard.PhaseConfig, h.step(wizard.TriggerID).Phase)
	assert.Empty(t, h.m.linkNotes)
}

func TestStaleFieldChangeDropped(t *testing.T) {
	h := newHarness(t, nil).start()
	h.press("enter", "enter") // timer, every_day
	old := h.m.State().TicketFor(wizard.TriggerID, "hour")

	h.press("ctrl+e", "down", "enter") // every_minute
	require.Equal(t, "every_minute", h.step(wizard.TriggerID).Event.ID)

	h.send(form.FieldChangedMsg{Origin: old, Key: "hour", Value: "9"})

	assert.Empty(t, h.step(wizard.TriggerID).Config)
}

func TestTemplatePrefill(t *testing.T) {
	tmpl := &template.File{
		Name:    "Morning ping",
		Trigger: template.Step{Service: "timer", Event: "every_day", Config: map[string]string{"hour": "7"}},
		Actions: []template.Step{{Service: "discord", Event: "send_message"}},
	}
	h := newHarness(t, tmpl).start()

	st := h.m.State()
	assert.Equal(t, "Morning ping", st.AreaName)
	assert.Equal(t, "every_day", h.step(wizard.TriggerID).Event.ID)
	assert.Equal(t, map[string]string{"hour": "7"}, h.step(wizard.TriggerID).Config)
	assert.Equal(t, "send_message", h.step(wizard.ActionID(0)).Event.ID)
	assert.True(t, st.CanSubmit())
	assert.Empty(t, h.m.notice)

	// A reload does not apply the template again.
	h.press("ctrl+r")
	assert.Equal(t, map[string]string{"hour": "7"}, h.step(wizard.TriggerID).Config)
}

func TestTemplatePrefill_Partial(t *testing.T) {
	tmpl := &template.File{
		Trigger: template.Step{Service: "timer", Event: "every_day"},
		Actions: []template.Step{{Service: "slack", Event: "post"}},
	}
	h := newHarness(t, tmpl).start()

	assert.Equal(t, "every_day", h.step(wizard.TriggerID).Event.ID)
	assert.Nil(t, h.step(wizard.ActionID(0)).Service)
	assert.Contains(t, h.m.notice, "Template applied partially")
}

func TestCollapsedNavigation(t *testing.T) {
	h := newHarness(t, nil).start()
	h.press("esc")
	require.Equal(t, wizard.NoStep, h.m.State().Active)

	h.press("down", "enter")
	assert.Equal(t, wizard.ActionID(0), h.m.State().Active)

	h.press("esc", "a")
	assert.Len(t, h.m.State().Actions, 2)
	assert.Equal(t, wizard.ActionID(1), h.m.State().Active)
	assert.Contains(t, h.screen(), "Action 2")
}

func TestAreaName(t *testing.T) {
	h := newHarness(t, nil).start()
	h.press("esc", "n")
	require.True(t, h.m.editingName)

	h.typeText("Daily")
	h.press("enter")

	assert.False(t, h.m.editingName)
	assert.Equal(t, "Daily", h.m.State().AreaName)
	assert.Contains(t, h.screen(), "Daily")
}

func TestAreaName_EditsTemplateName(t *testing.T) {
	tmpl := &template.File{
		Name:    "Morning ping",
		Trigger: template.Step{Service: "timer", Event: "every_day"},
		Actions: []template.Step{{Service: "discord", Event: "send_message"}},
	}
	h := newHarness(t, tmpl).start()
	h.press("esc", "n")
	require.True(t, h.m.editingName)
	assert.Equal(t, "Morning ping", h.m.nameInput.Value())

	h.typeText("!")
	h.press("enter")

	assert.Equal(t, "Morning ping!", h.m.State().AreaName)
}

func TestCtrlCCancels(t *testing.T) {
	h := newHarness(t, nil).start()
	h.press("ctrl+c")

	assert.True(t, h.quit)
	assert.True(t, h.m.cancelled)
}

func TestReloadFailureKeepsCatalog(t *testing.T) {
	h := newHarness(t, nil).start()
	h.loader.ServicesErr = testfixtures.ErrOffline

	h.press("ctrl+r")

	assert.True(t, h.m.Catalog().DetailsLoaded())
	assert.Contains(t, h.m.notice, "Could not refresh the catalog")
	assert.NotContains(t, h.screen(), "The service catalog could not be loaded")
}
