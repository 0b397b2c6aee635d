// Package composer is the interactive wizard that assembles one trigger and
// one or more actions into automations.
//
// All wizard state lives in a wizard.State owned by the Model and is changed
// only in Update. Network work runs in commands whose results come back as
// messages; results that no longer match the step they were issued for are
// dropped.
package composer

import (
	"context"
	"errors"
	"fmt"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/linking"
	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/template"
	"github.com/mark3labs/automatr/internal/tui/form"
	"github.com/mark3labs/automatr/internal/tui/theme"
	"github.com/mark3labs/automatr/internal/wizard"
)

// ErrCancelled is returned by Run when the user leaves without submitting.
var ErrCancelled = errors.New("composition cancelled")

// CatalogLoader loads the catalog in two phases.
type CatalogLoader interface {
	Services(ctx context.Context) (*catalog.Catalog, error)
	Details(ctx context.Context, base *catalog.Catalog) *catalog.Catalog
}

// Linker checks and starts account linking.
type Linker interface {
	IsLinked(s catalog.Service) bool
	Link(ctx context.Context, s catalog.Service) (linking.Result, error)
}

// Submitter creates the automations.
type Submitter interface {
	Submit(ctx context.Context, st wizard.State) (submit.Result, error)
}

// Deps are the collaborators of the composer.
type Deps struct {
	Loader    CatalogLoader
	Linker    Linker
	Options   form.OptionsFetcher
	Submitter Submitter
	Template  *template.File // applied once the catalog details are loaded
}

// Result is what the composer hands back on exit.
type Result struct {
	Submit   submit.Result
	AreaName string
}

type loadPhase int

const (
	loadServices loadPhase = iota // service list outstanding
	loadDetails                   // services known, details outstanding
	loadDone
	loadFailed
)

// Rows of the collapsed view after the steps.
const (
	rowAdd = iota
	rowName
	rowSubmit
	extraRows
)

// Model is the Bubbletea model of the composer.
type Model struct {
	deps Deps
	st   wizard.State

	cat       *catalog.Catalog
	loading   loadPhase
	loadErr   error
	loadGen   int
	prefilled bool
	notice    string

	cursor      int
	editingName bool
	nameInput   textinput.Model

	appPicker      *picker
	appPickerFor   string
	eventPicker    *picker
	eventPickerFor wizard.Ticket
	changingEvent  bool
	form           *form.Form

	linking   bool
	linkNotes map[string]string // by step id

	submitting bool
	alert      string
	spinner    spinner.Model

	result    Result
	cancelled bool
	width     int
	height    int
}

// New creates a composer with a fresh wizard state.
func New(deps Deps) *Model {
	t := theme.Current()

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = submit.DefaultAreaName
	in.SetStyles(t.InputStyles())
	in.SetWidth(40)

	return &Model{
		deps:      deps,
		st:        wizard.New(),
		nameInput: in,
		linkNotes: make(map[string]string),
		spinner:   t.NewSpinner(),
		width:     100,
		height:    40,
	}
}

// Run runs the composer as a standalone program.
func Run(deps Deps) (*Result, error) {
	p := tea.NewProgram(New(deps))

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("composer failed: %w", err)
	}

	m, ok := finalModel.(*Model)
	if !ok {
		return nil, fmt.Errorf("unexpected model type")
	}
	if m.cancelled {
		return nil, ErrCancelled
	}
	return &m.result, nil
}

// State returns the current composition.
func (m *Model) State() wizard.State { return m.st }

// Catalog returns the loaded catalog, nil before the service list arrives.
func (m *Model) Catalog() *catalog.Catalog { return m.cat }

// Init starts loading the catalog.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCatalog(), m.spinner.Tick)
}

// links checks linkage against the freshest catalog entry of a service, so a
// reload is seen by steps that chose the service earlier.
func (m *Model) links() wizard.Linker {
	return freshLinks{cat: m.cat, links: m.deps.Linker}
}

type freshLinks struct {
	cat   *catalog.Catalog
	links Linker
}

func (f freshLinks) IsLinked(s catalog.Service) bool {
	if cur, ok := f.cat.Service(s.ID); ok {
		s = cur
	}
	if f.links == nil {
		return s.AlwaysLinked() || s.Connected
	}
	return f.links.IsLinked(s)
}

// Update handles messages for the composer.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.form != nil {
			m.form.SetWidth(m.cardWidth() - 4)
		}
		return m, nil

	case servicesLoadedMsg:
		return m, m.handleServices(msg)

	case detailsLoadedMsg:
		return m, m.handleDetails(msg)

	case linkResultMsg:
		m.handleLinkResult(msg)
		return m, m.sync()

	case submitDoneMsg:
		return m.handleSubmitDone(msg)

	case form.FieldChangedMsg:
		m.handleFieldChanged(msg)
		return m, nil

	case spinner.TickMsg:
		var cmds []tea.Cmd
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		if m.form != nil {
			cmds = append(cmds, m.form.Update(msg))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	// Everything else (cursor blinks, option results) goes to the widgets.
	var cmds []tea.Cmd
	if m.form != nil {
		cmds = append(cmds, m.form.Update(msg))
	}
	if m.editingName {
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) busy() bool {
	return m.loading == loadServices || m.loading == loadDetails || m.submitting || m.linking
}

// loadCatalog starts phase one. Results of an older load are ignored.
func (m *Model) loadCatalog() tea.Cmd {
	m.loadGen++
	gen, loader := m.loadGen, m.deps.Loader
	m.loading = loadServices
	m.loadErr = nil
	return func() tea.Msg {
		c, err := loader.Services(context.Background())
		return servicesLoadedMsg{gen: gen, catalog: c, err: err}
	}
}

func (m *Model) handleServices(msg servicesLoadedMsg) tea.Cmd {
	if msg.gen != m.loadGen {
		return nil
	}
	if msg.err != nil {
		logger.Error("Catalog unavailable: %v", msg.err)
		if m.cat.DetailsLoaded() {
			// A failed reload keeps the catalog already shown.
			m.loading = loadDone
			m.notice = "Could not refresh the catalog; press ctrl+r to try again."
			return nil
		}
		m.loading = loadFailed
		m.loadErr = msg.err
		return nil
	}

	// A reload keeps the loaded events until the new details arrive.
	if m.cat.DetailsLoaded() {
		refreshed := *m.cat
		refreshed.Services = msg.catalog.Services
		m.cat = &refreshed
	} else {
		m.cat = msg.catalog
		m.appPicker = nil
	}
	m.loading = loadDetails
	m.refreshLinks()

	gen, loader, base := msg.gen, m.deps.Loader, msg.catalog
	details := func() tea.Msg {
		return detailsLoadedMsg{gen: gen, catalog: loader.Details(context.Background(), base)}
	}
	return tea.Batch(details, m.sync())
}

func (m *Model) handleDetails(msg detailsLoadedMsg) tea.Cmd {
	if msg.gen != m.loadGen {
		return nil
	}
	m.cat = msg.catalog
	m.loading = loadDone
	m.appPicker = nil
	m.eventPicker = nil
	m.refreshLinks()

	if m.deps.Template != nil && !m.prefilled {
		m.prefilled = true
		st, err := m.deps.Template.Apply(m.cat, m.st)
		m.st = st
		if err != nil {
			m.notice = "Template applied partially: " + err.Error()
		}
	}
	return m.sync()
}

// refreshLinks moves steps waiting on an account that is now linked.
func (m *Model) refreshLinks() {
	for _, step := range m.st.Steps() {
		if step.Service == nil || step.Phase != wizard.PhaseAccount {
			continue
		}
		if m.links().IsLinked(*step.Service) {
			if st, err := m.st.MarkLinked(step.ID); err == nil {
				m.st = st
				delete(m.linkNotes, step.ID)
			}
		}
	}
}

func (m *Model) handleFieldChanged(msg form.FieldChangedMsg) {
	if !m.st.Relevant(msg.Origin) {
		logger.Debug("Dropping stale change of %s on %s", msg.Key, msg.Origin.StepID)
		return
	}
	st, err := m.st.SetConfigValue(msg.Origin.StepID, msg.Key, msg.Value)
	if err != nil {
		logger.Warn("Config change on %s rejected: %v", msg.Origin.StepID, err)
		return
	}
	m.st = st
}

func (m *Model) handleLinkResult(msg linkResultMsg) {
	m.linking = false
	if !m.st.Relevant(msg.ticket) {
		logger.Debug("Dropping stale link result for %s", msg.ticket.StepID)
		return
	}
	id := msg.ticket.StepID
	switch {
	case errors.Is(msg.err, linking.ErrLinkUnsupported):
		m.linkNotes[id] = noteUnsupported
	case msg.err != nil:
		logger.Error("Linking %s failed: %v", msg.ticket.ServiceID, msg.err)
		m.linkNotes[id] = noteFailed
	case msg.result.Outcome == linking.Linked:
		delete(m.linkNotes, id)
		if st, err := m.st.MarkLinked(id); err == nil {
			m.st = st
		}
	default:
		m.linkNotes[id] = noteRedirected
	}
}

func (m *Model) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	m.submitting = false
	if msg.result.Created > 0 {
		name := m.st.AreaName
		if name == "" {
			name = submit.DefaultAreaName
		}
		m.result = Result{Submit: msg.result, AreaName: name}
		return m, tea.Quit
	}
	switch {
	case errors.Is(msg.err, submit.ErrNoCredential):
		m.alert = "You are not signed in. Add a token with `automatr setup --token` and try again."
	default:
		logger.Error("Submit failed: %v", msg.err)
		m.alert = "No automation could be created. Check your connection and try again."
	}
	return m, nil
}

// startSubmit sends the composition. It does nothing until every step has a
// service and an event.
func (m *Model) startSubmit() tea.Cmd {
	if !m.st.CanSubmit() || m.submitting {
		return nil
	}
	m.submitting = true
	st, sub := m.st, m.deps.Submitter
	return tea.Batch(func() tea.Msg {
		res, err := sub.Submit(context.Background(), st)
		return submitDoneMsg{result: res, err: err}
	}, m.spinner.Tick)
}

// startLink begins linking the service of a step.
func (m *Model) startLink(step wizard.Step) tea.Cmd {
	if m.linking || m.deps.Linker == nil {
		if m.deps.Linker == nil {
			m.linkNotes[step.ID] = noteUnsupported
		}
		return nil
	}
	m.linking = true
	delete(m.linkNotes, step.ID)
	ticket := m.st.TicketFor(step.ID, "")
	svc, linker := *step.Service, m.deps.Linker
	return tea.Batch(func() tea.Msg {
		res, err := linker.Link(context.Background(), svc)
		return linkResultMsg{ticket: ticket, result: res, err: err}
	}, m.spinner.Tick)
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		m.cancelled = true
		return m, tea.Quit
	}

	if m.alert != "" {
		if key == "enter" || key == "esc" {
			m.alert = ""
		}
		return m, nil
	}

	if m.loading == loadFailed {
		switch key {
		case "r":
			return m, tea.Batch(m.loadCatalog(), m.spinner.Tick)
		case "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch key {
	case "ctrl+s":
		return m, m.startSubmit()
	case "ctrl+r":
		if m.loading == loadDone {
			return m, tea.Batch(m.loadCatalog(), m.spinner.Tick)
		}
		return m, nil
	}

	if m.editingName {
		return m, m.handleNameKey(msg)
	}
	if m.st.Active != wizard.NoStep {
		return m, m.handlePanelKey(msg)
	}
	return m.handleRowKey(msg)
}

func (m *Model) handleNameKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "enter", "esc", "tab":
		m.editingName = false
		m.nameInput.Blur()
		return nil
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	if v := m.nameInput.Value(); v != m.st.AreaName {
		m.st = m.st.SetAreaName(v)
	}
	return cmd
}

// editName starts editing the area name from its current value, which a
// template may have set.
func (m *Model) editName() tea.Cmd {
	m.editingName = true
	m.nameInput.SetValue(m.st.AreaName)
	return m.nameInput.Focus()
}

// handleRowKey navigates the collapsed list of steps and controls.
func (m *Model) handleRowKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	steps := m.st.Steps()
	rows := len(steps) + extraRows

	switch msg.String() {
	case "up", "k", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j", "tab":
		if m.cursor < rows-1 {
			m.cursor++
		}
	case "a":
		return m, m.addAction()
	case "n":
		m.cursor = len(steps) + rowName
		return m, m.editName()
	case "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	case "enter", "space":
		switch m.cursor - len(steps) {
		case rowAdd:
			return m, m.addAction()
		case rowName:
			return m, m.editName()
		case rowSubmit:
			return m, m.startSubmit()
		default:
			if st, err := m.st.SetActiveStep(steps[m.cursor].ID); err == nil {
				m.st = st
			}
			return m, m.sync()
		}
	}
	return m, nil
}

func (m *Model) addAction() tea.Cmd {
	m.st = m.st.AddAction()
	return m.sync()
}

// handlePanelKey routes keys to the expanded step.
func (m *Model) handlePanelKey(msg tea.KeyPressMsg) tea.Cmd {
	step, ok := m.st.Step(m.st.Active)
	if !ok {
		return nil
	}

	switch msg.String() {
	case "esc":
		if m.changingEvent {
			m.changingEvent = false
			return m.sync()
		}
		m.collapse(step.ID)
		return nil
	case "shift+left":
		return m.openPhase(step, -1)
	case "shift+right":
		return m.openPhase(step, 1)
	}

	switch step.Phase {
	case wizard.PhaseApp:
		return m.appKey(step, msg)
	case wizard.PhaseAccount:
		return m.accountKey(step, msg)
	case wizard.PhaseConfig:
		return m.configKey(step, msg)
	default:
		if msg.String() == "enter" {
			return m.advance(step.ID)
		}
	}
	return nil
}

// collapse closes the expanded step and puts the row cursor on it.
func (m *Model) collapse(id string) {
	st, err := m.st.SetActiveStep(wizard.NoStep)
	if err != nil {
		return
	}
	m.st = st
	m.form = nil
	for i, s := range m.st.Steps() {
		if s.ID == id {
			m.cursor = i
		}
	}
}

// openPhase jumps to a neighbouring sub-phase the step can show.
func (m *Model) openPhase(step wizard.Step, delta int) tea.Cmd {
	target := int(step.Phase) + delta
	if target < int(wizard.PhaseApp) || target > int(wizard.PhaseTest) {
		return nil
	}
	p := wizard.Phase(target)
	switch {
	case p >= wizard.PhaseAccount && step.Service == nil:
		return nil
	case p == wizard.PhaseTest && step.Event == nil:
		return nil
	}
	st, err := m.st.OpenPhase(step.ID, p)
	if err != nil {
		return nil
	}
	m.st = st
	m.changingEvent = false
	if p == wizard.PhaseApp {
		m.appPicker = nil
	}
	return m.sync()
}

// advance continues the step and follows the wizard to the next step.
func (m *Model) advance(id string) tea.Cmd {
	st, err := m.st.Continue(id, m.links())
	if err != nil {
		logger.Debug("Cannot continue %s: %v", id, err)
		return nil
	}
	m.st = st
	if m.st.Active == wizard.NoStep {
		m.cursor = len(m.st.Steps()) + rowSubmit
		m.form = nil
	}
	return m.sync()
}

func (m *Model) appKey(step wizard.Step, msg tea.KeyPressMsg) tea.Cmd {
	if m.appPicker == nil {
		return nil
	}
	cmd, picked := m.appPicker.Update(msg)
	if !picked {
		return cmd
	}
	it, _ := m.appPicker.Selected()
	svc, ok := m.cat.Service(it.id)
	if !ok {
		return nil
	}
	st, err := m.st.SetService(step.ID, &svc, m.links())
	if err != nil {
		logger.Warn("Choosing %s for %s failed: %v", svc.ID, step.ID, err)
		return nil
	}
	m.st = st
	delete(m.linkNotes, step.ID)
	return m.sync()
}

func (m *Model) accountKey(step wizard.Step, msg tea.KeyPressMsg) tea.Cmd {
	if msg.String() != "enter" || step.Service == nil {
		return nil
	}
	if m.links().IsLinked(*step.Service) {
		return m.advance(step.ID)
	}
	return m.startLink(step)
}

func (m *Model) configKey(step wizard.Step, msg tea.KeyPressMsg) tea.Cmd {
	if step.Event == nil || m.changingEvent {
		if m.eventPicker == nil {
			return nil
		}
		cmd, picked := m.eventPicker.Update(msg)
		if !picked {
			return cmd
		}
		it, _ := m.eventPicker.Selected()
		ev, ok := m.lookupEvent(step, it.id)
		if !ok {
			return nil
		}
		st, err := m.st.SetEvent(step.ID, &ev)
		if err != nil {
			logger.Warn("Choosing %s for %s failed: %v", ev.ID, step.ID, err)
			return nil
		}
		m.st = st
		m.changingEvent = false
		return m.sync()
	}

	switch msg.String() {
	case "enter":
		return m.advance(step.ID)
	case "ctrl+e":
		m.changingEvent = true
		m.eventPicker = nil
		return m.sync()
	}
	if m.form != nil {
		return m.form.Update(msg)
	}
	return nil
}

func (m *Model) lookupEvent(step wizard.Step, id string) (catalog.Event, bool) {
	if step.IsTrigger() {
		return m.cat.Trigger(step.Service.ID, id)
	}
	return m.cat.Action(step.Service.ID, id)
}

// sync builds the widgets of the expanded step's sub-phase when they are
// missing or were built for something else.
func (m *Model) sync() tea.Cmd {
	step, ok := m.st.Step(m.st.Active)
	if !ok {
		m.form = nil
		return nil
	}

	switch step.Phase {
	case wizard.PhaseApp:
		if m.cat == nil {
			return nil
		}
		if m.appPicker == nil || m.appPickerFor != step.ID {
			m.appPicker = newPicker(m.serviceItems(), "Type to filter apps...", "No apps available")
			m.appPickerFor = step.ID
			if step.Service != nil {
				m.appPicker.selectID(step.Service.ID)
			}
			return m.appPicker.Focus()
		}

	case wizard.PhaseConfig:
		if !m.cat.DetailsLoaded() || step.Service == nil {
			return nil
		}
		ticket := m.st.TicketFor(step.ID, "")
		if step.Event == nil || m.changingEvent {
			m.form = nil
			if m.eventPicker == nil || m.eventPickerFor != ticket {
				m.eventPicker = newPicker(m.eventItems(step), "Type to filter events...", m.noEventsText(step))
				m.eventPickerFor = ticket
				if step.Event != nil {
					m.eventPicker.selectID(step.Event.ID)
				}
				return m.eventPicker.Focus()
			}
			return nil
		}
		if m.form == nil || m.form.Origin() != ticket {
			m.form = form.New(step.Event.Fields, step.Config,
				form.WithFetcher(m.deps.Options),
				form.WithOrigin(ticket),
				form.WithWidth(m.cardWidth()-4),
			)
			return m.form.Init()
		}
		return m.form.Focus()
	}
	return nil
}

func (m *Model) serviceItems() []pickItem {
	items := make([]pickItem, 0, len(m.cat.Services))
	for _, svc := range m.cat.Services {
		it := pickItem{id: svc.ID, label: svc.Label()}
		switch {
		case svc.AlwaysLinked():
		case m.links().IsLinked(svc):
			it.detail = "connected"
		default:
			it.detail = "not connected"
		}
		items = append(items, it)
	}
	return items
}

func (m *Model) eventItems(step wizard.Step) []pickItem {
	var events []catalog.Event
	if step.IsTrigger() {
		events = m.cat.TriggersOf(step.Service.ID)
	} else {
		events = m.cat.ActionsOf(step.Service.ID)
	}
	items := make([]pickItem, 0, len(events))
	for _, ev := range events {
		it := pickItem{id: ev.ID, label: ev.Name}
		if it.label == "" {
			it.label = ev.ID
		}
		if len(ev.Fields) == 0 {
			it.detail = "no setup"
		}
		items = append(items, it)
	}
	return items
}

func (m *Model) noEventsText(step wizard.Step) string {
	if _, ok := m.cat.Gap(step.Service.ID); ok {
		return fmt.Sprintf("Details of %s could not be loaded", step.Service.Label())
	}
	if step.IsTrigger() {
		return fmt.Sprintf("%s offers no triggers", step.Service.Label())
	}
	return fmt.Sprintf("%s offers no actions", step.Service.Label())
}
