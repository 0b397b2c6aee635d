package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/wizard"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]catalog.Service{
			{ID: "timer", Name: "Timer"},
			{ID: "github", Name: "GitHub"},
			{ID: "discord", Name: "Discord"},
			{ID: "google-drive", Name: "Google Drive"},
		},
		map[string][]catalog.Event{
			"timer":  {{ID: "every_day", Fields: []catalog.ConfigField{{Name: "hour"}}}},
			"github": {{ID: "new_issue"}},
		},
		map[string][]catalog.Event{
			"discord":      {{ID: "send_message", Fields: []catalog.ConfigField{{Name: "channel"}, {Name: "text"}}}},
			"google-drive": {{ID: "create_file"}},
		},
	)
}

const digestYAML = `
name: Morning digest
trigger:
  service: timer
  event: every_day
  config:
    hour: "8"
actions:
  - service: discord
    event: send_message
    config:
      channel: general
  - service: Google Drive
    event: create-file
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(digestYAML))
	require.NoError(t, err)

	assert.Equal(t, "Morning digest", f.Name)
	assert.Equal(t, "8", f.Trigger.Config["hour"])
	require.Len(t, f.Actions, 2)
	assert.Equal(t, wizard.Template{
		TriggerService: "timer",
		TriggerEvent:   "every_day",
		ActionService:  "discord",
		ActionEvent:    "send_message",
	}, f.Template())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no trigger event", "trigger: {service: timer}\nactions: [{service: a, event: b}]"},
		{"no actions", "trigger: {service: timer, event: every_day}"},
		{"action without event", "trigger: {service: timer, event: x}\nactions: [{service: a}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, wizard.ErrIncompleteTemplate)
		})
	}

	_, err := Parse([]byte("trigger: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.yml")
	require.NoError(t, os.WriteFile(path, []byte(digestYAML), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Morning digest", f.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	f, err := Parse([]byte(digestYAML))
	require.NoError(t, err)

	s, err := f.Apply(testCatalog(), wizard.New())
	require.NoError(t, err)

	assert.Equal(t, "Morning digest", s.AreaName)
	assert.Equal(t, wizard.TriggerID, s.Active)
	assert.Equal(t, map[string]string{"hour": "8"}, s.Trigger.Config)

	require.Len(t, s.Actions, 2)
	assert.Equal(t, "discord", s.Actions[0].Service.ID)
	assert.Equal(t, map[string]string{"channel": "general"}, s.Actions[0].Config)
	assert.Equal(t, "google-drive", s.Actions[1].Service.ID)
	assert.Equal(t, "create_file", s.Actions[1].Event.ID)
	assert.Equal(t, wizard.PhaseApp, s.Actions[1].Phase)

	assert.True(t, s.CanSubmit())
	assert.True(t, s.Complete(wizard.TriggerID))
}

func TestApply_PartialFailure(t *testing.T) {
	f := &File{
		Name:    "Broken",
		Trigger: Step{Service: "timer", Event: "every_day"},
		Actions: []Step{
			{Service: "discord", Event: "send_message"},
			{Service: "slack", Event: "post"},
		},
	}

	s, err := f.Apply(testCatalog(), wizard.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, wizard.ErrUnresolved)

	require.Len(t, s.Actions, 2, "unresolved action still appended empty")
	assert.NotNil(t, s.Actions[0].Service)
	assert.Nil(t, s.Actions[1].Service)
	assert.False(t, s.CanSubmit())
}

func TestApply_CatalogNotReady(t *testing.T) {
	f, err := Parse([]byte(digestYAML))
	require.NoError(t, err)

	start := wizard.New()
	s, err := f.Apply(&catalog.Catalog{}, start)
	assert.ErrorIs(t, err, wizard.ErrCatalogNotReady)
	assert.Equal(t, start, s)
}

func TestParseQuery(t *testing.T) {
	want := wizard.Template{
		TriggerService: "github",
		TriggerEvent:   "new_issue",
		ActionService:  "discord",
		ActionEvent:    "send_message",
	}

	got, err := ParseQuery("https://app.test/create?tS=github&tE=new_issue&aS=discord&aE=send_message")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = ParseQuery(Link(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = ParseQuery("tS=github&tE=new_issue")
	assert.ErrorIs(t, err, wizard.ErrIncompleteTemplate)
}

func TestStarters(t *testing.T) {
	files, err := Starters()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		assert.NoError(t, f.Validate(), f.Name)
	}

	f, err := Starter("daily-digest-to-discord")
	require.NoError(t, err)
	assert.Equal(t, "timer", f.Trigger.Service)

	_, err = Starter("nope")
	assert.Error(t, err)
}

func TestFromTemplate(t *testing.T) {
	f := FromTemplate(wizard.Template{
		TriggerService: "github",
		TriggerEvent:   "new_issue",
		ActionService:  "discord",
		ActionEvent:    "send_message",
	})

	require.NoError(t, f.Validate())
	assert.Equal(t, "github", f.Trigger.Service)
	require.Len(t, f.Actions, 1)
	assert.Equal(t, "send_message", f.Actions[0].Event)
}
