package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/automatr/internal/api"
	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/wizard"
)

func TestPrefill_None(t *testing.T) {
	f, err := createOptions{}.prefill()
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestPrefill_Flags(t *testing.T) {
	f, err := createOptions{
		triggerService: "timer",
		triggerEvent:   "every_day",
		actionService:  "discord",
		actionEvent:    "send_message",
	}.prefill()
	require.NoError(t, err)
	assert.Equal(t, "timer", f.Trigger.Service)
	assert.Equal(t, "send_message", f.Actions[0].Event)

	_, err = createOptions{triggerService: "timer"}.prefill()
	assert.ErrorIs(t, err, wizard.ErrIncompleteTemplate)
}

func TestPrefill_Link(t *testing.T) {
	f, err := createOptions{link: "https://app.test/create?tS=github&tE=new_issue&aS=gmail&aE=send_email"}.prefill()
	require.NoError(t, err)
	assert.Equal(t, "github", f.Trigger.Service)
	assert.Equal(t, "gmail", f.Actions[0].Service)

	_, err = createOptions{link: "tS=github"}.prefill()
	assert.ErrorIs(t, err, wizard.ErrIncompleteTemplate)
}

func TestPrefill_StarterAndFile(t *testing.T) {
	f, err := createOptions{starter: "daily-digest-to-discord"}.prefill()
	require.NoError(t, err)
	assert.Equal(t, "Daily digest to Discord", f.Name)

	path := filepath.Join(t.TempDir(), "tmpl.yml")
	require.NoError(t, os.WriteFile(path, []byte(`name: Ping
trigger:
  service: timer
  event: every_minute
actions:
  - service: discord
    event: send_message
    config:
      message: ping
`), 0o644))

	f, err = createOptions{template: path}.prefill()
	require.NoError(t, err)
	assert.Equal(t, "Ping", f.Name)
	assert.Equal(t, map[string]string{"message": "ping"}, f.Actions[0].Config)
}

func TestHookVariables(t *testing.T) {
	req := api.CreateAreaRequest{TriggerServiceID: "timer", TriggerEventID: "every_day"}
	res := submit.Result{
		Created: 1,
		Failed:  1,
		Outcomes: []submit.Outcome{
			{StepID: "action-0", Request: req, Area: &api.Area{ID: "a-1"}},
			{StepID: "action-1", Request: req, Err: assert.AnError},
		},
	}

	vars := hookVariables("Morning", res)
	assert.Equal(t, "Morning", vars.AreaName)
	assert.Equal(t, "timer/every_day", vars.Trigger)
	assert.Equal(t, []string{"a-1"}, vars.AreaIDs)
	assert.Equal(t, 1, vars.Created)
	assert.Equal(t, 1, vars.Failed)
}
