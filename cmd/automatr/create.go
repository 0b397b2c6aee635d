package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mark3labs/automatr/internal/hooks"
	"github.com/mark3labs/automatr/internal/logger"
	"github.com/mark3labs/automatr/internal/submit"
	"github.com/mark3labs/automatr/internal/template"
	"github.com/mark3labs/automatr/internal/tui/composer"
	"github.com/mark3labs/automatr/internal/wizard"
)

type createOptions struct {
	template       string
	starter        string
	link           string
	triggerService string
	triggerEvent   string
	actionService  string
	actionEvent    string
	noHooks        bool
}

var createFlags createOptions

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Compose and create automations in the wizard",
	Long: `Open the composition wizard.

Pick a trigger, then one or more actions, link the accounts they need and
fill in their configuration. One automation is created per action.

The wizard can be prefilled from a template file (--template), a built-in
starter (--starter), a template link (--link) or the four identifier flags.

After a successful submission the post_submit hooks in ` + hooks.ConfigFileName + `
(in the current directory) are run.`,
	Example: `  automatr create
  automatr create --starter daily-digest-to-discord
  automatr create --link 'tS=github&tE=new_issue&aS=discord&aE=send_message'
  automatr create --trigger-service timer --trigger-event every_day \
    --action-service discord --action-event send_message`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createFlags.template, "template", "t", "", "Template file (YAML)")
	createCmd.Flags().StringVarP(&createFlags.starter, "starter", "s", "", "Built-in starter template by name or slug")
	createCmd.Flags().StringVarP(&createFlags.link, "link", "l", "", "Template link or query string (tS, tE, aS, aE)")
	createCmd.Flags().StringVar(&createFlags.triggerService, "trigger-service", "", "Trigger service slug")
	createCmd.Flags().StringVar(&createFlags.triggerEvent, "trigger-event", "", "Trigger event")
	createCmd.Flags().StringVar(&createFlags.actionService, "action-service", "", "Action service slug")
	createCmd.Flags().StringVar(&createFlags.actionEvent, "action-event", "", "Action event")
	createCmd.Flags().BoolVar(&createFlags.noHooks, "no-hooks", false, "Skip post-submit hooks")
	createCmd.MarkFlagsMutuallyExclusive("template", "starter", "link")
}

// prefill returns the template selected on the command line, or nil when
// none was given.
func (o createOptions) prefill() (*template.File, error) {
	switch {
	case o.template != "":
		return template.Load(o.template)
	case o.starter != "":
		return template.Starter(o.starter)
	case o.link != "":
		t, err := template.ParseQuery(o.link)
		if err != nil {
			return nil, err
		}
		return template.FromTemplate(t), nil
	}

	t := wizard.Template{
		TriggerService: o.triggerService,
		TriggerEvent:   o.triggerEvent,
		ActionService:  o.actionService,
		ActionEvent:    o.actionEvent,
	}
	if t == (wizard.Template{}) {
		return nil, nil
	}
	if !t.Complete() {
		return nil, fmt.Errorf("--trigger-service, --trigger-event, --action-service and --action-event go together: %w", wizard.ErrIncompleteTemplate)
	}
	return template.FromTemplate(t), nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	tmpl, err := createFlags.prefill()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := composer.Run(composer.Deps{
		Loader:    a.loader,
		Linker:    a.bridge,
		Options:   a.client,
		Submitter: a.submitter(),
		Template:  tmpl,
	})
	if errors.Is(err, composer.ErrCancelled) {
		fmt.Println("Cancelled, nothing was created.")
		return nil
	}
	if err != nil {
		return err
	}

	res := result.Submit
	fmt.Printf("Created %d automation(s) named %q.\n", res.Created, result.AreaName)
	if res.Partial() {
		fmt.Fprintf(os.Stderr, "%d action(s) failed:\n", res.Failed)
		for _, o := range res.Outcomes {
			if o.Err != nil {
				fmt.Fprintf(os.Stderr, "  %s (%s/%s): %v\n", o.StepID, o.Request.ActionServiceID, o.Request.ActionEventID, o.Err)
			}
		}
	}

	if createFlags.noHooks {
		return nil
	}
	return runPostSubmitHooks(cmd, result.AreaName, res)
}

// hookVariables describes a submission to post-submit hooks.
func hookVariables(areaName string, res submit.Result) hooks.Variables {
	vars := hooks.Variables{AreaName: areaName, Created: res.Created, Failed: res.Failed}
	if len(res.Outcomes) > 0 {
		req := res.Outcomes[0].Request
		vars.Trigger = req.TriggerServiceID + "/" + req.TriggerEventID
	}
	for _, o := range res.Outcomes {
		if o.Area != nil {
			vars.AreaIDs = append(vars.AreaIDs, o.Area.ID)
		}
	}
	return vars
}

func runPostSubmitHooks(cmd *cobra.Command, areaName string, res submit.Result) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := hooks.LoadConfig(workDir)
	if err != nil {
		// The automations already exist, so a broken hooks file only warns.
		logger.Warn("Skipping post-submit hooks: %v", err)
		fmt.Fprintf(os.Stderr, "Skipping post-submit hooks: %v\n", err)
		return nil
	}
	if cfg == nil || len(cfg.Hooks.PostSubmit) == 0 {
		return nil
	}

	out, err := hooks.ExecuteAll(cmd.Context(), cfg.Hooks.PostSubmit, workDir, hookVariables(areaName, res))
	if out != "" {
		fmt.Print(out)
	}
	return err
}
