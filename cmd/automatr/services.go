package main

import (
	"fmt"
	"strings"

	"charm.land/glamour/v2"
	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/mark3labs/automatr/internal/catalog"
	"github.com/mark3labs/automatr/internal/tui/theme"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the services automations can use",
	Long: `List every service of the catalog with its connection state and the
number of triggers and actions it offers.`,
	Args: cobra.NoArgs,
	RunE: runServices,
}

var servicesShowCmd = &cobra.Command{
	Use:   "show <service>",
	Short: "Show the triggers and actions of a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesShow,
}

func init() {
	servicesCmd.AddCommand(servicesShowCmd)
}

func runServices(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.loader.Services(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(renderServiceList(c, a.bridge.IsLinked))
	return nil
}

func runServicesShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.loader.Load(cmd.Context())
	if err != nil {
		return err
	}
	svc, ok := c.Service(args[0])
	if !ok {
		return fmt.Errorf("unknown service %q", args[0])
	}
	if gap, ok := c.Gap(svc.ID); ok {
		return gap
	}
	fmt.Println(renderMarkdown(serviceMarkdown(c, svc, a.bridge.IsLinked(svc)), 100))
	return nil
}

// renderServiceList renders one aligned row per service.
func renderServiceList(c *catalog.Catalog, linked func(catalog.Service) bool) string {
	s := theme.Current().S()

	width := len("SERVICE")
	for _, svc := range c.Services {
		width = max(width, lipgloss.Width(svc.ID))
	}

	var b strings.Builder
	b.WriteString(s.Subtitle.Render(fmt.Sprintf("%-*s  %-13s  %8s  %7s", width, "SERVICE", "ACCOUNT", "TRIGGERS", "ACTIONS")))
	for _, svc := range c.Services {
		state := s.Warning.Render(fmt.Sprintf("%-13s", "not connected"))
		switch {
		case svc.AlwaysLinked():
			state = s.Dim.Render(fmt.Sprintf("%-13s", "not needed"))
		case linked(svc):
			state = s.Success.Render(fmt.Sprintf("%-13s", "connected"))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-*s  %s  %8d  %7d", width, svc.ID, state, svc.TriggerCount, svc.ActionCount))
	}
	return b.String()
}

// serviceMarkdown documents the events of a service and their fields.
func serviceMarkdown(c *catalog.Catalog, svc catalog.Service, linked bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", svc.Label())
	switch {
	case svc.AlwaysLinked():
		b.WriteString("No account needed.\n\n")
	case linked:
		b.WriteString("Account **connected**.\n\n")
	default:
		fmt.Fprintf(&b, "Account **not connected**. Run `automatr link %s`.\n\n", svc.ID)
	}

	writeEvents(&b, "Triggers", c.TriggersOf(svc.ID))
	writeEvents(&b, "Actions", c.ActionsOf(svc.ID))
	return b.String()
}

func writeEvents(b *strings.Builder, title string, events []catalog.Event) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(events) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	for _, ev := range events {
		fmt.Fprintf(b, "### %s (`%s`)\n\n", ev.Name, ev.ID)
		if ev.Description != "" {
			fmt.Fprintf(b, "%s\n\n", ev.Description)
		}
		if len(ev.Fields) == 0 {
			b.WriteString("No configuration.\n\n")
			continue
		}
		b.WriteString("| Field | Type | Required | Choices |\n|---|---|---|---|\n")
		for _, f := range ev.Fields {
			required := ""
			if f.Required {
				required = "yes"
			}
			fmt.Fprintf(b, "| `%s` | %s | %s | %s |\n", f.Name, f.Kind, required, choices(f))
		}
		b.WriteString("\n")
	}
}

func choices(f catalog.ConfigField) string {
	switch {
	case f.Remote():
		return "loaded from the service"
	case len(f.Options) > 0:
		names := make([]string, 0, len(f.Options))
		for _, o := range f.Options {
			names = append(names, o.Name)
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// renderMarkdown renders markdown with glamour, falling back to the source.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSuffix(rendered, "\n")
}
