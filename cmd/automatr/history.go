package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/automatr/internal/journal"
	"github.com/mark3labs/automatr/internal/tui/theme"
)

var historyFlags struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past submissions",
	Long: `Replay the submission journal kept in the data directory. Each entry
lists the automations a submit created and the actions that failed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "Show at most this many submissions, newest last (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := journal.Open(cmd.Context(), a.cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	state, err := store.LoadState(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}

	subs := state.List()
	if len(subs) == 0 {
		fmt.Println("No submissions yet.")
		return nil
	}
	if historyFlags.limit > 0 && len(subs) > historyFlags.limit {
		subs = subs[len(subs)-historyFlags.limit:]
	}
	fmt.Println(renderHistory(subs))
	return nil
}

// renderHistory formats submissions oldest first.
func renderHistory(subs []*journal.Submission) string {
	s := theme.Current().S()
	blocks := make([]string, 0, len(subs))
	for _, sub := range subs {
		var b strings.Builder
		fmt.Fprintf(&b, "%s  %s  %s",
			s.Dim.Render(sub.SubmittedAt.Local().Format("2006-01-02 15:04")),
			s.HeaderTitle.Render(sub.AreaName),
			s.Muted.Render(fmt.Sprintf("%d created, %d failed", sub.Created(), sub.Failed())))
		for _, o := range sub.Outcomes {
			b.WriteString("\n  ")
			if o.OK() {
				b.WriteString(s.Success.Render("✓ "))
				fmt.Fprintf(&b, "%s → %s", sub.Trigger, o.Action)
				if o.AreaID != "" {
					b.WriteString(s.Dim.Render(" (" + o.AreaID + ")"))
				}
			} else {
				b.WriteString(s.Error.Render("✗ "))
				fmt.Fprintf(&b, "%s → %s: %s", sub.Trigger, o.Action, o.Error)
			}
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
