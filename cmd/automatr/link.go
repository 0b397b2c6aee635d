package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/automatr/internal/linking"
)

var linkFlags struct {
	print bool
}

var linkCmd = &cobra.Command{
	Use:   "link <service>",
	Short: "Connect your account for a service",
	Long: `Start the account linking flow of a service in your browser.

Linking finishes on the provider's site. The wizard picks the new account up
the next time it reloads the catalog (ctrl+r).`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

func init() {
	linkCmd.Flags().BoolVar(&linkFlags.print, "print", false, "Print the authorize URL instead of opening a browser")
}

func runLink(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.loader.Services(cmd.Context())
	if err != nil {
		return err
	}
	svc, ok := c.Service(args[0])
	if !ok {
		return fmt.Errorf("unknown service %q", args[0])
	}
	if a.bridge.IsLinked(svc) {
		fmt.Printf("%s is already connected.\n", svc.Label())
		return nil
	}

	if linkFlags.print {
		u, err := a.bridge.AuthorizeURL(cmd.Context(), svc)
		if err != nil {
			return linkError(svc.Label(), err)
		}
		fmt.Println(u)
		return nil
	}

	res, err := a.bridge.Link(cmd.Context(), svc)
	if err != nil {
		return linkError(svc.Label(), err)
	}
	if res.Outcome == linking.Linked {
		fmt.Printf("%s is connected.\n", svc.Label())
		return nil
	}
	fmt.Printf("Finish connecting %s in your browser:\n  %s\n", svc.Label(), res.URL)
	return nil
}

func linkError(label string, err error) error {
	if errors.Is(err, linking.ErrLinkUnsupported) {
		return fmt.Errorf("%s cannot be linked from the command line; connect it on the website", label)
	}
	return fmt.Errorf("failed to link %s: %w", label, err)
}
