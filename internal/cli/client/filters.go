package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// FiltersCmd creates the filters command.
func FiltersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the company and year filter values",
		Long:  "Lists the distinct company names and years stored in the collection, excluding placeholder values.",
		Args:  cobra.NoArgs,
		RunE:  runFilters,
	}
}

func runFilters(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	opts, err := a.Controller.FilterOptions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list filters: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON(cmd) {
		if opts.Companies == nil {
			opts.Companies = []string{}
		}
		if opts.Years == nil {
			opts.Years = []string{}
		}
		return printJSON(out, opts)
	}

	fmt.Fprintf(out, "Companies: %s\n", joinOrNone(opts.Companies))
	fmt.Fprintf(out, "Years:     %s\n", joinOrNone(opts.Years))
	return nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
