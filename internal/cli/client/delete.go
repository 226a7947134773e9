package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/session"
)

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the collection or the whole vector store",
		Long: `Deletes the configured collection. With --all the entire vector store directory is
removed, every collection included. Archived originals are removed as well.

Examples:
  reportqa delete
  reportqa delete --all --db-path ./vector_db_store`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete the entire vector store, not just the collection")

	return cmd
}

func runDelete(cmd *cobra.Command, all bool) error {
	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	del := a.Controller.DeleteCollection
	if all {
		del = a.Controller.DeleteAll
	}
	state, err := del(cmd.Context(), session.NewState("cli"))
	if err != nil {
		return fmt.Errorf("%s: %w", state.Notice, err)
	}

	if outputJSON(cmd) {
		ref := a.Config.Collection()
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"path":   ref.Path,
			"name":   ref.Name,
			"notice": state.Notice,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), state.Notice)
	return nil
}
