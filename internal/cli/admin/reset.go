package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/app"
	"github.com/cloo-solutions/reportqa/internal/config"
	"github.com/cloo-solutions/reportqa/internal/session"
)

// ResetCmd returns the reset command
func ResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete stored collections",
		Long: `Delete the configured collection, or with --all the entire vector store at
REPORTQA_DB_PATH, along with any archived originals.`,
		Args: cobra.NoArgs,
		RunE: runReset,
	}

	cmd.Flags().Bool("all", false, "Delete the entire vector store, not just the collection")

	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := app.InitTelemetry(cfg)
	defer shutdownTelemetry()

	a, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	del := a.Controller.DeleteCollection
	if all, _ := cmd.Flags().GetBool("all"); all {
		del = a.Controller.DeleteAll
	}
	state, err := del(ctx, session.NewState("reset"))
	if err != nil {
		return fmt.Errorf("%s: %w", state.Notice, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), state.Notice)
	return nil
}
