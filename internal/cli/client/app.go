package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/app"
	"github.com/cloo-solutions/reportqa/internal/config"
	"github.com/cloo-solutions/reportqa/internal/domain"
)

// NewApp builds the application for a command. Tests replace it.
var NewApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// LoadConfig is the configuration source for commands. Tests replace it.
var LoadConfig = config.Load

// AddStoreFlags registers the persistent flags that override the store location.
func AddStoreFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("db-path", "", "Vector store directory (overrides REPORTQA_DB_PATH)")
	cmd.PersistentFlags().String("collection", "", "Collection name (overrides REPORTQA_COLLECTION_NAME)")
	cmd.PersistentFlags().Bool("output", false, "Output as JSON")
}

// openApp loads config, applies flag overrides and wires the application.
func openApp(cmd *cobra.Command) (*app.App, func(), error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if v, _ := cmd.Flags().GetString("db-path"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("collection"); v != "" {
		cfg.CollectionName = v
	}
	if err := cfg.Collection().Validate(); err != nil {
		return nil, nil, err
	}

	shutdown := app.InitTelemetry(cfg)
	a, err := NewApp(cmd.Context(), cfg)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		shutdown()
	}, nil
}

func outputJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("output")
	return v
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func printReport(w io.Writer, report *domain.IngestReport) {
	if report == nil {
		return
	}
	for _, f := range report.Files {
		switch f.Status {
		case domain.FileStatusLoaded:
			fmt.Fprintf(w, "  %s: %d document(s)\n", f.Filename, f.Documents)
		default:
			fmt.Fprintf(w, "  %s: %s", f.Filename, f.Status)
			if f.Reason != "" {
				fmt.Fprintf(w, " (%s)", f.Reason)
			}
			fmt.Fprintln(w)
		}
	}
}
