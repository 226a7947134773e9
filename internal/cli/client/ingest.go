package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/session"
)

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var company, year string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Replace the collection with documents",
		Long: `Loads, chunks and embeds the given files, replacing every chunk previously stored
in the collection. Supported formats: pdf, docx, pptx, txt, png, jpg, jpeg.

Examples:
  reportqa ingest acme-2023.pdf --company "Acme Corp" --year 2023
  reportqa ingest reports/*.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, company, year)
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "Company name stamped on every file")
	cmd.Flags().StringVar(&year, "year", "", "Report year stamped on every file")

	return cmd
}

func runIngest(cmd *cobra.Command, paths []string, company, year string) error {
	uploads, err := service.ReadUploads(paths, company, year)
	if err != nil {
		return err
	}

	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	state, result, err := a.Controller.Ingest(cmd.Context(), session.NewState("cli"), uploads)
	out := cmd.OutOrStdout()
	if outputJSON(cmd) {
		if result != nil {
			if perr := printJSON(out, result); perr != nil {
				return perr
			}
		}
	} else if result != nil {
		printReport(out, result.Report)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", state.Notice, err)
	}

	if !outputJSON(cmd) {
		fmt.Fprintf(out, "%s\n", state.Notice)
		fmt.Fprintf(out, "Collection %s now holds %d chunks from %d files.\n", a.Config.Collection(), result.Chunks, result.Report.Loaded())
	}
	return nil
}
