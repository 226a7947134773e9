package client

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/jobs"
	"github.com/cloo-solutions/reportqa/internal/service"
)

// WatchCmd creates the watch command.
func WatchCmd() *cobra.Command {
	var (
		company  string
		year     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-ingest a folder whenever its documents change",
		Long: `Watches a folder and replaces the collection with every supported document in it
after a file is added, changed, renamed or removed. The folder is ingested once on
start. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], company, year, interval)
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "Company name stamped on every file")
	cmd.Flags().StringVar(&year, "year", "", "Report year stamped on every file")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "How often pending changes are ingested")

	return cmd
}

func runWatch(cmd *cobra.Command, dir, company, year string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	watcher, err := jobs.NewFolderWatcher(dir)
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	processor := jobs.NewReingestProcessor(dir, watcher, a.Ingester, company, year, func(r *service.IngestResult) {
		fmt.Fprintf(out, "%s: %d files, %d chunks\n", time.Now().Format(time.TimeOnly), r.Report.Loaded(), r.Chunks)
	})
	worker := jobs.NewWorker("watch", processor, interval, jobs.WithWake(watcher.Changes(), time.Second))

	go watcher.Run(ctx)
	fmt.Fprintf(out, "Watching %s (collection %s). Press Ctrl+C to stop.\n", dir, a.Config.Collection())
	worker.Start(ctx)
	return nil
}
