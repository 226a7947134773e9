package client

import (
	"fmt"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/tui"
)

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the stored reports in the terminal",
		Long: `Opens an interactive chat over the collection. The stored collection is loaded on
start; type /help inside the chat for commands (filters, ingest, load, delete).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, logFile)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file while the chat is open")

	return cmd
}

func runChat(cmd *cobra.Command, logFile string) error {
	// Log lines would corrupt the full-screen UI.
	if logFile != "" {
		f, err := tea.LogToFile(logFile, "reportqa")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx := cmd.Context()
	state := a.Controller.Start(ctx)
	model := tui.New(ctx, a.Controller, state)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
