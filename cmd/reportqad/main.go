package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/cli"
	"github.com/cloo-solutions/reportqa/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reportqad",
		Short: "reportqa daemon and admin CLI",
		Long:  "reportqa daemon for serving the chat API and managing the vector store",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.ResetCmd())

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}

	if err := cli.Execute(rootCmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
