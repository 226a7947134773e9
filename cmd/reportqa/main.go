package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/cli"
	"github.com/cloo-solutions/reportqa/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "reportqa",
		Short: "Ask questions about annual reports",
		Long: `reportqa ingests annual reports into a local vector store and answers questions
from them, optionally filtered by company and year.

Environment variables:
  REPORTQA_AZURE_OPENAI_ENDPOINT       Azure OpenAI endpoint (required)
  REPORTQA_AZURE_OPENAI_API_KEY        Azure OpenAI key (required)
  REPORTQA_AZURE_EMBEDDING_DEPLOYMENT  Embedding deployment name (required)
  REPORTQA_AZURE_CHAT_DEPLOYMENT       Chat deployment name (required)
  REPORTQA_DB_PATH                     Vector store directory (default: vector_db_store)
  REPORTQA_COLLECTION_NAME             Collection name (default: annual_reports_collection)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	client.AddStoreFlags(rootCmd)
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.FiltersCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.EvalCmd())
	rootCmd.AddCommand(client.WatchCmd())
	rootCmd.AddCommand(client.DeleteCmd())

	if err := cli.Execute(rootCmd, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
