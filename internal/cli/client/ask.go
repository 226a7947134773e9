package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/session"
)

// AskResult is the JSON output of ask.
type AskResult struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Fallback bool             `json:"fallback"`
	Filters  string           `json:"filters"`
	Sources  []session.Source `json:"sources"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var company, year string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the stored reports",
		Long: `Retrieves the chunks most relevant to the question, optionally restricted to one
company and/or year, and answers from them.

Examples:
  reportqa ask "What was the revenue growth?" --company "Acme Corp" --year 2023`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, args[0], company, year)
		},
	}

	cmd.Flags().StringVar(&company, "company", "", "Only use chunks from this company")
	cmd.Flags().StringVar(&year, "year", "", "Only use chunks from this year")

	return cmd
}

func runAsk(cmd *cobra.Command, question, company, year string) error {
	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx := cmd.Context()
	state, err := a.Controller.LoadExisting(ctx, session.NewState("cli"))
	if err != nil {
		return fmt.Errorf("%s: %w", state.Notice, err)
	}

	state = a.Controller.SetFilter(state, domain.NewFilter(company, year))
	_, answer := a.Controller.Ask(ctx, state, question)
	if errors.Is(answer.Err, domain.ErrEmptyQuestion) {
		return answer.Err
	}

	result := AskResult{
		Question: question,
		Answer:   answer.Text,
		Fallback: answer.Fallback,
		Filters:  state.FilterLabel(),
		Sources:  session.SourcesFromChunks(answer.Sources),
	}
	if result.Sources == nil {
		result.Sources = []session.Source{}
	}

	out := cmd.OutOrStdout()
	if outputJSON(cmd) {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, result.Answer)
		if !answer.Fallback && len(result.Sources) > 0 {
			fmt.Fprintf(out, "\n%s\n", strings.Repeat("-", 40))
			fmt.Fprintf(out, "Sources (%s):\n", result.Filters)
			for i, s := range result.Sources {
				fmt.Fprintf(out, "%d. %s | %s | %s", i+1, s.Source, s.CompanyName, s.Year)
				if s.Page != "" {
					fmt.Fprintf(out, " | page %s", s.Page)
				}
				fmt.Fprintf(out, " | %.3f\n", s.Score)
			}
		}
	}

	if answer.Fallback {
		return fmt.Errorf("question failed at %s stage: %w", answer.Stage, answer.Err)
	}
	return nil
}
