package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/reportqa/internal/service"
)

// EvalCmd creates the eval command.
func EvalCmd() *cobra.Command {
	var (
		file    string
		out     string
		k       int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate retrieval and answer quality",
		Long: `Runs evaluation questions against the stored collection and writes a JSON report.

Without --file the built-in annual report questions are used. The file may be YAML
(.yaml, .yml) or JSON, either a list of cases or {"cases": [...]}:
  - id: 1
    question: "What was the revenue growth?"
    company: "Acme Corp"
    year: "2023"
    expected_keywords_in_answer: ["revenue"]
    expected_keywords_in_context: ["revenue", "growth"]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, file, out, k, verbose)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Evaluation cases file (YAML or JSON)")
	cmd.Flags().StringVar(&out, "report", service.DefaultReportPath, "Where to write the JSON report")
	cmd.Flags().IntVar(&k, "k", 0, "Chunks retrieved per question (default REPORTQA_EVAL_TOP_K)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print per-question results")

	return cmd
}

func runEval(cmd *cobra.Command, file, reportPath string, k int, verbose bool) error {
	cases := service.DefaultEvalCases()
	if file != "" {
		loaded, err := service.LoadEvalCases(file)
		if err != nil {
			return err
		}
		cases = loaded
	}
	if len(cases) == 0 {
		return fmt.Errorf("no eval cases provided")
	}

	a, closeApp, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp()

	evaluator, err := a.Evaluator(cmd.Context(), k)
	if err != nil {
		return fmt.Errorf("cannot evaluate %s: %w", a.Config.Collection(), err)
	}

	report, err := evaluator.Run(cmd.Context(), cases)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if err := service.WriteReport(reportPath, report); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if outputJSON(cmd) {
		return printJSON(w, report)
	}

	fmt.Fprintf(w, "Eval results (%d questions)\n", report.Summary.Total)
	fmt.Fprintf(w, "Successful runs: %d\n", report.Summary.Successful)
	fmt.Fprintf(w, "Average e2e latency: %.4fs\n", report.Summary.AverageLatencySec)
	if verbose {
		for _, r := range report.Results {
			fmt.Fprintf(w, "\nQuestion %d: %s\n", r.ID, r.Question)
			fmt.Fprintf(w, "Status: %s", r.Status)
			if r.Error != "" {
				fmt.Fprintf(w, " (%s)", r.Error)
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Context score: %.2f  Answer score: %.2f  Chunks: %d\n", r.ContextScore, r.AnswerScore, r.RetrievedChunks)
		}
	}
	fmt.Fprintf(w, "Report written to %s\n", reportPath)
	return nil
}
