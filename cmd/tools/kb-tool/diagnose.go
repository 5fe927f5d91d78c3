package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"diagnosis-workers/internal/diagnosis/engine"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <symptoms>",
		Short: "Show how a symptom report maps onto the vocabulary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd)
			if err != nil {
				return err
			}
			n := eng.Normalize(engine.SplitSymptoms(strings.Join(args, ", ")))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "symptoms: %s\n", strings.Join(n.Symptoms, ", "))
			if len(n.Unrecognized) > 0 {
				fmt.Fprintf(out, "unrecognized: %s\n", strings.Join(n.Unrecognized, ", "))
			}
			return nil
		},
	}
}

func newDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose <symptoms>",
		Short: "Rank conditions for a comma separated symptom report",
		Example: `  kb-tool diagnose "fever, cough, sore throat"
  kb-tool diagnose --days 21 --json "itchy skin, rash"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd)
			if err != nil {
				return err
			}

			req := engine.Request{Symptoms: engine.SplitSymptoms(strings.Join(args, ", "))}
			if cmd.Flags().Changed("days") {
				days, _ := cmd.Flags().GetInt("days")
				req.DurationDays = &days
			}
			res, err := eng.Diagnose(req)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().Int("days", 0, "How many days the symptoms have lasted")
	cmd.Flags().Bool("json", false, "Print the full result as JSON")
	return cmd
}

func printResult(out io.Writer, res *engine.Result) {
	fmt.Fprintf(out, "analysis: %s (%s)\n", res.AnalysisType(), res.Confidence.Reason)
	for _, s := range res.Ranking {
		fmt.Fprintf(out, "%2d. %-28s %5.1f%%  text %.2f  overlap %.2f\n",
			s.Rank, s.Name, s.FinalScore*100, s.TextSimilarity, s.OverlapRatio)
	}
	if len(res.UnrecognizedSymptoms) > 0 {
		fmt.Fprintf(out, "unrecognized: %s\n", strings.Join(res.UnrecognizedSymptoms, ", "))
	}
	if res.Differential != nil {
		fmt.Fprintf(out, "differential: %s\n", engine.RenderDifferential(res.Differential))
	}
	for _, q := range res.Confidence.ClarifyingQuestions {
		fmt.Fprintf(out, "question: %s\n", q.Prompt)
	}
	if res.DurationWarning != "" {
		fmt.Fprintf(out, "duration: %s\n", res.DurationWarning)
	}
	fmt.Fprintf(out, "next step: %s\n", res.Confidence.NextStep)
}
