package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the knowledge base loads and the engine builds from it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd)
			if err != nil {
				return err
			}
			kb := eng.KnowledgeBase()
			chronic := 0
			for _, c := range kb.Conditions() {
				if c.IsChronic {
					chronic++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d conditions (%d chronic), %d symptoms, %d keyword groups\n",
				kb.Len(), chronic, len(kb.Symptoms()), len(kb.Keywords()))
			return nil
		},
	}
}

func newConditionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conditions",
		Short: "List the conditions in the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKnowledgeBase(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCODE\tDAYS\tCHRONIC\tSYMPTOMS")
			for _, c := range kb.Conditions() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d-%d\t%t\t%d\n",
					c.ID, c.Name, c.Code, c.DurationMin, c.DurationMax, c.IsChronic, len(c.Symptoms))
			}
			return w.Flush()
		},
	}
}

func newSymptomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symptoms",
		Short: "List the canonical symptom vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKnowledgeBase(cmd)
			if err != nil {
				return err
			}
			withKeywords, _ := cmd.Flags().GetBool("keywords")
			out := cmd.OutOrStdout()
			if !withKeywords {
				for _, s := range kb.Symptoms() {
					fmt.Fprintln(out, s)
				}
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SYMPTOM\tKEYWORDS")
			for _, k := range kb.Keywords() {
				fmt.Fprintf(w, "%s\t%s\n", k.Symptom, strings.Join(k.Keywords, ", "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("keywords", false, "Show the free-text keywords for each symptom")
	return cmd
}
