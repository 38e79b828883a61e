package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vitwit/jobcredits/insight"
	"github.com/vitwit/jobcredits/types"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Fetch AI insights, spending one credit",
}

var seekerInsightsCmd = &cobra.Command{
	Use:   "seeker <userId>",
	Short: "Jobs matching a job seeker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInsights(cmd, types.SeekerSubject(args[0]))
	},
}

var recruiterInsightsCmd = &cobra.Command{
	Use:   "recruiter <jobId>",
	Short: "Candidates matching a recruiter's job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInsights(cmd, types.JobSubject(args[0]))
	},
}

func init() {
	insightsCmd.AddCommand(seekerInsightsCmd, recruiterInsightsCmd)
	rootCmd.AddCommand(insightsCmd)
}

func runInsights(cmd *cobra.Command, subject types.Subject) error {
	ctrl, cli, _, err := newController(false)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if err := requireAccount(cli); err != nil {
		return err
	}
	if _, err := ctrl.Init(cmd.Context(), cli.Account); err != nil {
		return err
	}

	view, err := ctrl.RequestInsights(cmd.Context(), subject)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, view); ok || err != nil {
		return err
	}

	switch view.State {
	case insight.StateGated:
		terms := ctrl.Terms()
		fmt.Fprintf(out, "No credits left. Run `%s purchase` to buy %d credits for %s SOL.\n",
			app, terms.Credits, types.LamportsToSOL(terms.Lamports))
	case insight.StateReady:
		printMatches(out, subject, view.Result)
		fmt.Fprintf(out, "\n%d credits left\n", ctrl.Credits())
	}
	return nil
}

func printMatches(out io.Writer, subject types.Subject, result *types.InsightResult) {
	if result.Empty() {
		fmt.Fprintln(out, "No matches found.")
		return
	}

	name, id := "JOB", "COMPANY"
	if subject.Kind == types.SubjectJob {
		name, id = "CANDIDATE", "EMAIL"
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\tSCORE\tRECOMMENDED\n", name, id)
	for _, m := range result.Matches {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%t\n", m.SubjectName, m.SubjectIdentifier, m.MatchingScore, m.Recommended)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\n%d matches, %d recommended, top match %d%%\n",
		len(result.Matches), result.RecommendedCount(), result.TopScore())
}
