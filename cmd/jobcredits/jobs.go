package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vitwit/jobcredits/types"
	"github.com/vitwit/jobcredits/utils"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Browse and manage job postings",
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List job postings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctrl, _, _, err := newController(false)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		var jobs []types.Job
		if recruiter, _ := cmd.Flags().GetString("recruiter"); recruiter != "" {
			jobs, err = ctrl.API().RecruiterJobs(cmd.Context(), recruiter)
		} else {
			jobs, err = ctrl.API().ListJobs(cmd.Context())
		}
		if err != nil {
			return err
		}

		search, _ := cmd.Flags().GetString("search")
		jobType, _ := cmd.Flags().GetString("type")
		sortBy, _ := cmd.Flags().GetString("sort")
		jobs = types.FilterJobs(jobs, search, jobType)
		if err := types.SortJobs(jobs, sortBy); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if ok, err := printJSON(out, jobs); ok || err != nil {
			return err
		}
		printJobs(out, jobs, time.Now())
		return nil
	},
}

var createJobCmd = &cobra.Command{
	Use:   "create",
	Short: "Post a job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctrl, cli, _, err := newController(false)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		job, err := jobFromFlags(cmd, cli.Account)
		if err != nil {
			return err
		}
		created, err := ctrl.API().CreateJob(cmd.Context(), job)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if ok, err := printJSON(out, created); ok || err != nil {
			return err
		}
		fmt.Fprintf(out, "Created job %s: %s at %s\n", created.ID, created.Title, created.Company)
		return nil
	},
}

var deleteJobCmd = &cobra.Command{
	Use:   "delete <jobId>",
	Short: "Delete a job posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, _, _, err := newController(false)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if err := ctrl.API().DeleteJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
		return nil
	},
}

func init() {
	listJobsCmd.Flags().String("recruiter", "", "only jobs posted by this recruiter")
	listJobsCmd.Flags().String("search", "", "keep jobs whose title, company or tags contain this text")
	listJobsCmd.Flags().String("type", "all", "keep jobs whose type contains this text, e.g. full-time")
	listJobsCmd.Flags().String("sort", types.SortRelevant, "order: relevant, newest or salary")
	addJobFlags(createJobCmd)
	jobsCmd.AddCommand(listJobsCmd, createJobCmd, deleteJobCmd)
	rootCmd.AddCommand(jobsCmd)
}

func addJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "job title")
	f.String("company", "", "company name")
	f.String("location", "", "job location")
	f.String("type", "Full-time", "employment type")
	f.Int("salary-min", 0, "bottom of the yearly salary range")
	f.Int("salary-max", 0, "top of the yearly salary range")
	f.String("description", "", "job description")
	f.StringSlice("tags", nil, "skills, comma separated")
	f.String("recruiter", "", "recruiter id (defaults to --account)")
}

// jobFromFlags builds the POST /jobs payload from the create flags. The recruiter
// falls back to account.
func jobFromFlags(cmd *cobra.Command, account string) (*types.NewJob, error) {
	f := cmd.Flags()
	job := &types.NewJob{}
	job.Title, _ = f.GetString("title")
	job.Company, _ = f.GetString("company")
	job.Location, _ = f.GetString("location")
	job.Type, _ = f.GetString("type")
	job.SalaryMin, _ = f.GetInt("salary-min")
	job.SalaryMax, _ = f.GetInt("salary-max")
	job.Description, _ = f.GetString("description")
	tags, _ := f.GetStringSlice("tags")
	job.Tags = strings.Join(tags, ",")
	job.RecruiterID, _ = f.GetString("recruiter")
	if job.RecruiterID == "" {
		job.RecruiterID = account
	}

	if err := utils.Validator().Struct(job); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	return job, nil
}

func printJobs(out io.Writer, jobs []types.Job, now time.Time) {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLOGO\tTITLE\tCOMPANY\tLOCATION\tSALARY\tTAGS\tPOSTED")
	for _, j := range jobs {
		posted := ""
		if created, err := types.ParseFlexibleTime(j.CreatedAt); err == nil {
			posted = types.PostedLabel(created, now)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Logo(), j.Title, j.Company, j.Location, j.SalaryLabel(), strings.Join(j.TagList(), ", "), posted)
	}
	_ = w.Flush()
}
