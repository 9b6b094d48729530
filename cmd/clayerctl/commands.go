package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"CircleLayer-Assistant/sdk/go/clayer"
)

var (
	jobWait   bool
	jobStatus string
	jobLimit  int
	auditSize int
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Submit and inspect background chat jobs",
}

var jobSubmitCmd = &cobra.Command{
	Use:   "submit [message]",
	Short: "Queue a message for background processing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		job, err := client.SubmitJob(ctx, clayer.JobRequest{SessionID: sessionID, Message: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		if jobWait {
			if job, err = client.WaitJob(ctx, job.ID, time.Second); err != nil {
				return err
			}
		}
		return printJob(cmd.OutOrStdout(), job)
	},
}

var jobGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		job, err := client.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		if jobWait && !job.Finished() {
			if job, err = client.WaitJob(ctx, job.ID, time.Second); err != nil {
				return err
			}
		}
		return printJob(cmd.OutOrStdout(), job)
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		list, err := client.ListJobs(ctx, clayer.ListJobsOptions{Status: jobStatus, SessionID: sessionID, Limit: jobLimit})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), jobTable(list.Jobs))
		s := list.Stats
		fmt.Fprintf(cmd.OutOrStdout(), "total %d  pending %d  running %d  succeeded %d  failed %d\n",
			s.Total, s.Pending, s.Running, s.Succeeded, s.Failed)
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the latest dispatch audit records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		records, err := client.Audit(ctx, auditSize)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), auditTable(records))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [to] [amount]",
	Short: "Check a transfer before sending it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		check, err := client.ValidateTransfer(ctx, args[0], amount)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if check.OK {
			fmt.Fprintln(out, okStyle.Render("transfer looks good"))
		} else {
			fmt.Fprintln(out, failStyle.Render("transfer would fail"))
		}
		fmt.Fprintf(out, "balance: %g CLAYER\n", check.Check.Balance)
		for _, p := range check.Check.Problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return nil
	},
}

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func init() {
	jobCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session the job belongs to")
	jobSubmitCmd.Flags().BoolVar(&jobWait, "wait", false, "wait for the job to finish")
	jobGetCmd.Flags().BoolVar(&jobWait, "wait", false, "wait for the job to finish")
	jobListCmd.Flags().StringVar(&jobStatus, "status", "", "comma separated statuses to include")
	jobListCmd.Flags().IntVar(&jobLimit, "limit", 20, "maximum number of jobs")
	auditCmd.Flags().IntVar(&auditSize, "limit", 20, "maximum number of records")

	jobCmd.AddCommand(jobSubmitCmd, jobGetCmd, jobListCmd)
}

func printJob(w io.Writer, job clayer.Job) error {
	fmt.Fprintf(w, "%s  %s  attempts %d/%d\n", job.ID, statusLabel(job.Status), job.Attempts, job.MaxRetries)
	if job.LastError != "" {
		fmt.Fprintf(w, "last error: %s (%s)\n", job.LastError, job.ErrorCode)
	}
	if job.Result == nil {
		return nil
	}
	if job.Result.Degraded {
		fmt.Fprintln(w, failStyle.Render("degraded reply"))
	}
	out, err := newRenderer(plain).Render(job.Result.Text)
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)
	return nil
}

func statusLabel(status string) string {
	switch status {
	case "succeeded":
		return okStyle.Render(status)
	case "failed":
		return failStyle.Render(status)
	default:
		return status
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func jobTable(jobs []clayer.Job) string {
	t := newTable("ID", "STATUS", "ATTEMPTS", "UPDATED", "MESSAGE")
	for _, j := range jobs {
		t.Row(j.ID, j.Status, fmt.Sprintf("%d/%d", j.Attempts, j.MaxRetries),
			time.Unix(j.UpdatedAt, 0).Format(time.DateTime), truncate(j.Message, 40))
	}
	return t.String()
}

func auditTable(records []clayer.AuditRecord) string {
	t := newTable("ID", "TIME", "INTENT", "KIND", "MS", "MESSAGE")
	for _, r := range records {
		t.Row(strconv.FormatInt(r.ID, 10), r.CreatedAt.Local().Format(time.DateTime), r.Intent, r.Kind,
			strconv.FormatInt(r.DurationMillis, 10), truncate(r.Message, 40))
	}
	return t.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
