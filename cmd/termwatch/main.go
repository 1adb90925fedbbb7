package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mmrzaf/termwatch/internal/app"
	"github.com/mmrzaf/termwatch/internal/config"
	"github.com/mmrzaf/termwatch/internal/domain"
	"github.com/mmrzaf/termwatch/internal/infra/repos/runs"
	"github.com/mmrzaf/termwatch/internal/logging"
	"github.com/mmrzaf/termwatch/internal/seed"
	"github.com/mmrzaf/termwatch/internal/timeutil"
	"github.com/mmrzaf/termwatch/internal/validation"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	dbDriver     string
	dbDSN        string
	logLevel     string
	queryTimeout time.Duration
	format       string
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:           "termwatch",
		Short:         "Terminology update reporting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", cfg.DBDriver, "Reporting database driver (sqlite|postgres)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", cfg.DBDSN, "Reporting database DSN or sqlite path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level")
	rootCmd.PersistentFlags().DurationVar(&queryTimeout, "query-timeout", cfg.QueryTimeout, "Store timeout per command")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table|json|yaml)")

	rootCmd.AddCommand(dashboardCmd(), runsCmd(), latestCmd(), releasesCmd(), errorsCmd(), statsCmd())
	rootCmd.AddCommand(migrateCmd(), seedCmd(), doctorCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(logLevel, os.Stderr)
}

// withReports opens the store, hands a report service to fn and closes the
// store afterwards.
func withReports(cmd *cobra.Command, fn func(ctx context.Context, reports *app.ReportService) error) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, queryTimeout)
		defer cancel()
	}
	return fn(ctx, app.NewReportService(store, newLogger()))
}

func openStore(ctx context.Context) (*runs.Store, error) {
	store, applied, err := runs.Open(ctx, dbDriver, dbDSN)
	if err != nil {
		return nil, err
	}
	logger := newLogger().WithComponent("cli")
	for _, m := range applied {
		logger.Infow("migration.applied", map[string]any{"version": m.Version, "source": m.Source})
	}
	return store, nil
}

// render prints v as json or yaml, or calls table with a tabwriter.
func render(v any, table func(w io.Writer)) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	case "table", "":
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		table(w)
		return w.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReports(cmd, func(ctx context.Context, reports *app.ReportService) error {
				d, err := reports.Dashboard(ctx)
				if err != nil {
					return err
				}
				return render(d, func(w io.Writer) {
					now := time.Now()
					fmt.Fprintf(w, "TOTAL\t%d\n", d.TotalRuns)
					fmt.Fprintf(w, "SUCCESSFUL\t%d\n", d.SuccessfulRuns)
					fmt.Fprintf(w, "FAILED\t%d\n", d.FailedRuns)
					fmt.Fprintf(w, "LAST SUCCESS\t%s\n", timeutil.Ago(d.LastSuccessfulUpdate, now))
					for _, warning := range d.Warnings {
						fmt.Fprintf(w, "WARNING\t%s\n", warning)
					}
					fmt.Fprintln(w)
					summaryTable(w, d.RecentRuns)
				})
			})
		},
	}
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse update runs",
	}

	var page, pageSize int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.NewPositiveInt(page)
			if err != nil {
				return fmt.Errorf("page: %w", err)
			}
			ps, err := domain.NewPositiveInt(pageSize)
			if err != nil {
				return fmt.Errorf("page-size: %w", err)
			}
			return withReports(cmd, func(ctx context.Context, reports *app.ReportService) error {
				res, err := reports.ListRuns(ctx, p, ps)
				if err != nil {
					return err
				}
				return render(res, func(w io.Writer) {
					summaryTable(w, res.Runs)
					fmt.Fprintf(w, "\npage %d, %d of %d runs\n", res.Page, len(res.Runs), res.Total)
				})
			})
		},
	}
	listCmd.Flags().IntVar(&page, "page", validation.DefaultPage, "Page number (1-based)")
	listCmd.Flags().IntVar(&pageSize, "page-size", validation.DefaultPageSize, fmt.Sprintf("Runs per page (at most %d)", domain.MaxPageSize))

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run with its steps and errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := validation.ParseRunID(args[0])
			if err != nil {
				return err
			}
			return withReports(cmd, func(ctx context.Context, reports *app.ReportService) error {
				detail, err := reports.RunDetail(ctx, id)
				if err != nil {
					return err
				}
				return render(detail, func(w io.Writer) {
					r := detail.Run
					fmt.Fprintf(w, "RUN\t%s\n", r.RunID)
					fmt.Fprintf(w, "STARTED\t%s\n", r.StartTime.UTC().Format(time.RFC3339))
					fmt.Fprintf(w, "DURATION\t%s\n", orDash(r.DurationFormatted))
					fmt.Fprintf(w, "SUCCESS\t%t\n", r.Success)
					fmt.Fprintf(w, "SERVER\t%s\n", r.ServerName)
					fmt.Fprintf(w, "WHATIF\t%t\n", r.WhatIfMode)
					fmt.Fprintln(w)
					fmt.Fprintln(w, "TERMINOLOGY\tORDER\tSTEP\tSUCCESS\tDURATION\tDETAILS")
					for _, st := range detail.Steps {
						fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%s\t%s\n", st.TerminologyType, st.StepOrder, st.StepName, st.Success, orDash(st.DurationFormatted), orDash(st.Details))
					}
					if len(detail.Errors) > 0 {
						fmt.Fprintln(w)
						errorTable(w, detail.Errors)
					}
				})
			})
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

func latestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReports(cmd, func(ctx context.Context, reports *app.ReportService) error {
				s, err := reports.LatestRun(ctx)
				if err != nil {
					return err
				}
				return render(s, func(w io.Writer) {
					summaryTable(w, []domain.Summary{*s})
				})
			})
		},
	}
}

func releasesCmd() *cobra.Command {
	var itemName string
	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List detected TRUD releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := validation.NormalizeItemName(itemName)
			if err != nil {
				return err
			}
			return withReports(cmd, func(ctx context.Context, reports *app.ReportService) error {
				list, err := reports.Releases(ctx, name)
				if err != nil {
					return err
				}
				return render(list, func(w io.Writer) {
					fmt.Fprintln(w, "ITEM\tRELEASE\tDETECTED\tDOWNLOADED\tIMPORTED\tOK")
					for _, r := range list {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ItemName, r.ReleaseID, r.DetectedDate.UTC().Format(time.DateTime), dateOrDash(r.DownloadedDate), dateOrDash(r.ImportedDate), boolOrDash(r.ImportSuccess))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&itemName, "item", "", "Only releases with this item name")
	return cmd
}

func errorsCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List the most recent run errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := domain.NewPositiveInt(count)
			if err != nil {
				return fmt.Errorf("count: %w", err)
			}
			return withReports(cmd, func(ctx context.Context, reports *app.ReportService) error {
				list, err := reports.RecentErrors(ctx, n)
				if err != nil {
					return err
				}
				return render(list, func(w io.Writer) { errorTable(w, list) })
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", validation.DefaultErrorCount, fmt.Sprintf("Number of errors (at most %d)", domain.MaxErrorCount))
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReports(cmd, func(ctx context.Context, reports *app.ReportService) error {
				st, err := reports.Stats(ctx)
				if err != nil {
					return err
				}
				return render(st, func(w io.Writer) {
					fmt.Fprintf(w, "TOTAL RUNS\t%d\n", st.TotalRuns)
					fmt.Fprintf(w, "SUCCESSFUL\t%d\n", st.SuccessfulRuns)
					fmt.Fprintf(w, "FAILED\t%d\n", st.FailedRuns)
					fmt.Fprintf(w, "ERRORS\t%d\n", st.TotalErrors)
					fmt.Fprintf(w, "AVG SNOMED VALIDATION\t%.4f\n", st.AverageValidationRate)
					fmt.Fprintf(w, "LAST RUN\t%s\n", timeutil.Ago(st.LastRun, time.Now()))
					for _, warning := range st.Warnings {
						fmt.Fprintf(w, "WARNING\t%s\n", warning)
					}
				})
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, applied, err := runs.Open(cmd.Context(), dbDriver, dbDSN)
			if err != nil {
				return err
			}
			defer store.Close()
			if len(applied) == 0 {
				fmt.Println("schema is up to date")
				return nil
			}
			return render(applied, func(w io.Writer) {
				fmt.Fprintln(w, "VERSION\tSOURCE\tDURATION")
				for _, m := range applied {
					fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Source, m.Duration)
				}
			})
		},
	}
}

func seedCmd() *cobra.Command {
	var (
		count       int
		seedValue   int64
		interval    string
		failureRate float64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write synthetic run history for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			every, err := timeutil.ParseDuration(interval)
			if err != nil {
				return fmt.Errorf("interval: %w", err)
			}
			if seedValue == 0 {
				seedValue = time.Now().UnixNano()
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := seed.NewGenerator(store, seedValue).Seed(cmd.Context(), seed.Options{
				Runs:        count,
				Interval:    every,
				FailureRate: failureRate,
			})
			if err != nil {
				return err
			}
			newLogger().WithComponent("cli").Infow("seed.completed", map[string]any{
				"runs": res.Runs, "steps": res.Steps, "errors": res.Errors, "releases": res.Releases, "seed": seedValue,
			})
			return render(res, func(w io.Writer) {
				fmt.Fprintf(w, "RUNS\t%d\nSTEPS\t%d\nERRORS\t%d\nRELEASES\t%d\n", res.Runs, res.Steps, res.Errors, res.Releases)
			})
		},
	}
	cmd.Flags().IntVar(&count, "runs", 30, "Number of runs to generate")
	cmd.Flags().Int64Var(&seedValue, "seed", 0, "Random seed (0 picks one)")
	cmd.Flags().StringVar(&interval, "interval", "1d", "Time between generated runs")
	cmd.Flags().Float64Var(&failureRate, "failure-rate", 0.15, "Fraction of runs with a failed step")
	return cmd
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity and projection consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReports(cmd, func(ctx context.Context, reports *app.ReportService) error {
				if err := reports.Health(ctx); err != nil {
					return err
				}
				st, err := reports.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("store reachable: %s %s\n", dbDriver, config.RedactDSN(dbDriver, dbDSN))
				if !st.Degraded {
					fmt.Println("projection consistent")
					return nil
				}
				for _, warning := range st.Warnings {
					fmt.Println("warning:", warning)
				}
				return fmt.Errorf("%d consistency warnings", len(st.Warnings))
			})
		},
	}
}

func summaryTable(w io.Writer, list []domain.Summary) {
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tOK\tUPDATES\tSNOMED\tDMD\tERRORS")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%s\t%s\t%d\n",
			s.RunID, s.StartTime.UTC().Format(time.DateTime), orDash(s.DurationFormatted), s.OverallSuccess,
			s.UpdatesFound, boolOrDash(s.SnomedSuccess), boolOrDash(s.DmdSuccess), s.ErrorCount)
	}
}

func errorTable(w io.Writer, list []domain.RunError) {
	fmt.Fprintln(w, "TIME\tRUN\tSOURCE\tMESSAGE")
	for _, e := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ErrorTimestamp.UTC().Format(time.DateTime), e.RunID, orDash(e.ErrorSource), truncate(e.ErrorMessage, 80))
	}
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func boolOrDash(b *bool) string {
	if b == nil {
		return "-"
	}
	if *b {
		return "yes"
	}
	return "no"
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.DateTime)
}
