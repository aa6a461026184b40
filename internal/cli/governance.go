package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"compliance-rag/internal/app"
	"compliance-rag/internal/audit"
	"compliance-rag/internal/dashboard"
)

func (r *runner) dashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Executive summaries of system use",
	}

	var days int
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print the executive summary with recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Dashboard.ExecutiveSummary(ctx, days)
				if err != nil {
					return err
				}
				printSummary(cmd, s)
				return nil
			})
		},
	}
	summary.Flags().IntVarP(&days, "days", "d", dashboard.DefaultPeriodDays, "reporting window in days")

	var exportDays int
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the executive summary as a JSON report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				path, err := a.Dashboard.ExportReport(ctx, exportDays)
				if err != nil {
					return err
				}
				cmd.Printf("Report exported to %s\n", path)
				return nil
			})
		},
	}
	export.Flags().IntVarP(&exportDays, "days", "d", dashboard.DefaultPeriodDays, "reporting window in days")

	cmd.AddCommand(summary, export)
	return cmd
}

func printSummary(cmd *cobra.Command, s dashboard.Summary) {
	cmd.Printf("Compliance summary, last %d days (generated %s)\n\n", s.PeriodDays, s.GeneratedAt)

	h := s.SystemHealth
	cmd.Println("System health")
	cmd.Printf("  Total queries:      %d\n", h.TotalQueries)
	cmd.Printf("  Active users:       %d\n", h.ActiveUsers)
	cmd.Printf("  Avg response time:  %.2fs\n", h.AvgResponseTime)
	cmd.Printf("  Success rate:       %.0f%%\n", h.SuccessRate*100)
	cmd.Printf("  Queries per day:    %.1f\n\n", h.QueriesPerDay)

	kb := s.KnowledgeBase
	cmd.Println("Knowledge base")
	cmd.Printf("  Documents:          %d (%d active)\n", kb.TotalDocuments, kb.ActiveDocuments)
	cmd.Printf("  Stale:              %d\n", kb.StaleDocuments)
	cmd.Printf("  Never referenced:   %d\n\n", kb.NeverReferenced)

	u := s.UserEngagement
	cmd.Println("User engagement")
	cmd.Printf("  Users:              %d (%d active)\n", u.TotalUsers, u.ActiveUsers)
	cmd.Printf("  Never queried:      %d\n", u.NeverQueried)
	cmd.Printf("  Engagement rate:    %.1f%%\n", u.EngagementRate)

	if len(s.TopSources) > 0 {
		cmd.Println("\nTop sources")
		for i, src := range s.TopSources {
			cmd.Printf("  %d. %s (%d)\n", i+1, src.Source, src.TimesReferenced)
		}
	}
	if len(s.Alerts) > 0 {
		cmd.Println("\nAlerts")
		for _, al := range s.Alerts {
			cmd.Printf("  [%s] %s\n", al.Severity, al.Message)
		}
	}
	cmd.Println("\nRecommendations")
	for _, rec := range dashboard.Recommendations(s) {
		cmd.Printf("  - %s\n", rec)
	}
}

func (r *runner) auditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the query audit log",
	}

	var f audit.Filter
	logs := &cobra.Command{
		Use:   "logs",
		Short: "List audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for flag, v := range map[string]string{"start": f.StartDate, "end": f.EndDate} {
				if v == "" {
					continue
				}
				if _, err := time.Parse(time.DateOnly, v); err != nil {
					return fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
				}
			}
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.AuditLog.GetLogs(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(cmd, entries)
			})
		},
	}
	logs.Flags().StringVarP(&f.UserID, "user", "u", "", "only entries of this user")
	logs.Flags().StringVar(&f.StartDate, "start", "", "first date, YYYY-MM-DD")
	logs.Flags().StringVar(&f.EndDate, "end", "", "last date, YYYY-MM-DD")
	logs.Flags().IntVarP(&f.Limit, "limit", "n", 0, "keep only the most recent N entries")

	var days int
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recent queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.AuditLog.GetStatistics(ctx, days)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}
	stats.Flags().IntVarP(&days, "days", "d", dashboard.DefaultPeriodDays, "window in days")

	var limit int
	search := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Find questions containing a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.AuditLog.SearchQueries(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, entries)
			})
		},
	}
	search.Flags().IntVarP(&limit, "limit", "n", audit.DefaultSearchLimit, "maximum number of matches")

	cmd.AddCommand(logs, stats, search)
	return cmd
}

func (r *runner) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Recount document references and user activity from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd, func(ctx context.Context, a *app.App) error {
				docs, err := a.Registry.SyncWithAuditLog(ctx, a.AuditLog)
				if err != nil {
					return err
				}
				users, err := a.Users.SyncWithAuditLog(ctx, a.AuditLog)
				if err != nil {
					return err
				}
				cmd.Printf("Updated %d documents and %d users\n", docs, users)
				return nil
			})
		},
	}
}
