// Package dashboard aggregates the audit log, document registry and user
// activity into an executive governance summary.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"compliance-rag/internal/access"
	"compliance-rag/internal/audit"
	"compliance-rag/internal/contextutil"
	"compliance-rag/internal/registry"
)

// DefaultPeriodDays is the analysis window when none is given.
const DefaultPeriodDays = 30

// Alert severities.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

const generatedAtLayout = "2006-01-02T15:04:05.000000"

// AuditSource supplies query statistics.
type AuditSource interface {
	GetStatistics(ctx context.Context, days int) (audit.Statistics, error)
}

// DocumentSource supplies registry reports.
type DocumentSource interface {
	UsageReport(ctx context.Context) (registry.UsageReport, error)
	StaleDocuments(ctx context.Context, days int) ([]registry.StaleDocument, error)
}

// UserSource supplies user activity reports.
type UserSource interface {
	UsageReport(ctx context.Context) (access.UsageReport, error)
}

// SystemHealth reports query volume and quality.
type SystemHealth struct {
	TotalQueries    int     `json:"total_queries"`
	ActiveUsers     int     `json:"active_users"`
	AvgResponseTime float64 `json:"avg_response_time"`
	SuccessRate     float64 `json:"success_rate"`
	QueriesPerDay   float64 `json:"queries_per_day"`
}

// KnowledgeBase reports document freshness and use.
type KnowledgeBase struct {
	TotalDocuments  int `json:"total_documents"`
	ActiveDocuments int `json:"active_documents"`
	StaleDocuments  int `json:"stale_documents"`
	NeverReferenced int `json:"never_referenced"`
}

// UserEngagement reports how many users query the system.
type UserEngagement struct {
	TotalUsers     int     `json:"total_users"`
	ActiveUsers    int     `json:"active_users"`
	NeverQueried   int     `json:"never_queried"`
	EngagementRate float64 `json:"engagement_rate"`
}

// Alert flags a metric outside its target.
type Alert struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Summary is the executive governance summary.
type Summary struct {
	PeriodDays     int                 `json:"period_days"`
	GeneratedAt    string              `json:"generated_at"`
	SystemHealth   SystemHealth        `json:"system_health"`
	KnowledgeBase  KnowledgeBase       `json:"knowledge_base"`
	UserEngagement UserEngagement      `json:"user_engagement"`
	TopSources     []audit.SourceCount `json:"top_sources"`
	Alerts         []Alert             `json:"alerts"`
}

// Dashboard builds summaries from the governance components.
type Dashboard struct {
	audit   AuditSource
	docs    DocumentSource
	users   UserSource
	dataDir string
	now     func() time.Time
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) {
		d.now = now
	}
}

// New creates a Dashboard. Reports are exported under dataDir/governance.
func New(auditSrc AuditSource, docs DocumentSource, users UserSource, dataDir string, opts ...Option) *Dashboard {
	d := &Dashboard{
		audit:   auditSrc,
		docs:    docs,
		users:   users,
		dataDir: dataDir,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ExecutiveSummary summarizes the last days days. The component reports
// are gathered concurrently.
func (d *Dashboard) ExecutiveSummary(ctx context.Context, days int) (Summary, error) {
	if days <= 0 {
		days = DefaultPeriodDays
	}

	var (
		stats      audit.Statistics
		docReport  registry.UsageReport
		userReport access.UsageReport
		stale      []registry.StaleDocument
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = d.audit.GetStatistics(gctx, days)
		if err != nil {
			return fmt.Errorf("audit statistics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		docReport, err = d.docs.UsageReport(gctx)
		if err != nil {
			return fmt.Errorf("document report: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stale, err = d.docs.StaleDocuments(gctx, registry.DefaultStaleDays)
		if err != nil {
			return fmt.Errorf("stale documents: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		userReport, err = d.users.UsageReport(gctx)
		if err != nil {
			return fmt.Errorf("user report: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	s := Summary{
		PeriodDays:  days,
		GeneratedAt: d.now().Format(generatedAtLayout),
		SystemHealth: SystemHealth{
			TotalQueries:    stats.TotalQueries,
			ActiveUsers:     userReport.ActiveUsers,
			AvgResponseTime: stats.AvgResponseTimeSeconds,
			SuccessRate:     stats.SuccessRate,
			QueriesPerDay:   stats.QueriesPerDay,
		},
		KnowledgeBase: KnowledgeBase{
			TotalDocuments:  docReport.TotalDocuments,
			ActiveDocuments: docReport.ActiveDocuments,
			StaleDocuments:  len(stale),
			NeverReferenced: docReport.NeverReferencedCount,
		},
		UserEngagement: UserEngagement{
			TotalUsers:     userReport.TotalUsers,
			ActiveUsers:    userReport.ActiveUsers,
			NeverQueried:   userReport.NeverQueried,
			EngagementRate: math.Round(engagement(userReport)*1000) / 10,
		},
		TopSources: stats.TopSources,
	}
	if s.TopSources == nil {
		s.TopSources = []audit.SourceCount{}
	}
	s.Alerts = alerts(stats, s, engagement(userReport))
	return s, nil
}

// engagement is the share of active users who have queried at least once.
func engagement(r access.UsageReport) float64 {
	if r.ActiveUsers == 0 {
		return 0
	}
	return float64(r.ActiveUsers-r.NeverQueried) / float64(r.ActiveUsers)
}

func alerts(stats audit.Statistics, s Summary, engaged float64) []Alert {
	out := []Alert{}
	if stats.AvgResponseTimeSeconds > 30 {
		out = append(out, Alert{SeverityWarning, fmt.Sprintf("Avg response time high: %.1fs (target: <20s)", stats.AvgResponseTimeSeconds)})
	}
	if stats.HasData() && stats.SuccessRate < 0.9 {
		out = append(out, Alert{SeverityCritical, fmt.Sprintf("Low success rate: %s (target: >90%%)", percent(stats.SuccessRate))})
	}
	if s.KnowledgeBase.StaleDocuments > 10 {
		out = append(out, Alert{SeverityWarning, fmt.Sprintf("%d documents need verification (>1 year old)", s.KnowledgeBase.StaleDocuments)})
	}
	if s.KnowledgeBase.NeverReferenced > 20 {
		out = append(out, Alert{SeverityInfo, fmt.Sprintf("%d documents never referenced", s.KnowledgeBase.NeverReferenced)})
	}
	if engaged < 0.5 {
		out = append(out, Alert{SeverityWarning, fmt.Sprintf("Low user engagement: %s of users have queried system", percent(engaged))})
	}
	return out
}

// Recommendations turns a summary into follow-up actions.
func Recommendations(s Summary) []string {
	var recs []string
	if n := s.KnowledgeBase.StaleDocuments; n > 5 {
		recs = append(recs, fmt.Sprintf("Review and verify %d stale documents", n))
	}
	if n := s.KnowledgeBase.NeverReferenced; n > 10 {
		recs = append(recs, fmt.Sprintf("Archive or promote %d unused documents", n))
	}
	if n := s.UserEngagement.NeverQueried; n > 20 {
		recs = append(recs, fmt.Sprintf("Send onboarding materials to %d inactive users", n))
	}
	if t := s.SystemHealth.AvgResponseTime; t > 20 {
		recs = append(recs, fmt.Sprintf("Optimize system - avg response time is %.1fs", t))
	}
	if s.SystemHealth.TotalQueries > 0 && s.SystemHealth.SuccessRate < 0.9 {
		recs = append(recs, fmt.Sprintf("Investigate query failures - success rate is %s", percent(s.SystemHealth.SuccessRate)))
	}
	if len(recs) == 0 {
		recs = append(recs, "System performing well - maintain current operations")
	}
	return recs
}

// ExportReport writes the summary of the last days days as indented JSON to
// dataDir/governance/compliance_report_YYYYMMDD.json and returns the path.
func (d *Dashboard) ExportReport(ctx context.Context, days int) (string, error) {
	s, err := d.ExecutiveSummary(ctx, days)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(d.dataDir, "governance")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("compliance_report_%s.json", d.now().Format("20060102")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "compliance report exported", "path", path, "alerts", len(s.Alerts))
	return path, nil
}

// percent formats a ratio as a whole percentage.
func percent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}
