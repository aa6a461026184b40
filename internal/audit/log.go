// Package audit is the append-only query log that every answered, failed
// or cancelled query is recorded in, with statistics derived from it.
package audit

import (
	"cmp"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"compliance-rag/internal/contextutil"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000000"
	dateLayout      = "2006-01-02"

	// DefaultSearchLimit caps SearchQueries when no limit is given.
	DefaultSearchLimit = 20
	topSourcesLimit    = 5
)

// Log records queries and answers questions about them.
type Log struct {
	store Store
	now   func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces time.Now, for reproducible ids in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// NewLog creates a Log over store.
func NewLog(store Store, opts ...Option) *Log {
	l := &Log{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// QueryID derives the id of a query from who asked, when, and what.
func QueryID(userID, timestamp, query string) string {
	sum := md5.Sum([]byte(userID + timestamp + query))
	return hex.EncodeToString(sum[:])[:12]
}

// LogQuery appends rec and returns its query id. It returns only after the
// entry is durable; a failure means the query was not recorded.
func (l *Log) LogQuery(ctx context.Context, rec Record) (string, error) {
	now := l.now()
	timestamp := now.Format(timestampLayout)

	entry := Entry{
		QueryID:             QueryID(rec.UserID, timestamp, rec.Query),
		Timestamp:           timestamp,
		UserID:              rec.UserID,
		Query:               rec.Query,
		QueryLength:         len([]rune(rec.Query)),
		SourcesRetrieved:    rec.SourcesRetrieved,
		NumSources:          rec.NumSources,
		AnswerGenerated:     rec.AnswerGenerated,
		ResponseTimeSeconds: round(rec.ResponseTime.Seconds(), 2),
		ModelUsed:           rec.ModelUsed,
		Date:                now.Format(dateLayout),
		Hour:                now.Hour(),
	}
	if entry.SourcesRetrieved == nil {
		entry.SourcesRetrieved = []string{}
	}
	if rec.Error != "" {
		msg := rec.Error
		entry.Error = &msg
	}

	if err := l.store.Append(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to append audit entry: %w", err)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "query logged",
		"query_id", entry.QueryID,
		"user_id", entry.UserID,
		"answer_generated", entry.AnswerGenerated,
	)
	return entry.QueryID, nil
}

// GetLogs returns the entries matching f in log order.
func (l *Log) GetLogs(ctx context.Context, f Filter) ([]Entry, error) {
	entries, err := l.store.Entries(ctx)
	if err != nil {
		return nil, err
	}

	logs := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.StartDate != "" && e.Date < f.StartDate {
			continue
		}
		if f.EndDate != "" && e.Date > f.EndDate {
			continue
		}
		logs = append(logs, e)
	}

	if f.Limit > 0 && len(logs) > f.Limit {
		logs = logs[len(logs)-f.Limit:]
	}
	return logs, nil
}

// GetStatistics summarizes the last days days of the log, computed fresh
// on every call.
func (l *Log) GetStatistics(ctx context.Context, days int) (Statistics, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := l.now().AddDate(0, 0, -days).Format(dateLayout)

	logs, err := l.GetLogs(ctx, Filter{StartDate: cutoff})
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{PeriodDays: days}
	if len(logs) == 0 {
		return stats, nil
	}

	users := make(map[string]struct{})
	var (
		totalTime  float64
		successful int
		sources    = newCounter[string]()
		hours      = newCounter[int]()
		byDate     = make(map[string]int)
	)
	for _, e := range logs {
		users[e.UserID] = struct{}{}
		totalTime += e.ResponseTimeSeconds
		if e.AnswerGenerated {
			successful++
		}
		for _, s := range e.SourcesRetrieved {
			sources.add(s)
		}
		hours.add(e.Hour)
		byDate[e.Date]++
	}

	total := len(logs)
	stats.TotalQueries = total
	stats.UniqueUsers = len(users)
	stats.AvgResponseTimeSeconds = round(totalTime/float64(total), 2)
	stats.SuccessRate = round(float64(successful)/float64(total), 2)
	stats.QueriesPerDay = round(float64(total)/float64(days), 1)
	stats.QueriesByDate = byDate

	stats.TopSources = []SourceCount{}
	for _, kc := range sources.top(topSourcesLimit) {
		stats.TopSources = append(stats.TopSources, SourceCount{Source: kc.key, TimesReferenced: kc.count})
	}
	if peak := hours.top(1); len(peak) == 1 {
		stats.PeakHour = peak[0].key
	}
	return stats, nil
}

// SearchQueries returns entries whose question contains keyword,
// case-insensitively, in log order. A non-positive limit selects DefaultSearchLimit.
func (l *Log) SearchQueries(ctx context.Context, keyword string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	entries, err := l.store.Entries(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(keyword)
	var matches []Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Query), needle) {
			matches = append(matches, e)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

// counter counts keys and remembers first-seen order for tie-breaks.
type counter[K comparable] struct {
	counts map[K]int
	order  []K
}

type keyCount[K comparable] struct {
	key   K
	count int
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{counts: make(map[K]int)}
}

func (c *counter[K]) add(key K) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// top returns up to n keys by descending count; ties keep first-seen order.
func (c *counter[K]) top(n int) []keyCount[K] {
	out := make([]keyCount[K], len(c.order))
	for i, k := range c.order {
		out[i] = keyCount[K]{key: k, count: c.counts[k]}
	}
	slices.SortStableFunc(out, func(a, b keyCount[K]) int {
		return cmp.Compare(b.count, a.count)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
