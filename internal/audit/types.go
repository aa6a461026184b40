package audit

import (
	"encoding/json"
	"time"
)

// Record is what the query path reports about one query attempt.
type Record struct {
	UserID           string
	Query            string
	SourcesRetrieved []string
	NumSources       int
	AnswerGenerated  bool
	ResponseTime     time.Duration
	ModelUsed        string
	// Error is empty when the query succeeded.
	Error string
}

// Entry is one line of the audit log. Entries are never mutated.
type Entry struct {
	QueryID             string   `json:"query_id"`
	Timestamp           string   `json:"timestamp"`
	UserID              string   `json:"user_id"`
	Query               string   `json:"query"`
	QueryLength         int      `json:"query_length"`
	SourcesRetrieved    []string `json:"sources_retrieved"`
	NumSources          int      `json:"num_sources"`
	AnswerGenerated     bool     `json:"answer_generated"`
	ResponseTimeSeconds float64  `json:"response_time_seconds"`
	ModelUsed           string   `json:"model_used"`
	Error               *string  `json:"error"`
	Date                string   `json:"date"`
	Hour                int      `json:"hour"`
}

// Filter selects entries for GetLogs. Dates are YYYY-MM-DD and inclusive.
type Filter struct {
	UserID    string
	StartDate string
	EndDate   string
	// Limit keeps the most recent N matches; 0 keeps all.
	Limit int
}

// SourceCount is a source with the number of queries that retrieved it.
type SourceCount struct {
	Source          string `json:"source"`
	TimesReferenced int    `json:"times_referenced"`
}

// Statistics summarizes a window of the log.
type Statistics struct {
	PeriodDays             int            `json:"period_days"`
	TotalQueries           int            `json:"total_queries"`
	UniqueUsers            int            `json:"unique_users"`
	AvgResponseTimeSeconds float64        `json:"avg_response_time_seconds"`
	SuccessRate            float64        `json:"success_rate"`
	QueriesPerDay          float64        `json:"queries_per_day"`
	TopSources             []SourceCount  `json:"top_5_sources"`
	PeakHour               int            `json:"peak_hour"`
	QueriesByDate          map[string]int `json:"queries_by_date"`
}

// NoDataMessage is reported for a window without queries.
const NoDataMessage = "No queries in this period"

// HasData reports whether the window contained any queries.
func (s Statistics) HasData() bool {
	return s.TotalQueries > 0
}

// MarshalJSON emits the short no-data form for an empty window.
func (s Statistics) MarshalJSON() ([]byte, error) {
	if !s.HasData() {
		return json.Marshal(struct {
			TotalQueries int    `json:"total_queries"`
			PeriodDays   int    `json:"period_days"`
			Message      string `json:"message"`
		}{0, s.PeriodDays, NoDataMessage})
	}
	type plain Statistics
	return json.Marshal(plain(s))
}

// Time parses the entry timestamp, which is written in local time.
func (e Entry) Time() (time.Time, error) {
	return time.ParseInLocation(timestampLayout, e.Timestamp, time.Local)
}
