package model

import "time"

// SourceStatus is the per-source outcome of one aggregated search.
type SourceStatus string

const (
	StatusSuccess     SourceStatus = "success"
	StatusNoData      SourceStatus = "no_data"
	StatusError       SourceStatus = "error"
	StatusTimeout     SourceStatus = "timeout"
	StatusCircuitOpen SourceStatus = "circuit_open"
)

// NormalizedRecord is the canonical flat representation every upstream
// payload is converted into: one record per key/value pair, tagged with
// the owning source and the upstream grouping it came from.
type NormalizedRecord struct {
	Field          string   `json:"field"`
	Value          string   `json:"value"`
	Source         string   `json:"source"`
	SourceDatabase string   `json:"source_database"`
	RecordIndex    int      `json:"record_index"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

// UnknownDatabase is the group label used when an upstream omits one.
const UnknownDatabase = "Unknown Database"

// SourceResult is the outcome of querying a single source. It is a value
// object: built once per call, never mutated after return.
type SourceResult struct {
	SourceID     string             `json:"source_id"`
	DisplayLabel string             `json:"display_label"`
	Status       SourceStatus       `json:"status"`
	Records      []NormalizedRecord `json:"records,omitempty"`
	TotalRecords int                `json:"total_records"`
	Databases    []string           `json:"databases,omitempty"`
	HasData      bool               `json:"has_data"`
	LatencyMs    int64              `json:"latency_ms"`
	ErrorKind    string             `json:"error_kind,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// DedupDatabases returns the distinct group labels of records in insertion
// order. Duplicate labels across one source's response collapse to one
// entry while every record is retained.
func DedupDatabases(records []NormalizedRecord) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, r := range records {
		if _, ok := seen[r.SourceDatabase]; ok {
			continue
		}
		seen[r.SourceDatabase] = struct{}{}
		out = append(out, r.SourceDatabase)
	}
	return out
}

// AggregatedResult is the merged outcome of one fan-out search invocation.
type AggregatedResult struct {
	SearchID             string         `json:"search_id"`
	Timestamp            time.Time      `json:"timestamp"`
	QueryLength          int            `json:"query_length"`
	SearchType           SearchType     `json:"search_type"`
	Results              []SourceResult `json:"results"`
	TotalSourcesQueried  int            `json:"total_sources_queried"`
	TotalSourcesWithData int            `json:"total_sources_with_data"`
	TotalRecords         int            `json:"total_records"`
	DurationMs           int64          `json:"duration_ms"`
	Degraded             bool           `json:"degraded,omitempty"`
	RecoveryStrategy     string         `json:"recovery_strategy,omitempty"`
}

// ProbeStatus reports source availability from a probe sweep.
type ProbeStatus struct {
	SourceID  string `json:"source_id"`
	Available bool   `json:"available"`
}
