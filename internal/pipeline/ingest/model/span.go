package model

// SpanData is a span record as it appears in a trace file, before validation.
type SpanData map[string]interface{}

// Span is a validated span. Times share whatever unit the corpus uses
// (microseconds for Jaeger exports).
type Span struct {
	SpanID    string  `json:"span_id"`
	Operation string  `json:"operation"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
	EndTime   float64 `json:"end_time"`
	// ParentID is empty for root spans.
	ParentID string `json:"parent_id,omitempty"`
}

func (s Span) IsRoot() bool {
	return s.ParentID == ""
}

type Trace struct {
	TraceID string `json:"trace_id,omitempty"`
	Spans   []Span `json:"spans"`
}

// FileResult is everything one corpus file contributed to a scan.
type FileResult struct {
	Path   string      `json:"path"`
	Traces []Trace     `json:"traces"`
	Stats  IngestStats `json:"stats"`
}
