package model

// IngestStats counts what a scan read and what it had to skip. Merging is
// additive so partial stats from workers can be combined in any order.
type IngestStats struct {
	FilesScanned  int `json:"files_scanned"`
	FilesSkipped  int `json:"files_skipped"`
	TracesScanned int `json:"traces_scanned"`
	SpansAccepted int `json:"spans_accepted"`
	SpansSkipped  int `json:"spans_skipped"`
	RootSpans     int `json:"root_spans"`
}

func (s *IngestStats) Merge(other IngestStats) {
	s.FilesScanned += other.FilesScanned
	s.FilesSkipped += other.FilesSkipped
	s.TracesScanned += other.TracesScanned
	s.SpansAccepted += other.SpansAccepted
	s.SpansSkipped += other.SpansSkipped
	s.RootSpans += other.RootSpans
}
