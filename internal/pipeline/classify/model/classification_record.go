package model

import (
	"sort"

	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
)

type RelationshipType string

const (
	Parallel     RelationshipType = "parallel"
	Sequential   RelationshipType = "sequential"
	Inconsistent RelationshipType = "inconsistent"
	Uncertain    RelationshipType = "uncertain"
)

// ClassificationRecord is the verdict for one relationship key. Order is set
// for sequential records, Orderings for inconsistent ones.
type ClassificationRecord struct {
	Type         RelationshipType            `json:"type"`
	Confidence   float64                     `json:"confidence"`
	Samples      int                         `json:"samples"`
	Distribution map[evidenceModel.Label]int `json:"distribution"`
	Order        evidenceModel.Label         `json:"order,omitempty"`
	Orderings    []evidenceModel.Label       `json:"orderings,omitempty"`
}

// ClassificationResult is the output contract of a scan.
type ClassificationResult map[evidenceModel.RelationshipKey]ClassificationRecord

type RecordEntry struct {
	Key    evidenceModel.RelationshipKey `json:"key"`
	Record ClassificationRecord          `json:"record"`
}

// Entries lists the result ordered by key, for output that must not depend on
// map iteration order.
func (r ClassificationResult) Entries() []RecordEntry {
	entries := make([]RecordEntry, 0, len(r))
	for key, record := range r {
		entries = append(entries, RecordEntry{Key: key, Record: record})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.Less(entries[j].Key)
	})
	return entries
}

// CountByType is the number of records of each relationship type.
func (r ClassificationResult) CountByType() map[RelationshipType]int {
	counts := make(map[RelationshipType]int)
	for _, record := range r {
		counts[record.Type]++
	}
	return counts
}
