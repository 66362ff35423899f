package model

import (
	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
)

type AnomalyKind string

const (
	// RareOverlap is a parallel pair that overlapped in only a small share of runs.
	RareOverlap AnomalyKind = "rare_overlap"
	// InconsistentOrdering is a pair that ran in both orders.
	InconsistentOrdering AnomalyKind = "inconsistent_ordering"
)

type Anomaly struct {
	Key         evidenceModel.RelationshipKey `json:"key"`
	Kind        AnomalyKind                   `json:"kind"`
	Samples     int                           `json:"samples"`
	Overlaps    int                           `json:"overlaps,omitempty"`
	Orderings   []evidenceModel.Label         `json:"orderings,omitempty"`
	Confidence  float64                       `json:"confidence"`
	Description string                        `json:"description"`
}
