package model

import (
	anomalyModel "github.com/Avi18971911/Sibyl/internal/pipeline/anomaly/model"
	classifyModel "github.com/Avi18971911/Sibyl/internal/pipeline/classify/model"
	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	ingestModel "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
	siblingModel "github.com/Avi18971911/Sibyl/internal/pipeline/sibling/model"
)

// ScanOptions configures one pass over a corpus.
type ScanOptions struct {
	Mode             evidenceModel.AggregationMode
	OverlapThreshold float64
	Collapse         bool
	KeyMode          siblingModel.KeyMode
}

// ScanOutput is everything one scan produced.
type ScanOutput struct {
	RunID            string
	Options          ScanOptions
	Stats            ingestModel.IngestStats
	Result           classifyModel.ClassificationResult
	Anomalies        []anomalyModel.Anomaly
	AnomalyThreshold float64
}

// ScanReport is the serializable form of a ScanOutput, records ordered by key.
type ScanReport struct {
	RunID                 string                        `json:"run_id,omitempty"`
	Mode                  evidenceModel.AggregationMode `json:"mode"`
	OverlapThreshold      float64                       `json:"overlap_threshold"`
	CollapseSameOperation bool                          `json:"collapse_same_operation"`
	OperationKey          siblingModel.KeyMode          `json:"operation_key"`
	Stats                 ingestModel.IngestStats       `json:"stats"`
	Records               []classifyModel.RecordEntry   `json:"records"`
	AnomalyThreshold      float64                       `json:"anomaly_threshold"`
	Anomalies             []anomalyModel.Anomaly        `json:"anomalies"`
}

func (o ScanOutput) Report() ScanReport {
	anomalies := o.Anomalies
	if anomalies == nil {
		anomalies = []anomalyModel.Anomaly{}
	}
	return ScanReport{
		RunID:                 o.RunID,
		Mode:                  o.Options.Mode,
		OverlapThreshold:      o.Options.OverlapThreshold,
		CollapseSameOperation: o.Options.Collapse,
		OperationKey:          o.Options.KeyMode,
		Stats:                 o.Stats,
		Records:               o.Result.Entries(),
		AnomalyThreshold:      o.AnomalyThreshold,
		Anomalies:             anomalies,
	}
}
