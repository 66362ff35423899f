package service

import (
	"fmt"
	"sort"

	"github.com/Avi18971911/Sibyl/internal/pipeline/anomaly/model"
	classifyModel "github.com/Avi18971911/Sibyl/internal/pipeline/classify/model"
	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultAnomalyThreshold  = 0.01
	DefaultAnomalyPercentile = 1.0
)

type AnomalyService struct {
	fixedThreshold float64
	percentile     float64
	logger         *zap.Logger
}

// NewAnomalyService creates the detector. A fixedThreshold of zero means the
// threshold is derived from the result at the given percentile (0-100).
func NewAnomalyService(
	fixedThreshold float64,
	percentile float64,
	logger *zap.Logger,
) *AnomalyService {
	return &AnomalyService{
		fixedThreshold: fixedThreshold,
		percentile:     percentile,
		logger:         logger,
	}
}

// Threshold is the confidence under which a parallel pair counts as a rare overlap.
func (as *AnomalyService) Threshold(result classifyModel.ClassificationResult) float64 {
	if as.fixedThreshold > 0 {
		return as.fixedThreshold
	}

	var confidences []float64
	for _, record := range result {
		if record.Type == classifyModel.Parallel {
			confidences = append(confidences, record.Confidence)
		}
	}
	if len(confidences) == 0 {
		return DefaultAnomalyThreshold
	}
	sort.Float64s(confidences)
	return stat.Quantile(closestRanks(as.percentile/100.0, len(confidences)), stat.LinInterp, confidences, nil)
}

// closestRanks rescales p so that stat.LinInterp interpolates over the n-1 gaps
// between sorted values, the way numpy.percentile does by default.
func closestRanks(p float64, n int) float64 {
	return ((float64(n)-1)*p + 1) / float64(n)
}

// Detect lists rare overlaps and inconsistent orderings, ordered by key, along
// with the threshold it used.
func (as *AnomalyService) Detect(result classifyModel.ClassificationResult) ([]model.Anomaly, float64) {
	threshold := as.Threshold(result)
	anomalies := make([]model.Anomaly, 0)
	for _, entry := range result.Entries() {
		record := entry.Record
		switch {
		case record.Type == classifyModel.Parallel && record.Confidence < threshold:
			overlaps := record.Distribution[evidenceModel.Overlap]
			anomalies = append(anomalies, model.Anomaly{
				Key:        entry.Key,
				Kind:       model.RareOverlap,
				Samples:    record.Samples,
				Overlaps:   overlaps,
				Confidence: record.Confidence,
				Description: fmt.Sprintf(
					"%s vs %s: mostly sequential (%d/%d runs) but %d overlap(s)",
					entry.Key.OpA, entry.Key.OpB, record.Samples-overlaps, record.Samples, overlaps,
				),
			})
		case record.Type == classifyModel.Inconsistent:
			anomalies = append(anomalies, model.Anomaly{
				Key:        entry.Key,
				Kind:       model.InconsistentOrdering,
				Samples:    record.Samples,
				Orderings:  record.Orderings,
				Confidence: record.Confidence,
				Description: fmt.Sprintf(
					"%s vs %s: inconsistent ordering %v over %d runs",
					entry.Key.OpA, entry.Key.OpB, record.Orderings, record.Samples,
				),
			})
		}
	}

	as.logger.Info(
		"Detected sibling anomalies",
		zap.Int("anomalies", len(anomalies)),
		zap.Float64("threshold", threshold),
	)
	return anomalies, threshold
}
