package service

import (
	"sort"

	"github.com/Avi18971911/Sibyl/internal/pipeline/classify/model"
	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	"go.uber.org/zap"
)

type RelationshipClassifierService struct {
	logger *zap.Logger
}

func NewRelationshipClassifierService(logger *zap.Logger) *RelationshipClassifierService {
	return &RelationshipClassifierService{
		logger: logger,
	}
}

// Classify reduces every key of the accumulator independently.
func (rcs *RelationshipClassifierService) Classify(acc evidenceModel.Accumulator) model.ClassificationResult {
	result := make(model.ClassificationResult, len(acc))
	for key, labels := range acc {
		if len(labels) == 0 {
			continue
		}
		result[key] = ClassifyEvidence(labels)
	}
	rcs.logger.Debug(
		"Classified sibling relationships",
		zap.Int("keys", len(result)),
		zap.Int("evidence", acc.Size()),
	)
	return result
}

// ClassifyEvidence turns the labels of one key into a verdict. Any overlap makes
// the pair parallel, then any weak overlap makes it uncertain, then one
// ordering is sequential and several are inconsistent. labels must not be empty.
func ClassifyEvidence(labels []evidenceModel.Label) model.ClassificationRecord {
	total := len(labels)
	distribution := make(map[evidenceModel.Label]int)
	for _, label := range labels {
		distribution[label]++
	}
	overlapCount := distribution[evidenceModel.Overlap]
	weakCount := distribution[evidenceModel.WeakOverlap]

	record := model.ClassificationRecord{
		Samples:      total,
		Distribution: distribution,
	}
	switch {
	case overlapCount > 0:
		record.Type = model.Parallel
		record.Confidence = float64(overlapCount) / float64(total)
	case weakCount > 0:
		record.Type = model.Uncertain
		record.Confidence = float64(weakCount) / float64(total)
	default:
		orderings := distinctOrderings(distribution)
		if len(orderings) == 1 {
			record.Type = model.Sequential
			record.Order = orderings[0]
			record.Confidence = 1.0
		} else {
			record.Type = model.Inconsistent
			record.Orderings = orderings
			record.Confidence = float64(distribution[dominantOrdering(orderings, distribution)]) / float64(total)
		}
	}
	return record
}

func distinctOrderings(distribution map[evidenceModel.Label]int) []evidenceModel.Label {
	orderings := make([]evidenceModel.Label, 0, len(distribution))
	for label := range distribution {
		if label.IsOrdering() {
			orderings = append(orderings, label)
		}
	}
	sort.Slice(orderings, func(i, j int) bool {
		return orderings[i] < orderings[j]
	})
	return orderings
}

// dominantOrdering returns the most frequent ordering; ties go to the
// lexicographically smallest label since orderings is sorted.
func dominantOrdering(orderings []evidenceModel.Label, distribution map[evidenceModel.Label]int) evidenceModel.Label {
	dominant := orderings[0]
	for _, label := range orderings[1:] {
		if distribution[label] > distribution[dominant] {
			dominant = label
		}
	}
	return dominant
}
