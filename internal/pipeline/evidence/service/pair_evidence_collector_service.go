package service

import (
	"github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	siblingModel "github.com/Avi18971911/Sibyl/internal/pipeline/sibling/model"
)

const DefaultOverlapThreshold = 10.0

type PairEvidenceCollectorService struct {
	mode      model.AggregationMode
	threshold float64
}

// NewPairEvidenceCollectorService creates a collector. threshold only applies
// in per-parent mode.
func NewPairEvidenceCollectorService(mode model.AggregationMode, threshold float64) *PairEvidenceCollectorService {
	return &PairEvidenceCollectorService{
		mode:      mode,
		threshold: threshold,
	}
}

// Collect adds one label per unordered pair of group members to acc and
// returns how many labels it added.
func (pec *PairEvidenceCollectorService) Collect(group siblingModel.SiblingGroup, acc model.Accumulator) int {
	emitted := 0
	for i := 0; i < len(group.Members); i++ {
		for j := i + 1; j < len(group.Members); j++ {
			a, b := group.Members[i], group.Members[j]
			acc.Add(pec.key(group.ParentID, a, b), pec.Evaluate(a, b))
			emitted++
		}
	}
	return emitted
}

// Evaluate labels one pair. The result does not depend on argument order.
func (pec *PairEvidenceCollectorService) Evaluate(a siblingModel.Member, b siblingModel.Member) model.Label {
	if Overlaps(a, b) && (pec.mode == model.Global || OverlapDuration(a, b) >= pec.threshold) {
		return model.Overlap
	}
	if a.EndTime <= b.StartTime {
		return model.OrderLabel(a.OperationKey, b.OperationKey)
	}
	if b.EndTime <= a.StartTime {
		return model.OrderLabel(b.OperationKey, a.OperationKey)
	}
	return model.WeakOverlap
}

func (pec *PairEvidenceCollectorService) key(parentID string, a siblingModel.Member, b siblingModel.Member) model.RelationshipKey {
	if pec.mode == model.Global {
		parentID = ""
	}
	return model.NewRelationshipKey(parentID, a.OperationKey, b.OperationKey)
}

func Overlaps(a siblingModel.Member, b siblingModel.Member) bool {
	return a.StartTime < b.EndTime && b.StartTime < a.EndTime
}

func OverlapDuration(a siblingModel.Member, b siblingModel.Member) float64 {
	return max(0, min(a.EndTime, b.EndTime)-max(a.StartTime, b.StartTime))
}
