package service

import (
	"testing"

	"github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	siblingModel "github.com/Avi18971911/Sibyl/internal/pipeline/sibling/model"
	"github.com/stretchr/testify/assert"
)

func member(op string, start, end float64) siblingModel.Member {
	return siblingModel.Member{OperationKey: op, StartTime: start, EndTime: end}
}

func TestEvaluate(t *testing.T) {
	perParent := NewPairEvidenceCollectorService(model.PerParent, 10)
	global := NewPairEvidenceCollectorService(model.Global, 10)

	t.Run("should label an overlap above the threshold", func(t *testing.T) {
		a, b := member("A", 100, 150), member("B", 120, 170)
		assert.Equal(t, float64(30), OverlapDuration(a, b))
		assert.Equal(t, model.Overlap, perParent.Evaluate(a, b))
	})

	t.Run("should label strict orderings by operation name", func(t *testing.T) {
		a, b := member("A", 100, 150), member("B", 160, 200)
		assert.Equal(t, model.Label("A_before_B"), perParent.Evaluate(a, b))
		assert.Equal(t, model.Label("A_before_B"), perParent.Evaluate(b, a))
		assert.Equal(t, model.Label("A_before_B"), global.Evaluate(b, a))
	})

	t.Run("should treat touching intervals as ordered", func(t *testing.T) {
		a, b := member("A", 100, 150), member("B", 150, 200)
		assert.False(t, Overlaps(a, b))
		assert.Equal(t, model.Label("A_before_B"), perParent.Evaluate(a, b))
	})

	t.Run("should keep touching intervals ordered at a zero threshold", func(t *testing.T) {
		// θ=0 is the boundary: zero overlap meets duration >= θ, but overlap also needs the intervals to intersect.
		zeroThreshold := NewPairEvidenceCollectorService(model.PerParent, 0)
		a, b := member("A", 100, 150), member("B", 150, 200)
		assert.Equal(t, float64(0), OverlapDuration(a, b))
		assert.Equal(t, model.Label("A_before_B"), zeroThreshold.Evaluate(a, b))
		assert.Equal(t, model.Overlap, zeroThreshold.Evaluate(a, member("B", 149, 200)))
	})

	t.Run("should label a short overlap as weak in per parent mode only", func(t *testing.T) {
		a, b := member("A", 100, 150), member("B", 145, 200)
		assert.Equal(t, model.WeakOverlap, perParent.Evaluate(a, b))
		assert.Equal(t, model.Overlap, global.Evaluate(a, b))
	})

	t.Run("should only move labels away from overlap when the threshold rises", func(t *testing.T) {
		pairs := [][2]siblingModel.Member{
			{member("A", 0, 100), member("B", 50, 150)},
			{member("A", 0, 100), member("B", 95, 150)},
			{member("A", 0, 100), member("B", 100, 150)},
			{member("A", 0, 100), member("B", 0, 100)},
		}
		thresholds := []float64{0, 1, 5, 10, 50, 100, 1000}
		for _, pair := range pairs {
			wasOverlap := true
			for _, threshold := range thresholds {
				label := NewPairEvidenceCollectorService(model.PerParent, threshold).Evaluate(pair[0], pair[1])
				isOverlap := label == model.Overlap
				assert.False(t, isOverlap && !wasOverlap, "overlap reappeared at threshold %v", threshold)
				wasOverlap = isOverlap
			}
		}
	})
}

func TestCollect(t *testing.T) {
	group := siblingModel.SiblingGroup{
		ParentID: "p1",
		Members: []siblingModel.Member{
			member("C", 0, 10),
			member("A", 20, 30),
			member("B", 25, 60),
		},
	}

	t.Run("should emit one label per unordered pair under canonical per parent keys", func(t *testing.T) {
		acc := model.NewAccumulator()
		emitted := NewPairEvidenceCollectorService(model.PerParent, 10).Collect(group, acc)
		assert.Equal(t, 3, emitted)
		assert.Equal(t, model.Accumulator{
			{ParentID: "p1", OpA: "A", OpB: "C"}: {"C_before_A"},
			{ParentID: "p1", OpA: "B", OpB: "C"}: {"C_before_B"},
			{ParentID: "p1", OpA: "A", OpB: "B"}: {model.WeakOverlap},
		}, acc)
	})

	t.Run("should drop the parent from global keys", func(t *testing.T) {
		acc := model.NewAccumulator()
		NewPairEvidenceCollectorService(model.Global, 10).Collect(group, acc)
		assert.Equal(t, []model.Label{model.Overlap}, acc[model.RelationshipKey{OpA: "A", OpB: "B"}])
		assert.Equal(t, 3, acc.Size())
	})

	t.Run("should emit nothing for a single child", func(t *testing.T) {
		acc := model.NewAccumulator()
		emitted := NewPairEvidenceCollectorService(model.Global, 10).Collect(
			siblingModel.SiblingGroup{ParentID: "p", Members: []siblingModel.Member{member("A", 0, 1)}},
			acc,
		)
		assert.Zero(t, emitted)
		assert.Empty(t, acc)
	})
}

func TestRelationshipKey(t *testing.T) {
	t.Run("should be symmetric in its operations", func(t *testing.T) {
		assert.Equal(t, model.NewRelationshipKey("p", "A", "B"), model.NewRelationshipKey("p", "B", "A"))
		assert.Equal(t, model.NewRelationshipKey("", "x", "x"), model.RelationshipKey{OpA: "x", OpB: "x"})
	})

	t.Run("should merge accumulators by concatenation", func(t *testing.T) {
		key := model.NewRelationshipKey("", "A", "B")
		left, right := model.NewAccumulator(), model.NewAccumulator()
		left.Add(key, model.Overlap)
		right.Add(key, model.OrderLabel("A", "B"))
		right.Add(model.NewRelationshipKey("", "A", "C"), model.WeakOverlap)
		left.Merge(right)
		assert.Equal(t, []model.Label{model.Overlap, "A_before_B"}, left[key])
		assert.Equal(t, 3, left.Size())
	})

	t.Run("should recognise ordering labels", func(t *testing.T) {
		assert.True(t, model.OrderLabel("A", "B").IsOrdering())
		assert.False(t, model.Overlap.IsOrdering())
		assert.False(t, model.WeakOverlap.IsOrdering())
	})
}
