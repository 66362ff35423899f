package model

import (
	"fmt"
	"strings"
)

// Label is one pairwise observation.
type Label string

const (
	Overlap     Label = "overlap"
	WeakOverlap Label = "weak_overlap"
)

const orderingSeparator = "_before_"

// OrderLabel names the ordering "first ran entirely before second".
func OrderLabel(first string, second string) Label {
	return Label(first + orderingSeparator + second)
}

func (l Label) IsOrdering() bool {
	return l != Overlap && l != WeakOverlap && strings.Contains(string(l), orderingSeparator)
}

type AggregationMode string

const (
	// Global aggregates by operation pair across all parents and traces.
	Global AggregationMode = "global"
	// PerParent aggregates by parent id and operation pair.
	PerParent AggregationMode = "per_parent"
)

func ParseAggregationMode(value string) (AggregationMode, error) {
	switch AggregationMode(value) {
	case Global, PerParent:
		return AggregationMode(value), nil
	default:
		return "", fmt.Errorf("unknown aggregation mode %q", value)
	}
}

// RelationshipKey identifies where evidence accumulates. OpA <= OpB always;
// ParentID is empty in global mode.
type RelationshipKey struct {
	ParentID string `json:"parent_id,omitempty"`
	OpA      string `json:"op_a"`
	OpB      string `json:"op_b"`
}

func NewRelationshipKey(parentID string, x string, y string) RelationshipKey {
	if y < x {
		x, y = y, x
	}
	return RelationshipKey{ParentID: parentID, OpA: x, OpB: y}
}

func (k RelationshipKey) Less(other RelationshipKey) bool {
	if k.ParentID != other.ParentID {
		return k.ParentID < other.ParentID
	}
	if k.OpA != other.OpA {
		return k.OpA < other.OpA
	}
	return k.OpB < other.OpB
}

func (k RelationshipKey) String() string {
	if k.ParentID == "" {
		return fmt.Sprintf("%s|%s", k.OpA, k.OpB)
	}
	return fmt.Sprintf("%s|%s|%s", k.ParentID, k.OpA, k.OpB)
}

// Accumulator is the scan-scoped evidence multimap. Each worker owns one and
// they are merged once all workers are done.
type Accumulator map[RelationshipKey][]Label

func NewAccumulator() Accumulator {
	return make(Accumulator)
}

func (a Accumulator) Add(key RelationshipKey, label Label) {
	a[key] = append(a[key], label)
}

// Merge concatenates other into a. Order of merges does not change counts.
func (a Accumulator) Merge(other Accumulator) {
	for key, labels := range other {
		a[key] = append(a[key], labels...)
	}
}

// Size is the total number of evidence entries.
func (a Accumulator) Size() int {
	size := 0
	for _, labels := range a {
		size += len(labels)
	}
	return size
}
