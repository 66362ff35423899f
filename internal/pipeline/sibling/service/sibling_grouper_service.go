package service

import (
	"sort"

	ingestModel "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
	"github.com/Avi18971911/Sibyl/internal/pipeline/sibling/model"
)

type SiblingGrouperService struct {
	keyMode  model.KeyMode
	collapse bool
}

func NewSiblingGrouperService(keyMode model.KeyMode, collapse bool) *SiblingGrouperService {
	return &SiblingGrouperService{
		keyMode:  keyMode,
		collapse: collapse,
	}
}

// GroupByParent partitions the spans of one trace by parent. Root spans are
// left out. Groups are ordered by parent id and members keep trace order.
func (sgs *SiblingGrouperService) GroupByParent(spans []ingestModel.Span) []model.SiblingGroup {
	children := make(map[string][]model.Member)
	for _, span := range spans {
		if span.IsRoot() {
			continue
		}
		children[span.ParentID] = append(children[span.ParentID], model.Member{
			OperationKey: model.OperationKey(span, sgs.keyMode),
			StartTime:    span.StartTime,
			EndTime:      span.EndTime,
		})
	}

	parentIDs := make([]string, 0, len(children))
	for parentID := range children {
		parentIDs = append(parentIDs, parentID)
	}
	sort.Strings(parentIDs)

	groups := make([]model.SiblingGroup, 0, len(parentIDs))
	for _, parentID := range parentIDs {
		group := model.SiblingGroup{ParentID: parentID, Members: children[parentID]}
		if sgs.collapse {
			group = Collapse(group)
		}
		groups = append(groups, group)
	}
	return groups
}

// Collapse merges members sharing an operation key into their bounding
// interval, in order of first appearance.
func Collapse(group model.SiblingGroup) model.SiblingGroup {
	indexByKey := make(map[string]int, len(group.Members))
	collapsed := make([]model.Member, 0, len(group.Members))
	for _, member := range group.Members {
		i, ok := indexByKey[member.OperationKey]
		if !ok {
			indexByKey[member.OperationKey] = len(collapsed)
			collapsed = append(collapsed, member)
			continue
		}
		collapsed[i].StartTime = min(collapsed[i].StartTime, member.StartTime)
		collapsed[i].EndTime = max(collapsed[i].EndTime, member.EndTime)
	}
	return model.SiblingGroup{ParentID: group.ParentID, Members: collapsed}
}
