package model

import (
	"fmt"

	ingestModel "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
)

// KeyMode selects what makes two spans the "same" operation.
type KeyMode string

const (
	// OperationName treats all instances of an operation as interchangeable.
	OperationName KeyMode = "operation"
	// OperationSpan keeps every span instance distinct: name<spanID>.
	OperationSpan KeyMode = "operation_span"
)

func ParseKeyMode(value string) (KeyMode, error) {
	switch KeyMode(value) {
	case OperationName, OperationSpan:
		return KeyMode(value), nil
	default:
		return "", fmt.Errorf("unknown operation key mode %q", value)
	}
}

func OperationKey(span ingestModel.Span, mode KeyMode) string {
	if mode == OperationSpan {
		return fmt.Sprintf("%s<%s>", span.Operation, span.SpanID)
	}
	return span.Operation
}

// Member is one sibling interval, possibly the bounding interval of several
// collapsed spans.
type Member struct {
	OperationKey string
	StartTime    float64
	EndTime      float64
}

// SiblingGroup holds the children of one parent within one trace.
type SiblingGroup struct {
	ParentID string
	Members  []Member
}
