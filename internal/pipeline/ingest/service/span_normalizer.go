package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
)

const childOfRefType = "child_of"

var parentIDFields = []string{"parentSpanId", "parentSpanID"}

// NormalizeSpan validates a raw span record once. Anything it returns without
// error is safe for the rest of the pipeline.
func NormalizeSpan(data model.SpanData) (model.Span, error) {
	spanID := stringField(data, "spanID")
	operation := stringField(data, "operationName")
	if operation == "" {
		operation = spanID
	}
	if operation == "" {
		return model.Span{}, &model.SpanFieldError{Field: "operationName", Err: model.ErrMissingField}
	}

	startTime, err := numericField(data, "startTime")
	if err != nil {
		return model.Span{}, &model.SpanFieldError{SpanID: spanID, Field: "startTime", Err: err}
	}
	duration, err := numericField(data, "duration")
	if err != nil {
		return model.Span{}, &model.SpanFieldError{SpanID: spanID, Field: "duration", Err: err}
	}
	if duration < 0 {
		return model.Span{}, &model.SpanFieldError{SpanID: spanID, Field: "duration", Err: model.ErrNegativeDuration}
	}

	return model.Span{
		SpanID:    spanID,
		Operation: operation,
		StartTime: startTime,
		Duration:  duration,
		EndTime:   startTime + duration,
		ParentID:  ResolveParent(data),
	}, nil
}

// ResolveParent prefers an explicit parent id and falls back to the first
// child-of reference. An empty result means the span is a root.
func ResolveParent(data model.SpanData) string {
	for _, field := range parentIDFields {
		if parentID := stringField(data, field); parentID != "" {
			return parentID
		}
	}

	references, ok := data["references"].([]interface{})
	if !ok {
		return ""
	}
	for _, reference := range references {
		ref, ok := reference.(map[string]interface{})
		if !ok {
			continue
		}
		refType, _ := ref["refType"].(string)
		if normalizeRefType(refType) != childOfRefType {
			continue
		}
		if parentID := stringField(ref, "spanID"); parentID != "" {
			return parentID
		}
	}
	return ""
}

func normalizeRefType(refType string) string {
	return strings.ReplaceAll(strings.ToLower(refType), "-", "_")
}

func stringField(data map[string]interface{}, field string) string {
	switch value := data[field].(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

func numericField(data map[string]interface{}, field string) (float64, error) {
	raw, ok := data[field]
	if !ok || raw == nil {
		return 0, model.ErrMissingField
	}

	var value float64
	switch typed := raw.(type) {
	case float64:
		value = typed
	case int64:
		value = float64(typed)
	case int:
		value = float64(typed)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", model.ErrNonNumericField, typed)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("%w: %T", model.ErrNonNumericField, raw)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", model.ErrNonNumericField, value)
	}
	return value, nil
}
