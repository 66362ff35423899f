package service

import (
	"fmt"

	"github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
	"github.com/bytedance/sonic"
)

type rawTrace struct {
	traceID string
	spans   []interface{}
}

// decodeContainer accepts {"data": [trace...]}, a bare list of traces, a single
// trace object, or an OTLP export ({"resourceSpans": [...]}).
func decodeContainer(content []byte) ([]rawTrace, error) {
	var decoded interface{}
	if err := sonic.Unmarshal(content, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trace file: %w", err)
	}

	switch typed := decoded.(type) {
	case map[string]interface{}:
		if _, ok := typed["resourceSpans"]; ok {
			return decodeOTLPContainer(content)
		}
		if data, ok := typed["data"]; ok {
			traces, ok := data.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: data field is %T", model.ErrUnrecognizedContainer, data)
			}
			return rawTraces(traces), nil
		}
		return rawTraces([]interface{}{typed}), nil
	case []interface{}:
		return rawTraces(typed), nil
	default:
		return nil, fmt.Errorf("%w: top level is %T", model.ErrUnrecognizedContainer, decoded)
	}
}

func rawTraces(traces []interface{}) []rawTrace {
	result := make([]rawTrace, 0, len(traces))
	for _, trace := range traces {
		result = append(result, spansOfTrace(trace))
	}
	return result
}

// spansOfTrace treats a list as the span list itself; an object without a
// spans field contributes no spans.
func spansOfTrace(trace interface{}) rawTrace {
	switch typed := trace.(type) {
	case map[string]interface{}:
		traceID, _ := typed["traceID"].(string)
		spans, _ := typed["spans"].([]interface{})
		return rawTrace{traceID: traceID, spans: spans}
	case []interface{}:
		return rawTrace{spans: typed}
	default:
		return rawTrace{}
	}
}
