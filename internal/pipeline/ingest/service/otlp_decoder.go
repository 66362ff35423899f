package service

import (
	"encoding/base64"
	"fmt"
	"sort"

	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	v1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

const nanosPerMicro = 1000.0

var otlpUnmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}

// decodeOTLPContainer turns an OTLP JSON export into the same raw span records
// a Jaeger export produces, so both go through NormalizeSpan. Times are
// converted from nanoseconds to microseconds to match Jaeger exports.
func decodeOTLPContainer(content []byte) ([]rawTrace, error) {
	req := &protoTrace.ExportTraceServiceRequest{}
	if err := otlpUnmarshalOptions.Unmarshal(content, req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTLP export: %w", err)
	}

	// spans under one resource span may belong to different traces
	grouped := make(map[string][]interface{})
	for _, resourceSpan := range req.ResourceSpans {
		for _, scopeSpan := range resourceSpan.ScopeSpans {
			for _, span := range scopeSpan.Spans {
				traceID := encodeID(span.TraceId)
				grouped[traceID] = append(grouped[traceID], otlpSpanData(span))
			}
		}
	}

	traceIDs := make([]string, 0, len(grouped))
	for traceID := range grouped {
		traceIDs = append(traceIDs, traceID)
	}
	sort.Strings(traceIDs)

	traces := make([]rawTrace, 0, len(traceIDs))
	for _, traceID := range traceIDs {
		traces = append(traces, rawTrace{traceID: traceID, spans: grouped[traceID]})
	}
	return traces, nil
}

func otlpSpanData(span *v1.Span) map[string]interface{} {
	data := map[string]interface{}{
		"spanID":        encodeID(span.SpanId),
		"operationName": span.Name,
		"parentSpanId":  encodeID(span.ParentSpanId),
	}
	if span.StartTimeUnixNano != 0 {
		data["startTime"] = nanosToMicros(span.StartTimeUnixNano)
		if span.EndTimeUnixNano != 0 {
			data["duration"] = float64(int64(span.EndTimeUnixNano)-int64(span.StartTimeUnixNano)) / nanosPerMicro
		}
	}
	return data
}

// nanosToMicros divides the whole microseconds exactly before adding the
// remainder. At epoch magnitudes float64 only resolves about 0.25µs, so
// anything finer is rounded away.
func nanosToMicros(nanos uint64) float64 {
	return float64(nanos/1000) + float64(nanos%1000)/nanosPerMicro
}

// encodeID gives back the id text exactly as it was written in the file:
// protojson reads ids as base64, which round-trips both base64 and hex ids.
func encodeID(id []byte) string {
	if len(id) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(id)
}
