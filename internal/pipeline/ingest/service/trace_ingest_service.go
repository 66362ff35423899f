package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

type TraceIngestService struct {
	cache  IngestCache
	logger *zap.Logger
}

// NewTraceIngestService creates the ingest stage. cache may be nil.
func NewTraceIngestService(
	cache IngestCache,
	logger *zap.Logger,
) *TraceIngestService {
	return &TraceIngestService{
		cache:  cache,
		logger: logger,
	}
}

func (tis *TraceIngestService) ListFiles(ctx context.Context, root string, pattern string) ([]string, error) {
	return ListCorpusFiles(ctx, root, pattern)
}

// IngestFile reads one corpus file. The returned stats are always usable: a
// file that cannot be read comes back with FilesSkipped set and a
// *model.CorpusReadError.
func (tis *TraceIngestService) IngestFile(path string) (model.FileResult, error) {
	key, err := cacheKey(path)
	if err != nil {
		return skippedFile(path), &model.CorpusReadError{Path: path, Err: err}
	}
	if tis.cache != nil {
		cached, err := tis.cache.Get(key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, ErrKeyNotFound) {
			tis.logger.Warn("Failed to read ingest cache", zap.String("path", path), zap.Error(err))
		}
	}

	content, err := readCorpusFile(path)
	if err != nil {
		return skippedFile(path), &model.CorpusReadError{Path: path, Err: err}
	}
	traces, err := decodeContainer(content)
	if err != nil {
		return skippedFile(path), &model.CorpusReadError{Path: path, Err: err}
	}

	result := tis.normalizeTraces(path, traces)
	if tis.cache != nil {
		if err := tis.cache.Put(key, result); err != nil {
			tis.logger.Debug("Ingest cache rejected file", zap.String("path", path), zap.Error(err))
		}
	}
	return result, nil
}

func (tis *TraceIngestService) normalizeTraces(path string, traces []rawTrace) model.FileResult {
	result := model.FileResult{
		Path:   path,
		Traces: make([]model.Trace, 0, len(traces)),
		Stats:  model.IngestStats{FilesScanned: 1, TracesScanned: len(traces)},
	}
	for traceIndex, raw := range traces {
		trace := model.Trace{TraceID: raw.traceID, Spans: make([]model.Span, 0, len(raw.spans))}
		for _, rawSpan := range raw.spans {
			span, err := normalizeRawSpan(rawSpan)
			if err != nil {
				result.Stats.SpansSkipped++
				tis.logger.Debug(
					"Skipping span",
					zap.String("path", path),
					zap.Int("trace_index", traceIndex),
					zap.Error(err),
				)
				continue
			}
			result.Stats.SpansAccepted++
			if span.IsRoot() {
				result.Stats.RootSpans++
			}
			trace.Spans = append(trace.Spans, span)
		}
		result.Traces = append(result.Traces, trace)
	}
	return result
}

func normalizeRawSpan(rawSpan interface{}) (model.Span, error) {
	data, ok := rawSpan.(map[string]interface{})
	if !ok {
		return model.Span{}, &model.SpanFieldError{Field: "span", Err: model.ErrNotAnObject}
	}
	return NormalizeSpan(data)
}

func readCorpusFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

func cacheKey(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()), nil
}

func skippedFile(path string) model.FileResult {
	return model.FileResult{
		Path:  path,
		Stats: model.IngestStats{FilesScanned: 1, FilesSkipped: 1},
	}
}
