package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Avi18971911/Sibyl/internal/monitoring"
	anomalyService "github.com/Avi18971911/Sibyl/internal/pipeline/anomaly/service"
	classifyService "github.com/Avi18971911/Sibyl/internal/pipeline/classify/service"
	"github.com/Avi18971911/Sibyl/internal/pipeline/data_pipeline/model"
	"github.com/Avi18971911/Sibyl/internal/pipeline/event_bus"
	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	evidenceService "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/service"
	ingestModel "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/model"
	ingestService "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/service"
	siblingService "github.com/Avi18971911/Sibyl/internal/pipeline/sibling/service"
	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const scanOutputTopic = "scan_output"

type DataPipeline struct {
	ingestService     *ingestService.TraceIngestService
	classifierService *classifyService.RelationshipClassifierService
	anomalyService    *anomalyService.AnomalyService
	scanBus           event_bus.SibylEventBus[any, model.ScanReport]
	sinkBus           event_bus.SibylEventBus[model.ScanReport, any]
	metrics           *monitoring.Metrics
	tracer            trace.Tracer
	workerCount       int
	logger            *zap.Logger
}

// NewDataPipeline wires the scan stages. metrics may be nil.
func NewDataPipeline(
	ingestService *ingestService.TraceIngestService,
	classifierService *classifyService.RelationshipClassifierService,
	anomalyService *anomalyService.AnomalyService,
	eventBus EventBus.Bus,
	metrics *monitoring.Metrics,
	tracer trace.Tracer,
	workerCount int,
	logger *zap.Logger,
) *DataPipeline {
	return &DataPipeline{
		ingestService:     ingestService,
		classifierService: classifierService,
		anomalyService:    anomalyService,
		scanBus:           event_bus.NewSibylEventBus[any, model.ScanReport](eventBus, logger),
		sinkBus:           event_bus.NewSibylEventBus[model.ScanReport, any](eventBus, logger),
		metrics:           metrics,
		tracer:            tracer,
		workerCount:       workerCount,
		logger:            logger,
	}
}

// Subscribe registers a sink that receives the report of every finished scan.
func (dp *DataPipeline) Subscribe(sinkName string, sink func(report model.ScanReport) error) error {
	err := dp.sinkBus.Subscribe(
		scanOutputTopic,
		func(report model.ScanReport) error {
			if err := sink(report); err != nil {
				return fmt.Errorf("sink %s failed for %s scan: %w", sinkName, report.Mode, err)
			}
			return nil
		},
		true,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe sink %s: %w", sinkName, err)
	}
	return nil
}

// Run scans the corpus once per option set, in order, and hands each report to
// the subscribed sinks. It returns after every sink has finished.
func (dp *DataPipeline) Run(
	ctx context.Context,
	corpusPath string,
	pattern string,
	options ...model.ScanOptions,
) ([]model.ScanOutput, error) {
	runID := uuid.NewString()
	ctx, span := dp.tracer.Start(ctx, "classify_corpus", trace.WithAttributes(
		attribute.String("corpus.path", corpusPath),
		attribute.String("run.id", runID),
	))
	defer span.End()

	corpus, err := dp.listCorpus(ctx, corpusPath, pattern)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	outputs := make([]model.ScanOutput, 0, len(options))
	for _, opts := range options {
		output, err := dp.scan(ctx, runID, corpus, opts)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to run %s scan: %w", opts.Mode, err)
		}
		if err := dp.scanBus.Publish(scanOutputTopic, output.Report()); err != nil {
			dp.logger.Error("Failed to publish scan report", zap.Error(err))
		}
		outputs = append(outputs, output)
	}
	dp.scanBus.WaitAsync()
	return outputs, nil
}

type corpus struct {
	files []string
	stats ingestModel.IngestStats
}

// listCorpus counts an unreadable corpus path as a skipped file so that the
// run still completes with an empty result.
func (dp *DataPipeline) listCorpus(ctx context.Context, corpusPath string, pattern string) (corpus, error) {
	files, err := dp.ingestService.ListFiles(ctx, corpusPath, pattern)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return corpus{}, ctxErr
		}
		readErr := &ingestModel.CorpusReadError{Path: corpusPath, Err: err}
		dp.logger.Warn("Skipping unreadable corpus path", zap.Error(readErr))
		return corpus{stats: ingestModel.IngestStats{FilesScanned: 1, FilesSkipped: 1}}, nil
	}
	dp.logger.Info("Listed corpus files", zap.String("path", corpusPath), zap.Int("files", len(files)))
	return corpus{files: files}, nil
}

type scanPartial struct {
	acc   evidenceModel.Accumulator
	stats ingestModel.IngestStats
}

func (dp *DataPipeline) scan(
	ctx context.Context,
	runID string,
	corpus corpus,
	opts model.ScanOptions,
) (model.ScanOutput, error) {
	start := time.Now()
	ctx, span := dp.tracer.Start(ctx, "scan", trace.WithAttributes(
		attribute.String("scan.mode", string(opts.Mode)),
		attribute.Float64("scan.overlap_threshold", opts.OverlapThreshold),
		attribute.Int("scan.files", len(corpus.files)),
	))
	defer span.End()

	grouper := siblingService.NewSiblingGrouperService(opts.KeyMode, opts.Collapse)
	collector := evidenceService.NewPairEvidenceCollectorService(opts.Mode, opts.OverlapThreshold)

	partials, err := ReduceWithWorkers(
		ctx,
		corpus.files,
		func() *scanPartial {
			return &scanPartial{acc: evidenceModel.NewAccumulator()}
		},
		func(ctx context.Context, partial *scanPartial, path string) {
			dp.collectFile(ctx, grouper, collector, partial, path)
		},
		dp.workerCount,
	)
	if err != nil {
		return model.ScanOutput{}, err
	}

	acc := evidenceModel.NewAccumulator()
	stats := corpus.stats
	for _, partial := range partials {
		acc.Merge(partial.acc)
		stats.Merge(partial.stats)
	}

	result := dp.classifierService.Classify(acc)
	anomalies, anomalyThreshold := dp.anomalyService.Detect(result)
	elapsed := time.Since(start)

	counts := make(map[string]int)
	for relType, count := range result.CountByType() {
		counts[string(relType)] = count
	}
	if dp.metrics != nil {
		dp.metrics.ObserveScan(string(opts.Mode), elapsed, stats, counts, len(anomalies))
	}
	span.SetAttributes(
		attribute.Int("scan.relationships", len(result)),
		attribute.Int("scan.spans_skipped", stats.SpansSkipped),
		attribute.Int("scan.files_skipped", stats.FilesSkipped),
	)
	dp.logger.Info(
		"Finished corpus scan",
		zap.String("mode", string(opts.Mode)),
		zap.Int("relationships", len(result)),
		zap.Int("parallel", counts["parallel"]),
		zap.Int("sequential", counts["sequential"]),
		zap.Int("inconsistent", counts["inconsistent"]),
		zap.Int("uncertain", counts["uncertain"]),
		zap.Int("files_scanned", stats.FilesScanned),
		zap.Int("files_skipped", stats.FilesSkipped),
		zap.Int("spans_skipped", stats.SpansSkipped),
		zap.Duration("elapsed", elapsed),
	)

	return model.ScanOutput{
		RunID:            runID,
		Options:          opts,
		Stats:            stats,
		Result:           result,
		Anomalies:        anomalies,
		AnomalyThreshold: anomalyThreshold,
	}, nil
}

func (dp *DataPipeline) collectFile(
	ctx context.Context,
	grouper *siblingService.SiblingGrouperService,
	collector *evidenceService.PairEvidenceCollectorService,
	partial *scanPartial,
	path string,
) {
	_, span := dp.tracer.Start(ctx, "collect_file", trace.WithAttributes(attribute.String("file.path", path)))
	defer span.End()

	fileResult, err := dp.ingestService.IngestFile(path)
	if err != nil {
		span.RecordError(err)
		dp.logger.Warn("Skipping corpus file", zap.String("path", path), zap.Error(err))
	}
	partial.stats.Merge(fileResult.Stats)

	evidence := 0
	for _, parsedTrace := range fileResult.Traces {
		for _, group := range grouper.GroupByParent(parsedTrace.Spans) {
			evidence += collector.Collect(group, partial.acc)
		}
	}
	span.SetAttributes(attribute.Int("file.evidence", evidence))
}
