package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Avi18971911/Sibyl/internal/config"
	"github.com/Avi18971911/Sibyl/internal/monitoring"
	anomalyService "github.com/Avi18971911/Sibyl/internal/pipeline/anomaly/service"
	classifyModel "github.com/Avi18971911/Sibyl/internal/pipeline/classify/model"
	classifyService "github.com/Avi18971911/Sibyl/internal/pipeline/classify/service"
	"github.com/Avi18971911/Sibyl/internal/pipeline/data_pipeline/model"
	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	ingestService "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/service"
	siblingModel "github.com/Avi18971911/Sibyl/internal/pipeline/sibling/model"
	"github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

var perParent = model.ScanOptions{
	Mode:             evidenceModel.PerParent,
	OverlapThreshold: 10,
	Collapse:         true,
	KeyMode:          siblingModel.OperationName,
}

var global = model.ScanOptions{
	Mode:             evidenceModel.Global,
	OverlapThreshold: 10,
	Collapse:         false,
	KeyMode:          siblingModel.OperationName,
}

func span(id string, op string, start int, duration int, parent string) string {
	return fmt.Sprintf(
		`{"spanID": %q, "operationName": %q, "startTime": %d, "duration": %d, "parentSpanId": %q}`,
		id, op, start, duration, parent,
	)
}

func traceOf(traceID string, spans ...string) string {
	body := ""
	for i, s := range spans {
		if i > 0 {
			body += ","
		}
		body += s
	}
	return fmt.Sprintf(`{"traceID": %q, "spans": [%s]}`, traceID, body)
}

func writeCorpusFile(t *testing.T, dir string, name string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newPipeline(workers int, metrics *monitoring.Metrics) *DataPipeline {
	return NewDataPipeline(
		ingestService.NewTraceIngestService(nil, logger),
		classifyService.NewRelationshipClassifierService(logger),
		anomalyService.NewAnomalyService(anomalyService.DefaultAnomalyThreshold, anomalyService.DefaultAnomalyPercentile, logger),
		EventBus.New(),
		metrics,
		noop.NewTracerProvider().Tracer("test"),
		workers,
		logger,
	)
}

func runSingle(t *testing.T, dp *DataPipeline, dir string, opts model.ScanOptions) model.ScanOutput {
	t.Helper()
	outputs, err := dp.Run(context.Background(), dir, "", opts)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	return outputs[0]
}

func TestRun(t *testing.T) {
	t.Run("should classify overlapping siblings as parallel", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "a.json", traceOf("t1",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 100, 50, "p"),
			span("b", "B", 120, 50, "p"),
		))

		output := runSingle(t, newPipeline(2, nil), dir, perParent)
		record := output.Result[evidenceModel.NewRelationshipKey("p", "A", "B")]
		assert.Equal(t, classifyModel.Parallel, record.Type)
		assert.Equal(t, 1.0, record.Confidence)
		assert.Equal(t, 1, record.Samples)
	})

	t.Run("should classify disjoint siblings as sequential", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "b.json", traceOf("t1",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 100, 50, "p"),
			span("b", "B", 160, 40, "p"),
		))

		output := runSingle(t, newPipeline(2, nil), dir, perParent)
		record := output.Result[evidenceModel.NewRelationshipKey("p", "A", "B")]
		assert.Equal(t, classifyModel.Sequential, record.Type)
		assert.Equal(t, evidenceModel.Label("A_before_B"), record.Order)
		assert.Equal(t, 1.0, record.Confidence)
		assert.Equal(t, 1, record.Samples)
	})

	t.Run("should classify opposite orders across traces as inconsistent", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "c1.json", traceOf("t1",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 100, 50, "p"),
			span("b", "B", 160, 40, "p"),
		))
		writeCorpusFile(t, dir, "c2.json", traceOf("t2",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 300, 50, "p"),
			span("b", "B", 160, 40, "p"),
		))

		output := runSingle(t, newPipeline(2, nil), dir, perParent)
		record := output.Result[evidenceModel.NewRelationshipKey("p", "A", "B")]
		assert.Equal(t, classifyModel.Inconsistent, record.Type)
		assert.Equal(t, []evidenceModel.Label{"A_before_B", "B_before_A"}, record.Orderings)
		assert.Equal(t, 0.5, record.Confidence)
		assert.Equal(t, 2, record.Samples)
		require.Len(t, output.Anomalies, 1)
	})

	t.Run("should skip a span without duration and still complete", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "d.json", `{"traceID": "t1", "spans": [`+
			span("p", "Parent", 0, 500, "")+`,`+
			span("a", "A", 100, 50, "p")+`,`+
			`{"spanID": "b", "operationName": "B", "startTime": 120, "parentSpanId": "p"}`+
			`]}`)

		output := runSingle(t, newPipeline(2, nil), dir, perParent)
		assert.Empty(t, output.Result)
		assert.Equal(t, 1, output.Stats.SpansSkipped)
		assert.Equal(t, 2, output.Stats.SpansAccepted)
	})

	t.Run("should count unreadable files and keep going", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "broken.json", `{"data": [`)
		writeCorpusFile(t, dir, "ok.json", traceOf("t1",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 100, 50, "p"),
			span("b", "B", 160, 40, "p"),
		))

		output := runSingle(t, newPipeline(2, nil), dir, perParent)
		assert.Len(t, output.Result, 1)
		assert.Equal(t, 1, output.Stats.FilesSkipped)
		assert.Equal(t, 2, output.Stats.FilesScanned)
	})

	t.Run("should return an empty result for a missing corpus path", func(t *testing.T) {
		output := runSingle(t, newPipeline(2, nil), filepath.Join(t.TempDir(), "missing"), perParent)
		assert.Empty(t, output.Result)
		assert.Equal(t, 1, output.Stats.FilesSkipped)
	})

	t.Run("should run global and per-parent scans back to back", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "both.json", traceOf("t1",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 100, 50, "p"),
			span("b", "B", 145, 40, "p"),
		))

		outputs, err := newPipeline(2, nil).Run(context.Background(), dir, "", global, perParent)
		require.NoError(t, err)
		require.Len(t, outputs, 2)
		assert.Equal(t, outputs[0].RunID, outputs[1].RunID)

		globalRecord := outputs[0].Result[evidenceModel.NewRelationshipKey("", "A", "B")]
		assert.Equal(t, classifyModel.Parallel, globalRecord.Type)

		perParentRecord := outputs[1].Result[evidenceModel.NewRelationshipKey("p", "A", "B")]
		assert.Equal(t, classifyModel.Uncertain, perParentRecord.Type)
	})

	t.Run("should collapse fan-out only in the per-parent half of a default both run", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "fanout.json", traceOf("t1",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 0, 50, "p"),
			span("b1", "B", 0, 10, "p"),
			span("b2", "B", 20, 10, "p"),
			span("b3", "B", 60, 10, "p"),
		))

		cfg := config.Default()
		cfg.AggregationMode = config.Both
		options, err := cfg.ScanOptions()
		require.NoError(t, err)

		outputs, err := newPipeline(2, nil).Run(context.Background(), dir, "", options...)
		require.NoError(t, err)
		require.Len(t, outputs, 2)

		globalResult := outputs[0].Result
		assert.Equal(t, evidenceModel.Global, outputs[0].Options.Mode)
		crossRecord := globalResult[evidenceModel.NewRelationshipKey("", "A", "B")]
		assert.Equal(t, classifyModel.Parallel, crossRecord.Type)
		assert.Equal(t, 3, crossRecord.Samples)
		assert.InDelta(t, 2.0/3.0, crossRecord.Confidence, 1e-9)
		sameRecord, ok := globalResult[evidenceModel.NewRelationshipKey("", "B", "B")]
		require.True(t, ok)
		assert.Equal(t, classifyModel.Sequential, sameRecord.Type)
		assert.Equal(t, 3, sameRecord.Samples)

		perParentResult := outputs[1].Result
		assert.Len(t, perParentResult, 1)
		collapsedRecord := perParentResult[evidenceModel.NewRelationshipKey("p", "A", "B")]
		assert.Equal(t, classifyModel.Parallel, collapsedRecord.Type)
		assert.Equal(t, 1, collapsedRecord.Samples)
	})

	t.Run("should produce the same result for any worker count", func(t *testing.T) {
		dir := t.TempDir()
		for i := 0; i < 40; i++ {
			offset := (i % 3) * 70
			writeCorpusFile(t, dir, fmt.Sprintf("trace-%02d.json", i), traceOf(
				fmt.Sprintf("t%d", i),
				span("p", "Parent", 0, 1000, ""),
				span("a", "A", 100+offset, 50, "p"),
				span("b", "B", 160, 40, "p"),
				span("c", "C", 100, 300, "p"),
				span("c2", "C", 500, 10, "p"),
			))
		}

		var results []classifyModel.ClassificationResult
		for _, workers := range []int{1, 4, 16} {
			output := runSingle(t, newPipeline(workers, nil), dir, perParent)
			results = append(results, output.Result)
		}
		assert.Equal(t, results[0], results[1])
		assert.Equal(t, results[0], results[2])
		assert.Equal(t, 40, results[0][evidenceModel.NewRelationshipKey("p", "A", "B")].Samples)
	})

	t.Run("should hand the report to subscribed sinks", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "a.json", traceOf("t1",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 100, 50, "p"),
			span("b", "B", 120, 50, "p"),
		))

		dp := newPipeline(2, nil)
		var mu sync.Mutex
		var reports []model.ScanReport
		require.NoError(t, dp.Subscribe("recorder", func(report model.ScanReport) error {
			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, report)
			return nil
		}))

		outputs, err := dp.Run(context.Background(), dir, "", global, perParent)
		require.NoError(t, err)

		require.Len(t, reports, 2)
		modes := []evidenceModel.AggregationMode{reports[0].Mode, reports[1].Mode}
		assert.ElementsMatch(t, []evidenceModel.AggregationMode{evidenceModel.Global, evidenceModel.PerParent}, modes)
		for _, report := range reports {
			assert.Equal(t, outputs[0].RunID, report.RunID)
			require.Len(t, report.Records, 1)
			assert.Equal(t, classifyModel.Parallel, report.Records[0].Record.Type)
		}
	})

	t.Run("should record scan metrics", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "a.json", traceOf("t1",
			span("p", "Parent", 0, 500, ""),
			span("a", "A", 100, 50, "p"),
			span("b", "B", 120, 50, "p"),
		))

		metrics := monitoring.NewMetrics()
		runSingle(t, newPipeline(2, metrics), dir, perParent)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ScansTotal.WithLabelValues("per_parent")))
		assert.Equal(t, 3.0, testutil.ToFloat64(metrics.SpansAccepted.WithLabelValues("per_parent")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Relationships.WithLabelValues("per_parent", "parallel")))
	})

	t.Run("should trace the run, the scan and every file", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "a.json", traceOf("t1", span("p", "Parent", 0, 500, "")))
		writeCorpusFile(t, dir, "b.json", traceOf("t2", span("p", "Parent", 0, 500, "")))

		recorder := tracetest.NewSpanRecorder()
		provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		dp := NewDataPipeline(
			ingestService.NewTraceIngestService(nil, logger),
			classifyService.NewRelationshipClassifierService(logger),
			anomalyService.NewAnomalyService(anomalyService.DefaultAnomalyThreshold, anomalyService.DefaultAnomalyPercentile, logger),
			EventBus.New(),
			nil,
			provider.Tracer("test"),
			2,
			logger,
		)
		_, err := dp.Run(context.Background(), dir, "", perParent)
		require.NoError(t, err)

		names := make(map[string]int)
		for _, ended := range recorder.Ended() {
			names[ended.Name()]++
		}
		assert.Equal(t, map[string]int{"classify_corpus": 1, "scan": 1, "collect_file": 2}, names)
	})

	t.Run("should fail on a cancelled context", func(t *testing.T) {
		dir := t.TempDir()
		writeCorpusFile(t, dir, "a.json", traceOf("t1", span("p", "Parent", 0, 500, "")))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newPipeline(2, nil).Run(ctx, dir, "", perParent)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
