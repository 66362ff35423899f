package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Avi18971911/Sibyl/internal/config"
	"github.com/Avi18971911/Sibyl/internal/db/elasticsearch/bootstrapper"
	"github.com/Avi18971911/Sibyl/internal/db/elasticsearch/client"
	"github.com/Avi18971911/Sibyl/internal/db/write_buffer"
	"github.com/Avi18971911/Sibyl/internal/export"
	"github.com/Avi18971911/Sibyl/internal/logging"
	"github.com/Avi18971911/Sibyl/internal/monitoring"
	anomalyService "github.com/Avi18971911/Sibyl/internal/pipeline/anomaly/service"
	classifyService "github.com/Avi18971911/Sibyl/internal/pipeline/classify/service"
	"github.com/Avi18971911/Sibyl/internal/pipeline/data_pipeline/model"
	"github.com/Avi18971911/Sibyl/internal/pipeline/data_pipeline/service"
	ingestService "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/service"
	"github.com/Avi18971911/Sibyl/internal/tracing"
	"github.com/asaskevich/EventBus"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	corpus := flag.String("corpus", "", "Trace file or directory to scan")
	pattern := flag.String("pattern", "", "Glob selecting corpus files inside a directory")
	threshold := flag.Float64("threshold", 0, "Minimum overlap counted as concurrency in per_parent mode")
	mode := flag.String("mode", "", "Aggregation mode: global, per_parent or both")
	collapse := flag.Bool("collapse", true, "Merge same-operation siblings into one interval in per_parent scans")
	collapseGlobal := flag.Bool("collapse-global", false, "Merge same-operation siblings into one interval in global scans")
	key := flag.String("key", "", "Operation identity: operation or operation_span")
	workers := flag.Int("workers", 0, "Number of scan workers")
	output := flag.String("output", "", "JSON output path; stdout when empty")
	anomalyThreshold := flag.Float64("anomaly-threshold", config.DefaultAnomalyThreshold, "Rare-overlap threshold; 0 derives it from -anomaly-percentile")
	anomalyPercentile := flag.Float64("anomaly-percentile", config.DefaultAnomalyPercentile, "Percentile of parallel confidences used when -anomaly-threshold is 0")
	logLevel := flag.String("log-level", "", "Log level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "corpus":
			cfg.CorpusPath = *corpus
		case "pattern":
			cfg.CorpusPattern = *pattern
		case "threshold":
			cfg.OverlapThreshold = *threshold
		case "mode":
			cfg.AggregationMode = *mode
		case "collapse":
			cfg.CollapseSameOperation = *collapse
		case "collapse-global":
			cfg.CollapseGlobal = *collapseGlobal
		case "key":
			cfg.OperationKey = *key
		case "workers":
			cfg.WorkerCount = *workers
		case "output":
			cfg.OutputPath = *output
		case "anomaly-threshold":
			cfg.AnomalyThreshold = *anomalyThreshold
		case "anomaly-percentile":
			cfg.AnomalyPercentile = *anomalyPercentile
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if flag.NArg() > 0 {
		cfg.CorpusPath = flag.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Sibling classification failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.NewProvider(ctx, cfg.Tracing.Endpoint, logger)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	var cache ingestService.IngestCache
	if cfg.IngestCacheSpans > 0 {
		ingestCache, err := ingestService.NewIngestCache(cfg.IngestCacheSpans)
		if err != nil {
			return err
		}
		cache = ingestCache
	}

	metrics := monitoring.NewMetrics()
	dataPipeline := service.NewDataPipeline(
		ingestService.NewTraceIngestService(cache, logger),
		classifyService.NewRelationshipClassifierService(logger),
		anomalyService.NewAnomalyService(cfg.AnomalyThreshold, cfg.AnomalyPercentile, logger),
		EventBus.New(),
		metrics,
		tracerProvider.Tracer(),
		cfg.WorkerCount,
		logger,
	)

	options, err := cfg.ScanOptions()
	if err != nil {
		return err
	}
	if err := subscribeSinks(ctx, cfg, len(options) > 1, dataPipeline, logger); err != nil {
		return err
	}

	outputs, err := dataPipeline.Run(ctx, cfg.CorpusPath, cfg.CorpusPattern, options...)
	if err != nil {
		return err
	}

	for _, out := range outputs {
		for _, anomaly := range out.Anomalies {
			logger.Warn(
				"Sibling anomaly",
				zap.String("mode", string(out.Options.Mode)),
				zap.String("kind", string(anomaly.Kind)),
				zap.String("key", anomaly.Key.String()),
				zap.String("description", anomaly.Description),
			)
		}
		if cfg.OutputPath == "" {
			content, err := export.MarshalReport(out.Report())
			if err != nil {
				return err
			}
			if _, err := os.Stdout.Write(content); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
	}

	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.Push(ctx, cfg.Metrics.PushgatewayURL); err != nil {
			logger.Warn("Failed to push scan metrics", zap.Error(err))
		}
	}
	return nil
}

func subscribeSinks(
	ctx context.Context,
	cfg *config.Config,
	perMode bool,
	dataPipeline *service.DataPipeline,
	logger *zap.Logger,
) error {
	if cfg.OutputPath != "" {
		exporter := export.NewJSONExporter(cfg.OutputPath, perMode, logger)
		if err := dataPipeline.Subscribe("json", exporter.Export); err != nil {
			return err
		}
	}

	if len(cfg.Elasticsearch.Addresses) == 0 {
		return nil
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.Elasticsearch.Addresses})
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	bs := bootstrapper.NewBootstrapper(es, logger)
	if err := bs.BootstrapElasticsearch(ctx, cfg.Elasticsearch.Index); err != nil {
		logger.Error("Failed to bootstrap elasticsearch, results will not be indexed", zap.Error(err))
		return nil
	}

	sc := client.NewSibylClientImpl(es, client.Wait)
	buffer := write_buffer.NewDatabaseWriteBufferImpl[export.ClassificationDocument](
		sc,
		cfg.Elasticsearch.Index,
		write_buffer.WriteQueueSize,
		logger,
	)
	sink := export.NewElasticsearchSink(buffer, logger)
	return dataPipeline.Subscribe("elasticsearch", func(report model.ScanReport) error {
		return sink.Export(ctx, report)
	})
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [corpus]\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Classifies how sibling spans relate across a trace corpus.")
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), "Flags that are set override -config and the environment.")
	}
}
