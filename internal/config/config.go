package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/Avi18971911/Sibyl/internal/db/elasticsearch/bootstrapper"
	anomalyService "github.com/Avi18971911/Sibyl/internal/pipeline/anomaly/service"
	dataPipelineModel "github.com/Avi18971911/Sibyl/internal/pipeline/data_pipeline/model"
	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	evidenceService "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/service"
	ingestService "github.com/Avi18971911/Sibyl/internal/pipeline/ingest/service"
	siblingModel "github.com/Avi18971911/Sibyl/internal/pipeline/sibling/model"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Both runs a global scan followed by a per-parent scan.
const Both = "both"

const (
	DefaultCorpusPattern     = ingestService.DefaultCorpusPattern
	DefaultOverlapThreshold  = evidenceService.DefaultOverlapThreshold
	DefaultAnomalyThreshold  = anomalyService.DefaultAnomalyThreshold
	DefaultAnomalyPercentile = anomalyService.DefaultAnomalyPercentile
	DefaultIngestCacheSpans  = 1_000_000
	DefaultIndexName         = bootstrapper.DefaultClassificationIndexName
)

// Config holds all application configuration. Fields carry no envconfig
// defaults so that values read from a YAML file survive an unset variable.
type Config struct {
	CorpusPath            string              `envconfig:"CORPUS_PATH" yaml:"corpus_path"`
	CorpusPattern         string              `envconfig:"CORPUS_PATTERN" yaml:"corpus_pattern"`
	OverlapThreshold      float64             `envconfig:"OVERLAP_THRESHOLD" yaml:"overlap_threshold"`
	AggregationMode       string              `envconfig:"AGGREGATION_MODE" yaml:"aggregation_mode"`
	CollapseSameOperation bool                `envconfig:"COLLAPSE_SAME_OPERATION" yaml:"collapse_same_operation"`
	CollapseGlobal        bool                `envconfig:"COLLAPSE_GLOBAL" yaml:"collapse_global"`
	OperationKey          string              `envconfig:"OPERATION_KEY" yaml:"operation_key"`
	WorkerCount           int                 `envconfig:"WORKER_COUNT" yaml:"worker_count"`
	AnomalyThreshold      float64             `envconfig:"ANOMALY_THRESHOLD" yaml:"anomaly_threshold"`
	AnomalyPercentile     float64             `envconfig:"ANOMALY_PERCENTILE" yaml:"anomaly_percentile"`
	OutputPath            string              `envconfig:"OUTPUT_PATH" yaml:"output_path"`
	IngestCacheSpans      int64               `envconfig:"INGEST_CACHE_SPANS" yaml:"ingest_cache_spans"`
	Log                   LogConfig           `envconfig:"LOG" yaml:"log"`
	Elasticsearch         ElasticsearchConfig `envconfig:"ELASTICSEARCH" yaml:"elasticsearch"`
	Metrics               MetricsConfig       `envconfig:"PUSHGATEWAY" yaml:"metrics"`
	Tracing               TracingConfig       `envconfig:"OTEL_EXPORTER_OTLP" yaml:"tracing"`
}

// LogConfig reads LOG_LEVEL and LOG_DEV.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" yaml:"level"`
	Development bool   `envconfig:"DEV" yaml:"development"`
}

// ElasticsearchConfig reads ELASTICSEARCH_ADDRESSES and ELASTICSEARCH_INDEX.
// The sink is disabled without addresses.
type ElasticsearchConfig struct {
	Addresses []string `envconfig:"ADDRESSES" yaml:"addresses"`
	Index     string   `envconfig:"INDEX" yaml:"index"`
}

// MetricsConfig reads PUSHGATEWAY_URL.
type MetricsConfig struct {
	PushgatewayURL string `envconfig:"URL" yaml:"pushgateway_url"`
}

// TracingConfig reads OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Endpoint string `envconfig:"ENDPOINT" yaml:"endpoint"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		CorpusPath:            ".",
		CorpusPattern:         DefaultCorpusPattern,
		OverlapThreshold:      DefaultOverlapThreshold,
		AggregationMode:       string(evidenceModel.PerParent),
		CollapseSameOperation: true,
		OperationKey:          string(siblingModel.OperationName),
		WorkerCount:           runtime.NumCPU(),
		AnomalyThreshold:      DefaultAnomalyThreshold,
		AnomalyPercentile:     DefaultAnomalyPercentile,
		IngestCacheSpans:      DefaultIngestCacheSpans,
		Log: LogConfig{
			Level: "info",
		},
		Elasticsearch: ElasticsearchConfig{
			Index: DefaultIndexName,
		},
	}
}

// Load layers the optional YAML file and then the environment over the
// defaults. An empty yamlPath skips the file.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()
	if yamlPath != "" {
		content, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", yamlPath, err)
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Validate rejects values no scan can run with.
func (c *Config) Validate() error {
	if c.CorpusPath == "" {
		return fmt.Errorf("%w: corpus path is empty", ErrInvalidConfig)
	}
	if !doublestar.ValidatePattern(c.CorpusPattern) {
		return fmt.Errorf("%w: corpus pattern %q", ErrInvalidConfig, c.CorpusPattern)
	}
	if math.IsNaN(c.OverlapThreshold) || c.OverlapThreshold < 0 {
		return fmt.Errorf("%w: overlap threshold must be >= 0, got %v", ErrInvalidConfig, c.OverlapThreshold)
	}
	if _, err := c.Modes(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := siblingModel.ParseKeyMode(c.OperationKey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count must be >= 1, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.AnomalyThreshold < 0 || c.AnomalyThreshold > 1 {
		return fmt.Errorf("%w: anomaly threshold must be within [0, 1], got %v", ErrInvalidConfig, c.AnomalyThreshold)
	}
	if c.AnomalyPercentile < 0 || c.AnomalyPercentile > 100 {
		return fmt.Errorf("%w: anomaly percentile must be within [0, 100], got %v", ErrInvalidConfig, c.AnomalyPercentile)
	}
	if c.IngestCacheSpans < 0 {
		return fmt.Errorf("%w: ingest cache size must be >= 0, got %d", ErrInvalidConfig, c.IngestCacheSpans)
	}
	if len(c.Elasticsearch.Addresses) > 0 && c.Elasticsearch.Index == "" {
		return fmt.Errorf("%w: elasticsearch index is empty", ErrInvalidConfig)
	}
	return nil
}

// Modes expands the configured aggregation mode into the scans to run, in order.
func (c *Config) Modes() ([]evidenceModel.AggregationMode, error) {
	if c.AggregationMode == Both {
		return []evidenceModel.AggregationMode{evidenceModel.Global, evidenceModel.PerParent}, nil
	}
	mode, err := evidenceModel.ParseAggregationMode(c.AggregationMode)
	if err != nil {
		return nil, err
	}
	return []evidenceModel.AggregationMode{mode}, nil
}

func (c *Config) KeyMode() siblingModel.KeyMode {
	return siblingModel.KeyMode(c.OperationKey)
}

// ScanOptions builds one option set per configured mode. CollapseSameOperation
// applies to per-parent scans and CollapseGlobal to global ones.
func (c *Config) ScanOptions() ([]dataPipelineModel.ScanOptions, error) {
	modes, err := c.Modes()
	if err != nil {
		return nil, err
	}
	options := make([]dataPipelineModel.ScanOptions, 0, len(modes))
	for _, mode := range modes {
		collapse := c.CollapseSameOperation
		if mode == evidenceModel.Global {
			collapse = c.CollapseGlobal
		}
		options = append(options, dataPipelineModel.ScanOptions{
			Mode:             mode,
			OverlapThreshold: c.OverlapThreshold,
			Collapse:         collapse,
			KeyMode:          c.KeyMode(),
		})
	}
	return options, nil
}
