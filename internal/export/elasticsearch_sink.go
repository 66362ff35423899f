package export

import (
	"context"
	"fmt"
	"time"

	"github.com/Avi18971911/Sibyl/internal/db/write_buffer"
	classifyModel "github.com/Avi18971911/Sibyl/internal/pipeline/classify/model"
	"github.com/Avi18971911/Sibyl/internal/pipeline/data_pipeline/model"
	evidenceModel "github.com/Avi18971911/Sibyl/internal/pipeline/evidence/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var documentNamespace = uuid.MustParse("6f1c52a4-3c1e-4f7a-9a57-1b8e0d2f4c61")

// ClassificationDocument is one record as stored in Elasticsearch.
type ClassificationDocument struct {
	ID               string                         `json:"_id"`
	RunID            string                         `json:"run_id"`
	Mode             evidenceModel.AggregationMode  `json:"mode"`
	ParentID         string                         `json:"parent_id,omitempty"`
	OpA              string                         `json:"op_a"`
	OpB              string                         `json:"op_b"`
	Type             classifyModel.RelationshipType `json:"type"`
	Confidence       float64                        `json:"confidence"`
	Samples          int                            `json:"samples"`
	Distribution     map[evidenceModel.Label]int    `json:"distribution"`
	Order            evidenceModel.Label            `json:"order,omitempty"`
	Orderings        []evidenceModel.Label          `json:"orderings,omitempty"`
	OverlapThreshold float64                        `json:"overlap_threshold"`
	IndexedAt        time.Time                      `json:"indexed_at"`
}

// DocumentID is stable across runs so that re-indexing a scan overwrites the
// previous documents of the same mode and key.
func DocumentID(mode evidenceModel.AggregationMode, key evidenceModel.RelationshipKey) string {
	name := string(mode) + "\x00" + key.ParentID + "\x00" + key.OpA + "\x00" + key.OpB
	return uuid.NewSHA1(documentNamespace, []byte(name)).String()
}

type ElasticsearchSink struct {
	buffer write_buffer.DatabaseWriteBuffer[ClassificationDocument]
	now    func() time.Time
	logger *zap.Logger
}

func NewElasticsearchSink(
	buffer write_buffer.DatabaseWriteBuffer[ClassificationDocument],
	logger *zap.Logger,
) *ElasticsearchSink {
	return &ElasticsearchSink{
		buffer: buffer,
		now:    time.Now,
		logger: logger,
	}
}

func (es *ElasticsearchSink) Export(ctx context.Context, report model.ScanReport) error {
	indexedAt := es.now().UTC()
	documents := make([]ClassificationDocument, 0, len(report.Records))
	for _, entry := range report.Records {
		documents = append(documents, ClassificationDocument{
			ID:               DocumentID(report.Mode, entry.Key),
			RunID:            report.RunID,
			Mode:             report.Mode,
			ParentID:         entry.Key.ParentID,
			OpA:              entry.Key.OpA,
			OpB:              entry.Key.OpB,
			Type:             entry.Record.Type,
			Confidence:       entry.Record.Confidence,
			Samples:          entry.Record.Samples,
			Distribution:     entry.Record.Distribution,
			Order:            entry.Record.Order,
			Orderings:        entry.Record.Orderings,
			OverlapThreshold: report.OverlapThreshold,
			IndexedAt:        indexedAt,
		})
	}

	if err := es.buffer.WriteToBuffer(ctx, documents); err != nil {
		return fmt.Errorf("failed to index classification records: %w", err)
	}
	if err := es.buffer.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush classification records: %w", err)
	}
	es.logger.Info(
		"Indexed classification records",
		zap.String("mode", string(report.Mode)),
		zap.Int("documents", len(documents)),
	)
	return nil
}
