package write_buffer

import (
	"context"
	"errors"
	"testing"

	sibylElasticsearch "github.com/Avi18971911/Sibyl/internal/db/elasticsearch/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingClient struct {
	batches [][]sibylElasticsearch.DocumentMap
	metas   [][]sibylElasticsearch.MetaMap
	index   string
	err     error
}

func (rc *recordingClient) BulkIndex(
	_ context.Context,
	metaInfo []sibylElasticsearch.MetaMap,
	documentInfo []sibylElasticsearch.DocumentMap,
	index string,
) error {
	rc.batches = append(rc.batches, documentInfo)
	rc.metas = append(rc.metas, metaInfo)
	rc.index = index
	return rc.err
}

type doc struct {
	ID  string `json:"_id"`
	OpA string `json:"op_a"`
}

func TestDatabaseWriteBuffer(t *testing.T) {
	ctx := context.Background()

	t.Run("should hold values until the queue is full", func(t *testing.T) {
		rc := &recordingClient{}
		buffer := NewDatabaseWriteBufferImpl[doc](rc, "idx", 3, zap.NewNop())

		require.NoError(t, buffer.WriteToBuffer(ctx, []doc{{ID: "1"}, {ID: "2"}}))
		assert.Empty(t, rc.batches)

		require.NoError(t, buffer.WriteToBuffer(ctx, []doc{{ID: "3"}, {ID: "4"}}))
		require.Len(t, rc.batches, 1)
		assert.Len(t, rc.batches[0], 4)
		assert.Equal(t, "idx", rc.index)
	})

	t.Run("should write the remainder on flush", func(t *testing.T) {
		rc := &recordingClient{}
		buffer := NewDatabaseWriteBufferImpl[doc](rc, "idx", 10, zap.NewNop())

		require.NoError(t, buffer.WriteToBuffer(ctx, []doc{{ID: "1", OpA: "A"}}))
		require.NoError(t, buffer.Flush(ctx))
		require.Len(t, rc.batches, 1)
		assert.Equal(t, sibylElasticsearch.DocumentMap{"op_a": "A"}, rc.batches[0][0])
		assert.Equal(t, sibylElasticsearch.MetaMap{"index": map[string]interface{}{"_id": "1"}}, rc.metas[0][0])

		require.NoError(t, buffer.Flush(ctx))
		assert.Len(t, rc.batches, 1)
	})

	t.Run("should surface bulk failures", func(t *testing.T) {
		rc := &recordingClient{err: errors.New("cluster red")}
		buffer := NewDatabaseWriteBufferImpl[doc](rc, "idx", 1, zap.NewNop())
		assert.Error(t, buffer.WriteToBuffer(ctx, []doc{{ID: "1"}}))
	})
}
