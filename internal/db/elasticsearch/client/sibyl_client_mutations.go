package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Avi18971911/Sibyl/internal/db/elasticsearch/model"
	"github.com/bytedance/sonic"
)

const maxReportedFailures = 3

func (s *SibylClientImpl) BulkIndex(
	ctx context.Context,
	metaInfo []MetaMap,
	documentInfo []DocumentMap,
	index string,
) error {
	if len(documentInfo) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for i, document := range documentInfo {
		var meta MetaMap
		if i < len(metaInfo) && metaInfo[i] != nil {
			meta = metaInfo[i]
		} else {
			// empty meta for bulk index
			meta = MetaMap{"index": map[string]interface{}{}}
		}
		metaJSON, err := sonic.Marshal(meta)
		if err != nil {
			return fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		documentJSON, err := sonic.Marshal(document)
		if err != nil {
			return fmt.Errorf("error marshaling data to bulk index: %w", err)
		}
		buf.Write(documentJSON)
		buf.WriteByte('\n')
	}

	res, err := s.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.es.Bulk.WithIndex(index),
		s.es.Bulk.WithContext(ctx),
		s.es.Bulk.WithRefresh(s.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("error reading bulk index response: %w", err)
	}
	return bulkItemErrors(body)
}

func bulkItemErrors(body []byte) error {
	var response model.BulkResponse
	if err := sonic.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("error unmarshaling bulk index response: %w", err)
	}
	if !response.Errors {
		return nil
	}

	failed := 0
	var reasons []string
	for _, item := range response.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			failed++
			if len(reasons) < maxReportedFailures {
				reasons = append(reasons, fmt.Sprintf("%s: %s (%s)", result.ID, result.Error.Reason, result.Error.Type))
			}
		}
	}
	return fmt.Errorf("bulk index failed for %d of %d documents: %s", failed, len(response.Items), strings.Join(reasons, "; "))
}
