package client

import (
	"context"

	"github.com/elastic/go-elasticsearch/v8"
)

type RefreshRate string

// Wait for the changes made by the request to be made visible by a refresh before replying.
const Wait RefreshRate = "wait_for"

type SibylClient interface {
	// BulkIndex indexes (inserts) multiple documents in the same index
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-bulk.html
	BulkIndex(ctx context.Context, metaInfo []MetaMap, documentInfo []DocumentMap, index string) error
}

type SibylClientImpl struct {
	es          *elasticsearch.Client
	refreshRate string
}

func NewSibylClientImpl(es *elasticsearch.Client, refreshRate RefreshRate) *SibylClientImpl {
	return &SibylClientImpl{es: es, refreshRate: string(refreshRate)}
}
