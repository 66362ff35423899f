package bootstrapper

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Avi18971911/Sibyl/internal/db/elasticsearch/model"
	"github.com/bytedance/sonic"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
)

const retries = 30
const waitTime = 5

const alreadyExistsType = "resource_already_exists_exception"

type Bootstrapper struct {
	esClient   *elasticsearch.Client
	maxRetries int
	delay      time.Duration
	logger     *zap.Logger
}

func NewBootstrapper(esClient *elasticsearch.Client, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		esClient:   esClient,
		maxRetries: retries,
		delay:      waitTime * time.Second,
		logger:     logger,
	}
}

// BootstrapElasticsearch waits for the cluster and creates the classification
// index. An index that already exists is left as it is.
func (bs *Bootstrapper) BootstrapElasticsearch(ctx context.Context, indexName string) error {
	if err := bs.waitForElasticsearch(ctx); err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	if err := bs.createIndex(ctx, indexName, classificationIndex); err != nil {
		return fmt.Errorf("error creating classification index: %w", err)
	}

	return nil
}

func (bs *Bootstrapper) waitForElasticsearch(ctx context.Context) error {
	for i := 0; i < bs.maxRetries; i++ {
		res, err := bs.esClient.Info(bs.esClient.Info.WithContext(ctx))
		if err == nil {
			res.Body.Close()
			if res.StatusCode == 200 {
				bs.logger.Info("Elasticsearch is available")
				return nil
			}
		}
		bs.logger.Warn(fmt.Sprintf("Elasticsearch not available (attempt %d/%d), retrying...", i+1, bs.maxRetries))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bs.delay):
		}
	}

	return fmt.Errorf("Elasticsearch is not available after %d attempts", bs.maxRetries)
}

func (bs *Bootstrapper) createIndex(ctx context.Context, indexName string, index map[string]interface{}) error {
	body, err := sonic.MarshalString(index)
	if err != nil {
		return fmt.Errorf("error marshaling index input during bootstrap: %w", err)
	}

	res, err := bs.esClient.Indices.Create(
		indexName,
		bs.esClient.Indices.Create.WithBody(strings.NewReader(body)),
		bs.esClient.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error creating index during bootstrap %s: %w", indexName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		responseBody, readErr := io.ReadAll(res.Body)
		if readErr == nil && isAlreadyExists(responseBody) {
			bs.logger.Info("Index already exists", zap.String("index_name", indexName))
			return nil
		}
		return fmt.Errorf("error response for index %s: %s %s", indexName, res.Status(), string(responseBody))
	}

	bs.logger.Info("Successfully created index", zap.String("index_name", indexName))
	return nil
}

func isAlreadyExists(body []byte) bool {
	var response model.ErrorResponse
	if err := sonic.Unmarshal(body, &response); err != nil {
		return false
	}
	return response.Error.Type == alreadyExistsType
}
