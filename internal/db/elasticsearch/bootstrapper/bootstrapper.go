package bootstrapper

import (
	"context"
	"fmt"
	"time"

	"github.com/Avi18971911/Tally/internal/db/elasticsearch/client"
	"go.uber.org/zap"
)

const retries = 30
const waitTime = 5

type Bootstrapper struct {
	client client.TallyClient
	logger *zap.Logger
}

func NewBootstrapper(client client.TallyClient, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		client: client,
		logger: logger,
	}
}

// BootstrapElasticsearch blocks until the cluster answers.
func (bs *Bootstrapper) BootstrapElasticsearch(ctx context.Context) error {
	if err := bs.waitForElasticsearch(ctx, retries, waitTime*time.Second); err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	return nil
}

// CreatePointIndex creates the index holding one application's points.
func (bs *Bootstrapper) CreatePointIndex(ctx context.Context, indexName string) error {
	if err := bs.client.CreateIndex(ctx, indexName, pointIndex); err != nil {
		return fmt.Errorf("error creating point index during bootstrap: %w", err)
	}
	bs.logger.Info("Successfully created index", zap.String("index_name", indexName))
	return nil
}

func (bs *Bootstrapper) waitForElasticsearch(ctx context.Context, maxRetries int, delay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		err := bs.client.Ping(ctx)
		if err == nil {
			bs.logger.Info("Elasticsearch is available")
			return nil
		}
		bs.logger.Warn(
			fmt.Sprintf("Elasticsearch not available (attempt %d/%d), retrying...", i+1, maxRetries),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("Elasticsearch is not available after %d attempts", maxRetries)
}
