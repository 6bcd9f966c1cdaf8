package client

import (
	"context"
	"errors"

	"github.com/elastic/go-elasticsearch/v8"
)

type RefreshRate string

const (
	// Wait for the changes made by the request to be made visible by a refresh before replying.
	Wait RefreshRate = "wait_for"
	// Immediate Refresh the relevant primary and replica shards (not the whole index) immediately after the operation occurs.
	Immediate RefreshRate = "true"
	// Async Take no refresh related actions. The changes made by this request will be made visible at some point after the request returns.
	Async RefreshRate = "false"
)

type TallyClient interface {
	// BulkIndex indexes (inserts) multiple documents in the same index
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/docs-bulk.html
	BulkIndex(ctx context.Context, metaInfo []MetaMap, documentInfo []DocumentMap, index string) error
	// CreateIndex creates an index with the given settings and mappings. An index that already exists is not an error.
	// https://www.elastic.co/guide/en/elasticsearch/reference/master/indices-create-index.html
	CreateIndex(ctx context.Context, index string, body map[string]interface{}) error
	// Ping succeeds once the cluster answers the info endpoint
	Ping(ctx context.Context) error
}

type TallyClientImpl struct {
	es          *elasticsearch.Client
	refreshRate string
}

func NewTallyClientImpl(es *elasticsearch.Client, refreshRate RefreshRate) *TallyClientImpl {
	return &TallyClientImpl{es: es, refreshRate: string(refreshRate)}
}

var (
	ErrBulkItemsFailed = errors.New("bulk request rejected some documents")
	ErrUnavailable     = errors.New("elasticsearch is unavailable")
)
