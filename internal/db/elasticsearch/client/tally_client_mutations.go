package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Avi18971911/Tally/internal/db/elasticsearch/model"
)

func (a *TallyClientImpl) BulkIndex(
	ctx context.Context,
	metaInfo []MetaMap,
	documentInfo []DocumentMap,
	index string,
) error {
	var buf bytes.Buffer
	for i, d := range documentInfo {
		var meta MetaMap
		if metaInfo != nil && i < len(metaInfo) {
			meta = metaInfo[i]
		} else {
			// empty meta for bulk index
			meta = MetaMap{"index": map[string]interface{}{}}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		dataJSON, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("error marshaling data to bulk index: %w", err)
		}
		buf.Write(dataJSON)
		buf.WriteByte('\n')
	}

	res, err := a.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		a.es.Bulk.WithIndex(index),
		a.es.Bulk.WithContext(ctx),
		a.es.Bulk.WithRefresh(a.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var bulkResponse model.BulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return fmt.Errorf("error decoding bulk index response: %w", err)
	}
	if failures := bulkResponse.Failures(); len(failures) > 0 {
		first := failures[0]
		return fmt.Errorf(
			"%w: %d of %d, first: %s: %s",
			ErrBulkItemsFailed,
			len(failures),
			len(documentInfo),
			first.Error.Type,
			first.Error.Reason,
		)
	}
	return nil
}

func (a *TallyClientImpl) CreateIndex(ctx context.Context, index string, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling index %s: %w", index, err)
	}

	res, err := a.es.Indices.Create(
		index,
		a.es.Indices.Create.WithBody(bytes.NewReader(payload)),
		a.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error creating index %s: %w", index, err)
	}
	defer res.Body.Close()
	if !res.IsError() {
		return nil
	}

	var errorResponse model.ErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&errorResponse); err == nil &&
		errorResponse.Error.Type == model.ResourceAlreadyExists {
		return nil
	}
	return fmt.Errorf("error response for index %s: %s", index, res.Status())
}

func (a *TallyClientImpl) Ping(ctx context.Context) error {
	res, err := a.es.Info(a.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrUnavailable, res.Status())
	}
	return nil
}
