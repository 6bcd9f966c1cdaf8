//go:build integration

package elasticsearch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
)

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// searchMeasurement returns the stored documents of one measurement ordered by timestamp.
func searchMeasurement(es *elasticsearch.Client, index, measurement string) ([]map[string]interface{}, error) {
	query := map[string]interface{}{
		"size": 100,
		"sort": []interface{}{map[string]interface{}{"@timestamp": "asc"}},
		"query": map[string]interface{}{
			"term": map[string]interface{}{"measurement": measurement},
		},
	}
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	res, err := es.Search(es.Search.WithIndex(index), es.Search.WithBody(bytes.NewReader(queryJSON)))
	if err != nil {
		return nil, fmt.Errorf("failed to search index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("failed to search index %s: %s", index, res.String())
	}
	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	docs := make([]map[string]interface{}, len(parsed.Hits.Hits))
	for i, hit := range parsed.Hits.Hits {
		docs[i] = hit.Source
	}
	return docs, nil
}

func deleteIndex(es *elasticsearch.Client, index string) error {
	res, err := es.Indices.Delete([]string{index}, es.Indices.Delete.WithIgnoreUnavailable(true))
	if err != nil {
		return fmt.Errorf("failed to delete index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to delete index %s: %s", index, res.String())
	}
	return nil
}
