package model

// BulkResponse is the body returned by the _bulk endpoint.
type BulkResponse struct {
	Took   int                   `json:"took"`
	Errors bool                  `json:"errors"`
	Items  []map[string]BulkItem `json:"items"`
}

type BulkItem struct {
	Index  string      `json:"_index"`
	ID     string      `json:"_id"`
	Status int         `json:"status"`
	Error  *ErrorCause `json:"error,omitempty"`
}

// Failures returns the items that were rejected, in request order.
func (b BulkResponse) Failures() []BulkItem {
	var failed []BulkItem
	for _, item := range b.Items {
		for _, result := range item {
			if result.Error != nil {
				failed = append(failed, result)
			}
		}
	}
	return failed
}
