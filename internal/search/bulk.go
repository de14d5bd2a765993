package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maraichr/execsearch/pkg/models"
)

// BulkItemError is one rejected document from a bulk response.
type BulkItemError struct {
	DocumentID string
	Status     int
	Reason     string
}

// BulkWriteError reports write failures inside a bulk response. Any failed
// item fails the whole batch: the indexer never treats a partially applied
// page as success.
type BulkWriteError struct {
	Index string
	Items []BulkItemError
}

func (e *BulkWriteError) Error() string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.DocumentID)
	}
	return fmt.Sprintf("bulk write to %s failed for %d document(s): %s",
		e.Index, len(e.Items), strings.Join(ids, ", "))
}

// BulkUpsert writes documents to the index in one bulk request, keyed by
// document ID. Re-upserting an unchanged document is a no-op for readers;
// last write wins.
func (c *Client) BulkUpsert(ctx context.Context, index string, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{
			"index": map[string]any{"_index": index, "_id": doc.ID},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	res, err := c.es.Bulk(bytes.NewReader(buf.Bytes()), c.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request: %s", responseReason(res.Body, res.StatusCode))
	}

	var resp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !resp.Errors {
		return nil
	}

	failure := &BulkWriteError{Index: index}
	for _, item := range resp.Items {
		for _, result := range item {
			if result.Error.Reason == "" && result.Status < 300 {
				continue
			}
			failure.Items = append(failure.Items, BulkItemError{
				DocumentID: result.ID,
				Status:     result.Status,
				Reason:     result.Error.Reason,
			})
		}
	}
	return failure
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}
