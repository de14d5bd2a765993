package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// WatermarkStore persists the instant through which indexing is known
// complete, one document per sync stream. It is read once at the start of a
// cycle and written once at the end; last write wins. There is no
// transactional coupling to the document writes; the overlap threshold
// absorbs the race between "records indexed" and "watermark persisted".
type WatermarkStore struct {
	client *Client
	index  string
}

// NewWatermarkStore creates a store over the given watermark index.
func NewWatermarkStore(client *Client, index string) *WatermarkStore {
	return &WatermarkStore{client: client, index: index}
}

type watermarkDoc struct {
	LastIndexedDate int64 `json:"lastIndexedDate"`
	UpdatedAt       int64 `json:"updatedAt"`
}

// Read returns the watermark for a stream. ok is false when no watermark has
// been written yet.
func (s *WatermarkStore) Read(ctx context.Context, stream string) (time.Time, bool, error) {
	res, err := s.client.es.Get(s.index, stream, s.client.es.Get.WithContext(ctx))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get watermark %s: %w", stream, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return time.Time{}, false, nil
	}
	if res.IsError() {
		return time.Time{}, false, fmt.Errorf("get watermark %s: %s", stream, responseReason(res.Body, res.StatusCode))
	}

	var payload struct {
		Source watermarkDoc `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return time.Time{}, false, fmt.Errorf("decode watermark %s: %w", stream, err)
	}
	return time.UnixMilli(payload.Source.LastIndexedDate).UTC(), true, nil
}

// Write persists the watermark for a stream.
func (s *WatermarkStore) Write(ctx context.Context, stream string, t time.Time) error {
	doc := watermarkDoc{
		LastIndexedDate: t.UnixMilli(),
		UpdatedAt:       time.Now().UnixMilli(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal watermark: %w", err)
	}

	res, err := s.client.es.Index(s.index, bytes.NewReader(data),
		s.client.es.Index.WithDocumentID(stream),
		s.client.es.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("write watermark %s: %w", stream, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("write watermark %s: %s", stream, responseReason(res.Body, res.StatusCode))
	}
	return nil
}
