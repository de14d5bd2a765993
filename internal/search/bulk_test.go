package search

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/maraichr/execsearch/pkg/models"
)

func TestBulkUpsert_EmptyBatchIsNoOp(t *testing.T) {
	rt := newScriptedTransport()
	c := testClient(t, rt)

	if err := c.BulkUpsert(context.Background(), "executions", nil); err != nil {
		t.Fatalf("BulkUpsert(nil): %v", err)
	}
	if len(rt.requests) != 0 {
		t.Errorf("requests = %v, want none", rt.requests)
	}
}

func TestBulkUpsert_BuildsIndexActions(t *testing.T) {
	rt := newScriptedTransport()
	rt.on(http.MethodPost, "/_bulk", 200, `{"errors":false,"items":[]}`)
	c := testClient(t, rt)

	docs := []models.Document{
		{ID: "coll__gran__1", WorkflowID: "Ingest", Success: true},
		{ID: "coll__gran__2", WorkflowID: "Ingest"},
	}
	if err := c.BulkUpsert(context.Background(), "executions", docs); err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}

	body := rt.bodies["POST /_bulk"]
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 4 {
		t.Fatalf("bulk body has %d lines, want 4 (action+doc per document)", len(lines))
	}
	if !strings.Contains(lines[0], `"_id":"coll__gran__1"`) || !strings.Contains(lines[0], `"_index":"executions"`) {
		t.Errorf("first action line = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"workflowId":"Ingest"`) {
		t.Errorf("first document line = %s", lines[1])
	}
}

func TestBulkUpsert_ReportsItemFailures(t *testing.T) {
	rt := newScriptedTransport()
	rt.on(http.MethodPost, "/_bulk", 200, `{
		"errors": true,
		"items": [
			{"index": {"_id": "coll__gran__1", "status": 200}},
			{"index": {"_id": "coll__gran__2", "status": 429,
				"error": {"type": "es_rejected_execution_exception", "reason": "queue full"}}}
		]
	}`)
	c := testClient(t, rt)

	err := c.BulkUpsert(context.Background(), "executions", []models.Document{
		{ID: "coll__gran__1"}, {ID: "coll__gran__2"},
	})

	var bulkErr *BulkWriteError
	if !errors.As(err, &bulkErr) {
		t.Fatalf("err = %v, want *BulkWriteError", err)
	}
	if len(bulkErr.Items) != 1 {
		t.Fatalf("failed items = %d, want 1", len(bulkErr.Items))
	}
	item := bulkErr.Items[0]
	if item.DocumentID != "coll__gran__2" || item.Status != 429 || item.Reason != "queue full" {
		t.Errorf("item = %+v", item)
	}
	if !strings.Contains(err.Error(), "coll__gran__2") {
		t.Errorf("err = %v, want failed document id in message", err)
	}
}

func TestBulkUpsert_RequestLevelError(t *testing.T) {
	rt := newScriptedTransport()
	rt.on(http.MethodPost, "/_bulk", 503, `{"error":{"type":"unavailable","reason":"shutting down"}}`)
	c := testClient(t, rt)

	err := c.BulkUpsert(context.Background(), "executions", []models.Document{{ID: "a"}})
	if err == nil {
		t.Fatal("BulkUpsert: want error on 503")
	}
	var bulkErr *BulkWriteError
	if errors.As(err, &bulkErr) {
		t.Fatal("request-level failures are not item failures")
	}
}
