package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/maraichr/execsearch/internal/search"
	"github.com/maraichr/execsearch/internal/source"
	"github.com/maraichr/execsearch/pkg/models"
)

var testTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fakePage is one scripted page; forceNext attaches a continuation cursor
// even when no further page exists.
type fakePage struct {
	items     []models.ExecutionRecord
	forceNext bool
}

// fakeSource serves scripted pages per partition key and counts fetches.
type fakeSource struct {
	mu      sync.Mutex
	pages   map[string][]fakePage
	fetches map[string]int
	failKey string
}

func newFakeSource() *fakeSource {
	return &fakeSource{pages: make(map[string][]fakePage), fetches: make(map[string]int)}
}

func (s *fakeSource) ListPage(_ context.Context, partitionKey string, cursor *source.Cursor, _ int) (*source.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[partitionKey]++

	if partitionKey == s.failKey {
		return nil, &source.UnavailableError{PartitionKey: partitionKey, Err: errors.New("listing failed")}
	}

	idx := 0
	if cursor != nil {
		idx, _ = strconv.Atoi(string(*cursor))
	}
	pages := s.pages[partitionKey]
	if idx >= len(pages) {
		return &source.Page{}, nil
	}

	page := &source.Page{Items: pages[idx].items}
	if idx+1 < len(pages) || pages[idx].forceNext {
		next := source.Cursor(strconv.Itoa(idx + 1))
		page.Next = &next
	}
	return page, nil
}

// fakeWriter stores documents by ID, mimicking upsert-by-id semantics.
type fakeWriter struct {
	mu           sync.Mutex
	docs         map[string]models.Document
	upserts      int
	failWorkflow string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{docs: make(map[string]models.Document)}
}

func (w *fakeWriter) BulkUpsert(_ context.Context, index string, docs []models.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failWorkflow != "" && len(docs) > 0 && docs[0].WorkflowID == w.failWorkflow {
		return &search.BulkWriteError{Index: index, Items: []search.BulkItemError{
			{DocumentID: docs[0].ID, Status: 429, Reason: "rejected"},
		}}
	}
	for _, doc := range docs {
		w.docs[doc.ID] = doc
	}
	w.upserts++
	return nil
}

type fakeSchema struct {
	err   error
	calls int
}

func (s *fakeSchema) Ensure(context.Context) error {
	s.calls++
	return s.err
}

type fakeMarks struct {
	mu     sync.Mutex
	mark   time.Time
	have   bool
	writes int
}

func (m *fakeMarks) Read(context.Context, string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mark, m.have, nil
}

func (m *fakeMarks) Write(_ context.Context, _ string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mark, m.have = t, true
	m.writes++
	return nil
}

// terminalRecords builds n succeeded records with descending stop times.
func terminalRecords(n int, newest time.Time) []models.ExecutionRecord {
	records := make([]models.ExecutionRecord, n)
	for i := range records {
		stop := newest.Add(-time.Duration(i) * time.Second)
		records[i] = models.ExecutionRecord{
			Name:      fmt.Sprintf("coll__gran%d__%d", i, i),
			Status:    models.StatusSucceeded,
			StartTime: stop.Add(-time.Minute),
			StopTime:  stop,
		}
	}
	return records
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIndexer(src source.PagedSource, writer DocumentWriter, schema Provisioner, marks WatermarkStore, cfg Config) *Indexer {
	if cfg.IndexName == "" {
		cfg.IndexName = "executions"
	}
	if cfg.Stream == "" {
		cfg.Stream = "executions"
	}
	return New(src, writer, schema, marks, cfg, testLogger())
}

func TestSyncPartition_StopOnExhaustion(t *testing.T) {
	src := newFakeSource()
	src.pages["arn:ingest"] = []fakePage{
		{items: terminalRecords(100, testTime)},
		{items: terminalRecords(100, testTime.Add(-time.Hour))},
		{items: terminalRecords(40, testTime.Add(-2*time.Hour))},
	}
	writer := newFakeWriter()
	ix := newTestIndexer(src, writer, &fakeSchema{}, &fakeMarks{}, Config{})

	res := ix.syncPartition(context.Background(), source.Partition{ID: "Ingest", Key: "arn:ingest"}, time.Time{}, false)

	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.Indexed != 240 {
		t.Errorf("Indexed = %d, want 240", res.Indexed)
	}
	if res.State != StateExhausted {
		t.Errorf("State = %s, want exhausted", res.State)
	}
	if src.fetches["arn:ingest"] != 3 {
		t.Errorf("fetches = %d, want 3", src.fetches["arn:ingest"])
	}
}

func TestSyncPartition_OverlapCutoff(t *testing.T) {
	watermark := testTime

	// One record past the cutoff (watermark - 5m), with a continuation
	// cursor still offered. Paging must stop after this page.
	old := models.ExecutionRecord{
		Name:      "coll__gran__old",
		Status:    models.StatusSucceeded,
		StartTime: watermark.Add(-7 * time.Minute),
		StopTime:  watermark.Add(-6 * time.Minute),
	}
	src := newFakeSource()
	src.pages["arn:ingest"] = []fakePage{
		{items: append(terminalRecords(3, watermark.Add(time.Minute)), old), forceNext: true},
	}
	writer := newFakeWriter()
	ix := newTestIndexer(src, writer, &fakeSchema{}, &fakeMarks{}, Config{Overlap: 5 * time.Minute})

	res := ix.syncPartition(context.Background(), source.Partition{ID: "Ingest", Key: "arn:ingest"}, watermark, true)

	if res.State != StateExhausted {
		t.Errorf("State = %s, want exhausted at cutoff", res.State)
	}
	if src.fetches["arn:ingest"] != 1 {
		t.Errorf("fetches = %d, want 1 (no fetch past the cutoff)", src.fetches["arn:ingest"])
	}
	if res.Indexed != 4 {
		t.Errorf("Indexed = %d, want 4 (cutoff page is still written)", res.Indexed)
	}
}

func TestSyncPartition_RunningRecordsFiltered(t *testing.T) {
	running := []models.ExecutionRecord{
		{Name: "coll__gran__a", Status: models.StatusRunning, StartTime: testTime},
		{Name: "coll__gran__b", Status: models.StatusRunning, StartTime: testTime},
	}
	src := newFakeSource()
	src.pages["arn:ingest"] = []fakePage{{items: running, forceNext: true}}
	writer := newFakeWriter()
	ix := newTestIndexer(src, writer, &fakeSchema{}, &fakeMarks{}, Config{})

	res := ix.syncPartition(context.Background(), source.Partition{ID: "Ingest", Key: "arn:ingest"}, time.Time{}, false)

	if res.State != StateExhausted || res.Indexed != 0 {
		t.Errorf("result = %+v, want exhausted with 0 indexed", res)
	}
	if writer.upserts != 0 {
		t.Error("bulk upsert issued for an all-running page")
	}
	if src.fetches["arn:ingest"] != 1 {
		t.Errorf("fetches = %d, want 1 (all-running page ends the loop)", src.fetches["arn:ingest"])
	}
}

func TestSyncPartition_RecordCap(t *testing.T) {
	src := newFakeSource()
	src.pages["arn:ingest"] = []fakePage{
		{items: terminalRecords(100, testTime)},
		{items: terminalRecords(100, testTime.Add(-time.Hour))},
		{items: terminalRecords(100, testTime.Add(-2 * time.Hour))},
	}
	writer := newFakeWriter()
	ix := newTestIndexer(src, writer, &fakeSchema{}, &fakeMarks{}, Config{MaxPerPartition: 150})

	res := ix.syncPartition(context.Background(), source.Partition{ID: "Ingest", Key: "arn:ingest"}, time.Time{}, false)

	if res.State != StateCapped {
		t.Errorf("State = %s, want capped", res.State)
	}
	if res.Indexed != 200 {
		t.Errorf("Indexed = %d, want 200 (cap checked after each page)", res.Indexed)
	}
	if src.fetches["arn:ingest"] != 2 {
		t.Errorf("fetches = %d, want 2", src.fetches["arn:ingest"])
	}
}

func TestRunCycle_AdvancesWatermarkToCycleStart(t *testing.T) {
	src := newFakeSource()
	src.pages["arn:a"] = []fakePage{{items: terminalRecords(5, testTime)}}
	writer := newFakeWriter()
	marks := &fakeMarks{}
	ix := newTestIndexer(src, writer, &fakeSchema{}, marks, Config{})

	before := time.Now().UTC()
	result, err := ix.RunCycle(context.Background(), []source.Partition{{ID: "A", Key: "arn:a"}})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if !result.Advanced {
		t.Fatal("Advanced = false, want true")
	}
	if marks.writes != 1 {
		t.Fatalf("watermark writes = %d, want 1", marks.writes)
	}
	if marks.mark.Before(before) || marks.mark.After(time.Now().UTC()) {
		t.Errorf("watermark = %v, want the cycle start time", marks.mark)
	}
	if got := result.IndexedCounts()["A"]; got != 5 {
		t.Errorf("IndexedCounts[A] = %d, want 5", got)
	}
}

func TestRunCycle_NoAdvanceOnPartialFailure(t *testing.T) {
	src := newFakeSource()
	src.pages["arn:a"] = []fakePage{{items: terminalRecords(3, testTime)}}
	src.pages["arn:b"] = []fakePage{{items: terminalRecords(3, testTime)}}

	writer := newFakeWriter()
	writer.failWorkflow = "B"
	marks := &fakeMarks{mark: testTime.Add(-time.Hour), have: true}
	ix := newTestIndexer(src, writer, &fakeSchema{}, marks, Config{})

	result, err := ix.RunCycle(context.Background(), []source.Partition{
		{ID: "A", Key: "arn:a"},
		{ID: "B", Key: "arn:b"},
	})
	if err != nil {
		t.Fatalf("RunCycle: %v (partition failures must not raise)", err)
	}

	if result.Advanced {
		t.Error("Advanced = true after a partition failure")
	}
	if marks.writes != 0 {
		t.Errorf("watermark writes = %d, want 0", marks.writes)
	}
	if !marks.mark.Equal(testTime.Add(-time.Hour)) {
		t.Errorf("watermark moved to %v", marks.mark)
	}

	// The healthy partition's documents are nevertheless present.
	if got := result.IndexedCounts()["A"]; got != 3 {
		t.Errorf("IndexedCounts[A] = %d, want 3", got)
	}
	if len(writer.docs) != 3 {
		t.Errorf("indexed docs = %d, want 3 from partition A", len(writer.docs))
	}

	failed := result.FailedPartitions()
	if len(failed) != 1 || failed[0].Partition != "B" {
		t.Fatalf("FailedPartitions = %+v, want B", failed)
	}
	var bulkErr *search.BulkWriteError
	if !errors.As(failed[0].Err, &bulkErr) {
		t.Errorf("B err = %v, want *search.BulkWriteError", failed[0].Err)
	}
}

func TestRunCycle_SourceFailureIsolated(t *testing.T) {
	src := newFakeSource()
	src.pages["arn:a"] = []fakePage{{items: terminalRecords(2, testTime)}}
	src.failKey = "arn:b"

	writer := newFakeWriter()
	marks := &fakeMarks{}
	ix := newTestIndexer(src, writer, &fakeSchema{}, marks, Config{})

	result, err := ix.RunCycle(context.Background(), []source.Partition{
		{ID: "A", Key: "arn:a"},
		{ID: "B", Key: "arn:b"},
	})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if result.Advanced || marks.writes != 0 {
		t.Error("watermark advanced despite a source failure")
	}
	if got := result.IndexedCounts()["A"]; got != 2 {
		t.Errorf("IndexedCounts[A] = %d, want 2", got)
	}
	failed := result.FailedPartitions()
	if len(failed) != 1 || failed[0].Partition != "B" {
		t.Fatalf("FailedPartitions = %+v, want B", failed)
	}
	var unavailable *source.UnavailableError
	if !errors.As(failed[0].Err, &unavailable) {
		t.Errorf("B err = %v, want *source.UnavailableError", failed[0].Err)
	}
}

func TestRunCycle_IdempotentReindex(t *testing.T) {
	src := newFakeSource()
	src.pages["arn:a"] = []fakePage{{items: terminalRecords(10, testTime)}}
	writer := newFakeWriter()
	marks := &fakeMarks{}
	ix := newTestIndexer(src, writer, &fakeSchema{}, marks, Config{})

	partitions := []source.Partition{{ID: "A", Key: "arn:a"}}
	if _, err := ix.RunCycle(context.Background(), partitions); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	firstDocs := make(map[string]models.Document, len(writer.docs))
	for id, doc := range writer.docs {
		firstDocs[id] = doc
	}

	if _, err := ix.RunCycle(context.Background(), partitions); err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if len(writer.docs) != 10 {
		t.Errorf("indexed docs = %d, want 10 (no duplicates)", len(writer.docs))
	}
	for id, doc := range writer.docs {
		if firstDocs[id] != doc {
			t.Errorf("doc %s changed across identical cycles", id)
		}
	}
}

func TestRunCycle_MonotonicWatermark(t *testing.T) {
	src := newFakeSource()
	src.pages["arn:a"] = []fakePage{{items: terminalRecords(1, testTime)}}
	writer := newFakeWriter()
	marks := &fakeMarks{}
	ix := newTestIndexer(src, writer, &fakeSchema{}, marks, Config{})

	partitions := []source.Partition{{ID: "A", Key: "arn:a"}}
	var previous time.Time
	for i := 0; i < 3; i++ {
		result, err := ix.RunCycle(context.Background(), partitions)
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if result.Watermark.Before(previous) {
			t.Fatalf("cycle %d watermark %v regressed below %v", i, result.Watermark, previous)
		}
		previous = result.Watermark
	}

	// A stored watermark from the future is never overwritten backwards.
	future := time.Now().UTC().Add(time.Hour)
	marks.mark, marks.have = future, true
	writes := marks.writes
	result, err := ix.RunCycle(context.Background(), partitions)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Advanced || marks.writes != writes {
		t.Error("watermark regressed below a newer stored value")
	}
}

func TestRunCycle_ProvisioningErrorIsFatal(t *testing.T) {
	src := newFakeSource()
	src.pages["arn:a"] = []fakePage{{items: terminalRecords(1, testTime)}}
	schema := &fakeSchema{err: &search.ProvisioningError{Index: "executions", Err: errors.New("rejected")}}
	marks := &fakeMarks{}
	ix := newTestIndexer(src, newFakeWriter(), schema, marks, Config{})

	_, err := ix.RunCycle(context.Background(), []source.Partition{{ID: "A", Key: "arn:a"}})

	var provisioning *search.ProvisioningError
	if !errors.As(err, &provisioning) {
		t.Fatalf("err = %v, want *search.ProvisioningError", err)
	}
	if src.fetches["arn:a"] != 0 {
		t.Error("pages fetched despite provisioning failure")
	}
	if marks.writes != 0 {
		t.Error("watermark written despite provisioning failure")
	}
}
