// Package indexer implements the incremental sync engine that keeps the
// execution search index consistent with the paged execution source.
package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/maraichr/execsearch/internal/source"
	"github.com/maraichr/execsearch/pkg/models"
)

// DocumentWriter bulk-upserts index documents. Implemented by search.Client.
type DocumentWriter interface {
	BulkUpsert(ctx context.Context, index string, docs []models.Document) error
}

// Provisioner guarantees the target indexes exist with their mappings before
// any write. Implemented by search.Schema.
type Provisioner interface {
	Ensure(ctx context.Context) error
}

// WatermarkStore persists the instant through which indexing is complete.
// Implemented by search.WatermarkStore.
type WatermarkStore interface {
	Read(ctx context.Context, stream string) (time.Time, bool, error)
	Write(ctx context.Context, stream string, t time.Time) error
}

// Config bounds one sync stream.
type Config struct {
	IndexName       string
	Stream          string        // watermark stream id
	PageSize        int           // records per source page
	Overlap         time.Duration // safety margin below the watermark
	MaxPerPartition int           // cap against unbounded backfill
}

const (
	defaultPageSize        = 100
	defaultOverlap         = 5 * time.Minute
	defaultMaxPerPartition = 10_000
)

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.Overlap <= 0 {
		c.Overlap = defaultOverlap
	}
	if c.MaxPerPartition <= 0 {
		c.MaxPerPartition = defaultMaxPerPartition
	}
	return c
}

// Indexer pulls terminal execution records from the paged source and upserts
// their documents into the search index, one independent paging stream per
// partition.
type Indexer struct {
	source source.PagedSource
	writer DocumentWriter
	schema Provisioner
	marks  WatermarkStore
	cfg    Config
	logger *slog.Logger
}

// New creates an Indexer. Zero config fields take the documented defaults.
func New(src source.PagedSource, writer DocumentWriter, schema Provisioner, marks WatermarkStore, cfg Config, logger *slog.Logger) *Indexer {
	return &Indexer{
		source: src,
		writer: writer,
		schema: schema,
		marks:  marks,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// PartitionState is the terminal state of one partition's paging loop.
type PartitionState string

const (
	// StatePaging is the in-progress state; never observed in results.
	StatePaging PartitionState = "paging"
	// StateExhausted means the source has no further records to index:
	// no continuation cursor, no terminal records in the page, or the page
	// reached back into the window the previous cycle already covered.
	StateExhausted PartitionState = "exhausted"
	// StateCapped means the per-partition record cap stopped the loop.
	StateCapped PartitionState = "capped"
	// StateFailed means a page fetch or bulk write failed; the partition's
	// remaining records are picked up by a later cycle.
	StateFailed PartitionState = "failed"
)

// PartitionResult reports one partition's contribution to a cycle.
type PartitionResult struct {
	Partition string         `json:"partition"`
	Indexed   int            `json:"indexed"`
	State     PartitionState `json:"state"`
	Err       error          `json:"-"`
}

// syncPartition pages through one partition most-recent-first, bulk-upserting
// terminal records until a stop condition holds. since is the stored
// watermark; haveMark is false on the very first cycle, which backfills up to
// the record cap.
func (ix *Indexer) syncPartition(ctx context.Context, p source.Partition, since time.Time, haveMark bool) PartitionResult {
	res := PartitionResult{Partition: p.ID, State: StatePaging}
	cutoff := since.Add(-ix.cfg.Overlap)

	var cursor *source.Cursor
	for res.State == StatePaging {
		page, err := ix.source.ListPage(ctx, p.Key, cursor, ix.cfg.PageSize)
		if err != nil {
			res.State, res.Err = StateFailed, err
			break
		}

		docs := make([]models.Document, 0, len(page.Items))
		for _, rec := range page.Items {
			if rec.Status.Terminal() {
				docs = append(docs, models.NewDocument(p.ID, rec))
			}
		}

		// No terminal records in this page: the source lists newest first,
		// so later pages hold only older records and none will be new.
		if len(docs) == 0 {
			res.State = StateExhausted
			break
		}

		if err := ix.writer.BulkUpsert(ctx, ix.cfg.IndexName, docs); err != nil {
			res.State, res.Err = StateFailed, err
			ix.logger.Error("bulk write failed",
				slog.String("partition", p.ID),
				slog.Int("batch_size", len(docs)),
				slog.String("error", err.Error()))
			break
		}
		res.Indexed += len(docs)

		switch {
		case res.Indexed >= ix.cfg.MaxPerPartition:
			res.State = StateCapped
		case page.Next == nil:
			res.State = StateExhausted
		case haveMark && reachedCutoff(page.Items, cutoff):
			// The page reached records the previous cycle already covered
			// (minus the overlap window); older pages are redundant.
			res.State = StateExhausted
		default:
			cursor = page.Next
		}
	}

	ix.logger.Info("partition sync finished",
		slog.String("partition", p.ID),
		slog.String("state", string(res.State)),
		slog.Int("indexed", res.Indexed))
	return res
}

// reachedCutoff reports whether any record in the page stopped strictly
// before the resumability cutoff.
func reachedCutoff(items []models.ExecutionRecord, cutoff time.Time) bool {
	for _, rec := range items {
		if !rec.StopTime.IsZero() && rec.StopTime.Before(cutoff) {
			return true
		}
	}
	return false
}
