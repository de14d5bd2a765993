package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maraichr/execsearch/internal/source"
)

// CycleResult summarizes one sync cycle. Every partition appears with its
// indexed count or failure; no failure path is silent.
type CycleResult struct {
	StartedAt  time.Time         `json:"started_at"`
	Advanced   bool              `json:"advanced"`
	Watermark  time.Time         `json:"watermark"`
	Partitions []PartitionResult `json:"partitions"`
}

// IndexedCounts maps partition IDs to the number of documents indexed.
func (r *CycleResult) IndexedCounts() map[string]int {
	counts := make(map[string]int, len(r.Partitions))
	for _, p := range r.Partitions {
		counts[p.Partition] = p.Indexed
	}
	return counts
}

// FailedPartitions returns the partitions whose paging loop failed.
func (r *CycleResult) FailedPartitions() []PartitionResult {
	var failed []PartitionResult
	for _, p := range r.Partitions {
		if p.Err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

// RunCycle runs one full sync cycle: provision the schema, read the
// watermark, page every partition concurrently, then advance the watermark to
// the cycle's start time. The watermark only advances when every partition
// succeeded, so a failed partition's unindexed records are re-covered next
// cycle.
//
// The start time is captured before any paging begins: a record that becomes
// visible mid-cycle is still inside the next cycle's window. Per-partition
// failures are isolated in the result; only schema provisioning and watermark
// store failures abort the cycle.
func (ix *Indexer) RunCycle(ctx context.Context, partitions []source.Partition) (*CycleResult, error) {
	startedAt := time.Now().UTC()

	if err := ix.schema.Ensure(ctx); err != nil {
		return nil, err
	}

	since, haveMark, err := ix.marks.Read(ctx, ix.cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	result := &CycleResult{
		StartedAt:  startedAt,
		Watermark:  since,
		Partitions: make([]PartitionResult, len(partitions)),
	}

	// Fan out one paging loop per partition. The group never cancels
	// siblings: a failed partition is recorded in its slot, not raised.
	var g errgroup.Group
	for i, p := range partitions {
		g.Go(func() error {
			result.Partitions[i] = ix.syncPartition(ctx, p, since, haveMark)
			return nil
		})
	}
	_ = g.Wait()

	if failed := result.FailedPartitions(); len(failed) > 0 {
		ix.logger.Warn("cycle finished with failed partitions, watermark not advanced",
			slog.Int("failed", len(failed)),
			slog.Int("total", len(partitions)))
		return result, nil
	}

	// Guard against a reclaimed-lease straggler moving the watermark back.
	if haveMark && !startedAt.After(since) {
		return result, nil
	}

	if err := ix.marks.Write(ctx, ix.cfg.Stream, startedAt); err != nil {
		return result, fmt.Errorf("write watermark: %w", err)
	}
	result.Advanced = true
	result.Watermark = startedAt

	ix.logger.Info("cycle completed",
		slog.Time("watermark", startedAt),
		slog.Int("partitions", len(partitions)))
	return result, nil
}
