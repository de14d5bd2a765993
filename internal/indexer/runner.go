package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maraichr/execsearch/internal/lock"
	"github.com/maraichr/execsearch/internal/source"
)

// PartitionLister resolves the partitions a cycle should cover. Implemented
// by the workflow registry store.
type PartitionLister interface {
	Partitions(ctx context.Context) ([]source.Partition, error)
}

// Runner ties the indexer to the lease that keeps cycles single-flight.
type Runner struct {
	indexer  *Indexer
	leases   lock.LeaseStore
	lister   PartitionLister
	leaseKey string
	leaseTTL time.Duration
	logger   *slog.Logger
}

// NewRunner creates a Runner. The lease TTL bounds how long one cycle may
// hold exclusivity.
func NewRunner(ix *Indexer, leases lock.LeaseStore, lister PartitionLister, leaseKey string, leaseTTL time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		indexer:  ix,
		leases:   leases,
		lister:   lister,
		leaseKey: leaseKey,
		leaseTTL: leaseTTL,
		logger:   logger,
	}
}

// RunOnce runs a single sync cycle under the lease, covering the given
// partitions, or every enabled workflow when partitions is empty. Returns
// lock.ErrBusy without running when another cycle holds the lease.
func (r *Runner) RunOnce(ctx context.Context, partitions []source.Partition) (*CycleResult, error) {
	if len(partitions) == 0 {
		var err error
		partitions, err = r.lister.Partitions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list partitions: %w", err)
		}
	}
	if len(partitions) == 0 {
		r.logger.Info("no enabled workflows, skipping cycle")
		return &CycleResult{StartedAt: time.Now().UTC()}, nil
	}

	var result *CycleResult
	err := lock.WithLease(ctx, r.leases, r.leaseKey, r.leaseTTL, func(ctx context.Context) error {
		var runErr error
		result, runErr = r.indexer.RunCycle(ctx, partitions)
		return runErr
	})
	if err != nil {
		return result, err
	}
	return result, nil
}
