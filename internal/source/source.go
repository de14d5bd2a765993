// Package source defines the paged-source contract over remote execution
// backends and the lazy paged queue built on top of it.
package source

import (
	"context"
	"fmt"

	"github.com/maraichr/execsearch/pkg/models"
)

// Cursor is an opaque continuation token issued by a paged backend. Consumers
// pass it back unmodified and must never parse or construct one.
type Cursor string

// Page is one page of execution records plus the continuation cursor. A nil
// Next means the backend has no more pages.
type Page struct {
	Items []models.ExecutionRecord
	Next  *Cursor
}

// Partition identifies one independently paged stream of records: a named
// workflow and the backend-specific key used to list its executions.
type Partition struct {
	ID  string // workflow name, carried into index documents and logs
	Key string // backend listing key, e.g. a state machine ARN
}

// PagedSource lists execution records for a partition, most-recent-first by
// stop time, in pages bounded by pageSize.
type PagedSource interface {
	ListPage(ctx context.Context, partitionKey string, cursor *Cursor, pageSize int) (*Page, error)
}

// UnavailableError reports a failed paging call. The failure is retryable by
// a later sync cycle; it is not retried within the cycle that observed it.
type UnavailableError struct {
	PartitionKey string
	Err          error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source unavailable for partition %s: %v", e.PartitionKey, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
