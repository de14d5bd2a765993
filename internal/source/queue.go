package source

import (
	"context"

	"github.com/maraichr/execsearch/pkg/models"
)

// FetchPage retrieves one page of elements. A nil cursor requests the first
// page; a nil next cursor means the collection is exhausted.
type FetchPage[T any] func(ctx context.Context, cursor *Cursor) (items []T, next *Cursor, err error)

// Queue presents an unbounded, sorted, page-fetched collection as a
// single-consumer queue. Peek returns the head without consuming it; Shift
// drops it. Pages are fetched lazily, one at a time, only when the buffer is
// empty. A fetch failure leaves the queue in a retryable state: the cursor is
// not advanced and the next Peek retries the same page.
//
// Once exhausted the queue stays empty; restart by constructing a new Queue.
type Queue[T any] struct {
	fetch  FetchPage[T]
	buf    []T
	cursor *Cursor
	done   bool
}

// NewQueue creates a queue over the given page fetcher.
func NewQueue[T any](fetch FetchPage[T]) *Queue[T] {
	return &Queue[T]{fetch: fetch}
}

// NewRecordQueue binds one partition of a PagedSource to a record queue.
func NewRecordQueue(src PagedSource, partitionKey string, pageSize int) *Queue[models.ExecutionRecord] {
	return NewQueue(func(ctx context.Context, cursor *Cursor) ([]models.ExecutionRecord, *Cursor, error) {
		page, err := src.ListPage(ctx, partitionKey, cursor, pageSize)
		if err != nil {
			return nil, nil, err
		}
		return page.Items, page.Next, nil
	})
}

// Peek returns the next element without removing it. Repeated calls return
// the same element until Shift is called. Returns ok=false once the source is
// exhausted.
func (q *Queue[T]) Peek(ctx context.Context) (T, bool, error) {
	var zero T
	for len(q.buf) == 0 && !q.done {
		if err := q.fetchNext(ctx); err != nil {
			return zero, false, err
		}
	}
	if len(q.buf) == 0 {
		return zero, false, nil
	}
	return q.buf[0], true, nil
}

// Shift drops the current head. Calling Shift on an empty or unfetched queue
// is a no-op.
func (q *Queue[T]) Shift() {
	if len(q.buf) > 0 {
		q.buf = q.buf[1:]
	}
}

func (q *Queue[T]) fetchNext(ctx context.Context) error {
	items, next, err := q.fetch(ctx, q.cursor)
	if err != nil {
		// Cursor not advanced; the caller may retry via Peek.
		return err
	}
	q.buf = items
	q.cursor = next
	if next == nil {
		q.done = true
	}
	return nil
}
