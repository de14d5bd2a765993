// Package lock provides single-flight execution across processes via
// time-bounded leases.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned by WithLease when another holder's lease is unexpired.
// Callers decide whether to skip or reschedule; WithLease never waits.
var ErrBusy = errors.New("lease held by another holder")

// LeaseStore grants time-bounded exclusive claims on resource keys.
// TryAcquire succeeds only when no unexpired lease exists for the key;
// expired leases may be reclaimed by any caller.
type LeaseStore interface {
	TryAcquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, holder string) error
}

// WithLease runs fn while holding a lease on key, releasing it on every exit
// path. Returns ErrBusy immediately when the lease is taken.
//
// The lease is not renewed while fn runs: a run that outlives ttl may have
// its lease reclaimed by a concurrent caller, so fn must be safe to run
// twice. The sync cycle's idempotent upserts satisfy that.
func WithLease(ctx context.Context, store LeaseStore, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	holder := uuid.New().String()

	acquired, err := store.TryAcquire(ctx, key, holder, ttl)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrBusy
	}
	defer func() {
		// Best-effort: an expired or reclaimed lease makes Release a no-op.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = store.Release(releaseCtx, key, holder)
	}()

	return fn(ctx)
}
