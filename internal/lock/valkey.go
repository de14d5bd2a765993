package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// releaseScript deletes the lease key only when it still belongs to the
// releasing holder, so a reclaimed lease is never torn down by the previous
// owner.
var releaseScript = valkey.NewLuaScript(
	`if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`)

// ValkeyLeaseStore implements LeaseStore with SET NX PX on a single key.
type ValkeyLeaseStore struct {
	client valkey.Client
}

// NewValkeyLeaseStore creates a lease store over the given Valkey client.
func NewValkeyLeaseStore(client valkey.Client) *ValkeyLeaseStore {
	return &ValkeyLeaseStore{client: client}
}

// TryAcquire atomically claims key for holder unless an unexpired lease
// exists. Expiry is enforced by the key TTL.
func (s *ValkeyLeaseStore) TryAcquire(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	resp := s.client.Do(ctx, s.client.B().Set().
		Key(key).Value(holder).Nx().Px(ttl).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			// SET NX returns nil when the key already exists.
			return false, nil
		}
		return false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	return true, nil
}

// Release drops the lease if holder still owns it.
func (s *ValkeyLeaseStore) Release(ctx context.Context, key, holder string) error {
	resp := releaseScript.Exec(ctx, s.client, []string{key}, []string{holder})
	if err := resp.Error(); err != nil {
		return fmt.Errorf("release lease %s: %w", key, err)
	}
	return nil
}
