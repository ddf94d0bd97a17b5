// Package lease provides time-bounded exclusive claims over submission
// processing, backed by redis so crashed workers release automatically.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrHeld indicates another worker currently holds the lease.
var ErrHeld = errors.New("lease already held")

// releaseScript deletes the lease only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Manager issues per-key leases with a fixed TTL.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewManager constructs a lease manager.
func NewManager(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "lease_manager").Logger(),
	}
}

// Lease is an acquired claim. Release it when processing finishes; the TTL
// reclaims it if the worker dies first.
type Lease struct {
	key     string
	token   string
	manager *Manager
}

// Acquire claims the key, failing with ErrHeld when another worker owns it.
func (m *Manager) Acquire(ctx context.Context, key string) (*Lease, error) {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, leaseKey(key), token, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lease{key: key, token: token, manager: m}, nil
}

// Release frees the lease if this holder still owns it. Releasing an expired
// or stolen lease is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	released, err := releaseScript.Run(ctx, l.manager.client, []string{leaseKey(l.key)}, l.token).Int()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if released == 0 {
		l.manager.logger.Warn().Str("key", l.key).Msg("lease expired before release")
	}
	return nil
}

func leaseKey(key string) string {
	return "lease:submission:" + key
}
