package service

import (
	"context"

	"github.com/avelio/skillforge-api/internal/lease"
)

type redisLeaser struct {
	manager *lease.Manager
}

// NewRedisLeaser adapts the Redis lease manager to the orchestrator's
// Leaser contract.
func NewRedisLeaser(manager *lease.Manager) Leaser {
	return redisLeaser{manager: manager}
}

func (l redisLeaser) Acquire(ctx context.Context, key string) (Lease, error) {
	claim, err := l.manager.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	return claim, nil
}
