package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"emcs/internal/arc"
)

const reservedCodeKeyPrefix = "arc:code:"

// Redis reserves codes with SETNX so that concurrent issuers across
// instances cannot both claim the same code. Keys never expire: a code is
// unique among all consignments ever created.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Reserve(ctx context.Context, code arc.Code) (bool, error) {
	ok, err := s.client.SetNX(ctx, reservedCodeKeyPrefix+code.String(), "1", 0).Result()
	if err != nil {
		return false, fmt.Errorf("reserve reference code: %w", err)
	}
	return ok, nil
}

func (s *Redis) Exists(ctx context.Context, code arc.Code) (bool, error) {
	n, err := s.client.Exists(ctx, reservedCodeKeyPrefix+code.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check reference code: %w", err)
	}
	return n > 0, nil
}
