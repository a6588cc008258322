package state

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"hll/contentbot/internal/domain"
)

// StateManager tracks which catalog version each persistent browser message
// last rendered. After a restart or an explicit refresh, only entry points
// whose recorded version differs from the loaded catalog get re-edited.
type StateManager interface {
	GetRenderedVersion(ctx context.Context, channelID string, catalog domain.CatalogKind) (string, error)
	SetRenderedVersion(ctx context.Context, channelID string, catalog domain.CatalogKind, version string) error
	ClearRenderedVersion(ctx context.Context, channelID string, catalog domain.CatalogKind) error
}

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   "browser:rendered:",
	}
}

func (s *redisStateManager) key(channelID string, catalog domain.CatalogKind) string {
	return s.keyPrefix + channelID + ":" + catalog.String()
}

func (s *redisStateManager) GetRenderedVersion(ctx context.Context, channelID string, catalog domain.CatalogKind) (string, error) {
	val, err := s.redisClient.Get(ctx, s.key(channelID, catalog)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Never rendered, or state lost; caller refreshes
		}
		return "", fmt.Errorf("failed to get rendered version for %s/%s: %w", channelID, catalog, err)
	}
	return val, nil
}

func (s *redisStateManager) SetRenderedVersion(ctx context.Context, channelID string, catalog domain.CatalogKind, version string) error {
	err := s.redisClient.Set(ctx, s.key(channelID, catalog), version, 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to set rendered version for %s/%s: %w", channelID, catalog, err)
	}
	return nil
}

func (s *redisStateManager) ClearRenderedVersion(ctx context.Context, channelID string, catalog domain.CatalogKind) error {
	err := s.redisClient.Del(ctx, s.key(channelID, catalog)).Err()
	if err != nil {
		return fmt.Errorf("failed to clear rendered version for %s/%s: %w", channelID, catalog, err)
	}
	return nil
}
