package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/santega-authz/internal/preference"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "santega:active_establishment:"

type PreferenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPreferenceStore stores one key per professional. A zero ttl keeps keys
// forever.
func NewPreferenceStore(client *redis.Client, ttl time.Duration) preference.Store {
	return &PreferenceStore{client: client, ttl: ttl}
}

func Key(professionalID string) string {
	return keyPrefix + professionalID
}

func (s *PreferenceStore) Get(ctx context.Context, professionalID string) (string, bool, error) {
	v, err := s.client.Get(ctx, Key(professionalID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get preference: %w", err)
	}
	return v, true, nil
}

func (s *PreferenceStore) Set(ctx context.Context, professionalID, affiliationID string) error {
	if err := s.client.Set(ctx, Key(professionalID), affiliationID, s.ttl).Err(); err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}
