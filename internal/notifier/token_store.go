package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]map[string]string // userID -> token -> platform
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]map[string]string)}
}

func (m *MemoryTokenStore) Register(_ context.Context, userID string, token DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens[userID] == nil {
		m.tokens[userID] = make(map[string]string)
	}
	m.tokens[userID][token.Token] = token.Platform
	return nil
}

func (m *MemoryTokenStore) Tokens(_ context.Context, userID string) ([]DeviceToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DeviceToken, 0, len(m.tokens[userID]))
	for tok, platform := range m.tokens[userID] {
		out = append(out, DeviceToken{Token: tok, Platform: platform})
	}
	return out, nil
}

func (m *MemoryTokenStore) Remove(_ context.Context, userID string, tokens ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range tokens {
		delete(m.tokens[userID], tok)
	}
	return nil
}

// RedisTokenStore keeps tokens in a hash per user: token -> platform.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func deviceKey(userID string) string {
	return "devices:" + userID
}

func (r *RedisTokenStore) Register(ctx context.Context, userID string, token DeviceToken) error {
	if err := r.client.HSet(ctx, deviceKey(userID), token.Token, token.Platform).Err(); err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}

func (r *RedisTokenStore) Tokens(ctx context.Context, userID string) ([]DeviceToken, error) {
	all, err := r.client.HGetAll(ctx, deviceKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	out := make([]DeviceToken, 0, len(all))
	for tok, platform := range all {
		out = append(out, DeviceToken{Token: tok, Platform: platform})
	}
	return out, nil
}

func (r *RedisTokenStore) Remove(ctx context.Context, userID string, tokens ...string) error {
	if len(tokens) == 0 {
		return nil
	}
	if err := r.client.HDel(ctx, deviceKey(userID), tokens...).Err(); err != nil {
		return fmt.Errorf("failed to remove device tokens: %w", err)
	}
	return nil
}
