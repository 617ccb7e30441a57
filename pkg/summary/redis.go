package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
)

type RedisConfig struct {
	URL       string
	KeyPrefix string        // default "summary:"
	TTL       time.Duration // 0 keeps entries forever
}

// RedisStore keeps summaries in Redis as JSON values under prefix+hash.
type RedisStore struct {
	client *goredis.Client
	config RedisConfig
}

var _ types.SummaryStore = (*RedisStore)(nil)

// NewRedisStore parses config.URL and pings the server.
func NewRedisStore(ctx context.Context, config RedisConfig) (*RedisStore, error) {
	opts, err := goredis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(client, config), nil
}

func NewRedisStoreFromClient(client *goredis.Client, config RedisConfig) *RedisStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "summary:"
	}
	return &RedisStore{client: client, config: config}
}

func (r *RedisStore) key(hash string) string {
	return r.config.KeyPrefix + hash
}

func (r *RedisStore) GetSummary(ctx context.Context, hash string) (*models.SummaryEntry, error) {
	data, err := r.client.Get(ctx, r.key(hash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var entry models.SummaryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = r.client.Del(ctx, r.key(hash)).Err()
		return nil, fmt.Errorf("failed to decode cached summary: %w", err)
	}
	return &entry, nil
}

func (r *RedisStore) PutSummary(ctx context.Context, entry models.SummaryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := r.client.Set(ctx, r.key(entry.Hash), data, r.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
