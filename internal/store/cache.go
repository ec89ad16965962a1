package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/monistake/monistake-backend/internal/metrics"
	"github.com/monistake/monistake-backend/pkg/kv"
	memkv "github.com/monistake/monistake-backend/pkg/kv/memory"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache struct {
	// When Redis is available, use client for all operations
	client *redis.Client
	// When Redis is unavailable, fall back to an in-memory kv.Store
	kvStore kv.Store
	// In-memory pubsub hub for when Redis is unavailable
	pubsubHub *PubSubHub

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewCache connects to Redis at addr. An empty addr, or a Redis that does not
// answer a ping, yields an in-memory cache instead.
func NewCache(addr string, logger *zap.SugaredLogger, metrics *metrics.Metrics) (*Cache, error) {
	if addr == "" {
		return NewMemoryCache(logger, metrics), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if logger != nil {
			logger.Warnw("Redis unavailable; using in-memory cache with in-process pubsub", "addr", addr, "error", err)
		}
		return NewMemoryCache(logger, metrics), nil
	}

	return &Cache{
		client:  client,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// NewMemoryCache skips Redis entirely; used by the CLI and tests.
func NewMemoryCache(logger *zap.SugaredLogger, metrics *metrics.Metrics) *Cache {
	return &Cache{
		kvStore:   memkv.NewStore(),
		pubsubHub: NewPubSubHub(),
		logger:    logger,
		metrics:   metrics,
	}
}

// Cache keys and pubsub channels
const (
	KeyPoolSnapshot = "ms:snapshot:pool"
	KeyUserSnapshot = "ms:snapshot:user"
	KeyWriteRecord  = "ms:write"

	ChannelUpdates = "ms:updates"
)

// Live update topics carried on ChannelUpdates
const (
	TopicPool = "pool"
	TopicUser = "user"
	TopicTx   = "tx"
)

// Update is the envelope published on ChannelUpdates. Topic is "pool",
// "user:<address>" or "tx:<address>".
type Update struct {
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// UserTopic scopes a topic to a wallet address.
func UserTopic(kind, address string) string {
	return kind + ":" + strings.ToLower(address)
}

func userSnapshotKey(address string) string {
	return fmt.Sprintf("%s:%s", KeyUserSnapshot, strings.ToLower(address))
}

func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	// Redis mode
	if c.client != nil {
		val, err := c.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if c.metrics != nil {
					c.metrics.RecordCacheMiss(ctx, key)
				}
				return ErrCacheMiss
			}
			if c.logger != nil {
				c.logger.Errorw("Cache get error", "key", key, "error", err)
			}
			return fmt.Errorf("cache get error: %w", err)
		}
		if c.metrics != nil {
			c.metrics.RecordCacheHit(ctx, key)
		}
		if err := json.Unmarshal([]byte(val), dest); err != nil {
			return fmt.Errorf("cache unmarshal error: %w", err)
		}
		return nil
	}

	// In-memory mode via kv.Store
	data, err := c.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			if c.metrics != nil {
				c.metrics.RecordCacheMiss(ctx, key)
			}
			return ErrCacheMiss
		}
		return fmt.Errorf("cache get error: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordCacheHit(ctx, key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if c.client != nil {
		if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Cache set error", "key", key, "error", err)
			}
			return fmt.Errorf("cache set error: %w", err)
		}
		return nil
	}
	if err := c.kvStore.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Snapshot cache methods. An empty address selects the pool-only snapshot.
func (c *Cache) GetSnapshot(ctx context.Context, address string, dest interface{}) error {
	if address == "" {
		return c.Get(ctx, KeyPoolSnapshot, dest)
	}
	return c.Get(ctx, userSnapshotKey(address), dest)
}

func (c *Cache) SetSnapshot(ctx context.Context, address string, value interface{}, ttl time.Duration) error {
	if address == "" {
		return c.Set(ctx, KeyPoolSnapshot, value, ttl)
	}
	return c.Set(ctx, userSnapshotKey(address), value, ttl)
}

func (c *Cache) GetWriteRecord(ctx context.Context, id string, dest interface{}) error {
	return c.Get(ctx, fmt.Sprintf("%s:%s", KeyWriteRecord, id), dest)
}

func (c *Cache) SetWriteRecord(ctx context.Context, id string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, fmt.Sprintf("%s:%s", KeyWriteRecord, id), value, ttl)
}

// Pub/Sub methods for real-time updates
func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}

	if c.client != nil {
		if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Publish error", "channel", channel, "error", err)
			}
			return fmt.Errorf("pubsub publish error: %w", err)
		}
		return nil
	}

	if c.pubsubHub != nil {
		c.pubsubHub.Publish(channel, string(data))
		if c.logger != nil {
			c.logger.Debugw("Published to in-memory pubsub", "channel", channel)
		}
	}
	return nil
}

// PublishUpdate wraps data in an Update envelope on ChannelUpdates.
func (c *Cache) PublishUpdate(ctx context.Context, topic string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("pubsub marshal error: %w", err)
	}
	return c.Publish(ctx, ChannelUpdates, Update{
		Topic:     topic,
		Data:      raw,
		Timestamp: time.Now().Unix(),
	})
}

func (c *Cache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if c.client != nil {
		return c.client.Subscribe(ctx, channels...)
	}

	if c.logger != nil {
		c.logger.Debugw("Redis unavailable; use SubscribeInMemory", "channels", channels)
	}
	return nil
}

// SubscribeInMemory subscribes to channels using the in-memory pubsub hub
func (c *Cache) SubscribeInMemory(ctx context.Context, channels ...string) *LocalSubscription {
	if c.pubsubHub != nil {
		return c.pubsubHub.Subscribe(ctx, channels...)
	}
	return nil
}

// SubscribeUpdates decodes Update envelopes from whichever pubsub backend is
// active. The returned channel closes when ctx is done.
func (c *Cache) SubscribeUpdates(ctx context.Context) <-chan Update {
	out := make(chan Update, 64)

	forward := func(payload string) {
		var u Update
		if err := json.Unmarshal([]byte(payload), &u); err != nil {
			if c.logger != nil {
				c.logger.Errorw("Failed to decode update", "error", err)
			}
			return
		}
		select {
		case out <- u:
		case <-ctx.Done():
		}
	}

	if c.IsInMemoryMode() {
		sub := c.SubscribeInMemory(ctx, ChannelUpdates)
		go func() {
			defer close(out)
			defer sub.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-sub.Channel():
					if !ok {
						return
					}
					forward(msg.Payload)
				}
			}
		}()
		return out
	}

	sub := c.Subscribe(ctx, ChannelUpdates)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				forward(msg.Payload)
			}
		}
	}()
	return out
}

// IsInMemoryMode returns true if the cache is running in in-memory mode
func (c *Cache) IsInMemoryMode() bool {
	return c.client == nil
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	if c.client != nil {
		return c.client.Ping(ctx).Err()
	}
	return c.kvStore.Ping(ctx)
}

func (c *Cache) Close() error {
	var err error
	if c.client != nil {
		err = c.client.Close()
	}
	if c.kvStore != nil {
		if closeErr := c.kvStore.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// Error types
var (
	ErrCacheMiss = errors.New("cache miss")
)
