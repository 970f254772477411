package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Invalidator fans policy-mutation notifications out to every engine
// instance over Redis pub/sub so their local policy caches stay inside the
// staleness bound. The decision path never touches Redis.
type Invalidator struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// InvalidatorConfig configures the Redis invalidator.
type InvalidatorConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// DefaultInvalidatorConfig returns the default invalidator configuration.
func DefaultInvalidatorConfig() InvalidatorConfig {
	return InvalidatorConfig{
		Addr:    "localhost:6379",
		Channel: "abac:policy-invalidate",
	}
}

// NewInvalidator connects to Redis and verifies the connection.
func NewInvalidator(cfg InvalidatorConfig, logger *zap.Logger) (*Invalidator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Channel == "" {
		cfg.Channel = "abac:policy-invalidate"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// Disable CLIENT SETINFO for miniredis compatibility
		DisableIndentity: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Invalidator{
		client:  client,
		channel: cfg.Channel,
		logger:  logger,
	}, nil
}

// Publish announces a policy mutation to all subscribers.
func (inv *Invalidator) Publish(ctx context.Context) error {
	if err := inv.client.Publish(ctx, inv.channel, "invalidate").Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Subscribe invokes fn for every invalidation message until Close is called.
func (inv *Invalidator) Subscribe(fn func()) {
	ctx, cancel := context.WithCancel(context.Background())
	inv.cancel = cancel

	sub := inv.client.Subscribe(ctx, inv.channel)

	go func() {
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
				inv.logger.Debug("Policy cache invalidation received",
					zap.String("channel", msg.Channel),
				)
				fn()
			}
		}
	}()
}

// Close stops the subscription and releases the Redis connection.
func (inv *Invalidator) Close() error {
	if inv.cancel != nil {
		inv.cancel()
	}
	return inv.client.Close()
}
