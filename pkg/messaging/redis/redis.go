// Package redis implements the messaging broker over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medbook/scheduling-api/pkg/circuitbreaker"
	"github.com/medbook/scheduling-api/pkg/messaging"
)

const (
	breakerFailures = 100
	breakerCooldown = 5 * time.Second

	subscribeBuffer = 100
)

type Config struct {
	URL          string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

// Broker publishes and consumes messages over Redis channels. Publishes go
// through a circuit breaker so a Redis outage does not stall callers on
// every attempt.
type Broker struct {
	client  *redis.Client
	breaker *circuitbreaker.Breaker
	log     *zerolog.Logger
}

func NewRedisBroker(cfg Config, logger *zerolog.Logger) (messaging.Broker, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.RetryBackoff
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Broker{
		client: client,
		breaker: circuitbreaker.New("redis-broker", circuitbreaker.Config{
			FailureThreshold: breakerFailures,
			Cooldown:         breakerCooldown,
		}),
		log: logger,
	}, nil
}

func (b *Broker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = b.breaker.Do(func() error {
		return b.client.Publish(ctx, channel, payload).Err()
	})
	if err != nil {
		b.log.Error().Err(err).Str("channel", channel).Msg("publish failed")
	}
	return err
}

// Subscribe delivers raw payloads from the channel until ctx is cancelled.
// The returned channel is closed on cancellation.
func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := b.client.Subscribe(ctx, channel)
	out := make(chan []byte, subscribeBuffer)

	go func() {
		defer func() {
			sub.Close()
			close(out)
		}()

		for {
			msg, err := sub.ReceiveMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.log.Warn().Err(err).Str("channel", channel).Msg("receive failed")
				continue
			}
			out <- []byte(msg.Payload)
		}
	}()

	return out, nil
}

func (b *Broker) Close() error {
	return b.client.Close()
}
