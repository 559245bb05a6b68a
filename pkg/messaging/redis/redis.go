package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/kiosk-api/pkg/circuitbreaker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Broker publishes kiosk events over redis pub/sub. Channels are scoped by KioskID
// so a front-desk monitor can follow one kiosk or pattern-subscribe to all of them.
type Broker struct {
	client  *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	kioskID string
	logger  zerolog.Logger
}

type Config struct {
	URL          string
	KioskID      string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
	// The breaker stops publishing after MaxFailures consecutive errors for BreakerTimeout.
	MaxFailures    int
	BreakerTimeout time.Duration
}

func NewBroker(ctx context.Context, config Config, logger zerolog.Logger) (*Broker, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	logger = logger.With().Str("component", "broker").Str("kiosk_id", config.KioskID).Logger()
	b := &Broker{
		client:  redis.NewClient(opts),
		kioskID: config.KioskID,
		logger:  logger,
	}
	b.breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "redis-broker",
		MaxFailures: config.MaxFailures,
		Timeout:     config.BreakerTimeout,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", string(from)).Str("to", string(to)).Msg("Broker circuit changed state")
		},
	})

	if err := b.client.Ping(ctx).Err(); err != nil {
		b.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return b, nil
}

// Channel returns the kiosk-scoped name of channel.
func (b *Broker) Channel(channel string) string {
	return scoped(channel, b.kioskID)
}

func scoped(channel, kioskID string) string {
	if kioskID == "" {
		return channel
	}
	return channel + "." + kioskID
}

func (b *Broker) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	target := b.Channel(channel)
	err = b.breaker.Execute(func() error {
		return b.client.Publish(ctx, target, payload).Err()
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", target, err)
	}
	b.logger.Debug().Str("channel", target).Int("bytes", len(payload)).Msg("Event published")
	return nil
}

// Subscribe delivers raw payloads from the kiosk-scoped channel until ctx is done.
func (b *Broker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.client.Subscribe(ctx, b.Channel(channel))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.Channel(channel), err)
	}
	out := make(chan []byte, 100)

	go func() {
		defer func() {
			pubsub.Close()
			close(out)
		}()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Broker) Close() error {
	return b.client.Close()
}
