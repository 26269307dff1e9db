// Package redis implements a Redis pub/sub adapter.
//
// Publishes run finished events as JSON to a configurable Redis channel and,
// optionally, keeps the latest event per suite under a key with a TTL.
// Retries with exponential backoff on connection errors.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/verdict/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "verdict:run_finished"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: verdict:run_finished).
	Channel string
	// LatestKey, when set, is the key prefix under which the latest event
	// of each suite is stored, as <LatestKey>:<suite>.
	LatestKey string
	// LatestTTL expires the stored event. Zero keeps it forever.
	LatestTTL time.Duration
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// Backoff is the delay before the first retry (default adapter.DefaultBackoff).
	Backoff time.Duration
}

// Adapter publishes run finished events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.LatestTTL < 0 {
		return nil, fmt.Errorf("latest_ttl must be >= 0, got %s", cfg.LatestTTL)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// LatestKeyFor returns the key holding the latest event of suite, or "" when
// latest-event storage is disabled.
func (a *Adapter) LatestKeyFor(suite string) string {
	if a.config.LatestKey == "" {
		return ""
	}
	if suite == "" {
		suite = "default"
	}
	return a.config.LatestKey + ":" + suite
}

// Publish sends the event as a JSON PUBLISH to the configured channel. When
// LatestKey is set the event is stored in the same transaction.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunFinishedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	key := a.LatestKeyFor(event.Suite)

	err = adapter.Retry(ctx, a.config.Retries, a.config.Backoff, func(ctx context.Context) error {
		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()

		if key == "" {
			return a.client.Publish(publishCtx, a.config.Channel, body).Err()
		}
		_, err := a.client.TxPipelined(publishCtx, func(pipe goredis.Pipeliner) error {
			pipe.Set(publishCtx, key, body, a.config.LatestTTL)
			pipe.Publish(publishCtx, a.config.Channel, body)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// Verify Adapter implements the adapter interface.
var _ adapter.Adapter = (*Adapter)(nil)
