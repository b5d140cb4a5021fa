package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces capability entries in Redis.
const DefaultKeyPrefix = "enviroflow:capabilities:"

// RedisOptions configures the Redis snapshot store.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0")
	URL string

	// KeyPrefix is prepended to controller ids
	KeyPrefix string

	// MaxAge marks entries captured longer ago than this as offline. Zero disables the check.
	MaxAge time.Duration

	// TTL expires published entries. Zero keeps them forever.
	TTL time.Duration

	// ConnectTimeout bounds the initial ping
	ConnectTimeout time.Duration
}

// RedisStore keeps one JSON document per controller. Pollers publish into it and services read from it.
type RedisStore struct {
	client redis.UniversalClient
	opts   RedisOptions
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, logger *slog.Logger, opts RedisOptions) (*RedisStore, error) {
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, logger, opts), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, logger *slog.Logger, opts RedisOptions) *RedisStore {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}

	return &RedisStore{
		client: client,
		opts:   opts,
		logger: logger.With("module", "snapshot.redis"),
		now:    time.Now,
	}
}

func (s *RedisStore) key(controllerID string) string {
	return s.opts.KeyPrefix + controllerID
}

// Snapshot reads the requested controllers in one round trip. Undecodable entries are logged and
// reported as missing.
func (s *RedisStore) Snapshot(ctx context.Context, controllerIDs []string) (models.CapabilitySnapshot, error) {
	snapshot := make(models.CapabilitySnapshot, len(controllerIDs))
	if len(controllerIDs) == 0 {
		return snapshot, nil
	}

	keys := make([]string, 0, len(controllerIDs))
	for _, id := range controllerIDs {
		keys = append(keys, s.key(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read capabilities: %w", err)
	}

	now := s.now()

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var caps models.ControllerCapabilities
		if err := json.Unmarshal([]byte(raw), &caps); err != nil {
			s.logger.WarnContext(ctx, "Discarding undecodable capabilities entry",
				"controller_id", controllerIDs[i], "error", err)

			continue
		}

		if caps.ControllerID == "" {
			caps.ControllerID = controllerIDs[i]
		}

		if caps.IsStale(now, s.opts.MaxAge) && caps.Status != models.ControllerStatusOffline {
			s.logger.DebugContext(ctx, "Capabilities entry is stale, reporting controller offline",
				"controller_id", caps.ControllerID, "captured_at", caps.CapturedAt)

			caps.Status = models.ControllerStatusOffline
		}

		snapshot[controllerIDs[i]] = &caps
	}

	return snapshot, nil
}

// Publish stores the capabilities of one controller, stamping CapturedAt when unset.
func (s *RedisStore) Publish(ctx context.Context, caps *models.ControllerCapabilities) error {
	if caps.ControllerID == "" {
		return fmt.Errorf("cannot publish capabilities without a controller id")
	}

	if !caps.Status.IsKnown() {
		return fmt.Errorf("cannot publish controller %s with status %q", caps.ControllerID, caps.Status)
	}

	entry := *caps
	if entry.CapturedAt.IsZero() {
		entry.CapturedAt = s.now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal capabilities: %w", err)
	}

	if err := s.client.Set(ctx, s.key(caps.ControllerID), data, s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("failed to publish capabilities for %s: %w", caps.ControllerID, err)
	}

	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
