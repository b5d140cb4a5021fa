package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/enviroflow/pkg/snapshot"
)

// SnapshotOptions tunes the Redis capability store.
type SnapshotOptions struct {
	MaxAge time.Duration
	TTL    time.Duration
}

// NewSnapshotProvider picks a capability source from the URL: redis:// or rediss:// for the
// shared store, file:// or a bare path for a YAML document, empty for an empty static snapshot.
// The returned close function releases the underlying connection.
func NewSnapshotProvider(ctx context.Context, logger *slog.Logger, capabilitiesURL string, opts SnapshotOptions) (snapshot.Provider, func() error, error) {
	noop := func() error { return nil }

	switch {
	case capabilitiesURL == "":
		return snapshot.NewStatic(), noop, nil
	case strings.HasPrefix(capabilitiesURL, "redis://"), strings.HasPrefix(capabilitiesURL, "rediss://"):
		store, err := snapshot.NewRedisStore(ctx, logger, snapshot.RedisOptions{
			URL:    capabilitiesURL,
			MaxAge: opts.MaxAge,
			TTL:    opts.TTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect capability store: %w", err)
		}

		return store, store.Close, nil
	case strings.Contains(capabilitiesURL, "://") && !strings.HasPrefix(capabilitiesURL, "file://"):
		return nil, nil, fmt.Errorf("%w: %s", snapshot.ErrUnsupportedSource, capabilitiesURL)
	default:
		return snapshot.NewFile(strings.TrimPrefix(capabilitiesURL, "file://")), noop, nil
	}
}
