package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newuzbdev/edunite/pkg/config"
)

// Namespace prefixes every key this service writes.
const Namespace = "edunite"

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Key joins parts under the service namespace. Empty parts become "-" so
// that filter combinations never collapse into the same key.
func Key(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, Namespace)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			p = "-"
		}
		segments = append(segments, strings.ReplaceAll(p, ":", "_"))
	}
	return strings.Join(segments, ":")
}

// Pattern returns a SCAN pattern matching every key below the given parts.
func Pattern(parts ...string) string {
	return Key(parts...) + ":*"
}
