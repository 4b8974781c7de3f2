// Package presence mirrors in-memory presence transitions into Redis so
// other services (and restarted processes) can read a recent snapshot. The
// realtime core treats this as a best-effort side write.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey = "online_users"

	// statusTTL bounds staleness when a process dies without cleaning up.
	statusTTL = 5 * time.Minute

	// offlineTTL keeps the offline marker briefly to avoid flicker on
	// reconnect.
	offlineTTL = time.Minute
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SetStatus writes a user's status hash and maintains the online_users set,
// with a TTL so crashed processes do not leave users online forever.
func (s *RedisStore) SetStatus(ctx context.Context, userID uint, status string, lastSeen time.Time) error {
	key := fmt.Sprintf("user:%d:status", userID)
	pipe := s.client.Pipeline()

	if status == "offline" {
		pipe.SRem(ctx, onlineSetKey, userID)
		pipe.Expire(ctx, key, offlineTTL)
	} else {
		pipe.SAdd(ctx, onlineSetKey, userID)
		pipe.Expire(ctx, key, statusTTL)
	}

	pipe.HSet(ctx, key, map[string]interface{}{
		"status":    status,
		"last_seen": lastSeen.Unix(),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write presence for user %d: %w", userID, err)
	}

	slog.Debug("presence mirrored", "userID", userID, "status", status)
	return nil
}

// GetStatus reads back the stored status for userID, defaulting to offline
// when nothing is stored or the TTL expired.
func (s *RedisStore) GetStatus(ctx context.Context, userID uint) (string, error) {
	status, err := s.client.HGet(ctx, fmt.Sprintf("user:%d:status", userID), "status").Result()
	if err == redis.Nil {
		return "offline", nil
	}
	if err != nil {
		return "", fmt.Errorf("read presence for user %d: %w", userID, err)
	}
	return status, nil
}

// OnlineUsers returns the ids in the online set.
func (s *RedisStore) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, onlineSetKey).Result()
}

// NewRedisConnection dials Redis from a URI and verifies the connection.
func NewRedisConnection(uri string) (*redis.Client, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
