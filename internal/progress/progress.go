// Package progress publishes live analysis progress for posts through Redis
// so the API can report what a worker is doing.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "commentpulse:progress:"
	// DefaultTTL keeps a snapshot around after the run ends
	DefaultTTL = 24 * time.Hour
)

// ErrNotFound is returned when no progress was recorded for a post
var ErrNotFound = errors.New("no progress recorded")

// Snapshot is the latest progress of one post's analysis run
type Snapshot struct {
	PostID    uuid.UUID `json:"post_id"`
	State     string    `json:"state"`
	Message   string    `json:"message"`
	Image     string    `json:"image,omitempty"`
	Records   int       `json:"records"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store reads and writes progress snapshots
type Store interface {
	Set(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, postID uuid.UUID) (*Snapshot, error)
}

// RedisStore keeps the latest snapshot per post and publishes every update
// on the post's channel
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on client. ttl <= 0 uses DefaultTTL.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Key returns the Redis key holding a post's snapshot
func Key(postID uuid.UUID) string {
	return keyPrefix + postID.String()
}

// Channel returns the pub/sub channel for a post's updates
func Channel(postID uuid.UUID) string {
	return keyPrefix + "events:" + postID.String()
}

// Set stores snap and publishes it
func (s *RedisStore) Set(ctx context.Context, snap Snapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, Key(snap.PostID), data, s.ttl)
	pipe.Publish(ctx, Channel(snap.PostID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

// Get returns the latest snapshot for postID
func (s *RedisStore) Get(ctx context.Context, postID uuid.UUID) (*Snapshot, error) {
	data, err := s.client.Get(ctx, Key(postID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &snap, nil
}

// Subscribe streams snapshots for postID until ctx is done. The returned
// channel is closed when the subscription ends.
func (s *RedisStore) Subscribe(ctx context.Context, postID uuid.UUID) (<-chan Snapshot, error) {
	sub := s.client.Subscribe(ctx, Channel(postID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var snap Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Connect parses a redis:// URL and verifies the server answers
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
