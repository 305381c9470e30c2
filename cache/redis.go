package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apex/log"
	"github.com/redis/go-redis/v9"
)

const (
	snapshotKey     = "reports:snapshot"
	snapshotChannel = "reports:updates"
	lastReadPrefix  = "notifications:lastread:"
)

// RedisStore is a Redis-backed Store implementation. Snapshot publishes are
// fanned out to subscribers via Redis pub/sub, so multiple portal instances
// see the same feed.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Infof("Connected to Redis at %s", redisURL)
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *RedisStore) SetSnapshot(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, snapshotKey, data, 0).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, snapshotChannel, data).Err()
}

func (s *RedisStore) LastRead(ctx context.Context, viewerID string) (time.Time, error) {
	data, err := s.client.Get(ctx, lastReadPrefix+viewerID).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, data)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (s *RedisStore) SetLastRead(ctx context.Context, viewerID string, t time.Time) error {
	return s.client.Set(ctx, lastReadPrefix+viewerID, t.Format(time.RFC3339Nano), 0).Err()
}

func (s *RedisStore) Subscribe(ctx context.Context, fn func(*Snapshot)) error {
	pubsub := s.client.Subscribe(ctx, snapshotChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var snap Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					log.Errorf("Failed to decode snapshot update: %v", err)
					continue
				}
				fn(&snap)
			}
		}
	}()
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
