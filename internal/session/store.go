package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 24 * time.Hour

// Store persists session snapshots. Load never fails on a corrupt snapshot: it is deleted and an empty
// state is returned instead.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, id string, s *State) error
	Clear(ctx context.Context, id string) error
}

// RedisStore keeps snapshots in Redis under recipesnap:session:{id}.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to the Redis server at url and checks it answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Printf("Successfully connected to Redis at %s", opts.Addr)
	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return "recipesnap:session:" + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (*State, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	state, err := Decode(data)
	if err != nil {
		log.Printf("discarding corrupt session %s: %v", id, err)
		if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
			log.Printf("failed to delete corrupt session %s: %v", id, err)
		}
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, state *State) error {
	data, err := state.Encode()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", id, err)
	}
	return nil
}

// MemoryStore keeps encoded snapshots in a bounded in-process LRU whose entries expire after the TTL.
type MemoryStore struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemoryStore holds at most size sessions.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{cache: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (*State, error) {
	data, ok := s.cache.Get(id)
	if !ok {
		return &State{}, nil
	}
	state, err := Decode(data)
	if err != nil {
		log.Printf("discarding corrupt session %s: %v", id, err)
		s.cache.Remove(id)
	}
	return state, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, state *State) error {
	data, err := state.Encode()
	if err != nil {
		return err
	}
	s.cache.Add(id, data)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.cache.Remove(id)
	return nil
}
