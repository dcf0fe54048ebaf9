package storage

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisSetStore keeps a set in a Redis SET under a single key.
type RedisSetStore struct {
	Redis *redis.Client
	Key   string
	Ctx   context.Context
	opts  SetOptions
}

// NewRedisSetStore Constructor
func NewRedisSetStore(rdb *redis.Client, key string, opts SetOptions) *RedisSetStore {
	return &RedisSetStore{
		Redis: rdb,
		Key:   key,
		Ctx:   context.Background(),
		opts:  opts,
	}
}

func (s *RedisSetStore) normalize(v string) (string, error) {
	if s.opts.Normalize != nil {
		v = s.opts.Normalize(v)
	}
	if s.opts.Validate != nil {
		if err := s.opts.Validate(v); err != nil {
			return "", err
		}
	}
	return v, nil
}

// List returns the members sorted, since Redis sets are unordered.
func (s *RedisSetStore) List() ([]string, error) {
	members, err := s.Redis.SMembers(s.Ctx, s.Key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

// Contains implements SetStore.
func (s *RedisSetStore) Contains(value string) (bool, error) {
	v, err := s.normalize(value)
	if err != nil {
		return false, nil
	}
	return s.Redis.SIsMember(s.Ctx, s.Key, v).Result()
}

// Add implements SetStore.
func (s *RedisSetStore) Add(value string) (bool, error) {
	v, err := s.normalize(value)
	if err != nil {
		return false, err
	}
	n, err := s.Redis.SAdd(s.Ctx, s.Key, v).Result()
	return n > 0, err
}

// Remove implements SetStore.
func (s *RedisSetStore) Remove(value string) (bool, error) {
	v, err := s.normalize(value)
	if err != nil {
		return false, err
	}
	n, err := s.Redis.SRem(s.Ctx, s.Key, v).Result()
	return n > 0, err
}
