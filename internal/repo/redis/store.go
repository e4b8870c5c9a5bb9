package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

const keyPrefix = "uptime:"

// RecordKey is where a record's JSON lives.
func RecordKey(collection, id string) string {
	return keyPrefix + collection + ":" + id
}

// IndexKey is the set of ids in a collection.
func IndexKey(collection string) string {
	return keyPrefix + collection + ":ids"
}

var _ repo.Store = (*Store)(nil)

type Store struct {
	client redis.UniversalClient
}

func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) List(ctx context.Context, collection string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, IndexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) Read(ctx context.Context, collection, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, RecordKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data []byte) error {
	ok, err := s.client.SetNX(ctx, RecordKey(collection, id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	if !ok {
		return repo.ErrExists
	}
	if err := s.client.SAdd(ctx, IndexKey(collection), id).Err(); err != nil {
		return fmt.Errorf("index %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, data []byte) error {
	ok, err := s.client.SetXX(ctx, RecordKey(collection, id), data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if !ok {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, RecordKey(collection, id))
	pipe.SRem(ctx, IndexKey(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if del.Val() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
