package jobstore

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"github.com/vidmesh/vidmesh-be/internal/api/domain"
	"github.com/vidmesh/vidmesh-be/shared/redis"
)

const redisKeyPrefix = "vidmesh:job:"

// maxUpdateRetries bounds the optimistic-transaction retry loop when a
// concurrent writer touches the same key.
const maxUpdateRetries = 5

// RedisStore keeps each job as one JSON blob under vidmesh:job:<id>.
// Partial updates run inside a WATCH/MULTI transaction so concurrent
// readers never observe a half-written record. Jobs survive
// orchestrator restarts as long as Redis itself is durable.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a job store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Create(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey(job.ID), data, 0)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, redisKey(id))
	if err != nil {
		if redis.IsNil(err) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) UpdateFields(ctx context.Context, id string, update Update) error {
	key := redisKey(id)

	txn := func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if redis.IsNil(err) {
				return domain.ErrJobNotFound
			}
			return err
		}

		var job domain.Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}

		update.apply(&job)

		updated, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err = s.client.Watch(ctx, txn, key)
		if err != goredis.TxFailedErr {
			break
		}
	}
	if err != nil {
		if err == domain.ErrJobNotFound {
			return err
		}
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, redisKey(id))
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	return s.client.Exists(ctx, redisKey(id))
}

func (s *RedisStore) List(ctx context.Context) ([]domain.Job, error) {
	keys, err := s.client.Keys(ctx, redisKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key)
		if err != nil {
			if redis.IsNil(err) {
				// Deleted between KEYS and GET.
				continue
			}
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}

		var job domain.Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
