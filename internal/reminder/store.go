package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const jobsKey = "reminder_jobs"

// Store persists scheduled reminder jobs in a Redis hash keyed by job ID so
// pending reminders survive a process restart. Nil-safe: a nil store turns
// every operation into a no-op and the scheduler degrades to memory-only
// timers.
type Store struct {
	redis *redis.Client
}

// NewStore creates a durable job store. Returns nil when redisClient is nil.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		return nil
	}
	return &Store{redis: redisClient}
}

// Put records a scheduled job.
func (s *Store) Put(ctx context.Context, job Job) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if job.ID == "" {
		return errors.New("reminder: job ID required")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("reminder: marshal job: %w", err)
	}
	if err := s.redis.HSet(ctx, jobsKey, job.ID, data).Err(); err != nil {
		return fmt.Errorf("reminder: persist job: %w", err)
	}
	return nil
}

// Remove deletes a job record, typically after it fired or was cancelled.
func (s *Store) Remove(ctx context.Context, jobID string) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.redis.HDel(ctx, jobsKey, jobID).Err(); err != nil {
		return fmt.Errorf("reminder: remove job: %w", err)
	}
	return nil
}

// List returns all pending jobs. Records that fail to decode are skipped.
func (s *Store) List(ctx context.Context) ([]Job, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := s.redis.HGetAll(ctx, jobsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("reminder: list jobs: %w", err)
	}

	jobs := make([]Job, 0, len(raw))
	for _, item := range raw {
		var job Job
		if err := json.Unmarshal([]byte(item), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
