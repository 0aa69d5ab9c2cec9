// Package redisdelay parks delayed jobs in a Redis sorted set scored by
// their due time. The worker polls for due entries and publishes them to
// their queue topics.
package redisdelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/venturehq/venture/pkg/queue"
)

const defaultKey = "venture:delayed"

type Store struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

func NewStore(client redis.UniversalClient, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		key:    defaultKey,
		logger: logger.With("module", "redis_delay_store"),
	}
}

// Park stores the job until its due time.
func (s *Store) Park(ctx context.Context, job *queue.DispatchedJob, due time.Time) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal delayed job %s: %w", job.JobID, err)
	}

	err = s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to park delayed job %s: %w", job.JobID, err)
	}

	return nil
}

// Due pops every job whose due time is at or before now. Removal happens in
// the same pipeline as the read so two pollers do not double-publish.
func (s *Store) Due(ctx context.Context, now time.Time) ([]*queue.DispatchedJob, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)

	var rangeCmd *redis.StringSliceCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{Min: "-inf", Max: max})
		pipe.ZRemRangeByScore(ctx, s.key, "-inf", max)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pop due jobs: %w", err)
	}

	members := rangeCmd.Val()
	jobs := make([]*queue.DispatchedJob, 0, len(members))

	for _, member := range members {
		var job queue.DispatchedJob

		if err := json.Unmarshal([]byte(member), &job); err != nil {
			return nil, fmt.Errorf("failed to decode delayed job: %w", err)
		}

		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// Run polls for due jobs until ctx is cancelled, publishing each through
// the given dispatch function.
func (s *Store) Run(ctx context.Context, interval time.Duration, dispatch func(ctx context.Context, job *queue.DispatchedJob) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			jobs, err := s.Due(ctx, now)
			if err != nil {
				s.logger.ErrorContext(ctx, "Failed to poll delayed jobs", "error", err)

				continue
			}

			for _, job := range jobs {
				if err := dispatch(ctx, job); err != nil {
					s.logger.ErrorContext(ctx, "Failed to dispatch delayed job",
						"workflow_id", job.WorkflowID, "job_id", job.JobID, "error", err)
				}
			}
		}
	}
}
