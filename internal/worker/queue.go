package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEmail = "jobs:email"

	// DLQPrefix names the dead letter list of a queue: dlq:{queue}
	DLQPrefix = "dlq:"
)

// Job is the envelope for every queued task
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// DeadLetter is a job that ran out of attempts
type DeadLetter struct {
	Job
	Queue    string `json:"queue"`
	Reason   string `json:"reason"`
	FailedAt string `json:"failed_at"` // RFC 3339
}

// NewRedis parses a redis:// URL and checks the server answers
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return rdb, nil
}

// Queue is a Redis list of jobs. Producers LPUSH, the pool BRPOPs.
type Queue struct {
	rdb  *redis.Client
	name string
}

func NewQueue(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

// Enqueue pushes a new job
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", jobType, err)
	}
	return q.push(ctx, Job{Type: jobType, Payload: data})
}

func (q *Queue) push(ctx context.Context, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.name, encoded).Err()
}

// pop waits up to timeout for a job. A nil job with a nil error means the
// wait timed out.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

func (q *Queue) deadLetter(ctx context.Context, job Job, reason string) {
	entry := DeadLetter{
		Job:      job,
		Queue:    q.name,
		Reason:   reason,
		FailedAt: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", q.name).Msg("dlq: failed to marshal entry")
		return
	}

	if err := q.rdb.LPush(ctx, DLQPrefix+q.name, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", q.name).Msg("dlq: failed to push entry")
		return
	}

	log.Warn().
		Str("queue", q.name).
		Str("job_type", job.Type).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job moved to dead letter queue")
}

// Len returns the number of waiting jobs
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}

// DeadLetters returns the dead letter entries, newest first
func (q *Queue) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	raw, err := q.rdb.LRange(ctx, DLQPrefix+q.name, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]DeadLetter, 0, len(raw))
	for _, r := range raw {
		var entry DeadLetter
		if err := json.Unmarshal([]byte(r), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}
