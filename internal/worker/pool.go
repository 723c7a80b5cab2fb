package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultMaxAttempts = 3
	defaultPollTimeout = 5 * time.Second
)

// Handler processes one job payload. A returned error retries the job until
// it runs out of attempts.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Pool runs workers that consume a queue
type Pool struct {
	queue       *Queue
	workers     int
	handlers    map[string]Handler
	maxAttempts int
	pollTimeout time.Duration
	observe     func(jobType, result string)
	wg          sync.WaitGroup
}

func NewPool(queue *Queue, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:       queue,
		workers:     workers,
		handlers:    make(map[string]Handler),
		maxAttempts: defaultMaxAttempts,
		pollTimeout: defaultPollTimeout,
		observe:     func(string, string) {},
	}
}

// Handle registers the handler for a job type. Call before Start.
func (p *Pool) Handle(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// Observe sets a callback receiving every job outcome: ok, retry, dead.
func (p *Pool) Observe(fn func(jobType, result string)) {
	p.observe = fn
}

// Start launches the workers. They stop when ctx is done; Wait blocks until
// they have.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Str("queue", p.queue.name).Msgf("worker pool started with %d workers", p.workers)
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
		}

		// blocks at most pollTimeout so ctx is rechecked
		job, err := p.queue.pop(ctx, p.pollTimeout)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Int("worker", id).Msg("failed to pop job")
				time.Sleep(time.Second)
			}
			continue
		}
		if job == nil {
			continue
		}

		p.process(ctx, *job)
	}
}

func (p *Pool) process(ctx context.Context, job Job) {
	handler, ok := p.handlers[job.Type]
	if !ok {
		p.queue.deadLetter(ctx, job, "no handler for job type")
		p.observe(job.Type, "dead")
		return
	}

	job.Attempts++
	err := handler(ctx, job.Payload)
	if err == nil {
		p.observe(job.Type, "ok")
		return
	}

	if job.Attempts >= p.maxAttempts {
		p.queue.deadLetter(ctx, job, err.Error())
		p.observe(job.Type, "dead")
		return
	}

	log.Warn().Err(err).Str("job_type", job.Type).Int("attempt", job.Attempts).Msg("job failed, requeueing")
	if err := p.queue.push(ctx, job); err != nil {
		log.Error().Err(err).Str("job_type", job.Type).Msg("failed to requeue job")
	}
	p.observe(job.Type, "retry")
}
