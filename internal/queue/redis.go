package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"booking/backend/internal/obs"
)

type redisList interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

type RedisConfig struct {
	Key         string
	MaxAttempts int
	PollTimeout time.Duration
	Logger      *slog.Logger
}

// RedisQueue pushes jobs with LPUSH and pops them with BRPOP, so the list is FIFO.
type RedisQueue struct {
	rdb         redisList
	key         string
	maxAttempts int
	pollTimeout time.Duration
	log         *slog.Logger
	now         func() time.Time
}

func NewRedisQueue(rdb redisList, cfg RedisConfig) *RedisQueue {
	if cfg.Key == "" {
		cfg.Key = "booking:jobs"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RedisQueue{
		rdb:         rdb,
		key:         cfg.Key,
		maxAttempts: cfg.MaxAttempts,
		pollTimeout: cfg.PollTimeout,
		log:         cfg.Logger.With(slog.String("component", "queue.redis"), slog.String("key", cfg.Key)),
		now:         time.Now,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, kind string, payload any) error {
	job, err := NewJob(kind, payload, q.now())
	if err != nil {
		return err
	}
	return q.push(ctx, job)
}

func (q *RedisQueue) push(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, b).Err()
}

// Consume pops jobs until ctx is done. A failed job is pushed back with its
// attempt counter incremented and dropped once it reaches the maximum.
func (q *RedisQueue) Consume(ctx context.Context, h Handler) error {
	q.log.Info("consumer started")

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		if ctx.Err() != nil {
			q.log.Info("consumer stopped (ctx canceled)")
			return ctx.Err()
		}

		res, err := q.rdb.BRPop(ctx, q.pollTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				q.log.Info("consumer stopped (ctx canceled)")
				return ctx.Err()
			}
			q.log.Warn("brpop failed; retry", slog.Any("err", err), slog.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		if len(res) != 2 {
			q.log.Warn("unexpected brpop reply", slog.Int("len", len(res)))
			continue
		}
		q.handle(ctx, []byte(res[1]), h)
	}
}

func (q *RedisQueue) handle(ctx context.Context, raw []byte, h Handler) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		obs.JobsProcessed.WithLabelValues("unknown", "malformed").Inc()
		q.log.Error("malformed job dropped", slog.Any("err", err))
		return
	}

	err := h(ctx, job)
	if err == nil {
		obs.JobsProcessed.WithLabelValues(job.Kind, "ok").Inc()
		return
	}

	job.Attempts++
	if job.Attempts >= q.maxAttempts {
		obs.JobsProcessed.WithLabelValues(job.Kind, "dropped").Inc()
		q.log.Error("job dropped after max attempts",
			slog.String("kind", job.Kind),
			slog.Int("attempts", job.Attempts),
			slog.Any("err", err),
		)
		return
	}

	obs.JobsProcessed.WithLabelValues(job.Kind, "retry").Inc()
	q.log.Warn("job failed; requeued",
		slog.String("kind", job.Kind),
		slog.Int("attempts", job.Attempts),
		slog.Any("err", err),
	)
	if err := q.push(context.WithoutCancel(ctx), job); err != nil {
		q.log.Error("requeue failed", slog.String("kind", job.Kind), slog.Any("err", err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
