package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/jobboard-api/internal/config"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
	"github.com/jwalitptl/jobboard-api/pkg/metrics"
)

const serviceName = "cv matching queue"

// Job asks the matching workers to score a CV against a job. The workers
// write their result under ResultPrefix + application id.
type Job struct {
	ApplicationID uuid.UUID `json:"applicationId"`
	JobID         uuid.UUID `json:"jobId"`
	CandidateID   uuid.UUID `json:"candidateId"`
	CVID          uuid.UUID `json:"cvId"`
	EnqueuedAt    time.Time `json:"enqueuedAt"`
}

// Queue is the contract with the external CV matching service.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	DeleteResult(ctx context.Context, applicationID uuid.UUID) error
}

type Config struct {
	QueueKey           string
	ResultPrefix       string
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

func ConfigFrom(cfg config.MatchingConfig) Config {
	return Config{
		QueueKey:           cfg.QueueKey,
		ResultPrefix:       cfg.ResultPrefix,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerTimeout:     cfg.BreakerTimeout,
	}
}

// RedisQueue pushes jobs onto a Redis list. Every call goes through a
// circuit breaker so an unreachable Redis fails fast instead of stalling
// application requests.
type RedisQueue struct {
	client  redis.Cmdable
	cb      *gobreaker.CircuitBreaker
	cfg     Config
	metrics *metrics.Metrics
}

func NewRedisQueue(client redis.Cmdable, cfg Config, m *metrics.Metrics) *RedisQueue {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cv-matching",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})

	return &RedisQueue{
		client:  client,
		cb:      cb,
		cfg:     cfg,
		metrics: m,
	}
}

var _ Queue = (*RedisQueue)(nil)

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal matching job: %w", err)
	}

	return q.execute("matching.enqueue", func() error {
		return q.client.RPush(ctx, q.cfg.QueueKey, payload).Err()
	})
}

func (q *RedisQueue) DeleteResult(ctx context.Context, applicationID uuid.UUID) error {
	return q.execute("matching.delete_result", func() error {
		return q.client.Del(ctx, q.ResultKey(applicationID)).Err()
	})
}

func (q *RedisQueue) ResultKey(applicationID uuid.UUID) string {
	return q.cfg.ResultPrefix + applicationID.String()
}

func (q *RedisQueue) State() gobreaker.State {
	return q.cb.State()
}

// PingContext reports the queue unready while its breaker is open.
func (q *RedisQueue) PingContext(ctx context.Context) error {
	if q.State() == gobreaker.StateOpen {
		return apperrors.UpstreamUnavailable(serviceName, gobreaker.ErrOpenState)
	}
	return nil
}

func (q *RedisQueue) execute(operation string, fn func() error) error {
	start := time.Now()
	_, err := q.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	q.metrics.ObserveRedis(operation, start, err)
	if err != nil {
		return apperrors.UpstreamUnavailable(serviceName, err)
	}
	return nil
}

// NewRedisClient connects to the Redis instance shared by the matching
// workers.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pooling
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.MaxRetries = cfg.MaxRetries
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
