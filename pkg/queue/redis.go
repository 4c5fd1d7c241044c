package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"NiftyPulse/pkg/logger"
)

// RedisQueue keeps pending messages in a list, delayed retries in a sorted
// set scored by due time, and exhausted messages in a dead letter list.
type RedisQueue struct {
	logger    *logger.Logger
	cfg       Config
	client    *redis.Client
	keyPrefix string
	now       func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*RedisQueue)

// WithKeyPrefix namespaces the queue keys, e.g. "niftypulse:queue".
func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

func NewRedisQueue(client *redis.Client, lgr *logger.Logger, cfg Config, opts ...Option) *RedisQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	r := &RedisQueue{
		logger:    lgr,
		cfg:       cfg,
		client:    client,
		keyPrefix: "queue",
		now:       time.Now,
		jobs:      make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterJob binds job to its message type. A second job for the same
// type is ignored.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.Type()]; ok {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and launches the workers and the retry mover.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pcancel()
	if err := r.client.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.wg.Add(1)
	go r.retryLoop(ctx)

	r.logger.Info("job queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-done:
		r.logger.Info("job queue stopped")
		return nil
	}
}

// Enqueue stores a message for the job registered under msgType.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}
	if !known {
		return fmt.Errorf("no job registered for type %s", msgType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw, EnqueuedAt: r.now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.key("messages"), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, r.cfg.PollTimeout, r.key("messages")).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.logger.Error("brpop failed", logger.Int("worker_id", id), logger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.logger.Error("undecodable message dropped", logger.Error(err))
			continue
		}
		r.handle(ctx, msg)
	}
}

func (r *RedisQueue) handle(ctx context.Context, msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.push(r.key("dlq"), msg)
		return
	}

	start := r.now()
	err := job.Handle(ctx, msg.Payload)
	if err == nil {
		r.logger.Info("job done",
			logger.String("job", job.Name()),
			logger.String("id", msg.ID),
			logger.Duration("took_ms", r.now().Sub(start)))
		return
	}
	if errors.Is(err, context.Canceled) {
		// requeue so a restart picks it up
		r.push(r.key("messages"), msg)
		return
	}

	msg.Attempts++
	r.logger.Error("job failed",
		logger.String("job", job.Name()),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err))
	if msg.Attempts > r.cfg.RetryLimit {
		r.push(r.key("dlq"), msg)
		return
	}
	due := r.now().Add(r.cfg.RetryDelay)
	data, _ := json.Marshal(msg)
	if err := r.client.ZAdd(context.Background(), r.key("retry"), redis.Z{Score: float64(due.Unix()), Member: data}).Err(); err != nil {
		r.logger.Error("schedule retry failed", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) push(key string, msg Message) {
	data, _ := json.Marshal(msg)
	if err := r.client.LPush(context.Background(), key, data).Err(); err != nil {
		r.logger.Error("lpush failed", logger.String("key", key), logger.Error(err))
	}
}

// retryLoop moves due retries back onto the pending list.
func (r *RedisQueue) retryLoop(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		due, err := r.client.ZRangeByScore(ctx, r.key("retry"), &redis.ZRangeBy{
			Min: "-inf",
			Max: strconv.FormatInt(r.now().Unix(), 10),
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Error("fetch retries failed", logger.Error(err))
			}
			continue
		}
		for _, m := range due {
			pipe := r.client.TxPipeline()
			pipe.ZRem(ctx, r.key("retry"), m)
			pipe.LPush(ctx, r.key("messages"), m)
			if _, err := pipe.Exec(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("move retry failed", logger.Error(err))
			}
		}
	}
}

func (r *RedisQueue) key(suffix string) string { return r.keyPrefix + ":" + suffix }
