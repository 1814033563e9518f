package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"SimEcon/pkg/logger"
)

// requeueDue moves up to ARGV[2] retries due by ARGV[1] (unix ms) from the
// schedule back onto the work list in one step, so two processes sharing a
// prefix never requeue the same entry twice.
var requeueDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

const requeueBatch = 100

type keys struct {
	work, retry, dead string
}

func newKeys(prefix string) keys {
	return keys{work: prefix + ":messages", retry: prefix + ":retry", dead: prefix + ":dlq"}
}

// RedisQueue is a Redis list work queue. Failed messages wait in a sorted
// set scored by their due time, and are dead-lettered with their last
// error once RetryLimit retries are spent.
type RedisQueue struct {
	log    *logger.Logger
	cfg    QueueConfig
	client redis.UniversalClient
	keys   keys
	now    func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix namespaces the queue's keys.
func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) { r.keys = newKeys(prefix) }
}

// WithClock replaces time.Now for retry scheduling.
func WithClock(now func() time.Time) Option {
	return func(r *RedisQueue) { r.now = now }
}

// NewRedisQueue creates a stopped queue; register jobs, then Start.
func NewRedisQueue(lgr *logger.Logger, cfg QueueConfig, client redis.UniversalClient, opts ...Option) *RedisQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	r := &RedisQueue{
		log:    lgr,
		cfg:    cfg.withDefaults(),
		client: client,
		keys:   newKeys("simecon:queue"),
		now:    time.Now,
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterJobs registers each job under its message type. A type that is
// already taken keeps its first job.
func (r *RedisQueue) RegisterJobs(jobs ...Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range jobs {
		if prev, taken := r.jobs[job.Type()]; taken {
			r.log.Warn("queue.type already taken",
				logger.String("type", job.Type()), logger.String("job", job.Name()), logger.String("holder", prev.Name()))
			continue
		}
		r.jobs[job.Type()] = job
		r.log.Info("queue.job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
	}
}

// RegisterJob registers a single job.
func (r *RedisQueue) RegisterJob(job Job) { r.RegisterJobs(job) }

// Start pings Redis and launches the consumers and the retry pump.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.consume(ctx, i)
	}
	r.wg.Add(1)
	go r.pump(ctx)
	r.log.Info("queue.started", logger.Int("workers", r.cfg.Workers), logger.String("work_key", r.keys.work))
	return nil
}

// Stop cancels the consumers and waits for in-flight messages within ctx.
// Messages interrupted by the stop go back to the work list.
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
		r.log.Warn("queue.stop timed out", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.log.Info("queue.stopped")
		return nil
	}
}

// Enqueue wraps payload in a Message for the job registered under msgType.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: r.now()})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.keys.work, data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// DeadLetters returns the number of dead-lettered messages.
func (r *RedisQueue) DeadLetters(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.keys.dead).Result()
}

// ListDeadLetters returns up to n dead letters, newest first.
func (r *RedisQueue) ListDeadLetters(ctx context.Context, n int64) ([]DeadLetter, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, r.keys.dead, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, s := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(s), &dl); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, nil
}

// Scheduled returns the number of messages waiting for a retry.
func (r *RedisQueue) Scheduled(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, r.keys.retry).Result()
}

func (r *RedisQueue) consume(ctx context.Context, id int) {
	defer r.wg.Done()
	r.log.Debug("queue.consumer started", logger.Int("worker_id", id))
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, r.cfg.PollWait, r.keys.work).Result()
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		default:
			r.log.Error("queue.brpop failed", logger.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.log.Error("queue.undecodable message dropped", logger.Error(err), logger.Int("bytes", len(res[1])))
			continue
		}
		r.dispatch(ctx, msg)
	}
}

func (r *RedisQueue) dispatch(ctx context.Context, msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.bury(msg, "no job registered for type "+msg.Type)
		return
	}

	err := job.Handle(ctx, msg.Payload)
	switch {
	case err == nil:
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		r.putBack(msg)
	default:
		r.fail(msg, job, err)
	}
}

// fail schedules the next attempt or dead-letters msg.
func (r *RedisQueue) fail(msg Message, job Job, err error) {
	msg.Attempts++
	msg.LastError = err.Error()
	r.log.Warn("queue.message failed",
		logger.String("id", msg.ID), logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts), logger.Error(err))

	if msg.Attempts > r.cfg.RetryLimit {
		r.bury(msg, fmt.Sprintf("gave up after %d attempts", msg.Attempts))
		return
	}
	due := r.now().Add(r.cfg.backoff(msg.Attempts))
	data, mErr := json.Marshal(msg)
	if mErr != nil {
		r.log.Error("queue.encode retry failed", logger.Error(mErr))
		return
	}
	if zErr := r.client.ZAdd(context.Background(), r.keys.retry, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: data,
	}).Err(); zErr != nil {
		r.log.Error("queue.schedule retry failed", logger.String("id", msg.ID), logger.Error(zErr))
	}
}

// putBack returns msg to the consuming end of the work list.
func (r *RedisQueue) putBack(msg Message) {
	data, err := json.Marshal(msg)
	if err == nil {
		err = r.client.RPush(context.Background(), r.keys.work, data).Err()
	}
	if err != nil {
		r.log.Error("queue.put back failed", logger.String("id", msg.ID), logger.Error(err))
	}
}

// bury pushes msg onto the dead-letter list, trimmed to DeadLetterLimit.
func (r *RedisQueue) bury(msg Message, reason string) {
	data, err := json.Marshal(DeadLetter{Message: msg, Reason: reason, FailedAt: r.now()})
	if err != nil {
		r.log.Error("queue.encode dead letter failed", logger.Error(err))
		return
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(context.Background(), r.keys.dead, data)
	pipe.LTrim(context.Background(), r.keys.dead, 0, r.cfg.DeadLetterLimit-1)
	if _, err := pipe.Exec(context.Background()); err != nil {
		r.log.Error("queue.dead letter failed", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	r.log.Error("queue.dead lettered", logger.String("id", msg.ID), logger.String("type", msg.Type),
		logger.String("reason", reason), logger.String("last_error", msg.LastError))
}

func (r *RedisQueue) pump(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.RetryPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.requeueDue(ctx)
		}
	}
}

// requeueDue drains every retry that is due, a batch at a time.
func (r *RedisQueue) requeueDue(ctx context.Context) {
	now := strconv.FormatInt(r.now().UnixMilli(), 10)
	for ctx.Err() == nil {
		n, err := requeueDue.Run(ctx, r.client, []string{r.keys.retry, r.keys.work}, now, requeueBatch).Int()
		if err != nil {
			if ctx.Err() == nil {
				r.log.Error("queue.requeue failed", logger.Error(err))
			}
			return
		}
		if n > 0 {
			r.log.Debug("queue.retries requeued", logger.Int("count", n))
		}
		if n < requeueBatch {
			return
		}
	}
}
