package queue

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// QueueConfig tunes workers and the retry schedule. Zero values take the
// defaults applied by NewRedisQueue.
type QueueConfig struct {
	Workers         int           // concurrent consumers
	RetryLimit      int           // retries before a message is dead-lettered
	RetryDelay      time.Duration // delay before the first retry, doubled per attempt
	MaxRetryDelay   time.Duration // ceiling for the doubled delay
	RetryPoll       time.Duration // how often due retries are moved back to work
	PollWait        time.Duration // BRPOP block time per worker iteration
	DeadLetterLimit int64         // newest dead letters kept
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 5 * time.Minute
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = c.RetryDelay
	}
	if c.RetryPoll <= 0 {
		c.RetryPoll = time.Second
	}
	if c.PollWait <= 0 {
		c.PollWait = time.Second
	}
	if c.DeadLetterLimit <= 0 {
		c.DeadLetterLimit = 1000
	}
	return c
}

// backoff is the wait before retry number attempt (1-based).
func (c QueueConfig) backoff(attempt int) time.Duration {
	d := c.RetryDelay
	for i := 1; i < attempt; i++ {
		if d >= c.MaxRetryDelay/2 {
			return c.MaxRetryDelay
		}
		d *= 2
	}
	if d > c.MaxRetryDelay {
		return c.MaxRetryDelay
	}
	return d
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// DeadLetter is a message that will not be retried.
type DeadLetter struct {
	Message  Message   `json:"message"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload []byte) (*T, error) {
	var result T
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &result, nil
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		if json.Valid(p) {
			return p, nil
		}
		return json.Marshal(string(p))
	default:
		return json.Marshal(payload)
	}
}
