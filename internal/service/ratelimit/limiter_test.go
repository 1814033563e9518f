package ratelimit

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*SlidingWindow, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewSlidingWindow(map[string]Policy{
		models.RateClassTransfer: {Max: 10, Window: time.Second},
		models.RateClassCommand:  {Max: 3, Window: time.Minute},
	}, 8)
	l.now = clock.now
	return l, clock
}

func TestTryAcquireCapsWithinWindow(t *testing.T) {
	l, clock := newTestLimiter()
	actor := uuid.New()

	for i := 0; i < 10; i++ {
		require.True(t, l.TryAcquire(actor, models.RateClassTransfer), "attempt %d", i)
		clock.advance(10 * time.Millisecond)
	}
	assert.False(t, l.TryAcquire(actor, models.RateClassTransfer))

	clock.advance(time.Second)
	assert.True(t, l.TryAcquire(actor, models.RateClassTransfer))
}

func TestWindowSlidesInsteadOfResetting(t *testing.T) {
	l, clock := newTestLimiter()
	actor := uuid.New()

	l.Record(actor, models.RateClassCommand)
	clock.advance(30 * time.Second)
	l.Record(actor, models.RateClassCommand)
	l.Record(actor, models.RateClassCommand)
	assert.False(t, l.Allow(actor, models.RateClassCommand))

	// first stamp leaves the window, the other two remain
	clock.advance(31 * time.Second)
	assert.True(t, l.Allow(actor, models.RateClassCommand))
	l.Record(actor, models.RateClassCommand)
	assert.False(t, l.Allow(actor, models.RateClassCommand))
}

func TestActorsAndClassesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	a, b := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		l.Record(a, models.RateClassCommand)
	}
	assert.False(t, l.Allow(a, models.RateClassCommand))
	assert.True(t, l.Allow(b, models.RateClassCommand))
	assert.True(t, l.Allow(a, models.RateClassTransfer))
	assert.True(t, l.TryAcquire(a, "unknown"))
}

func TestCleanupEvictsIdleKeys(t *testing.T) {
	l, clock := newTestLimiter()
	idle, busy := uuid.New(), uuid.New()

	l.Record(idle, models.RateClassTransfer)
	clock.advance(20 * time.Minute)
	l.Record(busy, models.RateClassTransfer)

	assert.Equal(t, 1, l.Cleanup(10*time.Minute))
	assert.Equal(t, 1, l.Len())
}

func TestConcurrentAcquireNeverExceedsMax(t *testing.T) {
	l := NewSlidingWindow(map[string]Policy{models.RateClassTransfer: {Max: 10, Window: time.Hour}}, 4)
	actor := uuid.New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire(actor, models.RateClassTransfer) {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, granted)
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedisLimiter(client, "simecon-test-"+uuid.NewString(), map[string]Policy{
		models.RateClassTransfer: {Max: 2, Window: time.Minute},
	}, nil)
	actor := uuid.New()

	assert.True(t, l.TryAcquire(actor, models.RateClassTransfer))
	assert.True(t, l.TryAcquire(actor, models.RateClassTransfer))
	assert.False(t, l.TryAcquire(actor, models.RateClassTransfer))
	assert.False(t, l.Allow(actor, models.RateClassTransfer))
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})
	defer client.Close()

	l := NewRedisLimiter(client, "x", map[string]Policy{models.RateClassTransfer: {Max: 1, Window: time.Minute}}, nil)
	assert.True(t, l.TryAcquire(uuid.New(), models.RateClassTransfer))
}
