package usecase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/service/ratelimit"
	"SimEcon/pkg/persistence"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type ledgerOpts struct {
	floor   string
	ceiling string
	limiter ratelimit.Limiter
	dir     string
}

func newTestLedger(t *testing.T, o ledgerOpts) (*Ledger, *Journal, *testClock) {
	t.Helper()
	clock := &testClock{t: testStart}
	floor := decimal.Zero
	if o.floor != "" {
		floor = dec(o.floor)
	}
	ceiling := decimal.Zero
	if o.ceiling != "" {
		ceiling = dec(o.ceiling)
	}
	var balStore, txStore *persistence.Store
	if o.dir != "" {
		balStore = persistence.NewStore(o.dir, "balances.json")
		txStore = persistence.NewStore(o.dir, "transactions.json")
	}
	j := NewJournal(1000, 90*24*time.Hour, 8, txStore, nil, nil)
	l := NewLedger(LedgerConfig{Floor: floor, MaxBalance: ceiling, Shards: 8}, j, o.limiter, balStore, nil, nil)
	l.now = clock.now
	return l, j, clock
}

func requireBalance(t *testing.T, l *Ledger, actor models.ActorID, want string) {
	t.Helper()
	got := l.GetBalance(actor)
	require.Truef(t, got.Equal(dec(want)), "balance of %s = %s, want %s", actor, got, want)
}
