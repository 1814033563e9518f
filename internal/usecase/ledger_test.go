package usecase

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/service/ratelimit"
)

func TestDepositIntoFreshAccount(t *testing.T) {
	l, j, _ := newTestLedger(t, ledgerOpts{})
	actor := uuid.New()

	require.NoError(t, l.Deposit(actor, dec("100"), models.TxDeposit, "payday"))

	requireBalance(t, l, actor, "100")
	txs := j.Recent(actor, 10)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].BalanceAfter.Equal(dec("100")))
	assert.True(t, txs[0].Amount.Equal(dec("100")))
	assert.Equal(t, models.TxDeposit, txs[0].Type)
	assert.True(t, l.tracker.IsDirty())
}

func TestNegativeAmountsNeverMutate(t *testing.T) {
	l, j, _ := newTestLedger(t, ledgerOpts{})
	a, b := uuid.New(), uuid.New()
	require.NoError(t, l.Deposit(a, dec("50"), models.TxDeposit, ""))

	assert.ErrorIs(t, l.Deposit(a, dec("-1"), models.TxDeposit, ""), models.ErrNegativeAmount)
	assert.ErrorIs(t, l.Withdraw(a, dec("-1"), models.TxWithdrawal, ""), models.ErrNegativeAmount)
	assert.ErrorIs(t, l.Transfer(a, b, dec("-1"), ""), models.ErrNegativeAmount)

	requireBalance(t, l, a, "50")
	requireBalance(t, l, b, "0")
	assert.Len(t, j.Recent(a, 10), 1)
}

func TestWithdrawRespectsFloor(t *testing.T) {
	cases := []struct {
		name    string
		floor   string
		balance string
		amount  string
		ok      bool
	}{
		{"exact balance", "0", "100", "100", true},
		{"one cent over", "0", "100", "100.01", false},
		{"into overdraft", "-5000", "100", "5100", true},
		{"past overdraft", "-5000", "100", "5100.01", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l, j, _ := newTestLedger(t, ledgerOpts{floor: c.floor})
			actor := uuid.New()
			require.NoError(t, l.Deposit(actor, dec(c.balance), models.TxDeposit, ""))

			err := l.Withdraw(actor, dec(c.amount), models.TxWithdrawal, "")
			if c.ok {
				require.NoError(t, err)
				requireBalance(t, l, actor, dec(c.balance).Sub(dec(c.amount)).String())
				assert.Len(t, j.Recent(actor, 10), 2)
				return
			}
			assert.ErrorIs(t, err, models.ErrInsufficientFunds)
			requireBalance(t, l, actor, c.balance)
			assert.Len(t, j.Recent(actor, 10), 1)
		})
	}
}

func TestTransferInsufficientLeavesBothUntouched(t *testing.T) {
	l, j, _ := newTestLedger(t, ledgerOpts{})
	x, y := uuid.New(), uuid.New()
	require.NoError(t, l.Deposit(x, dec("40"), models.TxDeposit, ""))

	err := l.Transfer(x, y, dec("50"), "rent")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	requireBalance(t, l, x, "40")
	requireBalance(t, l, y, "0")
	assert.Empty(t, j.ByType(x, models.TxTransfer))
	assert.Empty(t, j.Recent(y, 10))
}

func TestTransferMovesFundsAndJournalsBothSides(t *testing.T) {
	l, j, _ := newTestLedger(t, ledgerOpts{})
	x, y := uuid.New(), uuid.New()
	require.NoError(t, l.Deposit(x, dec("100"), models.TxDeposit, ""))

	require.NoError(t, l.Transfer(x, y, dec("30.50"), "rent"))

	requireBalance(t, l, x, "69.50")
	requireBalance(t, l, y, "30.50")
	out := j.ByType(x, models.TxTransfer)
	in := j.ByType(y, models.TxTransfer)
	require.Len(t, out, 1)
	require.Len(t, in, 1)
	assert.True(t, out[0].Amount.Equal(dec("-30.50")))
	assert.Equal(t, y, *out[0].To)
	assert.Equal(t, x, *in[0].From)
}

func TestTransferToSelfRejected(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	x := uuid.New()
	require.NoError(t, l.Deposit(x, dec("10"), models.TxDeposit, ""))
	assert.ErrorIs(t, l.Transfer(x, x, dec("1"), ""), models.ErrSelfTransfer)
	requireBalance(t, l, x, "10")
}

func TestTransferWindowWhenDepositFails(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{ceiling: "1000"})
	x, y := uuid.New(), uuid.New()
	require.NoError(t, l.Deposit(x, dec("500"), models.TxDeposit, ""))
	require.NoError(t, l.Deposit(y, dec("900"), models.TxDeposit, ""))

	err := l.Transfer(x, y, dec("200"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTransferIncomplete)
	assert.ErrorIs(t, err, models.ErrBalanceCeiling)

	// withdrawn but never deposited
	requireBalance(t, l, x, "300")
	requireBalance(t, l, y, "900")
}

func TestSetBalanceClampsAndJournalsDifference(t *testing.T) {
	l, j, _ := newTestLedger(t, ledgerOpts{})
	actor := uuid.New()
	require.NoError(t, l.Deposit(actor, dec("80"), models.TxDeposit, ""))

	l.SetBalance(actor, dec("-20"), "", "admin reset")
	requireBalance(t, l, actor, "0")

	last := j.Recent(actor, 1)[0]
	assert.Equal(t, models.TxAdminSet, last.Type)
	assert.True(t, last.Amount.Equal(dec("-80")))
}

func TestChargeIgnoresFloor(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{floor: "-100"})
	actor := uuid.New()
	require.NoError(t, l.Charge(actor, dec("250"), models.TxOverdraftFee, "interest"))
	requireBalance(t, l, actor, "-250")
}

func TestAccountLifecycle(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	actor := uuid.New()

	assert.False(t, l.Exists(actor))
	require.NoError(t, l.CreateAccount(actor))
	assert.ErrorIs(t, l.CreateAccount(actor), models.ErrAccountExists)
	assert.True(t, l.Exists(actor))
	require.NoError(t, l.DeleteAccount(actor))
	assert.ErrorIs(t, l.DeleteAccount(actor), models.ErrAccountNotFound)
}

func TestRateLimitAppliesOnlyToActorInitiated(t *testing.T) {
	limiter := ratelimit.NewSlidingWindow(map[string]ratelimit.Policy{
		models.RateClassCommand: {Max: 2, Window: time.Minute},
	}, 4)
	l, _, _ := newTestLedger(t, ledgerOpts{limiter: limiter})
	actor := uuid.New()

	require.NoError(t, l.Deposit(actor, dec("1"), models.TxDeposit, ""))
	require.NoError(t, l.Deposit(actor, dec("1"), models.TxDeposit, ""))
	assert.ErrorIs(t, l.Deposit(actor, dec("1"), models.TxDeposit, ""), models.ErrRateLimited)

	// system postings are never throttled
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Deposit(actor, dec("1"), models.TxInterest, ""))
	}
	requireBalance(t, l, actor, "7")
}

// slowLimiter widens the gap between a window check and its record, as a
// Redis round trip does.
type slowLimiter struct {
	ratelimit.Limiter
}

func (s slowLimiter) Allow(actor models.ActorID, class string) bool {
	time.Sleep(5 * time.Millisecond)
	return s.Limiter.Allow(actor, class)
}

func TestConcurrentRequestsRespectRateLimit(t *testing.T) {
	limiter := slowLimiter{ratelimit.NewSlidingWindow(map[string]ratelimit.Policy{
		models.RateClassCommand: {Max: 10, Window: time.Hour},
	}, 4)}
	l, _, _ := newTestLedger(t, ledgerOpts{limiter: limiter})
	actor := uuid.New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, limited := 0, 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Deposit(actor, dec("1"), models.TxDeposit, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, models.ErrRateLimited):
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, 40, limited)
	requireBalance(t, l, actor, "10")
}

func TestFailedOperationSpendsRateLimitSlot(t *testing.T) {
	limiter := ratelimit.NewSlidingWindow(map[string]ratelimit.Policy{
		models.RateClassCommand: {Max: 2, Window: time.Minute},
	}, 1)
	l, _, _ := newTestLedger(t, ledgerOpts{limiter: limiter})
	actor := uuid.New()

	assert.ErrorIs(t, l.Withdraw(actor, dec("5"), models.TxWithdrawal, ""), models.ErrInsufficientFunds)
	require.NoError(t, l.Deposit(actor, dec("5"), models.TxDeposit, ""))
	assert.ErrorIs(t, l.Withdraw(actor, dec("5"), models.TxWithdrawal, ""), models.ErrRateLimited)
	requireBalance(t, l, actor, "5")
}

func TestObserversSeeCommittedTransactions(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	var seen []models.Transaction
	l.Subscribe(func(tx models.Transaction) {
		// observers run outside the lock, so reading the ledger is safe
		assert.True(t, l.GetBalance(tx.Actor).Equal(tx.BalanceAfter))
		seen = append(seen, tx)
	})
	x, y := uuid.New(), uuid.New()
	require.NoError(t, l.Deposit(x, dec("10"), models.TxDeposit, ""))
	require.NoError(t, l.Transfer(x, y, dec("4"), ""))
	assert.Len(t, seen, 3)
}

func TestConcurrentDepositsNoLostUpdates(t *testing.T) {
	l, j, _ := newTestLedger(t, ledgerOpts{})
	actor := uuid.New()
	others := make([]models.ActorID, 8)
	for i := range others {
		others[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.Deposit(actor, dec("1.25"), models.TxSalary, "")
			_ = l.Deposit(others[i%len(others)], dec("1"), models.TxSalary, "")
		}(i)
	}
	wg.Wait()

	requireBalance(t, l, actor, "250")
	assert.Len(t, j.Recent(actor, 0), 200)
}

func TestConcurrentWithdrawNeverBreachesFloor(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	actor := uuid.New()
	require.NoError(t, l.Deposit(actor, dec("100"), models.TxSalary, ""))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Withdraw(actor, dec("7"), models.TxShopPurchase, ""); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, models.ErrInsufficientFunds) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 14, ok)
	requireBalance(t, l, actor, "2")
}

func TestLedgerFlushAndReload(t *testing.T) {
	dir := t.TempDir()
	l, j, _ := newTestLedger(t, ledgerOpts{dir: dir})
	actor := uuid.New()
	require.NoError(t, l.Deposit(actor, dec("12.34"), models.TxDeposit, ""))
	require.NoError(t, l.Flush())
	require.NoError(t, j.Flush())
	assert.False(t, l.tracker.IsDirty())

	l2, j2, _ := newTestLedger(t, ledgerOpts{dir: dir})
	require.NoError(t, l2.Load())
	require.NoError(t, j2.Load())
	requireBalance(t, l2, actor, "12.34")
	assert.Len(t, j2.Recent(actor, 5), 1)
	assert.True(t, l2.Health().Healthy)
	assert.Equal(t, 1, l2.Health().Records)
}
