package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
)

func TestBatchAppliesDepositsBeforeWithdrawalsAndTransfers(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	b := NewBatch(l, nil)
	x, y := uuid.New(), uuid.New()

	// queued in reverse order on purpose; execution order still funds x first
	b.AddTransfer(x, y, dec("20"), "")
	b.AddWithdrawal(x, dec("50"), models.TxShopPurchase, "")
	b.AddDeposit(x, dec("100"), models.TxSalary, "")

	res := b.Execute()
	assert.Equal(t, BatchResult{Total: 3, Succeeded: 3, DurationMs: res.DurationMs}, res)
	requireBalance(t, l, x, "30")
	requireBalance(t, l, y, "20")
	assert.Zero(t, b.Len())
}

func TestBatchPartialFailureKeepsAppliedItems(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	b := NewBatch(l, nil)
	x, y := uuid.New(), uuid.New()

	b.AddDeposit(x, dec("10"), models.TxSalary, "")
	b.AddWithdrawal(x, dec("25"), models.TxShopPurchase, "")
	b.AddTransfer(x, y, dec("5"), "")
	b.AddTransfer(y, y, dec("1"), "")

	res := b.Execute()
	require.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, res.Total, res.Succeeded+res.Failed)
	requireBalance(t, l, x, "5")
	requireBalance(t, l, y, "5")
	assert.Zero(t, b.Len())

	assert.Equal(t, BatchResult{}, b.Execute())
}

func TestBatchJobHandlesQueuedCommand(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	job := NewBatchJob(l, nil)
	x, y := uuid.New(), uuid.New()

	payload := fmt.Sprintf(`{"operations":[
		{"op":"transfer","actor":%q,"to":%q,"amount":"40"},
		{"op":"deposit","actor":%q,"amount":"100","type":"SALARY"},
		{"op":"withdraw","actor":%q,"amount":"500"}
	]}`, x, y, x, x)
	require.NoError(t, job.Handle(context.Background(), []byte(payload)))
	requireBalance(t, l, x, "60")
	requireBalance(t, l, y, "40")
	assert.Equal(t, BatchMessageType, job.Type())
}

func TestBatchJobRejectsMalformedCommandWithoutApplying(t *testing.T) {
	l, _, _ := newTestLedger(t, ledgerOpts{})
	job := NewBatchJob(l, nil)
	x := uuid.New()

	_, err := job.Apply(BatchCommand{Operations: []BatchOperation{
		{Op: "deposit", Actor: x, Amount: dec("10")},
		{Op: "deposit", Actor: x, Amount: dec("10"), Type: "BOGUS"},
	}})
	require.ErrorContains(t, err, "operation 1")
	requireBalance(t, l, x, "0")

	_, err = job.Apply(BatchCommand{Operations: []BatchOperation{{Op: "mint", Actor: x}}})
	require.ErrorContains(t, err, `unknown op "mint"`)

	assert.Error(t, job.Handle(context.Background(), []byte("not json")))
}
