package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/queue"
)

// BatchMessageType is the queue message type for ledger batches.
const BatchMessageType = "ledger.batch"

// BatchOperation is one queued ledger item. Op is deposit, withdraw or
// transfer; To is only read for transfers.
type BatchOperation struct {
	Op          string          `json:"op" validate:"required,oneof=deposit withdraw transfer"`
	Actor       models.ActorID  `json:"actor" validate:"actor"`
	To          models.ActorID  `json:"to,omitempty"`
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
}

type BatchCommand struct {
	Operations []BatchOperation `json:"operations" validate:"required,min=1,max=10000,dive"`
}

// BatchJob applies batch commands from the intake queue or the admin API.
type BatchJob struct {
	ledger *Ledger
	log    *logger.Logger
}

var _ queue.Job = (*BatchJob)(nil)

func NewBatchJob(ledger *Ledger, log *logger.Logger) *BatchJob {
	if log == nil {
		log = logger.Nop()
	}
	return &BatchJob{ledger: ledger, log: log}
}

func (j *BatchJob) Name() string { return "ledger-batch" }
func (j *BatchJob) Type() string { return BatchMessageType }

// Handle decodes and applies one command. Item failures are part of the
// result, not an error; only a malformed command is retried.
func (j *BatchJob) Handle(_ context.Context, payload []byte) error {
	cmd, err := queue.ParsePayload[BatchCommand](payload)
	if err != nil {
		return err
	}
	res, err := j.Apply(*cmd)
	if err != nil {
		return err
	}
	j.log.Info("batch_job.applied", logger.Int("total", res.Total), logger.Int("succeeded", res.Succeeded), logger.Int("failed", res.Failed))
	return nil
}

// Apply stages every operation into a fresh Batch and executes it. Nothing
// is applied when an operation is malformed.
func (j *BatchJob) Apply(cmd BatchCommand) (BatchResult, error) {
	b := NewBatch(j.ledger, j.log)
	for i, op := range cmd.Operations {
		switch op.Op {
		case "deposit":
			t, err := opType(op.Type, models.TxDeposit)
			if err != nil {
				return BatchResult{}, fmt.Errorf("operation %d: %w", i, err)
			}
			b.AddDeposit(op.Actor, op.Amount, t, op.Description)
		case "withdraw":
			t, err := opType(op.Type, models.TxWithdrawal)
			if err != nil {
				return BatchResult{}, fmt.Errorf("operation %d: %w", i, err)
			}
			b.AddWithdrawal(op.Actor, op.Amount, t, op.Description)
		case "transfer":
			b.AddTransfer(op.Actor, op.To, op.Amount, op.Description)
		default:
			return BatchResult{}, fmt.Errorf("operation %d: unknown op %q", i, op.Op)
		}
	}
	return b.Execute(), nil
}

func opType(s string, def models.TransactionType) (models.TransactionType, error) {
	if s == "" {
		return def, nil
	}
	t, ok := models.ParseTransactionType(s)
	if !ok {
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
	return t, nil
}
