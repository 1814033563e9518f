package repository

import (
	"context"
	"time"

	"SimEcon/internal/domain/models"
)

// TransactionPublisher streams journal records to downstream consumers.
type TransactionPublisher interface {
	Publish(ctx context.Context, tx *models.Transaction) error
	PublishBatch(ctx context.Context, txs []*models.Transaction) error
	Close() error
}

// TransactionArchive is long-term journal storage beyond the in-memory window.
type TransactionArchive interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreBatch(ctx context.Context, txs []*models.Transaction) error
	Query(ctx context.Context, actor models.ActorID, from, to time.Time, limit int) ([]*models.Transaction, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordTransaction(txType, result string)
	RecordRateLimited(class string)
	RecordLatency(op string, seconds float64)
	RecordFlush(subsystem string, err error)
	RecordCycle(phase string, multiplier float64)
	RecordMoneySupply(total, inflation float64)
	RecordLoan(event string)
	RecordQuote(side string)
	RecordRelay(backend string, n int)
	RecordError(kind string)
}
