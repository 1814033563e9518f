package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SimEcon/internal/domain/models"
	drepo "SimEcon/internal/domain/repository"
	"SimEcon/pkg/logger"
)

// Relay backends.
const (
	RelayNone       = "none"
	RelayKafka      = "kafka"
	RelayClickHouse = "clickhouse"
)

// TransactionRelay forwards committed transactions to a downstream backend
// in batches. Observe never blocks the ledger: a full buffer drops.
type TransactionRelay struct {
	pub     drepo.TransactionPublisher
	archive drepo.TransactionArchive
	metrics drepo.Metrics
	log     *logger.Logger
	backend string
	batchSz int
	batchTO time.Duration

	ch      chan *models.Transaction
	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewTransactionRelay(
	backend string,
	pub drepo.TransactionPublisher,
	archive drepo.TransactionArchive,
	bufferSize, batchSz int,
	batchTO time.Duration,
	metrics drepo.Metrics,
	log *logger.Logger,
) *TransactionRelay {
	if log == nil {
		log = logger.Nop()
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	if batchSz < 1 {
		batchSz = 1
	}
	if batchTO <= 0 {
		batchTO = time.Second
	}
	return &TransactionRelay{
		pub:     pub,
		archive: archive,
		metrics: orNop(metrics),
		log:     log,
		backend: backend,
		batchSz: batchSz,
		batchTO: batchTO,
		ch:      make(chan *models.Transaction, bufferSize),
	}
}

func (r *TransactionRelay) Backend() string { return r.backend }

// Observe is a ledger TransactionObserver.
func (r *TransactionRelay) Observe(tx models.Transaction) {
	if r.backend == RelayNone || r.backend == "" {
		return
	}
	select {
	case r.ch <- &tx:
	default:
		r.metrics.RecordError("relay_buffer_full")
	}
}

// Start launches the batching loop. It is a no-op for the none backend.
func (r *TransactionRelay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.backend == RelayNone || r.backend == "" {
		return
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx)
	r.log.Info("relay.start", logger.String("backend", r.backend), logger.Int("batch_size", r.batchSz))
}

func (r *TransactionRelay) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.batchTO)
	defer ticker.Stop()
	batch := make([]*models.Transaction, 0, r.batchSz)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := r.ProcessBatch(ctx, batch); err != nil {
			r.log.Error("relay.batch failed", logger.Int("transactions", len(batch)), logger.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// drain what is already buffered, then stop
			for {
				select {
				case tx := <-r.ch:
					batch = append(batch, tx)
					if len(batch) >= r.batchSz {
						flush(context.Background())
					}
				default:
					flush(context.Background())
					return
				}
			}
		case tx := <-r.ch:
			batch = append(batch, tx)
			if len(batch) >= r.batchSz {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// Stop flushes the buffer and waits for the loop to exit.
func (r *TransactionRelay) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	cancel()
	<-done
}

// ProcessBatch writes txs to the configured backend.
func (r *TransactionRelay) ProcessBatch(ctx context.Context, txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	start := time.Now()
	var err error
	switch r.backend {
	case RelayKafka:
		err = r.pub.PublishBatch(ctx, txs)
	case RelayClickHouse:
		err = r.archive.StoreBatch(ctx, txs)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}
	if err != nil {
		r.metrics.RecordError("relay_batch")
		return fmt.Errorf("relay batch: %w", err)
	}
	r.metrics.RecordRelay(r.backend, len(txs))
	r.metrics.RecordLatency("relay_batch", time.Since(start).Seconds())
	return nil
}

// Close stops the loop and closes the backends.
func (r *TransactionRelay) Close() {
	r.Stop()
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.archive != nil {
		_ = r.archive.Close()
	}
}
