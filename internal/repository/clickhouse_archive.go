package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	pkgch "SimEcon/pkg/clickhouse"
	"SimEcon/pkg/logger"
)

// DefaultArchiveTable is where rotated journal records are kept.
const DefaultArchiveTable = "simecon.tx_archive"

const archiveChunkSize = 2000

const archiveColumns = "id, actor, ts, type, from_actor, to_actor, amount, description, balance_after"

// ArchiveSchema returns the idempotent DDL for table.
func ArchiveSchema(table string) []string {
	stmts := make([]string, 0, 2)
	if db, _, ok := strings.Cut(table, "."); ok {
		stmts = append(stmts, "CREATE DATABASE IF NOT EXISTS "+db)
	}
	stmts = append(stmts, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id            UUID,
			actor         UUID,
			ts            DateTime64(3, 'UTC'),
			type          LowCardinality(String),
			from_actor    Nullable(UUID),
			to_actor      Nullable(UUID),
			amount        Decimal(18, 2),
			description   String,
			balance_after Decimal(18, 2)
		)
		ENGINE = ReplacingMergeTree
		PARTITION BY toYYYYMM(ts)
		ORDER BY (actor, ts, id)
	`, table))
	return stmts
}

// ClickHouseTransactionArchive stores journal records evicted by rotation.
// Rows are keyed by transaction id so retried batches collapse on merge.
type ClickHouseTransactionArchive struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
	l      *logger.Logger
}

func NewClickHouseTransactionArchive(client *pkgch.Client, table string, l *logger.Logger) repository.TransactionArchive {
	if table == "" {
		table = DefaultArchiveTable
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ClickHouseTransactionArchive{client: client, db: client.DB(), table: table, l: l}
}

func (s *ClickHouseTransactionArchive) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, ArchiveSchema(s.table))
}

func (s *ClickHouseTransactionArchive) StoreBatch(ctx context.Context, txs []*models.Transaction) error {
	for start := 0; start < len(txs); start += archiveChunkSize {
		end := min(start+archiveChunkSize, len(txs))
		q, args := insertBatch(s.table, txs[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("archive.store_batch failed",
				logger.String("table", s.table),
				logger.Int("rows", len(args)/9),
				logger.Error(err),
			)
			return fmt.Errorf("archive store: %w", err)
		}
	}
	return nil
}

// insertBatch builds one multi-row INSERT. Nil and zero-id records are skipped.
func insertBatch(table string, txs []*models.Transaction) (string, []interface{}) {
	values := make([]string, 0, len(txs))
	args := make([]interface{}, 0, len(txs)*9)
	for _, tx := range txs {
		if tx == nil || tx.ID == uuid.Nil {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			tx.ID,
			tx.Actor,
			tx.Timestamp.UTC(),
			string(tx.Type),
			tx.From,
			tx.To,
			tx.Amount,
			tx.Description,
			tx.BalanceAfter,
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, archiveColumns, strings.Join(values, ",")), args
}

// Query returns actor's archived records in [from, to], newest first.
func (s *ClickHouseTransactionArchive) Query(ctx context.Context, actor models.ActorID, from, to time.Time, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE actor = ? AND ts >= ? AND ts <= ?
		ORDER BY ts DESC
		LIMIT ?
	`, archiveColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, actor, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("archive query: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Transaction, 0, limit)
	for rows.Next() {
		var (
			tx      models.Transaction
			txType  string
			amount  decimal.Decimal
			balance decimal.Decimal
		)
		if err := rows.Scan(&tx.ID, &tx.Actor, &tx.Timestamp, &txType, &tx.From, &tx.To, &amount, &tx.Description, &balance); err != nil {
			return nil, fmt.Errorf("archive scan: %w", err)
		}
		tx.Type = models.TransactionType(txType)
		tx.Amount = models.RoundMoney(amount)
		tx.BalanceAfter = models.RoundMoney(balance)
		out = append(out, &tx)
	}
	return out, rows.Err()
}

func (s *ClickHouseTransactionArchive) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close leaves the shared client open; its owner closes it.
func (s *ClickHouseTransactionArchive) Close() error { return nil }
