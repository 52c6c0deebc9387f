/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL for the ingestion write path, the dashboard
 * query surface, and the aggregate analytics queries.
 *
 * Schema notes:
 * - `receiver` and `raw_body` are generated columns mirroring `recipient`
 *   and `raw_message`. Two downstream readers were written against different
 *   column names for the same logical field; the mirror lives in the store so
 *   both names always carry the same value without duplicated application
 *   logic.
 * - Reference idempotency is enforced by a partial unique index on
 *   `external_reference`; messages without a reference are deduplicated by a
 *   composite unique index on `(occurred_at, raw_message)`. Either
 *   violation surfaces as ErrDuplicateReference.
 *
 * @dependencies
 * - context, errors, fmt, strings, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("duplicate transaction reference")
)

const uniqueViolationCode = "23505"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS transactions (
	id UUID PRIMARY KEY,
	external_reference TEXT,
	category TEXT NOT NULL,
	amount BIGINT NOT NULL CHECK (amount >= 0),
	fee BIGINT NOT NULL DEFAULT 0,
	recipient TEXT,
	receiver TEXT GENERATED ALWAYS AS (recipient) STORED,
	occurred_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'completed',
	description TEXT NOT NULL DEFAULT '',
	raw_message TEXT NOT NULL,
	raw_body TEXT GENERATED ALWAYS AS (raw_message) STORED,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_reference
	ON transactions (external_reference) WHERE external_reference IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_transactions_dedup
	ON transactions (occurred_at, raw_message);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions (category);
CREATE INDEX IF NOT EXISTS idx_transactions_occurred_at ON transactions (occurred_at);
CREATE INDEX IF NOT EXISTS idx_transactions_amount ON transactions (amount);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status);

CREATE TABLE IF NOT EXISTS unprocessed_sms (
	id UUID PRIMARY KEY,
	raw_message TEXT NOT NULL,
	reason TEXT NOT NULL,
	received_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
// Called once at bootstrap.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schemaDDL)
	return err
}

// CreateTransaction inserts a single transaction. Uniqueness is enforced by
// the store, not by an application-side pre-check: two identical messages
// ingested concurrently both reach the INSERT and exactly one wins. The
// loser's constraint violation is mapped to ErrDuplicateReference.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
			(id, external_reference, category, amount, fee, recipient, occurred_at, status, description, raw_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, query,
		tx.ID, tx.ExternalReference, tx.Category, tx.Amount, tx.Fee,
		tx.Counterparty, tx.OccurredAt, tx.Status, tx.Description,
		tx.RawMessage, tx.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// CreateUnprocessedEntry appends to the operator-facing failure log.
func (r *PostgresRepository) CreateUnprocessedEntry(ctx context.Context, entry *domain.UnprocessedEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var receivedAt *time.Time
	if !entry.ReceivedAt.IsZero() {
		receivedAt = &entry.ReceivedAt
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO unprocessed_sms (id, raw_message, reason, received_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.RawMessage, entry.Reason, receivedAt, entry.CreatedAt)
	return err
}

const transactionColumns = `id, external_reference, category, amount, fee, recipient, occurred_at, status, description, raw_message, created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID, &tx.ExternalReference, &tx.Category, &tx.Amount, &tx.Fee,
		&tx.Counterparty, &tx.OccurredAt, &tx.Status, &tx.Description,
		&tx.RawMessage, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// appendFilterClauses writes the WHERE conditions for a filter onto sb,
// appending one positional arg per condition. Shared by the listing and
// counting queries so the two can never disagree about what a filter matches.
func appendFilterClauses(sb *strings.Builder, args []interface{}, filter domain.TransactionFilter) []interface{} {
	add := func(clause string, value interface{}) {
		args = append(args, value)
		fmt.Fprintf(sb, " AND %s $%d", clause, len(args))
	}

	if filter.Category != "" {
		add("category =", string(filter.Category))
	}
	if filter.Status != "" {
		add("status =", filter.Status)
	}
	if filter.StartDate != nil {
		add("occurred_at >=", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("occurred_at <=", *filter.EndDate)
	}
	if filter.MinAmount != nil {
		add("amount >=", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		add("amount <=", *filter.MaxAmount)
	}
	return args
}

// buildListQuery assembles the filtered listing query. Kept separate from the
// pool call so the WHERE assembly is unit-testable without a database.
func buildListQuery(filter domain.TransactionFilter, opts domain.ListOptions) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT " + transactionColumns + " FROM transactions WHERE 1=1")
	args := appendFilterClauses(&sb, make([]interface{}, 0, 8), filter)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " ORDER BY occurred_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	return sb.String(), args
}

// buildCountQuery assembles the count twin of buildListQuery.
func buildCountQuery(filter domain.TransactionFilter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM transactions WHERE 1=1")
	args := appendFilterClauses(&sb, make([]interface{}, 0, 6), filter)
	return sb.String(), args
}

// ListTransactions returns transactions matching the filter, newest first.
func (r *PostgresRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter, opts domain.ListOptions) ([]domain.Transaction, error) {
	query, args := buildListQuery(filter, opts)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// FindTransactionByID retrieves one transaction by its internal UUID.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// FindTransactionByReference retrieves one transaction by its external reference.
func (r *PostgresRepository) FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE external_reference = upper(btrim($1))", reference)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// SearchTransactions runs a LIKE search across the text columns, newest first.
func (r *PostgresRepository) SearchTransactions(ctx context.Context, query string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	term := "%" + strings.TrimSpace(query) + "%"
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE description ILIKE $1
			OR recipient ILIKE $1
			OR external_reference ILIKE $1
			OR category ILIKE $1
			OR raw_message ILIKE $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, term, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListUnprocessedEntries returns the failure log, newest first.
func (r *PostgresRepository) ListUnprocessedEntries(ctx context.Context, opts domain.ListOptions) ([]domain.UnprocessedEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, raw_message, reason, received_at, created_at
		FROM unprocessed_sms
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.UnprocessedEntry
	for rows.Next() {
		var entry domain.UnprocessedEntry
		var receivedAt *time.Time
		if err := rows.Scan(&entry.ID, &entry.RawMessage, &entry.Reason, &receivedAt, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if receivedAt != nil {
			entry.ReceivedAt = *receivedAt
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// incomeCategories is the SQL-side twin of domain.Category.IsIncome.
const incomeCategories = `('INCOMING_MONEY', 'BANK_DEPOSIT')`

// GetStatistics computes the dashboard headline numbers in two aggregate
// queries: all-time totals plus the current-month slice.
func (r *PostgresRepository) GetStatistics(ctx context.Context) (*domain.Statistics, error) {
	var stats domain.Statistics
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN category IN `+incomeCategories+` THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN category NOT IN `+incomeCategories+` THEN amount ELSE 0 END), 0),
			COALESCE(SUM(amount), 0)
		FROM transactions
	`).Scan(&stats.TotalTransactions, &stats.MoneyIn, &stats.MoneyOut, &stats.TotalVolume)
	if err != nil {
		return nil, err
	}
	stats.TotalBalance = stats.MoneyIn - stats.MoneyOut

	err = r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN category IN `+incomeCategories+` THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN category NOT IN `+incomeCategories+` THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE date_trunc('month', occurred_at) = date_trunc('month', now())
	`).Scan(&stats.ThisMonth.Transactions, &stats.ThisMonth.Income, &stats.ThisMonth.Expenses)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetCategorySummaries aggregates count/total/average per category for the
// summary chart, largest volume first.
func (r *PostgresRepository) GetCategorySummaries(ctx context.Context) ([]domain.CategorySummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category, COUNT(*), COALESCE(SUM(amount), 0), COALESCE(AVG(amount), 0)::BIGINT
		FROM transactions
		GROUP BY category
		ORDER BY SUM(amount) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.CategorySummary
	for rows.Next() {
		var s domain.CategorySummary
		if err := rows.Scan(&s.Category, &s.Count, &s.TotalAmount, &s.AvgAmount); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetMonthlyAnalytics returns per-month trend points in chronological order.
func (r *PostgresRepository) GetMonthlyAnalytics(ctx context.Context) ([]domain.MonthlyPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			to_char(occurred_at, 'YYYY-MM') AS month,
			COUNT(*),
			COALESCE(SUM(CASE WHEN category IN `+incomeCategories+` THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN category NOT IN `+incomeCategories+` THEN amount ELSE 0 END), 0),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(fee), 0)
		FROM transactions
		GROUP BY to_char(occurred_at, 'YYYY-MM')
		ORDER BY month
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.MonthlyPoint
	for rows.Next() {
		var p domain.MonthlyPoint
		if err := rows.Scan(&p.Month, &p.TransactionCount, &p.Income, &p.Expenses, &p.TotalVolume, &p.TotalFees); err != nil {
			return nil, err
		}
		p.NetFlow = p.Income - p.Expenses
		points = append(points, p)
	}
	return points, rows.Err()
}

// GetHourlyDistribution returns all 24 hour-of-day buckets, zero-filled for
// hours with no transactions.
func (r *PostgresRepository) GetHourlyDistribution(ctx context.Context) ([]domain.HourlyPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			EXTRACT(HOUR FROM occurred_at)::INT AS hour,
			COUNT(*),
			COALESCE(SUM(amount), 0),
			COALESCE(AVG(amount), 0)::BIGINT
		FROM transactions
		GROUP BY EXTRACT(HOUR FROM occurred_at)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byHour := make(map[int]domain.HourlyPoint, 24)
	for rows.Next() {
		var p domain.HourlyPoint
		if err := rows.Scan(&p.Hour, &p.TransactionCount, &p.TotalAmount, &p.AvgAmount); err != nil {
			return nil, err
		}
		byHour[p.Hour] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	points := make([]domain.HourlyPoint, 0, 24)
	for hour := 0; hour < 24; hour++ {
		if p, ok := byHour[hour]; ok {
			points = append(points, p)
		} else {
			points = append(points, domain.HourlyPoint{Hour: hour})
		}
	}
	return points, nil
}

// CountTransactions counts rows matching the filter. A zero filter counts
// the whole table, which is what the health endpoint uses as a cheap
// liveness check against the store.
func (r *PostgresRepository) CountTransactions(ctx context.Context, filter domain.TransactionFilter) (int64, error) {
	query, args := buildCountQuery(filter)
	var count int64
	err := r.db.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}
