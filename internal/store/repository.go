/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the MoMo analytics service. The
 * interface decouples the ingestion coordinator and API layer from the
 * PostgreSQL implementation, making both straightforward to test with an
 * in-memory fake.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: The service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Ingestion write path. CreateTransaction returns ErrDuplicateReference
	// when the store's uniqueness constraints reject the row; the caller
	// treats that as an idempotent skip, not a failure.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	CreateUnprocessedEntry(ctx context.Context, entry *domain.UnprocessedEntry) error

	// Read-only query surface consumed by the dashboard. Transactions are
	// immutable after creation, so these may run with arbitrary concurrency.
	ListTransactions(ctx context.Context, filter domain.TransactionFilter, opts domain.ListOptions) ([]domain.Transaction, error)
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	SearchTransactions(ctx context.Context, query string, limit int) ([]domain.Transaction, error)
	ListUnprocessedEntries(ctx context.Context, opts domain.ListOptions) ([]domain.UnprocessedEntry, error)

	// Aggregations for the statistics and chart endpoints.
	GetStatistics(ctx context.Context) (*domain.Statistics, error)
	GetCategorySummaries(ctx context.Context) ([]domain.CategorySummary, error)
	GetMonthlyAnalytics(ctx context.Context) ([]domain.MonthlyPoint, error)
	GetHourlyDistribution(ctx context.Context) ([]domain.HourlyPoint, error)
	CountTransactions(ctx context.Context, filter domain.TransactionFilter) (int64, error)
}
