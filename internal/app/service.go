/**
 * @description
 * This file contains the core business logic for the MoMo analytics service.
 * The `Service` struct owns the ingestion coordinator — the per-message
 * normalize → classify → extract → persist state machine — and the read-side
 * facade the API handlers call.
 *
 * Key guarantees:
 * - Processing one message never aborts the batch; only a store-level fault
 *   escalates, because it affects every remaining message.
 * - No message is ever silently dropped: each one ends as a persisted
 *   Transaction, an UnprocessedEntry, or a duplicate skip, and the batch
 *   summary counts always sum to the batch total.
 * - Re-ingesting a batch is idempotent: the store's uniqueness constraints
 *   turn repeats into duplicate skips.
 *
 * @dependencies
 * - context, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/pipeline, internal/store: Domain models, the
 *   SMS pipeline, and data access.
 * - pkg/rabbitmq: Best-effort batch event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/pipeline"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/store"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/pkg/rabbitmq"
)

// ErrUploadRateLimited is returned by CheckUploadAllowed when the caller has
// exhausted its upload budget for the current window.
var ErrUploadRateLimited = errors.New("upload rate limit exceeded")

// RateLimiter is the consumption contract the Redis limiter implements.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core application logic: batch ingestion on the write
// side and the dashboard query facade on the read side.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher

	uploadLimitPerMinute int
	rateLimiter          RateLimiter
}

// NewService creates a new service instance. The producer may be nil; event
// publication then degrades to a no-op.
func NewService(repo store.Repository, producer rabbitmq.Publisher) *Service {
	var p rabbitmq.Publisher = producer
	if p == nil {
		p = &rabbitmq.EventProducerFallback{}
	}
	return &Service{repo: repo, eventProducer: p}
}

// SetUploadRateLimiter enables distributed rate limiting on batch uploads.
func (s *Service) SetUploadRateLimiter(limiter RateLimiter, limitPerMinute int) {
	s.rateLimiter = limiter
	s.uploadLimitPerMinute = limitPerMinute
}

// CheckUploadAllowed consumes one upload slot for the subject. It returns
// ErrUploadRateLimited with a retry-after hint when the budget is exhausted.
// Limiter infrastructure errors fail open: ingestion must not depend on Redis.
func (s *Service) CheckUploadAllowed(ctx context.Context, subject string) (retryAfterSeconds int, err error) {
	if s.rateLimiter == nil || s.uploadLimitPerMinute <= 0 {
		return 0, nil
	}
	count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "ingest_upload", subject, s.uploadLimitPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=app msg=\"upload rate limiter unavailable; failing open\" err=%v", err)
		return 0, nil
	}
	if count > s.uploadLimitPerMinute {
		return retryAfter, ErrUploadRateLimited
	}
	return 0, nil
}

// Terminal outcomes of the per-message state machine.
type messageOutcome int

const (
	outcomePersisted messageOutcome = iota
	outcomeDuplicateSkipped
	outcomeUnprocessed
)

const (
	reasonUnclassified = "unclassified"
	reasonEmptyMessage = "empty message"
)

// IngestBatch runs the pipeline over a bounded batch of raw messages and
// returns the batch summary. Per-message failures are recorded and counted;
// only a persistence-layer fault returns an error, because every remaining
// message would hit the same store.
func (s *Service) IngestBatch(ctx context.Context, messages []domain.RawMessage) (*domain.BatchSummary, error) {
	summary := &domain.BatchSummary{Total: len(messages)}

	for i := range messages {
		outcome, err := s.ingestOne(ctx, &messages[i])
		if err != nil {
			return nil, fmt.Errorf("batch aborted at message %d of %d: %w", i+1, summary.Total, err)
		}
		switch outcome {
		case outcomePersisted:
			summary.Succeeded++
		case outcomeDuplicateSkipped:
			summary.SkippedDuplicate++
		case outcomeUnprocessed:
			summary.Failed++
		}
	}

	summary.NewlyCreated = summary.Succeeded
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Succeeded) / float64(summary.Total) * 100
	}

	log.Printf("level=info component=ingest msg=\"batch complete\" total=%d processed=%d skipped_duplicate=%d failed=%d",
		summary.Total, summary.Succeeded, summary.SkippedDuplicate, summary.Failed)

	// Best-effort notification; a broker outage never fails the batch.
	event := rabbitmq.BatchIngestedEvent{
		BatchID:          uuid.New(),
		Total:            summary.Total,
		Processed:        summary.Succeeded,
		SkippedDuplicate: summary.SkippedDuplicate,
		Failed:           summary.Failed,
		SuccessRate:      summary.SuccessRate,
		Timestamp:        time.Now().UTC(),
	}
	if err := s.eventProducer.PublishBatchIngested(ctx, event); err != nil {
		log.Printf("level=warn component=ingest msg=\"batch event publish failed\" err=%v", err)
	}

	return summary, nil
}

// ingestOne drives a single message through the state machine:
// RECEIVED → NORMALIZED → {CLASSIFIED | UNCLASSIFIED} →
// {EXTRACTED | EXTRACTION_FAILED} → {PERSISTED | DUPLICATE_SKIPPED}.
// The returned error is always an infrastructure fault.
func (s *Service) ingestOne(ctx context.Context, msg *domain.RawMessage) (messageOutcome, error) {
	normalized := pipeline.Normalize(msg.Body)
	if normalized == "" {
		return s.recordUnprocessed(ctx, msg, reasonEmptyMessage)
	}

	category := pipeline.Classify(normalized)
	if category == domain.CategoryUnclassified {
		return s.recordUnprocessed(ctx, msg, reasonUnclassified)
	}

	fields, err := pipeline.Extract(normalized, category, msg.ReceivedAt)
	if err != nil {
		var exErr *pipeline.ExtractionError
		if errors.As(err, &exErr) {
			return s.recordUnprocessed(ctx, msg, exErr.Field)
		}
		return 0, err
	}

	tx := &domain.Transaction{
		ID:                uuid.New(),
		ExternalReference: fields.Reference,
		Category:          category,
		Amount:            fields.Amount,
		Fee:               fields.Fee,
		Counterparty:      fields.Counterparty,
		OccurredAt:        fields.OccurredAt,
		Status:            fields.Status,
		Description:       fields.Description,
		RawMessage:        msg.Body,
	}

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, store.ErrDuplicateReference) {
			// Already ingested: an idempotent skip, not a failure.
			return outcomeDuplicateSkipped, nil
		}
		return 0, err
	}
	return outcomePersisted, nil
}

// recordUnprocessed logs a data-outcome failure. The raw message itself is
// never lost: it lives on in the unprocessed log with the failure reason.
func (s *Service) recordUnprocessed(ctx context.Context, msg *domain.RawMessage, reason string) (messageOutcome, error) {
	entry := &domain.UnprocessedEntry{
		RawMessage: msg.Body,
		Reason:     reason,
		ReceivedAt: msg.ReceivedAt,
	}
	if err := s.repo.CreateUnprocessedEntry(ctx, entry); err != nil {
		return 0, err
	}
	return outcomeUnprocessed, nil
}

// --- Read-side facade ---

// ListTransactions returns filtered, paginated transactions.
func (s *Service) ListTransactions(ctx context.Context, filter domain.TransactionFilter, opts domain.ListOptions) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, filter, opts)
}

// GetTransaction returns one transaction by internal ID.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.repo.FindTransactionByID(ctx, id)
}

// GetTransactionByReference returns one transaction by external reference.
func (s *Service) GetTransactionByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return s.repo.FindTransactionByReference(ctx, reference)
}

// SearchTransactions runs a free-text search over the transaction columns.
func (s *Service) SearchTransactions(ctx context.Context, query string, limit int) ([]domain.Transaction, error) {
	return s.repo.SearchTransactions(ctx, query, limit)
}

// ListUnprocessedEntries exposes the operator failure log.
func (s *Service) ListUnprocessedEntries(ctx context.Context, opts domain.ListOptions) ([]domain.UnprocessedEntry, error) {
	return s.repo.ListUnprocessedEntries(ctx, opts)
}

// GetStatistics returns dashboard headline numbers.
func (s *Service) GetStatistics(ctx context.Context) (*domain.Statistics, error) {
	return s.repo.GetStatistics(ctx)
}

// GetCategorySummaries returns per-category aggregates for charts.
func (s *Service) GetCategorySummaries(ctx context.Context) ([]domain.CategorySummary, error) {
	return s.repo.GetCategorySummaries(ctx)
}

// GetMonthlyAnalytics returns the monthly trend series.
func (s *Service) GetMonthlyAnalytics(ctx context.Context) ([]domain.MonthlyPoint, error) {
	return s.repo.GetMonthlyAnalytics(ctx)
}

// GetHourlyDistribution returns the 24-bucket hour-of-day series.
func (s *Service) GetHourlyDistribution(ctx context.Context) ([]domain.HourlyPoint, error) {
	return s.repo.GetHourlyDistribution(ctx)
}

// CountTransactions counts transactions matching the filter; a zero filter
// counts everything, which backs the health endpoint.
func (s *Service) CountTransactions(ctx context.Context, filter domain.TransactionFilter) (int64, error) {
	return s.repo.CountTransactions(ctx, filter)
}
