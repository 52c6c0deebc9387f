package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/store"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/pkg/rabbitmq"
)

// fakeRepository is an in-memory store.Repository that enforces the same
// uniqueness rules as the Postgres schema: one row per external reference,
// and one row per (occurred_at, raw_message) pair for reference-less rows.
type fakeRepository struct {
	transactions []domain.Transaction
	unprocessed  []domain.UnprocessedEntry

	byReference map[string]struct{}
	byDedupKey  map[string]struct{}

	createTxErr    error
	createEntryErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byReference: make(map[string]struct{}),
		byDedupKey:  make(map[string]struct{}),
	}
}

func (f *fakeRepository) CreateTransaction(_ context.Context, tx *domain.Transaction) error {
	if f.createTxErr != nil {
		return f.createTxErr
	}
	if tx.ExternalReference != nil {
		if _, dup := f.byReference[*tx.ExternalReference]; dup {
			return store.ErrDuplicateReference
		}
	}
	dedupKey := tx.OccurredAt.UTC().Format(time.RFC3339Nano) + "|" + tx.RawMessage
	if _, dup := f.byDedupKey[dedupKey]; dup {
		return store.ErrDuplicateReference
	}
	if tx.ExternalReference != nil {
		f.byReference[*tx.ExternalReference] = struct{}{}
	}
	f.byDedupKey[dedupKey] = struct{}{}
	f.transactions = append(f.transactions, *tx)
	return nil
}

func (f *fakeRepository) CreateUnprocessedEntry(_ context.Context, entry *domain.UnprocessedEntry) error {
	if f.createEntryErr != nil {
		return f.createEntryErr
	}
	f.unprocessed = append(f.unprocessed, *entry)
	return nil
}

func (f *fakeRepository) ListTransactions(context.Context, domain.TransactionFilter, domain.ListOptions) ([]domain.Transaction, error) {
	return f.transactions, nil
}

func (f *fakeRepository) FindTransactionByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	for i := range f.transactions {
		if f.transactions[i].ID == id {
			return &f.transactions[i], nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (f *fakeRepository) FindTransactionByReference(_ context.Context, reference string) (*domain.Transaction, error) {
	for i := range f.transactions {
		if ref := f.transactions[i].ExternalReference; ref != nil && *ref == reference {
			return &f.transactions[i], nil
		}
	}
	return nil, store.ErrTransactionNotFound
}

func (f *fakeRepository) SearchTransactions(context.Context, string, int) ([]domain.Transaction, error) {
	return f.transactions, nil
}

func (f *fakeRepository) ListUnprocessedEntries(context.Context, domain.ListOptions) ([]domain.UnprocessedEntry, error) {
	return f.unprocessed, nil
}

func (f *fakeRepository) GetStatistics(context.Context) (*domain.Statistics, error) {
	return &domain.Statistics{}, nil
}

func (f *fakeRepository) GetCategorySummaries(context.Context) ([]domain.CategorySummary, error) {
	return nil, nil
}

func (f *fakeRepository) GetMonthlyAnalytics(context.Context) ([]domain.MonthlyPoint, error) {
	return nil, nil
}

func (f *fakeRepository) GetHourlyDistribution(context.Context) ([]domain.HourlyPoint, error) {
	return nil, nil
}

func (f *fakeRepository) CountTransactions(context.Context, domain.TransactionFilter) (int64, error) {
	return int64(len(f.transactions)), nil
}

var batchReceipt = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func msg(body string) domain.RawMessage {
	return domain.RawMessage{Body: body, ReceivedAt: batchReceipt}
}

func TestIngestBatch_SummaryCountsSumToTotal(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, nil)

	batch := []domain.RawMessage{
		msg("You have received 50,000 RWF from John Doe on 2024-03-15. TxId: TX100001"),
		msg("You have paid 25,000 RWF to EUCL. Fee: 250 RWF"),
		msg("Your OTP code is 123456"),                              // unclassified
		msg("You have received money from John Doe on 2024-03-15"), // missing amount
		msg("   "),                                                 // empty after normalization
		msg("You have received 50,000 RWF from John Doe on 2024-03-15. TxId: TX100001"), // duplicate
	}

	summary, err := svc.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}

	if summary.Total != len(batch) {
		t.Errorf("total = %d, want %d", summary.Total, len(batch))
	}
	if summary.Succeeded != 2 {
		t.Errorf("processed = %d, want 2", summary.Succeeded)
	}
	if summary.SkippedDuplicate != 1 {
		t.Errorf("skipped_duplicate = %d, want 1", summary.SkippedDuplicate)
	}
	if summary.Failed != 3 {
		t.Errorf("failed = %d, want 3", summary.Failed)
	}
	if got := summary.Succeeded + summary.SkippedDuplicate + summary.Failed; got != summary.Total {
		t.Fatalf("summary counts sum to %d, want total %d", got, summary.Total)
	}
	if len(repo.transactions) != 2 {
		t.Errorf("persisted %d transactions, want 2", len(repo.transactions))
	}
	if len(repo.unprocessed) != 3 {
		t.Errorf("unprocessed log has %d entries, want 3", len(repo.unprocessed))
	}
}

func TestIngestBatch_UnprocessedReasons(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, nil)

	batch := []domain.RawMessage{
		msg("Your OTP code is 123456"),
		msg("You have received money from John Doe on 2024-03-15"),
		msg(""),
	}

	if _, err := svc.IngestBatch(context.Background(), batch); err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}
	if len(repo.unprocessed) != 3 {
		t.Fatalf("unprocessed log has %d entries, want 3", len(repo.unprocessed))
	}

	wantReasons := []string{"unclassified", "amount", "empty message"}
	for i, want := range wantReasons {
		if repo.unprocessed[i].Reason != want {
			t.Errorf("entry %d reason = %q, want %q", i, repo.unprocessed[i].Reason, want)
		}
	}
	// The raw text survives verbatim alongside the reason.
	if repo.unprocessed[0].RawMessage != "Your OTP code is 123456" {
		t.Errorf("raw message not preserved: %q", repo.unprocessed[0].RawMessage)
	}
}

func TestIngestBatch_ReingestionIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, nil)

	batch := []domain.RawMessage{
		msg("You have received 50,000 RWF from John Doe on 2024-03-15. TxId: TX200001"),
		msg("You have transferred 15,000 RWF to Alice Smith (250788123456) on 2024-04-02"),
	}

	first, err := svc.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("first IngestBatch returned error: %v", err)
	}
	if first.Succeeded != 2 {
		t.Fatalf("first run processed = %d, want 2", first.Succeeded)
	}

	second, err := svc.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("second IngestBatch returned error: %v", err)
	}
	if second.Succeeded != 0 {
		t.Errorf("second run processed = %d, want 0", second.Succeeded)
	}
	if second.SkippedDuplicate != 2 {
		t.Errorf("second run skipped_duplicate = %d, want 2", second.SkippedDuplicate)
	}
	if len(repo.transactions) != 2 {
		t.Errorf("store holds %d transactions after re-ingestion, want 2", len(repo.transactions))
	}
}

func TestIngestBatch_StoreFaultAbortsBatch(t *testing.T) {
	repo := newFakeRepository()
	repo.createTxErr = errors.New("connection refused")
	svc := NewService(repo, nil)

	batch := []domain.RawMessage{
		msg("You have received 50,000 RWF from John Doe on 2024-03-15"),
		msg("You have paid 25,000 RWF to EUCL. Fee: 250 RWF"),
	}

	summary, err := svc.IngestBatch(context.Background(), batch)
	if err == nil {
		t.Fatal("expected IngestBatch to abort on a store fault")
	}
	if summary != nil {
		t.Fatalf("expected nil summary on abort, got %+v", summary)
	}
	if !errors.Is(err, repo.createTxErr) {
		t.Fatalf("abort error does not wrap the store fault: %v", err)
	}
}

func TestIngestBatch_UnprocessedLogFaultAbortsBatch(t *testing.T) {
	repo := newFakeRepository()
	repo.createEntryErr = errors.New("disk full")
	svc := NewService(repo, nil)

	_, err := svc.IngestBatch(context.Background(), []domain.RawMessage{msg("Your OTP code is 123456")})
	if !errors.Is(err, repo.createEntryErr) {
		t.Fatalf("expected the unprocessed-log fault to abort the batch, got %v", err)
	}
}

func TestIngestBatch_EmptyBatch(t *testing.T) {
	svc := NewService(newFakeRepository(), nil)

	summary, err := svc.IngestBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}
	if summary.Total != 0 || summary.SuccessRate != 0 {
		t.Fatalf("empty batch summary = %+v, want zeros", summary)
	}
}

// capturingPublisher records published batch events.
type capturingPublisher struct {
	events []rabbitmq.BatchIngestedEvent
	err    error
}

func (c *capturingPublisher) Publish(context.Context, string, string, interface{}) error {
	return c.err
}

func (c *capturingPublisher) PublishBatchIngested(_ context.Context, event rabbitmq.BatchIngestedEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event)
	return nil
}

func (c *capturingPublisher) Close() {}

func TestIngestBatch_PublishesBatchEvent(t *testing.T) {
	publisher := &capturingPublisher{}
	svc := NewService(newFakeRepository(), publisher)

	batch := []domain.RawMessage{
		msg("You have received 50,000 RWF from John Doe on 2024-03-15"),
		msg("Your OTP code is 123456"),
	}
	if _, err := svc.IngestBatch(context.Background(), batch); err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Total != 2 || event.Processed != 1 || event.Failed != 1 {
		t.Fatalf("event counts = %+v, want total=2 processed=1 failed=1", event)
	}
}

func TestIngestBatch_PublishFailureDoesNotFailBatch(t *testing.T) {
	publisher := &capturingPublisher{err: errors.New("broker down")}
	svc := NewService(newFakeRepository(), publisher)

	summary, err := svc.IngestBatch(context.Background(), []domain.RawMessage{
		msg("You have received 50,000 RWF from John Doe on 2024-03-15"),
	})
	if err != nil {
		t.Fatalf("IngestBatch returned error: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("processed = %d, want 1", summary.Succeeded)
	}
}

// stubLimiter returns a scripted consumption result.
type stubLimiter struct {
	count      int
	retryAfter int
	err        error
}

func (s *stubLimiter) ConsumeRateLimit(context.Context, string, string, int, time.Duration) (int, int, error) {
	return s.count, s.retryAfter, s.err
}

func TestCheckUploadAllowed(t *testing.T) {
	t.Run("no limiter configured", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil)
		if _, err := svc.CheckUploadAllowed(context.Background(), "1.2.3.4"); err != nil {
			t.Fatalf("expected allowed without a limiter, got %v", err)
		}
	})

	t.Run("within budget", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil)
		svc.SetUploadRateLimiter(&stubLimiter{count: 3}, 10)
		if _, err := svc.CheckUploadAllowed(context.Background(), "1.2.3.4"); err != nil {
			t.Fatalf("expected allowed within budget, got %v", err)
		}
	})

	t.Run("over budget", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil)
		svc.SetUploadRateLimiter(&stubLimiter{count: 11, retryAfter: 42}, 10)
		retryAfter, err := svc.CheckUploadAllowed(context.Background(), "1.2.3.4")
		if !errors.Is(err, ErrUploadRateLimited) {
			t.Fatalf("expected ErrUploadRateLimited, got %v", err)
		}
		if retryAfter != 42 {
			t.Fatalf("retry-after = %d, want 42", retryAfter)
		}
	})

	t.Run("limiter outage fails open", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil)
		svc.SetUploadRateLimiter(&stubLimiter{err: errors.New("redis down")}, 10)
		if _, err := svc.CheckUploadAllowed(context.Background(), "1.2.3.4"); err != nil {
			t.Fatalf("expected fail-open on limiter outage, got %v", err)
		}
	})
}
