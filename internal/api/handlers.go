/**
 * @description
 * This file contains the HTTP handlers for the MoMo analytics API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/csv, encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 * - pkg/smsxml: Decoding of uploaded SMS backup documents.
 */

package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/app"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/pipeline"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/store"
	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/pkg/smsxml"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
	defaultMaxUpload = 10 << 20 // 10 MiB

	// momoSender is the SMS address used by the provider. Upload documents
	// may contain unrelated messages; only these are ingested.
	momoSender = "M-Money"
)

// TransactionHandlers holds the application service that handlers will use.
type TransactionHandlers struct {
	service        *app.Service
	maxUploadBytes int64
}

// NewTransactionHandlers creates a new instance of TransactionHandlers.
func NewTransactionHandlers(service *app.Service, maxUploadBytes int64) *TransactionHandlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUpload
	}
	return &TransactionHandlers{service: service, maxUploadBytes: maxUploadBytes}
}

// UploadHandler ingests one SMS backup XML document. The response reports the
// fate of every message in the document; uploading the same document twice is
// safe and simply reports the duplicates as skipped.
func (h *TransactionHandlers) UploadHandler(w http.ResponseWriter, r *http.Request) {
	retryAfter, err := h.service.CheckUploadAllowed(r.Context(), clientAddr(r))
	if err != nil {
		if errors.Is(err, app.ErrUploadRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Upload rate limit exceeded. Please try again later.")
			return
		}
		log.Printf("level=error component=api endpoint=upload msg=\"rate limit check failed\" err=%v", err)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	// The document arrives either as the raw request body or as a multipart
	// file field named "file".
	document := io.Reader(r.Body)
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Multipart upload must carry the document in a 'file' field")
			return
		}
		defer file.Close()
		document = file
	}

	messages, err := smsxml.Parse(document)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum allowed size")
			return
		}
		h.writeError(w, http.StatusBadRequest, "Request body is not a valid SMS backup XML document")
		return
	}

	messages = smsxml.FilterSender(messages, momoSender)
	if len(messages) == 0 {
		h.writeError(w, http.StatusBadRequest, "Document contains no SMS messages to ingest")
		return
	}

	summary, err := h.service.IngestBatch(r.Context(), messages)
	if err != nil {
		log.Printf("level=error component=api endpoint=upload outcome=aborted err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Ingestion failed; no further messages from this batch were processed")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// ListTransactionsHandler returns a filtered, paginated page of transactions,
// newest first.
func (h *TransactionHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	filter, opts, err := parseListQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.service.ListTransactions(r.Context(), filter, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transactions err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list transactions")
		return
	}

	// Total is the filtered count, so clients can page within the filter.
	total, err := h.service.CountTransactions(r.Context(), filter)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_transactions msg=\"count failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list transactions")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
		"total":        total,
		"limit":        opts.Limit,
		"offset":       opts.Offset,
	})
}

// GetTransactionHandler returns one transaction by its internal ID.
func (h *TransactionHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID")
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_transaction id=%s err=%v", id, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to fetch transaction")
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// GetByReferenceHandler returns the transaction carrying a provider reference.
func (h *TransactionHandlers) GetByReferenceHandler(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		h.writeError(w, http.StatusBadRequest, "Reference is required")
		return
	}

	tx, err := h.service.GetTransactionByReference(r.Context(), reference)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_by_reference reference=%s err=%v", reference, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to fetch transaction")
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// SearchHandler performs a free-text search over counterparties, references
// and raw message text.
func (h *TransactionHandlers) SearchHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	txs, err := h.service.SearchTransactions(r.Context(), query, limit)
	if err != nil {
		log.Printf("level=error component=api endpoint=search q=%q err=%v", query, err)
		h.writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":        query,
		"transactions": txs,
		"count":        len(txs),
	})
}

// StatisticsHandler returns the dashboard headline numbers.
func (h *TransactionHandlers) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStatistics(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=statistics err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to compute statistics")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// SummaryHandler returns per-category aggregates.
func (h *TransactionHandlers) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.GetCategorySummaries(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=summary err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to compute summary")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"categories": summaries})
}

// MonthlyHandler returns the month-by-month trend series.
func (h *TransactionHandlers) MonthlyHandler(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.GetMonthlyAnalytics(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=monthly err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to compute monthly analytics")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"months": points})
}

// HourlyHandler returns the 24-bucket hour-of-day distribution.
func (h *TransactionHandlers) HourlyHandler(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.GetHourlyDistribution(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=hourly err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to compute hourly distribution")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"hours": points})
}

// UnprocessedHandler lists messages the pipeline could not turn into
// transactions, for operator review.
func (h *TransactionHandlers) UnprocessedHandler(w http.ResponseWriter, r *http.Request) {
	_, opts, err := parseListQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.service.ListUnprocessedEntries(r.Context(), opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=unprocessed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list unprocessed messages")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"unprocessed": entries,
		"count":       len(entries),
	})
}

// ExportHandler streams the filtered transaction set as CSV or JSON. CSV
// amounts are rendered in whole currency units so spreadsheets read them
// directly.
func (h *TransactionHandlers) ExportHandler(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		h.writeError(w, http.StatusBadRequest, "Unsupported export format; use csv or json")
		return
	}

	filter, _, err := parseListQuery(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.service.ListTransactions(r.Context(), filter, domain.ListOptions{Limit: maxExportRows})
	if err != nil {
		log.Printf("level=error component=api endpoint=export format=%s err=%v", format, err)
		h.writeError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	filename := "transactions_" + time.Now().UTC().Format("20060102_150405")
	if format == "json" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", filename))
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"exported_at":  time.Now().UTC(),
			"count":        len(txs),
			"transactions": txs,
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"id", "external_reference", "category", "amount", "fee", "counterparty", "occurred_at", "status", "description"})
	for i := range txs {
		tx := &txs[i]
		ref, counterparty := "", ""
		if tx.ExternalReference != nil {
			ref = *tx.ExternalReference
		}
		if tx.Counterparty != nil {
			counterparty = *tx.Counterparty
		}
		_ = writer.Write([]string{
			tx.ID.String(),
			ref,
			string(tx.Category),
			pipeline.FormatAmount(tx.Amount),
			pipeline.FormatAmount(tx.Fee),
			counterparty,
			tx.OccurredAt.UTC().Format(time.RFC3339),
			tx.Status,
			tx.Description,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Printf("level=error component=api endpoint=export format=csv msg=\"stream write failed\" err=%v", err)
	}
}

const maxExportRows = 100_000

// parseListQuery reads the shared filter and pagination query parameters.
func parseListQuery(r *http.Request) (domain.TransactionFilter, domain.ListOptions, error) {
	q := r.URL.Query()
	var filter domain.TransactionFilter
	opts := domain.ListOptions{Limit: defaultPageLimit}

	if raw := q.Get("category"); raw != "" {
		filter.Category = domain.Category(strings.ToUpper(raw))
	}
	// Statuses are stored lowercase ("completed"/"failed"); fold the query
	// param to match.
	filter.Status = strings.ToLower(strings.TrimSpace(q.Get("status")))

	for _, p := range []struct {
		key  string
		dest **time.Time
	}{
		{"start_date", &filter.StartDate},
		{"end_date", &filter.EndDate},
	} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, opts, fmt.Errorf("invalid %s; expected YYYY-MM-DD", p.key)
		}
		if p.key == "end_date" {
			// Inclusive: cover the whole final day.
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*p.dest = &t
	}

	for _, p := range []struct {
		key  string
		dest **int64
	}{
		{"min_amount", &filter.MinAmount},
		{"max_amount", &filter.MaxAmount},
	} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		centimes, err := pipeline.ParseAmount(raw)
		if err != nil {
			return filter, opts, fmt.Errorf("invalid %s", p.key)
		}
		*p.dest = &centimes
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, opts, errors.New("invalid limit")
		}
		opts.Limit = n
	}
	if opts.Limit > maxPageLimit {
		opts.Limit = maxPageLimit
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, opts, errors.New("invalid offset")
		}
		opts.Offset = n
	}

	return filter, opts, nil
}

// HealthHandler checks store connectivity by counting transactions. A failing
// store turns the health check red so orchestrators stop routing traffic.
func (h *TransactionHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountTransactions(r.Context(), domain.TransactionFilter{})
	if err != nil {
		log.Printf("level=error component=api endpoint=health msg=\"store check failed\" err=%v", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  "store unreachable",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"transactions": count,
	})
}

// writeJSON is a helper for writing JSON responses.
func (h *TransactionHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *TransactionHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
