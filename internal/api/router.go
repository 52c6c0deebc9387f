/**
 * @description
 * This file sets up the HTTP router for the MoMo analytics service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MomoRoutes creates and returns the router for the MoMo analytics service.
// Read endpoints are open; the ingestion endpoint requires the internal API
// key when one is configured.
func MomoRoutes(h *TransactionHandlers, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", h.HealthHandler)

	// Group the mutating endpoints behind the shared-key check.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/ingest/upload", h.UploadHandler)
	})

	// Query and analytics endpoints.
	r.Get("/transactions", h.ListTransactionsHandler)
	r.Get("/transactions/search", h.SearchHandler)
	r.Get("/transactions/reference/{reference}", h.GetByReferenceHandler)
	r.Get("/transactions/{id}", h.GetTransactionHandler)
	r.Get("/statistics", h.StatisticsHandler)
	r.Get("/summary", h.SummaryHandler)
	r.Get("/analytics/monthly", h.MonthlyHandler)
	r.Get("/analytics/hourly", h.HourlyHandler)
	r.Get("/export", h.ExportHandler)
	r.Get("/unprocessed", h.UnprocessedHandler)

	return r
}
