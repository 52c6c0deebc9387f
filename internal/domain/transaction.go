/**
 * @description
 * This file defines the core domain models for the MoMo analytics service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the ingestion pipeline, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in centimes (the smallest currency unit),
 *   which avoids floating-point inaccuracies with financial data. One RWF is
 *   100 centimes; SMS amounts such as "1,500.50 RWF" parse losslessly.
 * - The counterparty is a single logical field. The persistence layer mirrors
 *   it (and the raw text) under a second column name for the two downstream
 *   readers, so application code only ever deals with the canonical names.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Category is the closed set of transaction classifications. New categories
// require a rule addition in the classifier; they are never inferred.
type Category string

const (
	CategoryIncomingMoney Category = "INCOMING_MONEY"
	CategoryPayment       Category = "PAYMENT"
	CategoryTransfer      Category = "TRANSFER"
	CategoryWithdrawal    Category = "WITHDRAWAL"
	CategoryAirtime       Category = "AIRTIME"
	CategoryBundle        Category = "BUNDLE"
	CategoryBankDeposit   Category = "BANK_DEPOSIT"
	CategoryCashPower     Category = "CASH_POWER"
	CategoryThirdParty    Category = "THIRD_PARTY"
	CategoryUnclassified  Category = "UNCLASSIFIED"
)

// IsIncome reports whether a category counts toward money-in in the
// statistics endpoints.
func (c Category) IsIncome() bool {
	return c == CategoryIncomingMoney || c == CategoryBankDeposit
}

// RawMessage is an unmodified SMS body plus its receipt timestamp as recorded
// by the phone. It is immutable once logged and never discarded, even when
// classification fails.
type RawMessage struct {
	Body       string    `json:"body"`
	Address    string    `json:"address,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Transaction is the structured output of a successful classification and
// extraction. It maps to the `transactions` table. Records are created once
// by the ingestion coordinator and never mutated or deleted afterwards.
type Transaction struct {
	ID                uuid.UUID `json:"id"`
	ExternalReference *string   `json:"external_reference,omitempty"`
	Category          Category  `json:"category"`
	Amount            int64     `json:"amount"` // in centimes
	Fee               int64     `json:"fee"`    // in centimes
	Counterparty      *string   `json:"counterparty,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
	Status            string    `json:"status"`
	Description       string    `json:"description"`
	RawMessage        string    `json:"raw_message"`
	CreatedAt         time.Time `json:"created_at"`
}

// UnprocessedEntry records a RawMessage the pipeline could not turn into a
// Transaction, together with the reason. Entries are written once, read by
// operators, and never auto-retried.
type UnprocessedEntry struct {
	ID         uuid.UUID `json:"id"`
	RawMessage string    `json:"raw_message"`
	Reason     string    `json:"reason"`
	ReceivedAt time.Time `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// BatchSummary reports the outcome of one ingestion batch. The invariant
// Total == Succeeded + SkippedDuplicate + Failed holds for every batch.
type BatchSummary struct {
	Total            int     `json:"total"`
	Succeeded        int     `json:"processed"`
	SkippedDuplicate int     `json:"skipped_duplicate"`
	Failed           int     `json:"failed"`
	SuccessRate      float64 `json:"success_rate"`
	NewlyCreated     int     `json:"newly_created"`
}

// TransactionFilter narrows transaction listings and exports.
type TransactionFilter struct {
	Category  Category
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
	MinAmount *int64
	MaxAmount *int64
}

// ListOptions controls pagination for listing endpoints.
type ListOptions struct {
	Limit  int
	Offset int
}

// Statistics is the dashboard headline view over all transactions.
type Statistics struct {
	TotalBalance      int64         `json:"total_balance"`
	TotalTransactions int64         `json:"total_transactions"`
	MoneyIn           int64         `json:"money_in"`
	MoneyOut          int64         `json:"money_out"`
	TotalVolume       int64         `json:"total_volume"`
	ThisMonth         MonthSnapshot `json:"this_month"`
}

// MonthSnapshot is the current-month slice inside Statistics.
type MonthSnapshot struct {
	Transactions int64 `json:"transactions"`
	Income       int64 `json:"income"`
	Expenses     int64 `json:"expenses"`
}

// CategorySummary aggregates one category for the summary chart.
type CategorySummary struct {
	Category    Category `json:"category"`
	Count       int64    `json:"count"`
	TotalAmount int64    `json:"total_amount"`
	AvgAmount   int64    `json:"avg_amount"`
}

// MonthlyPoint is one month in the trend chart.
type MonthlyPoint struct {
	Month            string `json:"month"` // YYYY-MM
	TransactionCount int64  `json:"transaction_count"`
	Income           int64  `json:"income"`
	Expenses         int64  `json:"expenses"`
	TotalVolume      int64  `json:"total_volume"`
	TotalFees        int64  `json:"total_fees"`
	NetFlow          int64  `json:"net_flow"`
}

// HourlyPoint is one hour-of-day bucket in the distribution chart. The API
// always returns all 24 buckets, zero-filled.
type HourlyPoint struct {
	Hour             int   `json:"hour"`
	TransactionCount int64 `json:"transaction_count"`
	TotalAmount      int64 `json:"total_amount"`
	AvgAmount        int64 `json:"avg_amount"`
}
