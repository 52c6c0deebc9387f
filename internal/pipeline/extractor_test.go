package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
)

var receiptTime = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

func TestExtract_IncomingMoney(t *testing.T) {
	body := "You have received 50,000 RWF from John Doe on 2024-03-15"

	fields, err := Extract(body, domain.CategoryIncomingMoney, receiptTime)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if fields.Amount != 50_000*100 {
		t.Errorf("amount = %d centimes, want %d", fields.Amount, 50_000*100)
	}
	if fields.Counterparty == nil || *fields.Counterparty != "John Doe" {
		t.Errorf("counterparty = %v, want John Doe", fields.Counterparty)
	}
	wantDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if !fields.OccurredAt.Equal(wantDate) {
		t.Errorf("occurred_at = %v, want %v", fields.OccurredAt, wantDate)
	}
	if fields.Status != "completed" {
		t.Errorf("status = %q, want completed", fields.Status)
	}
}

func TestExtract_PaymentWithFee(t *testing.T) {
	body := "You have paid 25,000 RWF to EUCL. Fee: 250 RWF"

	fields, err := Extract(body, domain.CategoryPayment, receiptTime)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if fields.Amount != 25_000*100 {
		t.Errorf("amount = %d centimes, want %d", fields.Amount, 25_000*100)
	}
	if fields.Fee != 250*100 {
		t.Errorf("fee = %d centimes, want %d", fields.Fee, 250*100)
	}
	if fields.Counterparty == nil || *fields.Counterparty != "EUCL" {
		t.Errorf("counterparty = %v, want EUCL (acronym preserved)", fields.Counterparty)
	}
	// No embedded date: the receipt timestamp backs the occurrence date.
	if !fields.OccurredAt.Equal(receiptTime) {
		t.Errorf("occurred_at = %v, want receipt time %v", fields.OccurredAt, receiptTime)
	}
}

func TestExtract_MissingAmount(t *testing.T) {
	body := "You have received money from John Doe on 2024-03-15"

	_, err := Extract(body, domain.CategoryIncomingMoney, receiptTime)
	if err == nil {
		t.Fatal("expected an extraction error for a body without an amount")
	}
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected *ExtractionError, got %T", err)
	}
	if extractionErr.Field != "amount" {
		t.Fatalf("missing field = %q, want amount", extractionErr.Field)
	}
}

func TestExtract_MissingDateWithZeroReceipt(t *testing.T) {
	body := "You have received 50,000 RWF from John Doe"

	_, err := Extract(body, domain.CategoryIncomingMoney, time.Time{})
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected *ExtractionError, got %v", err)
	}
	if extractionErr.Field != "date" {
		t.Fatalf("missing field = %q, want date", extractionErr.Field)
	}
}

func TestExtract_Reference(t *testing.T) {
	body := "You have received 10,000 RWF from Jane Poe on 2024-03-16. TxId: 12345678"

	fields, err := Extract(body, domain.CategoryIncomingMoney, receiptTime)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if fields.Reference == nil || *fields.Reference != "12345678" {
		t.Fatalf("reference = %v, want 12345678", fields.Reference)
	}
}

func TestExtract_EmbeddedTimestamp(t *testing.T) {
	body := "Payment of 2,000 RWF to Kigali Mart completed at 2024-03-15 14:22:09"

	fields, err := Extract(body, domain.CategoryPayment, receiptTime)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := time.Date(2024, 3, 15, 14, 22, 9, 0, time.UTC)
	if !fields.OccurredAt.Equal(want) {
		t.Fatalf("occurred_at = %v, want %v", fields.OccurredAt, want)
	}
}

func TestExtract_ImplausibleAmountSkipped(t *testing.T) {
	// 5 RWF is below the plausibility floor; the fee-sized numeral must not
	// be promoted to the transaction amount either.
	body := "You have received 5 RWF from John Doe on 2024-03-15"

	_, err := Extract(body, domain.CategoryIncomingMoney, receiptTime)
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) || extractionErr.Field != "amount" {
		t.Fatalf("expected missing amount for implausible numeral, got %v", err)
	}
}

func TestExtract_CounterpartyByCategory(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		category domain.Category
		want     string
	}{
		{
			name:     "withdrawal agent",
			body:     "You have withdrawn 20,000 RWF via agent: Jane Agent (250788999111) on 2024-05-01",
			category: domain.CategoryWithdrawal,
			want:     "Agent: Jane Agent",
		},
		{
			name:     "withdrawal with unnamed agent",
			body:     "You have withdrawn 20,000 RWF on 2024-05-01",
			category: domain.CategoryWithdrawal,
			want:     "Agent",
		},
		{
			name:     "airtime provider label",
			body:     "Your airtime purchase of 1,000 RWF was successful",
			category: domain.CategoryAirtime,
			want:     "MTN Airtime",
		},
		{
			name:     "cash power provider label",
			body:     "Cash power purchase of 5,000 RWF completed",
			category: domain.CategoryCashPower,
			want:     "EUCL Cash Power",
		},
		{
			name:     "voice bundle variant",
			body:     "You purchased a voice bundle of 1,500 RWF",
			category: domain.CategoryBundle,
			want:     "MTN Voice Bundle",
		},
		{
			name:     "default bundle variant",
			body:     "You purchased an internet bundle of 2,000 RWF",
			category: domain.CategoryBundle,
			want:     "MTN Internet Bundle",
		},
		{
			name:     "bank deposit default label",
			body:     "Bank deposit of 100,000 RWF has been added to your account",
			category: domain.CategoryBankDeposit,
			want:     "Bank Account",
		},
		{
			name:     "transfer recipient name",
			body:     "You have transferred 15,000 RWF to Alice Smith (250788123456) on 2024-04-02",
			category: domain.CategoryTransfer,
			want:     "Alice Smith",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields, err := Extract(tc.body, tc.category, receiptTime)
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}
			if fields.Counterparty == nil {
				t.Fatalf("counterparty is nil, want %q", tc.want)
			}
			if *fields.Counterparty != tc.want {
				t.Fatalf("counterparty = %q, want %q", *fields.Counterparty, tc.want)
			}
		})
	}
}

func TestExtract_PhoneNumberRejectedAsName(t *testing.T) {
	body := "You have received 5,000 RWF from 250788123456 on 2024-03-15"

	fields, err := Extract(body, domain.CategoryIncomingMoney, receiptTime)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if fields.Counterparty != nil {
		t.Fatalf("expected no counterparty for a bare phone number, got %q", *fields.Counterparty)
	}
}

func TestExtract_FailureStatus(t *testing.T) {
	body := "Your payment of 3,000 RWF to Kigali Mart failed due to insufficient funds"

	fields, err := Extract(body, domain.CategoryPayment, receiptTime)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if fields.Status != "failed" {
		t.Fatalf("status = %q, want failed", fields.Status)
	}
}

func TestExtract_LongDescriptionTruncated(t *testing.T) {
	long := "You have received 50,000 RWF from John Doe on 2024-03-15 with a very long trailing notice that keeps going and going well past one hundred characters"
	fields, err := Extract(long, domain.CategoryIncomingMoney, receiptTime)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(fields.Description) != 100 {
		t.Fatalf("description length = %d, want 100", len(fields.Description))
	}
	if fields.Description[97:] != "..." {
		t.Fatalf("truncated description must end with ellipsis, got %q", fields.Description[90:])
	}
}

// Truncation must cut on rune boundaries: a multibyte character straddling
// the cutoff would otherwise leave invalid UTF-8 in the description.
func TestExtract_MultibyteDescriptionTruncatedOnRuneBoundary(t *testing.T) {
	long := "You have received 50,000 RWF from John Doe on 2024-03-15 " + strings.Repeat("é", 60)
	fields, err := Extract(long, domain.CategoryIncomingMoney, receiptTime)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if !utf8.ValidString(fields.Description) {
		t.Fatalf("description is not valid UTF-8: %q", fields.Description)
	}
	if got := utf8.RuneCountInString(fields.Description); got != 100 {
		t.Fatalf("description rune count = %d, want 100", got)
	}
	if !strings.HasSuffix(fields.Description, "...") {
		t.Fatalf("truncated description must end with ellipsis, got %q", fields.Description)
	}
}
