/**
 * @description
 * Field extractor: pulls structured fields out of a normalized, classified
 * SMS body. Amount and occurrence date are required; their absence is an
 * ExtractionError naming the missing field, never a fabricated default. Fee,
 * counterparty and external reference are optional. Different categories
 * embed the counterparty in different textual positions, so extraction rules
 * are keyed by category.
 */

package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
)

// ExtractionError signals that a required field could not be extracted.
// It is a data outcome: the coordinator routes it to the unprocessed log.
type ExtractionError struct {
	Field string
}

func (e *ExtractionError) Error() string {
	return "extraction failed: missing " + e.Field
}

// Fields is the structured result of extraction, ready to persist.
type Fields struct {
	Amount       int64 // in centimes
	Fee          int64 // in centimes
	Counterparty *string
	Reference    *string
	OccurredAt   time.Time
	Status       string
	Description  string
}

// Amount plausibility window: 10 RWF to 50M RWF, in centimes. A numeral
// outside the window is treated as not-a-match so a later pattern may hit.
const (
	minAmountCentimes = 10 * 100
	maxAmountCentimes = 50_000_000 * 100

	maxFeeCentimes = 10_000 * 100
)

var amountPatterns = compileAll(
	`(\d{1,10}(?:,\d{3})*(?:\.\d{1,2})?)\s*RWF`,
	`RWF\s*(\d{1,10}(?:,\d{3})*(?:\.\d{1,2})?)`,
	`amount[:\s]*(\d{1,10}(?:,\d{3})*(?:\.\d{1,2})?)`,
	`(\d{1,10}(?:,\d{3})*)\s*Francs?`,
	`(\d{1,10}(?:,\d{3})*(?:\.\d{1,2})?)\s*(?:has been|was|successfully)`,
)

var feePatterns = compileAll(
	`Fee[:\s]*\(?(\d+(?:,\d{3})*(?:\.\d{1,2})?)\s*RWF`,
	`Fee was[:\s]*(\d+(?:,\d{3})*(?:\.\d{1,2})?)\s*RWF`,
	`Charge[:\s]*(\d+(?:,\d{3})*(?:\.\d{1,2})?)\s*RWF`,
	`Cost[:\s]*(\d+(?:,\d{3})*(?:\.\d{1,2})?)\s*RWF`,
	`charged[:\s]*(\d+(?:,\d{3})*(?:\.\d{1,2})?)\s*RWF`,
)

var referencePatterns = compileAll(
	`TxId[:\s]*([A-Z0-9]{6,20})`,
	`Transaction ID[:\s]*([A-Z0-9]{6,20})`,
	`Financial Transaction Id[:\s]*([A-Z0-9]{6,20})`,
	`External Transaction Id[:\s]*([A-Z0-9]{6,20})`,
	`Ref(?:erence)?[:\s]+([A-Z0-9]{6,20})`,
)

var datePatterns = compileAll(
	`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`,
	`on (\d{4}-\d{2}-\d{2})\s+at\s+(\d{2}:\d{2}:\d{2})`,
	`on (\d{4}-\d{2}-\d{2})`,
	`Date[:\s]*(\d{4}-\d{2}-\d{2})`,
)

var alnum = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Extract derives all persistable fields from a classified message.
// receivedAt is the RawMessage receipt timestamp; it backs the occurrence
// date when the body itself carries none. A zero receivedAt with no embedded
// date is an ExtractionError on "date".
func Extract(body string, category domain.Category, receivedAt time.Time) (*Fields, error) {
	amount, ok := extractAmount(body)
	if !ok {
		return nil, &ExtractionError{Field: "amount"}
	}

	occurredAt, ok := extractDate(body)
	if !ok {
		if receivedAt.IsZero() {
			return nil, &ExtractionError{Field: "date"}
		}
		occurredAt = receivedAt
	}

	f := &Fields{
		Amount:      amount,
		Fee:         extractFee(body),
		Reference:   extractReference(body),
		OccurredAt:  occurredAt,
		Status:      deriveStatus(body),
		Description: describe(body),
	}
	if name := extractCounterparty(body, category); name != "" {
		f.Counterparty = &name
	}
	return f, nil
}

func extractAmount(body string) (int64, bool) {
	for _, p := range amountPatterns {
		for _, m := range p.FindAllStringSubmatch(body, -1) {
			centimes, err := ParseAmount(m[1])
			if err != nil {
				continue
			}
			if centimes < minAmountCentimes || centimes > maxAmountCentimes {
				continue
			}
			return centimes, true
		}
	}
	return 0, false
}

func extractFee(body string) int64 {
	for _, p := range feePatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		centimes, err := ParseAmount(m[1])
		if err != nil || centimes < 0 || centimes > maxFeeCentimes {
			continue
		}
		return centimes
	}
	return 0
}

func extractReference(body string) *string {
	for _, p := range referencePatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		ref := strings.ToUpper(strings.TrimSpace(m[1]))
		if len(ref) >= 6 && alnum.MatchString(ref) {
			return &ref
		}
	}
	return nil
}

func extractDate(body string) (time.Time, bool) {
	for _, p := range datePatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		candidate := m[1]
		if len(m) == 3 && m[2] != "" {
			candidate = m[1] + " " + m[2]
		}
		if t, err := time.Parse("2006-01-02 15:04:05", candidate); err == nil {
			return t, true
		}
		// Date-only match defaults to midnight.
		if t, err := time.Parse("2006-01-02", candidate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var (
	successKeywords = []string{"completed", "successful", "confirmed", "received", "sent", "deposited", "withdrawn", "purchased", "successfully"}
	failureKeywords = []string{"failed", "declined", "rejected", "error", "insufficient", "invalid", "timeout", "cancelled"}
)

// deriveStatus inspects the body for outcome keywords. SMS notifications
// arrive only after settlement, so the default is "completed".
func deriveStatus(body string) string {
	lower := strings.ToLower(body)
	for _, kw := range failureKeywords {
		if strings.Contains(lower, kw) {
			return "failed"
		}
	}
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return "completed"
		}
	}
	return "completed"
}

// describe builds the derived, non-authoritative display description.
func describe(body string) string {
	// Truncate on rune boundaries so a multibyte character straddling the
	// cut cannot leave invalid UTF-8 in the description.
	runes := []rune(body)
	if len(runes) > 100 {
		return string(runes[:97]) + "..."
	}
	return body
}

var (
	incomingNamePatterns = compileAll(
		`received\s+[\d,.]+\s*RWF\s+from\s+([A-Za-z][A-Za-z\s\.]+?)(?:\s*\(|\s*\.|$|\s+on\s|\s+at\s|\s+Transaction|\s+TxId)`,
		`payment\s+received\s+from\s+([A-Za-z][A-Za-z\s\.]+?)(?:\s*\.|$)`,
		`money\s+received\s+from\s+([A-Za-z][A-Za-z\s\.]+?)(?:\s*\.|$)`,
		`from\s+([A-Za-z][A-Za-z\s\.]{2,30}?)(?:\s*\(|\s*\.|$|\s+on\s|\s+at\s|\s+Transaction)`,
	)
	outgoingNamePatterns = compileAll(
		`payment\s+of\s+[\d,.]+\s*RWF\s+to\s+([A-Za-z][A-Za-z\s\.]+?)(?:\s+has|\s+was|\s*\.|$)`,
		`paid\s+[\d,.]+\s*RWF\s+to\s+([A-Za-z][A-Za-z\s\.]+?)(?:\s*\.|$|\s+on\s)`,
		`transferred\s+[\d,.]+\s*RWF\s+to\s+([A-Za-z][A-Za-z\s\.]+?)(?:\s*\(|\s*\.|$|\s+on\s)`,
		`transfer\s+to\s+([A-Za-z][A-Za-z\s\.]+?)\s+completed`,
		`money\s+sent\s+to\s+([A-Za-z][A-Za-z\s\.]+?)(?:\s*\.|$)`,
		`to\s+([A-Za-z][A-Za-z\s\.]{2,30}?)(?:\s+has|\s+was|\s*\.|$|\s+on\s|\s+at\s)`,
	)
	agentNamePatterns = compileAll(
		`via\s+agent[:\s]*([A-Za-z][A-Za-z\s\.]+?)(?:\s*\(|\s*,|\s*\.|$)`,
		`agent[:\s]+([A-Za-z][A-Za-z\s\.]+?)(?:\s+assisted|\s*\(|\s*,|\s*\.|$)`,
	)
	bankNamePatterns = compileAll(
		`deposit\s+to\s+([A-Za-z][A-Za-z\s\.]+?\s+Bank)`,
		`transferred\s+to\s+([A-Za-z][A-Za-z\s\.]+?\s+Bank)`,
		`bank[:\s]+([A-Za-z][A-Za-z\s\.]+?)(?:\s*\.|$)`,
	)
)

// extractCounterparty returns the single logical counterparty name for the
// category, or "" when none can be recovered. Service-payment categories map
// to fixed provider labels rather than a parsed name.
func extractCounterparty(body string, category domain.Category) string {
	switch category {
	case domain.CategoryIncomingMoney:
		return firstCleanName(body, incomingNamePatterns)
	case domain.CategoryPayment, domain.CategoryTransfer, domain.CategoryThirdParty:
		return firstCleanName(body, outgoingNamePatterns)
	case domain.CategoryWithdrawal:
		if name := firstCleanName(body, agentNamePatterns); name != "" {
			return "Agent: " + name
		}
		return "Agent"
	case domain.CategoryAirtime:
		return "MTN Airtime"
	case domain.CategoryCashPower:
		return "EUCL Cash Power"
	case domain.CategoryBundle:
		lower := strings.ToLower(body)
		switch {
		case strings.Contains(lower, "voice bundle"):
			return "MTN Voice Bundle"
		case strings.Contains(lower, "social media"):
			return "MTN Social Media Bundle"
		default:
			return "MTN Internet Bundle"
		}
	case domain.CategoryBankDeposit:
		if name := firstCleanName(body, bankNamePatterns); name != "" {
			return name
		}
		return "Bank Account"
	}
	return ""
}

func firstCleanName(body string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		if name := cleanName(m[1]); name != "" {
			return name
		}
	}
	return ""
}

// Words that indicate a pattern captured message boilerplate, not a name.
var nameStopWords = map[string]struct{}{
	"rwf": {}, "transaction": {}, "txid": {}, "fee": {}, "charge": {},
	"payment": {}, "transfer": {}, "completed": {}, "successful": {},
	"failed": {}, "pending": {}, "date": {}, "time": {}, "amount": {},
	"balance": {}, "account": {}, "number": {}, "code": {}, "id": {},
	"ref": {}, "has": {}, "been": {}, "was": {}, "were": {}, "have": {},
	"will": {}, "can": {}, "may": {},
}

var (
	nonNameChars = regexp.MustCompile(`[^\w\s\.]`)
	hasLetter    = regexp.MustCompile(`[A-Za-z]`)
	phoneLike    = regexp.MustCompile(`^\d{9,15}$`)
)

func cleanName(raw string) string {
	name := strings.TrimSpace(raw)
	name = nonNameChars.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ".")
	if len(name) < 2 || !hasLetter.MatchString(name) {
		return ""
	}
	if phoneLike.MatchString(strings.ReplaceAll(name, " ", "")) {
		return ""
	}

	words := strings.Fields(name)
	for _, w := range words {
		if _, bad := nameStopWords[strings.ToLower(w)]; bad {
			return ""
		}
	}
	for i, w := range words {
		// Leave acronyms (EUCL, MTN) alone; capitalize ordinary words.
		if w == strings.ToUpper(w) && len(w) > 1 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
