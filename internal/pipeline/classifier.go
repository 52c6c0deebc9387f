/**
 * @description
 * Transaction classifier: maps a normalized SMS body to exactly one Category.
 *
 * The rule table is an ordered list of (category, pattern-set) pairs evaluated
 * top to bottom; the first category with a matching pattern wins. Ordering is
 * load-bearing because patterns overlap (a merchant payment mentions both
 * "paid" and "EUCL"), so list position encodes precedence. A message matching
 * nothing falls through a small keyword tier and finally lands on
 * UNCLASSIFIED — classification failure is a data outcome, not an error.
 */

package pipeline

import (
	"regexp"
	"strings"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
)

type rule struct {
	category domain.Category
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile("(?i)"+e))
	}
	return out
}

// rules is immutable configuration. INCOMING_MONEY and PAYMENT come first
// because their patterns are the most specific; THIRD_PARTY sits after
// TRANSFER so that an ordinary transfer mentioning an agent acting "on behalf
// of" someone still resolves by position, not by guesswork.
var rules = []rule{
	{domain.CategoryIncomingMoney, compileAll(
		`you have received.*rwf.*from`,
		`payment.*received.*from`,
		`money.*received.*from`,
		`transfer.*received.*from`,
		`received.*rwf.*from`,
	)},
	{domain.CategoryPayment, compileAll(
		`your payment.*to.*has been completed`,
		`payment.*to.*completed`,
		`paid.*rwf.*to`,
		`payment.*successful.*to`,
		`payment.*code holder`,
		`merchant.*payment`,
		`pos.*payment`,
	)},
	{domain.CategoryTransfer, compileAll(
		`transferred.*rwf.*to`,
		`transfer.*to.*mobile`,
		`sent.*to.*\d{9,}`,
		`money.*sent.*to.*\d{9,}`,
		`bank.*transfer.*from`,
	)},
	{domain.CategoryWithdrawal, compileAll(
		`withdrawn.*via agent`,
		`via agent.*withdrawn`,
		`agent.*withdrawal`,
		`cash.*withdrawn.*agent`,
	)},
	{domain.CategoryAirtime, compileAll(
		`airtime.*purchase`,
		`bought.*airtime`,
		`airtime.*top.?up`,
		`recharge.*airtime`,
	)},
	{domain.CategoryCashPower, compileAll(
		`cash power.*purchase`,
		`electricity.*payment`,
		`eucl.*payment`,
		`power.*bill.*payment`,
		`yego.*payment`,
	)},
	{domain.CategoryBundle, compileAll(
		`internet bundle`,
		`data bundle`,
		`social media bundle`,
		`voice bundle`,
		`yello.*bundle`,
	)},
	{domain.CategoryBankDeposit, compileAll(
		`bank deposit`,
		`deposited.*to.*bank`,
		`transfer.*to.*bank.*account`,
	)},
	{domain.CategoryThirdParty, compileAll(
		`initiated.*by.*third party`,
		`third party.*transaction`,
		`on behalf of`,
	)},
}

// Classify returns exactly one category for a normalized message body. It
// never fails: unmatched messages are UNCLASSIFIED.
func Classify(body string) domain.Category {
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(body) {
				return r.category
			}
		}
	}

	// Keyword fallback tier, checked only after every pattern rule missed.
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "withdrawn") || strings.Contains(lower, "withdrawal"):
		return domain.CategoryWithdrawal
	case strings.Contains(lower, "payment") && strings.Contains(lower, " to "):
		return domain.CategoryPayment
	case strings.Contains(lower, "received"):
		return domain.CategoryIncomingMoney
	}

	return domain.CategoryUnclassified
}
