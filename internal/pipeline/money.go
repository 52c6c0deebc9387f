/**
 * @description
 * Fixed-point currency parsing for the extractor. Amounts are held as int64
 * centimes everywhere inside the service; decimals only exist at the text
 * boundary. Parsing and formatting are exact inverses for any numeral the
 * extractor accepts, so a value survives a round trip without drift.
 */

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount converts an SMS numeral such as "50,000" or "1,500.50" into
// centimes. Thousands separators are stripped; at most two fraction digits
// are accepted (SMS amounts never carry more).
func ParseAmount(numeral string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(numeral), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", numeral, err)
	}
	if units < 0 {
		return 0, fmt.Errorf("negative amount %q", numeral)
	}

	centimes := units * 100
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid fraction in amount %q", numeral)
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid fraction in amount %q: %w", numeral, err)
		}
		if len(frac) == 1 {
			f *= 10
		}
		centimes += f
	}
	return centimes, nil
}

// FormatAmount renders centimes back to the boundary decimal form. Whole
// amounts omit the fraction, matching how MoMo messages print them.
func FormatAmount(centimes int64) string {
	if centimes%100 == 0 {
		return strconv.FormatInt(centimes/100, 10)
	}
	return fmt.Sprintf("%d.%02d", centimes/100, centimes%100)
}
