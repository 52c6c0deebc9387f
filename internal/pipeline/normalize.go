/**
 * @description
 * Message normalization for the SMS ingestion pipeline. Raw SMS bodies arrive
 * with irregular whitespace and casing; the classifier and extractor both
 * operate on the normalized form while the store keeps the original body.
 */

package pipeline

import "strings"

// Normalize collapses runs of whitespace into single spaces and trims the
// ends. It is a pure function with no failure mode: the worst case is the
// input returned unchanged. Original casing is preserved because counterparty
// names are extracted from the normalized text; matching is done
// case-insensitively by the classifier's rules instead.
func Normalize(body string) string {
	return strings.Join(strings.Fields(body), " ")
}
