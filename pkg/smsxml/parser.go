/**
 * @description
 * This package decodes SMS backup XML exports into raw message values for the
 * ingestion pipeline. The export format is a flat list of `<sms>` elements
 * whose payload lives in attributes: `body` (the SMS text), `address` (the
 * sender), and `date` (receipt time as a millisecond epoch). Some exports
 * carry the body as a child element instead; both forms are accepted.
 *
 * The parser is deliberately an external collaborator to the pipeline: its
 * output contract is a sequence of raw messages, and the pipeline never sees
 * XML.
 */
package smsxml

import (
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ARIIK-ANTHONY/SUMMATIVE-MOMO/internal/domain"
)

// ErrInvalidXML wraps any decode failure so callers can map it to a 400
// without inspecting xml internals.
var ErrInvalidXML = errors.New("invalid sms xml")

type smsElement struct {
	BodyAttr     string `xml:"body,attr"`
	Address      string `xml:"address,attr"`
	DateMillis   string `xml:"date,attr"`
	ReadableDate string `xml:"readable_date,attr"`
	BodyChild    string `xml:"body"`
}

// Parse reads an SMS backup document and returns every `<sms>` element as a
// RawMessage, in document order. The root element name is not checked, since
// exports vary between `<smses>` and vendor-specific wrappers. Messages with
// an empty body are kept: the coordinator decides their fate, so the batch
// count matches the document.
func Parse(r io.Reader) ([]domain.RawMessage, error) {
	decoder := xml.NewDecoder(r)
	var messages []domain.RawMessage
	sawElement := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Join(ErrInvalidXML, err)
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true
		if start.Name.Local != "sms" {
			continue
		}

		var el smsElement
		if err := decoder.DecodeElement(&el, &start); err != nil {
			return nil, errors.Join(ErrInvalidXML, err)
		}

		body := strings.TrimSpace(el.BodyAttr)
		if body == "" {
			body = strings.TrimSpace(el.BodyChild)
		}
		messages = append(messages, domain.RawMessage{
			Body:       body,
			Address:    strings.TrimSpace(el.Address),
			ReceivedAt: parseReceiptTime(el.DateMillis, el.ReadableDate),
		})
	}

	if !sawElement {
		return nil, ErrInvalidXML
	}
	return messages, nil
}

// FilterSender keeps messages whose address contains the wanted sender.
// Messages without any address survive the filter: minimal exports omit the
// attribute entirely and rejecting them would drop real transactions.
func FilterSender(messages []domain.RawMessage, sender string) []domain.RawMessage {
	if sender == "" {
		return messages
	}
	kept := make([]domain.RawMessage, 0, len(messages))
	for _, m := range messages {
		if m.Address == "" || strings.Contains(m.Address, sender) {
			kept = append(kept, m)
		}
	}
	return kept
}

var readableLayouts = []string{
	"Jan 2, 2006 3:04:05 PM",
	"2 Jan 2006 15:04:05",
	"2006-01-02 15:04:05",
}

func parseReceiptTime(millis, readable string) time.Time {
	if ms, err := strconv.ParseInt(strings.TrimSpace(millis), 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC()
	}
	readable = strings.TrimSpace(readable)
	for _, layout := range readableLayouts {
		if t, err := time.Parse(layout, readable); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
