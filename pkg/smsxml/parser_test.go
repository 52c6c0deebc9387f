package smsxml

import (
	"strings"
	"testing"
	"time"
)

const backupDoc = `<?xml version="1.0" encoding="UTF-8"?>
<smses count="3">
  <sms address="M-Money" date="1710499200000" body="You have received 50,000 RWF from John Doe on 2024-03-15" />
  <sms address="M-Money" date="1710585600000" body="You have paid 25,000 RWF to EUCL. Fee: 250 RWF" />
  <sms address="Airtel" date="1710672000000" body="Promo: win big today!" />
</smses>`

func TestParse_AttributeForm(t *testing.T) {
	messages, err := Parse(strings.NewReader(backupDoc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("parsed %d messages, want 3", len(messages))
	}

	first := messages[0]
	if first.Body != "You have received 50,000 RWF from John Doe on 2024-03-15" {
		t.Errorf("body = %q", first.Body)
	}
	if first.Address != "M-Money" {
		t.Errorf("address = %q, want M-Money", first.Address)
	}
	want := time.UnixMilli(1710499200000).UTC()
	if !first.ReceivedAt.Equal(want) {
		t.Errorf("received_at = %v, want %v", first.ReceivedAt, want)
	}
}

func TestParse_BodyChildElement(t *testing.T) {
	doc := `<smses><sms address="M-Money" date="1710499200000"><body>You have paid 2,000 RWF to Kigali Mart</body></sms></smses>`
	messages, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("parsed %d messages, want 1", len(messages))
	}
	if messages[0].Body != "You have paid 2,000 RWF to Kigali Mart" {
		t.Fatalf("body = %q", messages[0].Body)
	}
}

func TestParse_ReadableDateFallback(t *testing.T) {
	doc := `<smses><sms address="M-Money" readable_date="Mar 15, 2024 10:30:00 AM" body="x" /></smses>`
	messages, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	if !messages[0].ReceivedAt.Equal(want) {
		t.Fatalf("received_at = %v, want %v", messages[0].ReceivedAt, want)
	}
}

func TestParse_KeepsEmptyBodies(t *testing.T) {
	doc := `<smses><sms address="M-Money" date="1710499200000" body="" /></smses>`
	messages, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("parsed %d messages, want 1; empty bodies are the coordinator's call", len(messages))
	}
}

func TestParse_InvalidDocuments(t *testing.T) {
	for _, doc := range []string{"", "not xml at all", "<smses><sms body=\"x\"</smses>"} {
		if _, err := Parse(strings.NewReader(doc)); err == nil {
			t.Errorf("Parse(%q) expected error", doc)
		}
	}
}

func TestFilterSender(t *testing.T) {
	messages, err := Parse(strings.NewReader(backupDoc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	kept := FilterSender(messages, "M-Money")
	if len(kept) != 2 {
		t.Fatalf("kept %d messages, want 2", len(kept))
	}
	for _, m := range kept {
		if m.Address != "M-Money" {
			t.Errorf("unexpected sender survived filter: %q", m.Address)
		}
	}
}

func TestFilterSender_KeepsAddresslessMessages(t *testing.T) {
	doc := `<smses><sms date="1710499200000" body="You have received 1,000 RWF from A B" /></smses>`
	messages, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if kept := FilterSender(messages, "M-Money"); len(kept) != 1 {
		t.Fatalf("kept %d messages, want 1; minimal exports omit addresses", len(kept))
	}
}
