package pipeline

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses internal runs", "You  have\treceived   50,000 RWF", "You have received 50,000 RWF"},
		{"trims edges", "  hello world  ", "hello world"},
		{"newlines become single spaces", "line one\nline two\r\nline three", "line one line two line three"},
		{"whitespace-only becomes empty", " \t\n ", ""},
		{"casing is preserved", "EUCL Cash Power", "EUCL Cash Power"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := "  You   have received\t50,000 RWF  "
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Fatalf("Normalize is not idempotent: %q vs %q", once, twice)
	}
}
