package time

import (
	"testing"
	"time"
)

func TestPtr(t *testing.T) {
	if Ptr(time.Time{}) != nil {
		t.Fatalf("Ptr(zero) should be nil")
	}
	now := time.Now()
	if p := Ptr(now); p == nil || !p.Equal(now) {
		t.Fatalf("Ptr(now) mismatch")
	}
}

func TestParseStamp(t *testing.T) {
	want := time.Date(2024, 12, 23, 22, 32, 14, 0, time.UTC)
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-12-23T22:32:14Z", true},
		{"2024-12-24T00:32:14+02:00", true},
		{"2024-12-23 22:32:14+00:00", true},
		{"2024-12-23T22:32:14", true},
		{"2024-12-23 22:32:14", true},
		{"", false},
		{"   ", false},
		{"not a date", false},
		{"2024-13-45T99:00:00Z", false},
	}
	for _, c := range cases {
		got, ok := ParseStamp(c.in)
		if ok != c.ok {
			t.Fatalf("ParseStamp(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && (!got.Equal(want) || got.Location() != time.UTC) {
			t.Fatalf("ParseStamp(%q) = %v, want %v UTC", c.in, got, want)
		}
	}
}

func TestParseInstant(t *testing.T) {
	got, err := ParseInstant("2025-01-01")
	if err != nil || !got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ParseInstant date = %v, %v", got, err)
	}
	if _, err := ParseInstant("01/01/2025"); err == nil {
		t.Fatalf("ParseInstant should reject non ISO input")
	}
}

func TestFormatStamp(t *testing.T) {
	if FormatStamp(nil) != "" {
		t.Fatalf("FormatStamp(nil) should be empty")
	}
	at := time.Date(2024, 12, 24, 0, 32, 14, 0, time.FixedZone("x", 2*3600))
	if got := FormatStamp(&at); got != "2024-12-23T22:32:14Z" {
		t.Fatalf("FormatStamp = %q", got)
	}
}
