package utils

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30s":    30 * time.Second,
		"10m":    10 * time.Minute,
		"2h30m":  2*time.Hour + 30*time.Minute,
		"1d12h":  36 * time.Hour,
		"1d2h3m": 26*time.Hour + 3*time.Minute,
	}
	for raw, want := range cases {
		got, err := ParseDuration(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %v, got %v", raw, want, got)
		}
	}
}

func TestParseDurationRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", "10", "m10", "2h30", "30m2h", "2h2h", "0m", "-5m"} {
		if _, err := ParseDuration(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(2*time.Hour + 30*time.Minute); got != "2h30m" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatDuration(36 * time.Hour); got != "1d12h" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatDuration(0); got != "0s" {
		t.Fatalf("unexpected format: %s", got)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	want := 26*time.Hour + 3*time.Minute + 5*time.Second
	got, err := ParseDuration(FormatDuration(want))
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
