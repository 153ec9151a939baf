package utils

import "testing"

func TestNormalizeDomain(t *testing.T) {
	domain, err := NormalizeDomain("https://WWW.Example.com/path?x=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain != "example.com" {
		t.Fatalf("unexpected domain: %s", domain)
	}

	domain, err = NormalizeDomain("example.org/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain != "example.org" {
		t.Fatalf("unexpected domain: %s", domain)
	}

	for _, raw := range []string{"https://", "http://", ""} {
		if _, err := NormalizeDomain(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestContainsInvite(t *testing.T) {
	if !ContainsInvite("join us https://discord.gg/abc123") {
		t.Fatalf("expected invite detection")
	}
	if !ContainsInvite("https://discordapp.com/invite/xyz") {
		t.Fatalf("expected invite detection")
	}
	if ContainsInvite("https://example.com/invite/xyz") {
		t.Fatalf("unexpected invite detection")
	}
}

func TestAllDomainsAllowed(t *testing.T) {
	whitelist := map[string]struct{}{"good.com": {}}

	ok, _ := AllDomainsAllowed("see https://good.com/a", whitelist)
	if !ok {
		t.Fatalf("expected allowed")
	}

	// One whitelisted plus one unknown domain blocks the message.
	ok, offending := AllDomainsAllowed("https://good.com and https://bad.com", whitelist)
	if ok {
		t.Fatalf("expected blocked")
	}
	if offending != "bad.com" {
		t.Fatalf("unexpected offending domain: %s", offending)
	}

	ok, _ = AllDomainsAllowed("no links here", whitelist)
	if !ok {
		t.Fatalf("expected allowed without links")
	}
}
