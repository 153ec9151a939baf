package utils

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// ErrEmptyHost is returned by NormalizeDomain for input that parses but
// carries no host, such as a bare scheme.
var ErrEmptyHost = errors.New("url has no host")

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var inviteRegex = regexp.MustCompile(`(?i)(?:discord\.gg|discord(?:app)?\.com/invite)/[a-zA-Z0-9-]+`)

// ExtractURLs returns every URL-looking token in the message content.
func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

// NormalizeDomain reduces a raw URL to its bare lowercase host, with a
// leading "www." stripped and unicode hosts punycoded.
func NormalizeDomain(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(parsed.Hostname())
	if asciiHost, err := idna.ToASCII(host); err == nil {
		host = asciiHost
	}
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", ErrEmptyHost
	}
	return host, nil
}

// ContainsInvite reports whether the content carries a guild invite link.
func ContainsInvite(content string) bool {
	return inviteRegex.MatchString(content)
}

// AllDomainsAllowed reports whether every domain extracted from the
// content is present in the whitelist. A message mixing one whitelisted
// and one unknown domain fails: every domain must clear the list.
func AllDomainsAllowed(content string, whitelist map[string]struct{}) (bool, string) {
	for _, raw := range ExtractURLs(content) {
		domain, err := NormalizeDomain(raw)
		if err != nil || domain == "" {
			continue
		}
		if _, ok := whitelist[domain]; !ok {
			return false, domain
		}
	}
	return true, ""
}
