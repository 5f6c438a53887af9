// Package identity derives stable content identifiers so that re-runs over
// the same logical sources are idempotent. No salt, timestamp, or randomness
// is permitted anywhere in the key material.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const sep = "||"

// NormalizeURL canonicalizes a URL so equivalent pages collapse to one
// identity: lower-cased scheme, host, and path, fragment stripped, trailing
// slash dropped except for the root path. The query string is preserved,
// distinct queries are distinct articles. Always returns a string; a missing
// scheme falls back to https.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return raw
		}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	u.Path = strings.ToLower(u.Path)
	u.RawPath = ""
	if u.Path == "" {
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// Resolve resolves href against base (for relative links found during crawl)
// and normalizes the result. Falls back to normalizing href alone when base
// does not parse.
func Resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return NormalizeURL(href)
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return NormalizeURL(href)
	}
	return NormalizeURL(b.ResolveReference(h).String())
}

// PageID returns the deterministic identifier of a web item: the sha256 hex
// digest of company and the normalized URL.
func PageID(company, rawURL string) string {
	return digest(company + sep + NormalizeURL(rawURL))
}

// EmailID returns the deterministic identifier of an email item, keyed by the
// raw message-id rather than a URL.
func EmailID(company, messageID string) string {
	return digest(company + sep + "email" + sep + messageID)
}

func digest(base string) string {
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])
}

// SameHost reports whether two URLs share a network location, used by the
// frontier's domain-restriction policy.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}
