package helpers

import (
	"net/url"
	"strings"
)

// CanonicalURL normalizes a listing URL for comparisons: lowercases the
// scheme and host and drops a trailing slash from the path. Query strings
// stay as-is since some sites address listings through them. Unparseable
// input comes back trimmed but otherwise untouched.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

// StripQuery reduces a URL to scheme, host and path. Craigslist listing
// links carry per-search query noise that would make the same post look
// like a new one on every run.
func StripQuery(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// AbsoluteURL resolves href against base, covering the relative links
// listing cards carry. Returns href unchanged when either side fails to
// parse.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
