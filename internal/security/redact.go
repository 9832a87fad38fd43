package security

import "net/url"

// RedactURL keeps scheme and host of an endpoint and drops credentials, path
// and query, which is all a log line needs.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host
}
