package httpretry

import (
	"fmt"
	"net/url"
)

// FetchError reports a request that did not produce a usable response:
// either the retry budget ran out on server errors, or the caller rejected
// the final status.
type FetchError struct {
	URL        string // token query parameter redacted
	Retries    int    // attempts made
	StatusCode int    // last status seen, 0 if the transport failed
	Err        error  // last transport error, if any
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("could not fetch %s after %d attempts: %v", e.URL, e.Retries, e.Err)
	case e.Retries > 1:
		return fmt.Sprintf("could not fetch %s after %d attempts: status %d", e.URL, e.Retries, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError builds a FetchError for a response the caller does not accept.
func StatusError(rawURL string, status int) *FetchError {
	return &FetchError{URL: RedactURL(rawURL), Retries: 1, StatusCode: status}
}

// RedactURL masks credentials carried in the query string.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for _, k := range []string{"token", "key"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
