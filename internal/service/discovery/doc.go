// Package discovery walks the public Eventbrite listing pages and records
// every event id it sees.
//
// Discovery is idempotent: an id is created on first sight and only has its
// last-seen time refreshed afterwards. A page that cannot be fetched is
// skipped and the walk continues; the walk stops at the "no more results"
// marker or at the page bound.
package discovery
