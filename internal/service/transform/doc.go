// Package transform turns stored Eventbrite payloads into catalogue events.
//
// For each external id the transformer loads the raw payload, finds the
// event already built from it (collapsing duplicates), skips payloads that
// have not changed, and otherwise rebuilds the event on a working copy:
// fields from the payload, tags from the category table, a sanitized
// description, the cover image and the resolved venue. The copy is saved in
// one call, so a failure at any step leaves the stored event as it was.
//
// The service depends on the Repository interface in repository.go. It
// never imports net/http or database/sql.
package transform
