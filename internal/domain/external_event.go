package domain

import (
	"encoding/json"
	"time"
)

// ExternalEventID is an Eventbrite event id discovered on the listing pages.
// Rows are created on first discovery and never deleted by the pipeline;
// LastSeen moves forward every time discovery observes the id again.
type ExternalEventID struct {
	ID           string    `json:"id" db:"event_id"`
	FirstFetched time.Time `json:"first_fetched" db:"first_fetched"`
	LastSeen     time.Time `json:"last_seen" db:"last_seen"`
}

// RawEvent holds the latest verbatim detail payload for one external id.
// A refetch overwrites Data; history is not kept.
type RawEvent struct {
	EventID     string          `json:"event_id" db:"event_id"`
	Data        json.RawMessage `json:"data" db:"data"`
	LastFetched time.Time       `json:"last_fetched" db:"last_fetched"`
	LastParsed  *time.Time      `json:"last_parsed,omitempty" db:"last_parsed"`
}

// ChangedSinceParse reports whether the payload was refetched after the
// transformer last looked at it. Never-parsed records count as changed.
func (r *RawEvent) ChangedSinceParse() bool {
	return r.LastParsed == nil || r.LastFetched.After(*r.LastParsed)
}
