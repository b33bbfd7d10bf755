package domain

import "time"

// SourceType names where a catalogue entity came from.
type SourceType string

const (
	SourceManual     SourceType = "manually_added"
	SourceEventbrite SourceType = "eventbrite"
)

// Source is the external-source marker on an ingested entity.
type Source struct {
	Type       SourceType `json:"type" db:"source_type"`
	ExternalID string     `json:"external_id" db:"source_id"`
}

// DateRange is one occurrence of an event.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Default people range for events; the upstream payload carries no capacity.
const (
	DefaultPeopleLower = 1
	DefaultPeopleUpper = 100
)

// Event is the normalized catalogue event. At most one Event exists per
// Eventbrite id (Source.ExternalID).
type Event struct {
	ID                string      `json:"id" db:"id"`
	Headline          string      `json:"headline" db:"headline"`
	Description       string      `json:"description" db:"description"`
	URL               string      `json:"url,omitempty" db:"url"`
	PriceLower        float64     `json:"price_lower" db:"price_lower"`
	PriceUpper        float64     `json:"price_upper" db:"price_upper"`
	DurationLower     float64     `json:"duration_lower" db:"duration_lower"` // hours
	DurationUpper     float64     `json:"duration_upper" db:"duration_upper"` // hours
	PeopleLower       int         `json:"people_lower" db:"people_lower"`
	PeopleUpper       int         `json:"people_upper" db:"people_upper"`
	Dates             []DateRange `json:"dates" db:"dates"`
	Tags              Tags        `json:"tags" db:"attributes"`
	Source            Source      `json:"source"`
	CreatedBy         string      `json:"created_by" db:"created_by"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	LastUpdated       time.Time   `json:"last_updated" db:"last_updated"`
	ApprovedBy        *string     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovalTimestamp *time.Time  `json:"approval_timestamp,omitempty" db:"approval_timestamp"`
	ImageIDs          []string    `json:"image_ids" db:"-"`
	PlaceIDs          []string    `json:"place_ids" db:"-"`
}

// IsPopulated reports whether the event has ever been filled from upstream data.
func (e *Event) IsPopulated() bool { return e.Headline != "" }

// ResetModeration clears the approval so the event goes back to the review queue.
func (e *Event) ResetModeration() {
	e.ApprovedBy = nil
	e.ApprovalTimestamp = nil
}

// AddImage attaches an image id once.
func (e *Event) AddImage(id string) { e.ImageIDs = appendUnique(e.ImageIDs, id) }

// AddPlace attaches a place id once.
func (e *Event) AddPlace(id string) { e.PlaceIDs = appendUnique(e.PlaceIDs, id) }

// Clone returns a deep copy so a transform can work on it without touching
// the persisted value until it saves.
func (e *Event) Clone() *Event {
	c := *e
	c.Dates = append([]DateRange(nil), e.Dates...)
	c.Tags = e.Tags.Clone()
	c.ImageIDs = append([]string(nil), e.ImageIDs...)
	c.PlaceIDs = append([]string(nil), e.PlaceIDs...)
	return &c
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
