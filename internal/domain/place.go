package domain

import "time"

// PlaceSnapshotVersion is bumped whenever the PlaceSnapshot layout changes.
const PlaceSnapshotVersion = 1

// PlaceSnapshot is the supplementary, non-authoritative view of a venue as the
// places search last reported it.
type PlaceSnapshot struct {
	Version int      `json:"version"`
	Rating  *float64 `json:"rating"`
	Address string   `json:"address"`
}

// Equal compares two snapshots field by field.
func (s PlaceSnapshot) Equal(o PlaceSnapshot) bool {
	if s.Version != o.Version || s.Address != o.Address {
		return false
	}
	switch {
	case s.Rating == nil && o.Rating == nil:
		return true
	case s.Rating == nil || o.Rating == nil:
		return false
	default:
		return *s.Rating == *o.Rating
	}
}

// Place is a resolved venue. GooglePlaceID is the stable dedup key: there is
// at most one Place per Google place id. Name and coordinates are set once on
// creation and never overwritten by later resolutions.
type Place struct {
	ID            string        `json:"id" db:"id"`
	GooglePlaceID string        `json:"google_maps_place_id" db:"google_maps_place_id"`
	Headline      string        `json:"headline" db:"headline"`
	Description   string        `json:"description" db:"description"`
	Lat           float64       `json:"location_lat" db:"location_lat"`
	Lng           float64       `json:"location_long" db:"location_long"`
	Address       string        `json:"address" db:"address"`
	Snapshot      PlaceSnapshot `json:"snapshot" db:"snapshot"`
	PriceLower    float64       `json:"price_lower" db:"price_lower"`
	PriceUpper    float64       `json:"price_upper" db:"price_upper"`
	DurationLower float64       `json:"duration_lower" db:"duration_lower"`
	DurationUpper float64       `json:"duration_upper" db:"duration_upper"`
	PeopleLower   int           `json:"people_lower" db:"people_lower"`
	PeopleUpper   int           `json:"people_upper" db:"people_upper"`
	Tags          Tags          `json:"tags" db:"attributes"`
	Source        Source        `json:"source"`
	CreatedBy     string        `json:"created_by" db:"created_by"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
	ImageIDs      []string      `json:"image_ids" db:"-"`
}

// AddImage attaches an image id once.
func (p *Place) AddImage(id string) { p.ImageIDs = appendUnique(p.ImageIDs, id) }
