package eventbrite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// TimeLayout is the layout of the utc and changed timestamps.
const TimeLayout = "2006-01-02T15:04:05Z"

// Details is the typed subset of an event detail payload the transformer uses.
type Details struct {
	ID            string
	Name          string
	URL           string
	CategoryID    string
	SubcategoryID string
	PriceLower    float64
	PriceUpper    float64
	Start         time.Time // in the event's own timezone
	End           time.Time
	Changed       *time.Time // nil when the payload has no changed stamp
	LogoURL       string     // empty when the event has no logo
	Venue         Venue
}

// DurationHours is the event length in hours.
func (d *Details) DurationHours() float64 {
	return d.End.Sub(d.Start).Hours()
}

// Venue is the venue block of a detail payload.
type Venue struct {
	Name string
	Lat  float64
	Lng  float64
}

type wirePayload struct {
	ID            flexString  `json:"id"`
	Name          *wireText   `json:"name"`
	URL           string      `json:"url"`
	Start         *wireTime   `json:"start"`
	End           *wireTime   `json:"end"`
	Changed       *string     `json:"changed"`
	CategoryID    flexString  `json:"category_id"`
	SubcategoryID flexString  `json:"subcategory_id"`
	Tickets       *wireTicket `json:"ticket_availability"`
	Logo          *wireLogo   `json:"logo"`
	Venue         *wireVenue  `json:"venue"`
}

type wireText struct {
	Text *string `json:"text"`
}

type wireLogo struct {
	Original *struct {
		URL string `json:"url"`
	} `json:"original"`
}

type wireTime struct {
	Timezone string `json:"timezone"`
	UTC      string `json:"utc"`
}

type wirePrice struct {
	MajorValue flexString `json:"major_value"`
}

type wireTicket struct {
	Minimum *wirePrice `json:"minimum_ticket_price"`
	Maximum *wirePrice `json:"maximum_ticket_price"`
}

type wireVenue struct {
	Name    *string      `json:"name"`
	Address *wireAddress `json:"address"`
}

type wireAddress struct {
	Latitude  flexString `json:"latitude"`
	Longitude flexString `json:"longitude"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// ParseDetails decodes a detail payload. Every field the transformer
// depends on is checked; the first missing or malformed one is reported
// as a *ParseError.
func ParseDetails(raw json.RawMessage) (*Details, error) {
	var w wirePayload
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &ParseError{Field: "body", Err: err}
	}

	d := &Details{
		ID:            string(w.ID),
		URL:           w.URL,
		CategoryID:    string(w.CategoryID),
		SubcategoryID: string(w.SubcategoryID),
	}

	if w.Name == nil || w.Name.Text == nil {
		return nil, missing("name.text")
	}
	d.Name = *w.Name.Text

	if w.Tickets == nil {
		return nil, missing("ticket_availability")
	}
	var err error
	if d.PriceLower, err = parsePrice("ticket_availability.minimum_ticket_price", w.Tickets.Minimum); err != nil {
		return nil, err
	}
	if d.PriceUpper, err = parsePrice("ticket_availability.maximum_ticket_price", w.Tickets.Maximum); err != nil {
		return nil, err
	}

	if d.Start, err = parseLocalTime("start", w.Start); err != nil {
		return nil, err
	}
	if d.End, err = parseLocalTime("end", w.End); err != nil {
		return nil, err
	}

	if w.Changed != nil && *w.Changed != "" {
		t, err := time.Parse(TimeLayout, *w.Changed)
		if err != nil {
			return nil, &ParseError{Field: "changed", Err: err}
		}
		d.Changed = &t
	}

	if w.Logo != nil && w.Logo.Original != nil {
		d.LogoURL = w.Logo.Original.URL
	}

	if d.Venue, err = parseVenue(w.Venue); err != nil {
		return nil, err
	}
	return d, nil
}

func parsePrice(field string, p *wirePrice) (float64, error) {
	if p == nil || p.MajorValue == "" {
		return 0, missing(field + ".major_value")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(p.MajorValue)), 64)
	if err != nil {
		return 0, &ParseError{Field: field + ".major_value", Err: err}
	}
	return v, nil
}

// parseLocalTime reads the utc instant and presents it in the payload's
// IANA timezone.
func parseLocalTime(field string, t *wireTime) (time.Time, error) {
	if t == nil || t.UTC == "" {
		return time.Time{}, missing(field + ".utc")
	}
	instant, err := time.Parse(TimeLayout, t.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Field: field + ".utc", Err: err}
	}
	if t.Timezone == "" {
		return time.Time{}, missing(field + ".timezone")
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.Time{}, &ParseError{Field: field + ".timezone", Err: err}
	}
	return instant.In(loc), nil
}

func parseVenue(v *wireVenue) (Venue, error) {
	if v == nil {
		return Venue{}, missing("venue")
	}
	if v.Name == nil || *v.Name == "" {
		return Venue{}, missing("venue.name")
	}
	if v.Address == nil {
		return Venue{}, missing("venue.address")
	}
	lat, err := strconv.ParseFloat(string(v.Address.Latitude), 64)
	if err != nil {
		return Venue{}, &ParseError{Field: "venue.address.latitude", Err: err}
	}
	lng, err := strconv.ParseFloat(string(v.Address.Longitude), 64)
	if err != nil {
		return Venue{}, &ParseError{Field: "venue.address.longitude", Err: err}
	}
	return Venue{Name: *v.Name, Lat: lat, Lng: lng}, nil
}
