// Package places adapts the Google Maps Places API to the venue resolver.
package places

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"googlemaps.github.io/maps"

	"github.com/mymemorymaker/event-ingest/internal/service/venue"
)

// maxPhotoBytes bounds a downloaded place photo.
const maxPhotoBytes = 10 << 20

// Config holds the Places API settings.
type Config struct {
	APIKey       string
	BaseURL      string // empty for the public endpoint
	RadiusMeters uint
	PhotoWidth   uint
}

// Client implements venue.PlaceSearcher and venue.PhotoFetcher.
type Client struct {
	maps       *maps.Client
	radius     uint
	photoWidth uint
}

// NewClient builds a Places client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, maps.WithHTTPClient(httpClient))
	}
	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	if cfg.RadiusMeters == 0 {
		cfg.RadiusMeters = 1000
	}
	if cfg.PhotoWidth == 0 {
		cfg.PhotoWidth = 1600
	}
	return &Client{maps: mc, radius: cfg.RadiusMeters, photoWidth: cfg.PhotoWidth}, nil
}

// SearchPlaces runs a text search for the venue name biased to the area
// around (lat, lng). Results come back in relevance order.
func (c *Client) SearchPlaces(ctx context.Context, query string, lat, lng float64) ([]venue.Candidate, error) {
	resp, err := c.maps.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    query,
		Location: &maps.LatLng{Lat: lat, Lng: lng},
		Radius:   c.radius,
	})
	if err != nil {
		return nil, fmt.Errorf("places text search %q: %w", query, err)
	}

	out := make([]venue.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		cand := venue.Candidate{
			PlaceID: r.PlaceID,
			Name:    r.Name,
			Address: r.FormattedAddress,
			Lat:     r.Geometry.Location.Lat,
			Lng:     r.Geometry.Location.Lng,
		}
		// The API omits rating for unrated places, which decodes as zero.
		if r.Rating > 0 {
			rating := float64(r.Rating)
			cand.Rating = &rating
		}
		for _, p := range r.Photos {
			if p.PhotoReference != "" {
				cand.PhotoRefs = append(cand.PhotoRefs, p.PhotoReference)
			}
		}
		out = append(out, cand)
	}
	return out, nil
}

// PhotoBytes downloads a place photo by reference.
func (c *Client) PhotoBytes(ctx context.Context, ref string) ([]byte, error) {
	resp, err := c.maps.PlacePhoto(ctx, &maps.PlacePhotoRequest{
		PhotoReference: ref,
		MaxWidth:       c.photoWidth,
	})
	if err != nil {
		return nil, fmt.Errorf("place photo: %w", err)
	}
	defer resp.Data.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Data, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read place photo: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("place photo exceeds %d bytes", maxPhotoBytes)
	}
	return data, nil
}
