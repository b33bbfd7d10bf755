// Package eventbrite talks to the Eventbrite public listing pages and the
// v3 REST API, and decodes the event detail payload.
package eventbrite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mymemorymaker/event-ingest/internal/pkg/httpretry"
)

// DetailExpansions is the expand list requested with every event detail.
const DetailExpansions = "category,subcategory,venue,format,listing_properties,ticket_availability"

// maxBodyBytes bounds how much of a response body is read into memory.
const maxBodyBytes = 8 << 20

// Config holds the endpoints and credentials for the Eventbrite client.
type Config struct {
	APIBaseURL string
	ListingURL string
	Token      string
}

// Client fetches listing pages, event details and descriptions. All
// requests go through the retrying client, so 5xx answers are retried
// before a *httpretry.FetchError is returned.
type Client struct {
	http       *httpretry.Client
	apiBase    string
	listingURL string
	token      string
}

// NewClient creates an Eventbrite client.
func NewClient(hc *httpretry.Client, cfg Config) *Client {
	return &Client{
		http:       hc,
		apiBase:    strings.TrimRight(cfg.APIBaseURL, "/"),
		listingURL: cfg.ListingURL,
		token:      cfg.Token,
	}
}

// ListingPageURL returns the listing page URL for a 1-based page number.
func (c *Client) ListingPageURL(page int) string {
	u, err := url.Parse(c.listingURL)
	if err != nil {
		return c.listingURL + "?page=" + strconv.Itoa(page)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// EventURL returns the detail endpoint for an event id.
func (c *Client) EventURL(id string) string {
	return fmt.Sprintf("%s/events/%s/?expand=%s&token=%s",
		c.apiBase, url.PathEscape(id), DetailExpansions, url.QueryEscape(c.token))
}

// DescriptionURL returns the description endpoint for an event id.
func (c *Client) DescriptionURL(id string) string {
	return fmt.Sprintf("%s/events/%s/description/?token=%s",
		c.apiBase, url.PathEscape(id), url.QueryEscape(c.token))
}

// ListingPage fetches one public listing page and returns its HTML.
func (c *Client) ListingPage(ctx context.Context, page int) (string, error) {
	body, err := c.getOK(ctx, c.ListingPageURL(page))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Event fetches the detail payload for an event. The body must be valid JSON
// and is returned verbatim.
func (c *Client) Event(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := c.getOK(ctx, c.EventURL(id))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &ParseError{Field: "body", Err: fmt.Errorf("event %s: response is not valid JSON", id)}
	}
	return json.RawMessage(body), nil
}

// Description fetches the full HTML description of an event. The HTML is
// returned unsanitized.
func (c *Client) Description(ctx context.Context, id string) (string, error) {
	body, err := c.getOK(ctx, c.DescriptionURL(id))
	if err != nil {
		return "", fmt.Errorf("unable to update description: %w", err)
	}
	var payload struct {
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &ParseError{Field: "description", Err: err}
	}
	if payload.Description == nil {
		return "", &ParseError{Field: "description", Err: ErrMissing}
	}
	return *payload.Description, nil
}

// getOK performs a GET and returns the body of a 200 response. Any other
// final status becomes a *httpretry.FetchError.
func (c *Client) getOK(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.http.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, httpretry.StatusError(rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &httpretry.FetchError{URL: httpretry.RedactURL(rawURL), Retries: 1, StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}
