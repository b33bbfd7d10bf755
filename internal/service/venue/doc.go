// Package venue resolves an event's venue to a deduplicated catalogue place.
//
// Resolution searches the places provider by venue name near the venue's
// coordinates, takes the top candidate and keys it by the provider's place
// id. A place is created once per provider id; later resolutions only
// refresh its snapshot and add tags.
//
// The service depends on the Repository interface in repository.go and on
// the provider interfaces below. It never imports net/http or database/sql.
package venue
