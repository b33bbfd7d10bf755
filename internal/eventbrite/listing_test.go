package eventbrite

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasNoResults(t *testing.T) {
	assert.True(t, HasNoResults("<p>Nothing matched your search, but you might like these options.</p>", ""))
	assert.False(t, HasNoResults("Loads of results!", ""))
	assert.True(t, HasNoResults("end of list", "end of list"))
}

func TestExtractEventIDs(t *testing.T) {
	page, err := os.ReadFile("testdata/listing_page.html")
	require.NoError(t, err)

	ids, err := ExtractEventIDs(string(page))
	require.NoError(t, err)
	assert.Equal(t, []string{"336417435357", "211654312747", "92050063217"}, ids)
}

func TestEventIDFromURL(t *testing.T) {
	tests := []struct {
		href string
		id   string
		ok   bool
	}{
		{"https://www.eventbrite.com/e/some-event-tickets-123?aff=x", "123", true},
		{"https://www.eventbrite.co.uk/e/another-456", "456", true},
		{"https://www.eventbrite.co.uk/e/789", "789", true},
		{"https://www.eventbrite.co.uk/e/no-id-here", "", false},
		{"https://www.eventbrite.de/e/german-event-111", "", false},
		{"/e/relative-222", "", false},
	}
	for _, tt := range tests {
		id, ok := EventIDFromURL(tt.href)
		assert.Equal(t, tt.ok, ok, tt.href)
		assert.Equal(t, tt.id, id, tt.href)
	}
}
