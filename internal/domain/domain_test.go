package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTags_MergeIsUnion(t *testing.T) {
	existing := Tags{"some_existing_filter": true, "moderated": true}
	merged := existing.Merge(NewTags("event_filter", "moderated"))

	assert.Equal(t, Tags{"some_existing_filter": true, "moderated": true, "event_filter": true}, merged)
}

func TestTags_MergeNeverClearsTrue(t *testing.T) {
	merged := Tags{"a": true}.Merge(Tags{"a": false, "b": false})
	assert.True(t, merged.Has("a"))
	assert.False(t, merged.Has("b"))
	assert.Equal(t, Tags{"a": true, "b": false}, merged)
}

func TestTags_MergeOnNil(t *testing.T) {
	var tags Tags
	merged := tags.Merge(NewTags("x"))
	assert.Equal(t, Tags{"x": true}, merged)
}

func TestPlaceSnapshot_Equal(t *testing.T) {
	r1, r2 := 4.55, 4.55
	a := PlaceSnapshot{Version: PlaceSnapshotVersion, Rating: &r1, Address: "1 Place Avenue"}
	b := PlaceSnapshot{Version: PlaceSnapshotVersion, Rating: &r2, Address: "1 Place Avenue"}
	assert.True(t, a.Equal(b))

	b.Rating = nil
	assert.False(t, a.Equal(b))

	b.Rating = &r2
	b.Version = 0
	assert.False(t, a.Equal(b))
}

func TestRawEvent_ChangedSinceParse(t *testing.T) {
	now := time.Now()
	raw := &RawEvent{LastFetched: now}
	assert.True(t, raw.ChangedSinceParse())

	parsed := now.Add(time.Minute)
	raw.LastParsed = &parsed
	assert.False(t, raw.ChangedSinceParse())

	raw.LastFetched = now.Add(2 * time.Minute)
	assert.True(t, raw.ChangedSinceParse())
}

func TestEvent_CloneIsIndependent(t *testing.T) {
	e := &Event{Tags: NewTags("a"), ImageIDs: []string{"img-1"}}
	c := e.Clone()
	c.Tags["b"] = true
	c.AddImage("img-2")
	c.AddImage("img-1")

	assert.False(t, e.Tags.Has("b"))
	assert.Equal(t, []string{"img-1"}, e.ImageIDs)
	assert.Equal(t, []string{"img-1", "img-2"}, c.ImageIDs)
}
