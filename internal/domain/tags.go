package domain

// Tags is a free-form attribute bag attached to events and places. Keys are
// filter names; a key set to true means the entity carries that filter.
//
// Tags are never replaced on write. Other subsystems (moderation, the rule
// engine) add their own keys and those must survive every ingestion update.
type Tags map[string]bool

// NewTags builds a tag set with every given name set to true.
func NewTags(names ...string) Tags {
	t := make(Tags, len(names))
	for _, n := range names {
		if n != "" {
			t[n] = true
		}
	}
	return t
}

// Merge unions other into t and returns t. A nil receiver yields a fresh set.
// A key already present keeps true if either side has it true.
func (t Tags) Merge(other Tags) Tags {
	if t == nil {
		t = make(Tags, len(other))
	}
	for k, v := range other {
		t[k] = t[k] || v
	}
	return t
}

// Clone returns an independent copy.
func (t Tags) Clone() Tags {
	return Tags(nil).Merge(t)
}

// Has reports whether the tag is set.
func (t Tags) Has(name string) bool { return t[name] }
