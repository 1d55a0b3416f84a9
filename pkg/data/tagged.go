package data

import "fmt"

// TaggedEntries groups the point sets sharing one value of a tag, typically
// the edge sets bound to a vertex set.
type TaggedEntries struct {
	TagID    string
	TagValue string
	// Key is the point set the group was created for.
	Key     *PointIO
	Entries []*PointIO
}

// Add appends io to the group.
func (e *TaggedEntries) Add(io *PointIO) {
	e.Entries = append(e.Entries, io)
}

// TaggedDictionary indexes point sets by the value of TagID.
type TaggedDictionary struct {
	TagID   string
	entries []*TaggedEntries
	byValue map[string]int
}

// NewTaggedDictionary returns an empty dictionary grouping by tagID.
func NewTaggedDictionary(tagID string) *TaggedDictionary {
	return &TaggedDictionary{TagID: tagID, byValue: make(map[string]int)}
}

// CreateKey registers key under its TagID value. A second key with the same
// value returns the existing group.
func (d *TaggedDictionary) CreateKey(key *PointIO) (*TaggedEntries, error) {
	value, ok := key.Tags.Get(d.TagID)
	if !ok {
		return nil, fmt.Errorf("%w: %q on point set %d", ErrMissingTag, d.TagID, key.IOIndex)
	}
	if i, ok := d.byValue[value]; ok {
		return d.entries[i], nil
	}
	e := &TaggedEntries{TagID: d.TagID, TagValue: value, Key: key}
	d.byValue[value] = len(d.entries)
	d.entries = append(d.entries, e)
	return e, nil
}

// TryAddEntry appends entry to the group matching its TagID value. It
// returns false when the tag is missing or no key has that value.
func (d *TaggedDictionary) TryAddEntry(entry *PointIO) bool {
	value, ok := entry.Tags.Get(d.TagID)
	if !ok {
		return false
	}
	i, ok := d.byValue[value]
	if !ok {
		return false
	}
	d.entries[i].Add(entry)
	return true
}

// Entries returns the group for value.
func (d *TaggedDictionary) Entries(value string) (*TaggedEntries, bool) {
	i, ok := d.byValue[value]
	if !ok {
		return nil, false
	}
	return d.entries[i], true
}

// All returns every group in creation order.
func (d *TaggedDictionary) All() []*TaggedEntries {
	return d.entries
}
