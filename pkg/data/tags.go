package data

import (
	"sort"
	"strings"
	"sync"
)

// TagSeparator splits "name:value" tags.
const TagSeparator = ":"

// Tags is the tag set of a point set. Raw tags carry no value; value tags
// are stored as name → value and flatten to "name:value".
type Tags struct {
	mu     sync.RWMutex
	raw    map[string]struct{}
	values map[string]string
}

// NewTags parses each tag with Add.
func NewTags(tags ...string) *Tags {
	t := &Tags{raw: make(map[string]struct{}), values: make(map[string]string)}
	t.Add(tags...)
	return t
}

// Add parses and stores tags. "name:value" becomes a value tag.
func (t *Tags) Add(tags ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if name, value, ok := strings.Cut(tag, TagSeparator); ok {
			t.values[name] = value
			continue
		}
		t.raw[tag] = struct{}{}
	}
}

// Set stores a value tag, replacing any previous value.
func (t *Tags) Set(name, value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.raw, name)
	t.values[name] = value
}

// Get returns the value of a value tag.
func (t *Tags) Get(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[name]
	return v, ok
}

// Has reports whether name is present as a raw or value tag.
func (t *Tags) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.raw[name]; ok {
		return true
	}
	_, ok := t.values[name]
	return ok
}

// Remove deletes name from both raw and value tags.
func (t *Tags) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.raw, name)
	delete(t.values, name)
}

// Append merges other into t. Values from other win.
func (t *Tags) Append(other *Tags) {
	if other == nil || other == t {
		return
	}
	t.Add(other.Flatten()...)
}

// Reset replaces the content of t with a copy of other.
func (t *Tags) Reset(other *Tags) {
	var flat []string
	if other != nil {
		flat = other.Flatten()
	}
	t.mu.Lock()
	t.raw = make(map[string]struct{})
	t.values = make(map[string]string)
	t.mu.Unlock()
	t.Add(flat...)
}

// Clone returns an independent copy.
func (t *Tags) Clone() *Tags {
	return NewTags(t.Flatten()...)
}

// Len returns the number of tags.
func (t *Tags) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.raw) + len(t.values)
}

// Flatten returns all tags sorted, value tags as "name:value".
func (t *Tags) Flatten() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.raw)+len(t.values))
	for tag := range t.raw {
		out = append(out, tag)
	}
	for name, value := range t.values {
		out = append(out, name+TagSeparator+value)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}
