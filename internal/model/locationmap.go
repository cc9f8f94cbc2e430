package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skyviewcafe/atlas/internal/normalize"
)

var keySuffixPattern = regexp.MustCompile(`\((\d+)\)$`)

// LocationMap is an insertion-aware collection of locations keyed by
// "CITY,REGION". Distinct locations that collide on the same key get a
// "(2)", "(3)"... suffix; dedup later collapses suffixed keys back into one
// bucket. Iteration order over Keys is stable for deterministic merging.
type LocationMap struct {
	keys  []string
	items map[string]Location
}

// NewLocationMap returns an empty map.
func NewLocationMap() *LocationMap {
	return &LocationMap{items: make(map[string]Location)}
}

// MakeLocationKey builds the composite key for a location: the simplified
// city plus the state for US/Canadian places, the country otherwise.
func MakeLocationKey(loc *Location) string {
	region := loc.Country
	if (loc.Country == "USA" || loc.Country == "CAN") && loc.State != "" {
		region = loc.State
	}
	return normalize.Simplify(loc.City) + "," + strings.ToUpper(region)
}

// BaseKey strips a trailing "(n)" collision suffix.
func BaseKey(key string) string {
	return keySuffixPattern.ReplaceAllString(key, "")
}

// Add inserts loc under its composite key, appending a numeric suffix on
// collision. The key actually used is returned.
func (m *LocationMap) Add(loc Location) string {
	key := MakeLocationKey(&loc)
	if _, exists := m.items[key]; exists {
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s(%d)", key, n)
			if _, taken := m.items[candidate]; !taken {
				key = candidate
				break
			}
		}
	}
	m.Put(key, loc)
	return key
}

// Put inserts or replaces the location stored under an explicit key.
func (m *LocationMap) Put(key string, loc Location) {
	if _, exists := m.items[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.items[key] = loc
}

// Get returns the location stored under key.
func (m *LocationMap) Get(key string) (Location, bool) {
	loc, ok := m.items[key]
	return loc, ok
}

// Delete removes key from the map.
func (m *LocationMap) Delete(key string) {
	if _, ok := m.items[key]; !ok {
		return
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *LocationMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of stored locations.
func (m *LocationMap) Len() int {
	return len(m.items)
}

// Values returns the locations in insertion order.
func (m *LocationMap) Values() []Location {
	out := make([]Location, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.items[k])
	}
	return out
}

// AddAll merges every entry of other into m, applying collision suffixes.
func (m *LocationMap) AddAll(other *LocationMap) {
	if other == nil {
		return
	}
	for _, loc := range other.Values() {
		m.Add(loc)
	}
}
