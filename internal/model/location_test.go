package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func nashua() Location {
	return Location{
		City:        "Nashua",
		State:       "NH",
		Country:     "USA",
		LongCountry: "United States",
		Latitude:    42.7654,
		Longitude:   -71.4676,
		Zone:        "America/New_York",
		Rank:        3,
		PlaceType:   "P.PPL",
	}
}

func TestDisplayName(t *testing.T) {
	loc := nashua()
	assert.Equal(t, "Nashua, NH, United States", loc.DisplayName())

	loc.County = "Hillsborough"
	assert.Equal(t, "Nashua, NH, United States", loc.DisplayName())

	loc.ShowCounty = true
	assert.Equal(t, "Nashua, Hillsborough, NH, United States", loc.DisplayName())

	paris := Location{City: "Paris", State: "Île-de-France", Country: "FRA", LongCountry: "France"}
	assert.Equal(t, "Paris, France", paris.DisplayName())

	paris.ShowState = true
	assert.Equal(t, "Paris, Île-de-France, France", paris.DisplayName())
}

func TestDistanceKm(t *testing.T) {
	nyc := Location{Latitude: 40.7128, Longitude: -74.0060}
	boston := Location{Latitude: 42.3601, Longitude: -71.0589}
	d := nyc.DistanceKm(&boston)
	assert.InDelta(t, 306, d, 5)

	same := Location{Latitude: 40.7128, Longitude: -74.0060}
	assert.InDelta(t, 0, nyc.DistanceKm(&same), 0.001)
}

func TestIsCloseMatch(t *testing.T) {
	a := nashua()
	b := nashua()
	assert.True(t, a.IsCloseMatch(&b))

	// presentation-layer differences still match
	b.Rank = 7
	b.Source = SourceGetty
	b.ShowState = true
	assert.True(t, a.IsCloseMatch(&b))

	b = nashua()
	b.Latitude += 0.01
	assert.False(t, a.IsCloseMatch(&b))

	b = nashua()
	b.Zone = "America/Chicago"
	assert.False(t, a.IsCloseMatch(&b))

	b = nashua()
	b.City = "NASHUA"
	assert.True(t, a.IsCloseMatch(&b), "city comparison is case-insensitive")
}

func TestMakeLocationKey(t *testing.T) {
	loc := nashua()
	assert.Equal(t, "NASHUA,NH", MakeLocationKey(&loc))

	paris := Location{City: "Paris", Country: "FRA"}
	assert.Equal(t, "PARIS,FRA", MakeLocationKey(&paris))

	parisTX := Location{City: "Paris", State: "TX", Country: "USA"}
	assert.Equal(t, "PARIS,TX", MakeLocationKey(&parisTX))
}

func TestLocationMap_CollisionSuffix(t *testing.T) {
	m := NewLocationMap()
	first := nashua()
	second := nashua()
	second.Latitude += 1

	k1 := m.Add(first)
	k2 := m.Add(second)

	assert.Equal(t, "NASHUA,NH", k1)
	assert.Equal(t, "NASHUA,NH(2)", k2)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "NASHUA,NH", BaseKey(k2))

	third := nashua()
	k3 := m.Add(third)
	assert.Equal(t, "NASHUA,NH(3)", k3)
}

func TestLocationMap_Order(t *testing.T) {
	m := NewLocationMap()
	m.Add(Location{City: "Zurich", Country: "CHE"})
	m.Add(Location{City: "Aarau", Country: "CHE"})

	assert.Equal(t, []string{"ZURICH,CHE", "AARAU,CHE"}, m.Keys())

	m.Delete("ZURICH,CHE")
	assert.Equal(t, []string{"AARAU,CHE"}, m.Keys())
	assert.Equal(t, 1, m.Len())
}
