package model

import (
	"math"
	"strings"

	"github.com/golang/geo/s2"
)

// Source values identify where a location record came from. Values below
// MinExternalSource are local (authoritative); higher values are fresher
// remote data.
const (
	MinExternalSource = 100

	SourceGeonamesPostal  = 101
	SourceGeonamesGeneral = 103
	SourceGetty           = 104
)

// Rank bounds. Postal-code matches are pinned to ZipRank; everything else
// clamps to MaxNonZipRank.
const (
	ZipRank       = 9
	MaxNonZipRank = 8
)

const earthRadiusKm = 6371.0

// Location is a single resolved place. Instances are created from database
// rows or remote documents, adjusted during dedup and writeback preparation,
// and immutable afterwards.
type Location struct {
	City        string  `json:"city"`
	Variant     string  `json:"variant,omitempty"`
	County      string  `json:"county,omitempty"`
	State       string  `json:"state,omitempty"`
	Country     string  `json:"country,omitempty"`
	LongCountry string  `json:"longCountry,omitempty"`
	ShowCounty  bool    `json:"showCounty,omitempty"`
	ShowState   bool    `json:"showState,omitempty"`
	FlagCode    string  `json:"flagCode,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Elevation   float64 `json:"elevation,omitempty"`
	Zone        string  `json:"zone,omitempty"`
	Zip         string  `json:"zip,omitempty"`
	Rank        int     `json:"rank"`
	PlaceType   string  `json:"placeType,omitempty"`
	Source      int     `json:"source"`
	GeonameID   int64   `json:"geonameID,omitempty"`

	MatchedByAlternateName bool `json:"matchedByAlternateName,omitempty"`
	MatchedBySound         bool `json:"matchedBySound,omitempty"`

	// UseAsUpdate is set by dedup when a fresher remote copy should
	// overwrite the matching local row. Transient, cleared by writeback.
	UseAsUpdate bool `json:"-"`

	// ItemNo is the atlas2 primary key for locations read from the local
	// database, 0 otherwise.
	ItemNo int64 `json:"-"`
}

// DisplayName composes the human-readable form: city, optional county and
// state, then country.
func (l *Location) DisplayName() string {
	parts := []string{l.City}
	if l.County != "" && l.ShowCounty {
		parts = append(parts, l.County)
	}
	if l.State != "" && (l.ShowState || l.Country == "USA" || l.Country == "CAN") {
		parts = append(parts, l.State)
	}
	if l.LongCountry != "" {
		parts = append(parts, l.LongCountry)
	} else if l.Country != "" {
		parts = append(parts, l.Country)
	}
	return strings.Join(parts, ", ")
}

// DistanceKm returns the great-circle distance to other in kilometers.
func (l *Location) DistanceKm(other *Location) float64 {
	p1 := s2.LatLngFromDegrees(l.Latitude, l.Longitude)
	p2 := s2.LatLngFromDegrees(other.Latitude, other.Longitude)
	return p1.Distance(p2).Radians() * earthRadiusKm
}

// IsCloseMatch reports whether other differs from l only in
// presentation-layer fields: names compare case-insensitively, coordinates
// to about 10 meters, and elevation, zone, zip and place type exactly.
func (l *Location) IsCloseMatch(other *Location) bool {
	return eqci(l.City, other.City) &&
		eqci(l.Variant, other.Variant) &&
		eqci(l.County, other.County) &&
		eqci(l.State, other.State) &&
		eqci(l.Country, other.Country) &&
		math.Abs(l.Latitude-other.Latitude) < 1e-4 &&
		math.Abs(l.Longitude-other.Longitude) < 1e-4 &&
		l.Elevation == other.Elevation &&
		l.Zone == other.Zone &&
		l.Zip == other.Zip &&
		l.PlaceType == other.PlaceType
}

// IsRemote reports whether the location originated from an external source.
func (l *Location) IsRemote() bool {
	return l.Source >= MinExternalSource
}

func eqci(a, b string) bool {
	return strings.EqualFold(a, b)
}
