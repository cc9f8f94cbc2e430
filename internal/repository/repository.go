// Package repository implements access to the atlas database: the indexed
// place table and its alternate names, the search log, the warning log and
// the time-zone lookup table.
package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/model"
)

// AtlasRepository searches and maintains the atlas2 place table.
type AtlasRepository interface {
	// Search runs the four-stage match ladder over two rank passes and
	// returns up to 4x maxMatches candidate locations.
	Search(ctx context.Context, parsed model.ParsedSearchString, extended bool, maxMatches int) (*model.LocationMap, error)
	// SaveLocations writes remote-sourced locations back into atlas2,
	// inserting new rows or updating superseded ones. Returns the number
	// of rows written.
	SaveLocations(ctx context.Context, locs []model.Location) (int, error)
}

// SearchLogRepository records searches for cache coherence.
type SearchLogRepository interface {
	HasSearchBeenDoneRecently(ctx context.Context, normalized string, extended bool) (bool, error)
	LogSearchResults(ctx context.Context, normalized string, extended bool, matches int, dbUpdated bool) error
}

// ZoneRepository resolves IANA time zones for places that arrive from
// remote sources without one.
type ZoneRepository interface {
	// ZoneForLocation returns the best zone for the admin hierarchy, with
	// a trailing "?" when several zones cover the region. Empty when
	// unknown.
	ZoneForLocation(ctx context.Context, country, state, county string) (string, error)
}

// EventLogRepository appends warnings to atlas_log.
type EventLogRepository interface {
	LogWarning(ctx context.Context, message string) error
}

// Container holds all repositories
type Container struct {
	Atlas     AtlasRepository
	SearchLog SearchLogRepository
	Zones     ZoneRepository
	EventLog  EventLogRepository
}

// NewRepositories creates repository implementations over the given
// connection. The gazetteer supplies state/country matching during the
// search ladder.
func NewRepositories(db *sqlx.DB, gaz *gazetteer.Gazetteer, logger *zap.Logger) *Container {
	return &Container{
		Atlas:     &atlasRepository{db: db, gaz: gaz, logger: logger},
		SearchLog: newSearchLogRepository(db),
		Zones:     &zoneRepository{db: db},
		EventLog:  &eventLogRepository{db: db},
	}
}

// atlasRow mirrors one atlas2 record.
type atlasRow struct {
	ItemNo      int64   `db:"item_no"`
	KeyName     string  `db:"key_name"`
	Variant     string  `db:"variant"`
	Name        string  `db:"name"`
	Admin2      string  `db:"admin2"`
	Admin1      string  `db:"admin1"`
	Country     string  `db:"country"`
	Latitude    float64 `db:"latitude"`
	Longitude   float64 `db:"longitude"`
	Elevation   float64 `db:"elevation"`
	TimeZone    string  `db:"time_zone"`
	PostalCode  string  `db:"postal_code"`
	Rank        int     `db:"rank"`
	FeatureType string  `db:"feature_type"`
	Sound       string  `db:"sound"`
	Source      int     `db:"source"`
	GeonamesID  int64   `db:"geonames_id"`
}

// altNameRow mirrors one atlas_alt_names record.
type altNameRow struct {
	AltKeyName    string `db:"alt_key_name"`
	AtlasKeyName  string `db:"atlas_key_name"`
	AltName       string `db:"alt_name"`
	Misspelling   string `db:"misspelling"`
	SpecificItem2 int64  `db:"specific_item2"`
}

type searchLogRow struct {
	SearchString string    `db:"search_string"`
	Extended     bool      `db:"extended"`
	Hits         int       `db:"hits"`
	Matches      int       `db:"matches"`
	TimeStamp    time.Time `db:"time_stamp"`
}

func (r *atlasRow) toLocation(gaz *gazetteer.Gazetteer) model.Location {
	loc := model.Location{
		City:      r.Name,
		County:    r.Admin2,
		State:     r.Admin1,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Elevation: r.Elevation,
		Zone:      r.TimeZone,
		Zip:       r.PostalCode,
		Rank:      r.Rank,
		PlaceType: r.FeatureType,
		Source:    r.Source,
		GeonameID: r.GeonamesID,
		ItemNo:    r.ItemNo,
	}
	loc.LongCountry = gaz.CountryName(r.Country)
	loc.FlagCode = gaz.FlagCode(r.Country)
	return loc
}
