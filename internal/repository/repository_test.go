package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/model"
	"github.com/skyviewcafe/atlas/internal/parse"
)

const testSchema = `
CREATE TABLE atlas2 (
	item_no INTEGER PRIMARY KEY AUTOINCREMENT,
	key_name TEXT NOT NULL,
	variant TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	admin2 TEXT NOT NULL DEFAULT '',
	admin1 TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	latitude REAL NOT NULL DEFAULT 0,
	longitude REAL NOT NULL DEFAULT 0,
	elevation REAL NOT NULL DEFAULT 0,
	time_zone TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	rank INTEGER NOT NULL DEFAULT 0,
	feature_type TEXT NOT NULL DEFAULT '',
	sound TEXT NOT NULL DEFAULT '',
	source INTEGER NOT NULL DEFAULT 0,
	geonames_id INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE atlas_alt_names (
	alt_key_name TEXT NOT NULL,
	atlas_key_name TEXT NOT NULL DEFAULT '',
	alt_name TEXT NOT NULL,
	misspelling TEXT NOT NULL DEFAULT 'N',
	specific_item2 INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE atlas_searches2 (
	search_string TEXT PRIMARY KEY,
	extended BOOLEAN NOT NULL DEFAULT 0,
	hits INTEGER NOT NULL DEFAULT 0,
	matches INTEGER NOT NULL DEFAULT 0,
	time_stamp TIMESTAMP NOT NULL
);
CREATE TABLE atlas_log (
	time_stamp TIMESTAMP NOT NULL,
	warning BOOLEAN NOT NULL DEFAULT 0,
	message TEXT NOT NULL
);
CREATE TABLE zone_lookup (
	location TEXT PRIMARY KEY,
	zones TEXT NOT NULL
);
`

type fixture struct {
	db    *sqlx.DB
	gaz   *gazetteer.Gazetteer
	repos *Container
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.MustExec(testSchema)

	gaz := gazetteer.New(zap.NewNop(), "testdata", "", "")
	require.NoError(t, gaz.Load())

	return &fixture{db: db, gaz: gaz, repos: NewRepositories(db, gaz, zap.NewNop())}
}

func (f *fixture) insertRow(t *testing.T, row atlasRow) {
	t.Helper()
	_, err := f.db.NamedExec(`INSERT INTO atlas2
		(key_name, variant, name, admin2, admin1, country, latitude, longitude,
		 elevation, time_zone, postal_code, rank, feature_type, sound, source, geonames_id)
		VALUES (:key_name, :variant, :name, :admin2, :admin1, :country, :latitude, :longitude,
		 :elevation, :time_zone, :postal_code, :rank, :feature_type, :sound, :source, :geonames_id)`,
		row)
	require.NoError(t, err)
}

func (f *fixture) seedPlaces(t *testing.T) {
	f.insertRow(t, atlasRow{
		KeyName: "NASHUA", Name: "Nashua", Admin2: "Hillsborough", Admin1: "NH",
		Country: "USA", Latitude: 42.7654, Longitude: -71.4676,
		TimeZone: "America/New_York", Rank: 2, FeatureType: "P.PPL", Sound: "N200",
	})
	f.insertRow(t, atlasRow{
		KeyName: "NASHVILLE", Name: "Nashville", Admin1: "TN",
		Country: "USA", Latitude: 36.1659, Longitude: -86.7844,
		TimeZone: "America/Chicago", Rank: 4, FeatureType: "P.PPLA", Sound: "N214",
	})
	f.insertRow(t, atlasRow{
		KeyName: "BEVERLYHILLS", Name: "Beverly Hills", Admin2: "Los Angeles", Admin1: "CA",
		Country: "USA", Latitude: 34.0901, Longitude: -118.4065,
		TimeZone: "America/Los_Angeles", PostalCode: "90210", Rank: 3,
		FeatureType: "P.PPL", Sound: "B164",
	})
	f.insertRow(t, atlasRow{
		KeyName: "NEWYORK", Name: "New York", Admin1: "NY",
		Country: "USA", Latitude: 40.7128, Longitude: -74.0060,
		TimeZone: "America/New_York", Rank: 8, FeatureType: "P.PPL", Sound: "N620",
	})
	f.db.MustExec(`INSERT INTO atlas_alt_names (alt_key_name, atlas_key_name, alt_name, misspelling)
		VALUES ('BIGAPPLE', 'NEWYORK', 'Big Apple', 'N')`)
}

func parseQuery(q string) model.ParsedSearchString {
	return parse.ParseSearchString(q, parse.Strict, nil)
}

func TestSearch_ExactMatch(t *testing.T) {
	f := newFixture(t)
	f.seedPlaces(t)

	matches, err := f.repos.Atlas.Search(context.Background(), parseQuery("Nashua, NH"), false, 75)
	require.NoError(t, err)
	require.Equal(t, 1, matches.Len())

	loc := matches.Values()[0]
	assert.Equal(t, "Nashua", loc.City)
	assert.Equal(t, "NH", loc.State)
	assert.Equal(t, "USA", loc.Country)
	assert.Equal(t, "United States", loc.LongCountry)
	assert.Equal(t, "America/New_York", loc.Zone)
	assert.Equal(t, 3, loc.Rank, "exact match gets +1")
	assert.False(t, loc.MatchedBySound)
}

func TestSearch_Postal(t *testing.T) {
	f := newFixture(t)
	f.seedPlaces(t)

	matches, err := f.repos.Atlas.Search(context.Background(), parseQuery("90210"), false, 75)
	require.NoError(t, err)
	require.Equal(t, 1, matches.Len())

	loc := matches.Values()[0]
	assert.Equal(t, model.ZipRank, loc.Rank)
	assert.Equal(t, "90210", loc.Zip)
	assert.Equal(t, "CA", loc.State)
}

func TestSearch_AlternateName(t *testing.T) {
	f := newFixture(t)
	f.seedPlaces(t)

	matches, err := f.repos.Atlas.Search(context.Background(), parseQuery("Big Apple"), false, 75)
	require.NoError(t, err)
	require.Equal(t, 1, matches.Len())

	loc := matches.Values()[0]
	assert.Equal(t, "Big Apple", loc.City, "non-misspelling alt name replaces display city")
	assert.True(t, loc.MatchedByAlternateName)
	assert.Equal(t, "NY", loc.State)
}

func TestSearch_StartsWith(t *testing.T) {
	f := newFixture(t)
	f.seedPlaces(t)

	matches, err := f.repos.Atlas.Search(context.Background(), parseQuery("Nash"), false, 75)
	require.NoError(t, err)
	assert.Equal(t, 2, matches.Len(), "Nashua and Nashville both start with NASH")
}

func TestSearch_SoundsLike(t *testing.T) {
	f := newFixture(t)
	f.seedPlaces(t)

	matches, err := f.repos.Atlas.Search(context.Background(), parseQuery("Nashau"), false, 75)
	require.NoError(t, err)
	require.Equal(t, 1, matches.Len())

	loc := matches.Values()[0]
	assert.Equal(t, "Nashua", loc.City)
	assert.True(t, loc.MatchedBySound)
	assert.Equal(t, 1, loc.Rank, "sound match gets -1")
}

func TestSearch_StateFilter(t *testing.T) {
	f := newFixture(t)
	f.seedPlaces(t)

	matches, err := f.repos.Atlas.Search(context.Background(), parseQuery("Nashua, CA"), false, 75)
	require.NoError(t, err)
	assert.Equal(t, 0, matches.Len())
}

func TestSearch_ExternalRowsNeedPassOne(t *testing.T) {
	f := newFixture(t)
	f.insertRow(t, atlasRow{
		KeyName: "REMOTEVILLE", Name: "Remoteville", Admin1: "VT", Country: "USA",
		Rank: 5, FeatureType: "P.PPL", Sound: "R531",
		Source: model.SourceGeonamesGeneral, GeonamesID: 12345,
	})

	// not extended: skipped in pass 0 but found in pass 1
	matches, err := f.repos.Atlas.Search(context.Background(), parseQuery("Remoteville"), false, 75)
	require.NoError(t, err)
	require.Equal(t, 1, matches.Len())

	// extended: already found in pass 0
	matches, err = f.repos.Atlas.Search(context.Background(), parseQuery("Remoteville"), true, 75)
	require.NoError(t, err)
	assert.Equal(t, 1, matches.Len())
}

func TestSearch_ZeroRankOnlyInPassOne(t *testing.T) {
	f := newFixture(t)
	f.insertRow(t, atlasRow{
		KeyName: "OBSCURA", Name: "Obscura", Admin1: "NM", Country: "USA",
		Rank: 0, FeatureType: "P.PPL", Sound: "O126",
	})

	matches, err := f.repos.Atlas.Search(context.Background(), parseQuery("Obscura"), false, 75)
	require.NoError(t, err)
	require.Equal(t, 1, matches.Len())
	assert.Equal(t, 1, matches.Values()[0].Rank, "rank 0 + exact bonus")
}

func TestSearchLog_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	log := f.repos.SearchLog

	recent, err := log.HasSearchBeenDoneRecently(ctx, "NASHUA, NH", false)
	require.NoError(t, err)
	assert.False(t, recent)

	require.NoError(t, log.LogSearchResults(ctx, "NASHUA, NH", false, 3, true))

	recent, err = log.HasSearchBeenDoneRecently(ctx, "NASHUA, NH", false)
	require.NoError(t, err)
	assert.True(t, recent)

	// a non-extended row does not satisfy an extended request
	recent, err = log.HasSearchBeenDoneRecently(ctx, "NASHUA, NH", true)
	require.NoError(t, err)
	assert.False(t, recent)

	// extended is sticky once logged
	require.NoError(t, log.LogSearchResults(ctx, "NASHUA, NH", true, 3, true))
	recent, err = log.HasSearchBeenDoneRecently(ctx, "NASHUA, NH", true)
	require.NoError(t, err)
	assert.True(t, recent)

	var row searchLogRow
	require.NoError(t, f.db.Get(&row, "SELECT search_string, extended, hits, matches, time_stamp FROM atlas_searches2 WHERE search_string = 'NASHUA, NH'"))
	assert.Equal(t, 2, row.Hits)
	assert.True(t, row.Extended)
}

func TestSearchLog_OldRowNotRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-13 * 30 * 24 * time.Hour)
	f.db.MustExec(`INSERT INTO atlas_searches2 (search_string, extended, hits, matches, time_stamp)
		VALUES ('OLDTOWN', 1, 5, 2, ?)`, old)

	recent, err := f.repos.SearchLog.HasSearchBeenDoneRecently(ctx, "OLDTOWN", false)
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestSaveLocations_InsertAndMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	loc := model.Location{
		City: "Gorham", County: "Coos", State: "NH", Country: "USA",
		Latitude: 44.3878, Longitude: -71.1731, Zone: "America/New_York",
		Rank: 2, PlaceType: "P.PPL", Source: model.SourceGeonamesGeneral, GeonameID: 5085382,
	}
	written, err := f.repos.Atlas.SaveLocations(ctx, []model.Location{loc})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	var row atlasRow
	require.NoError(t, f.db.Get(&row, "SELECT item_no, key_name, variant, name, admin2, admin1, country, latitude, longitude, elevation, time_zone, postal_code, rank, feature_type, sound, source, geonames_id FROM atlas2 WHERE key_name = 'GORHAM'"))
	assert.Equal(t, "Gorham", row.Name)
	assert.Equal(t, "G650", row.Sound)
	assert.Equal(t, int64(5085382), row.GeonamesID)

	// saving the same place again matches by key/country/proximity/state
	// and writes nothing new
	written, err = f.repos.Atlas.SaveLocations(ctx, []model.Location{loc})
	require.NoError(t, err)
	assert.Equal(t, 0, written)

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM atlas2"))
	assert.Equal(t, 1, count)
}

func TestSaveLocations_LocalRowsIgnored(t *testing.T) {
	f := newFixture(t)

	loc := model.Location{City: "Localtown", Country: "USA", Source: 1}
	written, err := f.repos.Atlas.SaveLocations(context.Background(), []model.Location{loc})
	require.NoError(t, err)
	assert.Equal(t, 0, written)
}

func TestSaveLocations_UpdateByGeonameID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// two stale duplicates sharing a geonames_id
	for i := 0; i < 2; i++ {
		f.insertRow(t, atlasRow{
			KeyName: "GORHAM", Name: "Gorham", Admin1: "NH", Country: "USA",
			Latitude: 44.38, Longitude: -71.17, Rank: 1, FeatureType: "P.PPL",
			Sound: "G650", Source: model.SourceGeonamesGeneral, GeonamesID: 5085382,
		})
	}

	loc := model.Location{
		City: "Gorham", County: "Coos", State: "NH", Country: "USA",
		Latitude: 44.3878, Longitude: -71.1731, Zone: "America/New_York",
		Rank: 3, PlaceType: "P.PPL", Source: model.SourceGeonamesGeneral,
		GeonameID: 5085382, UseAsUpdate: true,
	}
	written, err := f.repos.Atlas.SaveLocations(ctx, []model.Location{loc})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM atlas2 WHERE geonames_id = 5085382"))
	assert.Equal(t, 1, count, "duplicates deleted")

	var rank int
	require.NoError(t, f.db.Get(&rank, "SELECT rank FROM atlas2 WHERE geonames_id = 5085382"))
	assert.Equal(t, 3, rank)
}

func TestSaveLocations_BackfillAdminNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.insertRow(t, atlasRow{
		KeyName: "GORHAM", Name: "Gorham", Admin1: "NH", Country: "USA",
		Latitude: 44.3878, Longitude: -71.1731, Rank: 2, FeatureType: "P.PPL", Sound: "G650",
	})

	loc := model.Location{
		City: "Gorham", County: "Coos", State: "NH", Country: "USA",
		Latitude: 44.3878, Longitude: -71.1731,
		Rank: 2, PlaceType: "P.PPL", Source: model.SourceGeonamesGeneral, GeonameID: 5085382,
	}
	written, err := f.repos.Atlas.SaveLocations(ctx, []model.Location{loc})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	var admin2 string
	require.NoError(t, f.db.Get(&admin2, "SELECT admin2 FROM atlas2 WHERE key_name = 'GORHAM'"))
	assert.Equal(t, "Coos", admin2)
}

func TestZoneForLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.db.MustExec(`INSERT INTO zone_lookup (location, zones) VALUES
		('USA:NH', 'America/New_York'),
		('USA:TX', 'America/Chicago,America/Denver'),
		('FRA', 'Europe/Paris')`)

	zone, err := f.repos.Zones.ZoneForLocation(ctx, "USA", "NH", "")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", zone)

	zone, err = f.repos.Zones.ZoneForLocation(ctx, "USA", "TX", "Lamar")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago?", zone, "multiple zones are ambiguous")

	zone, err = f.repos.Zones.ZoneForLocation(ctx, "FRA", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", zone)

	zone, err = f.repos.Zones.ZoneForLocation(ctx, "ZZZ", "", "")
	require.NoError(t, err)
	assert.Empty(t, zone)
}

func TestLogWarning(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repos.EventLog.LogWarning(context.Background(), "state conflict near 42.76,-71.46"))

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM atlas_log WHERE warning = 1"))
	assert.Equal(t, 1, count)
}
