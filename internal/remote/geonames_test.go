package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/model"
)

func testGazetteer(t *testing.T) *gazetteer.Gazetteer {
	t.Helper()
	gaz := gazetteer.New(zap.NewNop(), "testdata", "", "")
	require.NoError(t, gaz.Load())
	return gaz
}

func newGeonames(t *testing.T, handler http.HandlerFunc) *GeonamesAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeonames(srv.URL, "skyview", 5*time.Second, testGazetteer(t), zap.NewNop())
}

func cityQuery(city, state string) model.ParsedSearchString {
	return model.ParsedSearchString{TargetCity: city, TargetState: state}
}

func TestGeonames_EmptyResult(t *testing.T) {
	a := newGeonames(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/searchJSON", r.URL.Path)
		assert.Equal(t, "skyview", r.URL.Query().Get("username"))
		w.Write([]byte(`{"totalResultsCount":0,"geonames":[]}`))
	})

	res, err := a.Search(context.Background(), cityQuery("Xyzzyville", ""))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matches.Len())
	assert.Equal(t, 0, res.Metrics.Raw)
}

func TestGeonames_CitySearch(t *testing.T) {
	a := newGeonames(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalResultsCount":2,"geonames":[
			{"name":"Nashua","adminName1":"New Hampshire","adminName2":"Hillsborough",
			 "countryCode":"US","lat":"42.76537","lng":"-71.46757",
			 "fcl":"P","fcode":"PPL","population":91322,"geonameId":5088905,
			 "timezone":{"timeZoneId":"America/New_York"}},
			{"name":"Nashville","adminName1":"Tennessee","adminName2":"Davidson",
			 "countryCode":"US","lat":"36.16589","lng":"-86.78444",
			 "fcl":"P","fcode":"PPLA","population":689447,"geonameId":4644585,
			 "timezone":{"timeZoneId":"America/Chicago"}}
		]}`))
	})

	res, err := a.Search(context.Background(), cityQuery("Nashua", "NH"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Metrics.Raw)
	require.Equal(t, 1, res.Metrics.Matched, "Nashville fails the state filter")

	loc := res.Matches.Values()[0]
	assert.Equal(t, "Nashua", loc.City)
	assert.Equal(t, "NH", loc.State)
	assert.Equal(t, "USA", loc.Country)
	assert.Equal(t, "Hillsborough", loc.County)
	assert.Equal(t, "America/New_York", loc.Zone)
	assert.Equal(t, model.SourceGeonamesGeneral, loc.Source)
	assert.Equal(t, int64(5088905), loc.GeonameID)
	assert.Equal(t, 2, loc.Rank, "populated place base 1 plus population bonus")
}

func TestGeonames_RankForCapital(t *testing.T) {
	a := newGeonames(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalResultsCount":1,"geonames":[
			{"name":"Berlin","adminName1":"Berlin","countryCode":"DE",
			 "lat":"52.52437","lng":"13.41053","fcl":"P","fcode":"PPLC",
			 "population":3426354,"geonameId":2950159,
			 "timezone":{"timeZoneId":"Europe/Berlin"}}
		]}`))
	})

	res, err := a.Search(context.Background(), cityQuery("Berlin", ""))
	require.NoError(t, err)
	require.Equal(t, 1, res.Metrics.Matched)

	loc := res.Matches.Values()[0]
	assert.Equal(t, "DEU", loc.Country)
	assert.Equal(t, 4, loc.Rank, "base 1 + capital + population + million")
}

func TestGeonames_MountPrefixExpanded(t *testing.T) {
	var gotName string
	a := newGeonames(t, func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("name_startsWith")
		w.Write([]byte(`{"totalResultsCount":0,"geonames":[]}`))
	})

	_, err := a.Search(context.Background(), cityQuery("Mt Washington", ""))
	require.NoError(t, err)
	assert.Equal(t, "Mount Washington", gotName)
}

func TestGeonames_PostalSearch(t *testing.T) {
	a := newGeonames(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/postalCodeSearchJSON", r.URL.Path)
		assert.Equal(t, "90210", r.URL.Query().Get("postalcode"))
		w.Write([]byte(`{"postalCodes":[
			{"placeName":"Beverly Hills","adminName1":"California","adminCode1":"CA",
			 "adminName2":"Los Angeles","postalCode":"90210","countryCode":"US",
			 "lat":34.0901,"lng":-118.4065}
		]}`))
	})

	res, err := a.Search(context.Background(), model.ParsedSearchString{PostalCode: "90210", DoZip: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Metrics.Matched)

	loc := res.Matches.Values()[0]
	assert.Equal(t, "Beverly Hills", loc.City)
	assert.Equal(t, "CA", loc.State)
	assert.Equal(t, "90210", loc.Zip)
	assert.Equal(t, model.ZipRank, loc.Rank)
	assert.Equal(t, model.SourceGeonamesPostal, loc.Source)
}

func TestGeonames_ServerError(t *testing.T) {
	a := newGeonames(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := a.Search(context.Background(), cityQuery("Nashua", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestGeonames_StatusMessage(t *testing.T) {
	a := newGeonames(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"message":"user account not enabled","value":10}}`))
	})

	_, err := a.Search(context.Background(), cityQuery("Nashua", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user account not enabled")
}

func TestGeonames_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"geonames":[]}`))
	}))
	t.Cleanup(srv.Close)
	a := NewGeonames(srv.URL, "skyview", 20*time.Millisecond, testGazetteer(t), zap.NewNop())

	_, err := a.Search(context.Background(), cityQuery("Nashua", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
