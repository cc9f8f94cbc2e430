package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skyviewcafe/atlas/internal/model"
	"github.com/skyviewcafe/atlas/internal/service"
)

// MockService implements service.ServiceInterface
type MockService struct {
	mock.Mock
}

func (m *MockService) Search(ctx context.Context, req service.SearchRequest) *model.SearchResult {
	args := m.Called(ctx, req)
	return args.Get(0).(*model.SearchResult)
}

func sampleResult() *model.SearchResult {
	loc := model.Location{
		City: "Nashua", State: "NH", Country: "USA",
		Latitude: 42.7654, Longitude: -71.4676, Zone: "America/New_York",
		Rank: 3, PlaceType: "P.PPL", Source: 1,
	}
	return &model.SearchResult{
		OriginalSearch:   "Nashua, NH",
		NormalizedSearch: "NASHUA, NH",
		Count:            1,
		Matches:          []model.Match{{Location: loc, DisplayName: loc.DisplayName()}},
	}
}

func doSearch(t *testing.T, svc *MockService, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(svc, nil)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSearch_Defaults(t *testing.T) {
	svc := new(MockService)
	svc.On("Search", mock.Anything, service.SearchRequest{
		Query:      "Nashua, NH",
		Version:    9,
		RemoteMode: service.RemoteSkip,
		Limit:      service.DefaultLimit,
	}).Return(sampleResult())

	rec := doSearch(t, svc, "/atlas/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var result model.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "Nashua, NH, USA", result.Matches[0].DisplayName)
	svc.AssertExpectations(t)
}

func TestSearch_ParametersForwarded(t *testing.T) {
	svc := new(MockService)
	svc.On("Search", mock.Anything, service.SearchRequest{
		Query:      "Paris, France",
		Version:    2,
		RemoteMode: service.RemoteForced,
		Limit:      service.MaxLimit,
		Client:     "web",
		NoTrace:    true,
	}).Return(sampleResult())

	rec := doSearch(t, svc,
		"/atlas?q=Paris,+France&version=2&remote=forced&limit=9999&client=web&notrace")
	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestSearch_LimitClampedLow(t *testing.T) {
	svc := new(MockService)
	svc.On("Search", mock.Anything, mock.MatchedBy(func(req service.SearchRequest) bool {
		return req.Limit == 1
	})).Return(sampleResult())

	rec := doSearch(t, svc, "/atlas?limit=-5")
	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestSearch_PlainText(t *testing.T) {
	svc := new(MockService)
	svc.On("Search", mock.Anything, mock.Anything).Return(sampleResult())

	rec := doSearch(t, svc, "/atlas?q=Nashua,+NH&pt=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	body := rec.Body.String()
	assert.Contains(t, body, "search: NASHUA, NH")
	assert.Contains(t, body, "matches: 1")
	assert.Contains(t, body, "Nashua, NH, USA")
}

func TestSearch_JSONP(t *testing.T) {
	svc := new(MockService)
	svc.On("Search", mock.Anything, mock.Anything).Return(sampleResult())

	rec := doSearch(t, svc, "/atlas?q=Nashua,+NH&callback=handleAtlas")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/javascript")

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "/**/handleAtlas("), body)
	assert.True(t, strings.HasSuffix(body, ");"), body)
}

func TestSearch_InvalidCallbackRejected(t *testing.T) {
	svc := new(MockService)
	svc.On("Search", mock.Anything, mock.Anything).Return(sampleResult())

	rec := doSearch(t, svc, "/atlas?callback=alert(1)")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownPath(t *testing.T) {
	rec := doSearch(t, new(MockService), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	rec := doSearch(t, new(MockService), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
