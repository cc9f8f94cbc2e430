package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/model"
)

// Feature codes worth returning from a place-name search: populated
// places and the landmark classes people look up by name.
var geonamesFeatureCodes = []string{
	"PPL", "PPLA", "PPLA2", "PPLA3", "PPLA4", "PPLC", "PPLG", "PPLL",
	"PPLR", "PPLS", "PPLX", "STLMT",
	"LK", "ATOL", "ISL", "ISLS", "CAPE", "MT", "MTS", "PK", "PKS",
	"MILB", "NVB", "AIRB", "OBS", "OBSR",
}

var mtPrefixPattern = regexp.MustCompile(`(?i)^mt\.?\s+`)

// GeonamesAdapter queries the GeoNames searchJSON and postalCodeSearchJSON
// endpoints.
type GeonamesAdapter struct {
	client   *http.Client
	baseURL  string
	username string
	timeout  time.Duration
	gaz      *gazetteer.Gazetteer
	logger   *zap.Logger
}

func NewGeonames(baseURL, username string, timeout time.Duration, gaz *gazetteer.Gazetteer, logger *zap.Logger) *GeonamesAdapter {
	return &GeonamesAdapter{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		timeout:  timeout,
		gaz:      gaz,
		logger:   logger,
	}
}

func (a *GeonamesAdapter) Name() string { return "GeoNames" }

func (a *GeonamesAdapter) Search(ctx context.Context, parsed model.ParsedSearchString) (result *Result, err error) {
	start := time.Now()
	defer func() {
		matched := 0
		if result != nil {
			matched = result.Metrics.Matched
		}
		observe(a.Name(), start, matched, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if parsed.DoZip {
		return a.searchPostal(ctx, parsed)
	}
	return a.searchByName(ctx, parsed)
}

// searchJSON item. Latitude and longitude arrive as decimal strings.
type geonamesItem struct {
	Name          string `json:"name"`
	AdminName1    string `json:"adminName1"`
	AdminName2    string `json:"adminName2"`
	CountryCode   string `json:"countryCode"`
	ContinentCode string `json:"continentCode"`
	Lat           string `json:"lat"`
	Lng           string `json:"lng"`
	Fcl           string `json:"fcl"`
	Fcode         string `json:"fcode"`
	Population    int64  `json:"population"`
	Elevation     int    `json:"elevation"`
	GeonameID     int64  `json:"geonameId"`
	Timezone      struct {
		TimeZoneID string `json:"timeZoneId"`
	} `json:"timezone"`
}

type geonamesSearchResponse struct {
	TotalResultsCount int            `json:"totalResultsCount"`
	Geonames          []geonamesItem `json:"geonames"`
	Status            *struct {
		Message string `json:"message"`
		Value   int    `json:"value"`
	} `json:"status"`
}

func (a *GeonamesAdapter) searchByName(ctx context.Context, parsed model.ParsedSearchString) (*Result, error) {
	city := mtPrefixPattern.ReplaceAllString(parsed.TargetCity, "Mount ")

	params := url.Values{}
	params.Set("name_startsWith", city)
	params.Set("style", "FULL")
	params.Set("maxRows", "100")
	params.Set("username", a.username)
	for _, code := range geonamesFeatureCodes {
		params.Add("featureCode", code)
	}

	var resp geonamesSearchResponse
	if err := a.getJSON(ctx, "/searchJSON?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != nil {
		return nil, fmt.Errorf("GeoNames: %s", resp.Status.Message)
	}

	result := &Result{Matches: model.NewLocationMap(), Metrics: Metrics{Raw: len(resp.Geonames), Complete: true}}
	for i := range resp.Geonames {
		loc, ok := a.itemToLocation(&resp.Geonames[i])
		if !ok {
			continue
		}
		if !a.gaz.CloseMatchForCity(parsed.TargetCity, loc.City) &&
			!a.gaz.CloseMatchForCity(parsed.TargetCity, loc.Variant) {
			continue
		}
		if !a.gaz.CloseMatchForState(parsed.TargetState, loc.State, loc.Country) {
			continue
		}
		result.Matches.Add(loc)
		result.Metrics.Matched++
	}
	return result, nil
}

// postalCodeSearchJSON item. Unlike searchJSON, coordinates are numbers.
type geonamesPostalItem struct {
	PlaceName   string  `json:"placeName"`
	AdminName1  string  `json:"adminName1"`
	AdminCode1  string  `json:"adminCode1"`
	AdminName2  string  `json:"adminName2"`
	PostalCode  string  `json:"postalCode"`
	CountryCode string  `json:"countryCode"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

func (a *GeonamesAdapter) searchPostal(ctx context.Context, parsed model.ParsedSearchString) (*Result, error) {
	params := url.Values{}
	params.Set("postalcode", parsed.PostalCode)
	params.Set("maxRows", "40")
	params.Set("username", a.username)

	var resp struct {
		PostalCodes []geonamesPostalItem `json:"postalCodes"`
		Status      *struct {
			Message string `json:"message"`
		} `json:"status"`
	}
	if err := a.getJSON(ctx, "/postalCodeSearchJSON?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != nil {
		return nil, fmt.Errorf("GeoNames: %s", resp.Status.Message)
	}

	result := &Result{Matches: model.NewLocationMap(), Metrics: Metrics{Raw: len(resp.PostalCodes), Complete: true}}
	for _, item := range resp.PostalCodes {
		country, ok := a.gaz.Code3ForCode2(item.CountryCode)
		if !ok {
			continue
		}
		loc := model.Location{
			City:      item.PlaceName,
			County:    item.AdminName2,
			State:     item.AdminName1,
			Country:   country,
			Latitude:  item.Lat,
			Longitude: item.Lng,
			Zip:       item.PostalCode,
			Rank:      model.ZipRank,
			PlaceType: "P.PPL",
			Source:    model.SourceGeonamesPostal,
		}
		if country == "USA" || country == "CAN" {
			if item.AdminCode1 != "" {
				loc.State = item.AdminCode1
			}
			loc.County = a.gaz.StandardizeShortCountyName(loc.County)
		}
		if !a.gaz.ProcessPlaceNames(&loc, false) {
			continue
		}
		result.Matches.Add(loc)
		result.Metrics.Matched++
	}
	return result, nil
}

// itemToLocation converts and filters one searchJSON item. Rank is 0..4:
// base 1 for populated places and admin areas, +1 for a capital, +1 for
// any recorded population, +1 more past a million.
func (a *GeonamesAdapter) itemToLocation(item *geonamesItem) (model.Location, bool) {
	country, ok := a.gaz.Code3ForCode2(item.CountryCode)
	if !ok {
		if item.ContinentCode == "AN" {
			country = "ATA"
		} else {
			return model.Location{}, false
		}
	}

	lat, err := strconv.ParseFloat(item.Lat, 64)
	if err != nil {
		return model.Location{}, false
	}
	lng, err := strconv.ParseFloat(item.Lng, 64)
	if err != nil {
		return model.Location{}, false
	}

	rank := 0
	if item.Fcl == "P" || item.Fcl == "A" {
		rank = 1
	}
	if item.Fcode == "PPLC" {
		rank++
	}
	if item.Population > 0 {
		rank++
		if item.Population >= 1000000 {
			rank++
		}
	}

	loc := model.Location{
		City:      item.Name,
		County:    item.AdminName2,
		State:     item.AdminName1,
		Country:   country,
		Latitude:  lat,
		Longitude: lng,
		Elevation: float64(item.Elevation),
		Zone:      item.Timezone.TimeZoneID,
		Rank:      rank,
		PlaceType: item.Fcl + "." + item.Fcode,
		Source:    model.SourceGeonamesGeneral,
		GeonameID: item.GeonameID,
	}
	if country == "USA" || country == "CAN" {
		loc.State = a.gaz.StateAbbreviation(loc.State)
		if country == "USA" {
			loc.County = a.gaz.StandardizeShortCountyName(loc.County)
		}
	}
	if !a.gaz.ProcessPlaceNames(&loc, false) {
		return model.Location{}, false
	}
	return loc, true
}

func (a *GeonamesAdapter) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("GeoNames request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("GeoNames", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GeoNames response: %w", err)
	}
	return nil
}
