package remote

import (
	"bufio"
	"context"
	"fmt"
	"io"
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

// Paging limits for the preliminary result list. A page that comes back
// under-filled is the last one.
const (
	gettyMaxPages       = 6
	gettyMaxMatches     = 50
	gettyPageSize       = 12
	gettyAltMergeCutoff = 25
)

// Result-page sentinels. The servlet reports its own failures inline as
// prose, not as HTTP status codes.
const (
	gettyNoResults     = "Your search has produced no results"
	gettyServerError   = "A server error has occurred"
	gettyTooMany       = "Your search has produced too many results"
	gettyInvalidSyntax = "Syntax of search is invalid"
	gettyMoreLink      = ">NEXT<"
)

var (
	gettyIDPattern        = regexp.MustCompile(`subjectid=(\d+)`)
	gettyNamePattern      = regexp.MustCompile(`<B>(.+?)</B>\s*(?:\(([^)]+)\))?`)
	gettyHierarchyPattern = regexp.MustCompile(`\((World,[^)]*)\)`)
	gettyAltNamePattern   = regexp.MustCompile(`<I>(.+?)</I>`)
	gettyLatPattern       = regexp.MustCompile(`Lat:\s*(-?\d+(?:\.\d+)?)\s*decimal`)
	gettyLongPattern      = regexp.MustCompile(`Long:\s*(-?\d+(?:\.\d+)?)\s*decimal`)
	gettyRegionSuffix     = regexp.MustCompile(`\s+(dependent state|island nation|nation|state|county|province|general region|region|republic)$`)
)

// Hierarchy entries whose names contain commas would split wrong; rewrite
// them before splitting.
var gettyCommaFixes = strings.NewReplacer(
	"Korea, South", "South Korea",
	"Korea, North", "North Korea",
	"Tanzania, United Republic of", "Tanzania",
	"Congo, Democratic Republic of", "Democratic Republic of the Congo",
	"Micronesia, Federated States of", "Micronesia",
)

// GettyAdapter scrapes the Getty Thesaurus of Geographic Names HTML UI.
// The scrape is two-phase: a paged preliminary list gives names and
// hierarchy, then a per-item secondary fetch supplies coordinates. The
// secondary loop runs under a soft budget so a slow upstream still yields
// whatever was gathered in time.
type GettyAdapter struct {
	client    *http.Client
	baseURL   string
	timeout   time.Duration
	softLimit time.Duration
	gaz       *gazetteer.Gazetteer
	logger    *zap.Logger
}

func NewGetty(baseURL string, timeout, softLimit time.Duration, gaz *gazetteer.Gazetteer, logger *zap.Logger) *GettyAdapter {
	return &GettyAdapter{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   timeout,
		softLimit: softLimit,
		gaz:       gaz,
		logger:    logger,
	}
}

func (a *GettyAdapter) Name() string { return "Getty" }

// gettyItem is one parsed block from the preliminary result list.
type gettyItem struct {
	id        string
	name      string
	placeDesc string
	altName   string
	hierarchy []string
}

// scanState tracks progress through one preliminary item block.
type scanState int

const (
	lookingForIDCode scanState = iota
	lookingForPlaceName
	lookingForHierarchy
	lookingForExtrasOrEnd
)

type pageFlags struct {
	noResults     bool
	serverError   bool
	tooMany       bool
	invalidSyntax bool
	hasMore       bool
}

func (a *GettyAdapter) Search(ctx context.Context, parsed model.ParsedSearchString) (result *Result, err error) {
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

	result = &Result{Matches: model.NewLocationMap(), Metrics: Metrics{Complete: true}}
	if parsed.DoZip {
		return result, nil
	}

	items, err := a.preliminary(ctx, parsed.TargetCity, &result.Metrics)
	if err != nil {
		return nil, err
	}
	result.Metrics.Raw = len(items)
	if len(items) == 0 {
		return result, nil
	}

	primary := model.NewLocationMap()
	alternates := model.NewLocationMap()
	// the soft budget covers only the per-record coordinate fetches;
	// preliminary paging runs under the hard deadline alone
	softDeadline := time.Now().Add(a.softLimit)

	for i := range items {
		if time.Now().After(softDeadline) || ctx.Err() != nil {
			result.Metrics.Complete = false
			break
		}
		loc, ok := a.itemToLocation(&items[i])
		if !ok {
			continue
		}
		if !a.gaz.CloseMatchForState(parsed.TargetState, loc.State, loc.Country) {
			continue
		}

		lat, lng, err := a.coordinates(ctx, items[i].id)
		if err != nil {
			if ctx.Err() != nil {
				result.Metrics.Complete = false
				break
			}
			a.logger.Debug("Getty record fetch failed",
				zap.String("id", items[i].id), zap.Error(err))
			continue
		}
		result.Metrics.Retrieved++
		loc.Latitude = lat
		loc.Longitude = lng

		if a.gaz.CloseMatchForCity(parsed.TargetCity, loc.City) ||
			a.gaz.CloseMatchForCity(parsed.TargetCity, loc.Variant) {
			primary.Add(loc)
		} else {
			loc.MatchedByAlternateName = true
			alternates.Add(loc)
		}
	}

	// alternate-name hits only pad out a sparse primary list
	if primary.Len() < gettyAltMergeCutoff {
		primary.AddAll(alternates)
	}
	result.Matches = primary
	result.Metrics.Matched = primary.Len()
	return result, nil
}

// preliminary walks the paged result list until the servlet runs dry or a
// paging limit is hit.
func (a *GettyAdapter) preliminary(ctx context.Context, city string, metrics *Metrics) ([]gettyItem, error) {
	var items []gettyItem
	for page := 1; ; page++ {
		pageItems, flags, err := a.fetchPage(ctx, city, page)
		if err != nil {
			return nil, err
		}
		metrics.Pages = page

		switch {
		case flags.serverError:
			return nil, fmt.Errorf("Getty server error")
		case flags.invalidSyntax:
			metrics.FailedSyntax = true
			return items, nil
		case flags.tooMany:
			metrics.TooManyResults = true
			return items, nil
		case flags.noResults:
			return items, nil
		}

		items = append(items, pageItems...)
		if !flags.hasMore || page >= gettyMaxPages ||
			len(items) >= gettyMaxMatches || len(items) < gettyPageSize*page {
			return items, nil
		}
	}
}

func (a *GettyAdapter) fetchPage(ctx context.Context, city string, page int) ([]gettyItem, pageFlags, error) {
	params := url.Values{}
	params.Set("english", "Y")
	params.Set("find", city)
	params.Set("place", "")
	params.Set("page", strconv.Itoa(page))

	body, err := a.get(ctx, "/vow/TGNServlet?"+params.Encode())
	if err != nil {
		return nil, pageFlags{}, err
	}
	items, flags := parseResultPage(body)
	return items, flags, nil
}

// parseResultPage runs the line-oriented state machine over one result
// page. Item blocks look like:
//
//	<A HREF="TGNFullDisplay?subjectid=7013445">
//	<B>Nashua</B> (inhabited place)
//	(World, North America, United States, New Hampshire, Hillsborough county)
//	<I>Nashaway</I> ..... <P>
func parseResultPage(body string) ([]gettyItem, pageFlags) {
	var flags pageFlags
	var items []gettyItem
	var cur gettyItem
	state := lookingForIDCode

	finish := func() {
		if cur.id != "" && cur.name != "" {
			items = append(items, cur)
		}
		cur = gettyItem{}
		state = lookingForIDCode
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, gettyNoResults):
			flags.noResults = true
		case strings.Contains(line, gettyServerError):
			flags.serverError = true
		case strings.Contains(line, gettyTooMany):
			flags.tooMany = true
		case strings.Contains(line, gettyInvalidSyntax):
			flags.invalidSyntax = true
		case strings.Contains(line, gettyMoreLink):
			flags.hasMore = true
		}

	reprocess:
		switch state {
		case lookingForIDCode:
			if m := gettyIDPattern.FindStringSubmatch(line); m != nil {
				cur.id = m[1]
				state = lookingForPlaceName
			}

		case lookingForPlaceName:
			if m := gettyNamePattern.FindStringSubmatch(line); m != nil {
				cur.name = m[1]
				cur.placeDesc = m[2]
				state = lookingForHierarchy
			}

		case lookingForHierarchy:
			if m := gettyHierarchyPattern.FindStringSubmatch(line); m != nil {
				fixed := gettyCommaFixes.Replace(m[1])
				cur.hierarchy = strings.Split(fixed, ", ")
				state = lookingForExtrasOrEnd
			}

		case lookingForExtrasOrEnd:
			if gettyIDPattern.MatchString(line) {
				finish()
				goto reprocess
			}
			if m := gettyAltNamePattern.FindStringSubmatch(line); m != nil {
				cur.altName = m[1]
			}
			if strings.Contains(line, "<P>") {
				finish()
			}
		}
	}
	finish()
	return items, flags
}

// itemToLocation builds a Location from one parsed block. The hierarchy
// runs World, continent, country, state, county; trailing descriptors
// like "state" or "county" are stripped from each level.
func (a *GettyAdapter) itemToLocation(item *gettyItem) (model.Location, bool) {
	loc := model.Location{
		City:      item.name,
		Rank:      0,
		PlaceType: gettyPlaceType(item.placeDesc),
		Source:    model.SourceGetty,
	}
	if len(item.hierarchy) >= 3 {
		loc.Country = gettyRegionSuffix.ReplaceAllString(item.hierarchy[2], "")
	}
	if len(item.hierarchy) >= 4 {
		loc.State = gettyRegionSuffix.ReplaceAllString(item.hierarchy[3], "")
	}
	if len(item.hierarchy) >= 5 {
		loc.County = gettyRegionSuffix.ReplaceAllString(item.hierarchy[4], "")
	}
	if !a.gaz.ProcessPlaceNames(&loc, true) {
		return model.Location{}, false
	}
	return loc, true
}

// coordinates fetches the full record page and extracts the decimal
// latitude and longitude.
func (a *GettyAdapter) coordinates(ctx context.Context, id string) (float64, float64, error) {
	body, err := a.get(ctx, "/vow/TGNFullDisplay?subjectid="+url.QueryEscape(id))
	if err != nil {
		return 0, 0, err
	}
	latMatch := gettyLatPattern.FindStringSubmatch(body)
	lngMatch := gettyLongPattern.FindStringSubmatch(body)
	if latMatch == nil || lngMatch == nil {
		return 0, 0, fmt.Errorf("no coordinates in record %s", id)
	}
	lat, err := strconv.ParseFloat(latMatch[1], 64)
	if err != nil {
		return 0, 0, err
	}
	lng, err := strconv.ParseFloat(lngMatch[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func (a *GettyAdapter) get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("Getty request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("Getty", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("Getty response: %w", err)
	}
	return string(body), nil
}

func gettyPlaceType(desc string) string {
	d := strings.ToLower(desc)
	switch {
	case strings.Contains(d, "cape"):
		return "T.CAPE"
	case strings.Contains(d, "park"):
		return "L.PRK"
	case strings.Contains(d, "peak"):
		return "T.PK"
	case strings.Contains(d, "county"):
		return "A.ADM2"
	case strings.Contains(d, "dependent state"), strings.Contains(d, "nation"):
		return "A.ADM0"
	case strings.Contains(d, "atoll"), strings.Contains(d, "island"):
		return "T.ISL"
	case strings.Contains(d, "mountain"):
		return "T.MT"
	case strings.Contains(d, "province"), strings.Contains(d, "state"):
		return "A.ADM1"
	default:
		return "P.PPL"
	}
}
