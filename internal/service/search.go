package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skyviewcafe/atlas/internal/merge"
	"github.com/skyviewcafe/atlas/internal/model"
	"github.com/skyviewcafe/atlas/internal/parse"
	"github.com/skyviewcafe/atlas/internal/remote"
)

const (
	// DefaultLimit and MaxLimit bound the match count a request may ask for.
	DefaultLimit = 75
	MaxLimit     = 500

	// Loose parsing applies to clients older than this protocol version.
	strictParseVersion = 3

	// The gazetteer dictionaries are rebuilt once they get this old.
	gazetteerMaxAge = 24 * time.Hour
)

// Search runs the full pipeline for one request. The returned result is
// always usable: recoverable failures are reported through its Error and
// Warning fields alongside whatever matches survived.
func (s *Service) Search(ctx context.Context, req SearchRequest) *model.SearchResult {
	start := time.Now()
	limit := req.Limit
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	parseMode := parse.Strict
	if req.Version < strictParseVersion {
		parseMode = parse.Loose
	}
	parsed := parse.ParseSearchString(req.Query, parseMode, s.gaz)

	result := &model.SearchResult{
		OriginalSearch:   parsed.ActualSearch,
		NormalizedSearch: parsed.NormalizedSearch,
	}

	if s.gaz.Age() > gazetteerMaxAge {
		if err := s.gaz.Load(); err != nil {
			s.logger.Warn("Gazetteer reload failed", zap.Error(err))
		}
	}

	mode := req.RemoteMode
	extended := mode.extended()
	consultRemote := mode.forced()
	if !consultRemote && mode != RemoteSkip {
		recent, err := s.searchLog.HasSearchBeenDoneRecently(ctx, parsed.NormalizedSearch, extended)
		if err != nil {
			s.logger.Warn("Search log lookup failed", zap.Error(err))
		}
		consultRemote = err == nil && !recent
	}

	dbMatches, dbErr := s.localSearch(ctx, mode, parsed, extended, limit)
	if dbErr != nil {
		result.Error = fmt.Sprintf("database error: %v", dbErr)
	}

	dbMatchedOnlyBySound := dbMatches.Len() > 0
	for _, loc := range dbMatches.Values() {
		if !loc.MatchedBySound {
			dbMatchedOnlyBySound = false
			break
		}
	}

	var warnings, info []string
	var geoResult, gettyResult *remote.Result
	if consultRemote {
		geoResult, gettyResult, warnings, info = s.consultRemotes(ctx, mode, parsed)
	}

	remoteMatches := model.NewLocationMap()
	for _, res := range []*remote.Result{geoResult, gettyResult} {
		if res != nil {
			remoteMatches.AddAll(res.Matches)
		}
	}
	s.fillZones(ctx, remoteMatches)

	// a confident remote answer displaces a local guess that only matched
	// by sound
	if remoteMatches.Len() > 0 && dbMatchedOnlyBySound {
		dbMatches = model.NewLocationMap()
	}

	locs := merge.Dedup(merge.Union(dbMatches, remoteMatches), limit, func(msg string) {
		if err := s.eventLog.LogWarning(ctx, msg); err != nil {
			s.logger.Warn("Event log write failed", zap.Error(err))
		}
	})
	result.LimitReached = len(locs) > limit
	if result.LimitReached {
		locs = locs[:limit]
	}

	result.Matches = make([]model.Match, 0, len(locs))
	for i := range locs {
		loc := locs[i]
		// the designator is presentation only; writeback stores the raw name
		if loc.ShowCounty && loc.Country == "USA" {
			loc.County = s.gaz.AdjustUSCountyName(loc.County, loc.State)
		}
		result.Matches = append(result.Matches, model.Match{
			Location:    loc,
			DisplayName: loc.DisplayName(),
		})
	}
	result.Count = len(result.Matches)

	if s.gaz.IsCelestial(parsed.TargetCity) {
		warnings = append(warnings,
			fmt.Sprintf("%q is a celestial name; this atlas only covers Earth.", parsed.TargetCity))
	}
	if result.Count == 0 {
		warnings = append(warnings, suggestionWarnings(parsed.ActualSearch, s.gaz)...)
	}
	result.Warning = strings.Join(warnings, "\n")
	result.Info = strings.Join(info, "\n")

	dbUpdated := false
	if dbErr == nil && !req.NoTrace {
		if written, err := s.atlasRepo.SaveLocations(ctx, locs); err != nil {
			s.logger.Warn("Atlas writeback failed", zap.Error(err))
		} else {
			dbUpdated = written > 0
		}
		if err := s.searchLog.LogSearchResults(ctx, parsed.NormalizedSearch, extended, result.Count, dbUpdated); err != nil {
			s.logger.Warn("Search log write failed", zap.Error(err))
		}
	}

	result.Time = time.Since(start).Milliseconds()
	s.logger.Info("Search completed",
		zap.String("q", parsed.ActualSearch),
		zap.String("remote", string(mode)),
		zap.String("client", req.Client),
		zap.Int("matches", result.Count),
		zap.Bool("dbUpdated", dbUpdated),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

// localSearch runs the database ladder unless the mode bypasses it. One
// transient failure is retried before giving up.
func (s *Service) localSearch(ctx context.Context, mode RemoteMode, parsed model.ParsedSearchString, extended bool, limit int) (*model.LocationMap, error) {
	if mode.remoteOnly() {
		return model.NewLocationMap(), nil
	}

	matches, err := s.atlasRepo.Search(ctx, parsed, extended, limit)
	if err != nil {
		s.logger.Warn("Atlas search failed, retrying", zap.Error(err))
		matches, err = s.atlasRepo.Search(ctx, parsed, extended, limit)
	}
	if err != nil {
		return model.NewLocationMap(), err
	}
	return matches, nil
}

// consultRemotes launches the allowed adapters in parallel. One adapter
// failing only costs its own contribution.
func (s *Service) consultRemotes(ctx context.Context, mode RemoteMode, parsed model.ParsedSearchString) (geoResult, gettyResult *remote.Result, warnings, info []string) {
	runGeonames := mode != RemoteGetty
	runGetty := mode != RemoteGeonames && !parsed.DoZip

	var geoErr, gettyErr error
	var g errgroup.Group
	if runGeonames {
		g.Go(func() error {
			geoResult, geoErr = s.geonames.Search(ctx, parsed)
			return nil
		})
	}
	if runGetty {
		g.Go(func() error {
			gettyResult, gettyErr = s.getty.Search(ctx, parsed)
			return nil
		})
	}
	_ = g.Wait()

	if geoErr != nil {
		s.logger.Warn("GeoNames lookup failed", zap.Error(geoErr))
		warnings = append(warnings, "Supplementary data from GeoNames is unavailable.")
	} else if geoResult != nil {
		info = append(info, fmt.Sprintf("GeoNames: %d candidates, %d matched",
			geoResult.Metrics.Raw, geoResult.Metrics.Matched))
	}

	if gettyErr != nil {
		s.logger.Warn("Getty lookup failed", zap.Error(gettyErr))
		warnings = append(warnings, "Supplementary data from Getty is unavailable.")
	} else if gettyResult != nil {
		m := gettyResult.Metrics
		line := fmt.Sprintf("Getty: %d candidates over %d pages, %d matched", m.Raw, m.Pages, m.Matched)
		if !m.Complete {
			line += " (partial, retrieval budget exhausted)"
		}
		info = append(info, line)
		if m.FailedSyntax {
			warnings = append(warnings, "Getty rejected the search syntax.")
		}
		if m.TooManyResults {
			warnings = append(warnings, "Getty reported too many results; refine the search.")
		}
	}
	return geoResult, gettyResult, warnings, info
}

// fillZones resolves time zones for remote results that arrived without
// one. Failures leave the zone empty rather than failing the search.
func (s *Service) fillZones(ctx context.Context, m *model.LocationMap) {
	for _, key := range m.Keys() {
		loc, _ := m.Get(key)
		if loc.Zone != "" {
			continue
		}
		zone, err := s.zones.ZoneForLocation(ctx, loc.Country, loc.State, loc.County)
		if err != nil {
			s.logger.Debug("Zone lookup failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if zone != "" {
			loc.Zone = zone
			m.Put(key, loc)
		}
	}
}
