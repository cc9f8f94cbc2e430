// Package service orchestrates a search: parse the query, consult the
// local atlas and the remote sources as the remote policy allows, merge
// and rank the candidates, then record what happened for cache coherence.
package service

import (
	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/remote"
	"github.com/skyviewcafe/atlas/internal/repository"
)

// RemoteMode selects how a search uses the remote sources.
type RemoteMode string

const (
	// RemoteSkip never consults remote sources.
	RemoteSkip RemoteMode = "skip"
	// RemoteNormal consults remotes only when the search is not recent.
	RemoteNormal RemoteMode = "normal"
	// RemoteExtend is RemoteNormal with external rows admitted to the
	// first local pass.
	RemoteExtend RemoteMode = "extend"
	// RemoteForced always consults remotes.
	RemoteForced RemoteMode = "forced"
	// RemoteOnly skips the local search entirely.
	RemoteOnly RemoteMode = "only"
	// RemoteGeonames and RemoteGetty restrict RemoteOnly to one source.
	RemoteGeonames RemoteMode = "geonames"
	RemoteGetty    RemoteMode = "getty"
)

// ParseRemoteMode maps a query-parameter value to its mode; unknown
// values fall back to RemoteSkip.
func ParseRemoteMode(s string) RemoteMode {
	switch RemoteMode(s) {
	case RemoteNormal, RemoteExtend, RemoteForced, RemoteOnly, RemoteGeonames, RemoteGetty:
		return RemoteMode(s)
	}
	return RemoteSkip
}

// remoteOnly modes bypass the local database search.
func (m RemoteMode) remoteOnly() bool {
	return m == RemoteOnly || m == RemoteGeonames || m == RemoteGetty
}

// forced modes consult remotes regardless of search-log recency.
func (m RemoteMode) forced() bool {
	return m == RemoteForced || m.remoteOnly()
}

// extended searches admit previously imported external rows up front and
// mark the search log accordingly.
func (m RemoteMode) extended() bool {
	return m == RemoteExtend || m == RemoteForced || m == RemoteOnly
}

// Service provides the search pipeline over its repositories, the
// gazetteer and the remote adapters.
type Service struct {
	atlasRepo repository.AtlasRepository
	searchLog repository.SearchLogRepository
	zones     repository.ZoneRepository
	eventLog  repository.EventLogRepository
	gaz       *gazetteer.Gazetteer
	geonames  remote.Adapter
	getty     remote.Adapter
	logger    *zap.Logger
}

// NewService creates a new service instance
func NewService(
	repos *repository.Container,
	gaz *gazetteer.Gazetteer,
	geonames remote.Adapter,
	getty remote.Adapter,
	logger *zap.Logger,
) *Service {
	return &Service{
		atlasRepo: repos.Atlas,
		searchLog: repos.SearchLog,
		zones:     repos.Zones,
		eventLog:  repos.EventLog,
		gaz:       gaz,
		geonames:  geonames,
		getty:     getty,
		logger:    logger,
	}
}
