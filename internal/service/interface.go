package service

import (
	"context"

	"github.com/skyviewcafe/atlas/internal/model"
)

// SearchRequest carries one parsed set of search parameters.
type SearchRequest struct {
	Query      string
	Version    int
	RemoteMode RemoteMode
	Limit      int
	Client     string
	NoTrace    bool
}

// ServiceInterface defines the service interface for testing
type ServiceInterface interface {
	Search(ctx context.Context, req SearchRequest) *model.SearchResult
}
