package model

// ParsedSearchString is the normalized form of a free-form query.
type ParsedSearchString struct {
	PostalCode       string
	TargetCity       string
	TargetState      string
	DoZip            bool
	ActualSearch     string
	NormalizedSearch string
}

// Match is one entry in the response; it decorates a Location with its
// computed display name.
type Match struct {
	Location
	DisplayName string `json:"displayName"`
}

// SearchResult is the full response for one search request. Matches are
// sorted by descending rank, then ascending display name. Error carries a
// recoverable failure alongside whatever partial data survived; Warning and
// Info hold newline-joined advisory lines.
type SearchResult struct {
	OriginalSearch   string  `json:"originalSearch"`
	NormalizedSearch string  `json:"normalizedSearch"`
	Time             int64   `json:"time"`
	Count            int     `json:"count"`
	LimitReached     bool    `json:"limitReached"`
	Matches          []Match `json:"matches"`
	Error            string  `json:"error,omitempty"`
	Warning          string  `json:"warning,omitempty"`
	Info             string  `json:"info,omitempty"`
}
