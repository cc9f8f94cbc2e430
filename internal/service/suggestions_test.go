package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeRegions struct{}

func (fakeRegions) IsKnownStateOrCountry(token string) bool {
	switch strings.ToUpper(token) {
	case "NH", "TX", "FRANCE", "USA":
		return true
	}
	return false
}

func TestSuggestionWarnings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"missing comma", "Nashua NH", `Did you mean "Nashua, NH"?`},
		{"missing comma before country", "Paris France", `Did you mean "Paris, France"?`},
		{"dotted abbreviation", "Nashua, N.H.", `Did you mean "Nashua, NH"?`},
		{"periods for commas", "Nashua. NH", "Use commas, not periods"},
		{"too many commas", "Nashua, Hillsborough, NH, USA, Earth", "Too much information"},
		{"stray punctuation", "Nashua!", "removing punctuation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suggestionWarnings(tt.raw, fakeRegions{})
			joined := strings.Join(got, "\n")
			assert.Contains(t, joined, tt.want)
		})
	}
}

func TestSuggestionWarnings_CleanQuerySilent(t *testing.T) {
	assert.Empty(t, suggestionWarnings("Nashua, NH", fakeRegions{}))
	assert.Empty(t, suggestionWarnings("Xyzzyville", fakeRegions{}))
}
