package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skyviewcafe/atlas/internal/parse"
)

var (
	dottedAbbrevPattern    = regexp.MustCompile(`^([A-Za-z]\.){1,3}$`)
	periodSeparatorPattern = regexp.MustCompile(`[A-Za-z]{2,}\.\s`)
	strayPunctPattern      = regexp.MustCompile(`[!?;:]`)
)

// suggestionWarnings proposes fixes for queries that found nothing:
// missing commas, periods where commas belong, dotted state
// abbreviations, stray punctuation, or just too many parts.
func suggestionWarnings(raw string, regions parse.Regions) []string {
	var out []string

	if strings.Count(raw, ",") > 2 {
		out = append(out, "Too much information; try just a city name followed by a state, province or country.")
	}

	fields := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(fields) >= 2 && regions != nil {
		last := fields[len(fields)-1]
		city := strings.TrimRight(strings.Join(fields[:len(fields)-1], " "), ".,")
		if dottedAbbrevPattern.MatchString(last) {
			stripped := strings.ReplaceAll(last, ".", "")
			if regions.IsKnownStateOrCountry(stripped) {
				out = append(out, fmt.Sprintf("Did you mean %q?", city+", "+strings.ToUpper(stripped)))
			}
		} else if !strings.Contains(raw, ",") && regions.IsKnownStateOrCountry(last) {
			out = append(out, fmt.Sprintf("Did you mean %q?", city+", "+last))
		}
	}

	if !strings.Contains(raw, ",") && periodSeparatorPattern.MatchString(raw) {
		out = append(out, "Use commas, not periods, to separate the city from the state or country.")
	}
	if strayPunctPattern.MatchString(raw) {
		out = append(out, "Try removing punctuation from the search.")
	}
	return out
}
