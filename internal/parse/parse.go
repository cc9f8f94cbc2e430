// Package parse turns free-form atlas queries like "Nashua, NH", "90210" or
// "Paris, France" into a normalized search form.
package parse

import (
	"regexp"
	"strings"

	"github.com/skyviewcafe/atlas/internal/model"
	"github.com/skyviewcafe/atlas/internal/normalize"
)

// Mode selects how forgiving the parser is with unpunctuated input.
type Mode int

const (
	// Strict takes the query at face value.
	Strict Mode = iota
	// Loose additionally pulls a trailing state or country token off the
	// city when no state was given. Used for legacy clients (version < 3).
	Loose
)

// Regions answers whether a short token is a known state abbreviation or
// country code. The gazetteer satisfies this.
type Regions interface {
	IsKnownStateOrCountry(token string) bool
}

var (
	usZipPattern         = regexp.MustCompile(`^\d{5}(-\d{4,6})?$`)
	otherPostalPattern   = regexp.MustCompile(`^[0-9A-Z]{2,8}((-|\s+)[0-9A-Z]{2,6})?$`)
	hasDigitPattern      = regexp.MustCompile(`\d`)
	trailingStatePattern = regexp.MustCompile(`^(.+?)[\s,]+(\w{2,3})$`)
)

// ParseSearchString splits q into postal code, target city and target
// state/country, and computes the normalized form used as the search-log
// key.
func ParseSearchString(q string, mode Mode, regions Regions) model.ParsedSearchString {
	parsed := model.ParsedSearchString{ActualSearch: strings.TrimSpace(q)}

	parts := strings.SplitN(parsed.ActualSearch, ",", 3)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	city := ""
	if len(parts) > 0 {
		city = parts[0]
	}

	// A postal code may appear in either of the first two whitespace-split
	// tokens; the US ZIP form wins over the generic pattern.
	tokens := strings.Fields(city)
	if at := findPostalToken(tokens); at >= 0 {
		parsed.PostalCode = strings.ToUpper(tokens[at])
		parsed.DoZip = true
		rest := append(append([]string{}, tokens[:at]...), tokens[at+1:]...)
		city = strings.Join(rest, " ")
	}

	state := ""
	if len(parts) > 1 {
		state = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		// an explicit country trumps the state slot
		state = parts[2]
	}

	// "City, 90210" puts the postal code in the state slot.
	if parsed.PostalCode == "" && state != "" && isPostal(strings.ToUpper(state)) {
		parsed.PostalCode = strings.ToUpper(state)
		parsed.DoZip = true
		state = ""
	}

	if mode == Loose && state == "" && parsed.PostalCode == "" && regions != nil {
		if m := trailingStatePattern.FindStringSubmatch(city); m != nil {
			candidate := strings.ToUpper(m[2])
			if regions.IsKnownStateOrCountry(candidate) {
				city = strings.TrimSpace(m[1])
				state = candidate
			}
		} else if split := splitJoinedState(city, regions); split != nil {
			city, state = split[0], split[1]
		}
	}

	parsed.TargetCity = cleanTarget(city)
	parsed.TargetState = cleanTarget(state)
	parsed.NormalizedSearch = normalizedForm(parsed)
	return parsed
}

func findPostalToken(tokens []string) int {
	for i := 0; i < len(tokens) && i < 2; i++ {
		if usZipPattern.MatchString(tokens[i]) {
			return i
		}
	}
	for i := 0; i < len(tokens) && i < 2; i++ {
		up := strings.ToUpper(tokens[i])
		if otherPostalPattern.MatchString(up) && hasDigitPattern.MatchString(up) {
			return i
		}
	}
	return -1
}

func isPostal(s string) bool {
	return usZipPattern.MatchString(s) ||
		(otherPostalPattern.MatchString(s) && hasDigitPattern.MatchString(s))
}

// splitJoinedState handles queries like "NashuaNH" where the state
// abbreviation was appended without any separator. The split point must
// look like a word boundary: lowercase letter followed by the uppercase
// abbreviation.
func splitJoinedState(city string, regions Regions) []string {
	for _, n := range []int{3, 2} {
		if len(city) <= n {
			continue
		}
		head, tail := city[:len(city)-n], city[len(city)-n:]
		if tail != strings.ToUpper(tail) || hasDigitPattern.MatchString(tail) {
			continue
		}
		last := head[len(head)-1]
		if last >= 'a' && last <= 'z' && regions.IsKnownStateOrCountry(tail) {
			return []string{head, tail}
		}
	}
	return nil
}

// cleanTarget folds a query fragment to plain uppercase ASCII with single
// spaces, keeping word boundaries (unlike Simplify, which removes them).
func cleanTarget(s string) string {
	s = strings.ToUpper(normalize.PlainASCII(s))
	return strings.Join(strings.Fields(s), " ")
}

func normalizedForm(p model.ParsedSearchString) string {
	var base string
	switch {
	case p.PostalCode != "" && p.TargetCity != "":
		base = p.TargetCity + ", " + p.PostalCode
	case p.PostalCode != "":
		base = p.PostalCode
	default:
		base = p.TargetCity
	}
	if p.TargetState != "" {
		base += ", " + p.TargetState
	}
	return base
}
