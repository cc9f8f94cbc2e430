package gazetteer

import (
	"html"
	"regexp"
	"strings"

	"github.com/skyviewcafe/atlas/internal/model"
	"github.com/skyviewcafe/atlas/internal/normalize"
)

var (
	numberSuffixPattern = regexp.MustCompile(`^.+\s\d+$`)
	nonCityPattern      = regexp.MustCompile(`(?i)\b(apartments?|apts?|trailer (?:park|court)|mobile home|housing|condominiums?)\b`)
	rejectTagPattern    = regexp.MustCompile(`(?i)\b(census designated place|subdivision|historical|abandoned)\b`)
	rearrangePattern    = regexp.MustCompile(`^(.+?),\s+(\S+)$`)
	variantLeadPattern  = regexp.MustCompile(`^(?i)(Lake|Mount|Mt\.?|The|La|Las|El|Le|Los)\s+(.+)$`)

	countyPrefixPattern = regexp.MustCompile(`(?i)^(County of|Provincia de|Province de|Condado de)\s+`)
	countySuffixPattern = regexp.MustCompile(`(?i)\s+(County|Province|Prefecture|Oblast|Kray|Krai|District|Department|Governorate|Metropolitan Area|Territory|Region|Republic)$`)
	cityOfPattern       = regexp.MustCompile(`(?i)^City of\s+|\s+\(?Independent City\)?$|\s+city$`)
)

// ProcessPlaceNames validates and canonicalizes the names of a
// remote-sourced location. It returns false when the record clearly does
// not name a city-like place and should be dropped.
func (g *Gazetteer) ProcessPlaceNames(loc *model.Location, decodeHTML bool) bool {
	if decodeHTML {
		loc.City = html.UnescapeString(loc.City)
		loc.County = html.UnescapeString(loc.County)
		loc.State = html.UnescapeString(loc.State)
		loc.Country = html.UnescapeString(loc.Country)
	}

	city := strings.TrimSpace(loc.City)
	if city == "" {
		return false
	}
	if numberSuffixPattern.MatchString(city) && !strings.Contains(city, ",") {
		// arrondissement-style entries such as "Paris 04"
		return false
	}
	if nonCityPattern.MatchString(city) || rejectTagPattern.MatchString(city) {
		return false
	}

	// "Placid, Lake" -> "Lake Placid", keeping the original as the variant
	if m := rearrangePattern.FindStringSubmatch(city); m != nil {
		loc.Variant = city
		city = m[2] + " " + m[1]
	}
	if loc.Variant == "" {
		if m := variantLeadPattern.FindStringSubmatch(city); m != nil {
			loc.Variant = m[2]
		}
	}
	loc.City = city

	loc.County = cleanAdminName(loc.County)
	loc.State = cleanAdminName(loc.State)

	if loc.Country != "" {
		if code3, ok := g.ResolveCountry(loc.Country); ok {
			loc.Country = code3
			loc.LongCountry = g.CountryName(code3)
		} else {
			loc.Country = "XX?"
			loc.LongCountry = ""
		}
	}

	if loc.Country == "USA" || loc.Country == "CAN" {
		loc.State = g.StateAbbreviation(loc.State)
	}
	if loc.Country == "USA" && loc.County != "" {
		county := g.StandardizeShortCountyName(loc.County)
		if g.IsUSCounty(county, loc.State) {
			loc.County = county
		} else {
			// Possibly an independent city: strip "City of" forms and
			// compare against the city itself.
			bare := strings.TrimSpace(cityOfPattern.ReplaceAllString(loc.County, ""))
			if strings.EqualFold(bare, loc.City) {
				loc.County = ""
			} else {
				loc.County = "City of " + bare
			}
		}
	}

	if loc.FlagCode == "" && loc.Country != "" && loc.Country != "XX?" {
		loc.FlagCode = g.FlagCode(loc.Country)
	}
	return true
}

// cleanAdminName strips "County of" style prefixes and generic admin-level
// suffixes from a first- or second-level admin name.
func cleanAdminName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = countyPrefixPattern.ReplaceAllString(name, "")
	for {
		stripped := countySuffixPattern.ReplaceAllString(name, "")
		if stripped == name || stripped == "" {
			break
		}
		name = stripped
	}
	return strings.TrimSpace(name)
}

// countySpellings fixes US county names whose conventional capitalization
// or punctuation does not survive ASCII folding or upstream data entry.
var countySpellings = map[string]string{
	"DEKALB":               "DeKalb",
	"DESOTO":               "DeSoto",
	"DUPAGE":               "DuPage",
	"LASALLE":              "LaSalle",
	"LAMOURE":              "LaMoure",
	"LAPORTE":              "LaPorte",
	"OBRIEN":               "O'Brien",
	"PRINCEGEORGES":        "Prince George's",
	"QUEENANNES":           "Queen Anne's",
	"STMARYS":              "St. Mary's",
	"STJOHNS":              "St. Johns",
	"SKAGWAYHOONAHANGOON":  "Skagway-Hoonah-Angoon",
	"MATANUSKASUSITNA":     "Matanuska-Susitna",
	"VALDEZCORDOVA":        "Valdez-Cordova",
	"YUKONKOYUKUK":         "Yukon-Koyukuk",
}

var mcPattern = regexp.MustCompile(`^Mc([a-z])`)

// StandardizeShortCountyName maps a county name to its canonical spelling:
// known irregular names from the fixed list, "Mc" capitalization, title
// case otherwise.
func (g *Gazetteer) StandardizeShortCountyName(county string) string {
	county = cleanAdminName(county)
	if county == "" {
		return ""
	}
	if fixed, ok := countySpellings[normalize.Simplify(county)]; ok {
		return fixed
	}
	county = titleCase(county)
	county = mcPattern.ReplaceAllStringFunc(county, func(m string) string {
		return "Mc" + strings.ToUpper(m[2:])
	})
	return county
}

// alaskaCensusAreas lists the boroughs-by-courtesy that take the
// "Census Area" suffix instead of "Borough".
var alaskaCensusAreas = map[string]bool{
	"ALEUTIANSWEST":      true,
	"BETHEL":             true,
	"DILLINGHAM":         true,
	"HOONAHANGOON":       true,
	"KUSILVAK":           true,
	"NOME":               true,
	"PRINCEOFWALESHYDER": true,
	"SOUTHEASTFAIRBANKS": true,
	"VALDEZCORDOVA":      true,
	"YUKONKOYUKUK":       true,
}

// AdjustUSCountyName appends the state-appropriate second-level admin
// designator for display: Parish in Louisiana, Borough or Census Area in
// Alaska, County elsewhere.
func (g *Gazetteer) AdjustUSCountyName(county, state string) string {
	if county == "" {
		return ""
	}
	if countySuffixPattern.MatchString(county) ||
		strings.HasSuffix(county, " Borough") || strings.HasSuffix(county, " Census Area") ||
		strings.HasSuffix(county, " Division") || strings.HasSuffix(county, " Parish") ||
		strings.HasPrefix(county, "City of ") {
		return county
	}
	switch strings.ToUpper(state) {
	case "AK":
		if alaskaCensusAreas[normalize.Simplify(county)] {
			return county + " Census Area"
		}
		return county + " Borough"
	case "LA":
		return county + " Parish"
	default:
		return county + " County"
	}
}

// CloseMatchForState reports whether a target state/country fragment from
// the query plausibly names the state or country of a candidate row.
// An empty target matches anything.
func (g *Gazetteer) CloseMatchForState(target, state, country string) bool {
	if target == "" {
		return true
	}

	candidates := []string{state, country}
	if long := g.LongState(state); long != "" {
		candidates = append(candidates, long)
	}
	if name := g.CountryName(country); name != "" {
		candidates = append(candidates, name)
	}
	if info, ok := g.current().code3ToCountry[strings.ToUpper(country)]; ok {
		candidates = append(candidates, info.Code2, info.OldCode2)
	}
	if strings.EqualFold(country, "GBR") {
		candidates = append(candidates, "Great Britain", "England")
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if normalize.StartsWithICND(c, target) {
			return true
		}
	}
	return false
}

// CloseMatchForCity reports whether a candidate city name is a plausible
// completion of the query's target city.
func (g *Gazetteer) CloseMatchForCity(target, city string) bool {
	if target == "" {
		return true
	}
	return normalize.StartsWithICND(city, target)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
