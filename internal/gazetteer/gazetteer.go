// Package gazetteer holds the static dictionaries the search pipeline keys
// against: country name and code tables, state abbreviations, US counties,
// celestial object names, and the flag image inventory. Everything is built
// once at startup and swapped atomically on re-init.
package gazetteer

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/normalize"
)

const (
	countryCodesFile = "country_codes.txt"
	usCountiesFile   = "us_counties.txt"
	celestialFile    = "celestial.txt"
)

// countryInfo is one row of the country code table.
type countryInfo struct {
	Name     string
	Code2    string
	OldCode2 string
	Code3    string
	FlagChar string
	AltForms []string
}

// snapshot is the immutable dictionary set. Readers always see a complete
// snapshot; Load builds a new one and swaps it in.
type snapshot struct {
	countries        []countryInfo
	code3ToCountry   map[string]countryInfo
	code2ToCode3     map[string]string
	oldCode2ToCode3  map[string]string
	nameToCode3      map[string]string // simplified long name or alt form -> code3
	stateLongToAbbr  map[string]string // simplified long state -> abbrev
	stateAbbrToLong  map[string]string
	usCounties       map[string]bool // simplified "COUNTY,ST"
	celestial        map[string]bool // simplified names
	flagCodes        map[string]bool
	loadedAt         time.Time
}

// Gazetteer provides O(1) dictionary lookups to the rest of the system.
type Gazetteer struct {
	logger  *zap.Logger
	dataDir string
	flagDir string
	flagURL string
	snap    atomic.Pointer[snapshot]
}

// New returns an unloaded gazetteer. Call Load before use.
func New(logger *zap.Logger, dataDir, flagDir, flagURL string) *Gazetteer {
	return &Gazetteer{logger: logger, dataDir: dataDir, flagDir: flagDir, flagURL: flagURL}
}

// Load (re)builds every dictionary and swaps the new snapshot in. Safe to
// call concurrently with readers.
func (g *Gazetteer) Load() error {
	s := &snapshot{
		code3ToCountry:  make(map[string]countryInfo),
		code2ToCode3:    make(map[string]string),
		oldCode2ToCode3: make(map[string]string),
		nameToCode3:     make(map[string]string),
		stateLongToAbbr: make(map[string]string),
		stateAbbrToLong: make(map[string]string),
		usCounties:      make(map[string]bool),
		celestial:       make(map[string]bool),
		flagCodes:       make(map[string]bool),
		loadedAt:        time.Now(),
	}

	if err := g.loadCountries(s); err != nil {
		return fmt.Errorf("gazetteer: %w", err)
	}
	if err := g.loadCounties(s); err != nil {
		return fmt.Errorf("gazetteer: %w", err)
	}
	if err := g.loadCelestial(s); err != nil {
		return fmt.Errorf("gazetteer: %w", err)
	}
	g.loadStates(s)
	g.loadFlags(s)

	g.snap.Store(s)
	g.logger.Info("Gazetteer loaded",
		zap.Int("countries", len(s.code3ToCountry)),
		zap.Int("counties", len(s.usCounties)),
		zap.Int("celestial", len(s.celestial)),
		zap.Int("flags", len(s.flagCodes)))
	return nil
}

// Age returns how long ago the current snapshot was built.
func (g *Gazetteer) Age() time.Duration {
	s := g.snap.Load()
	if s == nil {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(s.loadedAt)
}

func (g *Gazetteer) current() *snapshot {
	s := g.snap.Load()
	if s == nil {
		panic("gazetteer read before Load")
	}
	return s
}

// Fixed-column layout of country_codes.txt:
// name [0,47), code2 [48,50), old code2 [51,53), code3 [56,59),
// flag char at 59, alt forms from column 76 separated by ";".
func (g *Gazetteer) loadCountries(s *snapshot) error {
	f, err := os.Open(filepath.Join(g.dataDir, countryCodesFile))
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 59 || strings.HasPrefix(line, "#") {
			continue
		}
		info := countryInfo{
			Name:     strings.TrimSpace(slice(line, 0, 47)),
			Code2:    strings.TrimSpace(slice(line, 48, 50)),
			OldCode2: strings.TrimSpace(slice(line, 51, 53)),
			Code3:    strings.TrimSpace(slice(line, 56, 59)),
			FlagChar: strings.TrimSpace(slice(line, 59, 60)),
		}
		if len(line) > 76 {
			for _, alt := range strings.Split(line[76:], ";") {
				if alt = strings.TrimSpace(alt); alt != "" {
					info.AltForms = append(info.AltForms, alt)
				}
			}
		}
		if info.Name == "" || info.Code3 == "" {
			continue
		}

		s.countries = append(s.countries, info)
		s.code3ToCountry[info.Code3] = info
		if info.Code2 != "" {
			s.code2ToCode3[info.Code2] = info.Code3
		}
		if info.OldCode2 != "" {
			s.oldCode2ToCode3[info.OldCode2] = info.Code3
		}
		s.nameToCode3[normalize.Simplify(info.Name)] = info.Code3
		for _, alt := range info.AltForms {
			s.nameToCode3[normalize.Simplify(alt)] = info.Code3
		}
	}
	return scanner.Err()
}

func (g *Gazetteer) loadCounties(s *snapshot) error {
	f, err := os.Open(filepath.Join(g.dataDir, usCountiesFile))
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.usCounties[countyKey(line)] = true
	}
	// DC has no counties but behaves like one for display purposes
	s.usCounties[countyKey("Washington, DC")] = true
	return scanner.Err()
}

func (g *Gazetteer) loadCelestial(s *snapshot) error {
	f, err := os.Open(filepath.Join(g.dataDir, celestialFile))
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.celestial[normalize.Simplify(line)] = true
	}
	return scanner.Err()
}

func (g *Gazetteer) loadStates(s *snapshot) {
	for abbr, long := range usStates {
		s.stateAbbrToLong[abbr] = long
		s.stateLongToAbbr[normalize.Simplify(long)] = abbr
	}
	for abbr, long := range caProvinces {
		s.stateAbbrToLong[abbr] = long
		s.stateLongToAbbr[normalize.Simplify(long)] = abbr
	}
}

var flagFilePattern = regexp.MustCompile(`^([a-z][a-z0-9_-]{1,9})\.(?:png|gif|svg)$`)
var flagHrefPattern = regexp.MustCompile(`href="([a-z][a-z0-9_-]{1,9})\.(?:png|gif|svg)"`)

// loadFlags scans the local flag image directory, falling back to scraping
// the remote index page when nothing is found locally. Flag inventory is
// advisory, so failures only log.
func (g *Gazetteer) loadFlags(s *snapshot) {
	if g.flagDir != "" {
		entries, err := os.ReadDir(g.flagDir)
		if err == nil {
			for _, e := range entries {
				if m := flagFilePattern.FindStringSubmatch(e.Name()); m != nil {
					s.flagCodes[m[1]] = true
				}
			}
		}
	}
	if len(s.flagCodes) > 0 || g.flagURL == "" {
		return
	}

	resp, err := http.Get(g.flagURL)
	if err != nil {
		g.logger.Warn("Flag index fetch failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		g.logger.Warn("Flag index read failed", zap.Error(err))
		return
	}
	for _, m := range flagHrefPattern.FindAllStringSubmatch(string(body), -1) {
		s.flagCodes[m[1]] = true
	}
}

// --- lookups ---

// Code3ForCode2 maps a two-letter country code to the three-letter form.
func (g *Gazetteer) Code3ForCode2(code2 string) (string, bool) {
	s := g.current()
	code2 = strings.ToUpper(code2)
	if c3, ok := s.code2ToCode3[code2]; ok {
		return c3, true
	}
	c3, ok := s.oldCode2ToCode3[code2]
	return c3, ok
}

// ResolveCountry maps a country given by code or (alternate) name to its
// three-letter code.
func (g *Gazetteer) ResolveCountry(country string) (string, bool) {
	s := g.current()
	up := strings.ToUpper(strings.TrimSpace(country))
	if _, ok := s.code3ToCountry[up]; ok {
		return up, true
	}
	if len(up) == 2 {
		if c3, ok := g.Code3ForCode2(up); ok {
			return c3, true
		}
	}
	c3, ok := s.nameToCode3[normalize.Simplify(country)]
	return c3, ok
}

// CountryName returns the display name for a three-letter code.
func (g *Gazetteer) CountryName(code3 string) string {
	if info, ok := g.current().code3ToCountry[strings.ToUpper(code3)]; ok {
		return info.Name
	}
	return ""
}

// StateAbbreviation maps a long US/Canadian state or province name to its
// two-letter form; the input is returned unchanged if already short or
// unknown.
func (g *Gazetteer) StateAbbreviation(state string) string {
	s := g.current()
	up := strings.ToUpper(strings.TrimSpace(state))
	if _, ok := s.stateAbbrToLong[up]; ok {
		return up
	}
	if abbr, ok := s.stateLongToAbbr[normalize.Simplify(state)]; ok {
		return abbr
	}
	return strings.TrimSpace(state)
}

// LongState expands a state abbreviation; empty when unknown.
func (g *Gazetteer) LongState(abbr string) string {
	return g.current().stateAbbrToLong[strings.ToUpper(abbr)]
}

// IsKnownStateOrCountry reports whether a 2-3 letter token is a state or
// province abbreviation, or a country code.
func (g *Gazetteer) IsKnownStateOrCountry(token string) bool {
	s := g.current()
	up := strings.ToUpper(token)
	if _, ok := s.stateAbbrToLong[up]; ok {
		return true
	}
	if _, ok := s.code2ToCode3[up]; ok {
		return true
	}
	if _, ok := s.oldCode2ToCode3[up]; ok {
		return true
	}
	_, ok := s.code3ToCountry[up]
	return ok
}

// IsUSCounty reports whether "county, ST" names a known US county.
func (g *Gazetteer) IsUSCounty(county, state string) bool {
	return g.current().usCounties[countyKey(county+", "+state)]
}

// IsCelestial reports whether name belongs to a celestial object rather
// than a place on Earth.
func (g *Gazetteer) IsCelestial(name string) bool {
	return g.current().celestial[normalize.Simplify(name)]
}

// FlagCode picks the flag image code for a location: lowercase two-letter
// country code, only if an image actually exists in the inventory.
func (g *Gazetteer) FlagCode(country3 string) string {
	s := g.current()
	info, ok := s.code3ToCountry[strings.ToUpper(country3)]
	if !ok || info.Code2 == "" {
		return ""
	}
	code := strings.ToLower(info.Code2)
	if len(s.flagCodes) > 0 && !s.flagCodes[code] {
		return ""
	}
	return code
}

func countyKey(s string) string {
	return normalize.Simplify(strings.ReplaceAll(s, ",", " "))
}

func slice(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}
