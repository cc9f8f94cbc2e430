// Package seeder imports GeoNames dump files into the atlas2 table so a
// fresh database can answer searches without hitting remote sources.
package seeder

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/skyviewcafe/atlas/internal/config"
)

// Place is one parsed row from a GeoNames places dump.
type Place struct {
	GeonameID    int64
	Name         string
	Latitude     float64
	Longitude    float64
	FeatureClass string
	FeatureCode  string
	CountryCode  string
	Admin1Code   string
	Population   int
	Elevation    float64
	Timezone     string
}

// Country is one parsed row from countryInfo.txt.
type Country struct {
	Code2 string
	Code3 string
	Name  string
}

// Parser parses GeoNames data files
type Parser struct {
	dataDir       string
	minPopulation int
}

// NewParser creates a new parser instance with config
func NewParser(dataDir string, cfg config.SeederConfig) *Parser {
	return &Parser{
		dataDir:       dataDir,
		minPopulation: cfg.MinPopulation,
	}
}

// ParseCountries parses countryInfo.txt
func (p *Parser) ParseCountries() ([]Country, error) {
	file, err := os.Open(filepath.Join(p.dataDir, "countryInfo.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to open countryInfo.txt: %w", err)
	}
	defer file.Close()

	var countries []Country
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip comments
		if strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 5 {
			continue
		}
		if parts[0] == "" || parts[1] == "" || parts[4] == "" {
			continue
		}
		countries = append(countries, Country{
			Code2: parts[0],
			Code3: parts[1],
			Name:  parts[4],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan countryInfo.txt: %w", err)
	}
	return countries, nil
}

// ParsePlaces parses cities1000.txt and filters by population
func (p *Parser) ParsePlaces() ([]Place, error) {
	filePath := filepath.Join(p.dataDir, "cities1000.txt")

	// Check if file is zipped
	zipPath := filepath.Join(p.dataDir, "cities1000.zip")
	if _, err := os.Stat(zipPath); err == nil {
		return p.parsePlacesFromZip(zipPath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cities1000.txt: %w", err)
	}
	defer file.Close()

	return p.parsePlacesFromReader(file)
}

func (p *Parser) parsePlacesFromZip(zipPath string) ([]Place, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if strings.HasSuffix(f.Name, ".txt") {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open file in zip: %w", err)
			}
			defer rc.Close()
			return p.parsePlacesFromReader(rc)
		}
	}

	return nil, fmt.Errorf("no txt file found in zip")
}

func (p *Parser) parsePlacesFromReader(reader io.Reader) ([]Place, error) {
	scanner := bufio.NewScanner(reader)
	var places []Place

	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "\t")
		if len(parts) < 18 {
			continue
		}

		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		population, err := strconv.Atoi(parts[14])
		if err != nil || population < p.minPopulation {
			continue
		}
		lat, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(parts[5], 64)
		if err != nil {
			continue
		}

		var elevation float64
		if parts[15] != "" {
			if elev, err := strconv.ParseFloat(parts[15], 64); err == nil {
				elevation = elev
			}
		}

		places = append(places, Place{
			GeonameID:    id,
			Name:         parts[1],
			Latitude:     lat,
			Longitude:    lon,
			FeatureClass: parts[6],
			FeatureCode:  parts[7],
			CountryCode:  parts[8],
			Admin1Code:   parts[10],
			Population:   population,
			Elevation:    elevation,
			Timezone:     parts[17],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan cities: %w", err)
	}
	return places, nil
}
