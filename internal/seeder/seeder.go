package seeder

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/normalize"
)

// Seeder turns parsed GeoNames places into atlas2 rows.
type Seeder struct {
	db        *sqlx.DB
	gaz       *gazetteer.Gazetteer
	logger    *zap.Logger
	batchSize int
}

func New(db *sqlx.DB, gaz *gazetteer.Gazetteer, logger *zap.Logger, batchSize int) *Seeder {
	if batchSize < 1 {
		batchSize = 1000
	}
	return &Seeder{db: db, gaz: gaz, logger: logger, batchSize: batchSize}
}

type seedRow struct {
	KeyName     string  `db:"key_name"`
	Variant     string  `db:"variant"`
	Name        string  `db:"name"`
	Admin2      string  `db:"admin2"`
	Admin1      string  `db:"admin1"`
	Country     string  `db:"country"`
	Latitude    float64 `db:"latitude"`
	Longitude   float64 `db:"longitude"`
	Elevation   float64 `db:"elevation"`
	TimeZone    string  `db:"time_zone"`
	Rank        int     `db:"rank"`
	FeatureType string  `db:"feature_type"`
	Sound       string  `db:"sound"`
	GeonamesID  int64   `db:"geonames_id"`
}

// Run inserts the parsed places in batches. Countries supplement the
// gazetteer for code2 lookups the dictionary files miss. Returns the
// number of rows written.
func (s *Seeder) Run(ctx context.Context, places []Place, countries []Country) (int, error) {
	code3 := make(map[string]string, len(countries))
	for _, c := range countries {
		code3[c.Code2] = c.Code3
	}

	rows := make([]seedRow, 0, s.batchSize)
	written := 0
	skipped := 0

	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if err := s.insertBatch(ctx, rows); err != nil {
			return err
		}
		written += len(rows)
		rows = rows[:0]
		return nil
	}

	for i := range places {
		row, ok := s.toRow(&places[i], code3)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
		if len(rows) >= s.batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}

	s.logger.Info("Seed completed",
		zap.Int("written", written), zap.Int("skipped", skipped))
	return written, nil
}

func (s *Seeder) toRow(place *Place, code3 map[string]string) (seedRow, bool) {
	country, ok := s.gaz.Code3ForCode2(place.CountryCode)
	if !ok {
		country, ok = code3[place.CountryCode]
		if !ok {
			return seedRow{}, false
		}
	}

	// admin1 codes are only meaningful names for US and Canadian places
	admin1 := ""
	if country == "USA" || country == "CAN" {
		admin1 = place.Admin1Code
	}

	return seedRow{
		KeyName:     normalize.Simplify(place.Name),
		Variant:     normalize.SimplifyVariant(place.Name),
		Name:        place.Name,
		Admin1:      admin1,
		Country:     country,
		Latitude:    place.Latitude,
		Longitude:   place.Longitude,
		Elevation:   place.Elevation,
		TimeZone:    place.Timezone,
		Rank:        rankForPopulation(place.Population, place.FeatureCode),
		FeatureType: place.FeatureClass + "." + place.FeatureCode,
		Sound:       normalize.Soundex(place.Name),
		GeonamesID:  place.GeonameID,
	}, true
}

// rankForPopulation assigns the initial local rank from population and
// capital status; remote lookups refine it later.
func rankForPopulation(population int, featureCode string) int {
	rank := 2
	switch {
	case population >= 1000000:
		rank = 6
	case population >= 100000:
		rank = 5
	case population >= 10000:
		rank = 4
	case population >= 1000:
		rank = 3
	}
	if featureCode == "PPLC" {
		rank++
	}
	return rank
}

func (s *Seeder) insertBatch(ctx context.Context, rows []seedRow) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO atlas2
		(key_name, variant, name, admin2, admin1, country, latitude, longitude,
		 elevation, time_zone, postal_code, rank, feature_type, sound, source, geonames_id)
		VALUES (:key_name, :variant, :name, :admin2, :admin1, :country, :latitude, :longitude,
		 :elevation, :time_zone, '', :rank, :feature_type, :sound, 0, :geonames_id)`,
		rows)
	if err != nil {
		return fmt.Errorf("atlas2 batch insert: %w", err)
	}
	return nil
}

// Count returns the number of atlas2 rows, used to decide whether a
// database needs seeding at startup.
func Count(ctx context.Context, db *sqlx.DB) (int64, error) {
	var count int64
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM atlas2"); err != nil {
		return 0, fmt.Errorf("atlas2 count: %w", err)
	}
	return count, nil
}
