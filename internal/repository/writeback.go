package repository

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/model"
	"github.com/skyviewcafe/atlas/internal/normalize"
)

// A remote row supersedes a local one when they sit within this distance.
const writebackProximityKm = 10.0

// SaveLocations writes remote-sourced or superseding locations into
// atlas2 so future queries can be served locally. Rows flagged UseAsUpdate
// replace their geonames_id match (deduplicating extra copies); other
// remote rows are matched by key, country, proximity and state before
// deciding between insert and backfill.
func (r *atlasRepository) SaveLocations(ctx context.Context, locs []model.Location) (int, error) {
	written := 0
	for i := range locs {
		loc := locs[i]
		if loc.Source < model.MinExternalSource && !loc.UseAsUpdate {
			continue
		}

		changed, err := r.saveOne(ctx, &loc)
		if err != nil {
			return written, err
		}
		if changed {
			written++
		}
	}
	return written, nil
}

func (r *atlasRepository) saveOne(ctx context.Context, loc *model.Location) (bool, error) {
	if loc.UseAsUpdate && loc.GeonameID > 0 {
		return r.updateByGeonameID(ctx, loc)
	}

	rows, err := r.selectAtlas(ctx, "key_name = ?", normalize.Simplify(loc.City))
	if err != nil {
		return false, err
	}

	var found *atlasRow
	for i := range rows {
		row := &rows[i].atlasRow
		if !strings.EqualFold(row.Country, loc.Country) {
			continue
		}
		candidate := row.toLocation(r.gaz)
		if loc.DistanceKm(&candidate) >= writebackProximityKm {
			continue
		}
		if (loc.Country == "USA" || loc.Country == "CAN") && !strings.EqualFold(row.Admin1, loc.State) {
			continue
		}
		found = row
		break
	}

	if found == nil {
		if err := r.insertLocation(ctx, loc); err != nil {
			return false, err
		}
		return true, nil
	}
	return r.backfillAdminNames(ctx, found, loc)
}

func (r *atlasRepository) updateByGeonameID(ctx context.Context, loc *model.Location) (bool, error) {
	rows, err := r.selectAtlas(ctx, "geonames_id = ?", loc.GeonameID)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		if err := r.insertLocation(ctx, loc); err != nil {
			return false, err
		}
		return true, nil
	}

	q := r.db.Rebind(`UPDATE atlas2 SET key_name = ?, variant = ?, name = ?,
		admin2 = ?, admin1 = ?, country = ?, latitude = ?, longitude = ?,
		elevation = ?, time_zone = ?, postal_code = ?, rank = ?,
		feature_type = ?, sound = ?, source = ?
		WHERE item_no = ?`)
	if _, err := r.db.ExecContext(ctx, q,
		normalize.Simplify(loc.City), normalize.SimplifyVariant(loc.City), loc.City,
		loc.County, loc.State, loc.Country, loc.Latitude, loc.Longitude,
		loc.Elevation, loc.Zone, loc.Zip, loc.Rank,
		loc.PlaceType, normalize.Soundex(loc.City), loc.Source,
		rows[0].ItemNo); err != nil {
		return false, fmt.Errorf("atlas2 update: %w", err)
	}

	// duplicate geonames_id rows are junk: keep the first, drop the rest
	if len(rows) > 1 {
		r.logger.Warn("Duplicate geonames_id rows in atlas2",
			zap.Int64("geonames_id", loc.GeonameID), zap.Int("count", len(rows)))
		del := r.db.Rebind("DELETE FROM atlas2 WHERE geonames_id = ? AND item_no <> ?")
		if _, err := r.db.ExecContext(ctx, del, loc.GeonameID, rows[0].ItemNo); err != nil {
			return false, fmt.Errorf("atlas2 dedup delete: %w", err)
		}
	}
	return true, nil
}

// backfillAdminNames fills county/state columns the existing row is
// missing; it never overwrites populated values.
func (r *atlasRepository) backfillAdminNames(ctx context.Context, row *atlasRow, loc *model.Location) (bool, error) {
	setAdmin2 := row.Admin2 == "" && loc.County != ""
	setAdmin1 := row.Admin1 == "" && loc.State != ""
	if !setAdmin2 && !setAdmin1 {
		return false, nil
	}

	admin2, admin1 := row.Admin2, row.Admin1
	if setAdmin2 {
		admin2 = loc.County
	}
	if setAdmin1 {
		admin1 = loc.State
	}
	q := r.db.Rebind("UPDATE atlas2 SET admin2 = ?, admin1 = ? WHERE item_no = ?")
	if _, err := r.db.ExecContext(ctx, q, admin2, admin1, row.ItemNo); err != nil {
		return false, fmt.Errorf("atlas2 backfill: %w", err)
	}
	return true, nil
}

func (r *atlasRepository) insertLocation(ctx context.Context, loc *model.Location) error {
	q := r.db.Rebind(`INSERT INTO atlas2
		(key_name, variant, name, admin2, admin1, country, latitude, longitude,
		 elevation, time_zone, postal_code, rank, feature_type, sound, source, geonames_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		normalize.Simplify(loc.City), normalize.SimplifyVariant(loc.City), loc.City,
		loc.County, loc.State, loc.Country, loc.Latitude, loc.Longitude,
		loc.Elevation, loc.Zone, loc.Zip, loc.Rank, loc.PlaceType,
		normalize.Soundex(loc.City), loc.Source, loc.GeonameID)
	if err != nil {
		return fmt.Errorf("atlas2 insert: %w", err)
	}
	return nil
}
