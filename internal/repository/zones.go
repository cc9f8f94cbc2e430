package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/skyviewcafe/atlas/internal/normalize"
)

type zoneRepository struct {
	db *sqlx.DB
}

// ZoneForLocation resolves a time zone from the zone_lookup table, trying
// country:state:county, country:state, then country. When the matched row
// lists several zones, the first is returned with a trailing "?" to mark
// it ambiguous.
func (r *zoneRepository) ZoneForLocation(ctx context.Context, country, state, county string) (string, error) {
	keys := zoneLookupKeys(country, state, county)
	q := r.db.Rebind("SELECT zones FROM zone_lookup WHERE location = ?")

	for _, key := range keys {
		var zones string
		err := r.db.GetContext(ctx, &zones, q, key)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("zone_lookup select: %w", err)
		}
		list := strings.Split(zones, ",")
		zone := strings.TrimSpace(list[0])
		if zone == "" {
			continue
		}
		if len(list) > 1 {
			zone += "?"
		}
		return zone, nil
	}
	return "", nil
}

// zoneLookupKeys builds lookup keys from most to least specific.
func zoneLookupKeys(country, state, county string) []string {
	base := normalize.Simplify(country)
	var keys []string
	if state != "" && county != "" {
		keys = append(keys, base+":"+normalize.Simplify(state)+":"+normalize.Simplify(county))
	}
	if state != "" {
		keys = append(keys, base+":"+normalize.Simplify(state))
	}
	keys = append(keys, base)
	return keys
}

type eventLogRepository struct {
	db *sqlx.DB
}

// LogWarning appends one warning line to atlas_log.
func (r *eventLogRepository) LogWarning(ctx context.Context, message string) error {
	q := r.db.Rebind("INSERT INTO atlas_log (time_stamp, warning, message) VALUES (?, ?, ?)")
	if _, err := r.db.ExecContext(ctx, q, time.Now().UTC(), true, message); err != nil {
		return fmt.Errorf("atlas_log insert: %w", err)
	}
	return nil
}
