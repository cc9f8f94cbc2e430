package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"
)

// A search is "recent" while its log row is younger than this.
const searchRecencyWindow = 365 * 24 * time.Hour

// Positive recency answers are cached in-process so repeated popular
// queries skip the log lookup entirely.
const recencyCacheTTL = time.Hour

type searchLogRepository struct {
	db    *sqlx.DB
	cache *gocache.Cache
}

func newSearchLogRepository(db *sqlx.DB) *searchLogRepository {
	return &searchLogRepository{
		db:    db,
		cache: gocache.New(recencyCacheTTL, 10*time.Minute),
	}
}

// HasSearchBeenDoneRecently reports whether the normalized query was
// logged within the recency window. An extended request is only satisfied
// by a row that was itself extended; a plain request is satisfied either
// way.
func (r *searchLogRepository) HasSearchBeenDoneRecently(ctx context.Context, normalized string, extended bool) (bool, error) {
	cacheKey := normalized + "|" + strconv.FormatBool(extended)
	if _, hit := r.cache.Get(cacheKey); hit {
		return true, nil
	}

	var row searchLogRow
	q := r.db.Rebind(`SELECT search_string, extended, hits, matches, time_stamp
		FROM atlas_searches2 WHERE search_string = ?`)
	if err := r.db.GetContext(ctx, &row, q, normalized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("atlas_searches2 select: %w", err)
	}

	recent := time.Since(row.TimeStamp) < searchRecencyWindow && (row.Extended || !extended)
	if recent {
		r.cache.Set(cacheKey, true, gocache.DefaultExpiration)
	}
	return recent, nil
}

// LogSearchResults inserts or updates the log row for a search. The
// extended flag is sticky: once a search has been extended, the row stays
// extended. The timestamp only advances when the search actually updated
// the database, so cached queries age out and get refreshed from remotes.
func (r *searchLogRepository) LogSearchResults(ctx context.Context, normalized string, extended bool, matches int, dbUpdated bool) error {
	var row searchLogRow
	sel := r.db.Rebind(`SELECT search_string, extended, hits, matches, time_stamp
		FROM atlas_searches2 WHERE search_string = ?`)
	err := r.db.GetContext(ctx, &row, sel, normalized)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		ins := r.db.Rebind(`INSERT INTO atlas_searches2
			(search_string, extended, hits, matches, time_stamp)
			VALUES (?, ?, 1, ?, ?)`)
		if _, err := r.db.ExecContext(ctx, ins, normalized, extended, matches, time.Now().UTC()); err != nil {
			return fmt.Errorf("atlas_searches2 insert: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("atlas_searches2 select: %w", err)
	}

	stamp := row.TimeStamp
	if dbUpdated {
		stamp = time.Now().UTC()
	}
	upd := r.db.Rebind(`UPDATE atlas_searches2
		SET hits = hits + 1, matches = ?, extended = ?, time_stamp = ?
		WHERE search_string = ?`)
	if _, err := r.db.ExecContext(ctx, upd, matches, row.Extended || extended, stamp, normalized); err != nil {
		return fmt.Errorf("atlas_searches2 update: %w", err)
	}
	return nil
}
