package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/skyviewcafe/atlas/internal/gazetteer"
	"github.com/skyviewcafe/atlas/internal/model"
	"github.com/skyviewcafe/atlas/internal/normalize"
)

// matchStage identifies one rung of the match ladder, in the order the
// ladder descends.
type matchStage int

const (
	stageExactMatch matchStage = iota
	stageExactMatchAlt
	stageStartsWith
	stageSoundsLike
)

// rankAdjustment rewards exact matches and penalizes soundex guesses.
func (s matchStage) rankAdjustment() int {
	switch s {
	case stageExactMatch:
		return 1
	case stageSoundsLike:
		return -1
	}
	return 0
}

type atlasRepository struct {
	db     *sqlx.DB
	gaz    *gazetteer.Gazetteer
	logger *zap.Logger
}

const atlasColumns = `item_no, key_name, variant, name, admin2, admin1, country,
	latitude, longitude, elevation, time_zone, postal_code, rank,
	feature_type, sound, source, geonames_id`

// Search runs the four-stage ladder (exact, alternate name, starts-with,
// soundex) over two passes: pass 0 restricted to ranked places, pass 1
// unrestricted. The ladder stops early once a pass has produced matches,
// once a postal search has run its single exact stage, or once starts-with
// found anything.
func (r *atlasRepository) Search(ctx context.Context, parsed model.ParsedSearchString, extended bool, maxMatches int) (*model.LocationMap, error) {
	matches := model.NewLocationMap()
	examined := make(map[int64]bool)
	key := normalize.Simplify(parsed.TargetCity)
	cityHasDigit := strings.ContainsAny(parsed.TargetCity, "0123456789")
	capacity := 4 * maxMatches

	for pass := 0; pass < 2; pass++ {
		rankCond := ""
		if pass == 0 {
			rankCond = " AND rank > 0"
		}

	ladder:
		for stage := stageExactMatch; stage <= stageSoundsLike; stage++ {
			if parsed.DoZip && stage != stageExactMatch {
				break
			}
			if stage == stageSoundsLike && cityHasDigit {
				break
			}

			rows, err := r.stageRows(ctx, stage, parsed, key, rankCond)
			if err != nil {
				return nil, err
			}

			for i := range rows {
				row := &rows[i].atlasRow
				if examined[row.ItemNo] {
					continue
				}
				// skipped but not examined: pass 1 may still take it
				if row.Source >= model.MinExternalSource && pass == 0 && !extended {
					continue
				}
				examined[row.ItemNo] = true
				if !r.gaz.CloseMatchForState(parsed.TargetState, row.Admin1, row.Country) {
					continue
				}

				loc := row.toLocation(r.gaz)
				if parsed.DoZip {
					loc.Rank = model.ZipRank
				} else {
					loc.Rank = clampRank(row.Rank + stage.rankAdjustment())
				}
				switch stage {
				case stageExactMatchAlt:
					loc.MatchedByAlternateName = true
					if rows[i].displayName != "" {
						loc.City = rows[i].displayName
					}
				case stageSoundsLike:
					loc.MatchedBySound = true
				}

				matches.Add(loc)
				if matches.Len() >= capacity {
					return matches, nil
				}
			}

			if matches.Len() > 0 && (pass == 0 || parsed.DoZip || stage >= stageStartsWith) {
				break ladder
			}
		}

		if matches.Len() > 0 {
			break
		}
	}

	return matches, nil
}

// stagedRow carries an optional replacement display name picked up from
// the alternate-name table.
type stagedRow struct {
	atlasRow
	displayName string
}

func (r *atlasRepository) stageRows(ctx context.Context, stage matchStage, parsed model.ParsedSearchString, key, rankCond string) ([]stagedRow, error) {
	switch stage {
	case stageExactMatch:
		if parsed.DoZip {
			return r.selectAtlas(ctx, "postal_code = ?"+rankCond, parsed.PostalCode)
		}
		return r.selectAtlas(ctx, "key_name = ?"+rankCond, key)

	case stageExactMatchAlt:
		return r.altNameRows(ctx, key, rankCond)

	case stageStartsWith:
		upper := key + "~"
		return r.selectAtlas(ctx,
			"((key_name >= ? AND key_name < ?) OR (variant >= ? AND variant < ?))"+rankCond,
			key, upper, key, upper)

	case stageSoundsLike:
		return r.selectAtlas(ctx, "sound = ?"+rankCond, normalize.Soundex(key))
	}
	return nil, fmt.Errorf("unknown match stage %d", stage)
}

func (r *atlasRepository) selectAtlas(ctx context.Context, where string, args ...interface{}) ([]stagedRow, error) {
	q := r.db.Rebind("SELECT " + atlasColumns + " FROM atlas2 WHERE " + where + " LIMIT 500")
	var rows []atlasRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("atlas2 select: %w", err)
	}
	staged := make([]stagedRow, len(rows))
	for i, row := range rows {
		staged[i] = stagedRow{atlasRow: row}
	}
	return staged, nil
}

// altNameRows follows atlas_alt_names references: a specific item number
// when present, the main key otherwise. Non-misspelling alternate names
// replace the display city.
func (r *atlasRepository) altNameRows(ctx context.Context, key, rankCond string) ([]stagedRow, error) {
	q := r.db.Rebind(`SELECT alt_key_name, atlas_key_name, alt_name, misspelling, specific_item2
		FROM atlas_alt_names WHERE alt_key_name = ?`)
	var alts []altNameRow
	if err := r.db.SelectContext(ctx, &alts, q, key); err != nil {
		return nil, fmt.Errorf("atlas_alt_names select: %w", err)
	}

	var out []stagedRow
	for _, alt := range alts {
		var rows []stagedRow
		var err error
		if alt.SpecificItem2 > 0 {
			rows, err = r.selectAtlas(ctx, "item_no = ?"+rankCond, alt.SpecificItem2)
		} else {
			rows, err = r.selectAtlas(ctx, "key_name = ?"+rankCond, alt.AtlasKeyName)
		}
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if alt.Misspelling == "N" {
				rows[i].displayName = alt.AltName
			}
			out = append(out, rows[i])
		}
	}
	return out, nil
}

func clampRank(rank int) int {
	if rank < 0 {
		return 0
	}
	if rank > model.MaxNonZipRank {
		return model.MaxNonZipRank
	}
	return rank
}
