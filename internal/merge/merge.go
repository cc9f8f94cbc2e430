// Package merge reconciles location candidates gathered from the local
// database and the remote sources into one deduplicated, ranked list.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/skyviewcafe/atlas/internal/model"
)

// Two candidates within this distance are close enough to describe the
// same place for zone copying, state conflicts and type fusion.
const proximityKm = 10.0

// Union collects every candidate map into one. Later maps gain "(n)" key
// suffixes on collision, which Dedup collapses back into shared buckets.
func Union(maps ...*model.LocationMap) *model.LocationMap {
	out := model.NewLocationMap()
	for _, m := range maps {
		if m != nil {
			out.AddAll(m)
		}
	}
	return out
}

// Dedup reconciles candidates that share a base key, flattens the
// survivors and returns at most limit+1 locations sorted by descending
// rank then display name. The extra entry lets the caller detect that
// the limit was reached. warnf, when non-nil, receives conflict notices.
func Dedup(m *model.LocationMap, limit int, warnf func(string)) []model.Location {
	buckets := make(map[string][]*model.Location)
	var order []string
	for _, key := range m.Keys() {
		loc, _ := m.Get(key)
		base := model.BaseKey(key)
		if _, seen := buckets[base]; !seen {
			order = append(order, base)
		}
		l := loc
		buckets[base] = append(buckets[base], &l)
	}
	sort.Strings(order)

	var out []model.Location
	for _, base := range order {
		bucket := buckets[base]
		reconcileBucket(bucket, warnf)
		for _, loc := range bucket {
			if loc != nil {
				out = append(out, *loc)
			}
		}
	}

	if limit > 0 && len(out) > limit+1 {
		out = out[:limit+1]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		return out[i].DisplayName() < out[j].DisplayName()
	})
	return out
}

// reconcileBucket pairwise-compares every surviving pair; eliminated
// entries are nilled in place.
func reconcileBucket(bucket []*model.Location, warnf func(string)) {
	for i := 0; i < len(bucket); i++ {
		if bucket[i] == nil {
			continue
		}
		for j := i + 1; j < len(bucket); j++ {
			if bucket[j] == nil {
				continue
			}
			keepI, keepJ := reconcilePair(bucket[i], bucket[j], warnf)
			if !keepJ {
				bucket[j] = nil
			}
			if !keepI {
				bucket[i] = nil
				break
			}
		}
	}
}

func reconcilePair(a, b *model.Location, warnf func(string)) (keepA, keepB bool) {
	dist := a.DistanceKm(b)

	// a confident zone overrides an ambiguous one at the same site
	if dist < proximityKm {
		aAmbig := strings.HasSuffix(a.Zone, "?")
		bAmbig := strings.HasSuffix(b.Zone, "?")
		if aAmbig && !bAmbig && b.Zone != "" {
			a.Zone = b.Zone
		} else if bAmbig && !aAmbig && a.Zone != "" {
			b.Zone = a.Zone
		}
	}

	if a.GeonameID > 0 && a.GeonameID == b.GeonameID {
		return reconcileSameIdentity(a, b)
	}

	if dist < proximityKm && a.PlaceType == "T.PK" && b.PlaceType == "T.MT" {
		return true, false
	}
	if dist < proximityKm && a.PlaceType == "T.MT" && b.PlaceType == "T.PK" {
		return false, true
	}

	if !samePlaceType(a, b, dist) {
		return true, true
	}

	if !equalFold(a.State, b.State) {
		if dist < proximityKm && warnf != nil {
			warnf(fmt.Sprintf("State conflict for %s: %q vs %q near %.4f,%.4f",
				a.City, a.State, b.State, a.Latitude, a.Longitude))
		}
		return keepBetterAdmin(a, b, a.State, b.State, func(l *model.Location) { l.ShowState = true })
	}

	if !equalFold(a.County, b.County) {
		return keepBetterAdmin(a, b, a.County, b.County, func(l *model.Location) { l.ShowCounty = true })
	}

	// a local row beats its remote twin but inherits whatever the remote
	// learned
	if a.IsRemote() != b.IsRemote() {
		local, remote := a, b
		if a.IsRemote() {
			local, remote = b, a
		}
		if remote.Rank > local.Rank {
			local.Rank = remote.Rank
		}
		if local.Zip == "" {
			local.Zip = remote.Zip
		}
		return local == a, local == b
	}

	switch {
	case a.Rank > b.Rank:
		return true, false
	case b.Rank > a.Rank:
		return false, true
	case a.Zip != "" && b.Zip == "":
		return true, false
	case b.Zip != "" && a.Zip == "":
		return false, true
	}
	return true, false
}

// reconcileSameIdentity collapses two records of the same remote entity.
// The older (lower-source) row survives with the best rank, any zip and
// the newer source value; it is flagged for writeback when the newer
// record disagrees materially.
func reconcileSameIdentity(a, b *model.Location) (bool, bool) {
	older, newer := a, b
	if b.Source < a.Source {
		older, newer = b, a
	}
	older.UseAsUpdate = !older.IsCloseMatch(newer)
	if newer.Rank > older.Rank {
		older.Rank = newer.Rank
	}
	if older.Zip == "" {
		older.Zip = newer.Zip
	}
	older.Source = newer.Source
	return older == a, older == b
}

// samePlaceType reports whether two candidates describe the same kind of
// place. Administrative areas and populated places at the same site are
// the same kind; a generic populated place upgrades to the specific one.
func samePlaceType(a, b *model.Location, dist float64) bool {
	if a.PlaceType == b.PlaceType {
		return true
	}
	aPop := strings.HasPrefix(a.PlaceType, "P.PPL")
	bPop := strings.HasPrefix(b.PlaceType, "P.PPL")
	if aPop && bPop {
		if a.PlaceType == "P.PPL" {
			a.PlaceType = b.PlaceType
		} else if b.PlaceType == "P.PPL" {
			b.PlaceType = a.PlaceType
		}
		return true
	}
	if dist < proximityKm {
		aAdm := strings.HasPrefix(a.PlaceType, "A.ADM")
		bAdm := strings.HasPrefix(b.PlaceType, "A.ADM")
		if (aAdm && bPop) || (bAdm && aPop) {
			return true
		}
	}
	return false
}

// keepBetterAdmin settles a state or county disagreement: the side with
// the only populated value wins, then the higher rank; a full tie keeps
// both and marks them for disambiguated display.
func keepBetterAdmin(a, b *model.Location, aVal, bVal string, mark func(*model.Location)) (bool, bool) {
	switch {
	case aVal != "" && bVal == "":
		return true, false
	case bVal != "" && aVal == "":
		return false, true
	case a.Rank > b.Rank:
		return true, false
	case b.Rank > a.Rank:
		return false, true
	}
	mark(a)
	mark(b)
	return true, true
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
