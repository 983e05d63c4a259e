package scoring

import (
	"sort"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
)

// Score ranks raw geolocated hits for a device.
//
// score = proximity * (alpha*coprobe + (1-alpha)) * rarity
//
// deviceNames is the device's probed name set; rarity maps a name to its global hit count.
// The result is sorted by descending score, ties keeping input order.
func Score(hits []domain.RawCandidate, deviceNames []string, rarity map[string]int, ref *geo.Location, w Weights) []domain.ScoredCandidate {
	if len(hits) == 0 {
		return []domain.ScoredCandidate{}
	}

	byName := make(map[string][]geo.Location)
	for _, h := range hits {
		byName[h.Name] = append(byName[h.Name], geo.Location{Latitude: h.Lat, Longitude: h.Lon})
	}
	names := uniqueNames(deviceNames)

	out := make([]domain.ScoredCandidate, 0, len(hits))
	for _, h := range hits {
		point := geo.Location{Latitude: h.Lat, Longitude: h.Lon}
		r := RarityWeight(rarity[h.Name], w.RarityWeight)
		p := ProximityWeight(point, ref, w.SigmaKm, w.ProximityWeight)
		cp := coprobeWeight(point, h.Name, names, byName, w.CoprobeRadiusM)

		out = append(out, domain.ScoredCandidate{
			Lat:        h.Lat,
			Lon:        h.Lon,
			Name:       h.Name,
			LastUpdate: h.LastUpdate,
			Score:      p * (w.AlphaCoprobe*cp + (1 - w.AlphaCoprobe)) * r,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// coprobeWeight is the fraction of the device's other names with at least one
// hit within radiusM of point.
func coprobeWeight(point geo.Location, self string, names []string, byName map[string][]geo.Location, radiusM float64) float64 {
	others := 0
	corroborated := 0
	for _, n := range names {
		if n == self {
			continue
		}
		others++
		for _, loc := range byName[n] {
			if point.DistanceKm(loc)*1000 <= radiusM {
				corroborated++
				break
			}
		}
	}
	denom := others
	if denom < 1 {
		denom = 1
	}
	return float64(corroborated) / float64(denom)
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
