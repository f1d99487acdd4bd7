// Package thin reduces a set of candidate places to a bounded, well-spread
// subset using greedy farthest-point selection.
package thin

import (
	"math"

	"github.com/sells-group/mapinfo/internal/model"
)

// EarthRadiusKM is the mean Earth radius used for great-circle distance.
const EarthRadiusKM = 6371.0

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b model.LatLng) float64 {
	const rad = math.Pi / 180.0
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKM * 2.0 * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Select returns at most limit places from candidates, chosen so that the
// closest pair in the result is as far apart as the greedy max-min rule can
// make it. When candidates already fit, the input slice is returned as-is.
//
// The seed is the candidate farthest from ref. Every following pick is the
// candidate whose distance to its nearest selected point is largest. Ties go
// to the earlier candidate in input order, so results are deterministic.
// This approximates the optimal dispersion subset; it does not guarantee it.
func Select(candidates []*model.Place, limit int, ref model.LatLng) []*model.Place {
	if len(candidates) <= limit {
		return candidates
	}
	if limit <= 0 {
		return []*model.Place{}
	}

	seed := 0
	best := math.Inf(-1)
	for i, c := range candidates {
		if d := Haversine(c.Position(), ref); d > best {
			best, seed = d, i
		}
	}

	selected := make([]*model.Place, 0, limit)
	taken := make([]bool, len(candidates))
	nearest := make([]float64, len(candidates))

	pick := func(i int) {
		taken[i] = true
		selected = append(selected, candidates[i])
	}

	pick(seed)
	seedPos := candidates[seed].Position()
	for i, c := range candidates {
		nearest[i] = Haversine(c.Position(), seedPos)
	}

	for len(selected) < limit {
		next := -1
		best = math.Inf(-1)
		for i := range candidates {
			if taken[i] {
				continue
			}
			if nearest[i] > best {
				best, next = nearest[i], i
			}
		}
		if next < 0 {
			break
		}

		pick(next)
		nextPos := candidates[next].Position()
		for i, c := range candidates {
			if taken[i] {
				continue
			}
			if d := Haversine(c.Position(), nextPos); d < nearest[i] {
				nearest[i] = d
			}
		}
	}

	return selected
}

// Thinner adapts Select to interfaces that expect a method value.
type Thinner struct{}

// Select calls the package-level Select.
func (Thinner) Select(candidates []*model.Place, limit int, ref model.LatLng) []*model.Place {
	return Select(candidates, limit, ref)
}
