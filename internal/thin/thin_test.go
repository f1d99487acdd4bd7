package thin

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mapinfo/internal/model"
)

func place(name string, lat, lng float64) *model.Place {
	return &model.Place{Name: name, Lat: lat, Lng: lng}
}

func randomPlaces(r *rand.Rand, n int) []*model.Place {
	out := make([]*model.Place, n)
	for i := range out {
		out[i] = place("p", 51.4+r.Float64()*4.1, -10.5+r.Float64()*5.1)
	}
	return out
}

// minPairwise returns the smallest distance between any two places.
func minPairwise(ps []*model.Place) float64 {
	best := math.Inf(1)
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			best = math.Min(best, Haversine(ps[i].Position(), ps[j].Position()))
		}
	}
	return best
}

func TestHaversine(t *testing.T) {
	dublin := model.LatLng{Lat: 53.3498, Lng: -6.2603}
	cork := model.LatLng{Lat: 51.8985, Lng: -8.4756}

	assert.InDelta(t, 219.5, Haversine(dublin, cork), 1.5)
	assert.InDelta(t, 0, Haversine(dublin, dublin), 1e-9)
	assert.InDelta(t, Haversine(dublin, cork), Haversine(cork, dublin), 1e-9)
	assert.InDelta(t, math.Pi*EarthRadiusKM, Haversine(model.LatLng{Lat: 0, Lng: 0}, model.LatLng{Lat: 0, Lng: 180}), 1e-6)
}

func TestSelect_Passthrough(t *testing.T) {
	in := []*model.Place{place("a", 53, -8), place("b", 52, -7), place("c", 54, -9)}

	out := Select(in, 3, model.LatLng{Lat: 53, Lng: -8})
	require.Len(t, out, 3)
	assert.Same(t, &in[0], &out[0], "passthrough returns the input slice")
	assert.Equal(t, in, out)

	out = Select(in, 10, model.LatLng{})
	assert.Equal(t, in, out)

	assert.Empty(t, Select(nil, 0, model.LatLng{}))
}

func TestSelect_NonPositiveLimit(t *testing.T) {
	in := []*model.Place{place("a", 53, -8), place("b", 52, -7)}

	assert.Empty(t, Select(in, 0, model.LatLng{}))
	assert.Empty(t, Select(in, -1, model.LatLng{}))
}

func TestSelect_CapAndNoDuplicates(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	in := randomPlaces(r, 200)

	for _, limit := range []int{1, 2, 5, 35, 199} {
		out := Select(in, limit, model.LatLng{Lat: 53.4, Lng: -8.0})
		require.Len(t, out, limit)

		members := make(map[*model.Place]bool, len(in))
		for _, p := range in {
			members[p] = true
		}
		seen := make(map[*model.Place]bool, limit)
		for _, p := range out {
			assert.True(t, members[p], "output must be a subset of the candidates")
			assert.False(t, seen[p], "duplicate selection")
			seen[p] = true
		}
	}
}

func TestSelect_CoincidentPoints(t *testing.T) {
	in := make([]*model.Place, 6)
	for i := range in {
		in[i] = place("same", 53, -8)
	}

	out := Select(in, 4, model.LatLng{Lat: 53, Lng: -8})
	require.Len(t, out, 4)
	assert.Equal(t, in[:4], out, "ties resolve in input order")
}

func TestSelect_Deterministic(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	in := randomPlaces(r, 120)
	ref := model.LatLng{Lat: 53.4, Lng: -8.0}

	first := Select(in, 20, ref)
	second := Select(in, 20, ref)
	assert.Equal(t, first, second)
}

func TestSelect_SeedIsFarthestFromReference(t *testing.T) {
	ref := model.LatLng{Lat: 53.4, Lng: -8.0}
	in := []*model.Place{
		place("near", 53.41, -8.01),
		place("far", 55.2, -6.0),
		place("mid", 52.5, -8.5),
		place("close", 53.5, -8.1),
	}

	out := Select(in, 2, ref)
	require.Len(t, out, 2)
	assert.Equal(t, "far", out[0].Name)
	assert.Equal(t, "mid", out[1].Name, "second pick is farthest from the seed")
}

func TestSelect_TiesGoToEarlierCandidate(t *testing.T) {
	ref := model.LatLng{Lat: 0, Lng: 0}
	east := place("east", 0, 1)
	west := place("west", 0, -1)
	north := place("north", 1, 0)

	out := Select([]*model.Place{east, west, north}, 2, ref)
	assert.Equal(t, []*model.Place{east, west}, out)

	out = Select([]*model.Place{north, east, west}, 2, ref)
	assert.Equal(t, []*model.Place{north, east}, out)
}

func TestSelect_BeatsTruncationOnClusteredInput(t *testing.T) {
	var in []*model.Place
	for i := range 10 {
		in = append(in, place("cluster", 53.0+float64(i)*0.001, -8.0))
	}
	for i := range 10 {
		in = append(in, place("grid", 51.5+float64(i%5), -10.0+float64(i/5)*2))
	}

	for _, limit := range []int{2, 5, 8} {
		out := Select(in, limit, model.LatLng{Lat: 53.4, Lng: -8.0})
		require.Len(t, out, limit)
		assert.GreaterOrEqual(t, minPairwise(out), minPairwise(in[:limit]))
	}
}

// The greedy pick's closest pair is never worse than half the optimum.
func TestSelect_WithinFactorTwoOfOptimal(t *testing.T) {
	const n, limit = 9, 4

	for seed := range uint64(20) {
		r := rand.New(rand.NewPCG(seed, seed+100))
		in := randomPlaces(r, n)

		greedy := minPairwise(Select(in, limit, model.LatLng{Lat: 53.4, Lng: -8.0}))

		optimal := 0.0
		subset := make([]*model.Place, 0, limit)
		var walk func(start int)
		walk = func(start int) {
			if len(subset) == limit {
				optimal = math.Max(optimal, minPairwise(subset))
				return
			}
			for i := start; i < n; i++ {
				subset = append(subset, in[i])
				walk(i + 1)
				subset = subset[:len(subset)-1]
			}
		}
		walk(0)

		assert.GreaterOrEqual(t, 2*greedy+1e-9, optimal, "seed %d", seed)
	}
}

func TestThinner(t *testing.T) {
	in := []*model.Place{place("a", 53, -8), place("b", 52, -7), place("c", 54, -9)}
	ref := model.LatLng{Lat: 53, Lng: -8}

	assert.Equal(t, Select(in, 2, ref), Thinner{}.Select(in, 2, ref))
}
