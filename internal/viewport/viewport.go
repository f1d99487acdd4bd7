// Package viewport models the visible map rectangle and schedules
// debounced pin recomputes as it changes.
package viewport

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/mapinfo/internal/model"
)

// kmPerDegreeLat is the length of one degree of latitude.
const kmPerDegreeLat = 111.32

// Viewport is the visible region: a center plus full latitude and longitude
// spans in degrees. Longitude wraparound across the antimeridian is not
// handled.
type Viewport struct {
	Center  model.LatLng `json:"center"`
	LatSpan float64      `json:"lat_span"`
	LngSpan float64      `json:"lng_span"`
}

// Bounds is an axis-aligned lat/lng rectangle. It does not wrap across the
// antimeridian; a viewport spanning ±180° longitude matches only one side.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// FromRadius builds the viewport that shows radiusKM around center, the way a
// map camera region is usually specified.
func FromRadius(center model.LatLng, radiusKM float64) Viewport {
	latSpan := 2 * radiusKM / kmPerDegreeLat
	cos := math.Cos(center.Lat * math.Pi / 180)
	lngSpan := 360.0
	if cos > 1e-9 {
		lngSpan = math.Min(360, latSpan/cos)
	}
	return Viewport{Center: center, LatSpan: latSpan, LngSpan: lngSpan}
}

// Bounds returns center ± span/2 on each axis.
func (v Viewport) Bounds() Bounds {
	latHalf := v.LatSpan / 2
	lngHalf := v.LngSpan / 2
	return Bounds{
		MinLat: v.Center.Lat - latHalf,
		MaxLat: v.Center.Lat + latHalf,
		MinLng: v.Center.Lng - lngHalf,
		MaxLng: v.Center.Lng + lngHalf,
	}
}

// Contains reports whether the position lies inside the viewport, bounds
// included.
func (v Viewport) Contains(ll model.LatLng) bool {
	return v.Bounds().Contains(ll)
}

// Contains reports whether the position lies inside b, edges included.
func (b Bounds) Contains(ll model.LatLng) bool {
	return ll.Lat >= b.MinLat && ll.Lat <= b.MaxLat &&
		ll.Lng >= b.MinLng && ll.Lng <= b.MaxLng
}

// Geom returns the bounds as a go-geom XY bounds with X = longitude.
func (b Bounds) Geom() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}
