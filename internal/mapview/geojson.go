package mapview

import (
	"github.com/samber/lo"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/mapinfo/internal/model"
)

// PinsCollection renders pins as a GeoJSON FeatureCollection of points with
// label and subtitle properties. The bbox covers the pins; it is omitted when
// there are none.
func PinsCollection(pins []model.Pin) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		Features: lo.Map(pins, func(p model.Pin, _ int) *geojson.Feature {
			return &geojson.Feature{
				Geometry: geom.NewPointFlat(geom.XY, []float64{p.Lng, p.Lat}),
				Properties: map[string]any{
					"label":    p.Label,
					"subtitle": p.Subtitle,
				},
			}
		}),
	}
	if len(fc.Features) > 0 {
		b := geom.NewBounds(geom.XY)
		for _, f := range fc.Features {
			b.Extend(f.Geometry)
		}
		fc.BBox = b
	}
	return fc
}

// PlacesCollection renders places the way they are pinned.
func PlacesCollection(places []*model.Place) *geojson.FeatureCollection {
	return PinsCollection(lo.Map(places, func(p *model.Place, _ int) model.Pin {
		return model.PinFor(p)
	}))
}
