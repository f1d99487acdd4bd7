package mapview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mapinfo/internal/model"
)

type featureCollection struct {
	Type     string    `json:"type"`
	BBox     []float64 `json:"bbox"`
	Features []struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]string `json:"properties"`
	} `json:"features"`
}

func decodeCollection(t *testing.T, data []byte) featureCollection {
	t.Helper()
	var fc featureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	return fc
}

func TestPinsCollection(t *testing.T) {
	pins := []model.Pin{
		{Label: "Cliffs of Moher", Subtitle: "Walk", Lat: 52.9715, Lng: -9.4309},
		{Label: "Dublin", Lat: 53.3498, Lng: -6.2603},
	}

	data, err := json.Marshal(PinsCollection(pins))
	require.NoError(t, err)
	fc := decodeCollection(t, data)

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Point", fc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{-9.4309, 52.9715}, fc.Features[0].Geometry.Coordinates, "lng first")
	assert.Equal(t, "Cliffs of Moher", fc.Features[0].Properties["label"])
	assert.Equal(t, "Walk", fc.Features[0].Properties["subtitle"])
	assert.Equal(t, "Dublin", fc.Features[1].Properties["label"])
	assert.Equal(t, []float64{-9.4309, 52.9715, -6.2603, 53.3498}, fc.BBox)
}

func TestPinsCollection_Empty(t *testing.T) {
	data, err := json.Marshal(PinsCollection(nil))
	require.NoError(t, err)
	fc := decodeCollection(t, data)

	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)
}

func TestPlacesCollection(t *testing.T) {
	places := []*model.Place{{Name: "Cork", Description: "Rebel city", Lat: 51.8985, Lng: -8.4756}}

	data, err := json.Marshal(PlacesCollection(places))
	require.NoError(t, err)
	fc := decodeCollection(t, data)

	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Cork", fc.Features[0].Properties["label"])
	assert.Equal(t, "Rebel city", fc.Features[0].Properties["subtitle"])
}
