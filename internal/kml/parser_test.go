package kml

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mapinfo/internal/model"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Ireland</name>
    <Folder>
      <Placemark>
        <name>Cliffs of Moher</name>
        <description><![CDATA[Sea cliffs<br>https://www.instagram.com/cliffsofmoher <b>open daily</b>]]></description>
        <Point><coordinates>-9.4309,52.9715,0</coordinates></Point>
      </Placemark>
      <Placemark>
        <name>   </name>
        <Point>
          <coordinates>
            -6.2603,53.3498
          </coordinates>
        </Point>
      </Placemark>
      <Placemark>
        <name>No point</name>
        <LineString><coordinates>-8,53 -7,54</coordinates></LineString>
      </Placemark>
      <Placemark>
        <name>Bad numbers</name>
        <Point><coordinates>west,north</coordinates></Point>
      </Placemark>
      <Placemark>
        <name>Blank coordinates</name>
        <Point><coordinates>  </coordinates></Point>
      </Placemark>
      <Placemark>
        <name>Out of range</name>
        <Point><coordinates>-8.0,95.0</coordinates></Point>
      </Placemark>
      <Placemark>
        <name>Multi</name>
        <MultiGeometry>
          <Point><coordinates>-8.5,51.9</coordinates></Point>
          <Point><coordinates>-8.6,52.0</coordinates></Point>
        </MultiGeometry>
      </Placemark>
    </Folder>
  </Document>
</kml>`

func TestParse(t *testing.T) {
	places, stats, err := Parse(context.Background(), strings.NewReader(sampleFeed))
	require.NoError(t, err)

	require.Len(t, places, 3)
	assert.Equal(t, Stats{Placemarks: 7, Parsed: 3, Skipped: 4}, stats)

	cliffs := places[0]
	assert.Equal(t, "Cliffs of Moher", cliffs.Name)
	assert.InDelta(t, 52.9715, cliffs.Lat, 1e-9)
	assert.InDelta(t, -9.4309, cliffs.Lng, 1e-9)
	assert.Equal(t, "Sea cliffs<br>https://www.instagram.com/cliffsofmoher <b>open daily</b>", cliffs.RawDescription)
	assert.Equal(t, "Sea cliffs open daily", cliffs.CleanDescription)
	assert.Equal(t, "https://www.instagram.com/cliffsofmoher", cliffs.InstagramURL)
	assert.Empty(t, cliffs.TikTokURL)
	assert.Empty(t, cliffs.Description, "description is never derived from the feed")
	assert.False(t, cliffs.HasStreetView())

	dublin := places[1]
	assert.Equal(t, model.UntitledName, dublin.Name)
	assert.InDelta(t, 53.3498, dublin.Lat, 1e-9)
	assert.InDelta(t, -6.2603, dublin.Lng, 1e-9)

	multi := places[2]
	assert.Equal(t, "Multi", multi.Name)
	assert.InDelta(t, 51.9, multi.Lat, 1e-9, "first Point wins")
	assert.InDelta(t, -8.5, multi.Lng, 1e-9)
}

func TestParse_SkipsPlacemarkWithoutPoint(t *testing.T) {
	feed := `<kml><Placemark><name>A</name></Placemark></kml>`

	places, stats, err := Parse(context.Background(), strings.NewReader(feed))
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.Equal(t, 1, stats.Skipped)
}

func TestParse_SkipsNonNumericCoordinates(t *testing.T) {
	feed := `<kml><Placemark><name>A</name><Point><coordinates>1.0,abc</coordinates></Point></Placemark></kml>`

	places, _, err := Parse(context.Background(), strings.NewReader(feed))
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestParse_BlankNameIsUntitled(t *testing.T) {
	feed := `<kml><Placemark><name></name><Point><coordinates>-8,53</coordinates></Point></Placemark>
<Placemark><Point><coordinates>-7,52</coordinates></Point></Placemark></kml>`

	places, _, err := Parse(context.Background(), strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, "Untitled", places[0].Name)
	assert.Equal(t, "Untitled", places[1].Name)
}

func TestParse_NestedNameIsIgnored(t *testing.T) {
	feed := `<kml><Placemark><ExtendedData><name>inner</name></ExtendedData>
<Point><coordinates>-8,53</coordinates></Point></Placemark></kml>`

	places, _, err := Parse(context.Background(), strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Untitled", places[0].Name)
}

func TestParse_MalformedXML(t *testing.T) {
	tests := []struct {
		name string
		feed string
	}{
		{"truncated", `<kml><Placemark><name>A</name><Point><coordinates>-8,53`},
		{"mismatched tags", `<kml><Placemark></kml>`},
		{"empty", ``},
		{"not xml", `this is not a feed`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			places, _, err := Parse(context.Background(), strings.NewReader(tt.feed))
			require.Error(t, err)
			assert.Nil(t, places)

			var pe *ParseError
			assert.True(t, errors.As(err, &pe), "expected *ParseError, got %T", err)
		})
	}
}

func TestParse_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Parse(ctx, strings.NewReader(sampleFeed))
	require.Error(t, err)

	var pe *ParseError
	assert.False(t, errors.As(err, &pe), "cancellation is not a parse error")
}
