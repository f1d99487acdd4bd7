// Package kml turns a KML feed into places and scrapes social links out of
// placemark descriptions.
package kml

import (
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mapinfo/internal/fetcher"
	"github.com/sells-group/mapinfo/internal/model"
)

// ParseError reports a feed that is not well-formed XML.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "kml: malformed feed: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Stats counts what a parse produced.
type Stats struct {
	Placemarks int `json:"placemarks"`
	Parsed     int `json:"parsed"`
	Skipped    int `json:"skipped"`
}

// placemark holds the raw text of the fields we read from one Placemark.
type placemark struct {
	Name        string
	Description string
	Coordinates string
}

// UnmarshalXML walks the placemark subtree. name and description are read
// from direct children; coordinates from the first coordinates element whose
// parent is a Point, at any depth.
func (p *placemark) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var (
		path               []string
		name, desc, coords strings.Builder
		target             *strings.Builder
		captureDepth       int
		seenName, seenDesc bool
		seenCoords         bool
	)

	for {
		tok, err := d.Token()
		if err != nil {
			return eris.Wrap(err, "kml: read placemark")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			path = append(path, t.Name.Local)
			depth := len(path)
			if target != nil {
				continue
			}
			switch {
			case depth == 1 && t.Name.Local == "name" && !seenName:
				seenName, target = true, &name
			case depth == 1 && t.Name.Local == "description" && !seenDesc:
				seenDesc, target = true, &desc
			case depth >= 2 && t.Name.Local == "coordinates" && path[depth-2] == "Point" && !seenCoords:
				seenCoords, target = true, &coords
			}
			if target != nil {
				captureDepth = depth
			}

		case xml.EndElement:
			if len(path) == 0 {
				p.Name = name.String()
				p.Description = desc.String()
				p.Coordinates = coords.String()
				return nil
			}
			if target != nil && len(path) == captureDepth {
				target = nil
			}
			path = path[:len(path)-1]

		case xml.CharData:
			if target != nil {
				target.Write(t)
			}
		}
	}
}

// toPlace builds the Place for a placemark, or returns a skip reason.
func (p placemark) toPlace() (*model.Place, string) {
	raw := strings.TrimSpace(p.Coordinates)
	if raw == "" {
		return nil, "missing coordinates"
	}

	parts := strings.Split(raw, ",")
	if len(parts) < 2 {
		return nil, "incomplete coordinates"
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, "unparseable longitude"
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, "unparseable latitude"
	}
	if !(model.LatLng{Lat: lat, Lng: lng}).Valid() {
		return nil, "coordinates out of range"
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = model.UntitledName
	}

	links := ExtractLinks(p.Description)

	return &model.Place{
		Name:             name,
		RawDescription:   p.Description,
		CleanDescription: links.CleanDescription,
		InstagramURL:     links.InstagramURL,
		TikTokURL:        links.TikTokURL,
		Lat:              lat,
		Lng:              lng,
	}, ""
}

// Parse reads a KML document and returns its point placemarks as places, in
// document order. Placemarks without usable Point coordinates are skipped.
// A document that is not well-formed XML yields a *ParseError and no places.
func Parse(ctx context.Context, r io.Reader) ([]*model.Place, Stats, error) {
	itemCh, errCh := fetcher.StreamXML[placemark](ctx, r, "Placemark")

	var (
		places []*model.Place
		stats  Stats
	)
	for pm := range itemCh {
		stats.Placemarks++
		place, reason := pm.toPlace()
		if place == nil {
			stats.Skipped++
			zap.L().Debug("kml: skipping placemark",
				zap.String("name", pm.Name),
				zap.String("reason", reason),
			)
			continue
		}
		places = append(places, place)
	}
	stats.Parsed = len(places)

	if err := <-errCh; err != nil {
		if ctx.Err() != nil {
			return nil, stats, eris.Wrap(ctx.Err(), "kml: parse cancelled")
		}
		return nil, stats, &ParseError{Err: err}
	}

	zap.L().Info("kml: feed parsed",
		zap.Int("placemarks", stats.Placemarks),
		zap.Int("parsed", stats.Parsed),
		zap.Int("skipped", stats.Skipped),
	)
	return places, stats, nil
}
