package model

import (
	"math"
	"strconv"
	"strings"
	"sync"
)

// UntitledName is used when a feed placemark has no usable name.
const UntitledName = "Untitled"

// CoordinateTolerance is the per-axis tolerance, in degrees, used to match a
// clicked marker back to its Place. Markers are recreated on every refresh so
// identity cannot be used for click correlation.
const CoordinateTolerance = 1e-6

// representationSlack absorbs float64 rounding when decimal input such as
// 53.400001 is compared against 53.4 at exactly the tolerance.
const representationSlack = 1e-12

// LatLng is a WGS84 position in degrees.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether the position is inside the WGS84 range.
func (ll LatLng) Valid() bool {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) {
		return false
	}
	return ll.Lat >= -90 && ll.Lat <= 90 && ll.Lng >= -180 && ll.Lng <= 180
}

// String formats the position as "lat,lng" using invariant formatting.
func (ll LatLng) String() string {
	return formatCoord(ll.Lat) + "," + formatCoord(ll.Lng)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Place is a named feed location. Core fields are set once at construction;
// only the street view reference changes afterwards. Places are shared as
// *Place and compared by pointer.
type Place struct {
	Name             string  `json:"name" yaml:"name"`
	RawDescription   string  `json:"raw_description" yaml:"raw_description"`
	CleanDescription string  `json:"clean_description" yaml:"clean_description"`
	Description      string  `json:"description" yaml:"description"`
	InstagramURL     string  `json:"instagram_url,omitempty" yaml:"instagram_url,omitempty"`
	TikTokURL        string  `json:"tiktok_url,omitempty" yaml:"tiktok_url,omitempty"`
	Lat              float64 `json:"lat" yaml:"lat"`
	Lng              float64 `json:"lng" yaml:"lng"`

	mu         sync.RWMutex
	streetView string
}

// StreetViewImageURL returns the resolved street view image, or "".
func (p *Place) StreetViewImageURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.streetView
}

// SetStreetViewImageURL replaces the street view reference in place.
func (p *Place) SetStreetViewImageURL(url string) {
	p.mu.Lock()
	p.streetView = url
	p.mu.Unlock()
}

// HasStreetView reports whether a street view image has been resolved.
func (p *Place) HasStreetView() bool { return notBlank(p.StreetViewImageURL()) }

// HasInstagram reports whether an Instagram link was found in the feed text.
func (p *Place) HasInstagram() bool { return notBlank(p.InstagramURL) }

// HasTikTok reports whether a TikTok link was found in the feed text.
func (p *Place) HasTikTok() bool { return notBlank(p.TikTokURL) }

// HasDescription reports whether the user-facing summary is set.
func (p *Place) HasDescription() bool { return notBlank(p.Description) }

// Position returns the place coordinates.
func (p *Place) Position() LatLng {
	return LatLng{Lat: p.Lat, Lng: p.Lng}
}

// MatchesCoordinate reports whether (lat, lng) lies within tol degrees of the
// place on both axes.
func (p *Place) MatchesCoordinate(lat, lng, tol float64) bool {
	limit := tol + representationSlack
	return math.Abs(p.Lat-lat) <= limit && math.Abs(p.Lng-lng) <= limit
}

// GoogleMapsURL returns a Google Maps search link for the place.
func (p *Place) GoogleMapsURL() string {
	return "https://www.google.com/maps/search/?api=1&query=" + p.Position().String()
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
