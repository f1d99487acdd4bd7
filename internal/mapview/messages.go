package mapview

import (
	"encoding/json"

	"github.com/sells-group/mapinfo/internal/model"
	"github.com/sells-group/mapinfo/internal/viewport"
)

// Outbound message types.
const (
	TypeCamera  = "camera"
	TypePins    = "pins"
	TypePlace   = "place"
	TypeOverlay = "overlay"
	TypeAlert   = "alert"
	TypeOpenURL = "open_url"
)

// Inbound message types.
const (
	TypeRegion      = "region"
	TypePinClick    = "pin_click"
	TypeMapClick    = "map_click"
	TypeHideOverlay = "hide_overlay"
	TypeOpenLink    = "open_link"
)

// Envelope wraps every message on the socket.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CameraMessage positions the map and restricts panning.
type CameraMessage struct {
	Center   model.LatLng     `json:"center"`
	RadiusKM float64          `json:"radius_km"`
	Bounds   *viewport.Bounds `json:"bounds,omitempty"`
	MinZoom  int              `json:"min_zoom,omitempty"`
}

// PlaceMessage is the detail overlay content.
type PlaceMessage struct {
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	CleanDescription   string  `json:"clean_description"`
	InstagramURL       string  `json:"instagram_url,omitempty"`
	TikTokURL          string  `json:"tiktok_url,omitempty"`
	StreetViewImageURL string  `json:"street_view_image_url,omitempty"`
	GoogleMapsURL      string  `json:"google_maps_url"`
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
}

// NewPlaceMessage snapshots p for the overlay.
func NewPlaceMessage(p *model.Place) PlaceMessage {
	return PlaceMessage{
		Name:               p.Name,
		Description:        p.Description,
		CleanDescription:   p.CleanDescription,
		InstagramURL:       p.InstagramURL,
		TikTokURL:          p.TikTokURL,
		StreetViewImageURL: p.StreetViewImageURL(),
		GoogleMapsURL:      p.GoogleMapsURL(),
		Lat:                p.Lat,
		Lng:                p.Lng,
	}
}

// OverlayMessage shows or hides the detail overlay.
type OverlayMessage struct {
	Visible bool `json:"visible"`
}

// AlertMessage is a dismissible notice.
type AlertMessage struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// OpenURLMessage asks the client to open a URL.
type OpenURLMessage struct {
	URL string `json:"url"`
}

// PinClickMessage reports a marker click.
type PinClickMessage struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OpenLinkMessage asks for a link of the selected place.
type OpenLinkMessage struct {
	Target string `json:"target"`
}

func encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}
