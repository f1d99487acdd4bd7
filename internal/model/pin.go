package model

// Pin is what the map collaborator renders for one visible Place.
type Pin struct {
	Label    string  `json:"label"`
	Subtitle string  `json:"subtitle"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// PinFor builds the marker for a place.
func PinFor(p *Place) Pin {
	return Pin{
		Label:    p.Name,
		Subtitle: p.Description,
		Lat:      p.Lat,
		Lng:      p.Lng,
	}
}
