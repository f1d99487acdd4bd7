package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// GoogleMapsKey names the platform resource holding the Google Maps
// credential. It is also read from GOOGLE_MAPS_API_KEY.
const GoogleMapsKey = "credentials.google_maps_api_key"

// Provider looks up platform resources such as API credentials.
type Provider interface {
	Lookup(key string) (string, bool)
}

// ViperProvider resolves resources from a viper instance, so they may come
// from the config file, the environment or .env.
type ViperProvider struct {
	v *viper.Viper
}

// NewViperProvider wraps v.
func NewViperProvider(v *viper.Viper) *ViperProvider {
	return &ViperProvider{v: v}
}

// Lookup returns the non-blank value set for key.
func (p *ViperProvider) Lookup(key string) (string, bool) {
	if !p.v.IsSet(key) {
		return "", false
	}
	s := strings.TrimSpace(p.v.GetString(key))
	return s, s != ""
}

// MapProvider is a fixed set of resources.
type MapProvider map[string]string

// Lookup returns the non-blank value stored for key.
func (m MapProvider) Lookup(key string) (string, bool) {
	s := strings.TrimSpace(m[key])
	return s, s != ""
}

// ApplyCredentials fills credentials that the config left empty from p.
func (c *Config) ApplyCredentials(p Provider) {
	if strings.TrimSpace(c.StreetView.APIKey) != "" {
		return
	}
	if key, ok := p.Lookup(GoogleMapsKey); ok {
		c.StreetView.APIKey = key
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
