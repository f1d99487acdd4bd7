package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestMapProvider(t *testing.T) {
	p := MapProvider{GoogleMapsKey: "k1", "blank": "  "}

	v, ok := p.Lookup(GoogleMapsKey)
	assert.True(t, ok)
	assert.Equal(t, "k1", v)

	_, ok = p.Lookup("blank")
	assert.False(t, ok)
	_, ok = p.Lookup("missing")
	assert.False(t, ok)
}

func TestViperProvider(t *testing.T) {
	v := viper.New()
	v.Set(GoogleMapsKey, " k2 ")
	v.Set("empty", "")
	p := NewViperProvider(v)

	got, ok := p.Lookup(GoogleMapsKey)
	assert.True(t, ok)
	assert.Equal(t, "k2", got)

	_, ok = p.Lookup("empty")
	assert.False(t, ok)
	_, ok = p.Lookup("missing")
	assert.False(t, ok)
}

func TestApplyCredentials(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyCredentials(MapProvider{GoogleMapsKey: "from-platform"})
	assert.Equal(t, "from-platform", cfg.StreetView.APIKey)

	cfg.ApplyCredentials(MapProvider{GoogleMapsKey: "other"})
	assert.Equal(t, "from-platform", cfg.StreetView.APIKey, "configured key is kept")

	empty := &Config{}
	empty.ApplyCredentials(MapProvider{})
	assert.Empty(t, empty.StreetView.APIKey)
}
