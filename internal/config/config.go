package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DriveDownloadBase is the direct download endpoint for a shared Drive file.
const DriveDownloadBase = "https://drive.google.com/uc?export=download&id="

// Config holds the full application configuration.
type Config struct {
	App        AppConfig        `yaml:"app" mapstructure:"app"`
	Feed       FeedConfig       `yaml:"feed" mapstructure:"feed"`
	Map        MapConfig        `yaml:"map" mapstructure:"map"`
	Viewport   ViewportConfig   `yaml:"viewport" mapstructure:"viewport"`
	StreetView StreetViewConfig `yaml:"streetview" mapstructure:"streetview"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AppConfig holds display settings.
type AppConfig struct {
	Title string `yaml:"title" mapstructure:"title"`
}

// FeedConfig locates the KML feed.
type FeedConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	DriveFileID string `yaml:"drive_file_id" mapstructure:"drive_file_id"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ResolveURL returns the explicit feed URL, or the Drive download URL when
// only a file ID is configured.
func (f FeedConfig) ResolveURL() string {
	if u := strings.TrimSpace(f.URL); u != "" {
		return u
	}
	if id := strings.TrimSpace(f.DriveFileID); id != "" {
		return DriveDownloadBase + url.QueryEscape(id)
	}
	return ""
}

// Timeout is zero when the platform default applies.
func (f FeedConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// MapConfig positions and restricts the map camera.
type MapConfig struct {
	CenterLat float64      `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLng float64      `yaml:"center_lng" mapstructure:"center_lng"`
	RadiusKM  float64      `yaml:"radius_km" mapstructure:"radius_km"`
	Bounds    BoundsConfig `yaml:"bounds" mapstructure:"bounds"`
	MinZoom   int          `yaml:"min_zoom" mapstructure:"min_zoom"`
}

// BoundsConfig is the panning restriction sent to map clients.
type BoundsConfig struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MinLng float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MaxLng float64 `yaml:"max_lng" mapstructure:"max_lng"`
}

// ViewportConfig tunes pin recomputation.
type ViewportConfig struct {
	DebounceMS int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	MaxPins    int `yaml:"max_pins" mapstructure:"max_pins"`
}

// StreetViewConfig configures street view enrichment. An empty APIKey
// disables it.
type StreetViewConfig struct {
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	CacheTTLMins     int     `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int     `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// ServerConfig configures the map server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(".env"); err != nil && !isNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MAPINFO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(GoogleMapsKey, "GOOGLE_MAPS_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind credentials")
	}

	// Defaults
	v.SetDefault("app.title", "Ireland Map")
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.drive_file_id", "")
	v.SetDefault("feed.user_agent", "mapinfo/1.0")
	v.SetDefault("feed.timeout_secs", 0)
	v.SetDefault("map.center_lat", 53.4)
	v.SetDefault("map.center_lng", -8.0)
	v.SetDefault("map.radius_km", 250)
	v.SetDefault("map.bounds.min_lat", 51.30)
	v.SetDefault("map.bounds.min_lng", -10.50)
	v.SetDefault("map.bounds.max_lat", 55.50)
	v.SetDefault("map.bounds.max_lng", -5.40)
	v.SetDefault("map.min_zoom", 6)
	v.SetDefault("viewport.debounce_ms", 200)
	v.SetDefault("viewport.max_pins", 35)
	v.SetDefault("streetview.api_key", "")
	v.SetDefault("streetview.base_url", "https://maps.googleapis.com")
	v.SetDefault("streetview.cache_ttl_mins", 60)
	v.SetDefault("streetview.timeout_secs", 10)
	v.SetDefault("streetview.rate_limit", 10)
	v.SetDefault("streetview.failure_threshold", 5)
	v.SetDefault("streetview.cooldown_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.ApplyCredentials(NewViperProvider(v))

	return &cfg, nil
}

// Validate checks the settings a command depends on.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return eris.Errorf("config: server.port must be > 0 and <= 65535, got %d", c.Server.Port)
		}
		if err := c.validateMap(); err != nil {
			return err
		}
		if c.Viewport.MaxPins <= 0 {
			return eris.Errorf("config: viewport.max_pins must be > 0, got %d", c.Viewport.MaxPins)
		}
		if c.Viewport.DebounceMS < 0 {
			return eris.Errorf("config: viewport.debounce_ms must be >= 0, got %d", c.Viewport.DebounceMS)
		}
		if c.StreetView.CacheTTLMins < 0 || c.StreetView.TimeoutSecs < 0 {
			return eris.New("config: streetview durations must be >= 0")
		}
	case "inspect":
		if c.Feed.TimeoutSecs < 0 {
			return eris.Errorf("config: feed.timeout_secs must be >= 0, got %d", c.Feed.TimeoutSecs)
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	return nil
}

func (c *Config) validateMap() error {
	m := c.Map
	if m.CenterLat < -90 || m.CenterLat > 90 || m.CenterLng < -180 || m.CenterLng > 180 {
		return eris.Errorf("config: map center (%v, %v) out of range", m.CenterLat, m.CenterLng)
	}
	if m.RadiusKM <= 0 {
		return eris.Errorf("config: map.radius_km must be > 0, got %v", m.RadiusKM)
	}
	b := m.Bounds
	if b != (BoundsConfig{}) && (b.MinLat >= b.MaxLat || b.MinLng >= b.MaxLng) {
		return eris.New("config: map.bounds min must be below max")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
