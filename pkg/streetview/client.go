// Package streetview resolves street-level imagery for a coordinate using the
// Google Street View Static API.
package streetview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://maps.googleapis.com"

// Image request parameters.
const (
	ImageSize    = "640x300"
	FieldOfView  = 80
	Pitch        = 0
	SearchRadius = 50
	Source       = "outdoor"
)

// ErrUnavailable means the service has no imagery for the location, or
// refused to say.
var ErrUnavailable = eris.New("streetview: no imagery available")

// Client looks up street view imagery.
type Client interface {
	// Lookup returns an image URL for (lat, lng), or ErrUnavailable.
	Lookup(ctx context.Context, lat, lng float64) (string, error)
	// Metadata returns the raw metadata response for (lat, lng).
	Metadata(ctx context.Context, lat, lng float64) (*Metadata, error)
}

// Metadata is the Street View metadata response.
type Metadata struct {
	Status    string    `json:"status"`
	PanoID    string    `json:"pano_id,omitempty"`
	Date      string    `json:"date,omitempty"`
	Copyright string    `json:"copyright,omitempty"`
	Location  *Location `json:"location,omitempty"`
}

// Location is the panorama position reported by the service.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("streetview: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the failure is on the server side.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Street View client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func location(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

func (c *httpClient) Metadata(ctx context.Context, lat, lng float64) (*Metadata, error) {
	endpoint := fmt.Sprintf("%s/maps/api/streetview/metadata?location=%s&radius=%d&source=%s&key=%s",
		c.baseURL, location(lat, lng), SearchRadius, Source, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "streetview: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "streetview: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "streetview: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var md Metadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, eris.Wrap(err, "streetview: unmarshal response")
	}
	return &md, nil
}

func (c *httpClient) Lookup(ctx context.Context, lat, lng float64) (string, error) {
	md, err := c.Metadata(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	if md.Status != "OK" {
		return "", eris.Wrapf(ErrUnavailable, "status %s", md.Status)
	}
	return c.ImageURL(lat, lng), nil
}

// ImageURL builds the static image URL for (lat, lng).
func (c *httpClient) ImageURL(lat, lng float64) string {
	return fmt.Sprintf("%s/maps/api/streetview?size=%s&location=%s&fov=%d&pitch=%d&source=%s&key=%s",
		c.baseURL, ImageSize, location(lat, lng), FieldOfView, Pitch, Source, url.QueryEscape(c.apiKey))
}
