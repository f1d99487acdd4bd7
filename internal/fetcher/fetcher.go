// Package fetcher downloads remote feed documents and decodes them as streams.
package fetcher

import (
	"context"
	"fmt"
	"io"

	"github.com/sells-group/mapinfo/internal/resilience"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes the body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return resilience.IsTransientStatus(e.StatusCode)
}
