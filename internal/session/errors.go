package session

import "github.com/sells-group/mapinfo/internal/kml"

// FeedAlertTitle is the alert title for feed-level failures.
const FeedAlertTitle = "KML Download Error"

// FeedFetchError reports a failed feed download: a transport error or a
// non-2xx response.
type FeedFetchError struct {
	URL string
	Err error
}

func (e *FeedFetchError) Error() string {
	return "feed fetch failed: " + e.Err.Error()
}

func (e *FeedFetchError) Unwrap() error { return e.Err }

// FeedParseError is returned when the feed body is not well-formed XML.
type FeedParseError = kml.ParseError

// LinkOpenError reports that an outbound link could not be opened.
type LinkOpenError struct {
	Target LinkTarget
	URL    string
	Err    error
}

func (e *LinkOpenError) Error() string {
	return "open " + e.Target.String() + " link: " + e.Err.Error()
}

func (e *LinkOpenError) Unwrap() error { return e.Err }
