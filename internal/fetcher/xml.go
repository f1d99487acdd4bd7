package fetcher

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// ErrNoRootElement is reported when the stream holds no XML element at all.
var ErrNoRootElement = eris.New("xml: no root element")

// StreamXML walks r and decodes each element whose local name is local into
// a T, wherever it sits in the tree. Namespaces are ignored, so a Placemark
// nested in KML Folders is found the same as one directly under Document.
//
// Items arrive in document order. The error channel carries at most one
// error and both channels close when the walk ends.
func StreamXML[T any](ctx context.Context, r io.Reader, local string) (<-chan T, <-chan error) {
	items := make(chan T, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)
		if err := walkXML(ctx, r, local, items); err != nil {
			errs <- err
		}
	}()

	return items, errs
}

func walkXML[T any](ctx context.Context, r io.Reader, local string, items chan<- T) error {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	seen := false
	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "xml: context cancelled")
		}

		tok, err := dec.Token()
		switch {
		case err == io.EOF && !seen:
			return ErrNoRootElement
		case err == io.EOF:
			return nil
		case err != nil:
			return eris.Wrap(err, "xml: read token")
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		seen = true
		if start.Name.Local != local {
			continue
		}

		var item T
		if err := dec.DecodeElement(&item, &start); err != nil {
			return eris.Wrapf(err, "xml: decode %s", local)
		}
		select {
		case items <- item:
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "xml: context cancelled")
		}
	}
}

// charsetReader handles feeds that declare a non-UTF-8 encoding, which
// exports from older mapping tools often do.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}
