package marcxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/marcq/internal/marc"
)

// CollectionReader streams records out of a MARCXML collection without
// loading the whole document.
//
// Only /collection/record elements in the MARC 21 slim namespace (or no
// namespace) are returned. Anything else at record level is skipped and
// reported through Diagnostics. A document whose root is a single record is
// returned as a one-record collection.
type CollectionReader struct {
	open   marc.Opener
	rc     io.ReadCloser
	dec    *xml.Decoder
	path   []string
	diags  marc.Diagnostics
	closed bool
}

// NewCollectionReader opens the collection through open.
func NewCollectionReader(open marc.Opener) (*CollectionReader, error) {
	r := &CollectionReader{open: open}
	if err := r.reopen(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CollectionReader) reopen() error {
	rc, err := r.open()
	if err != nil {
		return fmt.Errorf("open marcxml collection: %w", err)
	}
	r.rc = rc
	r.dec = newDecoder(rc)
	r.path = r.path[:0]
	r.diags = nil
	r.closed = false
	return nil
}

// Diagnostics returns the notices collected so far.
func (r *CollectionReader) Diagnostics() marc.Diagnostics {
	return r.diags
}

// Next returns the next record serialized as standalone MARCXML, or io.EOF.
func (r *CollectionReader) Next() ([]byte, error) {
	if r.closed {
		return nil, errors.New("marcxml: collection reader closed")
	}
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, newSyntaxError(r.dec, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth := len(r.path)
			if depth == 0 && t.Name.Local == "record" {
				return r.decodeRecord(t)
			}
			r.path = append(r.path, t.Name.Local)
			if depth != 1 {
				continue
			}

			elementPath := "/" + strings.Join(r.path, "/")
			switch {
			case elementPath != "/collection/record":
				r.diags.Add(marc.SeverityNotice, "Unknown element %q", elementPath)
			case !inNamespace(t.Name.Space):
				r.diags.Add(marc.SeverityNotice, "Unknown namespace %q for element %q", t.Name.Space, elementPath)
			default:
				r.path = r.path[:depth]
				return r.decodeRecord(t)
			}
			r.path = r.path[:depth]
			if err := r.dec.Skip(); err != nil {
				return nil, newSyntaxError(r.dec, err)
			}
		case xml.EndElement:
			if len(r.path) > 0 {
				r.path = r.path[:len(r.path)-1]
			}
		}
	}
}

func (r *CollectionReader) decodeRecord(start xml.StartElement) ([]byte, error) {
	var xr xmlRecord
	if err := r.dec.DecodeElement(&xr, &start); err != nil {
		return nil, newSyntaxError(r.dec, err)
	}
	return Marshal(xr.toRecord())
}

func inNamespace(space string) bool {
	return space == "" || space == Namespace
}

// Rewind reopens the collection from the start.
func (r *CollectionReader) Rewind() error {
	if err := r.Close(); err != nil {
		return err
	}
	return r.reopen()
}

// Close releases the underlying stream.
func (r *CollectionReader) Close() error {
	if r.closed || r.rc == nil {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}
