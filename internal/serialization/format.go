// Package serialization sniffs MARC serializations and dispatches to the
// matching codec.
package serialization

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/marcq/internal/iso2709"
	"github.com/roach88/marcq/internal/marc"
	"github.com/roach88/marcq/internal/marcjson"
	"github.com/roach88/marcq/internal/marcxml"
)

// ErrUnrecognizedFormat is returned when no codec accepts the input.
var ErrUnrecognizedFormat = errors.New("unrecognized record format")

// Format identifies a serialization.
type Format int

const (
	Unknown Format = iota
	ISO2709
	MARCXML
	MARCJSON
)

func (f Format) String() string {
	switch f {
	case ISO2709:
		return "iso2709"
	case MARCXML:
		return "marcxml"
	case MARCJSON:
		return "marcjson"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name or common alias to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "iso2709", "marc", "mrc", "binary":
		return ISO2709, nil
	case "marcxml", "xml":
		return MARCXML, nil
	case "marcjson", "json", "marc-in-json":
		return MARCJSON, nil
	default:
		return Unknown, fmt.Errorf("%w: %q", ErrUnrecognizedFormat, name)
	}
}

// Codec is the shape shared by every serialization.
type Codec interface {
	CanParse(data []byte) bool
	CanParseCollection(data []byte) bool
	Unmarshal(data []byte) (*marc.Record, marc.Diagnostics, error)
	Marshal(rec *marc.Record) ([]byte, error)
}

type registered struct {
	format Format
	codec  Codec
}

// codecs are tried in preference order.
var codecs = []registered{
	{ISO2709, iso2709.Codec{}},
	{MARCXML, marcxml.Codec{}},
	{MARCJSON, marcjson.Codec{}},
}

var utf8BOM = []byte("\xef\xbb\xbf")

// CodecFor returns the codec of a format.
func CodecFor(f Format) (Codec, error) {
	for _, r := range codecs {
		if r.format == f {
			return r.codec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, f)
}

// Detect returns the format of a single record, or Unknown.
func Detect(data []byte) Format {
	data = bytes.TrimPrefix(data, utf8BOM)
	for _, r := range codecs {
		if r.codec.CanParse(data) {
			return r.format
		}
	}
	return Unknown
}

// DetectCollection returns the format of a collection, or Unknown.
func DetectCollection(data []byte) Format {
	data = bytes.TrimPrefix(data, utf8BOM)
	for _, r := range codecs {
		if r.codec.CanParseCollection(data) {
			return r.format
		}
	}
	return Unknown
}

// Parse detects the format of data and decodes it.
func Parse(data []byte) (*marc.Record, Format, marc.Diagnostics, error) {
	f := Detect(data)
	if f == Unknown {
		return nil, Unknown, nil, ErrUnrecognizedFormat
	}
	codec, err := CodecFor(f)
	if err != nil {
		return nil, f, nil, err
	}
	rec, diags, err := codec.Unmarshal(bytes.TrimPrefix(data, utf8BOM))
	if err != nil {
		return nil, f, diags, err
	}
	return rec, f, diags, nil
}

// Marshal serializes rec in the given format.
func Marshal(rec *marc.Record, f Format) ([]byte, error) {
	codec, err := CodecFor(f)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(rec)
}

// Convert re-encodes a record of any recognized format.
func Convert(data []byte, to Format) ([]byte, marc.Diagnostics, error) {
	rec, _, diags, err := Parse(data)
	if err != nil {
		return nil, diags, err
	}
	out, err := Marshal(rec, to)
	return out, diags, err
}
