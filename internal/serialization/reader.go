package serialization

import "github.com/roach88/marcq/internal/marc"

// Reader holds a parsed record together with the serialization it came
// from.
type Reader struct {
	*marc.Record
	source []byte
	format Format
	diags  marc.Diagnostics
}

// NewReader parses data in any recognized format.
func NewReader(data []byte) (*Reader, error) {
	rec, f, diags, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &Reader{Record: rec, source: data, format: f, diags: diags}, nil
}

// Format returns the detected source format.
func (r *Reader) Format() Format { return r.format }

// Diagnostics returns the problems reported while parsing.
func (r *Reader) Diagnostics() marc.Diagnostics { return r.diags }

// ToFormat serializes the record. Asking for the source format returns the
// original bytes untouched.
func (r *Reader) ToFormat(f Format) ([]byte, error) {
	if f == r.format {
		return r.source, nil
	}
	return Marshal(r.Record, f)
}
