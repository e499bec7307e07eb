// Package marcxml implements the MARC 21 XML ("slim") serialization.
package marcxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/roach88/marcq/internal/marc"
)

const (
	// Namespace is the MARC 21 slim namespace.
	Namespace = "http://www.loc.gov/MARC21/slim"

	xsiNamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = Namespace + " http://www.loc.gov/standards/marcxml/schema/MARC21slim.xsd"
)

// Codec is the MARCXML serialization.
type Codec struct{}

// CanParse reports whether data starts with an XML tag.
func (Codec) CanParse(data []byte) bool { return CanParse(data) }

// CanParseCollection reports whether data starts with an XML tag.
func (Codec) CanParseCollection(data []byte) bool { return CanParse(data) }

// Unmarshal parses the first record of a document.
func (Codec) Unmarshal(data []byte) (*marc.Record, marc.Diagnostics, error) { return Unmarshal(data) }

// Marshal serializes a record wrapped in a collection.
func (Codec) Marshal(rec *marc.Record) ([]byte, error) { return Marshal(rec) }

// CanParse reports whether the first non-whitespace byte is '<'.
func CanParse(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n\uFEFF")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// xmlSubfield, xmlField and xmlRecord mirror the slim schema for decoding.
type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type xmlField struct {
	XMLName   xml.Name
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Text      string        `xml:",chardata"`
	Subfields []xmlSubfield `xml:"subfield"`
}

type xmlRecord struct {
	Leader string     `xml:"leader"`
	Fields []xmlField `xml:",any"`
}

func (x *xmlRecord) toRecord() *marc.Record {
	rec := marc.NewRecord(x.Leader)
	for _, f := range x.Fields {
		switch f.XMLName.Local {
		case "controlfield":
			rec.Append(marc.NewControlField(f.Tag, f.Text))
		case "datafield":
			field := marc.NewDataField(f.Tag, f.Ind1, f.Ind2)
			for _, sf := range f.Subfields {
				field.Subfields = append(field.Subfields, marc.Subfield{Code: sf.Code, Value: sf.Value})
			}
			rec.Append(field)
		}
	}
	return rec
}

var (
	xmlDeclPrefix = []byte("<?xml version")
	declEnd       = []byte("?>")
	encodingAttr  = regexp.MustCompile(`\sencoding\s*=`)
)

// ensureDeclaration makes sure the document starts with an XML declaration
// that names its encoding.
func ensureDeclaration(data []byte) []byte {
	if len(data) >= len(xmlDeclPrefix) && bytes.EqualFold(data[:len(xmlDeclPrefix)], xmlDeclPrefix) {
		end := bytes.Index(data, declEnd)
		if end < 0 {
			return data
		}
		decl := data[:end]
		if encodingAttr.Match(decl) {
			return data
		}
		var out bytes.Buffer
		out.Grow(len(data) + 17)
		out.Write(decl)
		out.WriteString(` encoding="utf-8"`)
		out.Write(data[end:])
		return out.Bytes()
	}
	var out bytes.Buffer
	out.Grow(len(data) + 40)
	out.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n\n")
	out.Write(data)
	return out.Bytes()
}

// charsetReader decodes declared non-UTF-8 encodings.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	return dec
}

// prepare trims the document and makes its encoding explicit.
func prepare(data []byte) []byte {
	return ensureDeclaration(bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(data), utf8BOM)))
}

// Unmarshal parses a MARCXML document holding a record or a collection and
// returns its first record.
//
// Malformed XML yields a *SyntaxError and no record.
func Unmarshal(data []byte) (*marc.Record, marc.Diagnostics, error) {
	var diags marc.Diagnostics
	dec := newDecoder(bytes.NewReader(prepare(data)))

	var rec *marc.Record
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, newSyntaxError(dec, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if rec != nil {
				if err := dec.Skip(); err != nil {
					return nil, nil, newSyntaxError(dec, err)
				}
				continue
			}
			if depth == 0 && t.Name.Local == "collection" {
				depth++
				continue
			}
			if depth == 1 && t.Name.Local != "record" {
				if err := dec.Skip(); err != nil {
					return nil, nil, newSyntaxError(dec, err)
				}
				continue
			}
			var xr xmlRecord
			if err := dec.DecodeElement(&xr, &t); err != nil {
				return nil, nil, newSyntaxError(dec, err)
			}
			rec = xr.toRecord()
		case xml.EndElement:
			depth--
		}
	}

	if rec == nil {
		diags.Add(marc.SeverityWarning, "document contains no record element")
		rec = marc.NewRecord("")
	}
	return rec, diags, nil
}

// SplitCollection returns every record of a collection document,
// re-serialized as standalone MARCXML.
func SplitCollection(data []byte) ([][]byte, error) {
	dec := newDecoder(bytes.NewReader(prepare(data)))
	var records [][]byte
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, newSyntaxError(dec, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && t.Name.Local == "collection" {
				depth++
				continue
			}
			if t.Name.Local != "record" {
				if err := dec.Skip(); err != nil {
					return nil, newSyntaxError(dec, err)
				}
				continue
			}
			var xr xmlRecord
			if err := dec.DecodeElement(&xr, &t); err != nil {
				return nil, newSyntaxError(dec, err)
			}
			out, err := Marshal(xr.toRecord())
			if err != nil {
				return nil, err
			}
			records = append(records, out)
		case xml.EndElement:
			depth--
		}
	}
}

// Marshal serializes rec as a one-record collection.
//
// Subfields with empty values are omitted, and characters that are not
// allowed in XML 1.0 are stripped.
func Marshal(rec *marc.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	w := &tokenWriter{enc: enc}

	w.start("collection",
		attr("xmlns", Namespace),
		attr("xmlns:xsi", xsiNamespace),
		attr("xsi:schemaLocation", schemaLocation),
	)
	w.start("record")
	if rec.Leader() != "" {
		w.element("leader", rec.Leader())
	}
	for _, f := range rec.Fields() {
		if f.Control {
			w.element("controlfield", f.Value, attr("tag", f.Tag))
			continue
		}
		w.start("datafield", attr("tag", f.Tag), attr("ind1", f.Ind1), attr("ind2", f.Ind2))
		for _, sf := range f.Subfields {
			if sf.Value == "" {
				continue
			}
			w.element("subfield", sf.Value, attr("code", sf.Code))
		}
		w.end("datafield")
	}
	w.end("record")
	w.end("collection")

	if w.err == nil {
		w.err = enc.Flush()
	}
	if w.err != nil {
		return nil, fmt.Errorf("marshal marcxml: %w", w.err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// tokenWriter streams tokens and keeps the first error.
type tokenWriter struct {
	enc *xml.Encoder
	err error
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: stripInvalid(value)}
}

func (w *tokenWriter) emit(tok xml.Token) {
	if w.err == nil {
		w.err = w.enc.EncodeToken(tok)
	}
}

func (w *tokenWriter) start(name string, attrs ...xml.Attr) {
	w.emit(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (w *tokenWriter) end(name string) {
	w.emit(xml.EndElement{Name: xml.Name{Local: name}})
}

func (w *tokenWriter) element(name, text string, attrs ...xml.Attr) {
	w.start(name, attrs...)
	if text = stripInvalid(text); text != "" {
		w.emit(xml.CharData(text))
	}
	w.end(name)
}

// stripInvalid removes characters outside the XML 1.0 Char production.
func stripInvalid(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0x9 || r == 0xA || r == 0xD:
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		default:
			return -1
		}
	}, s)
}
