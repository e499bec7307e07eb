// Package marcjson implements the MARC-in-JSON serialization:
//
//	{"leader": "...", "fields": [{"001": "..."}, {"245": {"ind1": "1", "ind2": "0", "subfields": [{"a": "..."}]}}]}
//
// Every fields entry is a single-key object so that field order and repeated
// tags survive.
package marcjson

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/marcq/internal/marc"
)

// api writes unescaped Unicode and leaves <, > and & alone.
var api = jsoniter.Config{
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// ErrNotObject is returned when a document is not a JSON object.
var ErrNotObject = errors.New("marcjson: document is not a JSON object")

// Codec is the MARC-in-JSON serialization.
type Codec struct{}

// CanParse reports whether data starts with '{'.
func (Codec) CanParse(data []byte) bool { return CanParse(data) }

// CanParseCollection reports whether data starts with '['.
func (Codec) CanParseCollection(data []byte) bool { return CanParseCollection(data) }

// Unmarshal parses a single record.
func (Codec) Unmarshal(data []byte) (*marc.Record, marc.Diagnostics, error) { return Unmarshal(data) }

// Marshal serializes a record.
func (Codec) Marshal(rec *marc.Record) ([]byte, error) { return Marshal(rec) }

// CanParse reports whether the first non-whitespace byte opens an object.
func CanParse(data []byte) bool { return firstByte(data) == '{' }

// CanParseCollection reports whether the first non-whitespace byte opens an
// array.
func CanParseCollection(data []byte) bool { return firstByte(data) == '[' }

func firstByte(data []byte) byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n\uFEFF")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// Unmarshal parses a MARC-in-JSON record.
//
// Unknown keys are ignored. Values of unexpected types are skipped and
// reported as warnings.
func Unmarshal(data []byte) (*marc.Record, marc.Diagnostics, error) {
	iter := jsoniter.ParseBytes(api, bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	return decodeRecord(iter)
}

func decodeRecord(iter *jsoniter.Iterator) (*marc.Record, marc.Diagnostics, error) {
	var diags marc.Diagnostics
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, nil, ErrNotObject
	}

	var leader string
	var fields []marc.Field
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, key string) bool {
		switch key {
		case "leader":
			leader = readScalar(iter)
		case "fields":
			if iter.WhatIsNext() != jsoniter.ArrayValue {
				diags.Add(marc.SeverityWarning, "fields is not an array")
				iter.Skip()
				return true
			}
			iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
				fields = append(fields, decodeFieldEntry(iter, &diags)...)
				return true
			})
		default:
			iter.Skip()
		}
		return true
	})
	if iter.Error != nil {
		return nil, nil, fmt.Errorf("marcjson: %w", iter.Error)
	}
	return marc.NewRecord(leader, fields...), diags, nil
}

// decodeFieldEntry reads one {"tag": value} entry. Several keys in one entry
// are accepted and yield one field each.
func decodeFieldEntry(iter *jsoniter.Iterator, diags *marc.Diagnostics) []marc.Field {
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		diags.Add(marc.SeverityWarning, "field entry is not an object")
		iter.Skip()
		return nil
	}
	var fields []marc.Field
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, tag string) bool {
		switch iter.WhatIsNext() {
		case jsoniter.StringValue, jsoniter.NumberValue:
			fields = append(fields, marc.NewControlField(tag, readScalar(iter)))
		case jsoniter.ObjectValue:
			fields = append(fields, decodeDataField(iter, tag))
		default:
			diags.Add(marc.SeverityWarning, "field %s has an unsupported value", tag)
			iter.Skip()
		}
		return true
	})
	return fields
}

func decodeDataField(iter *jsoniter.Iterator, tag string) marc.Field {
	var ind1, ind2 string
	var subfields []marc.Subfield
	iter.ReadObjectCB(func(iter *jsoniter.Iterator, key string) bool {
		switch key {
		case "ind1":
			ind1 = readScalar(iter)
		case "ind2":
			ind2 = readScalar(iter)
		case "subfields":
			if iter.WhatIsNext() != jsoniter.ArrayValue {
				iter.Skip()
				return true
			}
			iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
				subfields = append(subfields, decodeSubfields(iter)...)
				return true
			})
		default:
			iter.Skip()
		}
		return true
	})
	return marc.NewDataField(tag, ind1, ind2, subfields...)
}

// decodeSubfields reads a {"code": "value"} entry. A bare array such as
// ["value"] is what some encoders emit for subfield 0 and is read with the
// array index as the code.
func decodeSubfields(iter *jsoniter.Iterator) []marc.Subfield {
	var subfields []marc.Subfield
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		iter.ReadObjectCB(func(iter *jsoniter.Iterator, code string) bool {
			subfields = append(subfields, marc.Subfield{Code: code, Value: readScalar(iter)})
			return true
		})
	case jsoniter.ArrayValue:
		i := 0
		iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
			subfields = append(subfields, marc.Subfield{Code: strconv.Itoa(i), Value: readScalar(iter)})
			i++
			return true
		})
	default:
		iter.Skip()
	}
	return subfields
}

// readScalar reads strings as-is and stringifies numbers and booleans.
// null reads as "".
func readScalar(iter *jsoniter.Iterator) string {
	switch iter.WhatIsNext() {
	case jsoniter.StringValue:
		return iter.ReadString()
	case jsoniter.NilValue:
		iter.ReadNil()
		return ""
	case jsoniter.NumberValue, jsoniter.BoolValue:
		return iter.ReadAny().ToString()
	default:
		iter.Skip()
		return ""
	}
}

// Marshal serializes rec as compact MARC-in-JSON.
//
// Subfields are written as single-key objects in order, so a lone "0" code
// is always an object and never collapses into an array.
func Marshal(rec *marc.Record) ([]byte, error) {
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	stream.WriteObjectStart()
	stream.WriteObjectField("leader")
	stream.WriteString(rec.Leader())
	stream.WriteMore()
	stream.WriteObjectField("fields")
	stream.WriteArrayStart()
	for i, f := range rec.Fields() {
		if i > 0 {
			stream.WriteMore()
		}
		writeField(stream, f)
	}
	stream.WriteArrayEnd()
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, fmt.Errorf("marshal marcjson: %w", stream.Error)
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func writeField(stream *jsoniter.Stream, f marc.Field) {
	stream.WriteObjectStart()
	stream.WriteObjectField(f.Tag)
	if f.Control {
		stream.WriteString(f.Value)
		stream.WriteObjectEnd()
		return
	}

	stream.WriteObjectStart()
	stream.WriteObjectField("ind1")
	stream.WriteString(f.Ind1)
	stream.WriteMore()
	stream.WriteObjectField("ind2")
	stream.WriteString(f.Ind2)
	stream.WriteMore()
	stream.WriteObjectField("subfields")
	stream.WriteArrayStart()
	for i, sf := range f.Subfields {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectStart()
		stream.WriteObjectField(sf.Code)
		stream.WriteString(sf.Value)
		stream.WriteObjectEnd()
	}
	stream.WriteArrayEnd()
	stream.WriteObjectEnd()
	stream.WriteObjectEnd()
}
